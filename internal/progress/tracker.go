// Package progress persists resumable run state, logs per-file failures and
// renders a terminal progress bar.
package progress

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FileStatus represents the processing status of a file
type FileStatus string

const (
	StatusSuccess FileStatus = "success"
	StatusError   FileStatus = "error"
)

// FileEntry represents a processed file entry
type FileEntry struct {
	Status    FileStatus `json:"status"`
	Hash      string     `json:"hash"`
	Output    string     `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// TrackerData is the JSON structure for persistence
type TrackerData struct {
	Fingerprint string                `json:"fingerprint"`
	Files       map[string]*FileEntry `json:"files"`
	Updated     string                `json:"updated"`
	Summary     struct {
		Success int `json:"success"`
		Error   int `json:"error"`
		Total   int `json:"total"`
	} `json:"summary"`
}

// Tracker records which inputs a run has already written so an interrupted
// batch can resume. Entries are only trusted when the run fingerprint (a
// digest of salt and options) matches; a changed salt reprocesses
// everything.
type Tracker struct {
	mu           sync.Mutex
	progressFile string
	fingerprint  string
	processed    map[string]*FileEntry
	log          zerolog.Logger
}

// NewTracker loads progressFile if it exists. An empty path keeps state in
// memory only.
func NewTracker(progressFile, fingerprint string, log zerolog.Logger) *Tracker {
	t := &Tracker{
		progressFile: progressFile,
		fingerprint:  fingerprint,
		processed:    make(map[string]*FileEntry),
		log:          log,
	}

	if progressFile != "" {
		t.load()
	}

	return t
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.progressFile)
	if err != nil {
		return // File doesn't exist, start fresh
	}

	var trackerData TrackerData
	if err := json.Unmarshal(data, &trackerData); err != nil {
		t.log.Warn().Err(err).Str("file", t.progressFile).Msg("could not load progress file")
		return
	}
	if trackerData.Fingerprint != t.fingerprint {
		t.log.Warn().Str("file", t.progressFile).Msg("progress file belongs to a run with different settings; starting fresh")
		return
	}

	if trackerData.Files != nil {
		t.processed = trackerData.Files
	}
	t.log.Info().
		Int("succeeded", t.countStatus(StatusSuccess)).
		Int("failed", t.countStatus(StatusError)).
		Msg("loaded progress")
}

// save writes the state through a temp file so a crash never leaves a
// truncated progress file behind.
func (t *Tracker) save() {
	if t.progressFile == "" {
		return
	}

	trackerData := TrackerData{
		Fingerprint: t.fingerprint,
		Files:       t.processed,
		Updated:     time.Now().Format(time.RFC3339),
	}
	trackerData.Summary.Success = t.countStatus(StatusSuccess)
	trackerData.Summary.Error = t.countStatus(StatusError)
	trackerData.Summary.Total = len(t.processed)

	data, err := json.MarshalIndent(trackerData, "", "  ")
	if err != nil {
		t.log.Warn().Err(err).Msg("could not marshal progress data")
		return
	}

	if err := os.MkdirAll(filepath.Dir(t.progressFile), 0o755); err != nil {
		t.log.Warn().Err(err).Msg("could not save progress")
		return
	}
	tmp := t.progressFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		t.log.Warn().Err(err).Msg("could not save progress")
		return
	}
	if err := os.Rename(tmp, t.progressFile); err != nil {
		t.log.Warn().Err(err).Msg("could not save progress")
	}
}

func (t *Tracker) countStatus(status FileStatus) int {
	count := 0
	for _, entry := range t.processed {
		if entry.Status == status {
			count++
		}
	}
	return count
}

// fileHash creates a quick hash based on file size and modification time
func fileHash(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d_%d", info.Size(), info.ModTime().UnixNano())))
	return hex.EncodeToString(sum[:8])
}

// IsProcessed reports whether filePath was written successfully by an
// earlier run, is unchanged since, and its output still exists.
func (t *Tracker) IsProcessed(filePath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.processed[filePath]
	if !ok || entry.Status != StatusSuccess {
		return false
	}
	if entry.Output != "" {
		if _, err := os.Stat(entry.Output); err != nil {
			return false
		}
	}
	return entry.Hash == fileHash(filePath)
}

// MarkSuccess marks a file as successfully processed.
func (t *Tracker) MarkSuccess(filePath, outputPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed[filePath] = &FileEntry{
		Status:    StatusSuccess,
		Hash:      fileHash(filePath),
		Output:    outputPath,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	t.save()
}

// MarkError marks a file as failed.
func (t *Tracker) MarkError(filePath, errorMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed[filePath] = &FileEntry{
		Status:    StatusError,
		Hash:      fileHash(filePath),
		Error:     errorMsg,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	t.save()
}

// ClearFailed removes all failed entries for retry.
func (t *Tracker) ClearFailed() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for key, entry := range t.processed {
		if entry.Status == StatusError {
			delete(t.processed, key)
			count++
		}
	}

	if count > 0 {
		t.save()
		t.log.Info().Int("count", count).Msg("cleared failed entries for retry")
	}

	return count
}

// Stats returns success and error counts.
func (t *Tracker) Stats() (success, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countStatus(StatusSuccess), t.countStatus(StatusError)
}
