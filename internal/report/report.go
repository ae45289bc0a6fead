// Package report renders the outcome of a run: the JSON report file, the
// terminal preview of changes and the Prometheus textfile metrics.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"msg-deidentifier/internal/anonymizer"
	"msg-deidentifier/internal/compliance"
	"msg-deidentifier/internal/phi"
)

// maxMask caps the mask width so a masked value does not reveal the length
// of long originals.
const maxMask = 8

// Report is the JSON document written by --report.
type Report struct {
	RunID       string                `json:"runId"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Method      anonymizer.Method     `json:"method"`
	Preview     bool                  `json:"preview"`
	Cancelled   bool                  `json:"cancelled"`
	Succeeded   int                   `json:"succeeded"`
	Failed      int                   `json:"failed"`
	Skipped     int                   `json:"skipped"`
	Statistics  anonymizer.Statistics `json:"statistics"`
	Compliance  compliance.Assessment `json:"compliance"`
	Files       []File                `json:"files"`
}

// File is the report entry of one input file.
type File struct {
	Input         string                `json:"input"`
	Output        string                `json:"output,omitempty"`
	Standard      phi.Standard          `json:"standard,omitempty"`
	Success       bool                  `json:"success"`
	Skipped       bool                  `json:"skipped,omitempty"`
	Error         string                `json:"error,omitempty"`
	ErrorKind     phi.ErrorKind         `json:"errorKind,omitempty"`
	Statistics    anonymizer.Statistics `json:"statistics"`
	Compliance    compliance.Assessment `json:"compliance"`
	SampleChanges []Change              `json:"sampleChanges,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// Change is a sampled change with its original value masked.
type Change struct {
	Location    string       `json:"location"`
	Category    phi.Category `json:"category"`
	Original    string       `json:"original"`
	Replacement string       `json:"replacement"`
}

// New builds the report of batch. Original values never reach the report.
func New(batch *anonymizer.BatchResult, method anonymizer.Method, now time.Time) *Report {
	r := &Report{
		RunID:       batch.RunID.String(),
		GeneratedAt: now.UTC(),
		Method:      method,
		Preview:     batch.Preview,
		Cancelled:   batch.Cancelled,
		Succeeded:   batch.Succeeded(),
		Failed:      batch.Failed(),
		Skipped:     batch.Skipped(),
		Statistics:  batch.Statistics,
		Compliance:  batch.Compliance,
		Files:       make([]File, 0, len(batch.Files)),
	}
	for _, f := range batch.Files {
		entry := File{
			Input:      f.InputPath,
			Output:     f.OutputPath,
			Standard:   f.Standard,
			Success:    f.Success,
			Skipped:    f.Skipped,
			Error:      f.Error,
			ErrorKind:  f.ErrorKind,
			Statistics: f.Statistics,
			Compliance: f.Compliance,
			Warnings:   f.Warnings,
		}
		for _, c := range f.Changes {
			entry.SampleChanges = append(entry.SampleChanges, Change{
				Location:    c.Location.String(),
				Category:    c.Category,
				Original:    Mask(c.Original),
				Replacement: c.Replacement,
			})
		}
		r.Files = append(r.Files, entry)
	}
	return r
}

// Write stores the report as indented JSON, creating parent directories.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create report directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	return nil
}

// Mask hides a value behind asterisks, at most maxMask of them.
func Mask(value string) string {
	return strings.Repeat("*", min(utf8.RuneCountInString(value), maxMask))
}
