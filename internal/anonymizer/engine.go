package anonymizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"msg-deidentifier/internal/classify"
	"msg-deidentifier/internal/compliance"
	"msg-deidentifier/internal/phi"
	"msg-deidentifier/internal/progress"
	"msg-deidentifier/internal/source"
)

// Progress statuses passed to a ProgressCallback.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ProgressCallback is called once per finished file. It may be called from
// several goroutines at once.
type ProgressCallback func(current, total int, filename, status string)

// FileResult is the outcome for one input file.
type FileResult struct {
	InputPath  string                `json:"input"`
	OutputPath string                `json:"output,omitempty"`
	Standard   phi.Standard          `json:"standard,omitempty"`
	Success    bool                  `json:"success"`
	Skipped    bool                  `json:"skipped,omitempty"`
	Error      string                `json:"error,omitempty"`
	ErrorKind  phi.ErrorKind         `json:"errorKind,omitempty"`
	Statistics Statistics            `json:"statistics"`
	Compliance compliance.Assessment `json:"compliance"`

	// Changes holds the first SampleSize changes of the file. Runs sample
	// only in previews and when a report is generated.
	Changes  []phi.AppliedChange `json:"sampleChanges,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// BatchResult is the outcome of a directory run or preview. Statistics and
// Compliance combine successful files only.
type BatchResult struct {
	RunID      uuid.UUID             `json:"runId"`
	StartedAt  time.Time             `json:"startedAt"`
	Elapsed    time.Duration         `json:"-"`
	Files      []*FileResult         `json:"files"`
	Statistics Statistics            `json:"statistics"`
	Compliance compliance.Assessment `json:"compliance"`
	Cancelled  bool                  `json:"cancelled"`
	Preview    bool                  `json:"preview"`
}

// Succeeded returns the number of files written (or previewed).
func (b *BatchResult) Succeeded() int {
	return b.count(func(f *FileResult) bool { return f.Success })
}

// Failed returns the number of files that could not be processed.
func (b *BatchResult) Failed() int {
	return b.count(func(f *FileResult) bool { return !f.Success && !f.Skipped })
}

// Skipped returns the number of files a resumed run found already done.
func (b *BatchResult) Skipped() int {
	return b.count(func(f *FileResult) bool { return f.Skipped })
}

func (b *BatchResult) count(pred func(*FileResult) bool) int {
	n := 0
	for _, f := range b.Files {
		if pred(f) {
			n++
		}
	}
	return n
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithLogger sets the run logger. The logger never receives message content.
func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithProgress sets the per-file progress callback.
func WithProgress(cb ProgressCallback) EngineOption {
	return func(e *Engine) { e.progress = cb }
}

// WithErrorLogger records failed files in a rotated error log.
func WithErrorLogger(l *progress.ErrorLogger) EngineOption {
	return func(e *Engine) { e.errors = l }
}

// WithTracker overrides the resume tracker a directory run creates when
// Options.Resume is set.
func WithTracker(t *progress.Tracker) EngineOption {
	return func(e *Engine) { e.tracker = t }
}

// WithClassifier replaces the default rule table.
func WithClassifier(c *classify.Classifier) EngineOption {
	return func(e *Engine) { e.classifier = c }
}

// Engine runs the per-file pipeline over single files and directory trees.
// It is safe for concurrent use; all per-run state lives in the results.
type Engine struct {
	opts        Options
	registry    *source.Registry
	transformer *Transformer
	classifier  *classify.Classifier

	log      zerolog.Logger
	progress ProgressCallback
	errors   *progress.ErrorLogger
	tracker  *progress.Tracker
}

// NewEngine validates opts and builds an engine. Invalid options are
// returned as configuration errors before any file is read.
func NewEngine(opts Options, options ...EngineOption) (*Engine, error) {
	e := &Engine{log: zerolog.Nop()}
	for _, o := range options {
		o(e)
	}

	if opts.PreviewMode && opts.Salt == "" {
		opts.Salt = PreviewSalt
		e.log.Warn().Msg("no salt given; preview uses a fixed public salt and its pseudonyms differ from a real run")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = runtime.NumCPU()
	}

	e.opts = opts
	e.registry = source.NewRegistry(source.Config{RedactRows: opts.RedactRows})
	e.transformer = NewTransformer(opts, e.classifier)
	return e, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// ProcessFile de-identifies one file into out. The error is non-nil only
// when ctx is already done; file failures are reported in the result.
func (e *Engine) ProcessFile(ctx context.Context, in, out string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := e.process(in, out, e.opts.PreviewMode)
	e.record(res)
	return res, nil
}

// ProcessDirectory de-identifies every message file under inDir into a
// mirrored tree under outDir. Per-file failures never abort the batch. The
// error is reserved for configuration and discovery problems. A cancelled
// ctx stops dispatching new files; the files already finished are returned
// with Cancelled set.
func (e *Engine) ProcessDirectory(ctx context.Context, inDir, outDir string) (*BatchResult, error) {
	if err := checkDirs(inDir, outDir); err != nil {
		return nil, err
	}

	files, err := source.FindMessageFiles(inDir, e.opts.Recursive, outDir)
	if err != nil {
		return nil, phi.IOError("scan", inDir, err)
	}
	e.log.Info().Int("files", len(files)).Str("input", inDir).Msg("discovered message files")

	tracker := e.tracker
	if tracker == nil && e.opts.Resume && !e.opts.PreviewMode {
		tracker = progress.NewTracker(filepath.Join(outDir, source.ProgressFileName), e.fingerprint(), e.log)
	}
	if tracker != nil {
		done, failed := tracker.Stats()
		tracker.ClearFailed()
		e.log.Info().Int("done", done).Int("retrying", failed).Msg("resuming from saved progress")
	}

	outFor := func(path string) string {
		rel, err := filepath.Rel(inDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		return filepath.Join(outDir, rel)
	}
	return e.run(ctx, files, outFor, e.opts.PreviewMode, tracker), nil
}

// PreviewChanges runs the pipeline on a file or directory without writing
// anything and returns the first SampleSize changes of every file.
func (e *Engine) PreviewChanges(ctx context.Context, in string) (*BatchResult, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, phi.ConfigurationError("preview", fmt.Errorf("input %s: %w", in, err))
	}

	files := []string{in}
	if info.IsDir() {
		if files, err = source.FindMessageFiles(in, e.opts.Recursive, ""); err != nil {
			return nil, phi.IOError("scan", in, err)
		}
	}
	return e.run(ctx, files, func(string) string { return "" }, true, nil), nil
}

// Run de-identifies in into out. A directory goes through ProcessDirectory.
// A regular file is written to out, or into out when out is an existing
// directory, and its outcome is returned as a one-file batch.
func (e *Engine) Run(ctx context.Context, in, out string) (*BatchResult, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, phi.ConfigurationError("open input", fmt.Errorf("input %s: %w", in, err))
	}
	if info.IsDir() {
		return e.ProcessDirectory(ctx, in, out)
	}

	target, err := fileTarget(in, out)
	if err != nil {
		return nil, err
	}
	batch := newBatch(false)
	res, err := e.ProcessFile(ctx, in, target)
	if err != nil {
		batch.Cancelled = true
	} else {
		batch.collect([]*FileResult{res})
		if e.progress != nil {
			e.progress(1, 1, in, status(res))
		}
	}
	batch.Elapsed = time.Since(batch.StartedAt)
	return batch, nil
}

// fileTarget resolves the output path of a single-file run.
func fileTarget(in, out string) (string, error) {
	if out == "" {
		return "", phi.ConfigurationError("open output", errors.New("output path is required"))
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, filepath.Base(in))
	}
	absIn, err1 := filepath.Abs(in)
	absOut, err2 := filepath.Abs(out)
	if err1 == nil && err2 == nil && absIn == absOut {
		return "", phi.ConfigurationError("open output", errors.New("output file must differ from the input file"))
	}
	return out, nil
}

func checkDirs(inDir, outDir string) error {
	info, err := os.Stat(inDir)
	if err != nil {
		return phi.ConfigurationError("open input", fmt.Errorf("input directory %s: %w", inDir, err))
	}
	if !info.IsDir() {
		return phi.ConfigurationError("open input", fmt.Errorf("input path is not a directory: %s", inDir))
	}
	if outDir == "" {
		return phi.ConfigurationError("open output", errors.New("output directory is required"))
	}
	absIn, err1 := filepath.Abs(inDir)
	absOut, err2 := filepath.Abs(outDir)
	if err1 == nil && err2 == nil && absIn == absOut {
		return phi.ConfigurationError("open output", errors.New("output directory must differ from the input directory"))
	}
	return nil
}

// run processes files on a bounded pool. Each worker writes only its own
// result slot.
func (e *Engine) run(ctx context.Context, files []string, outFor func(string) string, preview bool, tracker *progress.Tracker) *BatchResult {
	batch := newBatch(preview)
	log := e.log.With().Str("run", batch.RunID.String()).Logger()

	results := make([]*FileResult, len(files))
	var done atomic.Int64
	p := pool.New().WithMaxGoroutines(e.opts.Concurrency)
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			out := outFor(path)
			var res *FileResult
			if tracker != nil && tracker.IsProcessed(path) {
				res = &FileResult{InputPath: path, OutputPath: out, Skipped: true}
			} else {
				res = e.process(path, out, preview)
				e.recordWith(res, tracker)
			}
			results[i] = res

			if e.progress != nil {
				e.progress(int(done.Add(1)), len(files), path, status(res))
			}
		})
	}
	p.Wait()

	batch.collect(results)
	batch.Cancelled = ctx.Err() != nil
	batch.Elapsed = time.Since(batch.StartedAt)

	log.Info().
		Int("succeeded", batch.Succeeded()).
		Int("failed", batch.Failed()).
		Int("skipped", batch.Skipped()).
		Int("messages", batch.Statistics.TotalMessages).
		Bool("cancelled", batch.Cancelled).
		Bool("meetsSafeHarbor", batch.Compliance.MeetsSafeHarbor).
		Dur("elapsed", batch.Elapsed).
		Msg("batch complete")
	return batch
}

func newBatch(preview bool) *BatchResult {
	return &BatchResult{
		RunID:      uuid.New(),
		StartedAt:  time.Now(),
		Compliance: compliance.Pass(),
		Preview:    preview,
	}
}

// collect appends the finished results in order. Statistics and compliance
// combine successful files only.
func (b *BatchResult) collect(results []*FileResult) {
	for _, res := range results {
		if res == nil {
			continue
		}
		b.Files = append(b.Files, res)
		if res.Success {
			b.Statistics = b.Statistics.Combine(res.Statistics)
			b.Compliance = compliance.Combine(b.Compliance, res.Compliance)
		}
	}
}

func status(res *FileResult) string {
	switch {
	case res.Skipped:
		return StatusSkipped
	case res.Success:
		return StatusSuccess
	default:
		return StatusFailed
	}
}

// process runs read, detect, decode, transform, assess and, unless
// previewing, encode, revalidate and write. No panic escapes it.
func (e *Engine) process(in, out string, preview bool) (res *FileResult) {
	start := time.Now()
	res = &FileResult{InputPath: in, OutputPath: out}
	defer func() {
		if r := recover(); r != nil {
			e.fail(res, &phi.Error{Kind: phi.KindInternal, Op: "process", Path: in, Err: fmt.Errorf("panic: %v", r)})
		}
		res.Statistics.ProcessingDuration = time.Since(start)
	}()

	raw, err := os.ReadFile(in)
	if err != nil {
		return e.fail(res, phi.IOError("read", in, err))
	}
	codec, err := e.codecFor(raw, in)
	if err != nil {
		return e.fail(res, phi.ParseError(in, err))
	}
	res.Standard = codec.Standard()

	docs, err := codec.Decode(raw)
	if err != nil {
		return e.fail(res, phi.ParseError(in, err))
	}

	selectors := e.opts.Selectors(codec.SubjectSelectors())
	assessment := compliance.Pass()
	var changes []phi.AppliedChange
	for _, doc := range docs {
		tr, err := e.transformer.Transform(doc, selectors)
		if err != nil {
			return e.fail(res, &phi.Error{Kind: phi.KindInternal, Op: "transform", Path: in, Err: err})
		}
		res.Statistics.TotalMessages++
		res.Statistics.FieldsModified += len(tr.Changes)
		res.Statistics.DatesShifted += tr.DatesShifted
		res.Statistics.AddSubject(tr.SubjectDigest)
		assessment = compliance.Combine(assessment, compliance.Assess(tr.Changes, tr.Fields, e.opts.ResidualScan))
		changes = append(changes, tr.Changes...)
		res.Warnings = append(res.Warnings, tr.Warnings...)
	}
	res.Compliance = assessment
	if preview || e.opts.GenerateReport {
		res.Changes = sampleChanges(changes, e.opts.SampleSize)
	}

	if preview {
		res.OutputPath = ""
		res.Success = true
		return res
	}

	encoded, err := codec.Encode(docs)
	if err != nil {
		return e.fail(res, &phi.Error{Kind: phi.KindValidation, Op: "encode", Path: in, Err: err})
	}
	if e.opts.Revalidate {
		if err := revalidate(codec, encoded, changes); err != nil {
			return e.fail(res, phi.ValidationError(in, err))
		}
	}
	if err := writeAtomic(out, encoded); err != nil {
		return e.fail(res, phi.IOError("write", out, err))
	}

	res.Success = true
	return res
}

func (e *Engine) codecFor(raw []byte, path string) (phi.Codec, error) {
	if e.opts.Standard != "" {
		return e.registry.Codec(e.opts.Standard)
	}
	return e.registry.Detect(raw, path)
}

func (e *Engine) fail(res *FileResult, err error) *FileResult {
	res.Success = false
	res.Error = err.Error()
	res.ErrorKind = phi.KindOf(err)
	res.Changes = nil
	return res
}

func (e *Engine) record(res *FileResult) {
	e.recordWith(res, e.tracker)
}

func (e *Engine) recordWith(res *FileResult, tracker *progress.Tracker) {
	if res.Success {
		e.log.Debug().
			Str("file", res.InputPath).
			Str("standard", string(res.Standard)).
			Int("messages", res.Statistics.TotalMessages).
			Int("fields", res.Statistics.FieldsModified).
			Int("warnings", len(res.Warnings)).
			Msg("file processed")
		if tracker != nil && res.OutputPath != "" {
			tracker.MarkSuccess(res.InputPath, res.OutputPath)
		}
		return
	}

	e.log.Warn().Str("file", res.InputPath).Str("kind", string(res.ErrorKind)).Msg("file failed")
	if e.errors != nil {
		e.errors.Log(res.InputPath, string(res.ErrorKind), res.Error)
	}
	if tracker != nil {
		tracker.MarkError(res.InputPath, res.Error)
	}
}

// fingerprint identifies the settings that shape output, so a resume never
// mixes files written under a different salt or option set.
func (e *Engine) fingerprint() string {
	fixed := "derived"
	if e.opts.FixedDateShiftDays != nil {
		fixed = fmt.Sprint(*e.opts.FixedDateShiftDays)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s\x00%s\x00%t\x00%s\x00%s\x00%d",
		e.opts.Salt, e.opts.DateShiftRangeDays, fixed, e.opts.Method,
		strings.Join(e.opts.Keep().Entries(), ","), e.opts.PreserveRelationships,
		e.opts.SubjectField, e.opts.Standard, e.opts.RedactRows)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func sampleChanges(changes []phi.AppliedChange, n int) []phi.AppliedChange {
	if len(changes) <= n {
		return changes
	}
	return changes[:n:n]
}

// revalidate decodes the encoded output again and checks that no changed
// field still carries its original value.
func revalidate(codec phi.Codec, encoded []byte, changes []phi.AppliedChange) error {
	docs, err := codec.Decode(encoded)
	if err != nil {
		return fmt.Errorf("output no longer decodes: %w", err)
	}

	originals := make(map[phi.FieldLocation]string, len(changes))
	for _, c := range changes {
		originals[c.Location] = c.Original
	}
	for _, doc := range docs {
		for _, f := range doc.Fields() {
			if orig, ok := originals[f.Location]; ok && f.Value == orig {
				return fmt.Errorf("%s still holds its original value", f.Location)
			}
		}
	}
	return nil
}

// writeAtomic writes data through a hidden temp file in the target
// directory, so a partial output is never visible under the final name.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
