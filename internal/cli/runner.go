package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"msg-deidentifier/internal/anonymizer"
	"msg-deidentifier/internal/config"
	"msg-deidentifier/internal/logging"
	"msg-deidentifier/internal/phi"
	"msg-deidentifier/internal/progress"
	"msg-deidentifier/internal/report"
)

// Exit codes of the deidentify command.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// ErrorLogName is the error log written into the output directory when
// --error-log is not given.
const ErrorLogName = "errors.log"

var (
	titleColor   = color.New(color.Bold)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed, color.Bold)
	headingColor = color.New(color.FgGreen, color.Underline)
)

// Runner executes one run or preview and prints its header and summary.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner returns a runner on the process streams.
func NewRunner() *Runner {
	return &Runner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run de-identifies cfg.In into cfg.Out, or previews cfg.In when cfg.Preview
// is set, and returns the process exit code. cfg.In may be a directory or a
// single file. A non-nil error is a
// configuration or setup problem and always comes with ExitFailure. Any
// failed file or a cancelled run also exits with ExitFailure.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (int, error) {
	if err := cfg.Validate(); err != nil {
		return ExitFailure, err
	}
	if cfg.NoColor {
		color.NoColor = true
	}

	log, closer, err := logging.New(cfg.Logging(), r.Stderr)
	if err != nil {
		return ExitFailure, phi.ConfigurationError("configure logging", err)
	}
	defer closer.Close()
	if cfg.ConfigFile != "" {
		log.Debug().Str("file", cfg.ConfigFile).Msg("using config file")
	}

	opts, err := cfg.Options()
	if err != nil {
		return ExitFailure, err
	}

	if opts.Salt == "" && !opts.PreviewMode {
		return ExitFailure, phi.ConfigurationError("validate options",
			errors.New("a salt is required; generate one with 'deidentify salt' and pass it with --salt or DEID_SALT"))
	}

	errLog := progress.NewErrorLogger(errorLogPath(cfg))
	defer errLog.Close()

	r.printHeader(cfg, opts)

	bar := newLazyBar(r.progressOutput(cfg))
	engine, err := anonymizer.NewEngine(opts,
		anonymizer.WithLogger(log),
		anonymizer.WithProgress(bar.Update),
		anonymizer.WithErrorLogger(errLog),
	)
	if err != nil {
		return ExitFailure, err
	}

	var batch *anonymizer.BatchResult
	if cfg.Preview {
		batch, err = engine.PreviewChanges(ctx, cfg.In)
	} else {
		batch, err = engine.Run(ctx, cfg.In, cfg.Out)
	}
	bar.Finish()
	if err != nil {
		return ExitFailure, err
	}

	if cfg.Preview {
		fmt.Fprintln(r.Stdout)
		report.NewPreview(r.Stdout, !color.NoColor).Render(batch, cfg.In)
	}
	if err := r.writeArtifacts(cfg, engine.Options(), batch, log); err != nil {
		return ExitFailure, err
	}

	r.printSummary(cfg, batch, errLog)
	return exitCode(batch), nil
}

// errorLogPath defaults to errors.log in the output directory, or next to
// the output file of a single-file run. Previews write no error log unless
// one is asked for.
func errorLogPath(cfg *config.Config) string {
	if cfg.ErrorLog != "" || cfg.Preview {
		return cfg.ErrorLog
	}
	if info, err := os.Stat(cfg.In); err == nil && !info.IsDir() {
		if out, err := os.Stat(cfg.Out); err != nil || !out.IsDir() {
			return filepath.Join(filepath.Dir(cfg.Out), ErrorLogName)
		}
	}
	return filepath.Join(cfg.Out, ErrorLogName)
}

// exitCode is non-zero when any file failed or the run was cancelled.
// Compliance findings alone do not fail a run; kept identifiers are the
// operator's choice and show up in the summary.
func exitCode(batch *anonymizer.BatchResult) int {
	if batch.Cancelled || batch.Failed() > 0 {
		return ExitFailure
	}
	return ExitOK
}

func (r *Runner) writeArtifacts(cfg *config.Config, opts anonymizer.Options, batch *anonymizer.BatchResult, log zerolog.Logger) error {
	if cfg.Report != "" {
		if err := report.New(batch, opts.Method, time.Now()).Write(cfg.Report); err != nil {
			return phi.IOError("write report", cfg.Report, err)
		}
		log.Info().Str("file", cfg.Report).Msg("report written")
	}
	if cfg.MetricsFile != "" {
		m := report.NewMetrics()
		m.Observe(batch)
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			return phi.IOError("write metrics", cfg.MetricsFile, err)
		}
		log.Info().Str("file", cfg.MetricsFile).Msg("metrics written")
	}
	return nil
}

// progressOutput returns stderr when it is a terminal and the bar is wanted.
func (r *Runner) progressOutput(cfg *config.Config) io.Writer {
	if cfg.NoProgress {
		return nil
	}
	f, ok := r.Stderr.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	return r.Stderr
}

// GenerateSecretKey returns a random 32 character hex salt.
func GenerateSecretKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (r *Runner) printHeader(cfg *config.Config, opts anonymizer.Options) {
	w := r.Stdout
	titleColor.Fprintln(w, "Message De-identifier")
	fmt.Fprintln(w, strings.Repeat("=", 50))

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("Input:", cfg.In)
	if !cfg.Preview {
		table.AddRow("Output:", cfg.Out)
	}

	switch {
	case opts.Salt == "":
		table.AddRow("Salt:", "(preview salt)")
	case len(opts.Salt) > 8:
		table.AddRow("Salt:", opts.Salt[:8]+"... (provided)")
	default:
		table.AddRow("Salt:", "(provided)")
	}

	if opts.FixedDateShiftDays != nil {
		table.AddRow("Date shift:", fmt.Sprintf("%+d days (fixed)", *opts.FixedDateShiftDays))
	} else {
		table.AddRow("Date shift:", fmt.Sprintf("per subject, up to ±%d days", opts.DateShiftRangeDays))
	}
	if keep := opts.Keep().Entries(); len(keep) > 0 {
		table.AddRow("Keep:", strings.Join(keep, ", "))
	}
	if opts.Standard != "" {
		table.AddRow("Standard:", string(opts.Standard))
	}
	if flags := optionFlags(cfg); len(flags) > 0 {
		table.AddRow("Options:", strings.Join(flags, ", "))
	}
	fmt.Fprintln(w, table)

	if cfg.Preview {
		fmt.Fprintln(w)
		warnColor.Fprintln(w, "[PREVIEW MODE] no files are written")
	}
}

func optionFlags(cfg *config.Config) []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(cfg.Recursive, "Recursive")
	add(!cfg.PreserveRelationships, "Per-subject pseudonyms")
	add(cfg.ResidualScan, "Residual scan")
	add(cfg.Revalidate, "Revalidate")
	add(cfg.Resume, "Resume")
	return out
}

func (r *Runner) printSummary(cfg *config.Config, batch *anonymizer.BatchResult, errLog *progress.ErrorLogger) {
	w := r.Stdout
	s := batch.Statistics

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	verdict := fmt.Sprintf("%s succeeded, %s failed, %s skipped",
		humanize.Comma(int64(batch.Succeeded())),
		humanize.Comma(int64(batch.Failed())),
		humanize.Comma(int64(batch.Skipped())))
	switch {
	case batch.Cancelled:
		failColor.Fprintln(w, "Cancelled! "+verdict)
	case batch.Failed() > 0:
		warnColor.Fprintln(w, "Complete with failures: "+verdict)
	default:
		okColor.Fprintln(w, "Complete! "+verdict)
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow(headingColor.Sprint("METRIC"), headingColor.Sprint("VALUE"))
	table.AddRow("Messages", humanize.Comma(int64(s.TotalMessages)))
	table.AddRow("Fields modified", humanize.Comma(int64(s.FieldsModified)))
	table.AddRow("Dates shifted", humanize.Comma(int64(s.DatesShifted)))
	table.AddRow("Unique subjects", humanize.Comma(int64(s.UniqueSubjects())))
	table.AddRow("Elapsed", batch.Elapsed.Round(time.Millisecond).String())
	if batch.Compliance.MeetsSafeHarbor {
		table.AddRow("Safe Harbor", okColor.Sprint("met"))
	} else {
		names := make([]string, 0, len(batch.Compliance.ViolatedCategories))
		for _, c := range batch.Compliance.ViolatedCategories {
			names = append(names, c.String())
		}
		table.AddRow("Safe Harbor", failColor.Sprint("NOT met: "+strings.Join(names, ", ")))
	}
	table.AddRow("Run", batch.RunID.String())
	if !cfg.Preview {
		table.AddRow("Output", cfg.Out)
	}
	if cfg.Report != "" {
		table.AddRow("Report", cfg.Report)
	}
	if errLog.ErrorCount() > 0 {
		table.AddRow("Errors", errLog.Summary())
	}
	fmt.Fprintln(w, table)
}

// lazyBar creates the progress bar on the first callback, once the engine
// has discovered the number of files.
type lazyBar struct {
	out  io.Writer
	once sync.Once
	bar  *progress.Bar
}

func newLazyBar(out io.Writer) *lazyBar {
	return &lazyBar{out: out}
}

func (l *lazyBar) Update(current, total int, filename, status string) {
	l.once.Do(func() { l.bar = progress.NewBar(l.out, total) })
	l.bar.Update(current, total, filename, status)
}

func (l *lazyBar) Finish() {
	if l.bar != nil {
		l.bar.Finish()
	}
}
