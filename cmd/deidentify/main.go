package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"msg-deidentifier/internal/anonymizer"
	"msg-deidentifier/internal/cli"
	"msg-deidentifier/internal/config"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "Error:", ee.err)
			}
			stop()
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(cli.ExitFailure)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "deidentify",
		Short: "De-identify HL7 v2, FHIR JSON and DICOM messages",
		Long: `deidentify rewrites healthcare messages so that regulated identifiers are
replaced by stable pseudonyms and dates are shifted per subject.

The same salt always produces the same pseudonyms and date offsets. Keep it
secret and reuse it for every batch that must stay linkable; without it the
output cannot be linked back to the source.

Settings are read from flags, DEID_* environment variables and
.deidentify.yaml in the working or home directory, in that order.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default .deidentify.yaml)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", "auto", "Log format: auto, console or json")
	pf.String("log-file", "", "Also write JSON logs to this rotated file")
	pf.Bool("no-color", false, "Disable colored output")

	root.AddCommand(
		newRunCommand(&cfgFile, false),
		newRunCommand(&cfgFile, true),
		newSaltCommand(),
	)
	return root
}

func newRunCommand(cfgFile *string, preview bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "De-identify a message file, or every message file under --in, into --out",
		Example: `  deidentify run --in ./inbound --out ./deidentified --salt "$DEID_SALT"
  deidentify run --in ./inbound/adt.hl7 --out ./clean/adt.hl7 --salt "$DEID_SALT"
  deidentify run --in ./inbound --out ./out --date-shift -30d --keep-ids GeoSubdivision,PID.7
  deidentify run --in ./inbound --out ./out --report run.json --metrics-file run.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			if preview {
				v.Set("preview", true)
			}
			cfg, err := config.Load(v, cmd.Flags(), *cfgFile)
			if err != nil {
				return &exitErr{code: cli.ExitFailure, err: err}
			}
			code, err := cli.NewRunner().Run(cmd.Context(), cfg)
			if err != nil || code != cli.ExitOK {
				return &exitErr{code: code, err: err}
			}
			return nil
		},
	}
	if preview {
		cmd.Use = "preview"
		cmd.Short = "Show the changes a run would make without writing anything"
		cmd.Example = `  deidentify preview --in ./inbound/adt.hl7
  deidentify preview --in ./inbound --sample-size 3`
	}
	addRunFlags(cmd.Flags(), preview)
	return cmd
}

func addRunFlags(f *pflag.FlagSet, preview bool) {
	d := anonymizer.DefaultOptions()

	f.StringP("in", "i", "", "Input file or directory")
	f.StringP("salt", "k", "", "Secret salt for pseudonyms and date offsets (see deidentify salt)")
	f.String("date-shift", "", "Shift every date by a fixed offset, e.g. +30d or -7d")
	f.Int("date-shift-range", d.DateShiftRangeDays, "Maximum per-subject date offset in days")
	f.StringSlice("keep-ids", nil, "Identifier categories or field paths to leave unchanged")
	f.Bool("preserve-relationships", d.PreserveRelationships, "Map equal values to equal pseudonyms across subjects")
	f.String("subject-field", "", "Comma-separated field selectors that identify the subject")
	f.String("standard", "", "Force a message standard: hl7, fhir or dicom")
	f.Bool("residual-scan", false, "Scan unmapped fields for identifier patterns")
	f.IntP("concurrency", "j", 0, "Files processed in parallel (0 = number of CPUs)")
	f.Int("sample-size", d.SampleSize, "Changes sampled per file in previews and reports")
	f.Int("redact-rows", d.RedactRows, "Pixel rows blanked at the top of ultrasound images")
	f.BoolP("recursive", "r", d.Recursive, "Search subdirectories")
	f.String("report", "", "Write a JSON report to this file")
	f.String("metrics-file", "", "Write Prometheus textfile metrics to this file")
	f.Bool("no-progress", false, "Disable the progress bar")
	if preview {
		return
	}
	f.StringP("out", "o", "", "Output file, or directory mirroring the input tree")
	f.BoolP("preview", "n", false, "Preview only, no files written")
	f.Bool("revalidate", false, "Re-parse every output and check that changed values are gone")
	f.Bool("resume", false, "Skip files finished by an earlier run with the same settings")
	f.String("error-log", "", "Failed file log (default <out>/errors.log)")
}

func newSaltCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "salt",
		Short: "Print a new random salt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			salt, err := cli.GenerateSecretKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), salt)
			return nil
		},
	}
}
