// Package config resolves run settings from flags, DEID_* environment
// variables and an optional .deidentify.yaml file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"msg-deidentifier/internal/anonymizer"
	"msg-deidentifier/internal/logging"
	"msg-deidentifier/internal/phi"
	"msg-deidentifier/internal/temporal"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. DEID_SALT.
	EnvPrefix = "DEID"
	// FileName is the config file looked up in the working and home
	// directories when no --config is given.
	FileName = ".deidentify"
)

// Config holds every setting of a run. Keys match the long flag names.
type Config struct {
	In                    string   `mapstructure:"in"`
	Out                   string   `mapstructure:"out"`
	Salt                  string   `mapstructure:"salt"`
	DateShift             string   `mapstructure:"date-shift"`
	DateShiftRange        int      `mapstructure:"date-shift-range"`
	KeepIDs               []string `mapstructure:"keep-ids"`
	Preview               bool     `mapstructure:"preview"`
	Report                string   `mapstructure:"report"`
	MetricsFile           string   `mapstructure:"metrics-file"`
	ErrorLog              string   `mapstructure:"error-log"`
	Concurrency           int      `mapstructure:"concurrency"`
	ResidualScan          bool     `mapstructure:"residual-scan"`
	Revalidate            bool     `mapstructure:"revalidate"`
	Resume                bool     `mapstructure:"resume"`
	Recursive             bool     `mapstructure:"recursive"`
	PreserveRelationships bool     `mapstructure:"preserve-relationships"`
	SubjectField          string   `mapstructure:"subject-field"`
	Standard              string   `mapstructure:"standard"`
	SampleSize            int      `mapstructure:"sample-size"`
	RedactRows            int      `mapstructure:"redact-rows"`
	LogLevel              string   `mapstructure:"log-level"`
	LogFormat             string   `mapstructure:"log-format"`
	LogFile               string   `mapstructure:"log-file"`
	NoColor               bool     `mapstructure:"no-color"`
	NoProgress            bool     `mapstructure:"no-progress"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// keys lists every setting so environment variables are seen by Unmarshal
// even when no flag or default declares the key.
var keys = []string{
	"in", "out", "salt", "date-shift", "date-shift-range", "keep-ids",
	"preview", "report", "metrics-file", "error-log", "concurrency",
	"residual-scan", "revalidate", "resume", "recursive",
	"preserve-relationships", "subject-field", "standard", "sample-size",
	"redact-rows", "log-level", "log-format", "log-file", "no-color",
	"no-progress",
}

// SetDefaults registers the defaults of a run with no flags given.
func SetDefaults(v *viper.Viper) {
	d := anonymizer.DefaultOptions()
	v.SetDefault("date-shift-range", d.DateShiftRangeDays)
	v.SetDefault("preserve-relationships", d.PreserveRelationships)
	v.SetDefault("recursive", d.Recursive)
	v.SetDefault("sample-size", d.SampleSize)
	v.SetDefault("redact-rows", d.RedactRows)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", logging.FormatAuto)
}

// Load reads cfgFile (or the default config file when present), the
// environment and the flags of fs into a Config. A missing default file is
// not an error; a missing explicit file is.
func Load(v *viper.Viper, fs *pflag.FlagSet, cfgFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, phi.ConfigurationError("bind environment", err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, phi.ConfigurationError("bind flags", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, phi.ConfigurationError("read config", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, phi.ConfigurationError("decode config", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.KeepIDs = splitList(cfg.KeepIDs)
	return cfg, nil
}

// splitList flattens comma-separated entries coming from the environment or
// a YAML string.
func splitList(entries []string) []string {
	parts := lo.FlatMap(entries, func(e string, _ int) []string {
		return strings.Split(e, ",")
	})
	return lo.Compact(lo.Map(parts, func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
}

// Validate checks the paths a run needs. Preview only needs an input.
func (c *Config) Validate() error {
	if c.In == "" {
		return phi.ConfigurationError("validate config", errors.New("--in is required"))
	}
	if !c.Preview && c.Out == "" {
		return phi.ConfigurationError("validate config", errors.New("--out is required unless --preview is set"))
	}
	return nil
}

// Options converts the configuration to engine options. The result still
// goes through Options.Validate in the engine.
func (c *Config) Options() (anonymizer.Options, error) {
	opts := anonymizer.DefaultOptions()
	opts.Salt = c.Salt
	opts.DateShiftRangeDays = c.DateShiftRange
	opts.PreviewMode = c.Preview
	opts.GenerateReport = c.Report != ""
	opts.PreserveRelationships = c.PreserveRelationships
	opts.SubjectField = c.SubjectField
	opts.ResidualScan = c.ResidualScan
	opts.Revalidate = c.Revalidate
	opts.Resume = c.Resume
	opts.Recursive = c.Recursive
	opts.Concurrency = c.Concurrency
	opts.SampleSize = c.SampleSize
	opts.RedactRows = c.RedactRows

	if c.DateShift != "" {
		days, err := temporal.ParseShiftFlag(c.DateShift)
		if err != nil {
			return opts, phi.ConfigurationError("parse --date-shift", err)
		}
		opts.FixedDateShiftDays = &days
	}

	if c.Standard != "" {
		std, err := phi.ParseStandard(c.Standard)
		if err != nil {
			return opts, phi.ConfigurationError("parse --standard", err)
		}
		opts.Standard = std
	}

	unknown := lo.Filter(c.KeepIDs, func(e string, _ int) bool {
		_, isCategory := phi.ParseCategory(e)
		return !isCategory && !strings.Contains(e, ".")
	})
	if len(unknown) > 0 {
		return opts, phi.ConfigurationError("parse --keep-ids",
			fmt.Errorf("%s: not an identifier category or field path", strings.Join(unknown, ", ")))
	}
	opts.KeepIdentifiers = c.KeepIDs
	return opts, nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 3,
	}
}
