package anonymizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"msg-deidentifier/internal/phi"
	"msg-deidentifier/internal/temporal"
)

// Method names the de-identification method applied to a run.
type Method string

const (
	// SafeHarborPlus transforms every Safe Harbor category with
	// relationship-preserving pseudonyms and per-subject date shifts.
	SafeHarborPlus Method = "SafeHarborPlus"
)

// PreviewSalt is used when a preview runs without a salt. Its pseudonyms are
// public and must not be used for real output.
const PreviewSalt = "deidentify-preview-salt"

// Options configures one run. It is immutable for the duration of the run
// and passed by value.
type Options struct {
	Salt                  string `validate:"required_unless=PreviewMode true"`
	DateShiftRangeDays    int    `validate:"min=1,max=3650"`
	FixedDateShiftDays    *int   `validate:"omitempty,min=-3650,max=3650"`
	Method                Method `validate:"oneof=SafeHarborPlus"`
	KeepIdentifiers       []string
	PreviewMode           bool
	GenerateReport        bool // sample changes per file for the report
	PreserveRelationships bool
	SubjectField          string
	ResidualScan          bool
	Revalidate            bool
	Resume                bool
	Recursive             bool
	Concurrency           int          `validate:"min=0,max=256"`
	SampleSize            int          `validate:"min=0,max=10000"`
	Standard              phi.Standard `validate:"omitempty,oneof=HL7 FHIR DICOM"`
	RedactRows            int          `validate:"min=0,max=4096"`
}

// DefaultOptions returns the options of a run with no flags given.
func DefaultOptions() Options {
	return Options{
		DateShiftRangeDays:    365,
		Method:                SafeHarborPlus,
		PreserveRelationships: true,
		Recursive:             true,
		SampleSize:            10,
		RedactRows:            75,
	}
}

var validate = validator.New()

// Validate checks the options. Failures are configuration errors and abort
// the run before any file is touched.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return phi.ConfigurationError("validate options", errors.New(strings.Join(msgs, "; ")))
		}
		return phi.ConfigurationError("validate options", err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required_unless":
		return fmt.Sprintf("%s is required outside preview mode", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Keep parses KeepIdentifiers.
func (o Options) Keep() phi.KeepSet {
	return phi.ParseKeepSet(o.KeepIdentifiers)
}

// Shifter returns the date shifter configured by the options.
func (o Options) Shifter() temporal.Shifter {
	return temporal.Shifter{
		Salt:      o.Salt,
		RangeDays: o.DateShiftRangeDays,
		Fixed:     o.FixedDateShiftDays,
	}
}

// Selectors returns the subject selectors: the SubjectField override when
// set, otherwise the codec defaults.
func (o Options) Selectors(defaults []string) []string {
	if strings.TrimSpace(o.SubjectField) == "" {
		return defaults
	}
	var out []string
	for _, s := range strings.Split(o.SubjectField, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
