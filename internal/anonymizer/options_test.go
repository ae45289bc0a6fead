package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msg-deidentifier/internal/phi"
)

func TestOptions_Validate(t *testing.T) {
	big := 4000
	tests := []struct {
		name   string
		modify func(*Options)
		errMsg string
	}{
		{"defaults with salt", func(o *Options) {}, ""},
		{"missing salt", func(o *Options) { o.Salt = "" }, "Salt is required"},
		{"preview without salt", func(o *Options) { o.Salt = ""; o.PreviewMode = true }, ""},
		{"zero range", func(o *Options) { o.DateShiftRangeDays = 0 }, "DateShiftRangeDays must be at least 1"},
		{"range too wide", func(o *Options) { o.DateShiftRangeDays = 5000 }, "DateShiftRangeDays must be at most 3650"},
		{"fixed shift too wide", func(o *Options) { o.FixedDateShiftDays = &big }, "FixedDateShiftDays must be at most 3650"},
		{"unknown method", func(o *Options) { o.Method = "LimitedDataSet" }, "Method must be one of"},
		{"unknown standard", func(o *Options) { o.Standard = "X12" }, "Standard must be one of"},
		{"negative concurrency", func(o *Options) { o.Concurrency = -1 }, "Concurrency must be at least 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Salt = "test-salt"
			tt.modify(&opts)

			err := opts.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, phi.IsKind(err, phi.KindConfiguration))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestOptions_Selectors(t *testing.T) {
	defaults := []string{"PID.3.1"}
	opts := DefaultOptions()
	assert.Equal(t, defaults, opts.Selectors(defaults))

	opts.SubjectField = " PID.18.1, ,PID.2.1"
	assert.Equal(t, []string{"PID.18.1", "PID.2.1"}, opts.Selectors(defaults))
}

func TestOptions_Shifter(t *testing.T) {
	n := -12
	opts := DefaultOptions()
	opts.Salt = "s"
	opts.FixedDateShiftDays = &n
	assert.Equal(t, -12, opts.Shifter().OffsetFor("anyone"))
}
