package temporal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffset_WithinRange(t *testing.T) {
	for _, r := range []int{1, 30, 365} {
		for i := 0; i < 500; i++ {
			off := Offset(fmt.Sprintf("subject-%d", i), "test-salt", r)
			assert.GreaterOrEqual(t, off, -r)
			assert.LessOrEqual(t, off, r)
		}
	}
	assert.Equal(t, 0, Offset("anyone", "test-salt", 0))
}

func TestOffset_Deterministic(t *testing.T) {
	a := Offset("123456789", "test-salt", 30)
	assert.Equal(t, a, Offset("123456789", "test-salt", 30))
}

func TestOffset_CrossSubjectIndependence(t *testing.T) {
	same := 0
	for i := 0; i < 100; i++ {
		salt := fmt.Sprintf("trial-%d", i)
		if Offset("subject-A", salt, 365) == Offset("subject-B", salt, 365) {
			same++
		}
	}
	assert.LessOrEqual(t, same, 1)
}

func TestShifter_IntervalPreservation(t *testing.T) {
	s := Shifter{Salt: "test-salt", RangeDays: 365}
	dates := []string{"20200110", "20200301", "20211231"}

	var shifted []string
	for _, d := range dates {
		out, err := s.Shift(d, "subject-S")
		require.NoError(t, err)
		shifted = append(shifted, out)
	}

	for i := 1; i < len(dates); i++ {
		before := days(t, dates[i]) - days(t, dates[i-1])
		after := days(t, shifted[i]) - days(t, shifted[i-1])
		assert.Equal(t, before, after)
		assert.Greater(t, after, 0)
	}
}

func days(t *testing.T, v string) int {
	t.Helper()
	parsed, err := Parse(v)
	require.NoError(t, err)
	return int(parsed.Unix() / 86400)
}

func TestShifter_Fixed(t *testing.T) {
	n := 30
	s := Shifter{Salt: "test-salt", RangeDays: 365, Fixed: &n}
	assert.Equal(t, 30, s.OffsetFor("a"))
	assert.Equal(t, 30, s.OffsetFor("b"))

	out, err := s.Shift("2024-01-15", "a")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-14", out)
}

func TestShiftBy_Layouts(t *testing.T) {
	tests := []struct {
		in   string
		days int
		want string
	}{
		{"19800101", -1, "19791231"},
		{"20240228", 1, "20240229"},
		{"198001", 31, "198002"},
		{"1980", -1, "1979"},
		{"20200101120000", 10, "20200111120000"},
		{"20200101120000.123-0500", 1, "20200102120000.123-0500"},
		{"2020-01-31", 1, "2020-02-01"},
		{"2020-01", 40, "2020-02"},
		{"2020-01-31T23:59:00Z", 1, "2020-02-01T23:59:00Z"},
		{"2020-01-31T08:30:00.250+01:00", -31, "2019-12-31T08:30:00.250+01:00"},
		{" 20200101 ", 0, "20200101"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ShiftBy(tt.in, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShiftBy_Unparseable(t *testing.T) {
	for _, v := range []string{"", "yesterday", "2020/01/01", "20200231", "2020-13-01", "01/02/2020", "1980+0500"} {
		_, err := ShiftBy(v, 5)
		assert.ErrorIs(t, err, ErrUnparseableDate, v)
	}
}

func TestShiftDate(t *testing.T) {
	off := Offset("123456789", "test-salt", 30)
	want, err := ShiftBy("19800101", off)
	require.NoError(t, err)

	got, err := ShiftDate("19800101", "123456789", "test-salt", 30)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseShiftFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"+30d", 30, false},
		{"-7d", -7, false},
		{"14", 14, false},
		{"0D", 0, false},
		{"", 0, true},
		{"30 days", 0, true},
		{"+99999d", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseShiftFlag(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
