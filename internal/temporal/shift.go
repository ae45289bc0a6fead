// Package temporal shifts dates by a per-subject offset derived from the run
// salt. All dates of one subject move by the same number of days, so
// intervals between them survive while absolute dates do not.
package temporal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxRangeDays bounds both the derived range and a fixed shift.
const MaxRangeDays = 3650

// ErrUnparseableDate is returned for values that match none of the supported
// date layouts.
var ErrUnparseableDate = errors.New("unparseable date")

var shiftFlagRegex = regexp.MustCompile(`^([+-]?)(\d+)([dD]?)$`)

// Offset returns the signed day offset for subjectKey in
// [-rangeDays, +rangeDays].
func Offset(subjectKey, salt string, rangeDays int) int {
	if rangeDays <= 0 {
		return 0
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(subjectKey))
	sum := mac.Sum(nil)
	span := uint64(2*rangeDays + 1)
	return int(binary.BigEndian.Uint64(sum[:8])%span) - rangeDays
}

// Shifter applies per-subject offsets. When Fixed is set it replaces the
// derivation for every subject.
type Shifter struct {
	Salt      string
	RangeDays int
	Fixed     *int
}

// OffsetFor returns the offset applied to every date of subjectKey.
func (s Shifter) OffsetFor(subjectKey string) int {
	if s.Fixed != nil {
		return *s.Fixed
	}
	return Offset(subjectKey, s.Salt, s.RangeDays)
}

// Shift moves value by the subject's offset, keeping its layout and precision.
func (s Shifter) Shift(value, subjectKey string) (string, error) {
	return ShiftBy(value, s.OffsetFor(subjectKey))
}

// ShiftDate shifts value by the offset derived for subjectKey.
func ShiftDate(value, subjectKey, salt string, rangeDays int) (string, error) {
	return Shifter{Salt: salt, RangeDays: rangeDays}.Shift(value, subjectKey)
}

// ParseShiftFlag parses a fixed shift such as "+30d", "-7d" or "14".
func ParseShiftFlag(s string) (int, error) {
	m := shiftFlagRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid date shift %q: expected ±Nd", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, fmt.Errorf("invalid date shift %q: %w", s, err)
	}
	if n > MaxRangeDays {
		return 0, fmt.Errorf("date shift %q exceeds %d days", s, MaxRangeDays)
	}
	if m[1] == "-" {
		n = -n
	}
	return n, nil
}
