package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// HL7 DT/DTM and DICOM DA/DT: YYYY[MM[DD[HH[MM[SS[.F]]]]]][+/-ZZZZ]
	compactRegex = regexp.MustCompile(`^(\d{4})(?:(\d{2})(?:(\d{2})(\d{2,6}(?:\.\d{1,6})?)?)?)?([+-]\d{4})?$`)
	// FHIR date, dateTime and instant: YYYY[-MM[-DD[Thh:mm:ss[.f][Z|+hh:mm]]]]
	isoRegex = regexp.MustCompile(`^(\d{4})(?:-(\d{2})(?:-(\d{2})(T\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:\d{2})?)?)?)?$`)
)

// layout records which parts a parsed value carried.
type layout struct {
	iso      bool
	hasMonth bool
	hasDay   bool
	rest     string
}

// ShiftBy moves value by days. Year and year-month values are anchored on
// their first day and rendered back at their original precision. The time
// of day and any zone suffix are copied unchanged.
func ShiftBy(value string, days int) (string, error) {
	trimmed := strings.TrimSpace(value)
	t, l, err := parse(trimmed)
	if err != nil {
		return "", err
	}
	return format(t.AddDate(0, 0, days), l), nil
}

// Parse reports the calendar day a value denotes, for interval checks.
func Parse(value string) (time.Time, error) {
	t, _, err := parse(strings.TrimSpace(value))
	return t, err
}

func parse(v string) (time.Time, layout, error) {
	var m []string
	var l layout
	switch {
	case len(v) > 4 && v[4] == '-':
		m = isoRegex.FindStringSubmatch(v)
		l.iso = true
	default:
		m = compactRegex.FindStringSubmatch(v)
		if m != nil {
			m[4] += m[5]
		}
	}
	if m == nil {
		return time.Time{}, l, fmt.Errorf("%w: %q", ErrUnparseableDate, v)
	}

	year, _ := strconv.Atoi(m[1])
	month, day := 1, 1
	if m[2] != "" {
		l.hasMonth = true
		month, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		l.hasDay = true
		day, _ = strconv.Atoi(m[3])
	}
	l.rest = m[4]
	if !l.hasDay && l.rest != "" {
		return time.Time{}, l, fmt.Errorf("%w: %q", ErrUnparseableDate, v)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject 20230231 and friends instead of normalizing them
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, l, fmt.Errorf("%w: %q", ErrUnparseableDate, v)
	}
	return t, l, nil
}

func format(t time.Time, l layout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d", t.Year())
	sep := ""
	if l.iso {
		sep = "-"
	}
	if l.hasMonth {
		fmt.Fprintf(&b, "%s%02d", sep, int(t.Month()))
	}
	if l.hasDay {
		fmt.Fprintf(&b, "%s%02d", sep, t.Day())
	}
	b.WriteString(l.rest)
	return b.String()
}
