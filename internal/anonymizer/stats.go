package anonymizer

import (
	"encoding/json"
	"time"
)

// Statistics aggregates counters for a document, a file or a batch. It is a
// monoid under Combine with the zero value as identity, so per-file results
// can be reduced in any order.
type Statistics struct {
	TotalMessages      int
	FieldsModified     int
	DatesShifted       int
	ProcessingDuration time.Duration

	// subjects holds HMAC digests of subject keys, never the keys.
	subjects map[string]struct{}
}

// AddSubject records a subject digest.
func (s *Statistics) AddSubject(digest string) {
	if digest == "" {
		return
	}
	if s.subjects == nil {
		s.subjects = make(map[string]struct{})
	}
	s.subjects[digest] = struct{}{}
}

// UniqueSubjects returns the number of distinct subjects seen.
func (s Statistics) UniqueSubjects() int {
	return len(s.subjects)
}

// Combine returns the field-wise sum of s and o with the subject sets
// unioned. Neither operand is modified.
func (s Statistics) Combine(o Statistics) Statistics {
	out := Statistics{
		TotalMessages:      s.TotalMessages + o.TotalMessages,
		FieldsModified:     s.FieldsModified + o.FieldsModified,
		DatesShifted:       s.DatesShifted + o.DatesShifted,
		ProcessingDuration: s.ProcessingDuration + o.ProcessingDuration,
	}
	if n := len(s.subjects) + len(o.subjects); n > 0 {
		out.subjects = make(map[string]struct{}, n)
		for k := range s.subjects {
			out.subjects[k] = struct{}{}
		}
		for k := range o.subjects {
			out.subjects[k] = struct{}{}
		}
	}
	return out
}

type statisticsJSON struct {
	TotalMessages        int   `json:"totalMessages"`
	FieldsModified       int   `json:"fieldsModified"`
	DatesShifted         int   `json:"datesShifted"`
	UniqueSubjects       int   `json:"uniqueSubjects"`
	ProcessingDurationMs int64 `json:"processingDurationMs"`
}

// MarshalJSON renders the subject set as a count.
func (s Statistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(statisticsJSON{
		TotalMessages:        s.TotalMessages,
		FieldsModified:       s.FieldsModified,
		DatesShifted:         s.DatesShifted,
		UniqueSubjects:       s.UniqueSubjects(),
		ProcessingDurationMs: s.ProcessingDuration.Milliseconds(),
	})
}
