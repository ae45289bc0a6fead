package anonymizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stats(messages, fields int, subjects ...string) Statistics {
	s := Statistics{TotalMessages: messages, FieldsModified: fields, DatesShifted: 1, ProcessingDuration: time.Millisecond}
	for _, d := range subjects {
		s.AddSubject(d)
	}
	return s
}

func TestStatistics_Combine(t *testing.T) {
	a := stats(1, 4, "s1")
	b := stats(2, 3, "s1", "s2")
	c := stats(1, 1, "s3")

	assert.Equal(t, a, a.Combine(Statistics{}), "zero value is the identity")
	assert.Equal(t, a, Statistics{}.Combine(a))
	assert.Equal(t, a.Combine(b).Combine(c), a.Combine(b.Combine(c)))

	sum := a.Combine(b)
	assert.Equal(t, 3, sum.TotalMessages)
	assert.Equal(t, 7, sum.FieldsModified)
	assert.Equal(t, 2, sum.DatesShifted)
	assert.Equal(t, 2, sum.UniqueSubjects())
	assert.Equal(t, 2*time.Millisecond, sum.ProcessingDuration)

	// operands are untouched
	assert.Equal(t, 1, a.UniqueSubjects())
}

func TestStatistics_AddSubjectIgnoresEmpty(t *testing.T) {
	var s Statistics
	s.AddSubject("")
	assert.Zero(t, s.UniqueSubjects())
}

func TestStatistics_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(stats(2, 5, "a", "b"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalMessages":2,"fieldsModified":5,"datesShifted":1,"uniqueSubjects":2,"processingDurationMs":1}`, string(raw))
}
