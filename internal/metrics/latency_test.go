package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndSummarize(t *testing.T) {
	r := NewLatencyRecorder()
	for i := int64(1); i <= 100; i++ {
		r.Record("gpt-4o", i*10)
	}
	r.Record("deepseek-chat", 500)

	sums := r.Summaries()
	require.Contains(t, sums, "gpt-4o")
	require.Contains(t, sums, "deepseek-chat")

	s := sums["gpt-4o"]
	assert.Equal(t, int64(100), s.Count)
	assert.InDelta(t, 505, s.AvgMs, 10)
	assert.InDelta(t, 950, s.P95Ms, 20)
	assert.InDelta(t, 990, s.P99Ms, 20)
}

func TestRecordClampsOutOfRange(t *testing.T) {
	r := NewLatencyRecorder()
	r.Record("m", 0)
	r.Record("m", 10_000_000)

	s := r.Summaries()["m"]
	require.NotNil(t, s)
	assert.Equal(t, int64(2), s.Count)
	assert.LessOrEqual(t, s.P99Ms, int64(121_000))
}

func TestEmptyRecorder(t *testing.T) {
	r := NewLatencyRecorder()
	assert.Empty(t, r.Summaries())
}
