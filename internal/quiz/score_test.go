package quiz

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marks(ms ...float64) []Result {
	out := make([]Result, len(ms))
	for i, m := range ms {
		out[i] = Result{ID: string(rune('a' + i)), Mark: m}
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		results    []Result
		score      float64
		total      float64
		percentage int
	}{
		{name: "one of two", results: marks(1, 0), score: 1, total: 2, percentage: 50},
		{name: "all correct", results: marks(1, 1, 1), score: 3, total: 3, percentage: 100},
		{name: "all wrong", results: marks(0, 0), score: 0, total: 2, percentage: 0},
		{name: "partial credit", results: marks(0.5), score: 0.5, total: 1, percentage: 50},
		{name: "rounds down", results: marks(1, 0, 0), score: 1, total: 3, percentage: 33},
		{name: "rounds up", results: marks(1, 1, 0), score: 2, total: 3, percentage: 67},
		{name: "half rounds up", results: marks(1, 0, 0, 0, 0, 0, 0, 0), score: 1, total: 8, percentage: 13},
		{name: "fractional marks", results: marks(0.25, 0.75, 0.5, 1), score: 2.5, total: 4, percentage: 63},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Aggregate(tc.results)
			require.NoError(t, err)
			assert.Equal(t, tc.score, got.Score)
			assert.Equal(t, tc.total, got.Total)
			assert.Equal(t, tc.percentage, got.Percentage)
		})
	}
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, ErrNoQuestionsAnswered)

	_, err = AggregateOver(nil, 0)
	assert.ErrorIs(t, err, ErrNoQuestionsAnswered)
}

func TestAggregateOrderIndependent(t *testing.T) {
	results := marks(0.1, 0.7, 0.2, 1, 0.3)
	first, err := Aggregate(results)
	require.NoError(t, err)

	reversed := slices.Clone(results)
	slices.Reverse(reversed)
	second, err := Aggregate(reversed)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	again, err := Aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestAggregateOver(t *testing.T) {
	got, err := AggregateOver(marks(1), 4)
	require.NoError(t, err)
	assert.Equal(t, Score{Score: 1, Total: 4, Percentage: 25}, got)

	got, err = AggregateOver(nil, 2)
	require.NoError(t, err)
	assert.Equal(t, Score{Score: 0, Total: 2, Percentage: 0}, got)

	got, err = AggregateOver(marks(1, 1), 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Total)
}

func TestScoreString(t *testing.T) {
	assert.Equal(t, "1.00 / 2.00 (50%)", Score{Score: 1, Total: 2, Percentage: 50}.String())
	assert.Equal(t, "2.50 / 4.00 (63%)", Score{Score: 2.5, Total: 4, Percentage: 63}.String())
}
