package quiz

import (
	"fmt"
	"math"
	"slices"
)

// Score is the aggregate of one scored attempt
type Score struct {
	Score      float64 `json:"score"`
	Total      float64 `json:"total"`
	Percentage int     `json:"percentage"`
}

func (s Score) String() string {
	return fmt.Sprintf("%.2f / %.2f (%d%%)", s.Score, s.Total, s.Percentage)
}

// Aggregate sums the marks of results. Total is the number of results.
func Aggregate(results []Result) (Score, error) {
	return AggregateOver(results, len(results))
}

// AggregateOver sums the marks of results against a fixed number of
// questions. Questions without a result count as zero. A total smaller than
// len(results) is raised to len(results).
func AggregateOver(results []Result, total int) (Score, error) {
	if total < len(results) {
		total = len(results)
	}
	if total == 0 {
		return Score{}, ErrNoQuestionsAnswered
	}

	// summing in sorted order keeps the float result independent of result order
	marks := make([]float64, len(results))
	for i, r := range results {
		marks[i] = r.Mark
	}
	slices.Sort(marks)

	var sum float64
	for _, m := range marks {
		sum += m
	}

	return Score{
		Score:      sum,
		Total:      float64(total),
		Percentage: int(math.Floor(sum*100/float64(total) + 0.5)),
	}, nil
}
