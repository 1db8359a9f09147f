package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/terra-clan/quiz-engine/internal/quiz"
)

func sampleOutcome() *quiz.Outcome {
	return &quiz.Outcome{
		Score:   quiz.Score{Score: 1, Total: 2, Percentage: 50},
		Answers: []quiz.Answer{{ID: "a", Answer: quiz.Payload{Value: true}}},
		Results: []quiz.Result{{ID: "a", Mark: 1}},
		Dropped: quiz.Diagnostics{
			{Kind: quiz.DecodeFailure, Op: "encode", TaskID: "b", Index: 1, Err: errors.New("not a number")},
		},
		Breakdown: []quiz.MarkLine{
			{ID: "a", Type: quiz.TypeTrueFalse, Question: "Is water wet?", Mark: 1},
		},
	}
}

func TestBuild(t *testing.T) {
	data, err := Build(sampleOutcome(), Meta{
		AttemptID:   "attempt-1",
		GradingURL:  "http://localhost:3000",
		GeneratedAt: time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, MarksSheet, DroppedSheet}, f.GetSheetList())

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 8)
	assert.Equal(t, []string{"Attempt", "attempt-1"}, summary[0])
	assert.Equal(t, []string{"Generated", "2026-04-02T09:30:00Z"}, summary[2])
	assert.Equal(t, []string{"Percentage", "50"}, summary[5])
	assert.Equal(t, []string{"Dropped", "1"}, summary[7])

	marks, err := f.GetRows(MarksSheet)
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Equal(t, []string{"Task ID", "Type", "Question", "Mark"}, marks[0])
	assert.Equal(t, []string{"a", "true-false-question", "Is water wet?", "1"}, marks[1])

	dropped, err := f.GetRows(DroppedSheet)
	require.NoError(t, err)
	require.Len(t, dropped, 2)
	assert.Equal(t, []string{"decode_failure", "encode", "b", "1", "not a number"}, dropped[1])
}

func TestBuildWithoutDrops(t *testing.T) {
	outcome := sampleOutcome()
	outcome.Dropped = nil

	data, err := Build(outcome, Meta{AttemptID: "x", GeneratedAt: time.Now()})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, MarksSheet}, f.GetSheetList())
}

func TestBuildNilOutcome(t *testing.T) {
	_, err := Build(nil, Meta{})
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Save(path, sampleOutcome(), Meta{AttemptID: "attempt-1", GeneratedAt: time.Now()}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(SummarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", v)
}
