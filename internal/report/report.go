package report

import (
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/terra-clan/quiz-engine/internal/quiz"
)

const (
	SummarySheet = "Summary"
	MarksSheet   = "Marks"
	DroppedSheet = "Dropped"
)

// Meta identifies the attempt a report belongs to
type Meta struct {
	AttemptID   string
	GradingURL  string
	GeneratedAt time.Time
}

// Build renders a scored outcome as an xlsx workbook
func Build(outcome *quiz.Outcome, meta Meta) ([]byte, error) {
	if outcome == nil {
		return nil, fmt.Errorf("no outcome to report")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	summary := [][]any{
		{"Attempt", meta.AttemptID},
		{"Grading service", meta.GradingURL},
		{"Generated", meta.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Score", outcome.Score.Score},
		{"Total", outcome.Score.Total},
		{"Percentage", outcome.Score.Percentage},
		{"Answered", len(outcome.Answers)},
		{"Dropped", len(outcome.Dropped)},
	}
	if err := writeRows(f, SummarySheet, nil, summary); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(MarksSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	marks := make([][]any, 0, len(outcome.Breakdown))
	for _, line := range outcome.Breakdown {
		marks = append(marks, []any{line.ID, string(line.Type), line.Question, line.Mark})
	}
	if err := writeRows(f, MarksSheet, []string{"Task ID", "Type", "Question", "Mark"}, marks); err != nil {
		return nil, err
	}

	if len(outcome.Dropped) > 0 {
		if _, err := f.NewSheet(DroppedSheet); err != nil {
			return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
		}
		dropped := make([][]any, 0, len(outcome.Dropped))
		for _, d := range outcome.Dropped {
			var msg string
			if d.Err != nil {
				msg = d.Err.Error()
			}
			dropped = append(dropped, []any{string(d.Kind), d.Op, d.TaskID, d.Index, msg})
		}
		if err := writeRows(f, DroppedSheet, []string{"Kind", "Operation", "Task ID", "Entry", "Error"}, dropped); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the workbook to path
func Save(path string, outcome *quiz.Outcome, meta Meta) error {
	data, err := Build(outcome, meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	start := 1
	if len(headers) > 0 {
		for col, h := range headers {
			if err := setCell(f, sheet, col+1, 1, h); err != nil {
				return err
			}
		}
		start = 2
	}

	for i, row := range rows {
		for col, value := range row {
			if err := setCell(f, sheet, col+1, start+i, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
	}
	return nil
}
