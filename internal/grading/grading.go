package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/terra-clan/quiz-engine/internal/bank"
	"github.com/terra-clan/quiz-engine/internal/quiz"
)

// ErrUnknownTask is returned when a submission names a task the bank does not hold
var ErrUnknownTask = errors.New("unknown task")

// numericEpsilon absorbs float noise in exact numeric comparisons
const numericEpsilon = 1e-9

// Submission is one answer as received on the wire
type Submission struct {
	ID     string          `json:"_id"`
	Answer json.RawMessage `json:"answer"`
}

// Strategy computes a mark in [0,1] for a raw answer payload
type Strategy func(key bank.Key, payload json.RawMessage) (float64, error)

// Grader marks submissions against the bank's answer keys
type Grader struct {
	bank       *bank.Bank
	strategies map[quiz.QuestionType]Strategy
	logger     *slog.Logger
}

// NewGrader creates a grader with a strategy for every built-in question type
func NewGrader(b *bank.Bank, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{
		bank: b,
		strategies: map[quiz.QuestionType]Strategy{
			quiz.TypeTrueFalse:   gradeTrueFalse,
			quiz.TypeOneFromFour: gradeOneFromFour,
			quiz.TypeNFromFour:   gradeNFromFour,
			quiz.TypeNumber:      gradeNumber,
			quiz.TypeWord:        gradeWord,
			quiz.TypeInterval:    gradeInterval,
		},
		logger: logger,
	}
}

// Grade returns one result per submission, in submission order. A payload
// that cannot be decoded for its task type earns zero. An id the bank does
// not know fails the whole batch.
func (g *Grader) Grade(subs []Submission) ([]quiz.Result, error) {
	results := make([]quiz.Result, 0, len(subs))
	for _, s := range subs {
		entry, ok := g.bank.Get(s.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, s.ID)
		}
		strategy, ok := g.strategies[entry.Task.Type]
		if !ok {
			return nil, fmt.Errorf("no grading strategy for %s", entry.Task.Type)
		}

		mark, err := strategy(entry.Key, s.Answer)
		if err != nil {
			g.logger.Debug("malformed answer payload", "task_id", s.ID, "type", entry.Task.Type, "error", err)
			mark = 0
		}
		results = append(results, quiz.Result{ID: s.ID, Mark: clamp(mark)})
	}
	return results, nil
}

func gradeTrueFalse(key bank.Key, payload json.RawMessage) (float64, error) {
	var p struct {
		Value bool `json:"value"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	return boolMark(p.Value == key.Bool), nil
}

func gradeOneFromFour(key bank.Key, payload json.RawMessage) (float64, error) {
	s, err := decodeString(payload)
	if err != nil {
		return 0, err
	}
	return boolMark(s == key.Text), nil
}

func gradeWord(key bank.Key, payload json.RawMessage) (float64, error) {
	s, err := decodeString(payload)
	if err != nil {
		return 0, err
	}
	return boolMark(normalize(s) == normalize(key.Text)), nil
}

func gradeNumber(key bank.Key, payload json.RawMessage) (float64, error) {
	var p struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	return boolMark(math.Abs(p.Value-key.Number) <= key.Tolerance+numericEpsilon), nil
}

// gradeNFromFour gives partial credit for each correct option selected and
// zero as soon as one wrong option is selected
func gradeNFromFour(key bank.Key, payload json.RawMessage) (float64, error) {
	var p []struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	if len(key.Options) == 0 {
		return 0, nil
	}

	correct := make(map[string]bool, len(key.Options))
	for _, o := range key.Options {
		correct[o] = true
	}
	hit := make(map[string]bool, len(p))
	for _, sel := range p {
		if !correct[sel.Value] {
			return 0, nil
		}
		hit[sel.Value] = true
	}
	return float64(len(hit)) / float64(len(correct)), nil
}

// gradeInterval scores the intersection over union of the answered and
// expected ranges. Reversed bounds are normalized first.
func gradeInterval(key bank.Key, payload json.RawMessage) (float64, error) {
	var p struct {
		Value quiz.Interval `json:"value"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	from, to := p.Value.From, p.Value.To
	if from > to {
		from, to = to, from
	}

	union := math.Max(to, key.To) - math.Min(from, key.From)
	if union <= numericEpsilon {
		return boolMark(math.Abs(from-key.From) <= numericEpsilon), nil
	}
	overlap := math.Min(to, key.To) - math.Max(from, key.From)
	if overlap <= 0 {
		return 0, nil
	}
	return overlap / union, nil
}

func decodeString(payload json.RawMessage) (string, error) {
	var p struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", err
	}
	return p.Value, nil
}

// normalize casefolds and collapses whitespace
func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}

func boolMark(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func clamp(m float64) float64 {
	if math.IsNaN(m) || m < 0 {
		return 0
	}
	if m > 1 {
		return 1
	}
	return m
}
