package quiz

// QuestionType is the wire tag of a question variant
type QuestionType string

const (
	TypeTrueFalse   QuestionType = "true-false-question"
	TypeOneFromFour QuestionType = "one-from-four-question"
	TypeNFromFour   QuestionType = "n-from-four-question"
	TypeNumber      QuestionType = "number-question"
	TypeWord        QuestionType = "word-question"
	TypeInterval    QuestionType = "interval-question"
)

// Task is a question definition as served by the grading service
type Task struct {
	ID       string       `json:"_id" yaml:"id"`
	Type     QuestionType `json:"type" yaml:"type"`
	Question Question     `json:"question" yaml:"question"`
}

// Question holds the prompt and, for choice variants, the options
type Question struct {
	Value   string   `json:"value" yaml:"value"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Payload is a single answer value on the wire
type Payload struct {
	Value any `json:"value"`
}

// Interval is the value of an interval-question payload
type Interval struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Answer is one submitted answer. Answer holds a Payload, or a []Payload
// for n-from-four-question.
type Answer struct {
	ID     string `json:"_id"`
	Answer any    `json:"answer"`
}

// Result is the mark returned by the grading service for one answer
type Result struct {
	ID   string  `json:"_id"`
	Mark float64 `json:"mark"`
}

// FindTask returns the task with the given id
func FindTask(tasks []Task, id string) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
