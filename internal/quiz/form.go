package quiz

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"sync"

	apperrors "github.com/terra-clan/quiz-engine/internal/errors"
)

// FormEntry is the mutable input state for one task. Under the packed
// protocol TaskID and Type are left empty and the task is resolved from
// Index at submit time.
type FormEntry struct {
	TaskID string
	Type   QuestionType
	Index  int
	Value  FormValue
}

// FormModel owns the form entries of one quiz attempt. It is safe for
// concurrent use; mu guards entry values and the lock flag.
type FormModel struct {
	protocol Protocol
	registry *Registry

	mu      sync.Mutex
	entries []*FormEntry
	locked  bool
}

// Protocol returns the answer protocol the model was built for
func (m *FormModel) Protocol() Protocol {
	return m.protocol
}

// Len returns the number of entries
func (m *FormModel) Len() int {
	return len(m.entries)
}

// Entries returns a snapshot of the entries in presentation order
func (m *FormModel) Entries() []FormEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *FormModel) snapshot() []FormEntry {
	out := make([]FormEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = *e
	}
	return out
}

// Set assigns the single value of a true-false, one-from-four, number or word entry
func (m *FormModel) Set(taskID, value string) error {
	return m.setByID(taskID, SingleValue{Value: value})
}

// Select assigns the selected options of an n-from-four entry
func (m *FormModel) Select(taskID string, options ...string) error {
	return m.setByID(taskID, MultiValue{Selected: options})
}

// SetRange assigns both bounds of an interval entry
func (m *FormModel) SetRange(taskID, from, to string) error {
	return m.setByID(taskID, RangeValue{From: from, To: to})
}

// SetAt assigns the value of the entry presenting the task at position index
func (m *FormModel) SetAt(index int, v FormValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Index == index {
			return m.assign(e, v)
		}
	}
	return fmt.Errorf("%w: position %d", ErrUnknownEntry, index)
}

func (m *FormModel) setByID(taskID string, v FormValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.TaskID == taskID && taskID != "" {
			return m.assign(e, v)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownEntry, taskID)
}

// assign requires m.mu
func (m *FormModel) assign(e *FormEntry, v FormValue) error {
	if m.locked {
		return ErrFormLocked
	}
	if reflect.TypeOf(e.Value) != reflect.TypeOf(v) {
		return fmt.Errorf("%w: entry %d holds %T, got %T", ErrValueShape, e.Index, e.Value, v)
	}
	e.Value = v
	return nil
}

// Validate checks that every entry is fully populated
func (m *FormModel) Validate() apperrors.ValidationErrors {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validate()
}

func (m *FormModel) validate() apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors
	for _, e := range m.entries {
		id := e.TaskID
		if id == "" {
			id = fmt.Sprintf("#%d", e.Index)
		}
		errs = append(errs, m.registry.Validate(id, e.Value)...)
	}
	return errs
}

// Lock freezes the model; further edits fail with ErrFormLocked
func (m *FormModel) Lock() {
	m.mu.Lock()
	m.locked = true
	m.mu.Unlock()
}

// freeze validates and locks in one step, so no edit lands between the
// check and the lock. An invalid model stays editable.
func (m *FormModel) freeze() apperrors.ValidationErrors {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errs := m.validate(); len(errs) > 0 {
		return errs
	}
	m.locked = true
	return nil
}

func (m *FormModel) unlock() {
	m.mu.Lock()
	m.locked = false
	m.mu.Unlock()
}

// Locked reports whether the model is frozen
func (m *FormModel) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Builder creates form models from task lists
type Builder struct {
	registry *Registry
	protocol Protocol
	logger   *slog.Logger
}

// NewBuilder creates a builder. A nil registry means DefaultRegistry,
// a nil logger means slog.Default().
func NewBuilder(registry *Registry, protocol Protocol, logger *slog.Logger) *Builder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if protocol == "" {
		protocol = ProtocolDirect
	}
	return &Builder{registry: registry, protocol: protocol, logger: logger}
}

// Build creates one entry per task with a registered type, in task order.
// Tasks with an unknown type are skipped and reported.
func (b *Builder) Build(tasks []Task) (*FormModel, Diagnostics) {
	model := &FormModel{
		protocol: b.protocol,
		registry: b.registry,
		entries:  make([]*FormEntry, 0, len(tasks)),
	}
	var diags Diagnostics

	for i, task := range tasks {
		variant, err := b.registry.Lookup(task.Type)
		if err != nil {
			b.logger.Warn("skipping task with unknown question type", "task_id", task.ID, "type", task.Type)
			diags.add(UnknownVariant, "build", task.ID, i, err)
			continue
		}

		entry := &FormEntry{Index: i, Value: variant.NewValue()}
		if b.protocol == ProtocolDirect {
			entry.TaskID = task.ID
			entry.Type = task.Type
		}
		model.entries = append(model.entries, entry)
	}

	return model, diags
}

// Shuffle returns a uniformly permuted copy of tasks (Fisher-Yates)
func Shuffle(tasks []Task, rng *rand.Rand) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
