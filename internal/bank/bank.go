package bank

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/terra-clan/quiz-engine/internal/quiz"
)

// ErrInvalidKey is returned when a task's answer key does not fit its type
var ErrInvalidKey = errors.New("invalid answer key")

// Key is the normalized answer key of a task. Which fields are meaningful
// depends on the task type.
type Key struct {
	Bool      bool
	Text      string
	Number    float64
	Options   []string
	From      float64
	To        float64
	Tolerance float64
}

// Entry is a task together with its answer key
type Entry struct {
	Task quiz.Task
	Key  Key
}

// Bank holds the tasks served by the grading service
type Bank struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
	types   *quiz.Registry
	logger  *slog.Logger
}

// New creates an empty bank
func New(logger *slog.Logger) *Bank {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bank{
		entries: make(map[string]*Entry),
		types:   quiz.DefaultRegistry(),
		logger:  logger,
	}
}

type bankFile struct {
	Name  string     `yaml:"name"`
	Tasks []taskFile `yaml:"tasks"`
}

type taskFile struct {
	ID       string            `yaml:"id"`
	Type     quiz.QuestionType `yaml:"type"`
	Question quiz.Question     `yaml:"question"`
	Key      keyFile           `yaml:"key"`
}

type keyFile struct {
	Value     any      `yaml:"value"`
	Values    []string `yaml:"values"`
	From      *float64 `yaml:"from"`
	To        *float64 `yaml:"to"`
	Tolerance float64  `yaml:"tolerance"`
}

// LoadFromDir loads every YAML file in dir and its direct subdirectories
func (b *Bank) LoadFromDir(dir string) error {
	b.logger.Info("loading task bank", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to open bank dir: %w", err)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", filepath.Join("*", "*.yaml"), filepath.Join("*", "*.yml")} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	slices.Sort(files)

	loaded := 0
	for _, file := range files {
		n, err := b.LoadFromFile(file)
		if err != nil {
			b.logger.Warn("failed to load bank file", "file", file, "error", err)
			continue
		}
		loaded += n
	}

	b.logger.Info("task bank loaded", "tasks", loaded, "files", len(files))
	return nil
}

// LoadFromFile loads the tasks of a single YAML file and returns how many
// were accepted. Tasks with an unknown type or an unusable key are skipped.
func (b *Bank) LoadFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	var bf bankFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return 0, fmt.Errorf("failed to parse YAML: %w", err)
	}

	accepted := 0
	for i, tf := range bf.Tasks {
		if _, err := b.types.Lookup(tf.Type); err != nil {
			b.logger.Warn("skipping task with unknown question type", "file", path, "index", i, "type", tf.Type)
			continue
		}
		key, err := normalizeKey(tf)
		if err != nil {
			b.logger.Warn("skipping task with invalid key", "file", path, "index", i, "error", err)
			continue
		}

		id := tf.ID
		if id == "" {
			id = uuid.NewString()
		}
		b.Add(Entry{
			Task: quiz.Task{ID: id, Type: tf.Type, Question: tf.Question},
			Key:  key,
		})
		accepted++
	}

	return accepted, nil
}

// Add stores an entry, replacing any entry with the same task id
func (b *Bank) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[e.Task.ID]; exists {
		b.logger.Warn("replacing duplicate task", "task_id", e.Task.ID)
	} else {
		b.order = append(b.order, e.Task.ID)
	}
	b.entries[e.Task.ID] = &e
}

// Get returns the entry for a task id
func (b *Bank) Get(id string) (*Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	return e, ok
}

// Tasks returns all tasks, without keys, in load order
func (b *Bank) Tasks() []quiz.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]quiz.Task, 0, len(b.order))
	for _, id := range b.order {
		result = append(result, b.entries[id].Task)
	}
	return result
}

// Len returns the number of tasks
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

func normalizeKey(tf taskFile) (Key, error) {
	k := tf.Key
	switch tf.Type {
	case quiz.TypeTrueFalse:
		v, ok := k.Value.(bool)
		if !ok {
			return Key{}, fmt.Errorf("%w: %s needs a boolean value", ErrInvalidKey, tf.Type)
		}
		return Key{Bool: v}, nil

	case quiz.TypeOneFromFour:
		s, ok := k.Value.(string)
		if !ok || s == "" {
			return Key{}, fmt.Errorf("%w: %s needs a string value", ErrInvalidKey, tf.Type)
		}
		if len(tf.Question.Options) > 0 && !slices.Contains(tf.Question.Options, s) {
			return Key{}, fmt.Errorf("%w: %q is not an option", ErrInvalidKey, s)
		}
		return Key{Text: s}, nil

	case quiz.TypeWord:
		s, ok := k.Value.(string)
		if !ok || s == "" {
			return Key{}, fmt.Errorf("%w: %s needs a string value", ErrInvalidKey, tf.Type)
		}
		return Key{Text: s}, nil

	case quiz.TypeNumber:
		n, err := toFloat(k.Value)
		if err != nil {
			return Key{}, fmt.Errorf("%w: %s: %v", ErrInvalidKey, tf.Type, err)
		}
		return Key{Number: n, Tolerance: k.Tolerance}, nil

	case quiz.TypeNFromFour:
		if len(k.Values) == 0 {
			return Key{}, fmt.Errorf("%w: %s needs at least one value", ErrInvalidKey, tf.Type)
		}
		return Key{Options: k.Values}, nil

	case quiz.TypeInterval:
		if k.From == nil || k.To == nil {
			return Key{}, fmt.Errorf("%w: %s needs from and to", ErrInvalidKey, tf.Type)
		}
		from, to := *k.From, *k.To
		if from > to {
			from, to = to, from
		}
		return Key{From: from, To: to}, nil
	}

	return Key{}, fmt.Errorf("%w: unsupported type %s", ErrInvalidKey, tf.Type)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		return quiz.ParseNumber(n)
	case nil:
		return 0, errors.New("value is required")
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
}
