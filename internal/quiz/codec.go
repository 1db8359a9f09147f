package quiz

import (
	"fmt"
	"log/slog"
)

// Protocol identifies an answer encoding generation
type Protocol string

const (
	// ProtocolDirect carries task id and type on every form entry
	ProtocolDirect Protocol = "direct"
	// ProtocolPacked embeds the task position into each control value
	ProtocolPacked Protocol = "packed"
)

// ParseProtocol converts a configuration string into a Protocol
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case ProtocolDirect, "":
		return ProtocolDirect, nil
	case ProtocolPacked:
		return ProtocolPacked, nil
	default:
		return "", fmt.Errorf("unknown answer protocol: %q", s)
	}
}

// Codec turns a completed form model into wire answers. Entries that cannot
// be encoded are dropped and reported in Diagnostics; the error return is
// reserved for refusing the whole submission.
type Codec interface {
	Protocol() Protocol
	Encode(model *FormModel, tasks []Task) ([]Answer, Diagnostics, error)
}

// NewCodec returns the codec for a protocol
func NewCodec(p Protocol, registry *Registry, logger *slog.Logger) Codec {
	if p == ProtocolPacked {
		return NewPackedCodec(registry, logger)
	}
	return NewDirectCodec(registry, logger)
}

// DirectCodec encodes entries that already carry their task id and type
type DirectCodec struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDirectCodec creates the canonical codec
func NewDirectCodec(registry *Registry, logger *slog.Logger) *DirectCodec {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectCodec{registry: registry, logger: logger}
}

func (c *DirectCodec) Protocol() Protocol {
	return ProtocolDirect
}

// Encode transforms every entry into an Answer
func (c *DirectCodec) Encode(model *FormModel, tasks []Task) ([]Answer, Diagnostics, error) {
	if model.Protocol() != ProtocolDirect {
		return nil, nil, fmt.Errorf("%w: model uses %s, codec uses %s", ErrProtocolMismatch, model.Protocol(), ProtocolDirect)
	}

	answers := make([]Answer, 0, model.Len())
	var diags Diagnostics

	for _, entry := range model.Entries() {
		task, err := resolveByID(tasks, entry.TaskID)
		if err == nil && task.Type != entry.Type {
			err = fmt.Errorf("%w: entry type %s, task type %s", ErrUnresolvedTask, entry.Type, task.Type)
		}
		if err != nil {
			c.logger.Warn("dropping answer", "task_id", entry.TaskID, "error", err)
			diags.add(DecodeFailure, "encode", entry.TaskID, entry.Index, err)
			continue
		}

		answer, kind, err := encodeEntry(c.registry, task, entry.Value)
		if err != nil {
			c.logger.Warn("dropping answer", "task_id", task.ID, "type", task.Type, "error", err)
			diags.add(kind, "encode", task.ID, entry.Index, err)
			continue
		}
		answers = append(answers, answer)
	}

	return answers, diags, nil
}

func encodeEntry(registry *Registry, task Task, value FormValue) (Answer, FailureKind, error) {
	variant, err := registry.Lookup(task.Type)
	if err != nil {
		return Answer{}, UnknownVariant, err
	}
	payload, err := variant.Encode(value)
	if err != nil {
		return Answer{}, DecodeFailure, err
	}
	return Answer{ID: task.ID, Answer: payload}, "", nil
}

// resolveByID returns the single task with the given id
func resolveByID(tasks []Task, id string) (Task, error) {
	var found Task
	matches := 0
	for _, t := range tasks {
		if t.ID == id {
			found = t
			matches++
		}
	}
	switch {
	case id == "" || matches == 0:
		return Task{}, fmt.Errorf("%w: %q", ErrUnresolvedTask, id)
	case matches > 1:
		return Task{}, fmt.Errorf("%w: %q matches %d tasks", ErrUnresolvedTask, id, matches)
	}
	return found, nil
}
