package quiz

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	// PackedSeparator splits a packed control value into task position and raw value
	PackedSeparator = "|~|"
	// RangeSeparator splits the two bounds of a packed interval value
	RangeSeparator = ";"
)

// PackedCodec is the legacy codec. Every form control value carries the
// position of its task, so entries need no task id until submit time.
type PackedCodec struct {
	registry *Registry
	logger   *slog.Logger
}

// NewPackedCodec creates the legacy codec
func NewPackedCodec(registry *Registry, logger *slog.Logger) *PackedCodec {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PackedCodec{registry: registry, logger: logger}
}

func (c *PackedCodec) Protocol() Protocol {
	return ProtocolPacked
}

// Pack renders the model into raw control values of the form
// "<position>|~|<value>", in entry order. Values containing PackedSeparator,
// or interval bounds containing RangeSeparator, do not survive Unpack and
// fail with ErrMalformedPacked.
func (c *PackedCodec) Pack(model *FormModel, tasks []Task) []string {
	var controls []string
	for _, entry := range model.Entries() {
		if entry.Index < 0 || entry.Index >= len(tasks) {
			continue
		}
		variant, err := c.registry.Lookup(tasks[entry.Index].Type)
		if err != nil {
			continue
		}
		prefix := strconv.Itoa(entry.Index) + PackedSeparator
		for _, v := range variant.Pack(entry.Value) {
			controls = append(controls, prefix+v)
		}
	}
	return controls
}

// Unpack groups raw control values by task position, in the order positions
// first appear, and rebuilds a packed form model. Controls that cannot be
// parsed or resolved are dropped and reported.
func (c *PackedCodec) Unpack(controls []string, tasks []Task) (*FormModel, Diagnostics) {
	var diags Diagnostics
	var order []int
	grouped := make(map[int][]string)

	for _, raw := range controls {
		parts := strings.Split(raw, PackedSeparator)
		if len(parts) != 2 {
			err := fmt.Errorf("%w: %q has %d segments", ErrMalformedPacked, raw, len(parts))
			c.logger.Warn("dropping packed value", "value", raw, "error", err)
			diags.add(DecodeFailure, "unpack", "", -1, err)
			continue
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil {
			err = fmt.Errorf("%w: position %q", ErrMalformedPacked, parts[0])
			c.logger.Warn("dropping packed value", "value", raw, "error", err)
			diags.add(DecodeFailure, "unpack", "", -1, err)
			continue
		}
		if index < 0 || index >= len(tasks) {
			err = fmt.Errorf("%w: position %d out of range", ErrUnresolvedTask, index)
			c.logger.Warn("dropping packed value", "value", raw, "error", err)
			diags.add(DecodeFailure, "unpack", "", index, err)
			continue
		}
		if _, seen := grouped[index]; !seen {
			order = append(order, index)
		}
		grouped[index] = append(grouped[index], parts[1])
	}

	model := &FormModel{
		protocol: ProtocolPacked,
		registry: c.registry,
		entries:  make([]*FormEntry, 0, len(order)),
	}
	for _, index := range order {
		task := tasks[index]
		variant, err := c.registry.Lookup(task.Type)
		if err != nil {
			diags.add(UnknownVariant, "unpack", task.ID, index, err)
			continue
		}
		value, err := variant.Unpack(grouped[index])
		if err != nil {
			c.logger.Warn("dropping packed entry", "task_id", task.ID, "error", err)
			diags.add(DecodeFailure, "unpack", task.ID, index, err)
			continue
		}
		model.entries = append(model.entries, &FormEntry{Index: index, Value: value})
	}

	return model, diags
}

// Encode packs the model, unpacks it again and resolves each group to the
// task at its position
func (c *PackedCodec) Encode(model *FormModel, tasks []Task) ([]Answer, Diagnostics, error) {
	if model.Protocol() != ProtocolPacked {
		return nil, nil, fmt.Errorf("%w: model uses %s, codec uses %s", ErrProtocolMismatch, model.Protocol(), ProtocolPacked)
	}

	unpacked, diags := c.Unpack(c.Pack(model, tasks), tasks)
	answers := make([]Answer, 0, unpacked.Len())

	for _, entry := range unpacked.entries {
		task := tasks[entry.Index]
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
