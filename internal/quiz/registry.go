package quiz

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/terra-clan/quiz-engine/internal/errors"
)

// FormValue is the value a form entry collects. The set of shapes is closed:
// SingleValue, MultiValue and RangeValue.
type FormValue interface {
	formValue()
}

// SingleValue holds one required string
type SingleValue struct {
	Value string `json:"value" validate:"required"`
}

// MultiValue holds the selected options; an empty selection is valid
type MultiValue struct {
	Selected []string `json:"value"`
}

// RangeValue holds two independent required numeric fields.
// No ordering between From and To is enforced.
type RangeValue struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

func (SingleValue) formValue() {}
func (MultiValue) formValue()  {}
func (RangeValue) formValue()  {}

// Variant describes one question type: its initial form value, how that value
// becomes an answer payload, and how it travels through the packed protocol.
type Variant interface {
	Type() QuestionType
	NewValue() FormValue
	// Encode returns a Payload, or a []Payload for multi-valued variants
	Encode(v FormValue) (any, error)
	Pack(v FormValue) []string
	Unpack(values []string) (FormValue, error)
}

// Registry maps question type tags to variants
type Registry struct {
	variants map[QuestionType]Variant
	order    []QuestionType
	validate *validator.Validate
}

// NewRegistry creates a registry holding the given variants
func NewRegistry(variants ...Variant) *Registry {
	r := &Registry{
		variants: make(map[QuestionType]Variant),
		validate: newValidator(),
	}
	for _, v := range variants {
		r.Register(v)
	}
	return r
}

// DefaultRegistry returns a registry with the six built-in question types
func DefaultRegistry() *Registry {
	return NewRegistry(
		singleVariant{typ: TypeTrueFalse, convert: func(s string) (any, error) { return s == "true", nil }},
		singleVariant{typ: TypeOneFromFour, convert: asString},
		multiVariant{typ: TypeNFromFour},
		singleVariant{typ: TypeNumber, convert: func(s string) (any, error) { return ParseNumber(s) }},
		singleVariant{typ: TypeWord, convert: asString},
		rangeVariant{typ: TypeInterval},
	)
}

// Register adds or replaces a variant
func (r *Registry) Register(v Variant) {
	if _, exists := r.variants[v.Type()]; !exists {
		r.order = append(r.order, v.Type())
	}
	r.variants[v.Type()] = v
}

// Lookup returns the variant for a type tag
func (r *Registry) Lookup(t QuestionType) (Variant, error) {
	v, ok := r.variants[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, t)
	}
	return v, nil
}

// Types returns the registered type tags in registration order
func (r *Registry) Types() []QuestionType {
	out := make([]QuestionType, len(r.order))
	copy(out, r.order)
	return out
}

// Validate checks the required fields of a form value
func (r *Registry) Validate(taskID string, v FormValue) apperrors.ValidationErrors {
	if v == nil {
		return apperrors.ValidationErrors{{TaskID: taskID, Field: "value", Message: "is required", Rule: "required"}}
	}
	if err := r.validate.Struct(v); err != nil {
		return apperrors.ToValidationErrors(taskID, err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseNumber converts a raw form value into a finite float64
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return f, nil
}

func asString(s string) (any, error) {
	return s, nil
}

// --- Variants ---

type singleVariant struct {
	typ     QuestionType
	convert func(string) (any, error)
}

func (v singleVariant) Type() QuestionType  { return v.typ }
func (v singleVariant) NewValue() FormValue { return SingleValue{} }

func (v singleVariant) Encode(fv FormValue) (any, error) {
	sv, ok := fv.(SingleValue)
	if !ok {
		return nil, shapeError(v.typ, fv)
	}
	value, err := v.convert(sv.Value)
	if err != nil {
		return nil, err
	}
	return Payload{Value: value}, nil
}

func (v singleVariant) Pack(fv FormValue) []string {
	sv, _ := fv.(SingleValue)
	return []string{sv.Value}
}

func (v singleVariant) Unpack(values []string) (FormValue, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: %s expects one value, got %d", ErrMalformedPacked, v.typ, len(values))
	}
	return SingleValue{Value: values[0]}, nil
}

type multiVariant struct {
	typ QuestionType
}

func (v multiVariant) Type() QuestionType  { return v.typ }
func (v multiVariant) NewValue() FormValue { return MultiValue{} }

func (v multiVariant) Encode(fv FormValue) (any, error) {
	mv, ok := fv.(MultiValue)
	if !ok {
		return nil, shapeError(v.typ, fv)
	}
	payloads := make([]Payload, 0, len(mv.Selected))
	for _, s := range mv.Selected {
		payloads = append(payloads, Payload{Value: s})
	}
	return payloads, nil
}

// Pack emits one value per selection; an empty selection is packed as a
// single empty marker so the entry survives the round trip
func (v multiVariant) Pack(fv FormValue) []string {
	mv, _ := fv.(MultiValue)
	if len(mv.Selected) == 0 {
		return []string{""}
	}
	out := make([]string, len(mv.Selected))
	copy(out, mv.Selected)
	return out
}

func (v multiVariant) Unpack(values []string) (FormValue, error) {
	var selected []string
	for _, s := range values {
		if s == "" {
			continue
		}
		selected = append(selected, s)
	}
	return MultiValue{Selected: selected}, nil
}

type rangeVariant struct {
	typ QuestionType
}

func (v rangeVariant) Type() QuestionType  { return v.typ }
func (v rangeVariant) NewValue() FormValue { return RangeValue{} }

func (v rangeVariant) Encode(fv FormValue) (any, error) {
	rv, ok := fv.(RangeValue)
	if !ok {
		return nil, shapeError(v.typ, fv)
	}
	from, err := ParseNumber(rv.From)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := ParseNumber(rv.To)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	return Payload{Value: Interval{From: from, To: to}}, nil
}

func (v rangeVariant) Pack(fv FormValue) []string {
	rv, _ := fv.(RangeValue)
	return []string{rv.From + RangeSeparator + rv.To}
}

func (v rangeVariant) Unpack(values []string) (FormValue, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: %s expects one value, got %d", ErrMalformedPacked, v.typ, len(values))
	}
	parts := strings.Split(values[0], RangeSeparator)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: interval %q", ErrMalformedPacked, values[0])
	}
	return RangeValue{From: parts[0], To: parts[1]}, nil
}

func shapeError(t QuestionType, fv FormValue) error {
	return fmt.Errorf("%w: %s cannot hold %T", ErrValueShape, t, fv)
}
