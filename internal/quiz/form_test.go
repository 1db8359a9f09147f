package quiz

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTasks() []Task {
	return []Task{
		{ID: "tf", Type: TypeTrueFalse, Question: Question{Value: "The sky is blue"}},
		{ID: "one", Type: TypeOneFromFour, Question: Question{Value: "Pick B", Options: []string{"A", "B", "C", "D"}}},
		{ID: "multi", Type: TypeNFromFour, Question: Question{Value: "Pick vowels", Options: []string{"a", "b", "c", "e"}}},
		{ID: "num", Type: TypeNumber, Question: Question{Value: "2 + 3"}},
		{ID: "word", Type: TypeWord, Question: Question{Value: "Capital of France"}},
		{ID: "range", Type: TypeInterval, Question: Question{Value: "Between 1 and 3"}},
	}
}

func TestBuilderBuild(t *testing.T) {
	tasks := append(sampleTasks(), Task{ID: "essay", Type: "essay-question"})

	model, diags := NewBuilder(nil, ProtocolDirect, discardLogger()).Build(tasks)

	assert.Equal(t, 6, model.Len())
	require.Len(t, diags, 1)
	assert.Equal(t, UnknownVariant, diags[0].Kind)
	assert.Equal(t, "essay", diags[0].TaskID)
	assert.Equal(t, 6, diags[0].Index)
	assert.ErrorIs(t, &diags[0], ErrUnknownVariant)

	entries := model.Entries()
	for i, e := range entries {
		assert.Equal(t, tasks[i].ID, e.TaskID)
		assert.Equal(t, tasks[i].Type, e.Type)
		assert.Equal(t, i, e.Index)
	}
	assert.IsType(t, SingleValue{}, entries[0].Value)
	assert.IsType(t, MultiValue{}, entries[2].Value)
	assert.IsType(t, RangeValue{}, entries[5].Value)
}

func TestBuilderPackedLeavesIdentityEmpty(t *testing.T) {
	model, diags := NewBuilder(nil, ProtocolPacked, discardLogger()).Build(sampleTasks())

	assert.Empty(t, diags)
	assert.Equal(t, ProtocolPacked, model.Protocol())
	for i, e := range model.Entries() {
		assert.Empty(t, e.TaskID)
		assert.Empty(t, e.Type)
		assert.Equal(t, i, e.Index)
	}
}

func TestBuilderEmptyTaskList(t *testing.T) {
	model, diags := NewBuilder(nil, "", discardLogger()).Build(nil)

	assert.Equal(t, 0, model.Len())
	assert.Empty(t, diags)
	assert.Equal(t, ProtocolDirect, model.Protocol())
}

func TestFormModelSetters(t *testing.T) {
	model, _ := NewBuilder(nil, ProtocolDirect, discardLogger()).Build(sampleTasks())

	require.NoError(t, model.Set("tf", "true"))
	require.NoError(t, model.Select("multi", "a", "e"))
	require.NoError(t, model.SetRange("range", "1", "3"))
	require.NoError(t, model.SetAt(3, SingleValue{Value: "5"}))

	entries := model.Entries()
	assert.Equal(t, SingleValue{Value: "true"}, entries[0].Value)
	assert.Equal(t, MultiValue{Selected: []string{"a", "e"}}, entries[2].Value)
	assert.Equal(t, SingleValue{Value: "5"}, entries[3].Value)
	assert.Equal(t, RangeValue{From: "1", To: "3"}, entries[5].Value)

	assert.ErrorIs(t, model.Set("multi", "a"), ErrValueShape)
	assert.ErrorIs(t, model.Set("missing", "a"), ErrUnknownEntry)
	assert.ErrorIs(t, model.SetAt(42, SingleValue{}), ErrUnknownEntry)

	model.Lock()
	assert.True(t, model.Locked())
	assert.ErrorIs(t, model.Set("tf", "false"), ErrFormLocked)
}

func TestFormModelValidate(t *testing.T) {
	model, _ := NewBuilder(nil, ProtocolDirect, discardLogger()).Build(sampleTasks())

	errs := model.Validate()
	// every entry except the n-from-four one starts incomplete; interval has two fields
	assert.Len(t, errs, 6)

	require.NoError(t, model.Set("tf", "true"))
	require.NoError(t, model.Set("one", "B"))
	require.NoError(t, model.Set("num", "5"))
	require.NoError(t, model.Set("word", "Paris"))
	require.NoError(t, model.SetRange("range", "1", ""))

	errs = model.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "range", errs[0].TaskID)
	assert.Equal(t, "to", errs[0].Field)

	require.NoError(t, model.SetRange("range", "1", "3"))
	assert.Empty(t, model.Validate())
}

func TestFormModelFreeze(t *testing.T) {
	model, _ := NewBuilder(nil, ProtocolDirect, discardLogger()).Build(scenarioTasks())

	require.NoError(t, model.Set("a", "true"))
	assert.NotEmpty(t, model.freeze())
	assert.False(t, model.Locked())

	require.NoError(t, model.Set("b", "4"))
	assert.Empty(t, model.freeze())
	assert.True(t, model.Locked())
	assert.ErrorIs(t, model.SetAt(1, SingleValue{Value: "5"}), ErrFormLocked)
}

func TestFormModelValidatePackedUsesPosition(t *testing.T) {
	model, _ := NewBuilder(nil, ProtocolPacked, discardLogger()).Build(sampleTasks()[:1])

	errs := model.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "#0", errs[0].TaskID)
}

func TestShuffle(t *testing.T) {
	tasks := sampleTasks()
	rng := rand.New(rand.NewPCG(1, 2))

	shuffled := Shuffle(tasks, rng)

	assert.ElementsMatch(t, tasks, shuffled)
	assert.Equal(t, sampleTasks(), tasks)
	assert.Empty(t, Shuffle(nil, rng))
}
