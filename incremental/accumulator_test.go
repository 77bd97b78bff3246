package incremental

import (
	"testing"

	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorWaitsForAllFields(t *testing.T) {
	fields, _, _ := deferredFixture()
	a := NewAccumulator(fields)
	require.True(t, a.HasDeferredFields())

	ready := a.Accept(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "slow",
		Data:  map[string]interface{}{"key": "A-1"},
	})
	assert.Empty(t, ready)

	// other list element is accumulated separately
	ready = a.Accept(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 1},
		Label: "slow",
		Data:  map[string]interface{}{"key": "A-2", "assignee": nil},
	})
	require.Len(t, ready, 1)
	assert.Equal(t, []interface{}{"issues", 1}, ready[0].Path)

	ready = a.Accept(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "slow",
		Data:  map[string]interface{}{"assignee": map[string]interface{}{"name": "Franklin"}},
	})
	require.Len(t, ready, 1)
	assert.Equal(t, &requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "slow",
		Data: map[string]interface{}{
			"key":      "A-1",
			"assignee": map[string]interface{}{"name": "Franklin"},
		},
	}, ready[0])

	assert.Empty(t, a.Pending())
}

func TestAccumulatorMatchesLabels(t *testing.T) {
	fields, _, _ := deferredFixture()
	a := NewAccumulator(fields)

	ready := a.Accept(&requests.IncrementalPayload{
		Path: []interface{}{"issues", 0},
		Data: map[string]interface{}{"key": "A-1"},
	})
	require.Len(t, ready, 1)
	assert.Equal(t, "", ready[0].Label)

	ready = a.Accept(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "unknown",
		Data:  map[string]interface{}{"key": "A-1"},
	})
	assert.Empty(t, ready)

	// wrong path
	ready = a.Accept(&requests.IncrementalPayload{
		Path: []interface{}{},
		Data: map[string]interface{}{"key": "A-1"},
	})
	assert.Empty(t, ready)
}

func TestAccumulatorErrorsGoToFirstExecution(t *testing.T) {
	slowAndUnlabeled, slow, _ := deferredFixture()
	// the same field in two executions sharing the label
	slowAndUnlabeled[0].Children[1].DeferredExecutions[1].Label = "slow"

	a := NewAccumulator(slowAndUnlabeled)
	errs := gqlerrors.ErrorList{&gqlerrors.Error{Message: "boom"}}

	ready := a.Accept(&requests.IncrementalPayload{
		Path:   []interface{}{"issues", 0},
		Label:  "slow",
		Data:   map[string]interface{}{"key": nil},
		Errors: errs,
	})
	// the second execution has only key, the first waits for assignee
	require.Len(t, ready, 1)
	assert.Empty(t, ready[0].Errors)

	assert.Equal(t, []string{"issues[0]"}, a.Pending())

	ready = a.Accept(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "slow",
		Data:  map[string]interface{}{"assignee": nil},
	})
	require.Len(t, ready, 1)
	assert.Equal(t, errs, ready[0].Errors)
	assert.Equal(t, map[string]interface{}{"key": nil, "assignee": nil}, ready[0].Data)
	assert.Equal(t, slow.Label, ready[0].Label)
	assert.Empty(t, a.Pending())
}

func TestAccumulatorGatesOnEveryField(t *testing.T) {
	fields, _, _ := deferredFixture()
	a := NewAccumulator(fields)

	// the same field twice does not complete the execution
	for i := 0; i < 2; i++ {
		ready := a.Accept(&requests.IncrementalPayload{
			Path:  []interface{}{"issues", 0},
			Label: "slow",
			Data:  map[string]interface{}{"key": "A-1"},
		})
		assert.Empty(t, ready)
	}
	assert.Len(t, a.Pending(), 1)

	ready := a.Accept(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "slow",
		Data:  map[string]interface{}{"assignee": nil},
	})
	require.Len(t, ready, 1)
	assert.Len(t, ready[0].Data, 2)
}

func TestAccumulatorWithoutDeferredFields(t *testing.T) {
	fields, _, _ := deferredFixture()
	for _, c := range fields[0].Children {
		c.DeferredExecutions = nil
	}
	assert.False(t, NewAccumulator(fields).HasDeferredFields())
}
