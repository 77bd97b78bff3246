// Package incremental delivers the deferred parts of an operation: it counts
// deferred jobs, groups their payloads per defer execution and emits
// incremental results.
package incremental

import (
	"sync"

	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/paths"
	"github.com/buildbuildio/quilt/requests"
	"github.com/samber/lo"
)

type accumulatorKey struct {
	path      string
	execution *normalized.DeferredExecution
}

type accumulated struct {
	key       accumulatorKey
	path      paths.ResultPath
	label     string
	data      map[string]interface{}
	errors    gqlerrors.ErrorList
	remaining map[string]struct{}
}

// Accumulator groups partial payloads of defer executions. A payload for
// (path, execution) is released once data for every topmost field of the
// execution arrived.
type Accumulator struct {
	executionsByPath  map[string][]*normalized.DeferredExecution
	fieldsByExecution map[*normalized.DeferredExecution]map[string]struct{}

	mu      sync.Mutex
	pending map[accumulatorKey]*accumulated
}

// NewAccumulator indexes the deferred fields of an operation.
func NewAccumulator(fields []*normalized.Field) *Accumulator {
	a := &Accumulator{
		executionsByPath:  make(map[string][]*normalized.DeferredExecution),
		fieldsByExecution: make(map[*normalized.DeferredExecution]map[string]struct{}),
		pending:           make(map[accumulatorKey]*accumulated),
	}

	for _, root := range fields {
		normalized.Walk(root, func(f *normalized.Field) bool {
			if !f.IsDeferred() {
				return true
			}

			parentPath := paths.RootQueryPath
			if f.Parent != nil {
				parentPath = f.Parent.QueryPath()
			}

			for _, execution := range f.DeferredExecutions {
				if _, ok := a.fieldsByExecution[execution]; !ok {
					a.fieldsByExecution[execution] = make(map[string]struct{})
					a.executionsByPath[parentPath.Hash()] = append(a.executionsByPath[parentPath.Hash()], execution)
				}
				a.fieldsByExecution[execution][f.ResultKey()] = struct{}{}
			}
			return true
		})
	}

	return a
}

// HasDeferredFields reports whether the operation has anything to defer.
func (a *Accumulator) HasDeferredFields() bool {
	return len(a.fieldsByExecution) > 0
}

// Accept merges payload into the matching accumulators and returns the
// payloads which became complete. Errors are attributed to the first
// matching execution only.
func (a *Accumulator) Accept(payload *requests.IncrementalPayload) []*requests.IncrementalPayload {
	a.mu.Lock()
	defer a.mu.Unlock()

	resultPath := paths.NewResultPath(payload.Path...)
	candidates := lo.Filter(a.executionsByPath[resultPath.QueryPath().Hash()], func(e *normalized.DeferredExecution, _ int) bool {
		return e.Label == payload.Label
	})

	var ready []*requests.IncrementalPayload
	errorsCopied := false

	for _, execution := range candidates {
		fields := a.fieldsByExecution[execution]

		keys := lo.Filter(lo.Keys(payload.Data), func(k string, _ int) bool {
			_, ok := fields[k]
			return ok
		})
		if len(keys) == 0 {
			continue
		}

		acc := a.getOrCreate(resultPath, execution)
		for _, k := range keys {
			acc.data[k] = payload.Data[k]
			delete(acc.remaining, k)
		}
		if !errorsCopied {
			acc.errors = append(acc.errors, payload.Errors...)
			errorsCopied = true
		}

		if len(acc.remaining) == 0 {
			ready = append(ready, a.release(acc))
		}
	}

	return ready
}

// Pending returns the result paths of executions still waiting for fields.
func (a *Accumulator) Pending() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return lo.MapToSlice(a.pending, func(_ accumulatorKey, acc *accumulated) string {
		return acc.path.String()
	})
}

func (a *Accumulator) getOrCreate(path paths.ResultPath, execution *normalized.DeferredExecution) *accumulated {
	key := accumulatorKey{path: path.Hash(), execution: execution}
	if acc, ok := a.pending[key]; ok {
		return acc
	}

	remaining := make(map[string]struct{}, len(a.fieldsByExecution[execution]))
	for k := range a.fieldsByExecution[execution] {
		remaining[k] = struct{}{}
	}

	acc := &accumulated{
		key:       key,
		path:      path,
		label:     execution.Label,
		data:      make(map[string]interface{}),
		remaining: remaining,
	}
	a.pending[key] = acc
	return acc
}

func (a *Accumulator) release(acc *accumulated) *requests.IncrementalPayload {
	delete(a.pending, acc.key)

	return &requests.IncrementalPayload{
		Data:   acc.data,
		Path:   acc.path,
		Label:  acc.label,
		Errors: acc.errors,
	}
}
