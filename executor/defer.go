package executor

import (
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/paths"
	"github.com/buildbuildio/quilt/requests"
	"github.com/samber/lo"
)

type deferredKey struct {
	path  string
	label string
}

// deferredExtractor detaches deferred fields from a result.
type deferredExtractor struct {
	payloads map[deferredKey]*requests.IncrementalPayload
	order    []deferredKey
}

// extractDeferred removes the values of deferred fields from data and
// returns them as payloads, one per parent object and defer label. Deferred
// fields nested in deferred fields travel with their outermost one.
func extractDeferred(fields []*normalized.Field, data map[string]interface{}) []*requests.IncrementalPayload {
	e := &deferredExtractor{payloads: make(map[deferredKey]*requests.IncrementalPayload)}
	e.object(data, paths.NewResultPath(), fields)

	return lo.Map(e.order, func(k deferredKey, _ int) *requests.IncrementalPayload {
		return e.payloads[k]
	})
}

func (e *deferredExtractor) object(obj map[string]interface{}, path paths.ResultPath, fields []*normalized.Field) {
	for _, f := range fields {
		key := f.ResultKey()
		value, ok := obj[key]
		if !ok {
			continue
		}

		if f.IsDeferred() {
			delete(obj, key)
			for _, execution := range f.DeferredExecutions {
				e.payload(path, execution.Label).Data[key] = value
			}
			continue
		}

		if len(f.Children) > 0 {
			e.value(value, path.PlusKey(key), f.Children)
		}
	}
}

func (e *deferredExtractor) value(v interface{}, path paths.ResultPath, fields []*normalized.Field) {
	switch val := v.(type) {
	case map[string]interface{}:
		e.object(val, path, fields)
	case []interface{}:
		for i, el := range val {
			e.value(el, path.PlusIndex(i), fields)
		}
	}
}

func (e *deferredExtractor) payload(path paths.ResultPath, label string) *requests.IncrementalPayload {
	key := deferredKey{path: path.Hash(), label: label}
	if p, ok := e.payloads[key]; ok {
		return p
	}

	p := &requests.IncrementalPayload{
		Data:  make(map[string]interface{}),
		Path:  path,
		Label: label,
	}
	e.payloads[key] = p
	e.order = append(e.order, key)
	return p
}
