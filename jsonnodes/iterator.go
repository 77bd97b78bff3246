package jsonnodes

import (
	"github.com/buildbuildio/quilt/paths"
)

type frame struct {
	value interface{}
	// segment is pushed on the shared path stack when the frame is visited,
	// level is the stack height right before that
	segment    interface{}
	hasSegment bool
	level      int
	// depth is the number of query path segments consumed so far
	depth  int
	expand bool
}

// NodeIterator walks a document depth first and yields the same nodes in the
// same order as GetNodesAt. Intermediate nodes are never materialized: the
// result path is kept on a single stack and only copied for yielded nodes.
type NodeIterator struct {
	queryPath paths.QueryPath
	flatten   bool

	stack   []frame
	path    []interface{}
	current *JSONNode
	err     error
}

func NewNodeIterator(data map[string]interface{}, queryPath paths.QueryPath, flatten bool) *NodeIterator {
	return &NodeIterator{
		queryPath: queryPath,
		flatten:   flatten,
		stack:     []frame{{value: data}},
	}
}

// Next advances the iterator. It returns false when the traversal is done or
// failed, check Err to tell the two apart.
func (it *NodeIterator) Next() bool {
	for len(it.stack) > 0 {
		f := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		it.path = it.path[:f.level]
		if f.hasSegment {
			it.path = append(it.path, f.segment)
		}

		if f.expand {
			if list, ok := f.value.([]interface{}); ok {
				level := len(it.path)
				for i := len(list) - 1; i >= 0; i-- {
					it.stack = append(it.stack, frame{
						value:      list[i],
						segment:    i,
						hasSegment: true,
						level:      level,
						depth:      f.depth,
						expand:     true,
					})
				}
				continue
			}
		}

		if f.depth == len(it.queryPath) {
			it.current = &JSONNode{ResultPath: paths.NewResultPath(it.path...), Value: f.value}
			return true
		}

		key := it.queryPath[f.depth]
		var child interface{}
		switch v := f.value.(type) {
		case nil:
			continue
		case map[string]interface{}:
			child = v[key]
		default:
			return it.fail(&IllegalNodeTypeError{ResultPath: paths.NewResultPath(it.path...), Value: v})
		}

		if !isValidValue(child) {
			return it.fail(&IllegalNodeTypeError{
				ResultPath: paths.NewResultPath(it.path...).PlusKey(key),
				Value:      child,
			})
		}

		atEnd := f.depth+1 == len(it.queryPath)
		it.stack = append(it.stack, frame{
			value:      child,
			segment:    key,
			hasSegment: true,
			level:      len(it.path),
			depth:      f.depth + 1,
			expand:     !atEnd || it.flatten,
		})
	}

	it.current = nil
	return false
}

func (it *NodeIterator) fail(err error) bool {
	it.err = err
	it.stack = nil
	it.current = nil
	return false
}

func (it *NodeIterator) Node() *JSONNode {
	return it.current
}

func (it *NodeIterator) Err() error {
	return it.err
}

// Collect drains the iterator.
func (it *NodeIterator) Collect() ([]*JSONNode, error) {
	var res []*JSONNode
	for it.Next() {
		res = append(res, it.Node())
	}
	if it.err != nil {
		return nil, it.err
	}
	return res, nil
}
