package jsonnodes

import (
	"sync"

	"github.com/buildbuildio/quilt/paths"
)

// JSONNodes memoizes node extraction for one result document. Flattened
// frontiers are cached per query path prefix, so transforms reading many
// fields under the same parent walk the shared prefix once.
//
// A JSONNodes belongs to a single result; build a new one per document. The
// cache is not invalidated when the document is modified, so instructions
// must be computed before any of them are applied.
type JSONNodes struct {
	data map[string]interface{}

	mu    sync.RWMutex
	cache map[string][]*JSONNode
}

func NewJSONNodes(data map[string]interface{}) *JSONNodes {
	return &JSONNodes{
		data:  data,
		cache: make(map[string][]*JSONNode),
	}
}

func (n *JSONNodes) Data() map[string]interface{} {
	return n.data
}

// GetNodesAt behaves as the package level GetNodesAt.
func (n *JSONNodes) GetNodesAt(queryPath paths.QueryPath, flatten bool) ([]*JSONNode, error) {
	queue := []*JSONNode{{ResultPath: paths.ResultPath{}, Value: n.data}}

	for i, segment := range queryPath {
		atEnd := i == len(queryPath)-1

		if atEnd && !flatten {
			var res []*JSONNode
			for _, node := range queue {
				var err error
				res, err = step(node, segment, false, res)
				if err != nil {
					return nil, err
				}
			}
			return res, nil
		}

		key := queryPath[:i+1].Hash()

		n.mu.RLock()
		cached, ok := n.cache[key]
		n.mu.RUnlock()
		if ok {
			queue = cached
			continue
		}

		var next []*JSONNode
		for _, node := range queue {
			var err error
			next, err = step(node, segment, true, next)
			if err != nil {
				return nil, err
			}
		}

		n.mu.Lock()
		n.cache[key] = next
		n.mu.Unlock()

		queue = next
	}

	// the cached slice must not be handed out
	return append([]*JSONNode(nil), queue...), nil
}

// GetNodeAt returns the first node at queryPath or nil.
func (n *JSONNodes) GetNodeAt(queryPath paths.QueryPath) (*JSONNode, error) {
	nodes, err := n.GetNodesAt(queryPath, false)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}
