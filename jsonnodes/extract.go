package jsonnodes

import (
	"github.com/buildbuildio/quilt/paths"
)

// GetNodesAt returns the nodes found at queryPath in data, walking the
// document breadth first. Lists met before the last segment are always
// flattened; a list at the last segment is flattened only when flatten is
// true, otherwise it is returned as a single node.
func GetNodesAt(data map[string]interface{}, queryPath paths.QueryPath, flatten bool) ([]*JSONNode, error) {
	root := &JSONNode{ResultPath: paths.ResultPath{}, Value: data}
	return getNodesAt(root, queryPath, flatten)
}

func getNodesAt(root *JSONNode, queryPath paths.QueryPath, flatten bool) ([]*JSONNode, error) {
	queue := []*JSONNode{root}

	for i, segment := range queryPath {
		atEnd := i == len(queryPath)-1

		var next []*JSONNode
		for _, node := range queue {
			var err error
			next, err = step(node, segment, !atEnd || flatten, next)
			if err != nil {
				return nil, err
			}
		}
		queue = next
	}

	return queue, nil
}

// step appends the node(s) reached from node by segment to acc.
func step(node *JSONNode, segment string, flattenLists bool, acc []*JSONNode) ([]*JSONNode, error) {
	child, err := getNodeAt(node, segment)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return acc, nil
	}
	if flattenLists {
		return flatNodes(child, acc), nil
	}
	return append(acc, child), nil
}

// GetNodeAt is GetNodesAt for paths expected to contain no lists. It returns
// nil when nothing is found.
func GetNodeAt(data map[string]interface{}, queryPath paths.QueryPath) (*JSONNode, error) {
	nodes, err := GetNodesAt(data, queryPath, false)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}
