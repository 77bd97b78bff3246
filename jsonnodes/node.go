// Package jsonnodes extracts values out of decoded JSON results by query path.
package jsonnodes

import (
	"encoding/json"
	"fmt"

	"github.com/buildbuildio/quilt/paths"
)

// JSONNode is a value found in a result document together with the path it
// was found at. Value is one of nil, map[string]interface{}, []interface{},
// string, bool or a number.
type JSONNode struct {
	ResultPath paths.ResultPath
	Value      interface{}
}

// Object returns the node value as an object, or nil when it is not one.
func (n *JSONNode) Object() map[string]interface{} {
	m, _ := n.Value.(map[string]interface{})
	return m
}

// IllegalNodeTypeError is returned when traversal expects an object but finds
// something else. It always means the underlying result does not match the
// query that produced it.
type IllegalNodeTypeError struct {
	ResultPath paths.ResultPath
	Value      interface{}
}

func (e *IllegalNodeTypeError) Error() string {
	return fmt.Sprintf("unknown json node type %T at %s", e.Value, e.ResultPath)
}

func isValidValue(v interface{}) bool {
	switch v.(type) {
	case nil, map[string]interface{}, []interface{}, string, bool, json.Number,
		float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

// getNodeAt steps into node by key. A nil return without error means the
// value is null and traversal stops here.
func getNodeAt(node *JSONNode, key string) (*JSONNode, error) {
	switch v := node.Value.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		child := v[key]
		if !isValidValue(child) {
			return nil, &IllegalNodeTypeError{ResultPath: node.ResultPath.PlusKey(key), Value: child}
		}
		return &JSONNode{ResultPath: node.ResultPath.PlusKey(key), Value: child}, nil
	default:
		return nil, &IllegalNodeTypeError{ResultPath: node.ResultPath, Value: v}
	}
}

// flatNodes expands lists, lists of lists included, into their elements.
func flatNodes(node *JSONNode, acc []*JSONNode) []*JSONNode {
	list, ok := node.Value.([]interface{})
	if !ok {
		return append(acc, node)
	}
	for i, el := range list {
		acc = flatNodes(&JSONNode{ResultPath: node.ResultPath.PlusIndex(i), Value: el}, acc)
	}
	return acc
}
