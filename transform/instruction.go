package transform

import (
	"fmt"

	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/jsonnodes"
)

// Instruction is one change to a service result. Instructions are applied in
// the order they were produced; a later Set of the same key wins.
type Instruction interface {
	instruction()
}

// Set writes Value under Key of the object Subject.
type Set struct {
	Subject *jsonnodes.JSONNode
	Key     string
	Value   interface{}
}

// Remove deletes Key from the object Subject.
type Remove struct {
	Subject *jsonnodes.JSONNode
	Key     string
}

// AddError appends Error to the result errors.
type AddError struct {
	Error *gqlerrors.Error
}

func (Set) instruction()      {}
func (Remove) instruction()   {}
func (AddError) instruction() {}

// Apply applies instructions to result. Set and Remove must target objects.
func Apply(result *ServiceResult, instructions []Instruction) {
	for _, ins := range instructions {
		switch i := ins.(type) {
		case Set:
			subject(i.Subject, i.Key)[i.Key] = i.Value
		case Remove:
			delete(subject(i.Subject, i.Key), i.Key)
		case AddError:
			result.Errors = append(result.Errors, i.Error)
		default:
			panic("transform: unknown instruction")
		}
	}
}

func subject(node *jsonnodes.JSONNode, key string) map[string]interface{} {
	if node == nil {
		panic(fmt.Sprintf("transform: instruction on %q has no subject", key))
	}
	obj := node.Object()
	if obj == nil {
		panic(fmt.Sprintf("transform: instruction on %q targets %T at %s", key, node.Value, node.ResultPath))
	}
	return obj
}
