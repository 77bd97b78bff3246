// Package normalized is the gateway's view of a client operation: a tree of
// fields where fragments are resolved and every field knows the concrete
// object types it applies to.
package normalized

import (
	"sort"

	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/paths"
	"github.com/samber/lo"
)

// InputValue is a concrete argument value. Type is the GraphQL type as
// written in SDL, e.g. "[ID!]!", and is used to declare query variables.
type InputValue struct {
	Type  string
	Value interface{}
}

// DeferredExecution identifies one @defer fragment of the operation. Fields
// directly inside the fragment point to the same instance.
type DeferredExecution struct {
	Label string
}

// Field is a node of the normalized query tree.
//
// Parent is not set by constructors; trees are built children first and then
// linked with LinkParents.
type Field struct {
	Alias           string
	Name            string
	ObjectTypeNames []string
	Arguments       map[string]*InputValue
	Children        []*Field

	DeferredExecutions []*DeferredExecution

	Parent *Field
}

// ResultKey is the key of the field in a JSON result.
func (f *Field) ResultKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func (f *Field) IsTypename() bool {
	return f.Name == common.TypenameFieldName
}

func (f *Field) IsDeferred() bool {
	return len(f.DeferredExecutions) > 0
}

// QueryPath is the path of result keys from the root to this field.
func (f *Field) QueryPath() paths.QueryPath {
	var keys []string
	for cur := f; cur != nil; cur = cur.Parent {
		keys = append(keys, cur.ResultKey())
	}
	return paths.NewQueryPath(lo.Reverse(keys)...)
}

// Level is 1 for top level fields.
func (f *Field) Level() int {
	level := 0
	for cur := f; cur != nil; cur = cur.Parent {
		level++
	}
	return level
}

// HasObjectType reports whether the field applies to objects of typeName.
func (f *Field) HasObjectType(typeName string) bool {
	return lo.Contains(f.ObjectTypeNames, typeName)
}

// ChildrenFor returns the children that apply to objects of typeName.
func (f *Field) ChildrenFor(typeName string) []*Field {
	return lo.Filter(f.Children, func(c *Field, _ int) bool {
		return c.HasObjectType(typeName)
	})
}

// Argument returns the value of the named argument or nil.
func (f *Field) Argument(name string) interface{} {
	if arg, ok := f.Arguments[name]; ok && arg != nil {
		return arg.Value
	}
	return nil
}

// ArgumentNames returns argument names in a stable order.
func (f *Field) ArgumentNames() []string {
	names := lo.Keys(f.Arguments)
	sort.Strings(names)
	return names
}

// Copy returns a deep copy of the field's subtree. The copy has no parent;
// its descendants are linked to their copied parents.
func (f *Field) Copy() *Field {
	c := f.CopyShallow()
	c.Children = lo.Map(f.Children, func(child *Field, _ int) *Field {
		cc := child.Copy()
		cc.Parent = c
		return cc
	})
	return c
}

// CopyShallow copies the field itself but shares the children slice
// elements. Arguments are copied one level deep.
func (f *Field) CopyShallow() *Field {
	c := &Field{
		Alias:              f.Alias,
		Name:               f.Name,
		ObjectTypeNames:    append([]string(nil), f.ObjectTypeNames...),
		Children:           append([]*Field(nil), f.Children...),
		DeferredExecutions: append([]*DeferredExecution(nil), f.DeferredExecutions...),
	}
	if f.Arguments != nil {
		c.Arguments = make(map[string]*InputValue, len(f.Arguments))
		for k, v := range f.Arguments {
			vv := *v
			c.Arguments[k] = &vv
		}
	}
	return c
}

// LinkParents sets Parent on every descendant of roots. Roots themselves keep
// their current parent.
func LinkParents(roots ...*Field) {
	for _, root := range roots {
		for _, child := range root.Children {
			child.Parent = root
			LinkParents(child)
		}
	}
}

// Walk calls fn for f and all of its descendants, depth first. Returning
// false from fn skips the subtree.
func Walk(f *Field, fn func(*Field) bool) {
	if !fn(f) {
		return
	}
	for _, child := range f.Children {
		Walk(child, fn)
	}
}

// NewTypenameField builds a __typename selection for objectTypeNames.
func NewTypenameField(alias string, objectTypeNames []string) *Field {
	return &Field{
		Alias:           alias,
		Name:            common.TypenameFieldName,
		ObjectTypeNames: append([]string(nil), objectTypeNames...),
	}
}
