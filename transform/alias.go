package transform

import (
	"strings"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/samber/lo"
)

const typenameAliasPart = "typename"

// artificialAlias builds the result key of an injected field, e.g.
// quilt__hydration__assignee__assigneeId.
func artificialAlias(transform string, parts ...string) string {
	return common.ArtificialPrefix + transform + "__" + strings.Join(parts, "__")
}

func IsArtificialKey(key string) bool {
	return strings.HasPrefix(key, common.ArtificialPrefix)
}

// fieldChain builds alias: path[0] { path[1] { ... } } and returns the
// outermost and the innermost field.
func fieldChain(alias string, path []string, objectTypeNames []string) (*normalized.Field, *normalized.Field) {
	root := &normalized.Field{
		Alias:           alias,
		Name:            path[0],
		ObjectTypeNames: append([]string(nil), objectTypeNames...),
	}

	inner := root
	for _, name := range path[1:] {
		child := &normalized.Field{Name: name}
		inner.Children = []*normalized.Field{child}
		inner = child
	}

	return root, inner
}

// dig reads path from v. Lists met on the way are mapped element wise.
func dig(v interface{}, path []string) interface{} {
	if len(path) == 0 {
		return v
	}

	switch val := v.(type) {
	case map[string]interface{}:
		return dig(val[path[0]], path[1:])
	case []interface{}:
		return lo.Map(val, func(el interface{}, _ int) interface{} {
			return dig(el, path)
		})
	default:
		return nil
	}
}

// siblingTypes returns every object type the parent selection of field
// applies to.
func siblingTypes(field *normalized.Field) []string {
	if field.Parent == nil {
		return field.ObjectTypeNames
	}

	var res []string
	for _, sibling := range field.Parent.Children {
		res = lo.Union(res, sibling.ObjectTypeNames)
	}
	return res
}

// needsTypename reports whether result objects next to field can be of types
// the field does not apply to, or of several types.
func needsTypename(field *normalized.Field) bool {
	return len(siblingTypes(field)) > 1
}

// objectTypeOf returns the overall type of a parent object using the
// artificial __typename selected under alias, or fallback when the alias is
// not selected.
func objectTypeOf(ectx *ExecutionContext, service *blueprint.Service, node *jsonnodes.JSONNode, alias string, fallback string) string {
	obj := node.Object()
	if obj == nil {
		return ""
	}
	typename, ok := obj[alias].(string)
	if !ok {
		return fallback
	}
	return ectx.Blueprint.OverallTypeName(service, typename)
}
