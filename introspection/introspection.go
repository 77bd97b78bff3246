// Package introspection answers __schema and __type selections from the
// overall schema without calling any service.
package introspection

import (
	"sort"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/vektah/gqlparser/v2/ast"
)

const defaultDeprecationReason = "No longer supported"

type resolver struct {
	schema *ast.Schema
}

// Resolve returns the values of the introspection fields among fields keyed
// by their result keys. Other fields are ignored.
func Resolve(schema *ast.Schema, fields []*normalized.Field) map[string]interface{} {
	r := &resolver{schema: schema}
	result := make(map[string]interface{})

	for _, f := range fields {
		switch f.Name {
		case common.TypeFieldName:
			name, _ := f.Argument("name").(string)
			def, ok := schema.Types[name]
			if !ok {
				result[f.ResultKey()] = nil
				continue
			}
			result[f.ResultKey()] = r.definition(def, f.Children)
		case common.SchemaFieldName:
			result[f.ResultKey()] = r.resolveSchema(f.Children)
		}
	}

	return result
}

// object resolves the selection of one introspection object. __typename is
// answered for every object type.
func object(typeName string, fields []*normalized.Field, value func(f *normalized.Field) interface{}) map[string]interface{} {
	res := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if f.IsTypename() {
			res[f.ResultKey()] = typeName
			continue
		}
		res[f.ResultKey()] = value(f)
	}
	return res
}

func (r *resolver) resolveSchema(fields []*normalized.Field) map[string]interface{} {
	return object("__Schema", fields, func(f *normalized.Field) interface{} {
		switch f.Name {
		case "types":
			names := make([]string, 0, len(r.schema.Types))
			for name := range r.schema.Types {
				names = append(names, name)
			}
			sort.Strings(names)

			types := make([]interface{}, 0, len(names))
			for _, name := range names {
				types = append(types, r.definition(r.schema.Types[name], f.Children))
			}
			return types
		case "queryType":
			return r.root(r.schema.Query, f.Children)
		case "mutationType":
			return r.root(r.schema.Mutation, f.Children)
		case "subscriptionType":
			return r.root(r.schema.Subscription, f.Children)
		case "directives":
			names := make([]string, 0, len(r.schema.Directives))
			for name := range r.schema.Directives {
				if blueprint.IsOwnDirective(name) {
					continue
				}
				names = append(names, name)
			}
			sort.Strings(names)

			directives := make([]interface{}, 0, len(names))
			for _, name := range names {
				directives = append(directives, r.directive(r.schema.Directives[name], f.Children))
			}
			return directives
		}
		return nil
	})
}

func (r *resolver) root(def *ast.Definition, fields []*normalized.Field) interface{} {
	if def == nil {
		return nil
	}
	return r.definition(def, fields)
}

// typeRef resolves a possibly wrapped type. Wrappers are unwrapped through
// ofType, non null first.
func (r *resolver) typeRef(t *ast.Type, fields []*normalized.Field) interface{} {
	if t == nil {
		return nil
	}

	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return r.wrapper("NON_NULL", &inner, fields)
	}
	if t.Elem != nil {
		return r.wrapper("LIST", t.Elem, fields)
	}

	def, ok := r.schema.Types[t.NamedType]
	if !ok {
		return nil
	}
	return r.definition(def, fields)
}

func (r *resolver) wrapper(kind string, ofType *ast.Type, fields []*normalized.Field) map[string]interface{} {
	return object("__Type", fields, func(f *normalized.Field) interface{} {
		switch f.Name {
		case "kind":
			return kind
		case "ofType":
			return r.typeRef(ofType, f.Children)
		}
		return nil
	})
}

func (r *resolver) definition(def *ast.Definition, fields []*normalized.Field) map[string]interface{} {
	hasFields := def.Kind == ast.Object || def.Kind == ast.Interface

	return object("__Type", fields, func(f *normalized.Field) interface{} {
		switch f.Name {
		case "kind":
			return string(def.Kind)
		case "name":
			return def.Name
		case "description":
			return description(def.Description)
		case "fields":
			if !hasFields {
				return nil
			}
			include := includeDeprecated(f)
			res := []interface{}{}
			for _, fd := range def.Fields {
				if common.IsBuiltinName(fd.Name) {
					continue
				}
				if deprecated, _ := deprecation(fd.Directives); deprecated && !include {
					continue
				}
				res = append(res, r.field(fd, f.Children))
			}
			return res
		case "interfaces":
			if !hasFields {
				return nil
			}
			res := []interface{}{}
			for _, name := range def.Interfaces {
				res = append(res, r.typeRef(ast.NamedType(name, nil), f.Children))
			}
			return res
		case "possibleTypes":
			if def.Kind != ast.Interface && def.Kind != ast.Union {
				return nil
			}
			possible := r.schema.GetPossibleTypes(def)
			names := make([]string, 0, len(possible))
			for _, p := range possible {
				names = append(names, p.Name)
			}
			sort.Strings(names)

			res := make([]interface{}, 0, len(names))
			for _, name := range names {
				res = append(res, r.typeRef(ast.NamedType(name, nil), f.Children))
			}
			return res
		case "enumValues":
			if def.Kind != ast.Enum {
				return nil
			}
			include := includeDeprecated(f)
			res := []interface{}{}
			for _, ev := range def.EnumValues {
				if deprecated, _ := deprecation(ev.Directives); deprecated && !include {
					continue
				}
				res = append(res, enumValue(ev, f.Children))
			}
			return res
		case "inputFields":
			if def.Kind != ast.InputObject {
				return nil
			}
			res := []interface{}{}
			for _, fd := range def.Fields {
				res = append(res, r.inputValue(fd.Name, fd.Description, fd.Type, fd.DefaultValue, f.Children))
			}
			return res
		}
		return nil
	})
}

func (r *resolver) field(fd *ast.FieldDefinition, fields []*normalized.Field) map[string]interface{} {
	deprecated, reason := deprecation(fd.Directives)

	return object("__Field", fields, func(f *normalized.Field) interface{} {
		switch f.Name {
		case "name":
			return fd.Name
		case "description":
			return description(fd.Description)
		case "args":
			res := []interface{}{}
			for _, arg := range fd.Arguments {
				res = append(res, r.inputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, f.Children))
			}
			return res
		case "type":
			return r.typeRef(fd.Type, f.Children)
		case "isDeprecated":
			return deprecated
		case "deprecationReason":
			return reason
		}
		return nil
	})
}

func (r *resolver) directive(d *ast.DirectiveDefinition, fields []*normalized.Field) map[string]interface{} {
	return object("__Directive", fields, func(f *normalized.Field) interface{} {
		switch f.Name {
		case "name":
			return d.Name
		case "description":
			return description(d.Description)
		case "locations":
			res := make([]interface{}, 0, len(d.Locations))
			for _, l := range d.Locations {
				res = append(res, string(l))
			}
			return res
		case "args":
			res := []interface{}{}
			for _, arg := range d.Arguments {
				res = append(res, r.inputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, f.Children))
			}
			return res
		case "isRepeatable":
			return d.IsRepeatable
		}
		return nil
	})
}

func (r *resolver) inputValue(name, desc string, t *ast.Type, defaultValue *ast.Value, fields []*normalized.Field) map[string]interface{} {
	return object("__InputValue", fields, func(f *normalized.Field) interface{} {
		switch f.Name {
		case "name":
			return name
		case "description":
			return description(desc)
		case "type":
			return r.typeRef(t, f.Children)
		case "defaultValue":
			if defaultValue == nil {
				return nil
			}
			return defaultValue.String()
		}
		return nil
	})
}

func enumValue(ev *ast.EnumValueDefinition, fields []*normalized.Field) map[string]interface{} {
	deprecated, reason := deprecation(ev.Directives)

	return object("__EnumValue", fields, func(f *normalized.Field) interface{} {
		switch f.Name {
		case "name":
			return ev.Name
		case "description":
			return description(ev.Description)
		case "isDeprecated":
			return deprecated
		case "deprecationReason":
			return reason
		}
		return nil
	})
}

func deprecation(directives ast.DirectiveList) (bool, interface{}) {
	d := directives.ForName("deprecated")
	if d == nil {
		return false, nil
	}

	reason := defaultDeprecationReason
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return true, reason
}

func includeDeprecated(f *normalized.Field) bool {
	v, _ := f.Argument("includeDeprecated").(bool)
	return v
}

func description(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
