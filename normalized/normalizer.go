package normalized

import (
	"fmt"
	"reflect"

	"github.com/buildbuildio/quilt/common"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

// Normalize turns a validated operation into a normalized field tree.
// Fragment spreads and inline fragments are resolved into object type names,
// @skip/@include are evaluated and @defer fragments become DeferredExecution
// markers on the fields directly inside them.
func Normalize(schema *ast.Schema, op *ast.OperationDefinition, variables map[string]interface{}) ([]*Field, error) {
	var rootType *ast.Definition
	switch op.Operation {
	case ast.Query, "":
		rootType = schema.Query
	case ast.Mutation:
		rootType = schema.Mutation
	default:
		return nil, fmt.Errorf("operation %s is not supported", op.Operation)
	}
	if rootType == nil {
		return nil, fmt.Errorf("schema has no root type for %s", op.Operation)
	}

	n := &normalizer{schema: schema, variables: variables}
	fields, err := n.collect(op.SelectionSet, []string{rootType.Name}, nil)
	if err != nil {
		return nil, err
	}

	fields = merge(fields)
	LinkParents(fields...)
	return fields, nil
}

type normalizer struct {
	schema    *ast.Schema
	variables map[string]interface{}
}

func (n *normalizer) collect(selectionSet ast.SelectionSet, objectTypes []string, defers []*DeferredExecution) ([]*Field, error) {
	var result []*Field

	for _, selection := range selectionSet {
		switch s := selection.(type) {
		case *ast.Field:
			if !n.included(s.Directives) {
				continue
			}
			f, err := n.field(s, objectTypes, defers)
			if err != nil {
				return nil, err
			}
			result = append(result, f)
		case *ast.InlineFragment:
			if !n.included(s.Directives) {
				continue
			}
			fields, err := n.fragment(s.TypeCondition, s.Directives, s.SelectionSet, objectTypes, defers)
			if err != nil {
				return nil, err
			}
			result = append(result, fields...)
		case *ast.FragmentSpread:
			if !n.included(s.Directives) {
				continue
			}
			if s.Definition == nil {
				return nil, fmt.Errorf("fragment %s is not defined", s.Name)
			}
			fields, err := n.fragment(s.Definition.TypeCondition, s.Directives, s.Definition.SelectionSet, objectTypes, defers)
			if err != nil {
				return nil, err
			}
			result = append(result, fields...)
		default:
			return nil, fmt.Errorf("unexpected %T in SelectionSet", selection)
		}
	}

	return result, nil
}

func (n *normalizer) fragment(
	typeCondition string,
	directives ast.DirectiveList,
	selectionSet ast.SelectionSet,
	objectTypes []string,
	defers []*DeferredExecution,
) ([]*Field, error) {
	if typeCondition != "" {
		objectTypes = lo.Intersect(objectTypes, n.possibleTypes(typeCondition))
		if len(objectTypes) == 0 {
			return nil, nil
		}
	}

	if d := directives.ForName(common.DeferDirectiveName); d != nil && n.argumentBool(d, "if", true) {
		label, _ := n.argument(d, "label").(string)
		defers = append(append([]*DeferredExecution(nil), defers...), &DeferredExecution{Label: label})
	}

	return n.collect(selectionSet, objectTypes, defers)
}

func (n *normalizer) field(s *ast.Field, objectTypes []string, defers []*DeferredExecution) (*Field, error) {
	f := &Field{
		Name:               s.Name,
		ObjectTypeNames:    append([]string(nil), objectTypes...),
		DeferredExecutions: defers,
	}
	if s.Alias != "" && s.Alias != s.Name {
		f.Alias = s.Alias
	}

	if s.Definition == nil {
		if s.Name == common.TypenameFieldName {
			return f, nil
		}
		return nil, fmt.Errorf("field %s has no definition", s.Name)
	}

	args, err := n.arguments(s)
	if err != nil {
		return nil, err
	}
	f.Arguments = args

	if len(s.SelectionSet) > 0 {
		children, err := n.collect(s.SelectionSet, n.possibleTypes(s.Definition.Type.Name()), nil)
		if err != nil {
			return nil, err
		}
		f.Children = children
	}

	return f, nil
}

func (n *normalizer) arguments(s *ast.Field) (map[string]*InputValue, error) {
	var res map[string]*InputValue

	for _, def := range s.Definition.Arguments {
		var value interface{}
		found := false

		if arg := s.Arguments.ForName(def.Name); arg != nil {
			v, err := arg.Value.Value(n.variables)
			if err != nil {
				return nil, fmt.Errorf("argument %s of %s: %w", def.Name, s.Name, err)
			}
			// a variable that was not provided behaves like an absent argument
			_, provided := n.variables[arg.Value.Raw]
			if vd := arg.Value.VariableDefinition; vd != nil && vd.DefaultValue != nil {
				provided = true
			}
			if arg.Value.Kind != ast.Variable || provided {
				value, found = v, true
			}
		}
		if !found && def.DefaultValue != nil {
			v, err := def.DefaultValue.Value(n.variables)
			if err != nil {
				return nil, err
			}
			value, found = v, true
		}
		if !found {
			continue
		}

		if res == nil {
			res = make(map[string]*InputValue)
		}
		res[def.Name] = &InputValue{Type: def.Type.String(), Value: value}
	}

	return res, nil
}

func (n *normalizer) possibleTypes(typeName string) []string {
	def, ok := n.schema.Types[typeName]
	if !ok {
		return nil
	}
	switch def.Kind {
	case ast.Interface, ast.Union:
		return lo.Map(n.schema.PossibleTypes[typeName], func(d *ast.Definition, _ int) string {
			return d.Name
		})
	default:
		return []string{typeName}
	}
}

func (n *normalizer) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && n.argumentBool(d, "if", false) {
		return false
	}
	if d := directives.ForName("include"); d != nil && !n.argumentBool(d, "if", true) {
		return false
	}
	return true
}

func (n *normalizer) argument(d *ast.Directive, name string) interface{} {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil
	}
	v, err := arg.Value.Value(n.variables)
	if err != nil {
		return nil
	}
	return v
}

func (n *normalizer) argumentBool(d *ast.Directive, name string, fallback bool) bool {
	if v, ok := n.argument(d, name).(bool); ok {
		return v
	}
	return fallback
}

// merge joins fields selected more than once: same result key, same name and
// same arguments. Their object types and children are united; the merged
// field is deferred only when every occurrence was.
func merge(fields []*Field) []*Field {
	var result []*Field

	for _, f := range fields {
		existing, ok := lo.Find(result, func(r *Field) bool {
			return r.ResultKey() == f.ResultKey() &&
				r.Name == f.Name &&
				reflect.DeepEqual(r.Arguments, f.Arguments)
		})
		if !ok {
			result = append(result, f)
			continue
		}

		existing.ObjectTypeNames = lo.Union(existing.ObjectTypeNames, f.ObjectTypeNames)
		existing.Children = append(existing.Children, f.Children...)
		if existing.IsDeferred() && f.IsDeferred() {
			existing.DeferredExecutions = lo.Union(existing.DeferredExecutions, f.DeferredExecutions)
		} else {
			existing.DeferredExecutions = nil
		}
	}

	for _, f := range result {
		f.Children = merge(f.Children)
	}

	return result
}
