package transform

import (
	"strings"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

func sourceKey(path []string) string {
	return strings.Join(path, ".")
}

// actorArguments builds the actor field arguments for one parent object.
// It returns false when an object sourced argument is null, in which case
// the actor is not called at all.
func actorArguments(
	instruction *blueprint.HydrationInstruction,
	field *normalized.Field,
	sources map[string]interface{},
) (map[string]*normalized.InputValue, bool) {
	args := make(map[string]*normalized.InputValue, len(instruction.ActorFieldArguments))

	for _, arg := range instruction.ActorFieldArguments {
		var value interface{}
		switch arg.Source.Kind {
		case blueprint.ObjectFieldSource:
			value = sources[sourceKey(arg.Source.PathToField)]
			if value == nil {
				return nil, false
			}
		case blueprint.FieldArgumentSource:
			value = field.Argument(arg.Source.ArgumentName)
			if value == nil {
				continue
			}
		case blueprint.StaticValueSource:
			value = arg.Source.StaticValue
		}

		args[arg.Name] = &normalized.InputValue{
			Type:  instruction.ActorField.Arguments.ForName(arg.Name).Type.String(),
			Value: value,
		}
	}

	return args, true
}

// withArgument returns a copy of args with name set to value.
func withArgument(args map[string]*normalized.InputValue, name string, value interface{}) map[string]*normalized.InputValue {
	res := make(map[string]*normalized.InputValue, len(args))
	for k, v := range args {
		res[k] = v
	}
	if arg, ok := args[name]; ok {
		res[name] = &normalized.InputValue{Type: arg.Type, Value: value}
	}
	return res
}

// actorQuery builds the overall field tree calling the actor field, e.g.
// userQueries { byIds(ids: ...) { children } } for "userQueries.byIds".
func actorQuery(
	bp *blueprint.Blueprint,
	instruction *blueprint.HydrationInstruction,
	args map[string]*normalized.InputValue,
	children []*normalized.Field,
) *normalized.Field {
	var root, actor *normalized.Field
	typeName := common.QueryObjectName

	for _, name := range instruction.QueryPathToActorField {
		f := &normalized.Field{Name: name, ObjectTypeNames: []string{typeName}}
		if root == nil {
			root = f
		} else {
			actor.Children = []*normalized.Field{f}
		}
		actor = f

		if def := bp.FieldDefinition(typeName, name); def != nil {
			typeName = def.Type.Name()
		}
	}

	actor.Arguments = args
	actor.Children = children
	normalized.LinkParents(root)
	return root
}

// actorChildren copies the selection of the hydrated field for the actor
// query.
func actorChildren(field *normalized.Field) []*normalized.Field {
	return lo.Map(field.Children, func(c *normalized.Field, _ int) *normalized.Field {
		return c.Copy()
	})
}

// possibleTypes returns the object types a value of typeName can have.
func possibleTypes(bp *blueprint.Blueprint, typeName string) []string {
	def, ok := bp.Schema.Types[typeName]
	if !ok {
		return nil
	}
	if def.Kind == ast.Object {
		return []string{def.Name}
	}
	return lo.Map(bp.Schema.GetPossibleTypes(def), func(d *ast.Definition, _ int) string {
		return d.Name
	})
}
