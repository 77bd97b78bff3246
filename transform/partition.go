package transform

import (
	"context"
	"fmt"
	"sort"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
)

// PartitionTransform splits a field with a list argument into one call per
// partition key and merges the results.
type PartitionTransform struct{}

type partitionState struct {
	instruction *blueprint.PartitionInstruction
	context     interface{}
	list        []interface{}

	failure  error
	typename string
	extras   []*normalized.Field
	// path of result keys from the root of an extra call to the field
	extraPath []string
}

func (*PartitionTransform) Name() string { return "partition" }

func (*PartitionTransform) IsApplicable(
	ctx context.Context,
	ectx *ExecutionContext,
	_ *blueprint.Service,
	field *normalized.Field,
) (State, bool) {
	if ectx.Details != nil && ectx.Details.Partitioned {
		return nil, false
	}

	var instruction *blueprint.PartitionInstruction
	for _, t := range field.ObjectTypeNames {
		if ins, ok := ectx.Blueprint.Partitions[blueprint.FieldCoordinates{TypeName: t, FieldName: field.Name}]; ok {
			instruction = ins
			break
		}
	}
	if instruction == nil {
		return nil, false
	}

	hook := ectx.hooks().Partition
	if hook == nil {
		return nil, false
	}

	// cannot partition when the value is not a list
	list, ok := argumentAt(field, instruction.PathToPartitionArg).([]interface{})
	if !ok {
		return nil, false
	}

	pctx, ok := hook.PartitionContext(ctx, field)
	if !ok {
		return nil, false
	}

	return &partitionState{instruction: instruction, context: pctx, list: list}, true
}

func (*PartitionTransform) TransformField(
	_ context.Context,
	ectx *ExecutionContext,
	tr *Transformer,
	_ *blueprint.Service,
	field *normalized.Field,
	state State,
) (*FieldResult, error) {
	s := state.(*partitionState)

	groups, err := partitionGroups(ectx.hooks().Partition, s.context, s.list)
	if err == nil && len(groups) > 1 && s.instruction.Shape == blueprint.UnsupportedShape {
		err = errors.Errorf("cannot merge partitioned results of %s", s.instruction.Location)
	}
	if err != nil {
		s.failure = err
		s.typename = artificialAlias("partition", field.ResultKey())
		return &FieldResult{ArtificialFields: []*normalized.Field{
			normalized.NewTypenameField(s.typename, tr.UnderlyingTypeNames(siblingTypes(field))),
		}}, nil
	}

	if len(groups) < 2 {
		return &FieldResult{NewField: field}, nil
	}

	nf := field.CopyShallow()
	setArgumentAt(nf, s.instruction.PathToPartitionArg, groups[0])

	for _, group := range groups[1:] {
		extra := field.Copy()
		setArgumentAt(extra, s.instruction.PathToPartitionArg, group)

		root := extra
		for ancestor := field.Parent; ancestor != nil; ancestor = ancestor.Parent {
			wrapper := ancestor.CopyShallow()
			wrapper.Children = []*normalized.Field{root}
			root = wrapper
		}
		normalized.LinkParents(root)
		s.extras = append(s.extras, root)
	}
	s.extraPath = field.QueryPath()

	return &FieldResult{NewField: nf}, nil
}

func (*PartitionTransform) GetResultInstructions(
	ctx context.Context,
	ectx *ExecutionContext,
	service *blueprint.Service,
	overallField *normalized.Field,
	underlyingParentField *normalized.Field,
	_ *ServiceResult,
	state State,
	nodes *jsonnodes.JSONNodes,
) ([]Instruction, error) {
	s := state.(*partitionState)
	if s.failure == nil && len(s.extras) == 0 {
		return nil, nil
	}

	parents, err := parentNodes(nodes, underlyingParentField)
	if err != nil {
		return nil, err
	}

	key := overallField.ResultKey()
	var res []Instruction

	if s.failure != nil {
		for _, p := range parents {
			res = append(res,
				Set{Subject: p, Key: key, Value: nil},
				AddError{Error: gqlerrors.NewPathError(gqlerrors.PartitionError, p.ResultPath.PlusKey(key), s.failure)},
			)
		}
		return res, nil
	}

	operation := operationOf(ectx.Blueprint, overallField)
	details := &ExecutionDetails{Partitioned: true}
	if ectx.Details != nil {
		details.Hydration = ectx.Details.Hydration
	}

	results, _ := common.AsyncMap(ctx, s.extras, func(ctx context.Context, root *normalized.Field) (*ServiceResult, error) {
		result, err := ectx.Engine.Execute(ctx, ectx.WithDetails(details), service, operation, []*normalized.Field{root})
		if err != nil {
			ectx.logger().Warn("partitioned call failed",
				zap.Stringer("field", s.instruction.Location),
				zap.Error(err),
			)
			return &ServiceResult{Errors: gqlerrors.ErrorList{
				gqlerrors.NewError(gqlerrors.PartitionError, fmt.Errorf("partitioned call of %s: %w", s.instruction.Location, err)),
			}}, nil
		}
		return result, nil
	})

	failed := lo.ContainsBy(results, func(r *ServiceResult) bool { return r == nil || r.Data == nil })

	for _, p := range parents {
		target := p.ResultPath.PlusKey(key)
		values := []interface{}{p.Object()[key]}
		for _, r := range results {
			if r != nil {
				values = append(values, dig(r.Data, s.extraPath))
			}
		}

		if failed {
			res = append(res, Set{Subject: p, Key: key, Value: nil})
		} else {
			res = append(res, Set{Subject: p, Key: key, Value: mergePartitions(s.instruction.Shape, overallField, values)})
		}

		for _, r := range results {
			if r == nil {
				continue
			}
			for _, e := range r.Errors {
				c := e.Copy()
				if len(c.Path) == 0 {
					c.Path = target
				}
				res = append(res, AddError{Error: c})
			}
		}
	}
	return res, nil
}

// partitionGroups groups list elements by partition key in order of first
// appearance.
func partitionGroups(hook PartitionHook, pctx interface{}, list []interface{}) ([][]interface{}, error) {
	var order []string
	groups := make(map[string][]interface{})

	for i, el := range list {
		var keys []string
		for _, leaf := range leafScalars(el, nil) {
			k, err := hook.PartitionKey(pctx, leaf)
			if err != nil {
				return nil, errors.Wrapf(err, "partition key of element %d", i)
			}
			keys = append(keys, k)
		}

		keys = lo.Uniq(keys)
		if len(keys) != 1 {
			return nil, errors.Errorf("element %d has %d partition keys, expected exactly one", i, len(keys))
		}

		if _, ok := groups[keys[0]]; !ok {
			order = append(order, keys[0])
		}
		groups[keys[0]] = append(groups[keys[0]], el)
	}

	return lo.Map(order, func(k string, _ int) []interface{} { return groups[k] }), nil
}

// leafScalars collects the scalars inside an input value, object fields in
// name order.
func leafScalars(v interface{}, acc []interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return acc
	case map[string]interface{}:
		keys := lo.Keys(val)
		sort.Strings(keys)
		for _, k := range keys {
			acc = leafScalars(val[k], acc)
		}
		return acc
	case []interface{}:
		for _, el := range val {
			acc = leafScalars(el, acc)
		}
		return acc
	default:
		return append(acc, val)
	}
}

// argumentAt reads path from the arguments of field, path[0] being the
// argument name and the rest input object fields.
func argumentAt(field *normalized.Field, path []string) interface{} {
	v := field.Argument(path[0])
	for _, name := range path[1:] {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = obj[name]
	}
	return v
}

// setArgumentAt replaces the value at path, copying the input objects on
// the way so other fields sharing them are not affected.
func setArgumentAt(field *normalized.Field, path []string, value interface{}) {
	arg, ok := field.Arguments[path[0]]
	if !ok {
		return
	}
	field.Arguments[path[0]] = &normalized.InputValue{Type: arg.Type, Value: replaceAt(arg.Value, path[1:], value)}
}

func replaceAt(v interface{}, path []string, value interface{}) interface{} {
	if len(path) == 0 {
		return value
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	res := make(map[string]interface{}, len(obj))
	for k, el := range obj {
		res[k] = el
	}
	res[path[0]] = replaceAt(obj[path[0]], path[1:], value)
	return res
}

// operationOf returns the operation type of the root field above field.
func operationOf(bp *blueprint.Blueprint, field *normalized.Field) ast.Operation {
	root := field
	for root.Parent != nil {
		root = root.Parent
	}
	if root.HasObjectType(bp.RootTypeName(ast.Mutation)) {
		return ast.Mutation
	}
	return ast.Query
}
