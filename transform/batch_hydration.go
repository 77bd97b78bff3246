package transform

import (
	"context"
	"fmt"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

// BatchHydrationTransform resolves @hydrated fields whose actor takes a list
// of ids: source values of all parent objects are collected, sent in chunks
// and matched back through the IdentifiedBy field of the actor results.
type BatchHydrationTransform struct{}

func (*BatchHydrationTransform) Name() string { return "batch-hydration" }

func (*BatchHydrationTransform) IsApplicable(
	_ context.Context,
	ectx *ExecutionContext,
	_ *blueprint.Service,
	field *normalized.Field,
) (State, bool) {
	return hydrationApplicable(ectx, field, true)
}

func (*BatchHydrationTransform) TransformField(
	_ context.Context,
	_ *ExecutionContext,
	tr *Transformer,
	_ *blueprint.Service,
	field *normalized.Field,
	state State,
) (*FieldResult, error) {
	return transformHydratedField(tr, field, state.(*hydrationState), "batch"), nil
}

func (*BatchHydrationTransform) GetResultInstructions(
	ctx context.Context,
	ectx *ExecutionContext,
	service *blueprint.Service,
	overallField *normalized.Field,
	underlyingParentField *normalized.Field,
	_ *ServiceResult,
	state State,
	nodes *jsonnodes.JSONNodes,
) ([]Instruction, error) {
	s := state.(*hydrationState)

	parents, err := parentNodes(nodes, underlyingParentField)
	if err != nil {
		return nil, err
	}

	targets, res := s.targets(ectx, service, overallField, parents)
	if len(targets) == 0 {
		return res, nil
	}

	resolve := func(ctx context.Context) []*hydrationOutcome {
		var instructions []*blueprint.HydrationInstruction
		byInstruction := make(map[*blueprint.HydrationInstruction][]*hydrationTarget)
		for _, t := range targets {
			if _, ok := byInstruction[t.instruction]; !ok {
				instructions = append(instructions, t.instruction)
			}
			byInstruction[t.instruction] = append(byInstruction[t.instruction], t)
		}

		groups, _ := common.AsyncMap(ctx, instructions, func(ctx context.Context, ins *blueprint.HydrationInstruction) ([]*hydrationOutcome, error) {
			return batchHydrate(ctx, ectx, overallField, ins, byInstruction[ins]), nil
		})
		return lo.Flatten(groups)
	}

	return append(res, resolveOrDefer(ctx, ectx, overallField, resolve)...), nil
}

type batchCall struct {
	ids     []interface{}
	objects map[string]map[string]interface{}
	errors  gqlerrors.ErrorList
}

// batchHydrate resolves field for targets sharing the batched instruction
// ins. Every returned outcome matches the target at the same index.
func batchHydrate(
	ctx context.Context,
	ectx *ExecutionContext,
	field *normalized.Field,
	ins *blueprint.HydrationInstruction,
	targets []*hydrationTarget,
) []*hydrationOutcome {
	source := ins.SourceArgument()
	key := sourceKey(source.Source.PathToField)
	identity := artificialAlias("batch", ins.IdentifiedBy)

	outcomes := make([]*hydrationOutcome, len(targets))
	var args map[string]*normalized.InputValue
	var ids []interface{}
	for i, t := range targets {
		outcomes[i] = &hydrationOutcome{node: t.node}
		a, ok := actorArguments(ins, field, t.sources)
		if !ok {
			continue
		}
		if args == nil {
			args = a
		}
		ids = append(ids, lo.Filter(asList(t.sources[key]), func(v interface{}, _ int) bool { return v != nil })...)
	}
	ids = lo.UniqBy(ids, func(v interface{}) string { return fmt.Sprint(v) })
	if len(ids) == 0 {
		return outcomes
	}

	calls, _ := common.AsyncMap(ctx, ectx.hooks().chunkBatchArguments(ins, ids), func(ctx context.Context, chunk []interface{}) (*batchCall, error) {
		return callBatchActor(ctx, ectx, field, ins, withArgument(args, source.Name, chunk), identity), nil
	})

	objects := make(map[string]map[string]interface{})
	for _, call := range calls {
		for id, obj := range call.objects {
			objects[id] = obj
		}
	}

	for _, call := range calls {
		if len(call.errors) == 0 {
			continue
		}
		// errors of a call are reported at the first object asking for it
		for i, t := range targets {
			if containsAny(asList(t.sources[key]), call.ids) {
				target := t.node.ResultPath.PlusKey(field.ResultKey())
				outcomes[i].errors = append(outcomes[i].errors, call.errors.Relocate(ins.QueryPathToActorField, target)...)
				break
			}
		}
	}

	for i, t := range targets {
		value := t.sources[key]
		list, isList := value.([]interface{})
		if !isList {
			if value != nil {
				outcomes[i].value = copyValue(objects[fmt.Sprint(value)])
			}
			continue
		}

		values := make([]interface{}, len(list))
		for j, id := range list {
			if id == nil {
				continue
			}
			if obj, ok := objects[fmt.Sprint(id)]; ok {
				values[j] = copyValue(obj)
			}
		}
		outcomes[i].value = values
	}

	return outcomes
}

func callBatchActor(
	ctx context.Context,
	ectx *ExecutionContext,
	field *normalized.Field,
	ins *blueprint.HydrationInstruction,
	args map[string]*normalized.InputValue,
	identity string,
) *batchCall {
	call := &batchCall{
		ids:     args[ins.SourceArgument().Name].Value.([]interface{}),
		objects: make(map[string]map[string]interface{}),
	}

	children := append(actorChildren(field), &normalized.Field{
		Alias:           identity,
		Name:            ins.IdentifiedBy,
		ObjectTypeNames: possibleTypes(ectx.Blueprint, ins.ActorField.Type.Name()),
	})
	root := actorQuery(ectx.Blueprint, ins, args, children)
	details := &ExecutionDetails{Hydration: &HydrationDetails{Instruction: ins, CausingField: field}}

	result, err := ectx.Engine.Execute(ctx, ectx.WithDetails(details), ins.ActorService, ast.Query, []*normalized.Field{root})
	if err != nil {
		call.errors = gqlerrors.ErrorList{gqlerrors.NewError(
			gqlerrors.HydrationError, fmt.Errorf("hydrating %s: %w", ins.Location, err),
		)}
		return call
	}
	call.errors = result.Errors

	for _, v := range asList(dig(result.Data, ins.QueryPathToActorField)) {
		obj, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := obj[identity]
		if !ok || id == nil {
			continue
		}
		delete(obj, identity)
		call.objects[fmt.Sprint(id)] = obj
	}
	return call
}

func containsAny(values []interface{}, ids []interface{}) bool {
	set := lo.Associate(ids, func(id interface{}) (string, struct{}) { return fmt.Sprint(id), struct{}{} })
	return lo.SomeBy(values, func(v interface{}) bool {
		_, ok := set[fmt.Sprint(v)]
		return ok
	})
}

func asList(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return val
	default:
		return []interface{}{val}
	}
}

// copyValue deep copies a decoded JSON value, so objects matched by several
// parents do not share maps.
func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if val == nil {
			return nil
		}
		res := make(map[string]interface{}, len(val))
		for k, el := range val {
			res[k] = copyValue(el)
		}
		return res
	case []interface{}:
		res := make([]interface{}, len(val))
		for i, el := range val {
			res[i] = copyValue(el)
		}
		return res
	default:
		return val
	}
}
