package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/requests"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

// HydrationTransform resolves @hydrated fields by calling the actor field
// once per parent object, or once per source element for many-to-one
// instructions.
type HydrationTransform struct{}

type hydrationSource struct {
	path  []string
	alias string
}

type hydrationState struct {
	// instructions by overall object type
	instructions map[string][]*blueprint.HydrationInstruction

	sources      []*hydrationSource
	typename     string
	fallbackType string
}

// hydrationTarget is a parent object the hydrated field is resolved for.
type hydrationTarget struct {
	node        *jsonnodes.JSONNode
	instruction *blueprint.HydrationInstruction
	sources     map[string]interface{}
}

type hydrationOutcome struct {
	node   *jsonnodes.JSONNode
	value  interface{}
	errors gqlerrors.ErrorList
}

func (*HydrationTransform) Name() string { return "hydration" }

func (*HydrationTransform) IsApplicable(
	_ context.Context,
	ectx *ExecutionContext,
	_ *blueprint.Service,
	field *normalized.Field,
) (State, bool) {
	return hydrationApplicable(ectx, field, false)
}

// hydrationApplicable collects the instructions of field per object type.
// Types whose instructions are all batched belong to the batch transform.
func hydrationApplicable(ectx *ExecutionContext, field *normalized.Field, batched bool) (State, bool) {
	instructions := make(map[string][]*blueprint.HydrationInstruction)
	for _, t := range field.ObjectTypeNames {
		list := ectx.Blueprint.Hydrations[blueprint.FieldCoordinates{TypeName: t, FieldName: field.Name}]
		if len(list) == 0 {
			continue
		}
		allBatched := lo.EveryBy(list, func(h *blueprint.HydrationInstruction) bool { return h.Batched })
		if allBatched == batched {
			instructions[t] = list
		}
	}
	if len(instructions) == 0 {
		return nil, false
	}
	return &hydrationState{instructions: instructions}, true
}

func (*HydrationTransform) TransformField(
	_ context.Context,
	_ *ExecutionContext,
	tr *Transformer,
	_ *blueprint.Service,
	field *normalized.Field,
	state State,
) (*FieldResult, error) {
	return transformHydratedField(tr, field, state.(*hydrationState), "hydration"), nil
}

// transformHydratedField drops field for the hydrated types and selects the
// source values of their instructions instead.
func transformHydratedField(tr *Transformer, field *normalized.Field, s *hydrationState, prefix string) *FieldResult {
	hydrated := lo.Filter(field.ObjectTypeNames, func(t string, _ int) bool {
		_, ok := s.instructions[t]
		return ok
	})
	plain := lo.Without(field.ObjectTypeNames, hydrated...)

	res := &FieldResult{}
	if len(plain) > 0 {
		res.NewField = field.CopyShallow()
		res.NewField.ObjectTypeNames = plain
	}

	roots := make(map[string]*normalized.Field)
	for _, t := range hydrated {
		underlying := tr.UnderlyingTypeName(t)
		for _, ins := range s.instructions[t] {
			for _, path := range ins.SourceFieldPaths() {
				alias := artificialAlias(prefix, field.ResultKey(), strings.Join(path, "_"))
				if root, ok := roots[alias]; ok {
					root.ObjectTypeNames = lo.Union(root.ObjectTypeNames, []string{underlying})
					continue
				}

				root, _ := fieldChain(alias, path, []string{underlying})
				roots[alias] = root
				s.sources = append(s.sources, &hydrationSource{path: path, alias: alias})
				res.ArtificialFields = append(res.ArtificialFields, root)
			}
		}
	}

	if len(hydrated) == 1 {
		s.fallbackType = hydrated[0]
	}
	if needsTypename(field) || len(res.ArtificialFields) == 0 {
		s.typename = artificialAlias(prefix, field.ResultKey(), typenameAliasPart)
		res.ArtificialFields = append(res.ArtificialFields,
			normalized.NewTypenameField(s.typename, tr.UnderlyingTypeNames(siblingTypes(field))))
	}

	return res
}

// targets picks the instruction for every parent object of a hydrated type.
// Objects without a usable instruction get null.
func (s *hydrationState) targets(
	ectx *ExecutionContext,
	service *blueprint.Service,
	field *normalized.Field,
	parents []*jsonnodes.JSONNode,
) ([]*hydrationTarget, []Instruction) {
	var targets []*hydrationTarget
	var nulls []Instruction

	for _, p := range parents {
		typeName := s.fallbackType
		if s.typename != "" {
			typeName = objectTypeOf(ectx, service, p, s.typename, s.fallbackType)
		}
		instructions, ok := s.instructions[typeName]
		if !ok {
			continue
		}

		sources := make(map[string]interface{}, len(s.sources))
		for _, src := range s.sources {
			sources[sourceKey(src.path)] = dig(p.Object()[src.alias], src.path[1:])
		}

		candidates := lo.Map(instructions, func(ins *blueprint.HydrationInstruction, _ int) *HydrationCandidate {
			c := &HydrationCandidate{Instruction: ins, Sources: make(map[string]interface{})}
			for _, path := range ins.SourceFieldPaths() {
				c.Sources[sourceKey(path)] = sources[sourceKey(path)]
			}
			return c
		})

		ins := ectx.hooks().chooseHydrationInstruction(field, candidates)
		if ins == nil {
			nulls = append(nulls, Set{Subject: p, Key: field.ResultKey(), Value: nil})
			continue
		}
		targets = append(targets, &hydrationTarget{node: p, instruction: ins, sources: sources})
	}

	return targets, nulls
}

func (*HydrationTransform) GetResultInstructions(
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
		outcomes, _ := common.AsyncMap(ctx, targets, func(ctx context.Context, t *hydrationTarget) (*hydrationOutcome, error) {
			if t.instruction.Batched {
				return batchHydrate(ctx, ectx, overallField, t.instruction, []*hydrationTarget{t})[0], nil
			}
			return hydrate(ctx, ectx, overallField, t), nil
		})
		return outcomes
	}

	return append(res, resolveOrDefer(ctx, ectx, overallField, resolve)...), nil
}

// resolveOrDefer resolves outcomes inline, or in a deferred job when field
// is deferred and the operation is delivered incrementally.
func resolveOrDefer(
	ctx context.Context,
	ectx *ExecutionContext,
	field *normalized.Field,
	resolve func(ctx context.Context) []*hydrationOutcome,
) []Instruction {
	if ectx.CanDefer() && field.IsDeferred() {
		ectx.Incremental.Launch(func(ctx context.Context) []*requests.IncrementalPayload {
			return outcomePayloads(field, resolve(ctx))
		})
		return nil
	}

	var res []Instruction
	for _, o := range resolve(ctx) {
		if o == nil {
			continue
		}
		res = append(res, Set{Subject: o.node, Key: field.ResultKey(), Value: o.value})
		for _, e := range o.errors {
			res = append(res, AddError{Error: e})
		}
	}
	return res
}

// outcomePayloads turns outcomes into one payload per parent object and
// defer label. Errors go with the first label only.
func outcomePayloads(field *normalized.Field, outcomes []*hydrationOutcome) []*requests.IncrementalPayload {
	labels := lo.Uniq(lo.Map(field.DeferredExecutions, func(e *normalized.DeferredExecution, _ int) string {
		return e.Label
	}))

	var res []*requests.IncrementalPayload
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		for i, label := range labels {
			p := &requests.IncrementalPayload{
				Data:  map[string]interface{}{field.ResultKey(): o.value},
				Path:  o.node.ResultPath,
				Label: label,
			}
			if i == 0 {
				p.Errors = o.errors
			}
			res = append(res, p)
		}
	}
	return res
}

// hydrate calls the actor for one parent object.
func hydrate(ctx context.Context, ectx *ExecutionContext, field *normalized.Field, t *hydrationTarget) *hydrationOutcome {
	target := t.node.ResultPath.PlusKey(field.ResultKey())
	ins := t.instruction

	args, ok := actorArguments(ins, field, t.sources)
	if !ok {
		return &hydrationOutcome{node: t.node}
	}

	if ins.Strategy != blueprint.ManyToOne {
		value, errs := callActor(ctx, ectx, field, ins, args, target)
		return &hydrationOutcome{node: t.node, value: value, errors: errs}
	}

	list, ok := args[ins.InputArgumentName].Value.([]interface{})
	if !ok {
		list = []interface{}{args[ins.InputArgumentName].Value}
	}

	type element struct {
		value  interface{}
		errors gqlerrors.ErrorList
	}
	elements, _ := common.AsyncMap(ctx, lo.Range(len(list)), func(ctx context.Context, i int) (*element, error) {
		if list[i] == nil {
			return &element{}, nil
		}
		value, errs := callActor(ctx, ectx, field, ins, withArgument(args, ins.InputArgumentName, list[i]), target.PlusIndex(i))
		return &element{value: value, errors: errs}, nil
	})

	o := &hydrationOutcome{node: t.node}
	values := make([]interface{}, len(elements))
	for i, el := range elements {
		if el == nil {
			continue
		}
		values[i] = el.value
		o.errors = append(o.errors, el.errors...)
	}
	o.value = values
	return o
}

// callActor executes the actor query and returns the actor field value with
// errors relocated to target.
func callActor(
	ctx context.Context,
	ectx *ExecutionContext,
	field *normalized.Field,
	ins *blueprint.HydrationInstruction,
	args map[string]*normalized.InputValue,
	target []interface{},
) (interface{}, gqlerrors.ErrorList) {
	root := actorQuery(ectx.Blueprint, ins, args, actorChildren(field))
	details := &ExecutionDetails{Hydration: &HydrationDetails{Instruction: ins, CausingField: field}}

	result, err := ectx.Engine.Execute(ctx, ectx.WithDetails(details), ins.ActorService, ast.Query, []*normalized.Field{root})
	if err != nil {
		return nil, gqlerrors.ErrorList{gqlerrors.NewPathError(
			gqlerrors.HydrationError, target, fmt.Errorf("hydrating %s: %w", ins.Location, err),
		)}
	}

	return dig(result.Data, ins.QueryPathToActorField), result.Errors.Relocate(ins.QueryPathToActorField, target)
}
