package transform

import (
	"context"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/samber/lo"
)

// NamespacedTransform answers __typename of namespace objects itself, so
// the namespace field can be sent to several services.
type NamespacedTransform struct{}

type namespacedState struct {
	typeName   string
	typenames  []*normalized.Field
	artificial *normalized.Field
}

func (*NamespacedTransform) Name() string { return "namespaced" }

func (*NamespacedTransform) IsApplicable(
	_ context.Context,
	ectx *ExecutionContext,
	_ *blueprint.Service,
	field *normalized.Field,
) (State, bool) {
	if field.Parent != nil || len(field.ObjectTypeNames) != 1 ||
		!ectx.Blueprint.IsNamespaced(field.ObjectTypeNames[0], field.Name) {
		return nil, false
	}

	def := ectx.Blueprint.FieldDefinition(field.ObjectTypeNames[0], field.Name)
	if def == nil {
		return nil, false
	}

	return &namespacedState{typeName: def.Type.Name()}, true
}

func (*NamespacedTransform) TransformField(
	_ context.Context,
	_ *ExecutionContext,
	_ *Transformer,
	_ *blueprint.Service,
	field *normalized.Field,
	state State,
) (*FieldResult, error) {
	s := state.(*namespacedState)

	isTypename := func(c *normalized.Field, _ int) bool { return c.IsTypename() }
	s.typenames = lo.Filter(field.Children, isTypename)
	rest := lo.Reject(field.Children, isTypename)

	nf := field.CopyShallow()
	nf.Children = rest
	if len(rest) == 0 {
		// an empty selection is not valid, the key is removed from results
		s.artificial = normalized.NewTypenameField(
			artificialAlias("namespaced", field.ResultKey(), typenameAliasPart),
			[]string{s.typeName},
		)
		nf.Children = []*normalized.Field{s.artificial}
	}
	return &FieldResult{NewField: nf}, nil
}

func (*NamespacedTransform) GetResultInstructions(
	_ context.Context,
	_ *ExecutionContext,
	_ *blueprint.Service,
	overallField *normalized.Field,
	underlyingParentField *normalized.Field,
	_ *ServiceResult,
	state State,
	nodes *jsonnodes.JSONNodes,
) ([]Instruction, error) {
	s := state.(*namespacedState)
	if len(s.typenames) == 0 && s.artificial == nil {
		return nil, nil
	}

	parents, err := parentNodes(nodes, underlyingParentField)
	if err != nil {
		return nil, err
	}

	var res []Instruction
	for _, p := range parents {
		namespace, ok := p.Object()[overallField.ResultKey()].(map[string]interface{})
		if !ok {
			continue
		}
		subject := &jsonnodes.JSONNode{ResultPath: p.ResultPath.PlusKey(overallField.ResultKey()), Value: namespace}
		for _, t := range s.typenames {
			res = append(res, Set{Subject: subject, Key: t.ResultKey(), Value: s.typeName})
		}
		if s.artificial != nil {
			res = append(res, Remove{Subject: subject, Key: s.artificial.ResultKey()})
		}
	}
	return res, nil
}
