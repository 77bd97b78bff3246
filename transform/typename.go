package transform

import (
	"context"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
)

// TypeRenameTransform rewrites __typename values from underlying to overall
// type names.
type TypeRenameTransform struct{}

func (*TypeRenameTransform) Name() string { return "type-rename" }

func (*TypeRenameTransform) IsApplicable(
	_ context.Context,
	_ *ExecutionContext,
	_ *blueprint.Service,
	field *normalized.Field,
) (State, bool) {
	return nil, field.IsTypename() && !IsArtificialKey(field.ResultKey())
}

func (*TypeRenameTransform) TransformField(
	_ context.Context,
	_ *ExecutionContext,
	_ *Transformer,
	_ *blueprint.Service,
	field *normalized.Field,
	_ State,
) (*FieldResult, error) {
	return &FieldResult{NewField: field}, nil
}

func (*TypeRenameTransform) GetResultInstructions(
	_ context.Context,
	ectx *ExecutionContext,
	service *blueprint.Service,
	overallField *normalized.Field,
	underlyingParentField *normalized.Field,
	_ *ServiceResult,
	_ State,
	nodes *jsonnodes.JSONNodes,
) ([]Instruction, error) {
	parents, err := parentNodes(nodes, underlyingParentField)
	if err != nil {
		return nil, err
	}

	key := overallField.ResultKey()
	var res []Instruction
	for _, p := range parents {
		typename, ok := p.Object()[key].(string)
		if !ok {
			continue
		}
		if overall := ectx.Blueprint.OverallTypeName(service, typename); overall != typename {
			res = append(res, Set{Subject: p, Key: key, Value: overall})
		}
	}
	return res, nil
}
