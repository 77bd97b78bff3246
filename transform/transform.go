// Package transform rewrites overall fields into underlying ones and turns
// underlying results back into overall results.
//
// Every Transform works on one field at a time. IsApplicable decides, from
// static metadata only, whether the transform takes part in the field's
// execution and returns the State threaded through the other two hooks.
// TransformField rewrites the field for the underlying query and
// GetResultInstructions describes how the underlying result must change.
package transform

import (
	"context"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/incremental"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
)

// State is private to one transform and one field.
type State interface{}

// FieldResult is the outcome of TransformField. A nil NewField removes the
// field from the underlying query. ArtificialFields are added next to it and
// removed from the result once instructions are applied.
type FieldResult struct {
	NewField         *normalized.Field
	ArtificialFields []*normalized.Field
}

type Transform interface {
	Name() string
	IsApplicable(
		ctx context.Context,
		ectx *ExecutionContext,
		service *blueprint.Service,
		field *normalized.Field,
	) (State, bool)
	TransformField(
		ctx context.Context,
		ectx *ExecutionContext,
		tr *Transformer,
		service *blueprint.Service,
		field *normalized.Field,
		state State,
	) (*FieldResult, error)
	GetResultInstructions(
		ctx context.Context,
		ectx *ExecutionContext,
		service *blueprint.Service,
		overallField *normalized.Field,
		underlyingParentField *normalized.Field,
		result *ServiceResult,
		state State,
		nodes *jsonnodes.JSONNodes,
	) ([]Instruction, error)
}

// ServiceResult is the result of one service execution. Before instructions
// are applied it is shaped like the underlying query, afterwards like the
// overall one.
type ServiceResult struct {
	Data   map[string]interface{}
	Errors gqlerrors.ErrorList
}

// HydrationDetails describe why an execution takes place.
type HydrationDetails struct {
	Instruction  *blueprint.HydrationInstruction
	CausingField *normalized.Field
}

// ExecutionDetails are set for executions the engine starts on its own.
type ExecutionDetails struct {
	Hydration   *HydrationDetails
	Partitioned bool
}

// Engine executes overall fields against a service. Hydration and partition
// use it for their sub-calls.
type Engine interface {
	Execute(
		ctx context.Context,
		ectx *ExecutionContext,
		service *blueprint.Service,
		operation ast.Operation,
		fields []*normalized.Field,
	) (*ServiceResult, error)
}

// ExecutionContext is shared by all executions of one client operation.
type ExecutionContext struct {
	Blueprint  *blueprint.Blueprint
	Engine     Engine
	Transforms []Transform
	Hooks      *Hooks
	Logger     *zap.Logger
	Operation  ast.Operation

	// Details is nil for fields of the client operation.
	Details *ExecutionDetails
	// Incremental is nil when results are not delivered incrementally.
	Incremental *incremental.Support
}

// WithDetails returns a copy of the context for a sub-execution.
func (e *ExecutionContext) WithDetails(details *ExecutionDetails) *ExecutionContext {
	c := *e
	c.Details = details
	return &c
}

// CanDefer reports whether deferred work may be launched. Sub-executions
// resolve everything inline; their result paths are not the client's.
func (e *ExecutionContext) CanDefer() bool {
	return e.Incremental != nil && e.Details == nil
}

func (e *ExecutionContext) hooks() *Hooks {
	if e.Hooks == nil {
		return &Hooks{}
	}
	return e.Hooks
}

func (e *ExecutionContext) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// DefaultTransforms returns every transform in the order they are applied.
func DefaultTransforms() []Transform {
	return []Transform{
		&NamespacedTransform{},
		&TypeRenameTransform{},
		&PartitionTransform{},
		&RenameTransform{},
		&BatchHydrationTransform{},
		&HydrationTransform{},
	}
}
