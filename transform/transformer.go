package transform

import (
	"context"
	"strings"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Transformer turns the overall fields of one service execution into the
// fields of the underlying query.
type Transformer struct {
	ectx    *ExecutionContext
	service *blueprint.Service
	plan    *ExecutionPlan

	artificial []*normalized.Field
}

func NewTransformer(ectx *ExecutionContext, service *blueprint.Service) *Transformer {
	return &Transformer{
		ectx:    ectx,
		service: service,
		plan:    NewExecutionPlan(),
	}
}

func (tr *Transformer) Service() *blueprint.Service {
	return tr.service
}

func (tr *Transformer) Plan() *ExecutionPlan {
	return tr.plan
}

// ArtificialFields returns the fields injected by transforms, innermost first.
func (tr *Transformer) ArtificialFields() []*normalized.Field {
	return tr.artificial
}

// Transform returns the underlying top level fields for fields.
func (tr *Transformer) Transform(ctx context.Context, fields []*normalized.Field) ([]*normalized.Field, error) {
	res, err := tr.TransformFields(ctx, fields)
	if err != nil {
		return nil, err
	}

	for _, f := range res {
		f.Parent = nil
	}
	normalized.LinkParents(res...)
	return res, nil
}

// TransformFields transforms a list of sibling fields. Transforms call it
// for the children of fields they rebuild themselves.
func (tr *Transformer) TransformFields(ctx context.Context, fields []*normalized.Field) ([]*normalized.Field, error) {
	var res []*normalized.Field
	for _, f := range fields {
		underlying, err := tr.transformField(ctx, f)
		if err != nil {
			return nil, err
		}
		res = append(res, underlying...)
	}
	return res, nil
}

func (tr *Transformer) transformField(ctx context.Context, field *normalized.Field) ([]*normalized.Field, error) {
	current := field.CopyShallow()
	current.Parent = field.Parent
	visit := &Visit{Field: field}
	var artificial []*normalized.Field

	for _, t := range tr.ectx.Transforms {
		state, ok := t.IsApplicable(ctx, tr.ectx, tr.service, field)
		if !ok {
			continue
		}

		tr.ectx.logger().Debug("applying transform",
			zap.String("transform", t.Name()),
			zap.String("service", tr.service.Name),
			zap.Stringer("field", field.QueryPath()),
		)

		result, err := t.TransformField(ctx, tr.ectx, tr, tr.service, current, state)
		if err != nil {
			return nil, errors.Wrapf(err, "%s on %s", t.Name(), field.QueryPath())
		}
		visit.Steps = append(visit.Steps, &Step{Transform: t, State: state})

		artificial = append(artificial, result.ArtificialFields...)
		current = result.NewField
		if current == nil {
			break
		}
		current.Parent = field.Parent
	}

	var res []*normalized.Field
	if current != nil {
		if err := tr.finish(ctx, current); err != nil {
			return nil, err
		}
		res = append(res, current)
	}

	tr.artificial = append(tr.artificial, artificial...)
	res = append(res, artificial...)
	if len(visit.Steps) > 0 {
		visit.Produced = res
		tr.plan.add(visit)
	}
	return res, nil
}

// finish converts what is still overall in f: object type names, argument
// types and children.
func (tr *Transformer) finish(ctx context.Context, f *normalized.Field) error {
	f.ObjectTypeNames = tr.UnderlyingTypeNames(f.ObjectTypeNames)
	f.DeferredExecutions = nil
	for _, arg := range f.Arguments {
		arg.Type = tr.UnderlyingInputType(arg.Type)
	}

	children, err := tr.TransformFields(ctx, f.Children)
	if err != nil {
		return err
	}
	f.Children = children
	return nil
}

func (tr *Transformer) UnderlyingTypeName(name string) string {
	return tr.ectx.Blueprint.UnderlyingTypeName(tr.service, name)
}

func (tr *Transformer) UnderlyingTypeNames(names []string) []string {
	return lo.Map(names, func(n string, _ int) string {
		return tr.UnderlyingTypeName(n)
	})
}

// UnderlyingInputType renames the named type inside a type reference such
// as "[IssueInput!]!".
func (tr *Transformer) UnderlyingInputType(typeRef string) string {
	name := strings.Trim(typeRef, "[]!")
	underlying := tr.UnderlyingTypeName(name)
	if underlying == name {
		return typeRef
	}
	return strings.Replace(typeRef, name, underlying, 1)
}
