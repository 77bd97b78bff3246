package executor

import (
	"context"
	"fmt"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/format"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/queryer"
	"github.com/buildbuildio/quilt/requests"
	"github.com/buildbuildio/quilt/transform"
	"github.com/vektah/gqlparser/v2/ast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// engine runs one service execution: transform, print, query and transform
// the result back.
type engine struct {
	queryers map[string]queryer.Queryer
	tracer   trace.Tracer
	logger   *zap.Logger
}

var _ transform.Engine = &engine{}

func (e *engine) Execute(
	ctx context.Context,
	ectx *transform.ExecutionContext,
	service *blueprint.Service,
	operation ast.Operation,
	fields []*normalized.Field,
) (*transform.ServiceResult, error) {
	ctx, span := e.tracer.Start(ctx, "quilt.service.execute", trace.WithAttributes(
		attribute.String("quilt.service", service.Name),
		attribute.String("quilt.operation", string(operation)),
		attribute.Bool("quilt.hydration", ectx.Details != nil && ectx.Details.Hydration != nil),
		attribute.Bool("quilt.partitioned", ectx.Details != nil && ectx.Details.Partitioned),
	))
	defer span.End()

	result, err := e.execute(ctx, ectx, service, operation, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("service execution failed",
			zap.String("service", service.Name),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("quilt.error_count", len(result.Errors)))
	return result, nil
}

func (e *engine) execute(
	ctx context.Context,
	ectx *transform.ExecutionContext,
	service *blueprint.Service,
	operation ast.Operation,
	fields []*normalized.Field,
) (*transform.ServiceResult, error) {
	q, ok := e.queryers[service.Name]
	if !ok {
		return nil, fmt.Errorf("no queryer for service %s", service.Name)
	}

	tr := transform.NewTransformer(ectx, service)
	underlying, err := tr.Transform(ctx, fields)
	if err != nil {
		return nil, err
	}

	doc := format.FormatOperation(operation, "", underlying)
	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("querying service",
			zap.String("service", service.Name),
			zap.String("query", format.Debug(doc.Query)),
		)
	}

	resps, err := q.Query(ctx, []*requests.Request{{Query: doc.Query, Variables: doc.Variables}})
	if err != nil {
		return nil, err
	}
	if len(resps) != 1 || resps[0] == nil {
		return nil, fmt.Errorf("expected one response from %s, got %d", service.Name, len(resps))
	}

	result := &transform.ServiceResult{Data: resps[0].Data, Errors: resps[0].Errors}
	if err := transform.TransformResult(ctx, tr, result); err != nil {
		return nil, err
	}
	return result, nil
}
