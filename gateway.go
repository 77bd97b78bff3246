// Package quilt is a GraphQL gateway: it serves one overall schema stitched
// from several underlying services.
package quilt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/executor"
	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/incremental"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/queryer"
	"github.com/buildbuildio/quilt/requests"
	"github.com/buildbuildio/quilt/transform"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Gateway struct {
	blueprint *blueprint.Blueprint
	executor  *executor.Executor
	documents *documentCache
	logger    *zap.Logger

	tracer           trace.Tracer
	hooks            *transform.Hooks
	transforms       []transform.Transform
	queryerFactory   queryer.Factory
	middlewares      []queryer.RequestMiddleware
	deferSupport     bool
	blueprintOptions []blueprint.LoadOption
	queryCacheTTL    time.Duration
}

type GatewayOption func(*Gateway)

func WithLogger(logger *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) GatewayOption {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

func WithHooks(hooks *transform.Hooks) GatewayOption {
	return func(g *Gateway) {
		g.hooks = hooks
	}
}

func WithTransforms(transforms ...transform.Transform) GatewayOption {
	return func(g *Gateway) {
		g.transforms = transforms
	}
}

// WithQueryerFactory replaces the http queryers. Request middlewares have no
// effect then.
func WithQueryerFactory(f queryer.Factory) GatewayOption {
	return func(g *Gateway) {
		g.queryerFactory = f
	}
}

// WithRequestMiddlewares runs mwares on every http request to a service.
func WithRequestMiddlewares(mwares ...queryer.RequestMiddleware) GatewayOption {
	return func(g *Gateway) {
		g.middlewares = mwares
	}
}

// WithDeferSupport enables incremental delivery of @defer fragments to
// clients accepting multipart/mixed and to websocket clients. Without it
// deferred fields are resolved with the initial result.
func WithDeferSupport(enabled bool) GatewayOption {
	return func(g *Gateway) {
		g.deferSupport = enabled
	}
}

func WithBlueprintOptions(opts ...blueprint.LoadOption) GatewayOption {
	return func(g *Gateway) {
		g.blueprintOptions = opts
	}
}

// WithQueryCache keeps validated query documents for ttl.
func WithQueryCache(ttl time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.queryCacheTTL = ttl
	}
}

func NewGateway(services []*blueprint.ServiceDefinition, options ...GatewayOption) (*Gateway, error) {
	g := &Gateway{
		logger: zap.NewNop(),
	}

	for _, optionFunc := range options {
		optionFunc(g)
	}

	bp, err := blueprint.Load(services, g.blueprintOptions...)
	if err != nil {
		return nil, fmt.Errorf("unable to load blueprint: %w", err)
	}
	g.blueprint = bp

	if g.queryCacheTTL > 0 {
		g.documents = newDocumentCache(bp.Schema, g.queryCacheTTL)
	}

	if g.queryerFactory == nil {
		// every service call is a single operation
		g.queryerFactory = queryer.NewFactory(1, g.middlewares...)
	}

	execOpts := []executor.Option{
		executor.WithLogger(g.logger),
		executor.WithQueryerFactory(g.queryerFactory),
	}
	if g.tracer != nil {
		execOpts = append(execOpts, executor.WithTracer(g.tracer))
	}
	if g.hooks != nil {
		execOpts = append(execOpts, executor.WithHooks(g.hooks))
	}
	if g.transforms != nil {
		execOpts = append(execOpts, executor.WithTransforms(g.transforms...))
	}
	g.executor = executor.New(bp, execOpts...)

	g.logger.Info("gateway ready",
		zap.Int("services", len(bp.Services)),
		zap.Int("types", len(bp.Schema.Types)),
	)

	return g, nil
}

// Schema is the overall schema.
func (g *Gateway) Schema() *ast.Schema {
	return g.blueprint.Schema
}

type Result struct {
	Errors  gqlerrors.ErrorList    `json:"errors,omitempty"`
	Data    map[string]interface{} `json:"data"`
	HasNext *bool                  `json:"hasNext,omitempty"`

	incremental *incremental.Support
}

type Results []*Result

func (rs Results) Emit(w http.ResponseWriter, isBatch bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	e := json.NewEncoder(w)
	if isBatch {
		e.Encode(rs)
	} else {
		e.Encode(rs[0])
	}
}

// Execute runs one request. With incrementalDelivery set the result may
// carry deferred payloads, see Stream.
func (g *Gateway) Execute(ctx context.Context, request *requests.Request, incrementalDelivery bool) *Result {
	query, qerr := g.loadQuery(request.Query)
	if qerr != nil {
		return &Result{Errors: gqlerrors.FormatError(qerr)}
	}

	var operation *ast.OperationDefinition
	if request.OperationName != nil {
		operation = query.Operations.ForName(*request.OperationName)
	} else if len(query.Operations) == 1 {
		operation = query.Operations[0]
	}

	if operation == nil {
		var err error
		if request.OperationName != nil {
			err = fmt.Errorf(
				"unable to extract query for operation %s",
				*request.OperationName,
			)
		} else {
			err = errors.New("many queries provided, but no operationName")
		}
		return &Result{
			Errors: gqlerrors.ErrorList{
				gqlerrors.NewError(gqlerrors.ValidationFailedError, err),
			},
		}
	}

	variables, verr := validator.VariableValues(g.blueprint.Schema, operation, request.Variables)
	if verr != nil {
		return &Result{Errors: gqlerrors.FormatError(verr)}
	}

	fields, err := normalized.Normalize(g.blueprint.Schema, operation, variables)
	if err != nil {
		return &Result{
			Errors: gqlerrors.ErrorList{
				gqlerrors.NewError(gqlerrors.ValidationFailedError, err),
			},
		}
	}

	res, err := g.executor.Execute(ctx, operation.Operation, fields, incrementalDelivery)
	if err != nil {
		g.logger.Error("operation failed",
			zap.String("operation", request.GetOperationName()),
			zap.Error(err),
		)
		return &Result{Errors: gqlerrors.FormatError(err)}
	}

	result := &Result{Data: res.Data, Errors: res.Errors}
	if res.Incremental != nil {
		hasNext := res.HasNext()
		result.HasNext = &hasNext
		result.incremental = res.Incremental
	}
	return result
}

func (g *Gateway) loadQuery(query string) (*ast.QueryDocument, gqlerror.List) {
	if g.documents != nil {
		return g.documents.Load(query)
	}
	return gqlparser.LoadQuery(g.blueprint.Schema, query)
}

// queryHandler responds to POST requests. Requests can either be a single
// object with { query, variables, operationName } or a list of that object.
// Single requests of clients accepting multipart/mixed get deferred
// fragments incrementally, batches get them inline.
func (g *Gateway) queryHandler(w http.ResponseWriter, r *http.Request) {
	rs, err := requests.Parse(r)
	if err != nil {
		emitError(
			w,
			http.StatusUnprocessableEntity,
			err,
		)
		return
	}

	if !rs.IsBatchMode {
		// deferred jobs outlive Execute, so they are scoped to the request
		result := g.Execute(r.Context(), rs.Requests[0], g.deferSupport && rs.AcceptsIncremental)
		if result.incremental != nil {
			g.stream(w, r, result)
			return
		}
		Results{result}.Emit(w, false)
		return
	}

	// batches are never delivered incrementally
	results, _ := common.AsyncMap(r.Context(), rs.Requests, func(ctx context.Context, request *requests.Request) (*Result, error) {
		return g.Execute(ctx, request, false), nil
	})

	// emit the response
	Results(results).Emit(w, true)
}

func emitError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]interface{}{
		"data":   nil,
		"errors": gqlerrors.FormatError(err),
	}

	e := json.NewEncoder(w)
	e.Encode(resp)
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (g *Gateway) Handler(w http.ResponseWriter, r *http.Request) {
	if isWebsocketUpgrade(r) {
		g.websocketHandler(w, r)
		return
	}

	g.queryHandler(w, r)
}
