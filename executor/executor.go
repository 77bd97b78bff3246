// Package executor runs normalized operations against the underlying
// services: it routes top level fields, executes every route through the
// transform pipeline and stitches the results together.
package executor

import (
	"context"
	"fmt"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/incremental"
	"github.com/buildbuildio/quilt/introspection"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/queryer"
	"github.com/buildbuildio/quilt/requests"
	"github.com/buildbuildio/quilt/transform"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/buildbuildio/quilt"

// Result of one operation. Incremental is set when deferred payloads follow
// the initial result; the caller must call InitialSent on it once Data and
// Errors were delivered and then drain its Results.
type Result struct {
	Data        map[string]interface{}
	Errors      gqlerrors.ErrorList
	Incremental *incremental.Support
}

// HasNext is the hasNext value of the initial result.
func (r *Result) HasNext() bool {
	return r.Incremental != nil && r.Incremental.Launched()
}

type Executor struct {
	blueprint  *blueprint.Blueprint
	transforms []transform.Transform
	hooks      *transform.Hooks
	logger     *zap.Logger
	engine     *engine
}

type Option func(*options)

type options struct {
	factory    queryer.Factory
	queryers   map[string]queryer.Queryer
	transforms []transform.Transform
	hooks      *transform.Hooks
	logger     *zap.Logger
	tracer     trace.Tracer
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func WithHooks(hooks *transform.Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithTransforms replaces the default transforms. Order matters, see
// transform.DefaultTransforms.
func WithTransforms(transforms ...transform.Transform) Option {
	return func(o *options) {
		o.transforms = transforms
	}
}

// WithQueryerFactory sets how queryers are built for services that were not
// given one with WithQueryers.
func WithQueryerFactory(factory queryer.Factory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithQueryers sets the queryers of services by name.
func WithQueryers(queryers map[string]queryer.Queryer) Option {
	return func(o *options) {
		o.queryers = queryers
	}
}

func New(bp *blueprint.Blueprint, opts ...Option) *Executor {
	o := &options{
		factory:    queryer.NewFactory(1),
		transforms: transform.DefaultTransforms(),
		hooks:      &transform.Hooks{},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}

	queryers := make(map[string]queryer.Queryer, len(bp.Services))
	for _, s := range bp.Services {
		if q, ok := o.queryers[s.Name]; ok {
			queryers[s.Name] = q
			continue
		}
		queryers[s.Name] = o.factory(s.Name, s.URL)
	}

	return &Executor{
		blueprint:  bp,
		transforms: o.transforms,
		hooks:      o.hooks,
		logger:     o.logger,
		engine: &engine{
			queryers: queryers,
			tracer:   o.tracer,
			logger:   o.logger,
		},
	}
}

// Execute resolves the top level fields of a normalized operation. Service
// failures become errors of the fields they should have resolved; an error
// is only returned when the operation cannot be executed at all.
//
// With incrementalDelivery set deferred fields are left out of the initial
// result and delivered through Result.Incremental. Otherwise @defer is
// ignored.
func (e *Executor) Execute(
	ctx context.Context,
	operation ast.Operation,
	fields []*normalized.Field,
	incrementalDelivery bool,
) (*Result, error) {
	if operation == ast.Subscription {
		return nil, errors.Errorf("operation %s is not supported", operation)
	}

	var support *incremental.Support
	if incrementalDelivery {
		if acc := incremental.NewAccumulator(fields); acc.HasDeferredFields() {
			support = incremental.NewSupport(ctx, acc, e.logger)
		}
	}

	ectx := &transform.ExecutionContext{
		Blueprint:   e.blueprint,
		Engine:      e.engine,
		Transforms:  e.transforms,
		Hooks:       e.hooks,
		Logger:      e.logger,
		Operation:   operation,
		Incremental: support,
	}

	routing := RouteFields(e.blueprint, operation, fields)
	outcomes, err := e.executeRoutes(ctx, ectx, operation, routing.Routes)
	if err != nil {
		if support != nil {
			support.Cancel()
		}
		return nil, err
	}

	result := &Result{Data: make(map[string]interface{})}
	for _, o := range outcomes {
		result.Data = mergeMaps(result.Data, o.Data)
		result.Errors = append(result.Errors, o.Errors...)
	}

	for _, f := range routing.Local {
		if f.IsTypename() {
			result.Data[f.ResultKey()] = e.blueprint.RootTypeName(operation)
		}
	}
	result.Data = mergeMaps(result.Data, introspection.Resolve(e.blueprint.Schema, routing.Local))

	for _, f := range routing.Unowned {
		var keys []string
		if f.Parent != nil {
			keys = []string{f.Parent.ResultKey()}
		}
		setAt(result.Data, keys, f.ResultKey(), nil)
		result.Errors = append(result.Errors, gqlerrors.NewPathError(
			gqlerrors.ExecutionAbortedError,
			keyPath(append(keys, f.ResultKey())...),
			fmt.Errorf("no service resolves field %s", f.Name),
		))
	}

	if support != nil {
		if payloads := extractDeferred(fields, result.Data); len(payloads) > 0 {
			support.Launch(func(context.Context) []*requests.IncrementalPayload {
				return payloads
			})
		}

		if support.Launched() {
			result.Incremental = support
		} else {
			// nothing was deferred after all
			support.InitialSent()
			support.Cancel()
		}
	}

	return result, nil
}

func (e *Executor) executeRoutes(
	ctx context.Context,
	ectx *transform.ExecutionContext,
	operation ast.Operation,
	routes []*Route,
) ([]*transform.ServiceResult, error) {
	run := func(ctx context.Context, route *Route) (*transform.ServiceResult, error) {
		return e.executeRoute(ctx, ectx, operation, route), nil
	}

	if operation != ast.Mutation {
		return common.AsyncMap(ctx, routes, run)
	}

	// mutations run one after another
	res := make([]*transform.ServiceResult, 0, len(routes))
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, _ := run(ctx, route)
		res = append(res, r)
	}
	return res, nil
}

// executeRoute never fails: a failed call sets the route's fields to null
// with an error each.
func (e *Executor) executeRoute(
	ctx context.Context,
	ectx *transform.ExecutionContext,
	operation ast.Operation,
	route *Route,
) *transform.ServiceResult {
	res, err := e.engine.Execute(ctx, ectx, route.Service, operation, route.Fields)
	if err == nil {
		return res
	}

	res = &transform.ServiceResult{Data: make(map[string]interface{})}
	rootType := e.blueprint.RootTypeName(operation)

	for _, f := range route.Fields {
		if !e.blueprint.IsNamespaced(rootType, f.Name) {
			res.Data[f.ResultKey()] = nil
			res.Errors = append(res.Errors, abortedError(keyPath(f.ResultKey()), route.Service, err))
			continue
		}

		// namespaces are shared with other routes, null only this part
		ns := make(map[string]interface{}, len(f.Children))
		for _, c := range f.Children {
			if c.IsTypename() {
				continue
			}
			ns[c.ResultKey()] = nil
			res.Errors = append(res.Errors, abortedError(keyPath(f.ResultKey(), c.ResultKey()), route.Service, err))
		}
		res.Data[f.ResultKey()] = ns
	}

	return res
}

func keyPath(keys ...string) []interface{} {
	res := make([]interface{}, len(keys))
	for i, k := range keys {
		res[i] = k
	}
	return res
}

func abortedError(path []interface{}, service *blueprint.Service, err error) *gqlerrors.Error {
	return gqlerrors.NewPathError(
		gqlerrors.ExecutionAbortedError,
		path,
		errors.Wrapf(err, "calling service %s", service.Name),
	)
}
