package executor

import (
	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/vektah/gqlparser/v2/ast"
)

// Route is a group of top level fields resolved by one service call.
type Route struct {
	Service *blueprint.Service
	Fields  []*normalized.Field
}

// Routing is the split of an operation's top level fields.
type Routing struct {
	Routes []*Route
	// Local fields are answered by the gateway itself: __typename of the
	// root type and introspection.
	Local []*normalized.Field
	// Unowned fields have no service resolving them.
	Unowned []*normalized.Field
}

// RouteFields groups top level fields by the service owning them. Namespaced
// fields are split by the owners of their children, every part keeping the
// namespace field. Mutation fields are only grouped when adjacent so they
// run in the order they were requested.
func RouteFields(bp *blueprint.Blueprint, operation ast.Operation, fields []*normalized.Field) *Routing {
	rootType := bp.RootTypeName(operation)
	r := &routing{Routing: &Routing{}, serial: operation == ast.Mutation}

	for _, f := range fields {
		switch {
		case f.IsTypename(), common.IsIntrospectionFieldName(f.Name):
			r.Local = append(r.Local, f)
		case bp.IsNamespaced(rootType, f.Name):
			r.namespaced(bp, rootType, f)
		default:
			owner, ok := bp.Owner(rootType, f.Name)
			if !ok {
				r.Unowned = append(r.Unowned, f)
				continue
			}
			r.add(owner, f)
		}
	}

	return r.Routing
}

type routing struct {
	*Routing
	serial bool
}

func (r *routing) add(service *blueprint.Service, f *normalized.Field) {
	if r.serial {
		if n := len(r.Routes); n > 0 && r.Routes[n-1].Service == service {
			r.Routes[n-1].Fields = append(r.Routes[n-1].Fields, f)
			return
		}
	} else {
		for _, route := range r.Routes {
			if route.Service == service {
				route.Fields = append(route.Fields, f)
				return
			}
		}
	}
	r.Routes = append(r.Routes, &Route{Service: service, Fields: []*normalized.Field{f}})
}

func (r *routing) namespaced(bp *blueprint.Blueprint, rootType string, f *normalized.Field) {
	def := bp.FieldDefinition(rootType, f.Name)
	if def == nil {
		r.Unowned = append(r.Unowned, f)
		return
	}
	namespaceType := def.Type.Name()

	var services []*blueprint.Service
	var typenames []*normalized.Field
	children := make(map[*blueprint.Service][]*normalized.Field)

	for _, c := range f.Children {
		if c.IsTypename() {
			typenames = append(typenames, c)
			continue
		}
		owner, ok := bp.Owner(namespaceType, c.Name)
		if !ok {
			r.Unowned = append(r.Unowned, c)
			continue
		}
		if _, ok := children[owner]; !ok {
			services = append(services, owner)
		}
		children[owner] = append(children[owner], c)
	}

	if len(services) == 0 {
		if len(typenames) == 0 {
			return
		}
		owner, ok := bp.Owner(rootType, f.Name)
		if !ok {
			r.Unowned = append(r.Unowned, f)
			return
		}
		services = append(services, owner)
	}

	for i, s := range services {
		part := f.CopyShallow()
		part.Children = children[s]
		if i == 0 {
			part.Children = append(append([]*normalized.Field(nil), typenames...), part.Children...)
		}
		r.add(s, part)
	}
}
