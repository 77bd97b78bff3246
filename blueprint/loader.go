package blueprint

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/buildbuildio/quilt/common"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// ServiceDefinition is the overall view of one service: its SDL uses overall
// type names and is annotated with @renamed, @hydrated, @namespaced and
// @partition.
type ServiceDefinition struct {
	Name string
	URL  string
	SDL  string
}

type LoadOption func(*loader)

// WithUniqueTypeNames declares that every type name refers to the same
// underlying type in all services, so one rename table is shared.
func WithUniqueTypeNames() LoadOption {
	return func(l *loader) {
		l.bp.TypeNamesUniqueAcrossServices = true
	}
}

type loader struct {
	bp *Blueprint

	preludeTypes      map[string]bool
	preludeDirectives map[string]bool

	definitions    map[string]*ast.Definition
	order          []string
	directives     map[string]*ast.DirectiveDefinition
	directiveOrder []string

	typeServices map[string][]*Service
}

// Load merges service definitions into an overall schema and collects
// instructions from their directives.
func Load(defs []*ServiceDefinition, opts ...LoadOption) (*Blueprint, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no service definitions provided")
	}

	l := &loader{
		bp: &Blueprint{
			FieldOwners:         make(map[FieldCoordinates]*Service),
			NamespaceTypes:      make(map[string]bool),
			underlyingTypeNames: make(map[string]map[string]string),
			overallTypeNames:    make(map[string]map[string]string),
			Renames:             make(map[FieldCoordinates]*RenameInstruction),
			Hydrations:          make(map[FieldCoordinates][]*HydrationInstruction),
			Namespaced:          make(map[FieldCoordinates]bool),
			Partitions:          make(map[FieldCoordinates]*PartitionInstruction),
		},
		definitions:  make(map[string]*ast.Definition),
		directives:   make(map[string]*ast.DirectiveDefinition),
		typeServices: make(map[string][]*Service),
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.loadPrelude(); err != nil {
		return nil, err
	}

	docs := make([]*ast.SchemaDocument, 0, len(defs))
	for _, def := range defs {
		if _, ok := l.bp.Service(def.Name); ok {
			return nil, fmt.Errorf("service %s is defined more than once", def.Name)
		}
		l.bp.Services = append(l.bp.Services, &Service{Name: def.Name, URL: def.URL})

		doc, perr := parser.ParseSchema(&ast.Source{Name: def.Name, Input: def.SDL})
		if perr != nil {
			return nil, fmt.Errorf("parse schema of %s: %w", def.Name, perr)
		}
		docs = append(docs, doc)
	}

	for _, doc := range docs {
		l.collectNamespaces(doc)
	}

	for i, doc := range docs {
		if err := l.merge(l.bp.Services[i], doc); err != nil {
			return nil, err
		}
	}

	schema, err := l.buildSchema()
	if err != nil {
		return nil, err
	}
	l.bp.Schema = schema

	if err := l.collectInstructions(); err != nil {
		return nil, err
	}

	return l.bp, nil
}

func (l *loader) loadPrelude() error {
	doc, perr := parser.ParseSchema(validator.Prelude)
	if perr != nil {
		return fmt.Errorf("parse prelude: %w", perr)
	}

	l.preludeTypes = make(map[string]bool)
	for _, def := range doc.Definitions {
		l.preludeTypes[def.Name] = true
	}
	l.preludeDirectives = map[string]bool{common.DeferDirectiveName: true}
	for _, def := range doc.Directives {
		l.preludeDirectives[def.Name] = true
	}
	return nil
}

func typeDefinitions(doc *ast.SchemaDocument) ast.DefinitionList {
	return append(append(ast.DefinitionList{}, doc.Definitions...), doc.Extensions...)
}

func (l *loader) collectNamespaces(doc *ast.SchemaDocument) {
	for _, def := range typeDefinitions(doc) {
		if !common.IsRootObjectName(def.Name) {
			continue
		}
		for _, f := range def.Fields {
			if f.Directives.ForName(NamespacedDirectiveName) == nil {
				continue
			}
			l.bp.Namespaced[FieldCoordinates{TypeName: def.Name, FieldName: f.Name}] = true
			l.bp.NamespaceTypes[f.Type.Name()] = true
		}
	}
}

// merge adds the service schema to the overall one. Root and namespace types
// are united field by field, other types keep the first definition.
func (l *loader) merge(service *Service, doc *ast.SchemaDocument) error {
	for _, def := range typeDefinitions(doc) {
		if l.preludeTypes[def.Name] {
			continue
		}
		if !lo.Contains(l.typeServices[def.Name], service) {
			l.typeServices[def.Name] = append(l.typeServices[def.Name], service)
		}

		isShared := common.IsRootObjectName(def.Name) || l.bp.NamespaceTypes[def.Name]

		existing, ok := l.definitions[def.Name]
		if !ok {
			existing = &ast.Definition{
				Kind:        def.Kind,
				Description: def.Description,
				Name:        def.Name,
				Directives:  def.Directives,
				Interfaces:  def.Interfaces,
				Types:       def.Types,
				EnumValues:  def.EnumValues,
				Position:    def.Position,
			}
			if !isShared {
				existing.Fields = def.Fields
			}
			l.definitions[def.Name] = existing
			l.order = append(l.order, def.Name)
		}

		if !isShared {
			continue
		}

		for _, f := range def.Fields {
			coords := FieldCoordinates{TypeName: def.Name, FieldName: f.Name}

			if owner, ok := l.bp.FieldOwners[coords]; ok {
				// every service contributing to a namespace declares its root field
				if l.bp.Namespaced[coords] {
					continue
				}
				return fmt.Errorf("field %s is defined by both %s and %s", coords, owner.Name, service.Name)
			}

			l.bp.FieldOwners[coords] = service
			existing.Fields = append(existing.Fields, f)
		}
	}

	for _, d := range doc.Directives {
		if l.preludeDirectives[d.Name] || IsOwnDirective(d.Name) {
			continue
		}
		if _, ok := l.directives[d.Name]; ok {
			continue
		}
		l.directives[d.Name] = d
		l.directiveOrder = append(l.directiveOrder, d.Name)
	}

	return nil
}

func (l *loader) buildSchema() (*ast.Schema, error) {
	doc := &ast.SchemaDocument{}
	for _, name := range l.order {
		doc.Definitions = append(doc.Definitions, l.definitions[name])
	}
	for _, name := range l.directiveOrder {
		doc.Directives = append(doc.Directives, l.directives[name])
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)

	schema, err := common.LoadSchema(
		&ast.Source{Name: "directives", Input: DirectivesSDL, BuiltIn: true},
		&ast.Source{Name: "overall", Input: buf.String()},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid overall schema: %w", err)
	}
	return schema, nil
}

func (l *loader) collectInstructions() error {
	names := lo.Keys(l.definitions)
	sort.Strings(names)

	for _, name := range names {
		def := l.bp.Schema.Types[name]
		if def == nil {
			continue
		}

		if d := def.Directives.ForName(RenamedDirectiveName); d != nil {
			from, _ := stringArgument(d, "from")
			for _, service := range l.typeServices[name] {
				if err := l.bp.addTypeRename(service, name, from); err != nil {
					return err
				}
			}
		}

		for _, f := range def.Fields {
			if err := l.collectFieldInstructions(def, f); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *loader) collectFieldInstructions(def *ast.Definition, f *ast.FieldDefinition) error {
	coords := FieldCoordinates{TypeName: def.Name, FieldName: f.Name}

	if d := f.Directives.ForName(RenamedDirectiveName); d != nil {
		from, _ := stringArgument(d, "from")
		if from == "" {
			return fmt.Errorf("@renamed on %s has empty from", coords)
		}
		l.bp.Renames[coords] = &RenameInstruction{Location: coords, From: strings.Split(from, ".")}
	}

	hydrated := lo.Filter(f.Directives, func(d *ast.Directive, _ int) bool {
		return d.Name == HydratedDirectiveName
	})
	for _, d := range hydrated {
		h, err := l.hydration(coords, f, d)
		if err != nil {
			return fmt.Errorf("@hydrated on %s: %w", coords, err)
		}
		l.bp.Hydrations[coords] = append(l.bp.Hydrations[coords], h)
	}

	if d := f.Directives.ForName(PartitionDirectiveName); d != nil {
		path, err := stringListArgument(d, "pathToPartitionArg")
		if err != nil {
			return err
		}
		if len(path) == 0 || f.Arguments.ForName(path[0]) == nil {
			return fmt.Errorf("@partition on %s points to unknown argument %v", coords, path)
		}
		l.bp.Partitions[coords] = &PartitionInstruction{
			Location:           coords,
			PathToPartitionArg: path,
			Shape:              mergeShape(l.bp.Schema, f.Type),
		}
	}

	return nil
}

func (l *loader) hydration(coords FieldCoordinates, f *ast.FieldDefinition, d *ast.Directive) (*HydrationInstruction, error) {
	args := d.ArgumentMap(nil)

	serviceName, _ := args["service"].(string)
	service, ok := l.bp.Service(serviceName)
	if !ok {
		return nil, fmt.Errorf("unknown service %q", serviceName)
	}

	fieldPath, _ := args["field"].(string)
	h := &HydrationInstruction{
		Location:              coords,
		ActorService:          service,
		QueryPathToActorField: strings.Split(fieldPath, "."),
		IdentifiedBy:          defaultIdentifiedBy,
	}

	typeName := common.QueryObjectName
	for _, segment := range h.QueryPathToActorField {
		actor := l.bp.FieldDefinition(typeName, segment)
		if actor == nil {
			return nil, fmt.Errorf("actor field %s not found", fieldPath)
		}
		if owner, ok := l.bp.Owner(typeName, segment); !ok ||
			(owner != service && !l.bp.IsNamespaced(typeName, segment)) {
			return nil, fmt.Errorf("actor field %s is not owned by %s", fieldPath, serviceName)
		}
		h.ActorField = actor
		typeName = actor.Type.Name()
	}

	rawArguments, _ := args["arguments"].([]interface{})
	for _, raw := range rawArguments {
		m, _ := raw.(map[string]interface{})
		name, _ := m["name"].(string)
		value, _ := m["value"].(string)

		if h.ActorField.Arguments.ForName(name) == nil {
			return nil, fmt.Errorf("actor field %s has no argument %s", fieldPath, name)
		}

		source := parseRemoteArgumentSource(value)
		if source.Kind == FieldArgumentSource && f.Arguments.ForName(source.ArgumentName) == nil {
			return nil, fmt.Errorf("argument %s is not defined", source.ArgumentName)
		}
		h.ActorFieldArguments = append(h.ActorFieldArguments, &RemoteArgument{Name: name, Source: source})
	}

	if identifiedBy, ok := args["identifiedBy"].(string); ok && identifiedBy != "" {
		h.IdentifiedBy = identifiedBy
	}
	if batchSize, ok := args["batchSize"].(int64); ok {
		h.BatchSize = int(batchSize)
	}

	source := h.SourceArgument()
	actorReturnsList := h.ActorField.Type.Elem != nil

	switch {
	case source != nil && actorReturnsList && h.ActorField.Arguments.ForName(source.Name).Type.Elem != nil:
		h.Batched = true
		h.InputArgumentName = source.Name
		if h.BatchSize <= 0 {
			h.BatchSize = DefaultBatchSize
		}
	case source != nil && f.Type.Elem != nil && !actorReturnsList:
		h.Strategy = ManyToOne
		h.InputArgumentName = source.Name
	default:
		h.Strategy = OneToOne
	}

	return h, nil
}

func mergeShape(schema *ast.Schema, t *ast.Type) MergeShape {
	if t.Elem != nil {
		return ListShape
	}

	def, ok := schema.Types[t.Name()]
	if !ok || def.Kind != ast.Object {
		return UnsupportedShape
	}

	success := def.Fields.ForName("success")
	if success == nil || success.Type.Elem != nil || success.Type.Name() != "Boolean" || !success.Type.NonNull {
		return UnsupportedShape
	}

	for _, f := range def.Fields {
		if f.Name == success.Name || common.IsBuiltinName(f.Name) {
			continue
		}
		if f.Type.Elem == nil {
			return UnsupportedShape
		}
	}

	return MutationPayloadShape
}
