// Package blueprint holds everything the engine knows about the overall
// schema: which service owns which field, how type names map between the
// overall and the underlying schemas and which fields carry instructions.
package blueprint

import (
	"fmt"

	"github.com/buildbuildio/quilt/common"
	"github.com/vektah/gqlparser/v2/ast"
)

type Service struct {
	Name string
	URL  string
}

// FieldCoordinates identifies a field definition of the overall schema.
type FieldCoordinates struct {
	TypeName  string
	FieldName string
}

func (c FieldCoordinates) String() string {
	return c.TypeName + "." + c.FieldName
}

// Blueprint is immutable once loaded and is shared by all operations.
type Blueprint struct {
	Schema   *ast.Schema
	Services []*Service

	// FieldOwners maps root and namespace type fields to their service.
	FieldOwners map[FieldCoordinates]*Service
	// NamespaceTypes are the return types of @namespaced root fields.
	NamespaceTypes map[string]bool

	// TypeNamesUniqueAcrossServices selects one shared rename table instead
	// of one table per service.
	TypeNamesUniqueAcrossServices bool

	underlyingTypeNames map[string]map[string]string
	overallTypeNames    map[string]map[string]string

	Renames    map[FieldCoordinates]*RenameInstruction
	Hydrations map[FieldCoordinates][]*HydrationInstruction
	Namespaced map[FieldCoordinates]bool
	Partitions map[FieldCoordinates]*PartitionInstruction
}

func (b *Blueprint) Service(name string) (*Service, bool) {
	for _, s := range b.Services {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Owner returns the service resolving the field of typeName.
func (b *Blueprint) Owner(typeName, fieldName string) (*Service, bool) {
	s, ok := b.FieldOwners[FieldCoordinates{TypeName: typeName, FieldName: fieldName}]
	return s, ok
}

func (b *Blueprint) IsNamespaced(typeName, fieldName string) bool {
	return b.Namespaced[FieldCoordinates{TypeName: typeName, FieldName: fieldName}]
}

func (b *Blueprint) tableKey(service *Service) string {
	if b.TypeNamesUniqueAcrossServices || service == nil {
		return ""
	}
	return service.Name
}

// UnderlyingTypeName converts an overall type name into the name service
// knows it by. Unknown names are returned unchanged.
func (b *Blueprint) UnderlyingTypeName(service *Service, overallName string) string {
	if name, ok := b.underlyingTypeNames[b.tableKey(service)][overallName]; ok {
		return name
	}
	return overallName
}

// OverallTypeName is the inverse of UnderlyingTypeName.
func (b *Blueprint) OverallTypeName(service *Service, underlyingName string) string {
	if name, ok := b.overallTypeNames[b.tableKey(service)][underlyingName]; ok {
		return name
	}
	return underlyingName
}

func (b *Blueprint) addTypeRename(service *Service, overallName, underlyingName string) error {
	key := b.tableKey(service)
	if b.underlyingTypeNames[key] == nil {
		b.underlyingTypeNames[key] = make(map[string]string)
		b.overallTypeNames[key] = make(map[string]string)
	}

	if existing, ok := b.underlyingTypeNames[key][overallName]; ok && existing != underlyingName {
		return fmt.Errorf("type %s is renamed from both %s and %s", overallName, existing, underlyingName)
	}
	if existing, ok := b.overallTypeNames[key][underlyingName]; ok && existing != overallName {
		return fmt.Errorf("type %s is renamed to both %s and %s", underlyingName, existing, overallName)
	}

	b.underlyingTypeNames[key][overallName] = underlyingName
	b.overallTypeNames[key][underlyingName] = overallName
	return nil
}

// RootTypeName returns the overall root type name of operation.
func (b *Blueprint) RootTypeName(operation ast.Operation) string {
	switch operation {
	case ast.Mutation:
		return common.MutationObjectName
	case ast.Subscription:
		return common.SubscriptionObjectName
	default:
		return common.QueryObjectName
	}
}

// FieldDefinition looks up a field of the overall schema.
func (b *Blueprint) FieldDefinition(typeName, fieldName string) *ast.FieldDefinition {
	def, ok := b.Schema.Types[typeName]
	if !ok {
		return nil
	}
	return def.Fields.ForName(fieldName)
}
