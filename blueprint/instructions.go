package blueprint

import "github.com/vektah/gqlparser/v2/ast"

// RenameInstruction maps an overall field to the path of the underlying
// field it reads from. A single element From is a plain rename.
type RenameInstruction struct {
	Location FieldCoordinates
	From     []string
}

func (r *RenameInstruction) IsDeep() bool {
	return len(r.From) > 1
}

type RemoteArgumentSourceKind int

const (
	// ObjectFieldSource reads the value from the parent object of the
	// hydrated field.
	ObjectFieldSource RemoteArgumentSourceKind = iota
	// FieldArgumentSource forwards an argument of the hydrated field.
	FieldArgumentSource
	StaticValueSource
)

type RemoteArgumentSource struct {
	Kind RemoteArgumentSourceKind
	// PathToField is set for ObjectFieldSource and is expressed in
	// underlying field names.
	PathToField  []string
	ArgumentName string
	StaticValue  interface{}
}

// RemoteArgument is one argument passed to the actor field.
type RemoteArgument struct {
	Name   string
	Source RemoteArgumentSource
}

type HydrationStrategy int

const (
	OneToOne HydrationStrategy = iota
	// ManyToOne issues one actor call per element of a list source.
	ManyToOne
)

// HydrationInstruction describes how a hydrated field is resolved by calling
// the actor field of another service.
type HydrationInstruction struct {
	Location FieldCoordinates

	ActorService          *Service
	QueryPathToActorField []string
	ActorField            *ast.FieldDefinition
	ActorFieldArguments   []*RemoteArgument

	Strategy          HydrationStrategy
	InputArgumentName string

	// Batched instructions collect source values of all parent objects and
	// match actor results back through IdentifiedBy.
	Batched      bool
	BatchSize    int
	IdentifiedBy string
}

// SourceFieldPaths returns the object paths the instruction reads.
func (h *HydrationInstruction) SourceFieldPaths() [][]string {
	var res [][]string
	for _, arg := range h.ActorFieldArguments {
		if arg.Source.Kind == ObjectFieldSource {
			res = append(res, arg.Source.PathToField)
		}
	}
	return res
}

// SourceArgument returns the argument fed from the parent object, the one
// which is split for ManyToOne and batched instructions.
func (h *HydrationInstruction) SourceArgument() *RemoteArgument {
	if h.InputArgumentName != "" {
		for _, arg := range h.ActorFieldArguments {
			if arg.Name == h.InputArgumentName {
				return arg
			}
		}
	}
	for _, arg := range h.ActorFieldArguments {
		if arg.Source.Kind == ObjectFieldSource {
			return arg
		}
	}
	return nil
}

type MergeShape int

const (
	UnsupportedShape MergeShape = iota
	// ListShape results are concatenated.
	ListShape
	// MutationPayloadShape results have a success flag and list fields.
	MutationPayloadShape
)

type PartitionInstruction struct {
	Location           FieldCoordinates
	PathToPartitionArg []string
	Shape              MergeShape
}
