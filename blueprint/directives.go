package blueprint

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

const (
	HydratedDirectiveName   = "hydrated"
	RenamedDirectiveName    = "renamed"
	NamespacedDirectiveName = "namespaced"
	PartitionDirectiveName  = "partition"

	sourcePrefix   = "$source."
	argumentPrefix = "$argument."

	defaultIdentifiedBy = "id"
	DefaultBatchSize    = 200
)

// DirectivesSDL declares the directives services annotate their schemas with.
const DirectivesSDL = `
directive @hydrated(
	service: String!
	field: String!
	arguments: [HydrationArgument!]!
	identifiedBy: String = "id"
	batchSize: Int
	indexed: Boolean = false
) repeatable on FIELD_DEFINITION

input HydrationArgument {
	name: String!
	value: String!
}

directive @renamed(from: String!) on FIELD_DEFINITION | OBJECT | INTERFACE | UNION | ENUM | INPUT_OBJECT | SCALAR

directive @namespaced on FIELD_DEFINITION

directive @partition(pathToPartitionArg: [String!]!) on FIELD_DEFINITION
`

var ownDirectives = []string{
	HydratedDirectiveName,
	RenamedDirectiveName,
	NamespacedDirectiveName,
	PartitionDirectiveName,
}

// IsOwnDirective reports whether name is a directive consumed by the gateway.
func IsOwnDirective(name string) bool {
	return lo.Contains(ownDirectives, name)
}

func stringArgument(d *ast.Directive, name string) (string, bool) {
	v, ok := d.ArgumentMap(nil)[name].(string)
	return v, ok
}

func stringListArgument(d *ast.Directive, name string) ([]string, error) {
	raw, ok := d.ArgumentMap(nil)[name].([]interface{})
	if !ok {
		return nil, fmt.Errorf("@%s(%s:) must be a list of strings", d.Name, name)
	}

	res := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("@%s(%s:) must be a list of strings", d.Name, name)
		}
		res = append(res, s)
	}
	return res, nil
}

// parseRemoteArgumentSource reads "$source.a.b", "$argument.x" or a static value.
func parseRemoteArgumentSource(value string) RemoteArgumentSource {
	switch {
	case strings.HasPrefix(value, sourcePrefix):
		return RemoteArgumentSource{
			Kind:        ObjectFieldSource,
			PathToField: strings.Split(strings.TrimPrefix(value, sourcePrefix), "."),
		}
	case strings.HasPrefix(value, argumentPrefix):
		return RemoteArgumentSource{
			Kind:         FieldArgumentSource,
			ArgumentName: strings.TrimPrefix(value, argumentPrefix),
		}
	default:
		return RemoteArgumentSource{Kind: StaticValueSource, StaticValue: value}
	}
}
