package common

import "strings"

const (
	TypenameFieldName = "__typename"
	SchemaFieldName   = "__schema"
	TypeFieldName     = "__type"

	QueryObjectName        = "Query"
	MutationObjectName     = "Mutation"
	SubscriptionObjectName = "Subscription"

	// ArtificialPrefix marks aliases of fields the gateway injects into
	// underlying queries. They never reach the client.
	ArtificialPrefix = "quilt__"
)

// IsRootObjectName reports whether name is one of the operation root types.
func IsRootObjectName(name string) bool {
	return name == QueryObjectName || name == MutationObjectName || name == SubscriptionObjectName
}

// IsBuiltinName reports whether name is reserved for introspection.
func IsBuiltinName(name string) bool {
	return strings.HasPrefix(name, "__")
}

// IsIntrospectionFieldName reports whether name is a root introspection field.
func IsIntrospectionFieldName(name string) bool {
	return name == SchemaFieldName || name == TypeFieldName
}
