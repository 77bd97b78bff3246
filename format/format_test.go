package format

import (
	"testing"

	"github.com/buildbuildio/quilt/normalized"
	"github.com/stretchr/testify/assert"
	"github.com/vektah/gqlparser/v2/ast"
)

func TestFormatOperationSimple(t *testing.T) {
	fields := []*normalized.Field{{
		Name:            "issue",
		ObjectTypeNames: []string{"Query"},
		Children: []*normalized.Field{
			{Name: "id", ObjectTypeNames: []string{"Issue"}},
			{Alias: "quilt__assignee__id", Name: "assigneeId", ObjectTypeNames: []string{"Issue"}},
		},
	}}

	doc := FormatOperation(ast.Query, "", fields)
	assert.Equal(t, `{ issue { id quilt__assignee__id: assigneeId } }`, Debug(doc.Query))
	assert.Nil(t, doc.Variables)
}

func TestFormatOperationKinds(t *testing.T) {
	fields := []*normalized.Field{{Name: "ping", ObjectTypeNames: []string{"Query"}}}

	expected := []string{`{ ping }`, `mutation { ping }`, `query Named { ping }`}
	docs := []*Document{
		FormatOperation(ast.Query, "", fields),
		FormatOperation(ast.Mutation, "", fields),
		FormatOperation(ast.Query, "Named", fields),
	}

	for i, doc := range docs {
		assert.Equal(t, expected[i], Debug(doc.Query))
	}
}

func TestFormatOperationVariables(t *testing.T) {
	fields := []*normalized.Field{{
		Name:            "issues",
		ObjectTypeNames: []string{"Query"},
		Arguments: map[string]*normalized.InputValue{
			"ids":   {Type: "[ID!]!", Value: []interface{}{"a", "b"}},
			"first": {Type: "Int", Value: int64(2)},
		},
		Children: []*normalized.Field{
			{
				Name:            "comments",
				ObjectTypeNames: []string{"Issue"},
				Arguments: map[string]*normalized.InputValue{
					"order": {Type: "Order", Value: "ASC"},
				},
				Children: []*normalized.Field{{Name: "id", ObjectTypeNames: []string{"Comment"}}},
			},
		},
	}}

	doc := FormatOperation(ast.Query, "", fields)
	assert.Equal(t,
		`query ($v0: Int, $v1: [ID!]!, $v2: Order) { issues(first: $v0, ids: $v1) { comments(order: $v2) { id } } }`,
		Debug(doc.Query),
	)
	assert.Equal(t, map[string]interface{}{
		"v0": int64(2),
		"v1": []interface{}{"a", "b"},
		"v2": "ASC",
	}, doc.Variables)
}

func TestFormatOperationPolymorphic(t *testing.T) {
	fields := []*normalized.Field{{
		Name:            "node",
		ObjectTypeNames: []string{"Query"},
		Children: []*normalized.Field{
			{Name: "__typename", ObjectTypeNames: []string{"Issue", "User"}},
			{Name: "key", ObjectTypeNames: []string{"Issue"}},
			{Name: "name", ObjectTypeNames: []string{"User"}},
		},
	}}

	doc := FormatOperation(ast.Query, "", fields)
	assert.Equal(t,
		`{ node { ... on Issue { __typename key } ... on User { __typename name } } }`,
		Debug(doc.Query),
	)
}
