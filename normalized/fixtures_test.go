package normalized

import (
	"testing"

	"github.com/buildbuildio/quilt/common"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const fixtureSchema = `
	interface Node {
		id: ID!
	}

	enum Order {
		ASC
		DESC
	}

	type Issue implements Node {
		id: ID!
		key: String!
		comments(first: Int = 10, order: Order): [Comment!]!
		assignee: User
	}

	type User implements Node {
		id: ID!
		name: String!
	}

	type Comment {
		id: ID!
		text: String
	}

	union SearchResult = Issue | User

	type Query {
		issue(id: ID!): Issue
		issues(ids: [ID!]): [Issue!]!
		node(id: ID!): Node
		search(term: String!): [SearchResult!]!
	}

	type Mutation {
		closeIssue(id: ID!): Issue
	}
`

func normalize(t *testing.T, query string, variables map[string]interface{}) []*Field {
	t.Helper()

	schema := common.MustLoadSchema(&ast.Source{Name: "fixture", Input: fixtureSchema})
	doc, errs := gqlparser.LoadQuery(schema, query)
	require.Empty(t, errs)
	require.Len(t, doc.Operations, 1)

	fields, err := Normalize(schema, doc.Operations[0], variables)
	require.NoError(t, err)
	return fields
}
