package normalized

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSimple(t *testing.T) {
	fields := normalize(t, `{ issue(id: "1") { id k: key assignee { name } } }`, nil)
	require.Len(t, fields, 1)

	issue := fields[0]
	assert.Equal(t, "issue", issue.ResultKey())
	assert.Equal(t, []string{"Query"}, issue.ObjectTypeNames)
	assert.Equal(t, &InputValue{Type: "ID!", Value: "1"}, issue.Arguments["id"])
	require.Len(t, issue.Children, 3)

	key := issue.Children[1]
	assert.Equal(t, "k", key.ResultKey())
	assert.Equal(t, "key", key.Name)
	assert.Equal(t, []string{"Issue"}, key.ObjectTypeNames)

	name := issue.Children[2].Children[0]
	assert.Equal(t, []string{"issue", "assignee", "name"}, []string(name.QueryPath()))
	assert.Equal(t, 3, name.Level())
	assert.Same(t, issue, name.Parent.Parent)
}

func TestNormalizeAbstractTypes(t *testing.T) {
	fields := normalize(t, `
		query {
			search(term: "x") {
				__typename
				... on Issue { key }
				...UserFields
			}
			node(id: "1") { id }
		}
		fragment UserFields on User { name }
	`, nil)
	require.Len(t, fields, 2)

	search := fields[0]
	require.Len(t, search.Children, 3)
	assert.ElementsMatch(t, []string{"Issue", "User"}, search.Children[0].ObjectTypeNames)
	assert.True(t, search.Children[0].IsTypename())
	assert.Equal(t, []string{"Issue"}, search.Children[1].ObjectTypeNames)
	assert.Equal(t, []string{"User"}, search.Children[2].ObjectTypeNames)
	assert.Len(t, search.ChildrenFor("User"), 2)

	node := fields[1]
	assert.ElementsMatch(t, []string{"Issue", "User"}, node.Children[0].ObjectTypeNames)
}

func TestNormalizeMergesSelections(t *testing.T) {
	fields := normalize(t, `{
		issue(id: "1") { id assignee { id } }
		issue(id: "1") { key assignee { name } }
	}`, nil)
	require.Len(t, fields, 1)

	children := fields[0].Children
	require.Len(t, children, 3)
	assert.Equal(t, "assignee", children[1].Name)
	assert.Len(t, children[1].Children, 2)
	assert.Same(t, children[1], children[1].Children[1].Parent)
}

func TestNormalizeVariablesAndDefaults(t *testing.T) {
	fields := normalize(t, `query ($first: Int, $order: Order) {
		issues(ids: ["1", "2"]) { comments(first: $first, order: $order) { id } }
	}`, map[string]interface{}{"order": "DESC"})

	comments := fields[0].Children[0]
	// missing variable falls back to the definition default
	assert.Equal(t, &InputValue{Type: "Int", Value: int64(10)}, comments.Arguments["first"])
	assert.Equal(t, &InputValue{Type: "Order", Value: "DESC"}, comments.Arguments["order"])
	assert.Equal(t, []string{"first", "order"}, comments.ArgumentNames())

	assert.Equal(t, []interface{}{"1", "2"}, fields[0].Argument("ids"))
}

func TestNormalizeSkipInclude(t *testing.T) {
	fields := normalize(t, `query ($skip: Boolean!) {
		issue(id: "1") {
			id @skip(if: $skip)
			key @include(if: false)
			... on Issue @include(if: true) { assignee { name } }
		}
	}`, map[string]interface{}{"skip": true})

	children := fields[0].Children
	require.Len(t, children, 1)
	assert.Equal(t, "assignee", children[0].Name)
}

func TestNormalizeDefer(t *testing.T) {
	fields := normalize(t, `{
		issue(id: "1") {
			id
			... @defer(label: "slow") {
				key
				assignee { name }
			}
			... @defer(if: false) { comments { id } }
		}
	}`, nil)

	children := fields[0].Children
	require.Len(t, children, 4)
	assert.False(t, children[0].IsDeferred())

	key, assignee, comments := children[1], children[2], children[3]
	require.True(t, key.IsDeferred())
	assert.Equal(t, "slow", key.DeferredExecutions[0].Label)
	assert.Same(t, key.DeferredExecutions[0], assignee.DeferredExecutions[0])
	assert.False(t, assignee.Children[0].IsDeferred())
	assert.False(t, comments.IsDeferred())
}

func TestNormalizeDeferMergedWithEagerSelection(t *testing.T) {
	fields := normalize(t, `{
		issue(id: "1") {
			key
			... @defer { key }
		}
	}`, nil)

	children := fields[0].Children
	require.Len(t, children, 1)
	assert.False(t, children[0].IsDeferred())
}

func TestNormalizeMutation(t *testing.T) {
	fields := normalize(t, `mutation { closeIssue(id: "1") { id } }`, nil)
	require.Len(t, fields, 1)
	assert.Equal(t, []string{"Mutation"}, fields[0].ObjectTypeNames)
}
