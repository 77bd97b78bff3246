package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

func coords(typeName, fieldName string) FieldCoordinates {
	return FieldCoordinates{TypeName: typeName, FieldName: fieldName}
}

func TestLoadMergesRootTypes(t *testing.T) {
	bp := mustLoad(t)

	require.Len(t, bp.Services, 2)
	issues, _ := bp.Service("issues")
	users, _ := bp.Service("users")
	assert.Equal(t, "http://users", users.URL)

	for field, owner := range map[string]*Service{
		"issue":        issues,
		"issues":       issues,
		"ticket":       issues,
		"issueQueries": issues,
		"user":         users,
		"userQueries":  users,
	} {
		actual, ok := bp.Owner("Query", field)
		require.True(t, ok, field)
		assert.Same(t, owner, actual, field)
		assert.NotNil(t, bp.Schema.Query.Fields.ForName(field), field)
	}

	owner, ok := bp.Owner("Mutation", "closeIssues")
	require.True(t, ok)
	assert.Same(t, issues, owner)

	_, ok = bp.Owner("Issue", "id")
	assert.False(t, ok)
}

func TestLoadNamespaces(t *testing.T) {
	bp := mustLoad(t)

	assert.True(t, bp.IsNamespaced("Query", "issueQueries"))
	assert.True(t, bp.IsNamespaced("Query", "userQueries"))
	assert.False(t, bp.IsNamespaced("Query", "issue"))
	assert.True(t, bp.NamespaceTypes["IssueQueries"])

	byKey, _ := bp.Owner("IssueQueries", "byKey")
	byAssignee, _ := bp.Owner("IssueQueries", "byAssignee")
	assert.Equal(t, "issues", byKey.Name)
	assert.Equal(t, "users", byAssignee.Name)
	assert.Len(t, bp.Schema.Types["IssueQueries"].Fields, 2)
}

func TestLoadTypeRenames(t *testing.T) {
	bp := mustLoad(t)
	issues, _ := bp.Service("issues")
	users, _ := bp.Service("users")

	assert.Equal(t, "JiraTicket", bp.UnderlyingTypeName(issues, "Ticket"))
	assert.Equal(t, "Ticket", bp.OverallTypeName(issues, "JiraTicket"))
	assert.Equal(t, "Account", bp.UnderlyingTypeName(users, "User"))
	assert.Equal(t, "User", bp.OverallTypeName(users, "Account"))

	// tables are per service unless names are unique
	assert.Equal(t, "Ticket", bp.UnderlyingTypeName(users, "Ticket"))
	assert.Equal(t, "Issue", bp.UnderlyingTypeName(issues, "Issue"))

	shared := mustLoad(t, WithUniqueTypeNames())
	assert.Equal(t, "JiraTicket", shared.UnderlyingTypeName(users, "Ticket"))
	assert.Equal(t, "Account", shared.UnderlyingTypeName(issues, "User"))
}

func TestLoadFieldRenames(t *testing.T) {
	bp := mustLoad(t)

	title := bp.Renames[coords("Issue", "title")]
	require.NotNil(t, title)
	assert.Equal(t, []string{"summary"}, title.From)
	assert.False(t, title.IsDeep())

	reporter := bp.Renames[coords("Issue", "reporterName")]
	require.NotNil(t, reporter)
	assert.Equal(t, []string{"reporter", "name"}, reporter.From)
	assert.True(t, reporter.IsDeep())
}

func TestLoadHydrations(t *testing.T) {
	bp := mustLoad(t)
	users, _ := bp.Service("users")

	assignee := bp.Hydrations[coords("Issue", "assignee")]
	require.Len(t, assignee, 1)
	h := assignee[0]
	assert.Same(t, users, h.ActorService)
	assert.Equal(t, []string{"user"}, h.QueryPathToActorField)
	assert.Equal(t, "user", h.ActorField.Name)
	assert.Equal(t, OneToOne, h.Strategy)
	assert.False(t, h.Batched)
	assert.Equal(t, [][]string{{"assigneeId"}}, h.SourceFieldPaths())
	assert.Equal(t, "id", h.SourceArgument().Name)

	watchers := bp.Hydrations[coords("Issue", "watchers")][0]
	assert.Equal(t, ManyToOne, watchers.Strategy)
	assert.Equal(t, "id", watchers.InputArgumentName)

	commenters := bp.Hydrations[coords("Issue", "commenters")][0]
	assert.True(t, commenters.Batched)
	assert.Equal(t, 2, commenters.BatchSize)
	assert.Equal(t, "id", commenters.IdentifiedBy)
	assert.Equal(t, "ids", commenters.InputArgumentName)
	assert.Equal(t, []string{"userQueries", "byIds"}, commenters.QueryPathToActorField)
	require.Len(t, commenters.ActorFieldArguments, 2)
	assert.Equal(t, RemoteArgumentSource{Kind: FieldArgumentSource, ArgumentName: "first"}, commenters.ActorFieldArguments[1].Source)
}

func TestLoadPartitions(t *testing.T) {
	bp := mustLoad(t)

	issues := bp.Partitions[coords("Query", "issues")]
	require.NotNil(t, issues)
	assert.Equal(t, []string{"ids"}, issues.PathToPartitionArg)
	assert.Equal(t, ListShape, issues.Shape)

	closeIssues := bp.Partitions[coords("Mutation", "closeIssues")]
	require.NotNil(t, closeIssues)
	assert.Equal(t, []string{"input", "ids"}, closeIssues.PathToPartitionArg)
	assert.Equal(t, MutationPayloadShape, closeIssues.Shape)

	assert.Equal(t, UnsupportedShape, bp.Partitions[coords("Mutation", "moveIssue")].Shape)
}

func TestLoadErrors(t *testing.T) {
	for name, defs := range map[string][]*ServiceDefinition{
		"empty": nil,
		"duplicate service": {
			{Name: "a", SDL: `type Query { a: String }`},
			{Name: "a", SDL: `type Query { b: String }`},
		},
		"duplicate field": {
			{Name: "a", SDL: `type Query { a: String }`},
			{Name: "b", SDL: `type Query { a: String }`},
		},
		"syntax": {
			{Name: "a", SDL: `type Query {`},
		},
		"unknown type": {
			{Name: "a", SDL: `type Query { a: Missing }`},
		},
		"unknown actor service": {
			{Name: "a", SDL: `type Query { a: A } type A { b: A @hydrated(service: "x", field: "a", arguments: []) }`},
		},
		"unknown actor field": {
			{Name: "a", SDL: `type Query { a: A } type A { b: A @hydrated(service: "a", field: "missing", arguments: []) }`},
		},
		"unknown actor argument": {
			{Name: "a", SDL: `type Query { a: A } type A { id: ID b: A @hydrated(service: "a", field: "a", arguments: [{name: "id", value: "$source.id"}]) }`},
		},
		"unknown partition argument": {
			{Name: "a", SDL: `type Query { a(ids: [ID]): [String] @partition(pathToPartitionArg: ["x"]) }`},
		},
	} {
		_, err := Load(defs)
		assert.Error(t, err, name)
	}
}

func TestMergeShape(t *testing.T) {
	bp := mustLoad(t)

	assert.Equal(t, ListShape, mergeShape(bp.Schema, &ast.Type{Elem: &ast.Type{NamedType: "Issue"}}))
	assert.Equal(t, MutationPayloadShape, mergeShape(bp.Schema, &ast.Type{NamedType: "CloseIssuesPayload"}))
	assert.Equal(t, UnsupportedShape, mergeShape(bp.Schema, &ast.Type{NamedType: "Issue"}))
	assert.Equal(t, UnsupportedShape, mergeShape(bp.Schema, &ast.Type{NamedType: "String"}))
}

func TestParseRemoteArgumentSource(t *testing.T) {
	assert.Equal(t, RemoteArgumentSource{Kind: ObjectFieldSource, PathToField: []string{"a", "b"}}, parseRemoteArgumentSource("$source.a.b"))
	assert.Equal(t, RemoteArgumentSource{Kind: FieldArgumentSource, ArgumentName: "x"}, parseRemoteArgumentSource("$argument.x"))
	assert.Equal(t, RemoteArgumentSource{Kind: StaticValueSource, StaticValue: "ASC"}, parseRemoteArgumentSource("ASC"))
}
