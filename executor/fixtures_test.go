package executor

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/format"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/queryer"
	"github.com/buildbuildio/quilt/requests"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const issuesSDL = `
	type Query {
		issue(id: ID!): Issue
		issues(ids: [ID!]!): [Issue!]! @partition(pathToPartitionArg: ["ids"])
		ticket: Ticket
		issueQueries: IssueQueries @namespaced
	}

	type Mutation {
		closeIssue(id: ID!): Issue
		reopenIssue(id: ID!): Issue
	}

	type IssueQueries {
		byKey(key: String!): Issue
	}

	type Issue {
		id: ID!
		title: String @renamed(from: "summary")
		assignee: User @hydrated(service: "users", field: "user", arguments: [{name: "id", value: "$source.assigneeId"}])
	}

	type Ticket {
		id: ID!
	}
`

const usersSDL = `
	type Query {
		user(id: ID!): User
		issueQueries: IssueQueries @namespaced
	}

	type Mutation {
		renameUser(id: ID!, name: String!): User
	}

	type IssueQueries {
		countByUser(id: ID!): Int
	}

	type User {
		id: ID!
		name: String
	}
`

func fixtureBlueprint(t *testing.T) *blueprint.Blueprint {
	t.Helper()

	bp, err := blueprint.Load([]*blueprint.ServiceDefinition{
		{Name: "issues", URL: "http://issues", SDL: issuesSDL},
		{Name: "users", URL: "http://users", SDL: usersSDL},
	})
	require.NoError(t, err)
	return bp
}

func normalize(t *testing.T, bp *blueprint.Blueprint, query string) ([]*normalized.Field, ast.Operation) {
	t.Helper()

	doc, errs := gqlparser.LoadQuery(bp.Schema, query)
	require.Empty(t, errs)
	require.Len(t, doc.Operations, 1)

	fields, err := normalized.Normalize(bp.Schema, doc.Operations[0], nil)
	require.NoError(t, err)
	return fields, doc.Operations[0].Operation
}

// MockSuccessQueryer responds with pre-defined value when executing a query
type MockSuccessQueryer struct {
	Value map[string]interface{}
}

var _ queryer.Queryer = &MockSuccessQueryer{}

func (q *MockSuccessQueryer) URL() string {
	return "mockSuccessQueryer"
}

func (q *MockSuccessQueryer) Query(_ context.Context, inputs []*requests.Request) ([]*queryer.Response, error) {
	res := make([]*queryer.Response, len(inputs))
	for i := range inputs {
		res[i] = &queryer.Response{Data: q.Value}
	}
	return res, nil
}

// MockQueryerFunc responds to every request by calling F and records the
// queries it got.
type MockQueryerFunc struct {
	F func(*requests.Request) (*queryer.Response, error)

	mu      sync.Mutex
	queries []string
}

var _ queryer.Queryer = &MockQueryerFunc{}

func (q *MockQueryerFunc) URL() string {
	return "MockQueryerFunc"
}

func (q *MockQueryerFunc) Query(_ context.Context, inputs []*requests.Request) ([]*queryer.Response, error) {
	res := make([]*queryer.Response, 0, len(inputs))
	for _, input := range inputs {
		q.mu.Lock()
		q.queries = append(q.queries, format.Debug(input.Query))
		q.mu.Unlock()

		r, err := q.F(input)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func (q *MockQueryerFunc) Queries() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queries...)
}

func data(d map[string]interface{}) (*queryer.Response, error) {
	return &queryer.Response{Data: d}, nil
}

// issuesQueryer answers issue lookups with an issue assigned to U1 and
// echoes the ids of issues lookups.
func issuesQueryer() *MockQueryerFunc {
	return &MockQueryerFunc{F: func(r *requests.Request) (*queryer.Response, error) {
		switch {
		case strings.Contains(r.Query, "issues("):
			var list []interface{}
			for _, id := range r.Variables["v0"].([]interface{}) {
				list = append(list, map[string]interface{}{"id": id})
			}
			return data(map[string]interface{}{"issues": list})
		case strings.Contains(r.Query, "byKey("):
			return data(map[string]interface{}{
				"issueQueries": map[string]interface{}{"byKey": map[string]interface{}{"id": r.Variables["v0"]}},
			})
		default:
			issue := make(map[string]interface{})
			if selects(r.Query, "id") {
				issue["id"] = r.Variables["v0"]
			}
			if selects(r.Query, "summary") {
				issue["title"] = "Broken build"
			}
			if selects(r.Query, "assigneeId") {
				issue["quilt__hydration__assignee__assigneeId"] = "U1"
			}
			return data(map[string]interface{}{"issue": issue})
		}
	}}
}

// selects reports whether query selects the field name.
func selects(query, name string) bool {
	return regexp.MustCompile(`[{ ]` + name + `[ }]`).MatchString(format.Debug(query))
}

func usersQueryer() *MockQueryerFunc {
	return &MockQueryerFunc{F: func(r *requests.Request) (*queryer.Response, error) {
		if strings.Contains(r.Query, "countByUser") {
			return data(map[string]interface{}{"issueQueries": map[string]interface{}{"countByUser": 3}})
		}
		return data(map[string]interface{}{"user": map[string]interface{}{"name": "Franklin"}})
	}}
}

// prefixPartitions partitions ids by the part before the first dash.
type prefixPartitions struct{}

func (prefixPartitions) PartitionContext(context.Context, *normalized.Field) (interface{}, bool) {
	return nil, true
}

func (prefixPartitions) PartitionKey(_ interface{}, value interface{}) (string, error) {
	prefix, _, _ := strings.Cut(value.(string), "-")
	return prefix, nil
}
