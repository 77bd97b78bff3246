package transform

import (
	"context"
	"testing"

	"github.com/buildbuildio/quilt/format"
	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

func TestTypeRenameTransform(t *testing.T) {
	bp := fixtureBlueprint(t)
	fields, op := normalize(t, bp, `{ ticket { __typename id } }`)

	ectx, engine := newTestContext(bp, op, func(service string, doc *format.Document) (map[string]interface{}, gqlerrors.ErrorList, error) {
		return map[string]interface{}{
			"ticket": map[string]interface{}{"__typename": "JiraTicket", "id": "1"},
		}, nil, nil
	})

	result := execute(t, ectx, "issues", fields)
	assert.Equal(t, map[string]interface{}{
		"ticket": map[string]interface{}{"__typename": "Ticket", "id": "1"},
	}, result.Data)
	require.Len(t, engine.calls, 1)
	assert.Equal(t, `{ ticket { __typename id } }`, engine.calls[0].query)
}

func TestTypeRenameIsIdempotent(t *testing.T) {
	bp := fixtureBlueprint(t)
	fields, op := normalize(t, bp, `{ ticket { __typename } }`)
	ectx, _ := newTestContext(bp, op, nil)

	service, _ := bp.Service("issues")
	tr := NewTransformer(ectx, service)
	_, err := tr.Transform(context.Background(), fields)
	require.NoError(t, err)

	result := &ServiceResult{Data: map[string]interface{}{
		"ticket": map[string]interface{}{"__typename": "JiraTicket"},
	}}

	visits := tr.Plan().Visits()
	require.Len(t, visits, 1)
	step := visits[0].Steps[0]

	instructions, err := step.Transform.GetResultInstructions(
		context.Background(), ectx, service, visits[0].Field, visits[0].UnderlyingParent(),
		result, step.State, jsonnodes.NewJSONNodes(result.Data),
	)
	require.NoError(t, err)

	Apply(result, instructions)
	Apply(result, instructions)
	assert.Equal(t, "Ticket", result.Data["ticket"].(map[string]interface{})["__typename"])
}

func TestRenameTransform(t *testing.T) {
	bp := fixtureBlueprint(t)
	fields, op := normalize(t, bp, `{ issue(id: "1") { title reporterName } }`)

	ectx, engine := newTestContext(bp, op, func(service string, doc *format.Document) (map[string]interface{}, gqlerrors.ErrorList, error) {
		return map[string]interface{}{
			"issue": map[string]interface{}{
				"title":                          "Broken build",
				"quilt__rename__reporterName__0": map[string]interface{}{"name": "Ada"},
			},
		}, nil, nil
	})

	result := execute(t, ectx, "issues", fields)
	assert.Equal(t, map[string]interface{}{
		"issue": map[string]interface{}{"title": "Broken build", "reporterName": "Ada"},
	}, result.Data)

	require.Len(t, engine.calls, 1)
	assert.Equal(t,
		`query ($v0: ID!) { issue(id: $v0) { title: summary quilt__rename__reporterName__0: reporter { name } } }`,
		engine.calls[0].query,
	)
}

func TestNamespacedTransform(t *testing.T) {
	bp := fixtureBlueprint(t)
	fields, op := normalize(t, bp, `{ issueQueries { __typename } }`)

	ectx, engine := newTestContext(bp, op, func(service string, doc *format.Document) (map[string]interface{}, gqlerrors.ErrorList, error) {
		return map[string]interface{}{
			"issueQueries": map[string]interface{}{"quilt__namespaced__issueQueries__typename": "IssueQueries"},
		}, nil, nil
	})

	result := execute(t, ectx, "issues", fields)
	assert.Equal(t, map[string]interface{}{
		"issueQueries": map[string]interface{}{"__typename": "IssueQueries"},
	}, result.Data)
	assert.Equal(t, `{ issueQueries { quilt__namespaced__issueQueries__typename: __typename } }`, engine.calls[0].query)
}

func TestArtificialKeys(t *testing.T) {
	assert.True(t, IsArtificialKey("quilt__hydration__assignee__assigneeId"))
	assert.False(t, IsArtificialKey("assignee"))
	assert.Equal(t, "quilt__rename__a__0", artificialAlias("rename", "a", "0"))
}

func TestDig(t *testing.T) {
	v := map[string]interface{}{
		"reporter": []interface{}{
			map[string]interface{}{"name": "a"},
			nil,
			map[string]interface{}{"name": "b"},
		},
	}

	assert.Equal(t, []interface{}{"a", nil, "b"}, dig(v, []string{"reporter", "name"}))
	assert.Nil(t, dig(v, []string{"missing", "name"}))
	assert.Equal(t, v, dig(v, nil))
}

func TestApplyPanicsOnUnknownInstruction(t *testing.T) {
	assert.Panics(t, func() {
		Apply(&ServiceResult{}, []Instruction{nil})
	})
}

func TestApplyPanicsOnInvalidSubject(t *testing.T) {
	list := &jsonnodes.JSONNode{ResultPath: paths.NewResultPath("issues"), Value: []interface{}{1}}

	assert.Panics(t, func() {
		Apply(&ServiceResult{}, []Instruction{Set{Subject: list, Key: "x", Value: 1}})
	})
	assert.Panics(t, func() {
		Apply(&ServiceResult{}, []Instruction{Remove{Subject: list, Key: "x"}})
	})
	assert.Panics(t, func() {
		Apply(&ServiceResult{}, []Instruction{Set{Key: "x", Value: 1}})
	})
	assert.Equal(t, []interface{}{1}, list.Value)
}

func TestApplySetAndRemove(t *testing.T) {
	obj := map[string]interface{}{"a": 1}
	node := &jsonnodes.JSONNode{Value: obj}
	res := &ServiceResult{}

	Apply(res, []Instruction{
		Set{Subject: node, Key: "b", Value: 2},
		Remove{Subject: node, Key: "a"},
		AddError{Error: &gqlerrors.Error{Message: "boom"}},
	})

	assert.Equal(t, map[string]interface{}{"b": 2}, obj)
	assert.Len(t, res.Errors, 1)
}

func TestOperationOf(t *testing.T) {
	bp := fixtureBlueprint(t)

	fields, _ := normalize(t, bp, `mutation { closeIssues(input: {ids: ["a"]}) { success } }`)
	assert.Equal(t, ast.Mutation, operationOf(bp, fields[0].Children[0]))

	fields, _ = normalize(t, bp, `{ issue(id: "1") { id } }`)
	assert.Equal(t, ast.Query, operationOf(bp, fields[0].Children[0]))
}
