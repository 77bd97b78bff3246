package incremental

import (
	"testing"

	"github.com/buildbuildio/quilt/normalized"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// deferredFixture models
//
//	{ issues { id ... @defer(label: "slow") { key assignee } ... @defer { key } } }
func deferredFixture() ([]*normalized.Field, *normalized.DeferredExecution, *normalized.DeferredExecution) {
	slow := &normalized.DeferredExecution{Label: "slow"}
	unlabeled := &normalized.DeferredExecution{}

	issues := &normalized.Field{
		Name:            "issues",
		ObjectTypeNames: []string{"Query"},
		Children: []*normalized.Field{
			{Name: "id", ObjectTypeNames: []string{"Issue"}},
			{Name: "key", ObjectTypeNames: []string{"Issue"}, DeferredExecutions: []*normalized.DeferredExecution{slow, unlabeled}},
			{
				Name:               "assignee",
				ObjectTypeNames:    []string{"Issue"},
				DeferredExecutions: []*normalized.DeferredExecution{slow},
				Children:           []*normalized.Field{{Name: "name", ObjectTypeNames: []string{"User"}}},
			},
		},
	}
	normalized.LinkParents(issues)

	return []*normalized.Field{issues}, slow, unlabeled
}
