package common

import (
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

const DeferDirectiveName = "defer"

// DeferDirective declares @defer for schemas built on a prelude without it.
var DeferDirective = &ast.Source{
	Name:    "defer.graphql",
	Input:   `directive @defer(label: String, if: Boolean = true) on FRAGMENT_SPREAD | INLINE_FRAGMENT`,
	BuiltIn: true,
}

var (
	preludeDeferOnce sync.Once
	preludeDefer     bool
)

// PreludeHasDefer reports whether the gqlparser prelude already declares @defer.
func PreludeHasDefer() bool {
	preludeDeferOnce.Do(func() {
		doc, err := parser.ParseSchema(validator.Prelude)
		if err != nil {
			return
		}
		preludeDefer = doc.Directives.ForName(DeferDirectiveName) != nil
	})
	return preludeDefer
}

// LoadSchema is gqlparser.LoadSchema that guarantees @defer is declared.
func LoadSchema(sources ...*ast.Source) (*ast.Schema, error) {
	if !PreludeHasDefer() {
		sources = append(sources, DeferDirective)
	}

	schema, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return schema, nil
}

func MustLoadSchema(sources ...*ast.Source) *ast.Schema {
	schema, err := LoadSchema(sources...)
	if err != nil {
		panic(err)
	}
	return schema
}
