// Package format prints normalized field trees as GraphQL documents for
// underlying services. Argument values are always sent as variables.
package format

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/buildbuildio/quilt/normalized"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

// Document is a printed operation together with its variable values.
type Document struct {
	Query     string
	Variables map[string]interface{}
}

type formatter struct {
	writer io.Writer

	indent     string
	indentSize int

	padNext  bool
	lineHead bool

	variables    map[string]interface{}
	variableDefs []string
}

func newFormatter(w io.Writer) *formatter {
	return &formatter{
		indent:    "\t",
		writer:    w,
		variables: make(map[string]interface{}),
	}
}

func (f *formatter) writeString(s string) {
	_, _ = f.writer.Write([]byte(s))
}

func (f *formatter) writeIndent() *formatter {
	if f.lineHead {
		f.writeString(strings.Repeat(f.indent, f.indentSize))
	}
	f.lineHead = false
	f.padNext = false

	return f
}

func (f *formatter) WriteNewline() *formatter {
	f.writeString("\n")
	f.lineHead = true
	f.padNext = false

	return f
}

func (f *formatter) WriteWord(word string) *formatter {
	if f.lineHead {
		f.writeIndent()
	}
	if f.padNext {
		f.writeString(" ")
	}
	f.writeString(strings.TrimSpace(word))
	f.padNext = true

	return f
}

func (f *formatter) WriteString(s string) *formatter {
	if f.lineHead {
		f.writeIndent()
	}
	if f.padNext {
		f.writeString(" ")
	}
	f.writeString(s)
	f.padNext = false

	return f
}

func (f *formatter) IncrementIndent() {
	f.indentSize++
}

func (f *formatter) DecrementIndent() {
	f.indentSize--
}

func (f *formatter) NoPadding() *formatter {
	f.padNext = false

	return f
}

func (f *formatter) NeedPadding() *formatter {
	f.padNext = true

	return f
}

// variable registers value and returns the variable name used for it.
func (f *formatter) variable(value *normalized.InputValue) string {
	name := fmt.Sprintf("v%d", len(f.variableDefs))
	f.variables[name] = value.Value
	f.variableDefs = append(f.variableDefs, fmt.Sprintf("$%s: %s", name, value.Type))
	return name
}

func (f *formatter) FormatArguments(field *normalized.Field) {
	if len(field.Arguments) == 0 {
		return
	}

	f.NoPadding().WriteString("(")
	for idx, name := range field.ArgumentNames() {
		varName := f.variable(field.Arguments[name])
		f.WriteWord(name).NoPadding().WriteString(":").NeedPadding()
		f.WriteString("$" + varName)

		if idx != len(field.Arguments)-1 {
			f.NoPadding().WriteWord(",")
		}
	}
	f.WriteString(")").NeedPadding()
}

func (f *formatter) FormatField(field *normalized.Field) {
	if field.Alias != "" && field.Alias != field.Name {
		f.WriteWord(field.Alias).NoPadding().WriteString(":").NeedPadding()
	}
	f.WriteWord(field.Name)

	f.FormatArguments(field)
	f.FormatChildren(field.Children)
	f.WriteNewline()
}

// FormatChildren prints a selection set. Children that all apply to the
// same single object type are printed as is, otherwise they are grouped into
// inline fragments per object type.
func (f *formatter) FormatChildren(children []*normalized.Field) {
	if len(children) == 0 {
		return
	}

	f.WriteString("{").WriteNewline()
	f.IncrementIndent()

	types := objectTypes(children)
	if len(types) <= 1 {
		for _, child := range children {
			f.FormatField(child)
		}
	} else {
		for _, typeName := range types {
			f.WriteWord("...").WriteWord("on").WriteWord(typeName)
			f.WriteString("{").WriteNewline()
			f.IncrementIndent()
			for _, child := range children {
				if child.HasObjectType(typeName) {
					f.FormatField(child)
				}
			}
			f.DecrementIndent()
			f.WriteString("}").WriteNewline()
		}
	}

	f.DecrementIndent()
	f.WriteString("}")
}

func objectTypes(fields []*normalized.Field) []string {
	var types []string
	for _, field := range fields {
		types = lo.Union(types, field.ObjectTypeNames)
	}
	sort.Strings(types)
	return types
}

// FormatOperation prints fields as the top level selection of an operation.
func FormatOperation(operation ast.Operation, operationName string, fields []*normalized.Field) *Document {
	var body strings.Builder
	f := newFormatter(&body)
	f.FormatChildren(fields)

	var head []string
	if operation != ast.Query || operationName != "" || len(f.variableDefs) > 0 {
		head = append(head, string(operation))
	}
	if operationName != "" {
		head = append(head, operationName)
	}
	if len(f.variableDefs) > 0 {
		head = append(head, "("+strings.Join(f.variableDefs, ", ")+")")
	}

	query := body.String()
	if len(head) > 0 {
		query = strings.Join(head, " ") + " " + query
	}

	var variables map[string]interface{}
	if len(f.variables) > 0 {
		variables = f.variables
	}

	return &Document{Query: query, Variables: variables}
}

var space = regexp.MustCompile(`\s+`)

// Debug collapses a printed query to a single line.
func Debug(query string) string {
	return strings.TrimSpace(space.ReplaceAllString(query, " "))
}
