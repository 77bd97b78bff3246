package gqlerrors

import (
	"strings"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	ValidationFailedError = "GRAPHQL_VALIDATION_FAILED"
	UndefinedError        = "UNDEFINED_ERROR"
	ExecutionAbortedError = "EXECUTION_ABORTED"
	PartitionError        = "PARTITION_ERROR"
	HydrationError        = "HYDRATION_ERROR"
)

type Location struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// Error represents a graphql error
type Error struct {
	Extensions map[string]interface{} `json:"extensions,omitempty"`
	Message    string                 `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Copy returns a shallow copy with its own extensions map, so callers can
// tag the copy without touching errors shared with other results.
func (e *Error) Copy() *Error {
	c := *e
	if e.Extensions != nil {
		c.Extensions = make(map[string]interface{}, len(e.Extensions))
		for k, v := range e.Extensions {
			c.Extensions[k] = v
		}
	}
	return &c
}

// Relocated returns a copy of e located at path.
func (e *Error) Relocated(path []interface{}) *Error {
	c := e.Copy()
	c.Path = path
	return c
}

// NewError returns a graphql error with the given code and message
func NewError(code string, err error) *Error {
	return &Error{
		Message: err.Error(),
		Extensions: map[string]interface{}{
			"code": code,
		},
	}
}

// NewPathError returns a graphql error with the given code located at path
func NewPathError(code string, path []interface{}, err error) *Error {
	e := NewError(code, err)
	e.Path = path
	return e
}

// ErrorList represents a list of errors
type ErrorList []*Error

// ExtendErrorList adds provided err as *Error
func ExtendErrorList(errs ErrorList, err error) ErrorList {
	return append(errs, FormatError(err)...)
}

// Error returns a string representation of each error
func (list ErrorList) Error() string {
	acc := make([]string, len(list))

	for i, err := range list {
		acc[i] = err.Error()
	}

	return strings.Join(acc, ". ")
}

// Relocate moves errors reported under from to target. The part of an error
// path below from is kept, errors located elsewhere land on target itself.
func (list ErrorList) Relocate(from []string, target []interface{}) ErrorList {
	res := make(ErrorList, 0, len(list))
	for _, e := range list {
		var rest []interface{}
		if hasPrefix(e.Path, from) {
			rest = e.Path[len(from):]
		}
		res = append(res, e.Relocated(append(append([]interface{}{}, target...), rest...)))
	}
	return res
}

func hasPrefix(path []interface{}, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, segment := range prefix {
		if s, ok := path[i].(string); !ok || s != segment {
			return false
		}
	}
	return true
}

// FormatError converts err into graphql errors. Errors reported by the
// validator keep their locations and paths.
func FormatError(err error) ErrorList {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case ErrorList:
		var list ErrorList
		for _, innerErr := range e {
			list = append(list, FormatError(innerErr)...)
		}
		return list
	case *Error:
		return ErrorList{e}
	case *gqlerror.Error:
		var locations []Location
		for _, loc := range e.Locations {
			locations = append(locations, Location(loc))
		}
		ext := e.Extensions
		if len(ext) == 0 {
			ext = map[string]interface{}{"code": UndefinedError}
		}
		return ErrorList{&Error{
			Extensions: ext,
			Message:    e.Message,
			Locations:  locations,
			Path:       formatPath(e.Path),
		}}
	case gqlerror.List:
		var list ErrorList
		for _, innerErr := range e {
			list = append(list, FormatError(innerErr)...)
		}
		return list
	default:
		return ErrorList{
			NewError(UndefinedError, err),
		}
	}
}

func formatPath(path ast.Path) []interface{} {
	if len(path) == 0 {
		return nil
	}
	return lo.Map(path, func(el ast.PathElement, _ int) interface{} {
		switch v := el.(type) {
		case ast.PathIndex:
			return int(v)
		case ast.PathName:
			return string(v)
		}
		return nil
	})
}
