// Package paths holds the two coordinate systems used while stitching:
// QueryPath addresses a field in a query tree by result keys, ResultPath
// addresses a concrete value inside a JSON result, list indices included.
package paths

import (
	"strconv"
	"strings"
)

// QueryPath is an immutable list of result keys from the operation root.
type QueryPath []string

// RootQueryPath is the empty path.
var RootQueryPath = QueryPath{}

func NewQueryPath(segments ...string) QueryPath {
	p := make(QueryPath, len(segments))
	copy(p, segments)
	return p
}

// Plus returns a new path with segment appended. The receiver is never
// modified, so sub slices can be shared safely.
func (p QueryPath) Plus(segment string) QueryPath {
	res := make(QueryPath, len(p)+1)
	copy(res, p)
	res[len(p)] = segment
	return res
}

func (p QueryPath) IsRoot() bool {
	return len(p) == 0
}

func (p QueryPath) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the path without its last segment.
func (p QueryPath) Parent() QueryPath {
	if len(p) == 0 {
		return p
	}
	return NewQueryPath(p[:len(p)-1]...)
}

func (p QueryPath) Equal(other QueryPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

func (p QueryPath) HasPrefix(prefix QueryPath) bool {
	return len(prefix) <= len(p) && prefix.Equal(p[:len(prefix)])
}

// Hash returns a string usable as a map key. Two paths have the same hash iff
// they are equal.
func (p QueryPath) Hash() string {
	return strings.Join(p, "\x00")
}

func (p QueryPath) String() string {
	return strings.Join(p, ".")
}

// ResultPath is a path into a JSON result. Each segment is either a string
// (object key) or an int (list index).
type ResultPath []interface{}

func NewResultPath(segments ...interface{}) ResultPath {
	p := make(ResultPath, len(segments))
	copy(p, segments)
	return p
}

func (p ResultPath) PlusKey(key string) ResultPath {
	return p.plus(key)
}

func (p ResultPath) PlusIndex(index int) ResultPath {
	return p.plus(index)
}

func (p ResultPath) plus(segment interface{}) ResultPath {
	res := make(ResultPath, len(p)+1)
	copy(res, p)
	res[len(p)] = segment
	return res
}

// QueryPath drops the list indices.
func (p ResultPath) QueryPath() QueryPath {
	res := make(QueryPath, 0, len(p))
	for _, s := range p {
		if key, ok := s.(string); ok {
			res = append(res, key)
		}
	}
	return res
}

// Hash returns a string usable as a map key.
func (p ResultPath) Hash() string {
	var sb strings.Builder
	for i, s := range p {
		if i > 0 {
			sb.WriteByte(0)
		}
		switch v := s.(type) {
		case int:
			sb.WriteByte('#')
			sb.WriteString(strconv.Itoa(v))
		case string:
			sb.WriteByte('.')
			sb.WriteString(v)
		}
	}
	return sb.String()
}

func (p ResultPath) String() string {
	var sb strings.Builder
	for i, s := range p {
		switch v := s.(type) {
		case int:
			sb.WriteString("[" + strconv.Itoa(v) + "]")
		case string:
			if i > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(v)
		}
	}
	return sb.String()
}
