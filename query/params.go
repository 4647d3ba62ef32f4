package query

import (
	"errors"
	"fmt"
	"strings"
)

// Filter operator names understood by the default storage operator table.
// Applications may register additional operators with the storage layer;
// the parser passes unknown names through untouched.
const (
	OpEq          = "eq"
	OpNe          = "ne"
	OpGt          = "gt"
	OpGe          = "ge"
	OpLt          = "lt"
	OpLe          = "le"
	OpIn          = "in"
	OpNotIn       = "notin"
	OpLike        = "like"
	OpILike       = "ilike"
	OpNotLike     = "notlike"
	OpNotILike    = "notilike"
	OpStartsWith  = "startswith"
	OpIStartsWith = "istartswith"
	OpEndsWith    = "endswith"
	OpIEndsWith   = "iendswith"
	OpContains    = "contains"
	OpIContains   = "icontains"
	OpIEquals     = "iequals"
	OpIs          = "is"
	OpIsNot       = "isnot"
	OpBetween     = "between"
)

// Error is a request error tied to a specific query parameter, so the HTTP
// layer can fill the JSON:API error source.
type Error struct {
	Parameter string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	if e.Parameter == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Parameter, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrInvalidSort    = errors.New("invalid sort")
	ErrInvalidPage    = errors.New("invalid pagination")
	ErrInvalidFields  = errors.New("invalid sparse fieldset")
	ErrInvalidInclude = errors.New("invalid include path")
)

func newError(sentinel error, parameter, format string, args ...any) *Error {
	return &Error{
		Parameter: parameter,
		Detail:    fmt.Sprintf(format, args...),
		Err:       sentinel,
	}
}

// Filter is one node of a filter expression tree. Exactly one of the group
// fields (And, Or, Not) or the leaf triple (Name, Op, Val) is set.
type Filter struct {
	And []Filter
	Or  []Filter
	Not *Filter

	Name string
	Op   string
	Val  any
}

// IsLeaf reports whether the node is a name/op/val comparison.
func (f Filter) IsLeaf() bool {
	return len(f.And) == 0 && len(f.Or) == 0 && f.Not == nil
}

// FieldPath splits the dotted filter name into its relationship traversal
// segments: "author.name" -> ["author", "name"].
func (f Filter) FieldPath() []string {
	return strings.Split(f.Name, ".")
}

// SortField is one element of the sort parameter.
type SortField struct {
	Field string
	Desc  bool
}

// Page carries the raw pagination parameters. Zero values mean the client
// did not send the parameter; the storage layer applies defaults and caps.
type Page struct {
	Number int
	Size   int
	Offset int
	Limit  int
}

// LimitOffset resolves the page parameters into a concrete limit/offset
// pair, translating number/size the way the JSON:API pagination profile
// does (offset = size * (number-1)). defaultLimit applies when the client
// sent nothing, maxLimit caps whatever was requested; either can be 0 to
// disable.
func (p Page) LimitOffset(defaultLimit, maxLimit int) (limit, offset int) {
	limit = p.Limit
	if limit == 0 {
		limit = p.Size
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	offset = p.Offset
	if offset == 0 && p.Number > 1 {
		size := p.Size
		if size == 0 {
			size = limit
		}
		offset = size * (p.Number - 1)
	}
	return limit, offset
}

// Params is the parsed query string of one JSON:API request.
type Params struct {
	Filters []Filter // combined with AND
	Sorts   []SortField
	Page    Page
	Include [][]string // dotted include paths, split into segments
	Fields  map[string][]string
}

// HasInclude reports whether the client requested any included resources.
func (p *Params) HasInclude() bool {
	return p != nil && len(p.Include) > 0
}

// Fieldset returns the sparse fieldset requested for the resource type and
// whether one was present at all.
func (p *Params) Fieldset(resourceType string) ([]string, bool) {
	if p == nil || p.Fields == nil {
		return nil, false
	}
	fields, ok := p.Fields[resourceType]
	return fields, ok
}
