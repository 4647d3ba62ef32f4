package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/drblury/jsonapiweaver/jsonutil"
)

const (
	paramFilter  = "filter"
	paramSort    = "sort"
	paramInclude = "include"
	paramPage    = "page"
	paramFields  = "fields"
)

// Parse turns the request query values into Params. Parameters outside the
// JSON:API families (filter, sort, page, include, fields) are ignored, as
// the specification requires for implementation-specific parameters.
func Parse(values url.Values) (*Params, error) {
	p := &Params{}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		family, subscript, nested := splitKey(key)

		var err error
		switch family {
		case paramFilter:
			err = p.parseFilter(key, subscript, nested, vals)
		case paramSort:
			err = p.parseSort(vals[len(vals)-1])
		case paramInclude:
			p.parseInclude(vals[len(vals)-1])
		case paramPage:
			err = p.parsePage(key, subscript, vals[len(vals)-1])
		case paramFields:
			err = p.parseFields(key, subscript, vals[len(vals)-1])
		}
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// splitKey decomposes "filter[views][gt]" into ("filter", "views", "gt").
func splitKey(key string) (family, subscript, nested string) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, "", ""
	}
	family = key[:open]

	rest := key[open:]
	var parts []string
	for len(rest) > 0 && rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return family, "", ""
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	if len(parts) > 0 {
		subscript = parts[0]
	}
	if len(parts) > 1 {
		nested = parts[1]
	}
	return family, subscript, nested
}

func (p *Params) parseFilter(key, name, op string, vals []string) error {
	// Bare "filter" carries the full JSON expression tree.
	if name == "" {
		var nodes []filterNode
		if err := jsonutil.Unmarshal([]byte(vals[len(vals)-1]), &nodes); err != nil {
			return newError(ErrInvalidFilter, key, "filter is not a valid JSON array: %v", err)
		}
		for _, node := range nodes {
			filter, err := node.toFilter(key)
			if err != nil {
				return err
			}
			p.Filters = append(p.Filters, filter)
		}
		return nil
	}

	if op == "" {
		op = OpEq
	}
	for _, val := range vals {
		p.Filters = append(p.Filters, Filter{Name: name, Op: op, Val: listAwareValue(op, val)})
	}
	return nil
}

// listAwareValue splits comma-separated values for the operators that take
// lists in the bracketed filter form.
func listAwareValue(op, val string) any {
	switch op {
	case OpIn, OpNotIn, OpBetween:
		parts := strings.Split(val, ",")
		list := make([]any, len(parts))
		for i, part := range parts {
			list[i] = part
		}
		return list
	default:
		return val
	}
}

func (p *Params) parseSort(raw string) error {
	for field := range strings.SplitSeq(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" || field == "-" {
			return newError(ErrInvalidSort, paramSort, "empty sort field")
		}
		sort := SortField{Field: field}
		if strings.HasPrefix(field, "-") {
			sort.Field = field[1:]
			sort.Desc = true
		}
		p.Sorts = append(p.Sorts, sort)
	}
	return nil
}

func (p *Params) parseInclude(raw string) {
	for path := range strings.SplitSeq(raw, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		p.Include = append(p.Include, strings.Split(path, "."))
	}
}

func (p *Params) parsePage(key, part, raw string) error {
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return newError(ErrInvalidPage, key, "%q is not a non-negative integer", raw)
	}

	switch part {
	case "number":
		p.Page.Number = value
	case "size":
		p.Page.Size = value
	case "offset":
		p.Page.Offset = value
	case "limit":
		p.Page.Limit = value
	default:
		return newError(ErrInvalidPage, key, "unknown pagination parameter")
	}
	return nil
}

func (p *Params) parseFields(key, resourceType, raw string) error {
	if resourceType == "" {
		return newError(ErrInvalidFields, key, "fields parameter needs a resource type subscript")
	}
	if p.Fields == nil {
		p.Fields = make(map[string][]string)
	}

	fields := make([]string, 0)
	for field := range strings.SplitSeq(raw, ",") {
		field = strings.TrimSpace(field)
		if field != "" {
			fields = append(fields, field)
		}
	}
	// An empty list is meaningful: it requests no attributes at all.
	p.Fields[resourceType] = fields
	return nil
}

// filterNode is the wire shape of one node in the JSON filter form.
type filterNode struct {
	Name string       `json:"name"`
	Op   string       `json:"op"`
	Val  any          `json:"val"`
	And  []filterNode `json:"and"`
	Or   []filterNode `json:"or"`
	Not  *filterNode  `json:"not"`
}

func (n filterNode) toFilter(parameter string) (Filter, error) {
	grouped := 0
	if len(n.And) > 0 {
		grouped++
	}
	if len(n.Or) > 0 {
		grouped++
	}
	if n.Not != nil {
		grouped++
	}
	if grouped > 1 {
		return Filter{}, newError(ErrInvalidFilter, parameter, "filter node mixes and/or/not groups")
	}

	switch {
	case len(n.And) > 0:
		children, err := childFilters(n.And, parameter)
		if err != nil {
			return Filter{}, err
		}
		return Filter{And: children}, nil

	case len(n.Or) > 0:
		children, err := childFilters(n.Or, parameter)
		if err != nil {
			return Filter{}, err
		}
		return Filter{Or: children}, nil

	case n.Not != nil:
		child, err := n.Not.toFilter(parameter)
		if err != nil {
			return Filter{}, err
		}
		return Filter{Not: &child}, nil
	}

	if n.Name == "" {
		return Filter{}, newError(ErrInvalidFilter, parameter, "filter node is missing a name")
	}
	op := n.Op
	if op == "" {
		op = OpEq
	}
	return Filter{Name: n.Name, Op: op, Val: n.Val}, nil
}

func childFilters(nodes []filterNode, parameter string) ([]Filter, error) {
	filters := make([]Filter, 0, len(nodes))
	for _, node := range nodes {
		filter, err := node.toFilter(parameter)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}
	return filters, nil
}
