package storage

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/drblury/jsonapiweaver/jsonutil"
	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/schema"
)

// FilterOperator translates one custom filter comparison into a goqu
// expression. column is the table-qualified column the filter addresses and
// attr its schema metadata; value is the raw filter value from the query
// string or JSON filter tree.
type FilterOperator func(column exp.IdentifierExpression, attr schema.Attribute, value any) (goqu.Expression, error)

// OpJSONBContains is the built-in JSONB containment operator
// (column @> value). The filter value may be a JSON string or any value
// that serialises to the JSON to contain.
const OpJSONBContains = "jsonb_contains"

// OpLowerEquals is the built-in case-folded equality operator.
const OpLowerEquals = "lower_equals"

func builtinOperators() map[string]FilterOperator {
	return map[string]FilterOperator{
		OpJSONBContains: jsonbContains,
		OpLowerEquals:   lowerEquals,
	}
}

func jsonbContains(column exp.IdentifierExpression, _ schema.Attribute, value any) (goqu.Expression, error) {
	text, ok := value.(string)
	if !ok {
		encoded, err := jsonutil.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("storage: jsonb_contains value is not serialisable: %w", err)
		}
		text = string(encoded)
	}
	return goqu.L("? @> ?::jsonb", column, text), nil
}

func lowerEquals(column exp.IdentifierExpression, _ schema.Attribute, value any) (goqu.Expression, error) {
	return goqu.Func("LOWER", column).Eq(goqu.Func("LOWER", goqu.V(fmt.Sprint(value)))), nil
}

func invalidFilter(format string, args ...any) error {
	return &query.Error{
		Parameter: "filter",
		Detail:    fmt.Sprintf(format, args...),
		Err:       query.ErrInvalidFilter,
	}
}

func invalidSort(format string, args ...any) error {
	return &query.Error{
		Parameter: "sort",
		Detail:    fmt.Sprintf(format, args...),
		Err:       query.ErrInvalidSort,
	}
}

// filterExpression lowers one filter tree node into a goqu expression
// against the schema's table.
func (dl *DataLayer) filterExpression(s *schema.Schema, f query.Filter) (goqu.Expression, error) {
	switch {
	case len(f.And) > 0:
		children, err := dl.filterExpressions(s, f.And)
		if err != nil {
			return nil, err
		}
		return goqu.And(children...), nil

	case len(f.Or) > 0:
		children, err := dl.filterExpressions(s, f.Or)
		if err != nil {
			return nil, err
		}
		return goqu.Or(children...), nil

	case f.Not != nil:
		child, err := dl.filterExpression(s, *f.Not)
		if err != nil {
			return nil, err
		}
		return goqu.L("NOT (?)", child), nil
	}

	path := f.FieldPath()
	if len(path) > 1 {
		return dl.relatedExpression(s, path, f.Op, f.Val)
	}
	return dl.comparison(s, path[0], f.Op, f.Val)
}

func (dl *DataLayer) filterExpressions(s *schema.Schema, filters []query.Filter) ([]goqu.Expression, error) {
	expressions := make([]goqu.Expression, 0, len(filters))
	for _, f := range filters {
		expression, err := dl.filterExpression(s, f)
		if err != nil {
			return nil, err
		}
		expressions = append(expressions, expression)
	}
	return expressions, nil
}

// relatedExpression lowers a dotted filter name ("author.name") into an
// EXISTS subquery against the related table, recursing for deeper paths.
func (dl *DataLayer) relatedExpression(s *schema.Schema, path []string, op string, val any) (goqu.Expression, error) {
	rel, ok := s.Relationship(path[0])
	if !ok {
		return nil, invalidFilter("%q is not a relationship of resource %q", path[0], s.ResourceType)
	}
	related, err := dl.reg.Related(rel)
	if err != nil {
		return nil, err
	}

	var join goqu.Expression
	if rel.Kind == schema.ToOne {
		join = goqu.T(related.Table).Col(related.IDColumn).Eq(goqu.T(s.Table).Col(rel.LocalColumn))
	} else {
		join = goqu.T(related.Table).Col(rel.ForeignColumn).Eq(goqu.T(s.Table).Col(s.IDColumn))
	}

	var inner goqu.Expression
	if len(path) > 2 {
		inner, err = dl.relatedExpression(related, path[1:], op, val)
	} else {
		inner, err = dl.comparison(related, path[1], op, val)
	}
	if err != nil {
		return nil, err
	}

	sub := goqu.From(related.Table).
		Select(goqu.L("1")).
		Where(goqu.And(join, inner))

	return goqu.L("EXISTS ?", sub), nil
}

// comparison lowers a leaf filter on one of the schema's own fields.
func (dl *DataLayer) comparison(s *schema.Schema, name, op string, val any) (goqu.Expression, error) {
	columnName, attr, err := resolveFilterColumn(s, name)
	if err != nil {
		return nil, err
	}
	column := goqu.T(s.Table).Col(columnName)

	if custom, ok := dl.custom[op]; ok {
		expression, opErr := custom(column, attr, val)
		if opErr != nil {
			return nil, invalidFilter("operator %q on %q: %v", op, name, opErr)
		}
		return expression, nil
	}

	switch op {
	case query.OpEq, "":
		if val == nil {
			return column.IsNull(), nil
		}
		return column.Eq(val), nil
	case query.OpNe:
		if val == nil {
			return column.IsNotNull(), nil
		}
		return column.Neq(val), nil
	case query.OpGt:
		return column.Gt(val), nil
	case query.OpGe:
		return column.Gte(val), nil
	case query.OpLt:
		return column.Lt(val), nil
	case query.OpLe:
		return column.Lte(val), nil
	case query.OpIn:
		return column.In(listValue(val)...), nil
	case query.OpNotIn:
		return column.NotIn(listValue(val)...), nil
	case query.OpLike:
		return column.Like(fmt.Sprint(val)), nil
	case query.OpILike:
		return column.ILike(fmt.Sprint(val)), nil
	case query.OpNotLike:
		return column.NotLike(fmt.Sprint(val)), nil
	case query.OpNotILike:
		return column.NotILike(fmt.Sprint(val)), nil
	case query.OpContains:
		return column.Like("%" + fmt.Sprint(val) + "%"), nil
	case query.OpIContains:
		return column.ILike("%" + fmt.Sprint(val) + "%"), nil
	case query.OpStartsWith:
		return column.Like(fmt.Sprint(val) + "%"), nil
	case query.OpIStartsWith:
		return column.ILike(fmt.Sprint(val) + "%"), nil
	case query.OpEndsWith:
		return column.Like("%" + fmt.Sprint(val)), nil
	case query.OpIEndsWith:
		return column.ILike("%" + fmt.Sprint(val)), nil
	case query.OpIEquals:
		return goqu.Func("LOWER", column).Eq(goqu.Func("LOWER", goqu.V(fmt.Sprint(val)))), nil
	case query.OpIs:
		if isTruthy(val) {
			return column.IsNull(), nil
		}
		return column.IsNotNull(), nil
	case query.OpIsNot:
		if isTruthy(val) {
			return column.IsNotNull(), nil
		}
		return column.IsNull(), nil
	case query.OpBetween:
		bounds := listValue(val)
		if len(bounds) != 2 {
			return nil, invalidFilter("between on %q needs exactly two values", name)
		}
		return column.Between(goqu.Range(bounds[0], bounds[1])), nil
	default:
		return nil, invalidFilter("unknown operator %q on %q", op, name)
	}
}

// resolveFilterColumn maps a field name onto its column. The id field is
// always addressable; relationship names resolve to the local FK column so
// clients can filter to-one linkage directly.
func resolveFilterColumn(s *schema.Schema, name string) (string, schema.Attribute, error) {
	if name == "id" {
		return s.IDColumn, schema.Attribute{Name: "id", Column: s.IDColumn}, nil
	}
	if attr, ok := s.Attribute(name); ok {
		return attr.Column, attr, nil
	}
	if rel, ok := s.Relationship(name); ok && rel.Kind == schema.ToOne {
		return rel.LocalColumn, schema.Attribute{Name: name, Column: rel.LocalColumn}, nil
	}
	return "", schema.Attribute{}, invalidFilter("%q is not a filterable field of resource %q", name, s.ResourceType)
}

func listValue(val any) []any {
	switch value := val.(type) {
	case []any:
		return value
	case []string:
		list := make([]any, len(value))
		for i, v := range value {
			list[i] = v
		}
		return list
	case nil:
		return nil
	default:
		return []any{value}
	}
}

func isTruthy(val any) bool {
	switch value := val.(type) {
	case nil:
		return true
	case bool:
		return value
	case string:
		return value != "false" && value != "0"
	default:
		return true
	}
}
