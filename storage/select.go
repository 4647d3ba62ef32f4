package storage

import (
	"context"
	"errors"
	"reflect"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/jsonutil"
	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/schema"
	"github.com/drblury/jsonapiweaver/storage/internal/adapters"
)

// CollectionResult is the outcome of a collection query: the primary
// records, the resources resolved for include paths, the unpaginated match
// count, and the effective pagination window.
type CollectionResult struct {
	Records  []document.Record
	Included []document.Record
	Total    int
	Limit    int
	Offset   int
}

// selectPlan captures which columns a SELECT fetches and how to scan them
// back into records. Sparse fieldsets shrink the attribute set but never
// the id and foreign-key columns, which relationship linkage depends on.
type selectPlan struct {
	s     *schema.Schema
	attrs []schema.Attribute

	// keyColumn, when set, is scanned as a trailing column and returned
	// per row. Include resolution uses it to group to-many children by
	// their foreign key.
	keyColumn string
}

func (dl *DataLayer) planFor(s *schema.Schema, p *query.Params) (selectPlan, error) {
	plan := selectPlan{s: s, attrs: s.Attributes}

	if fields, ok := p.Fieldset(s.ResourceType); ok {
		validated, err := s.Fieldset(fields)
		if err != nil {
			return selectPlan{}, &query.Error{
				Parameter: "fields[" + s.ResourceType + "]",
				Detail:    err.Error(),
				Err:       query.ErrInvalidFields,
			}
		}
		plan.attrs = make([]schema.Attribute, 0, len(validated))
		for _, name := range validated {
			if attr, isAttr := s.Attribute(name); isAttr {
				plan.attrs = append(plan.attrs, attr)
			}
		}
	}
	return plan, nil
}

func (plan selectPlan) columns() []any {
	table := goqu.T(plan.s.Table)
	columns := make([]any, 0, 1+len(plan.s.Relationships)+len(plan.attrs))
	columns = append(columns, table.Col(plan.s.IDColumn))
	for _, rel := range plan.s.Relationships {
		if rel.Kind == schema.ToOne {
			columns = append(columns, table.Col(rel.LocalColumn))
		}
	}
	for _, attr := range plan.attrs {
		columns = append(columns, table.Col(attr.Column))
	}
	if plan.keyColumn != "" {
		columns = append(columns, table.Col(plan.keyColumn))
	}
	return columns
}

// GetCollection runs the list operation: filters, sort, pagination, and
// include resolution in a fixed number of queries regardless of row count.
func (dl *DataLayer) GetCollection(ctx context.Context, s *schema.Schema, p *query.Params) (*CollectionResult, error) {
	return dl.getCollection(ctx, s, p, nil)
}

func (dl *DataLayer) getCollection(ctx context.Context, s *schema.Schema, p *query.Params, extraWhere []goqu.Expression) (*CollectionResult, error) {
	plan, err := dl.planFor(s, p)
	if err != nil {
		return nil, err
	}

	where, err := dl.whereExpressions(s, p, extraWhere)
	if err != nil {
		return nil, err
	}

	total, err := dl.countRows(ctx, s, where)
	if err != nil {
		return nil, err
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(s.Table).
		Select(plan.columns()...)
	if len(where) > 0 {
		stmt = stmt.Where(where...)
	}

	stmt, err = dl.applySort(s, p, stmt)
	if err != nil {
		return nil, err
	}

	limit, offset := p.Page.LimitOffset(dl.pageSize, dl.maxPage)
	if limit > 0 {
		stmt = stmt.Limit(uint(limit))
	}
	if offset > 0 {
		stmt = stmt.Offset(uint(offset))
	}

	records, err := dl.queryRecords(ctx, plan, stmt, "list")
	if err != nil {
		return nil, err
	}

	included, err := dl.resolveIncludes(ctx, s, records, p)
	if err != nil {
		return nil, err
	}

	dl.logInfo(logMsgQueryCompleted, logAttrResource, s.ResourceType, logAttrCount, len(records))

	return &CollectionResult{
		Records:  records,
		Included: included,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// GetResource runs the detail operation for one id.
func (dl *DataLayer) GetResource(ctx context.Context, s *schema.Schema, id string, p *query.Params) (document.Record, []document.Record, error) {
	plan, err := dl.planFor(s, p)
	if err != nil {
		return document.Record{}, nil, err
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(s.Table).
		Select(plan.columns()...).
		Where(goqu.T(s.Table).Col(s.IDColumn).Eq(id))

	records, err := dl.queryRecords(ctx, plan, stmt, "detail")
	if err != nil {
		return document.Record{}, nil, err
	}
	if len(records) == 0 {
		return document.Record{}, nil, ErrNotFound
	}

	included, err := dl.resolveIncludes(ctx, s, records[:1], p)
	if err != nil {
		return document.Record{}, nil, err
	}
	return records[0], included, nil
}

// GetRelated serves GET /{type}/{id}/{relationship}: the related resources
// themselves, filtered and paginated like any collection for to-many
// relationships.
func (dl *DataLayer) GetRelated(ctx context.Context, s *schema.Schema, id, relName string, p *query.Params) (*CollectionResult, *schema.Relationship, error) {
	rel, ok := s.Relationship(relName)
	if !ok {
		return nil, nil, ErrNotFound
	}
	related, err := dl.reg.Related(rel)
	if err != nil {
		return nil, nil, err
	}

	owner, err := dl.loadLinkage(ctx, s, id, rel)
	if err != nil {
		return nil, nil, err
	}

	if rel.Kind == schema.ToOne {
		relatedID := owner.ToOne[rel.Name]
		if relatedID == "" {
			return &CollectionResult{}, &rel, nil
		}
		rec, included, detailErr := dl.GetResource(ctx, related, relatedID, p)
		if detailErr != nil {
			return nil, nil, detailErr
		}
		return &CollectionResult{Records: []document.Record{rec}, Included: included}, &rel, nil
	}

	extra := []goqu.Expression{goqu.T(related.Table).Col(rel.ForeignColumn).Eq(id)}
	result, err := dl.getCollection(ctx, related, p, extra)
	if err != nil {
		return nil, nil, err
	}
	return result, &rel, nil
}

// GetRelationship serves GET /{type}/{id}/relationships/{name}: the owner
// record with just the requested linkage loaded.
func (dl *DataLayer) GetRelationship(ctx context.Context, s *schema.Schema, id, relName string) (document.Record, *schema.Relationship, error) {
	rel, ok := s.Relationship(relName)
	if !ok {
		return document.Record{}, nil, ErrNotFound
	}
	owner, err := dl.loadLinkage(ctx, s, id, rel)
	if err != nil {
		return document.Record{}, nil, err
	}
	return owner, &rel, nil
}

// loadLinkage loads the owner row's linkage for one relationship,
// confirming the owner exists on the way.
func (dl *DataLayer) loadLinkage(ctx context.Context, s *schema.Schema, id string, rel schema.Relationship) (document.Record, error) {
	plan := selectPlan{s: s} // id and FK columns only

	stmt := goqu.Dialect(dialectPostgres).
		From(s.Table).
		Select(plan.columns()...).
		Where(goqu.T(s.Table).Col(s.IDColumn).Eq(id))

	records, err := dl.queryRecords(ctx, plan, stmt, "relationship")
	if err != nil {
		return document.Record{}, err
	}
	if len(records) == 0 {
		return document.Record{}, ErrNotFound
	}
	owner := records[0]

	if rel.Kind == schema.ToMany {
		related, relatedErr := dl.reg.Related(rel)
		if relatedErr != nil {
			return document.Record{}, relatedErr
		}
		linkage, linkErr := dl.loadToManyIDs(ctx, related, rel, []string{owner.ID})
		if linkErr != nil {
			return document.Record{}, linkErr
		}
		owner.ToMany = map[string][]string{rel.Name: linkage[owner.ID]}
	}
	return owner, nil
}

// loadToManyIDs reads the bare to-many linkage for a set of owners in one
// batched query, grouped by the foreign-key value. Owners without related
// rows map to an empty list so callers can tell "loaded, none" apart from
// "not loaded".
func (dl *DataLayer) loadToManyIDs(ctx context.Context, related *schema.Schema, rel schema.Relationship, ownerIDs []string) (map[string][]string, error) {
	plan := selectPlan{s: related, keyColumn: rel.ForeignColumn}

	stmt := goqu.Dialect(dialectPostgres).
		From(related.Table).
		Select(plan.columns()...).
		Where(goqu.T(related.Table).Col(rel.ForeignColumn).In(ownerIDs)).
		Order(goqu.T(related.Table).Col(related.IDColumn).Asc())

	records, keys, err := dl.queryRecordsKeyed(ctx, plan, stmt, "relationship")
	if err != nil {
		return nil, err
	}

	linkage := make(map[string][]string, len(ownerIDs))
	for _, id := range ownerIDs {
		linkage[id] = []string{}
	}
	for i := range records {
		linkage[keys[i]] = append(linkage[keys[i]], records[i].ID)
	}
	return linkage, nil
}

func (dl *DataLayer) whereExpressions(s *schema.Schema, p *query.Params, extra []goqu.Expression) ([]goqu.Expression, error) {
	where := make([]goqu.Expression, 0, len(p.Filters)+len(extra))
	where = append(where, extra...)
	for _, f := range p.Filters {
		expression, err := dl.filterExpression(s, f)
		if err != nil {
			return nil, err
		}
		where = append(where, expression)
	}
	return where, nil
}

func (dl *DataLayer) applySort(s *schema.Schema, p *query.Params, stmt *goqu.SelectDataset) (*goqu.SelectDataset, error) {
	if len(p.Sorts) == 0 {
		// Deterministic default order keeps pagination stable.
		return stmt.Order(goqu.T(s.Table).Col(s.IDColumn).Asc()), nil
	}

	ordered := make([]exp.OrderedExpression, 0, len(p.Sorts))
	for _, sort := range p.Sorts {
		columnName, _, err := resolveFilterColumn(s, sort.Field)
		if err != nil {
			return nil, invalidSort("%q is not a sortable field of resource %q", sort.Field, s.ResourceType)
		}
		column := goqu.T(s.Table).Col(columnName)
		if sort.Desc {
			ordered = append(ordered, column.Desc())
		} else {
			ordered = append(ordered, column.Asc())
		}
	}
	return stmt.Order(ordered...), nil
}

func (dl *DataLayer) countRows(ctx context.Context, s *schema.Schema, where []goqu.Expression) (int, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(s.Table).
		Select(goqu.COUNT(goqu.Star()))
	if len(where) > 0 {
		stmt = stmt.Where(where...)
	}

	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		dl.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
		return 0, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := dl.executeQuery(ctx, s.ResourceType, "count", sqlQuery)
	if err != nil {
		return 0, err
	}
	defer dl.closeRows(rows)

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			dl.logError(logMsgScanRowFailed, logAttrError, err.Error())
			return 0, errors.Join(ErrScanningRowFailed, err)
		}
	}
	return int(count), nil
}

// queryRecords renders the statement, executes it, and scans every row
// according to the plan.
func (dl *DataLayer) queryRecords(ctx context.Context, plan selectPlan, stmt *goqu.SelectDataset, action string) ([]document.Record, error) {
	records, _, err := dl.queryRecordsKeyed(ctx, plan, stmt, action)
	return records, err
}

// queryRecordsKeyed additionally returns the scanned key column value for
// each record when the plan carries one.
func (dl *DataLayer) queryRecordsKeyed(ctx context.Context, plan selectPlan, stmt *goqu.SelectDataset, action string) ([]document.Record, []string, error) {
	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		dl.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
		return nil, nil, errors.Join(ErrBuildingQueryFailed, err)
	}
	return dl.runRecordsSQL(ctx, plan, sqlQuery, action)
}

// runRecordsSQL executes already-rendered SQL that yields record rows.
// Besides selects this covers INSERT/UPDATE ... RETURNING statements.
func (dl *DataLayer) runRecordsSQL(ctx context.Context, plan selectPlan, sqlQuery, action string) ([]document.Record, []string, error) {
	rows, err := dl.executeQuery(ctx, plan.s.ResourceType, action, sqlQuery)
	if err != nil {
		return nil, nil, err
	}
	defer dl.closeRows(rows)

	return dl.scanRecords(plan, rows)
}

func (dl *DataLayer) scanRecords(plan selectPlan, rows adapters.DBRows) ([]document.Record, []string, error) {
	s := plan.s

	toOneRels := make([]schema.Relationship, 0, len(s.Relationships))
	for _, rel := range s.Relationships {
		if rel.Kind == schema.ToOne {
			toOneRels = append(toOneRels, rel)
		}
	}

	records := make([]document.Record, 0)
	var keys []string
	for rows.Next() {
		dests := make([]any, 0, 2+len(toOneRels)+len(plan.attrs))

		idDest := new(any)
		dests = append(dests, idDest)

		relDests := make([]*any, len(toOneRels))
		for i := range toOneRels {
			relDests[i] = new(any)
			dests = append(dests, relDests[i])
		}

		attrDests := make([]reflect.Value, len(plan.attrs))
		for i, attr := range plan.attrs {
			attrDests[i] = scanDestination(attr)
			dests = append(dests, attrDests[i].Interface())
		}

		keyDest := new(any)
		if plan.keyColumn != "" {
			dests = append(dests, keyDest)
		}

		if err := rows.Scan(dests...); err != nil {
			dl.logError(logMsgScanRowFailed, logAttrError, err.Error())
			return nil, nil, errors.Join(ErrScanningRowFailed, err)
		}

		rec := document.Record{
			Type:  s.ResourceType,
			ID:    stringifyID(*idDest),
			Attrs: make(map[string]any, len(plan.attrs)),
		}
		if len(toOneRels) > 0 {
			rec.ToOne = make(map[string]string, len(toOneRels))
			for i, rel := range toOneRels {
				rec.ToOne[rel.Name] = stringifyID(*relDests[i])
			}
		}
		for i, attr := range plan.attrs {
			value, err := attributeValue(attr, attrDests[i])
			if err != nil {
				dl.logError(logMsgScanRowFailed, logAttrError, err.Error())
				return nil, nil, errors.Join(ErrScanningRowFailed, err)
			}
			rec.Attrs[attr.Name] = value
		}
		records = append(records, rec)
		if plan.keyColumn != "" {
			keys = append(keys, stringifyID(*keyDest))
		}
	}

	return records, keys, nil
}

// scanDestination allocates the scan target for one attribute: a *[]byte
// for JSONB columns, otherwise a pointer-to-pointer of the Go type so NULL
// survives the round trip.
func scanDestination(attr schema.Attribute) reflect.Value {
	if attr.JSONEncoded {
		return reflect.New(reflect.TypeFor[[]byte]())
	}
	target := attr.Type
	if target.Kind() != reflect.Pointer {
		target = reflect.PointerTo(target)
	}
	return reflect.New(target)
}

// attributeValue unwraps the scanned destination into the value stored on
// the record, decoding JSONB payloads through sonic.
func attributeValue(attr schema.Attribute, dest reflect.Value) (any, error) {
	if attr.JSONEncoded {
		raw := dest.Elem().Interface().([]byte)
		if len(raw) == 0 {
			return nil, nil
		}
		decoded := reflect.New(attr.Type)
		if err := jsonutil.Unmarshal(raw, decoded.Interface()); err != nil {
			return nil, err
		}
		return decoded.Elem().Interface(), nil
	}

	pointer := dest.Elem()
	if pointer.IsNil() {
		return nil, nil
	}
	if attr.Type.Kind() == reflect.Pointer {
		return pointer.Interface(), nil
	}
	return pointer.Elem().Interface(), nil
}
