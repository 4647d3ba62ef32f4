package storage

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/schema"
)

func invalidInclude(format string, args ...any) error {
	return &query.Error{
		Parameter: "include",
		Detail:    fmt.Sprintf(format, args...),
		Err:       query.ErrInvalidInclude,
	}
}

// includeState accumulates the compound-document members while include
// paths are walked. Records are held by pointer so linkage written during a
// deeper segment lands on the record already collected.
type includeState struct {
	included []*document.Record
	byIdent  map[document.ResourceIdentifier]*document.Record
	primary  map[document.ResourceIdentifier]bool
}

// resolveIncludes walks every requested include path and returns the
// included resources, deduplicated across paths and against the primary
// data. Each path segment costs one batched IN query, independent of how
// many parent records there are. To-many linkage on parent records is
// filled in as a side effect, so the document builder can emit resource
// linkage for included relationships.
func (dl *DataLayer) resolveIncludes(ctx context.Context, s *schema.Schema, records []document.Record, p *query.Params) ([]document.Record, error) {
	if !p.HasInclude() || len(records) == 0 {
		return nil, nil
	}

	state := &includeState{
		byIdent: make(map[document.ResourceIdentifier]*document.Record, len(records)),
		primary: make(map[document.ResourceIdentifier]bool, len(records)),
	}
	for i := range records {
		ident := records[i].Identifier()
		state.byIdent[ident] = &records[i]
		state.primary[ident] = true
	}

	for _, path := range p.Include {
		parents := make([]*document.Record, len(records))
		for i := range records {
			parents[i] = &records[i]
		}

		current := s
		for _, segment := range path {
			rel, ok := current.Relationship(segment)
			if !ok {
				return nil, invalidInclude("%q is not a relationship of resource %q", segment, current.ResourceType)
			}
			related, err := dl.reg.Related(rel)
			if err != nil {
				return nil, err
			}

			parents, err = dl.includeSegment(ctx, parents, rel, related, p, state)
			if err != nil {
				return nil, err
			}
			if len(parents) == 0 {
				break
			}
			current = related
		}
	}

	included := make([]document.Record, len(state.included))
	for i, rec := range state.included {
		included[i] = *rec
	}
	return included, nil
}

// includeSegment loads the resources one relationship hop away from the
// parent set and returns them as the parent set for the next hop.
func (dl *DataLayer) includeSegment(ctx context.Context, parents []*document.Record, rel schema.Relationship, related *schema.Schema, p *query.Params, state *includeState) ([]*document.Record, error) {
	if rel.Kind == schema.ToOne {
		return dl.includeToOne(ctx, parents, rel, related, p, state)
	}
	return dl.includeToMany(ctx, parents, rel, related, p, state)
}

func (dl *DataLayer) includeToOne(ctx context.Context, parents []*document.Record, rel schema.Relationship, related *schema.Schema, p *query.Params, state *includeState) ([]*document.Record, error) {
	wanted := make([]string, 0, len(parents))
	seen := make(map[string]bool, len(parents))
	for _, parent := range parents {
		id := parent.ToOne[rel.Name]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}

	next := make([]*document.Record, 0, len(wanted))
	missing := make([]string, 0, len(wanted))
	for _, id := range wanted {
		ident := document.ResourceIdentifier{Type: related.ResourceType, ID: id}
		if rec, ok := state.byIdent[ident]; ok {
			next = append(next, rec)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return next, nil
	}

	plan, err := dl.planFor(related, p)
	if err != nil {
		return nil, err
	}
	stmt := goqu.Dialect(dialectPostgres).
		From(related.Table).
		Select(plan.columns()...).
		Where(goqu.T(related.Table).Col(related.IDColumn).In(missing)).
		Order(goqu.T(related.Table).Col(related.IDColumn).Asc())

	fetched, err := dl.queryRecords(ctx, plan, stmt, "include")
	if err != nil {
		return nil, err
	}
	for i := range fetched {
		next = append(next, state.collect(&fetched[i]))
	}
	return next, nil
}

func (dl *DataLayer) includeToMany(ctx context.Context, parents []*document.Record, rel schema.Relationship, related *schema.Schema, p *query.Params, state *includeState) ([]*document.Record, error) {
	parentIDs := make([]string, 0, len(parents))
	seen := make(map[string]bool, len(parents))
	for _, parent := range parents {
		if parent.ID == "" || seen[parent.ID] {
			continue
		}
		seen[parent.ID] = true
		parentIDs = append(parentIDs, parent.ID)
	}
	if len(parentIDs) == 0 {
		return nil, nil
	}

	plan, err := dl.planFor(related, p)
	if err != nil {
		return nil, err
	}
	plan.keyColumn = rel.ForeignColumn

	stmt := goqu.Dialect(dialectPostgres).
		From(related.Table).
		Select(plan.columns()...).
		Where(goqu.T(related.Table).Col(rel.ForeignColumn).In(parentIDs)).
		Order(goqu.T(related.Table).Col(related.IDColumn).Asc())

	fetched, keys, err := dl.queryRecordsKeyed(ctx, plan, stmt, "include")
	if err != nil {
		return nil, err
	}

	byParent := make(map[string][]string, len(parentIDs))
	next := make([]*document.Record, 0, len(fetched))
	for i := range fetched {
		byParent[keys[i]] = append(byParent[keys[i]], fetched[i].ID)
		next = append(next, state.collect(&fetched[i]))
	}

	for _, parent := range parents {
		if parent.ToMany == nil {
			parent.ToMany = make(map[string][]string)
		}
		ids := byParent[parent.ID]
		if ids == nil {
			ids = []string{}
		}
		parent.ToMany[rel.Name] = ids
	}
	return next, nil
}

// collect registers a fetched record, adding it to the included set unless
// it is already there or is part of the primary data.
func (state *includeState) collect(rec *document.Record) *document.Record {
	ident := rec.Identifier()
	if existing, ok := state.byIdent[ident]; ok {
		return existing
	}
	state.byIdent[ident] = rec
	if !state.primary[ident] {
		state.included = append(state.included, rec)
	}
	return rec
}
