package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/jsonutil"
	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/schema"
)

// Create inserts a new resource and returns it as stored. When the client
// sent no id a uuid v4 is generated. To-many linkage in the payload is
// applied by repointing the related rows' foreign keys; when that needs
// more than one statement the whole create runs in a transaction.
func (dl *DataLayer) Create(ctx context.Context, s *schema.Schema, in *document.IncomingResource) (document.Record, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	if len(in.ToMany) > 0 && !dl.inTx {
		var created document.Record
		err := dl.WithinTransaction(ctx, func(ctx context.Context, tx *DataLayer) error {
			var txErr error
			created, txErr = tx.Create(ctx, s, in)
			return txErr
		})
		return created, err
	}

	row, err := writeRow(s, in)
	if err != nil {
		return document.Record{}, err
	}
	row[s.IDColumn] = id

	plan := selectPlan{s: s, attrs: s.Attributes}
	stmt := goqu.Dialect(dialectPostgres).
		Insert(s.Table).
		Rows(row).
		Returning(plan.columns()...)

	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		dl.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
		return document.Record{}, errors.Join(ErrBuildingQueryFailed, err)
	}

	records, _, err := dl.runRecordsSQL(ctx, plan, sqlQuery, "create")
	if err != nil {
		if isUniqueViolation(err) {
			return document.Record{}, errors.Join(ErrConflict, err)
		}
		return document.Record{}, err
	}
	if len(records) == 0 {
		return document.Record{}, ErrQueryingFailed
	}
	created := records[0]

	if err := dl.replaceToMany(ctx, s, id, in.ToMany, false); err != nil {
		return document.Record{}, err
	}

	dl.logInfo(logMsgResourceCreated, logAttrResource, s.ResourceType, "id", id)
	return created, nil
}

// Update patches an existing resource, writing only the supplied
// attributes and linkage, and returns the stored state.
func (dl *DataLayer) Update(ctx context.Context, s *schema.Schema, id string, in *document.IncomingResource) (document.Record, error) {
	if len(in.ToMany) > 0 && !dl.inTx {
		var updated document.Record
		err := dl.WithinTransaction(ctx, func(ctx context.Context, tx *DataLayer) error {
			var txErr error
			updated, txErr = tx.Update(ctx, s, id, tx.withoutToMany(in))
			if txErr != nil {
				return txErr
			}
			return tx.replaceToMany(ctx, s, id, in.ToMany, true)
		})
		return updated, err
	}

	row, err := writeRow(s, in)
	if err != nil {
		return document.Record{}, err
	}

	plan := selectPlan{s: s, attrs: s.Attributes}

	if len(row) == 0 {
		// Linkage-only patch: nothing to write on the primary row.
		rec, _, detailErr := dl.GetResource(ctx, s, id, &query.Params{})
		if detailErr != nil {
			return document.Record{}, detailErr
		}
		if txErr := dl.replaceToMany(ctx, s, id, in.ToMany, true); txErr != nil {
			return document.Record{}, txErr
		}
		return rec, nil
	}

	stmt := goqu.Dialect(dialectPostgres).
		Update(s.Table).
		Set(row).
		Where(goqu.C(s.IDColumn).Eq(id)).
		Returning(plan.columns()...)

	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		dl.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
		return document.Record{}, errors.Join(ErrBuildingQueryFailed, err)
	}

	records, _, err := dl.runRecordsSQL(ctx, plan, sqlQuery, "update")
	if err != nil {
		return document.Record{}, err
	}
	if len(records) == 0 {
		return document.Record{}, ErrNotFound
	}

	if err := dl.replaceToMany(ctx, s, id, in.ToMany, true); err != nil {
		return document.Record{}, err
	}

	dl.logInfo(logMsgResourceUpdated, logAttrResource, s.ResourceType, "id", id)
	return records[0], nil
}

// Delete removes one resource by id.
func (dl *DataLayer) Delete(ctx context.Context, s *schema.Schema, id string) error {
	stmt := goqu.Dialect(dialectPostgres).
		Delete(s.Table).
		Where(goqu.C(s.IDColumn).Eq(id))

	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		dl.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	affected, err := dl.executeExec(ctx, s.ResourceType, "delete", sqlQuery)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	dl.logInfo(logMsgResourceDeleted, logAttrResource, s.ResourceType, "id", id)
	return nil
}

// DeleteCollection removes every resource matching the request filters and
// returns how many rows went away. With no filters it empties the table.
func (dl *DataLayer) DeleteCollection(ctx context.Context, s *schema.Schema, p *query.Params) (int, error) {
	where, err := dl.whereExpressions(s, p, nil)
	if err != nil {
		return 0, err
	}

	stmt := goqu.Dialect(dialectPostgres).Delete(s.Table)
	if len(where) > 0 {
		stmt = stmt.Where(where...)
	}

	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		dl.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
		return 0, errors.Join(ErrBuildingQueryFailed, err)
	}

	affected, err := dl.executeExec(ctx, s.ResourceType, "delete_collection", sqlQuery)
	if err != nil {
		return 0, err
	}

	dl.logInfo(logMsgResourceDeleted, logAttrResource, s.ResourceType, logAttrCount, affected)
	return int(affected), nil
}

// writeRow turns the incoming payload into the column/value record for an
// insert or update. To-one linkage lands on the local FK column; to-many
// linkage lives on the related table and is handled separately.
func writeRow(s *schema.Schema, in *document.IncomingResource) (goqu.Record, error) {
	row := goqu.Record{}

	for name, value := range in.Attrs {
		attr, ok := s.Attribute(name)
		if !ok {
			return nil, document.ErrUnknownMember
		}
		column, err := columnValue(attr, value)
		if err != nil {
			return nil, err
		}
		row[attr.Column] = column
	}

	for name, linkage := range in.ToOne {
		rel, ok := s.Relationship(name)
		if !ok || rel.Kind != schema.ToOne {
			return nil, document.ErrUnknownMember
		}
		if linkage == nil {
			row[rel.LocalColumn] = nil
		} else {
			row[rel.LocalColumn] = *linkage
		}
	}

	return row, nil
}

// columnValue converts one decoded attribute value into its SQL
// representation. JSON-encoded attributes are serialised and cast so they
// land in jsonb columns.
func columnValue(attr schema.Attribute, value any) (any, error) {
	if !attr.JSONEncoded {
		return value, nil
	}
	if value == nil {
		return nil, nil
	}
	encoded, err := jsonutil.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("storage: attribute %q is not serialisable: %w", attr.Name, err)
	}
	return goqu.L("?::jsonb", string(encoded)), nil
}

// replaceToMany makes the related rows whose FK points at the owner match
// exactly the given id lists. When clearStale is set, rows currently
// pointing at the owner but absent from the list are detached first.
func (dl *DataLayer) replaceToMany(ctx context.Context, s *schema.Schema, ownerID string, linkage map[string][]string, clearStale bool) error {
	for name, ids := range linkage {
		rel, ok := s.Relationship(name)
		if !ok || rel.Kind != schema.ToMany {
			return document.ErrUnknownMember
		}
		related, err := dl.reg.Related(rel)
		if err != nil {
			return err
		}

		if clearStale {
			clear := goqu.Dialect(dialectPostgres).
				Update(related.Table).
				Set(goqu.Record{rel.ForeignColumn: nil}).
				Where(goqu.C(rel.ForeignColumn).Eq(ownerID))
			if len(ids) > 0 {
				clear = clear.Where(goqu.C(related.IDColumn).NotIn(ids))
			}
			if err := dl.execLinkage(ctx, s.ResourceType, clear); err != nil {
				return err
			}
		}

		if len(ids) == 0 {
			continue
		}
		attach := goqu.Dialect(dialectPostgres).
			Update(related.Table).
			Set(goqu.Record{rel.ForeignColumn: ownerID}).
			Where(goqu.C(related.IDColumn).In(ids))
		if err := dl.execLinkage(ctx, s.ResourceType, attach); err != nil {
			return err
		}
	}
	return nil
}

func (dl *DataLayer) execLinkage(ctx context.Context, resourceType string, stmt *goqu.UpdateDataset) error {
	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		dl.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
		return errors.Join(ErrBuildingQueryFailed, err)
	}
	_, execErr := dl.executeExec(ctx, resourceType, "relationship", sqlQuery)
	return execErr
}

// withoutToMany copies the payload minus its to-many linkage, which the
// caller applies separately.
func (dl *DataLayer) withoutToMany(in *document.IncomingResource) *document.IncomingResource {
	copied := *in
	copied.ToMany = nil
	return &copied
}
