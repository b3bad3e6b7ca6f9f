package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
)

// UpdateOptions tunes UpdateWith.
type UpdateOptions struct {
	// ExcludeUnset drops fields whose value is nil instead of writing NULL.
	ExcludeUnset bool
}

// Create inserts one record built from the known fields of fields plus any
// generated columns the caller left out.
func (e *Engine) Create(ctx context.Context, entity string, fields map[string]any) (Record, error) {
	const op = "create"
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, err
	}
	var out Record
	err = e.InTx(ctx, func(tx *Engine) error {
		out, err = tx.insert(ctx, d, fields)
		return err
	})
	return out, err
}

func (e *Engine) insert(ctx context.Context, d registry.Descriptor, fields map[string]any) (Record, error) {
	const op = "create"
	rec := make(map[string]any, len(fields))
	for _, f := range d.Known(fields) {
		rec[f] = fields[f]
	}
	for f, gen := range d.Generated {
		if rec[f] == nil {
			rec[f] = gen()
		}
	}
	if err := d.Validate(rec); err != nil {
		return nil, validationf(op, d.Name, "%v", err)
	}

	cols := d.Known(rec)
	var q string
	args := make([]any, len(cols))
	if len(cols) == 0 {
		q = "INSERT INTO " + pq.QuoteIdentifier(d.Table) + " DEFAULT VALUES" + returning(d)
	} else {
		marks := make([]string, len(cols))
		for i, c := range cols {
			marks[i] = "?"
			args[i] = rec[c]
		}
		q = "INSERT INTO " + pq.QuoteIdentifier(d.Table) + " (" + columns(cols) + ") VALUES (" +
			strings.Join(marks, ", ") + ")" + returning(d)
	}
	ext := e.ext()
	out, err := queryRecord(ctx, ext, ext.Rebind(q), args...)
	if err != nil {
		return nil, e.fail(op, d, err)
	}
	if out == nil {
		return nil, e.fail(op, d, errors.New("insert returned no row"))
	}
	e.log.Debugw("record created", "entity", d.Name, "id", out[d.IDField])
	return out, nil
}

// Update applies the known, mutable, non-nil entries of fields to rec.
// Unknown and immutable fields are ignored; when nothing applies no write
// happens and rec is returned as is.
func (e *Engine) Update(ctx context.Context, entity string, rec Record, fields map[string]any) (Record, error) {
	return e.UpdateWith(ctx, entity, rec, fields, UpdateOptions{ExcludeUnset: true})
}

func (e *Engine) UpdateWith(ctx context.Context, entity string, rec Record, fields map[string]any, opts UpdateOptions) (Record, error) {
	const op = "update"
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec[d.IDField] == nil {
		return nil, validationf(op, entity, "record has no %s", d.IDField)
	}
	if len(updateColumns(d, fields, opts)) == 0 {
		return rec, nil
	}
	var out Record
	err = e.InTx(ctx, func(tx *Engine) error {
		out, err = tx.update(ctx, d, rec, fields, opts)
		return err
	})
	return out, err
}

func updateColumns(d registry.Descriptor, fields map[string]any, opts UpdateOptions) []string {
	var cols []string
	for _, f := range d.Writable(fields) {
		if opts.ExcludeUnset && fields[f] == nil {
			continue
		}
		cols = append(cols, f)
	}
	return cols
}

func (e *Engine) update(ctx context.Context, d registry.Descriptor, rec Record, fields map[string]any, opts UpdateOptions) (Record, error) {
	const op = "update"
	cols := updateColumns(d, fields, opts)
	if len(cols) == 0 {
		return rec, nil
	}

	if d.Touches(cols) {
		merged := rec.Clone()
		for _, f := range cols {
			merged[f] = fields[f]
		}
		if err := d.Validate(merged); err != nil {
			return nil, validationf(op, d.Name, "%v", err)
		}
	}

	values := make(map[string]any, len(cols)+1)
	for _, f := range cols {
		values[f] = fields[f]
	}
	if d.UpdatedAtField != "" {
		if _, set := values[d.UpdatedAtField]; !set {
			cols = append(cols, d.UpdatedAtField)
			values[d.UpdatedAtField] = e.now()
		}
	}
	return e.set(ctx, op, d, rec[d.IDField], cols, values)
}

// set runs UPDATE ... WHERE id = ? RETURNING and reports a vanished row as
// not found.
func (e *Engine) set(ctx context.Context, op string, d registry.Descriptor, id any, cols []string, values map[string]any) (Record, error) {
	terms, args := assignments(cols, values)
	q := "UPDATE " + pq.QuoteIdentifier(d.Table) + " SET " + strings.Join(terms, ", ") +
		" WHERE " + pq.QuoteIdentifier(d.IDField) + " = ?" + returning(d)
	args = append(args, id)
	ext := e.ext()
	out, err := queryRecord(ctx, ext, ext.Rebind(q), args...)
	if err != nil {
		return nil, e.fail(op, d, err)
	}
	if out == nil {
		return nil, notFound(op, d.Name)
	}
	return out, nil
}

func (e *Engine) softColumns(d registry.Descriptor, softField string, active bool) ([]string, map[string]any) {
	cols := []string{softField}
	values := map[string]any{softField: active}
	if d.UpdatedAtField != "" {
		cols = append(cols, d.UpdatedAtField)
		values[d.UpdatedAtField] = e.now()
	}
	return cols, values
}

// Delete soft-deletes rec when softField names a column of the entity and
// removes it otherwise. On a soft delete rec itself is marked inactive.
// The result reports whether a row was affected.
func (e *Engine) Delete(ctx context.Context, entity string, rec Record, softField string) (bool, error) {
	const op = "delete"
	d, err := e.lookup(op, entity)
	if err != nil {
		return false, err
	}
	if rec == nil || rec[d.IDField] == nil {
		return false, validationf(op, entity, "record has no %s", d.IDField)
	}
	id := rec[d.IDField]

	var affected int64
	err = e.InTx(ctx, func(tx *Engine) error {
		ext := tx.ext()
		var q string
		var args []any
		if d.HasSoftDelete(softField) {
			cols, values := tx.softColumns(d, softField, false)
			terms, a := assignments(cols, values)
			q = "UPDATE " + pq.QuoteIdentifier(d.Table) + " SET " + strings.Join(terms, ", ") +
				" WHERE " + pq.QuoteIdentifier(d.IDField) + " = ?"
			args = append(a, id)
		} else {
			q = "DELETE FROM " + pq.QuoteIdentifier(d.Table) + " WHERE " + pq.QuoteIdentifier(d.IDField) + " = ?"
			args = []any{id}
		}
		res, err := ext.ExecContext(ctx, ext.Rebind(q), args...)
		if err != nil {
			return tx.fail(op, d, err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return tx.fail(op, d, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if d.HasSoftDelete(softField) {
		rec[softField] = false
	}
	return affected > 0, nil
}

// Restore marks a soft-deleted record active again. An already active
// record is returned untouched.
func (e *Engine) Restore(ctx context.Context, entity string, rec Record, softField string) (Record, error) {
	const op = "restore"
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, err
	}
	if !d.HasSoftDelete(softField) {
		return nil, validationf(op, entity, "entity has no soft delete field %q", softField)
	}
	if rec == nil || rec[d.IDField] == nil {
		return nil, validationf(op, entity, "record has no %s", d.IDField)
	}
	if active, ok := rec[softField].(bool); ok && active {
		return rec, nil
	}
	var out Record
	err = e.InTx(ctx, func(tx *Engine) error {
		cols, values := tx.softColumns(d, softField, true)
		out, err = tx.set(ctx, op, d, rec[d.IDField], cols, values)
		return err
	})
	return out, err
}

const upsertSavepoint = "store_upsert"

// GetOrCreate returns the record matching every known field of match, or
// creates one from defaults overlaid with match. A concurrent insert that
// wins the unique constraint is resolved by reading the winner back.
func (e *Engine) GetOrCreate(ctx context.Context, entity string, match, defaults map[string]any) (Record, bool, error) {
	return e.upsert(ctx, "get_or_create", entity, match, defaults, false)
}

// UpdateOrCreate updates the record matching match with update, or creates
// one from update overlaid with match.
func (e *Engine) UpdateOrCreate(ctx context.Context, entity string, match, update map[string]any) (Record, bool, error) {
	return e.upsert(ctx, "update_or_create", entity, match, update, true)
}

func (e *Engine) upsert(ctx context.Context, op, entity string, match, values map[string]any, updateExisting bool) (Record, bool, error) {
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, false, err
	}
	if len(d.Known(match)) == 0 {
		return nil, false, validationf(op, entity, "no known match fields")
	}

	var out Record
	var created bool
	err = e.InTx(ctx, func(tx *Engine) error {
		existing, err := tx.findOne(ctx, op, d, match)
		if err != nil {
			return err
		}
		if existing == nil {
			fields := make(map[string]any, len(values)+len(match))
			for k, v := range values {
				fields[k] = v
			}
			for k, v := range match {
				fields[k] = v
			}
			out, err = tx.insertSavepoint(ctx, d, fields)
			if err == nil {
				created = true
				return nil
			}
			if !IsDuplicate(err) {
				return err
			}
			if existing, err = tx.findOne(ctx, op, d, match); err != nil {
				return err
			}
			if existing == nil {
				return &Error{Kind: KindConflict, Reason: ReasonDuplicate, Op: op, Entity: d.Name,
					Msg: "a record with the same unique values already exists"}
			}
		}
		out = existing
		if updateExisting {
			out, err = tx.update(ctx, d, existing, values, UpdateOptions{ExcludeUnset: true})
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// insertSavepoint inserts inside a savepoint so a unique violation leaves
// the surrounding transaction usable.
func (e *Engine) insertSavepoint(ctx context.Context, d registry.Descriptor, fields map[string]any) (Record, error) {
	ext := e.ext()
	if _, err := ext.ExecContext(ctx, "SAVEPOINT "+upsertSavepoint); err != nil {
		return nil, e.fail("create", d, err)
	}
	out, err := e.insert(ctx, d, fields)
	if err != nil {
		if IsDuplicate(err) {
			if _, rbErr := ext.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+upsertSavepoint); rbErr != nil {
				return nil, e.fail("create", d, rbErr)
			}
		}
		return nil, err
	}
	if _, err := ext.ExecContext(ctx, "RELEASE SAVEPOINT "+upsertSavepoint); err != nil {
		return nil, e.fail("create", d, err)
	}
	return out, nil
}

// BulkCreate inserts every field set in one transaction; any failure rolls
// the whole batch back.
func (e *Engine) BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]Record, error) {
	const op = "bulk_create"
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	if len(items) == 0 {
		return out, nil
	}
	err = e.InTx(ctx, func(tx *Engine) error {
		for _, fields := range items {
			rec, err := tx.insert(ctx, d, fields)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkDelete soft- or hard-deletes the records whose idField is in ids and
// returns how many rows matched. Missing ids are not an error. An empty
// idField means the entity identifier.
func (e *Engine) BulkDelete(ctx context.Context, entity string, ids []any, idField, softField string) (int64, error) {
	const op = "bulk_delete"
	d, err := e.lookup(op, entity)
	if err != nil {
		return 0, err
	}
	if idField == "" {
		idField = d.IDField
	}
	if !d.Has(idField) {
		return 0, validationf(op, entity, "unknown id field %q", idField)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var q string
	var args []any
	if d.HasSoftDelete(softField) {
		cols, values := e.softColumns(d, softField, false)
		terms, a := assignments(cols, values)
		q = "UPDATE " + pq.QuoteIdentifier(d.Table) + " SET " + strings.Join(terms, ", ") +
			" WHERE " + pq.QuoteIdentifier(idField) + " IN (?)"
		args = append(a, ids)
	} else {
		q = "DELETE FROM " + pq.QuoteIdentifier(d.Table) + " WHERE " + pq.QuoteIdentifier(idField) + " IN (?)"
		args = []any{ids}
	}
	q, args, err = sqlx.In(q, args...)
	if err != nil {
		return 0, validationf(op, entity, "%v", err)
	}

	var affected int64
	err = e.InTx(ctx, func(tx *Engine) error {
		ext := tx.ext()
		res, err := ext.ExecContext(ctx, ext.Rebind(q), args...)
		if err != nil {
			return tx.fail(op, d, err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return tx.fail(op, d, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.log.Debugw("bulk delete", "entity", d.Name, "requested", len(ids), "affected", affected)
	return affected, nil
}
