// Package store implements the generic query and mutation engines over the
// entities described in internal/registry.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
)

// Record is one row of an entity keyed by column name.
type Record map[string]any

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Engine runs generic reads and writes. An engine built with New owns its
// transactions: every write commits on its own. The engine handed to an
// InTx callback is bound to that transaction and never commits; the
// surrounding InTx call does.
type Engine struct {
	db  *sqlx.DB
	tx  *sqlx.Tx
	reg *registry.Registry
	log *zap.SugaredLogger
	now func() time.Time

	// StrictFilters turns unknown filter fields into validation errors
	// instead of ignoring them.
	StrictFilters bool
}

func New(db *sqlx.DB, reg *registry.Registry, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{db: db, reg: reg, log: log, now: time.Now}
}

// Registry exposes the entity table the engine was built with.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// InTx runs fn against an engine bound to one transaction, committing when
// fn returns nil and rolling back otherwise (panics roll back and are
// rethrown). Calling InTx on a bound engine joins the open transaction.
func (e *Engine) InTx(ctx context.Context, fn func(tx *Engine) error) (err error) {
	if e.tx != nil {
		return fn(e)
	}
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin", "", err)
	}
	bound := *e
	bound.tx = tx

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.log.Warnw("rollback failed", "error", rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = classify("commit", "", cErr)
		}
	}()

	return fn(&bound)
}

func (e *Engine) ext() sqlx.ExtContext {
	if e.tx != nil {
		return e.tx
	}
	return e.db
}

func (e *Engine) lookup(op, entity string) (registry.Descriptor, error) {
	d, err := e.reg.Lookup(entity)
	if err != nil {
		return d, validationf(op, entity, "unknown entity")
	}
	return d, nil
}

func (e *Engine) fail(op string, d registry.Descriptor, err error) error {
	cerr := classify(op, d.Name, err)
	if se, ok := cerr.(*Error); ok && se.Kind == KindPersistence {
		e.log.Warnw("store operation failed", "op", op, "entity", d.Name, "error", err)
	} else {
		e.log.Debugw("store operation rejected", "op", op, "entity", d.Name, "error", cerr)
	}
	return cerr
}

func queryRecords(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]Record, error) {
	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, normalize(m))
	}
	return out, rows.Err()
}

// queryRecord returns nil without error when no row matches.
func queryRecord(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (Record, error) {
	recs, err := queryRecords(ctx, q, query, args...)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// normalize turns driver byte slices (NUMERIC, text in some drivers) into
// strings so records encode as JSON text rather than base64.
func normalize(m map[string]any) Record {
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
	return Record(m)
}
