package store

import (
	"context"
	"strings"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
)

const DefaultLimit = 100

// ListParams drives List. Search entries are OR-combined with each other
// and with Term, then AND-ed with Filters.
type ListParams struct {
	Filters map[string]any
	Search  map[string]string
	// Term is matched against the entity's searchable fields.
	Term      string
	SortField string
	SortDesc  bool
	Offset    int
	Limit     int
}

// SearchTerm builds a search over several fields with one term.
func SearchTerm(term string, fields ...string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f] = term
	}
	return out
}

func (e *Engine) filterTerms(op string, d registry.Descriptor, filters map[string]any) ([]string, []any, error) {
	if e.StrictFilters {
		for f := range filters {
			if !d.Has(f) {
				return nil, nil, validationf(op, d.Name, "unknown filter field %q", f)
			}
		}
	}
	terms, args := equalities(d.Known(filters), filters)
	return terms, args, nil
}

func searchTerm(d registry.Descriptor, p ListParams) (string, []any) {
	search := p.Search
	if p.Term != "" {
		search = make(map[string]string, len(p.Search)+len(d.Searchable))
		for k, v := range p.Search {
			search[k] = v
		}
		for _, f := range d.Searchable {
			if _, ok := search[f]; !ok {
				search[f] = p.Term
			}
		}
	}
	var ors []string
	var args []any
	for _, f := range d.Fields {
		pattern, ok := search[f]
		if !ok {
			continue
		}
		ors = append(ors, pq.QuoteIdentifier(f)+"::text LIKE ?")
		args = append(args, likePattern(pattern))
	}
	if len(ors) == 0 {
		return "", nil
	}
	return "(" + strings.Join(ors, " OR ") + ")", args
}

// List returns one page of records. Unknown filter, search and sort fields
// are ignored unless StrictFilters is set (which only affects filters).
func (e *Engine) List(ctx context.Context, entity string, p ListParams) ([]Record, error) {
	const op = "list"
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, err
	}
	terms, args, err := e.filterTerms(op, d, p.Filters)
	if err != nil {
		return nil, err
	}
	if s, sargs := searchTerm(d, p); s != "" {
		terms = append(terms, s)
		args = append(args, sargs...)
	}

	var b strings.Builder
	b.WriteString(selectFrom(d))
	b.WriteString(where(terms))
	if d.Has(p.SortField) {
		b.WriteString(" ORDER BY ")
		b.WriteString(pq.QuoteIdentifier(p.SortField))
		if p.SortDesc {
			b.WriteString(" DESC")
		}
	}
	limit, offset := p.Limit, p.Offset
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	ext := e.ext()
	recs, err := queryRecords(ctx, ext, ext.Rebind(b.String()), args...)
	if err != nil {
		return nil, e.fail(op, d, err)
	}
	return recs, nil
}

// Count returns the number of records matching filters.
func (e *Engine) Count(ctx context.Context, entity string, filters map[string]any) (int64, error) {
	const op = "count"
	d, err := e.lookup(op, entity)
	if err != nil {
		return 0, err
	}
	terms, args, err := e.filterTerms(op, d, filters)
	if err != nil {
		return 0, err
	}
	q := "SELECT COUNT(*) FROM " + pq.QuoteIdentifier(d.Table) + where(terms)
	ext := e.ext()
	var n int64
	if err := ext.QueryRowxContext(ctx, ext.Rebind(q), args...).Scan(&n); err != nil {
		return 0, e.fail(op, d, err)
	}
	return n, nil
}

// GetByField returns the first record whose field equals value, or nil
// when none does.
func (e *Engine) GetByField(ctx context.Context, entity, field string, value any) (Record, error) {
	const op = "get"
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, err
	}
	if !d.Has(field) {
		return nil, validationf(op, entity, "unknown field %q", field)
	}
	return e.findOne(ctx, op, d, map[string]any{field: value})
}

// MustGetByField is GetByField returning a not-found error instead of nil.
func (e *Engine) MustGetByField(ctx context.Context, entity, field string, value any) (Record, error) {
	rec, err := e.GetByField(ctx, entity, field, value)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound("get", entity)
	}
	return rec, nil
}

// Get looks a record up by its identifier.
func (e *Engine) Get(ctx context.Context, entity string, id any) (Record, error) {
	d, err := e.lookup("get", entity)
	if err != nil {
		return nil, err
	}
	return e.GetByField(ctx, entity, d.IDField, id)
}

// MustGet is Get returning a not-found error instead of nil.
func (e *Engine) MustGet(ctx context.Context, entity string, id any) (Record, error) {
	d, err := e.lookup("get", entity)
	if err != nil {
		return nil, err
	}
	return e.MustGetByField(ctx, entity, d.IDField, id)
}

// Exists reports whether a record with field = value exists, optionally
// ignoring the record identified by excludeID. Unknown fields never match.
func (e *Engine) Exists(ctx context.Context, entity, field string, value any, excludeID any) (bool, error) {
	const op = "exists"
	d, err := e.lookup(op, entity)
	if err != nil {
		return false, err
	}
	if !d.Has(field) {
		return false, nil
	}
	terms, args := equalities([]string{field}, map[string]any{field: value})
	if excludeID != nil {
		terms = append(terms, pq.QuoteIdentifier(d.IDField)+" <> ?")
		args = append(args, excludeID)
	}
	q := "SELECT EXISTS (SELECT 1 FROM " + pq.QuoteIdentifier(d.Table) + where(terms) + ")"
	ext := e.ext()
	var ok bool
	if err := ext.QueryRowxContext(ctx, ext.Rebind(q), args...).Scan(&ok); err != nil {
		return false, e.fail(op, d, err)
	}
	return ok, nil
}

// findOne matches every known key of match by equality.
func (e *Engine) findOne(ctx context.Context, op string, d registry.Descriptor, match map[string]any) (Record, error) {
	terms, args := equalities(d.Known(match), match)
	ext := e.ext()
	rec, err := queryRecord(ctx, ext, ext.Rebind(selectFrom(d)+where(terms)+" LIMIT 1"), args...)
	if err != nil {
		return nil, e.fail(op, d, err)
	}
	return rec, nil
}

// GetForUpdate reads a record by identifier and locks its row until the
// surrounding transaction ends. It must run on an engine bound by InTx.
func (e *Engine) GetForUpdate(ctx context.Context, entity string, id any) (Record, error) {
	const op = "get"
	d, err := e.lookup(op, entity)
	if err != nil {
		return nil, err
	}
	if e.tx == nil {
		return nil, validationf(op, entity, "row lock requires a transaction")
	}
	terms, args := equalities([]string{d.IDField}, map[string]any{d.IDField: id})
	ext := e.ext()
	rec, err := queryRecord(ctx, ext, ext.Rebind(selectFrom(d)+where(terms)+" FOR UPDATE"), args...)
	if err != nil {
		return nil, e.fail(op, d, err)
	}
	if rec == nil {
		return nil, notFound(op, entity)
	}
	return rec, nil
}
