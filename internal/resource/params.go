package resource

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page clamps the offset and limit query parameters: offset >= 0, limit
// defaults to DefaultLimit and never exceeds MaxLimit.
func Page(q url.Values) (offset, limit int) {
	offset, _ = strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

// Filters collects filter.<field>=value parameters. The value "null"
// matches a missing value. Hidden fields are dropped.
func Filters(d registry.Descriptor, q url.Values) map[string]any {
	out := map[string]any{}
	for k, vs := range q {
		f, ok := strings.CutPrefix(k, "filter.")
		if !ok || len(vs) == 0 || d.IsHidden(f) {
			continue
		}
		if vs[0] == "null" {
			out[f] = nil
			continue
		}
		out[f] = vs[0]
	}
	return out
}

// ListParams reads filters, search terms, sort order and paging from q.
func ListParams(d registry.Descriptor, q url.Values) store.ListParams {
	p := store.ListParams{Filters: Filters(d, q), Term: strings.TrimSpace(q.Get("q"))}
	for k, vs := range q {
		f, ok := strings.CutPrefix(k, "search.")
		if !ok || len(vs) == 0 || vs[0] == "" || d.IsHidden(f) {
			continue
		}
		if p.Search == nil {
			p.Search = map[string]string{}
		}
		p.Search[f] = vs[0]
	}
	if s := q.Get("sort"); !d.IsHidden(s) {
		p.SortField = s
	}
	p.SortDesc, _ = strconv.ParseBool(q.Get("desc"))
	p.Offset, p.Limit = Page(q)
	return p
}

// ParseID keeps numeric identifiers numeric; anything else (KSUIDs) stays
// a string.
func ParseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// Input drops protected columns from client input and rejects values
// that are not scalars (JSON objects and arrays).
func Input(d registry.Descriptor, in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if d.IsProtected(k) {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, store.Invalid("write", d.Name, "field %q must be a scalar value", k)
		}
		out[k] = v
	}
	return out, nil
}

// Output removes hidden columns from a record before it is encoded.
func Output(d registry.Descriptor, rec store.Record) store.Record {
	if len(d.Hidden) == 0 || rec == nil {
		return rec
	}
	out := rec.Clone()
	for _, f := range d.Hidden {
		delete(out, f)
	}
	return out
}
