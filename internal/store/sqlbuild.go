package store

import (
	"strings"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
)

// Identifiers only ever come from descriptors and are always quoted;
// values are always bound with ? placeholders and rebound for the driver.

func columns(fields []string) string {
	q := make([]string, len(fields))
	for i, f := range fields {
		q[i] = pq.QuoteIdentifier(f)
	}
	return strings.Join(q, ", ")
}

func selectFrom(d registry.Descriptor) string {
	return "SELECT " + columns(d.Fields) + " FROM " + pq.QuoteIdentifier(d.Table)
}

func returning(d registry.Descriptor) string {
	return " RETURNING " + columns(d.Fields)
}

// equalities builds "col = ?" terms for fields in the given order.
// A nil value compares with IS NULL.
func equalities(fields []string, values map[string]any) ([]string, []any) {
	terms := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		v := values[f]
		if v == nil {
			terms = append(terms, pq.QuoteIdentifier(f)+" IS NULL")
			continue
		}
		terms = append(terms, pq.QuoteIdentifier(f)+" = ?")
		args = append(args, v)
	}
	return terms, args
}

func assignments(fields []string, values map[string]any) ([]string, []any) {
	terms := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		terms[i] = pq.QuoteIdentifier(f) + " = ?"
		args[i] = values[f]
	}
	return terms, args
}

func where(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(terms, " AND ")
}

// likePattern wraps term for a substring LIKE, escaping the LIKE
// metacharacters so the term matches literally. Backslash is the default
// LIKE escape character in Postgres.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
