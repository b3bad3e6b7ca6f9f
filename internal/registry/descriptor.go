// Package registry holds the Entity Descriptors that drive the generic
// query and mutation engines. A descriptor is plain data: the engines look
// columns up by name instead of reflecting over Go types.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrInvalidDescriptor = errors.New("invalid entity descriptor")
	ErrInvariant         = errors.New("invariant violated")
)

// Check is a cross-field invariant of the form Field >= AtLeast.
type Check struct {
	Field   string
	AtLeast string
}

// Descriptor describes one manageable entity.
type Descriptor struct {
	Name            string
	Table           string
	IDField         string
	SoftDeleteField string // empty means the entity only supports hard delete
	Fields          []string
	Searchable      []string
	Immutable       []string
	// Generated fills a column on create when the caller left it out.
	Generated      map[string]func() any
	UpdatedAtField string
	NonNegative    []string
	Checks         []Check
	// Protected columns are stripped from client input at the HTTP boundary.
	Protected []string
	// Hidden columns are never written to HTTP responses.
	Hidden    []string
	AdminOnly bool
	// ReadOnly entities are written by services only; the HTTP boundary
	// serves reads.
	ReadOnly bool
	// SoftOnly refuses hard deletes at the HTTP boundary.
	SoftOnly bool
}

// Has reports whether field is a persisted column of the entity.
func (d Descriptor) Has(field string) bool {
	return field != "" && slices.Contains(d.Fields, field)
}

// HasSoftDelete reports whether soft delete is available for field.
func (d Descriptor) HasSoftDelete(field string) bool {
	return field != "" && d.Has(field)
}

func (d Descriptor) IsImmutable(field string) bool {
	return field == d.IDField || slices.Contains(d.Immutable, field)
}

func (d Descriptor) IsProtected(field string) bool {
	return slices.Contains(d.Protected, field)
}

func (d Descriptor) IsHidden(field string) bool {
	return slices.Contains(d.Hidden, field)
}

// Known keeps only the entries of fields that name a column, in
// declaration order. The returned slice holds the column names.
func (d Descriptor) Known(fields map[string]any) []string {
	out := make([]string, 0, len(fields))
	for _, f := range d.Fields {
		if _, ok := fields[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Writable is Known minus the identifier and immutable columns.
func (d Descriptor) Writable(fields map[string]any) []string {
	out := make([]string, 0, len(fields))
	for _, f := range d.Known(fields) {
		if !d.IsImmutable(f) {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks the monetary and quantity invariants against a complete
// (or merged) record. Absent or null values are not checked.
func (d Descriptor) Validate(rec map[string]any) error {
	for _, f := range d.NonNegative {
		v, ok, err := decimalOf(rec[f])
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvariant, f, err)
		}
		if ok && v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvariant, f)
		}
	}
	for _, c := range d.Checks {
		a, okA, errA := decimalOf(rec[c.Field])
		b, okB, errB := decimalOf(rec[c.AtLeast])
		if errA != nil || errB != nil {
			return fmt.Errorf("%w: %s/%s are not numeric", ErrInvariant, c.Field, c.AtLeast)
		}
		if okA && okB && a.LessThan(b) {
			return fmt.Errorf("%w: %s must be greater than or equal to %s", ErrInvariant, c.Field, c.AtLeast)
		}
	}
	return nil
}

// Touches reports whether any of fields participates in an invariant.
func (d Descriptor) Touches(fields []string) bool {
	for _, f := range fields {
		if slices.Contains(d.NonNegative, f) {
			return true
		}
		for _, c := range d.Checks {
			if c.Field == f || c.AtLeast == f {
				return true
			}
		}
	}
	return false
}

func (d Descriptor) validate() error {
	if d.Name == "" || d.Table == "" {
		return fmt.Errorf("%w: name and table are required", ErrInvalidDescriptor)
	}
	if !d.Has(d.IDField) {
		return fmt.Errorf("%w: %s: id field %q is not a column", ErrInvalidDescriptor, d.Name, d.IDField)
	}
	if d.SoftDeleteField != "" && !d.Has(d.SoftDeleteField) {
		return fmt.Errorf("%w: %s: soft delete field %q is not a column", ErrInvalidDescriptor, d.Name, d.SoftDeleteField)
	}
	if d.UpdatedAtField != "" && !d.Has(d.UpdatedAtField) {
		return fmt.Errorf("%w: %s: updated-at field %q is not a column", ErrInvalidDescriptor, d.Name, d.UpdatedAtField)
	}
	groups := [][]string{d.Searchable, d.Immutable, d.NonNegative, d.Protected, d.Hidden}
	for _, g := range groups {
		for _, f := range g {
			if !d.Has(f) {
				return fmt.Errorf("%w: %s: %q is not a column", ErrInvalidDescriptor, d.Name, f)
			}
		}
	}
	for f := range d.Generated {
		if !d.Has(f) {
			return fmt.Errorf("%w: %s: generated %q is not a column", ErrInvalidDescriptor, d.Name, f)
		}
	}
	for _, c := range d.Checks {
		if !d.Has(c.Field) || !d.Has(c.AtLeast) {
			return fmt.Errorf("%w: %s: check %s>=%s names unknown columns", ErrInvalidDescriptor, d.Name, c.Field, c.AtLeast)
		}
	}
	return nil
}

// decimalOf converts the value shapes seen in records (JSON numbers, driver
// strings and byte slices for NUMERIC, Go integers) to a decimal.
func decimalOf(v any) (decimal.Decimal, bool, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false, nil
	case decimal.Decimal:
		return x, true, nil
	case float64:
		return decimal.NewFromFloat(x), true, nil
	case float32:
		return decimal.NewFromFloat32(x), true, nil
	case int:
		return decimal.NewFromInt(int64(x)), true, nil
	case int32:
		return decimal.NewFromInt32(x), true, nil
	case int64:
		return decimal.NewFromInt(x), true, nil
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil, err
	case []byte:
		d, err := decimal.NewFromString(string(x))
		return d, err == nil, err
	case fmt.Stringer:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil, err
	default:
		return decimal.Zero, false, fmt.Errorf("unsupported numeric value %T", v)
	}
}
