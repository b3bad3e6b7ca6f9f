package registry

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_AllEntitiesValid(t *testing.T) {
	r := Default()
	names := r.Names()
	assert.Len(t, names, 16)
	assert.Equal(t, Roles, names[0])

	for _, n := range names {
		d, err := r.Lookup(n)
		require.NoError(t, err, n)
		assert.True(t, d.Has(d.IDField), n)
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Default().Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestRegister_RejectsBadDescriptors(t *testing.T) {
	cases := map[string]Descriptor{
		"missing id":      {Name: "x", Table: "x", IDField: "id", Fields: []string{"name"}},
		"bad soft field":  {Name: "x", Table: "x", IDField: "id", SoftDeleteField: "active", Fields: []string{"id"}},
		"bad searchable":  {Name: "x", Table: "x", IDField: "id", Fields: []string{"id"}, Searchable: []string{"name"}},
		"bad check":       {Name: "x", Table: "x", IDField: "id", Fields: []string{"id"}, Checks: []Check{{Field: "a", AtLeast: "b"}}},
		"missing table":   {Name: "x", IDField: "id", Fields: []string{"id"}},
		"bad generated":   {Name: "x", Table: "x", IDField: "id", Fields: []string{"id"}, Generated: map[string]func() any{"n": nil}},
		"bad updated at":  {Name: "x", Table: "x", IDField: "id", Fields: []string{"id"}, UpdatedAtField: "updated_at"},
		"bad hidden list": {Name: "x", Table: "x", IDField: "id", Fields: []string{"id"}, Hidden: []string{"secret"}},
	}
	for name, d := range cases {
		_, err := New(d)
		assert.ErrorIs(t, err, ErrInvalidDescriptor, name)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	d := Descriptor{Name: "x", Table: "x", IDField: "id", Fields: []string{"id"}}
	_, err := New(d, d)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestKnownAndWritable(t *testing.T) {
	d, err := Default().Lookup(Products)
	require.NoError(t, err)

	in := map[string]any{"name": "Rice", "id": 9, "created_at": "x", "NonexistentField": "x", "sale_price": 2}
	assert.Equal(t, []string{"id", "name", "sale_price", "created_at"}, d.Known(in))
	assert.Equal(t, []string{"name", "sale_price"}, d.Writable(in))
}

func TestValidate_PriceInvariant(t *testing.T) {
	d, err := Default().Lookup(Products)
	require.NoError(t, err)

	err = d.Validate(map[string]any{"cost_price": 10.00, "sale_price": 9.00})
	assert.ErrorIs(t, err, ErrInvariant)

	assert.NoError(t, d.Validate(map[string]any{"cost_price": 10.00, "sale_price": 10.00}))
	// NUMERIC columns come back from the driver as text
	assert.NoError(t, d.Validate(map[string]any{"cost_price": "10.00", "sale_price": []byte("10.50")}))
	assert.ErrorIs(t, d.Validate(map[string]any{"cost_price": "10.00", "sale_price": "9.999"}), ErrInvariant)
	// one side missing: nothing to compare
	assert.NoError(t, d.Validate(map[string]any{"sale_price": 1}))
}

func TestValidate_NonNegative(t *testing.T) {
	d, err := Default().Lookup(Products)
	require.NoError(t, err)

	err = d.Validate(map[string]any{"stock": int64(-1)})
	require.ErrorIs(t, err, ErrInvariant)
	assert.True(t, strings.Contains(err.Error(), "stock"))

	assert.NoError(t, d.Validate(map[string]any{"stock": json.Number("0"), "max_stock": nil}))
	assert.ErrorIs(t, d.Validate(map[string]any{"stock": "abc"}), ErrInvariant)
	assert.NoError(t, d.Validate(map[string]any{"cost_price": decimal.RequireFromString("0.01")}))
}

func TestTouches(t *testing.T) {
	d, err := Default().Lookup(Products)
	require.NoError(t, err)
	assert.True(t, d.Touches([]string{"name", "cost_price"}))
	assert.False(t, d.Touches([]string{"name", "barcode"}))
}

func TestGeneratedDocumentNumbers(t *testing.T) {
	d, err := Default().Lookup(Sales)
	require.NoError(t, err)
	n, ok := d.Generated["number"]().(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(n, "SAL-"))
}

func TestUsersProtectedAndHidden(t *testing.T) {
	d, err := Default().Lookup(Users)
	require.NoError(t, err)
	assert.True(t, d.IsProtected("password_hash"))
	assert.True(t, d.IsProtected("locked"))
	assert.True(t, d.IsHidden("password_hash"))
	assert.False(t, d.IsProtected("full_name"))
	assert.True(t, d.AdminOnly)
	assert.True(t, d.IsImmutable("id"))
}
