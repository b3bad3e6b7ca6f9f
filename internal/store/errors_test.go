package store

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		op     string
		err    error
		want   error
		reason string
	}{
		{"unique", "create", &pq.Error{Code: "23505"}, ErrConflict, ReasonDuplicate},
		{"fk on delete", "delete", &pq.Error{Code: "23503"}, ErrConflict, ReasonReferenced},
		{"fk on create", "create", &pq.Error{Code: "23503"}, ErrConflict, ReasonReferenced},
		{"check", "update", &pq.Error{Code: "23514", Message: "products_price_margin"}, ErrConflict, ""},
		{"bad input", "list", &pq.Error{Code: "22P02"}, ErrValidation, ""},
		{"other pq", "list", &pq.Error{Code: "57014"}, ErrPersistence, ""},
		{"plain", "list", errors.New("eof"), ErrPersistence, ""},
		{"cancelled", "list", context.Canceled, ErrPersistence, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(tc.op, "products", tc.err)
			assert.ErrorIs(t, err, tc.want)
			var se *Error
			if assert.ErrorAs(t, err, &se) {
				assert.Equal(t, tc.reason, se.Reason)
				assert.Equal(t, "products", se.Entity)
			}
		})
	}
}

func TestClassify_PassesThroughTypedErrors(t *testing.T) {
	in := notFound("get", "products")
	assert.Same(t, in, classify("update", "x", in))
	assert.Nil(t, classify("x", "y", nil))
}

func TestError_Message(t *testing.T) {
	err := classify("list", "products", errors.New("connection refused"))
	assert.Equal(t, "list products: store failure: connection refused", err.Error())

	err = classify("create", "products", &pq.Error{Code: "23505", Message: "secret constraint detail"})
	assert.NotContains(t, err.Error(), "secret")
	assert.Equal(t, "conflict", KindConflict.String())
}
