package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence error")
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Conflict reasons.
const (
	ReasonDuplicate  = "duplicate"
	ReasonReferenced = "referenced"
)

// Error is the only error type the engines return. Driver errors are kept
// in Err for logging but never returned bare.
type Error struct {
	Kind   Kind
	Reason string // conflicts only; empty for a generic conflict
	Entity string
	Op     string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Entity != "" {
		b.WriteString(" ")
		b.WriteString(e.Entity)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil && e.Kind == KindPersistence {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPersistence:
		return e.Kind == KindPersistence
	}
	return false
}

// IsDuplicate reports a uniqueness conflict.
func IsDuplicate(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindConflict && se.Reason == ReasonDuplicate
}

func validationf(op, entity, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

func notFound(op, entity string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Entity: entity, Msg: "record not found"}
}

// classify maps a driver error onto the taxonomy. Errors that already are
// *Error pass through unchanged.
func classify(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return &Error{Kind: KindConflict, Reason: ReasonDuplicate, Op: op, Entity: entity,
				Msg: "a record with the same unique values already exists", Err: err}
		case pqErr.Code == "23503":
			if op == "delete" || op == "bulk_delete" {
				return &Error{Kind: KindConflict, Reason: ReasonReferenced, Op: op, Entity: entity,
					Msg: "record is referenced by other records", Err: err}
			}
			return &Error{Kind: KindConflict, Reason: ReasonReferenced, Op: op, Entity: entity,
				Msg: "record references data that does not exist", Err: err}
		case pqErr.Code.Class() == "23":
			return &Error{Kind: KindConflict, Op: op, Entity: entity,
				Msg: "integrity constraint violated: " + pqErr.Message, Err: err}
		case pqErr.Code.Class() == "22":
			return &Error{Kind: KindValidation, Op: op, Entity: entity,
				Msg: "invalid value: " + pqErr.Message, Err: err}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindPersistence, Op: op, Entity: entity, Msg: "operation aborted", Err: err}
	}
	return &Error{Kind: KindPersistence, Op: op, Entity: entity, Msg: "store failure", Err: err}
}

// Classify maps a driver error raised outside the engines (hand-written
// repositories) onto the same taxonomy.
func Classify(op, entity string, err error) error {
	return classify(op, entity, err)
}

// Invalid builds a validation error for callers layering rules on top of
// the engines.
func Invalid(op, entity, format string, args ...any) *Error {
	return validationf(op, entity, format, args...)
}
