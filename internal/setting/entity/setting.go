package entity

import (
	"fmt"
	"time"
)

// Setting is one key/value system configuration entry.
type Setting struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Value       *string   `json:"value"`
	Description *string   `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromRecord converts a settings row read by the generic engine.
func FromRecord(rec map[string]any) (*Setting, error) {
	s := &Setting{}
	switch id := rec["id"].(type) {
	case int64:
		s.ID = id
	case int:
		s.ID = int64(id)
	default:
		return nil, fmt.Errorf("setting id: unexpected type %T", rec["id"])
	}
	s.Key, _ = rec["key"].(string)
	s.Value = optString(rec["value"])
	s.Description = optString(rec["description"])
	s.UpdatedAt, _ = rec["updated_at"].(time.Time)
	return s, nil
}

func optString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
