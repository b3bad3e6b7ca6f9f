package setting

import (
	"context"
	"strings"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
)

const (
	maxKeyLength   = 100
	maxValueLength = 500
)

// Service reads and writes the settings entity through the generic engine.
type Service struct {
	engine *store.Engine
}

func NewService(engine *store.Engine) *Service {
	return &Service{engine: engine}
}

// Get returns the setting stored under key.
func (s *Service) Get(ctx context.Context, key string) (*entity.Setting, error) {
	rec, err := s.engine.MustGetByField(ctx, registry.Settings, "key", key)
	if err != nil {
		return nil, err
	}
	return entity.FromRecord(rec)
}

// Set stores value under key, creating the entry when missing. A nil
// description leaves the stored one unchanged. The bool reports creation.
func (s *Service) Set(ctx context.Context, key, value string, description *string) (*entity.Setting, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLength {
		return nil, false, store.Invalid("set", registry.Settings, "key must be 1 to %d characters", maxKeyLength)
	}
	if len(value) > maxValueLength {
		return nil, false, store.Invalid("set", registry.Settings, "value exceeds %d characters", maxValueLength)
	}
	update := map[string]any{"value": value}
	if description != nil {
		update["description"] = *description
	}
	rec, created, err := s.engine.UpdateOrCreate(ctx, registry.Settings, map[string]any{"key": key}, update)
	if err != nil {
		return nil, false, err
	}
	st, err := entity.FromRecord(rec)
	return st, created, err
}
