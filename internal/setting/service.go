package setting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jonboulle/clockwork"

	"github.com/hana/fieldmate/internal/setting/entity"
	"github.com/hana/fieldmate/internal/setting/repo"
)

// Service is the typed key/value view over the settings table. Missing keys
// read as the zero value.
type Service struct {
	repo  *repo.Repo
	clock clockwork.Clock
}

// NewService constructs a Service with the provided repository.
func NewService(r *repo.Repo, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: r, clock: clock}
}

// sentinel errors for common failure modes
var (
	ErrNotFound = errors.New("not found")
	ErrEmptyKey = errors.New("key is required")
)

// Get returns a setting by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Setting, error) {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

// String returns the value stored under key, or "" when absent.
func (s *Service) String(ctx context.Context, key string) (string, error) {
	st, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return st.Value, nil
}

// SetString stores value under key in category.
func (s *Service) SetString(ctx context.Context, category, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	st := entity.NewSetting(key, category, value, s.clock.Now().UnixMilli())
	if err := s.repo.Put(ctx, st); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Int64 returns the integer stored under key, or 0 when absent.
func (s *Service) Int64(ctx context.Context, key string) (int64, error) {
	v, err := s.String(ctx, key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return n, nil
}

// SetInt64 stores v under key in category.
func (s *Service) SetInt64(ctx context.Context, category, key string, v int64) error {
	return s.SetString(ctx, category, key, strconv.FormatInt(v, 10))
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	_, err := s.repo.Delete(ctx, key)
	return err
}

// ClearCategory removes every key in category.
func (s *Service) ClearCategory(ctx context.Context, category string) error {
	_, err := s.repo.DeleteCategory(ctx, category)
	return err
}

// List returns every setting in category.
func (s *Service) List(ctx context.Context, category string) ([]*entity.Setting, error) {
	return s.repo.List(ctx, category)
}
