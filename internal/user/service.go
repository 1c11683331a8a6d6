package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hana/fieldmate/internal/setting"
	settingentity "github.com/hana/fieldmate/internal/setting/entity"
	"github.com/hana/fieldmate/internal/user/entity"
)

// Persisted keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserInfo     = "user_info"
)

var ErrNoSession = errors.New("no cached user")

// SessionService keeps the session tokens and the cached profile in the
// settings store.
type SessionService struct {
	settings *setting.Service
}

func NewSessionService(settings *setting.Service) *SessionService {
	return &SessionService{settings: settings}
}

// SaveTokens stores both tokens.
func (s *SessionService) SaveTokens(ctx context.Context, t entity.Tokens) error {
	if err := s.settings.SetString(ctx, settingentity.CategorySession, KeyAccessToken, t.Access); err != nil {
		return err
	}
	return s.settings.SetString(ctx, settingentity.CategorySession, KeyRefreshToken, t.Refresh)
}

// AccessToken returns the stored access token or "".
func (s *SessionService) AccessToken(ctx context.Context) (string, error) {
	return s.settings.String(ctx, KeyAccessToken)
}

// RefreshToken returns the stored refresh token or "".
func (s *SessionService) RefreshToken(ctx context.Context) (string, error) {
	return s.settings.String(ctx, KeyRefreshToken)
}

// SaveUserInfo caches the profile.
func (s *SessionService) SaveUserInfo(ctx context.Context, u *entity.UserInfo) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user info: %w", err)
	}
	return s.settings.SetString(ctx, settingentity.CategoryProfile, KeyUserInfo, string(b))
}

// UserInfo returns the cached profile or ErrNoSession.
func (s *SessionService) UserInfo(ctx context.Context) (*entity.UserInfo, error) {
	raw, err := s.settings.String(ctx, KeyUserInfo)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrNoSession
	}
	var u entity.UserInfo
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &u, nil
}

// Clear drops tokens and the cached profile. Attempt counters are kept.
func (s *SessionService) Clear(ctx context.Context) error {
	if err := s.settings.ClearCategory(ctx, settingentity.CategorySession); err != nil {
		return err
	}
	return s.settings.ClearCategory(ctx, settingentity.CategoryProfile)
}
