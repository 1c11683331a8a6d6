// Package stubapi is a development implementation of the FieldMate API. It
// keeps members in SQL, verification codes in memory, and logs every code it
// "sends" instead of texting it.
package stubapi

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hana/fieldmate/internal/stubapi/entity"
	"github.com/hana/fieldmate/internal/stubapi/repo"
	"github.com/hana/fieldmate/internal/validation"
)

// PasswordHasher defines minimal hashing interface.
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPhoneTaken       = errors.New("phone number already registered")
	ErrPhoneNotVerified = errors.New("phone number not verified")
	ErrCodeNotRequested = errors.New("no verification code requested")
	ErrCodeExpired      = errors.New("verification code expired")
	ErrCodeMismatch     = errors.New("verification code mismatch")
	ErrMemberNotFound   = errors.New("member not found")
)

// Config for the dev API.
type Config struct {
	Addr       string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration
}

// ConfigFromEnv reads DEVAPI_ADDR and DEVAPI_ACCESS_TTL.
func ConfigFromEnv() Config {
	cfg := Config{Addr: ":8431", AccessTTL: time.Hour, RefreshTTL: 30 * 24 * time.Hour, CodeTTL: 3 * time.Minute}
	if v := os.Getenv("DEVAPI_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DEVAPI_ACCESS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AccessTTL = d
		}
	}
	return cfg
}

// Session is what a successful join hands back.
type Session struct {
	MemberID     int64
	AccessToken  string
	RefreshToken string
}

type pendingCode struct {
	code     string
	typ      string
	expires  time.Time
	verified bool
}

// Service implements join, phone verification and member lookups.
type Service struct {
	repo    *repo.MemberRepo
	refresh *repo.RefreshRepo
	hasher  PasswordHasher
	tokens  *TokenIssuer
	clock   clockwork.Clock
	logger  *zap.SugaredLogger
	cfg     Config

	// NewCode generates verification codes; tests replace it.
	NewCode func() (string, error)

	mu    sync.Mutex
	codes map[string]*pendingCode // keyed by digits-only phone
}

func NewService(db *sqlx.DB, hasher PasswordHasher, tokens *TokenIssuer, clock clockwork.Clock, logger *zap.SugaredLogger, cfg Config) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 3 * time.Minute
	}
	return &Service{
		repo:    repo.NewMemberRepo(db),
		refresh: repo.NewRefreshRepo(db),
		hasher:  hasher,
		tokens:  tokens,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
		NewCode: randomCode,
		codes:   make(map[string]*pendingCode),
	}
}

// EnsureSchema creates the members and refresh_sessions tables.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if err := s.repo.EnsureTable(ctx); err != nil {
		return err
	}
	return s.refresh.EnsureTable(ctx)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// normalizePhone drops the optional dashes so "010-1234-5678" and
// "01012345678" name the same member.
func normalizePhone(phone string) string {
	return strings.ReplaceAll(strings.TrimSpace(phone), "-", "")
}

// SendMessage issues a fresh code for phone, replacing any earlier one.
func (s *Service) SendMessage(ctx context.Context, phone, typ string) error {
	if !validation.PhoneValid(phone) {
		return fmt.Errorf("%w: phone number", ErrInvalidInput)
	}
	key := normalizePhone(phone)
	if typ == "JOIN" {
		if _, err := s.repo.GetByPhone(ctx, key); err == nil {
			return ErrPhoneTaken
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	code, err := s.NewCode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.codes[key] = &pendingCode{code: code, typ: typ, expires: s.clock.Now().Add(s.cfg.CodeTTL)}
	s.mu.Unlock()
	s.logger.Infow("verification code issued", "phone", key, "type", typ, "code", code)
	return nil
}

// VerifyMessage checks code against the one last issued for phone.
func (s *Service) VerifyMessage(_ context.Context, phone, code, typ string) error {
	key := normalizePhone(phone)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.codes[key]
	if !ok || p.typ != typ {
		return ErrCodeNotRequested
	}
	if !s.clock.Now().Before(p.expires) {
		return ErrCodeExpired
	}
	if strings.TrimSpace(code) != p.code {
		return ErrCodeMismatch
	}
	p.verified = true
	return nil
}

// Join registers a member whose phone was verified and signs them in.
func (s *Service) Join(ctx context.Context, name, phone, password, passwordCheck string) (*Session, error) {
	if !validation.NameValid(strings.TrimSpace(name)) || !validation.PhoneValid(phone) {
		return nil, fmt.Errorf("%w: name or phone number", ErrInvalidInput)
	}
	if !validation.AllPassed(validation.PasswordChecks(password)) || password != passwordCheck {
		return nil, fmt.Errorf("%w: password", ErrInvalidInput)
	}
	key := normalizePhone(phone)
	s.mu.Lock()
	p, ok := s.codes[key]
	verified := ok && p.verified && p.typ == "JOIN"
	s.mu.Unlock()
	if !verified {
		return nil, ErrPhoneNotVerified
	}

	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	m := &entity.Member{
		Name:              strings.TrimSpace(name),
		PhoneNumber:       key,
		PasswordHash:      hash,
		PasswordAlgo:      algo,
		JoinCompanyStatus: entity.StatusNone,
		Role:              entity.RoleMember,
		Version:           1,
		CreatedAt:         s.clock.Now().UnixMilli(),
	}
	if _, err := s.repo.Create(ctx, m); err != nil {
		if _, lookupErr := s.repo.GetByPhone(ctx, key); lookupErr == nil {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}
	s.mu.Lock()
	delete(s.codes, key)
	s.mu.Unlock()

	access, refresh, err := s.tokens.Issue(m, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	expires := s.clock.Now().Add(s.cfg.RefreshTTL).UnixMilli()
	if err := s.refresh.Save(ctx, refresh, m.ID, expires); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	s.logger.Infow("member joined", "member_id", m.ID)
	return &Session{MemberID: m.ID, AccessToken: access, RefreshToken: refresh}, nil
}

// Member resolves the member an access token was issued to.
func (s *Service) Member(ctx context.Context, token string) (*entity.Member, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

// Quit deletes the member behind token.
func (s *Service) Quit(ctx context.Context, token string) error {
	m, err := s.Member(ctx, token)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, m.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMemberNotFound
	}
	revoked, err := s.refresh.DeleteByMember(ctx, m.ID)
	if err != nil {
		s.logger.Warnw("revoke refresh tokens failed", "member_id", m.ID, "err", err)
	}
	s.logger.Infow("member quit", "member_id", m.ID, "revoked", revoked)
	return nil
}
