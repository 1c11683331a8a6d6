// Package remote is the HTTP client for the FieldMate API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hana/fieldmate/internal/user/entity"
	"github.com/hana/fieldmate/pkg/utilities"
)

// API paths.
const (
	PathJoin          = "/api/v1/join"
	PathSendMessage   = "/api/v1/message/send"
	PathVerifyMessage = "/api/v1/message/verify"
	PathMember        = "/api/v1/member/me"
)

// MessageType tells the API why a verification code is requested.
type MessageType string

const (
	MessageJoin          MessageType = "JOIN"
	MessageResetPassword MessageType = "RESET_PASSWORD"
)

type JoinRequest struct {
	Name          string `json:"name"`
	PhoneNumber   string `json:"phoneNumber"`
	Password      string `json:"password"`
	PasswordCheck string `json:"passwordCheck"`
}

type JoinResponse struct {
	MemberID     int64  `json:"memberId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type SendMessageRequest struct {
	PhoneNumber string      `json:"phoneNumber"`
	MessageType MessageType `json:"messageType"`
}

type VerifyMessageRequest struct {
	PhoneNumber          string      `json:"phoneNumber"`
	AuthenticationNumber string      `json:"authenticationNumber"`
	MessageType          MessageType `json:"messageType"`
}

// TokenSource supplies the access token for authenticated calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// ConfigFromEnv reads FIELDMATE_API_URL and FIELDMATE_API_TIMEOUT.
func ConfigFromEnv() Config {
	base := os.Getenv("FIELDMATE_API_URL")
	if base == "" {
		base = "http://localhost:8431"
	}
	timeout := 10 * time.Second
	if v := os.Getenv("FIELDMATE_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}
	return Config{BaseURL: base, Timeout: timeout}
}

// Client calls the API. Each method is one request; nothing is retried.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	logger *zap.SugaredLogger
	clock  clockwork.Clock
}

func NewClient(cfg Config, tokens TokenSource, logger *zap.SugaredLogger, clock clockwork.Clock) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		logger: logger,
		clock:  clock,
	}
}

func (c *Client) Join(ctx context.Context, req JoinRequest) (*JoinResponse, error) {
	var out JoinResponse
	if err := c.do(ctx, http.MethodPost, PathJoin, false, req, &out); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	return &out, nil
}

func (c *Client) SendMessage(ctx context.Context, phone string, typ MessageType) error {
	req := SendMessageRequest{PhoneNumber: phone, MessageType: typ}
	if err := c.do(ctx, http.MethodPost, PathSendMessage, false, req, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) VerifyMessage(ctx context.Context, phone, code string, typ MessageType) error {
	req := VerifyMessageRequest{PhoneNumber: phone, AuthenticationNumber: code, MessageType: typ}
	if err := c.do(ctx, http.MethodPost, PathVerifyMessage, false, req, nil); err != nil {
		return fmt.Errorf("verify message: %w", err)
	}
	return nil
}

func (c *Client) FetchUserInfo(ctx context.Context) (*entity.UserInfo, error) {
	var out entity.UserInfo
	if err := c.do(ctx, http.MethodGet, PathMember, true, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	return &out, nil
}

func (c *Client) QuitMember(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, PathMember, true, nil, nil); err != nil {
		return fmt.Errorf("quit member: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := utilities.NewSnowflakeID()
	req.Header.Set("X-Request-Id", requestID)

	if auth {
		token, err := c.bearer(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debugw("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// bearer returns the stored access token, refusing one whose exp claim has
// already passed so the caller can route to re-authentication without a
// round trip. The signature is the server's business.
func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", ErrTokenExpired
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrTokenExpired
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// opaque token; let the server judge it
		return token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && !c.clock.Now().Before(exp.Time) {
		return "", ErrTokenExpired
	}
	return token, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	} else if s := strings.TrimSpace(string(raw)); s != "" {
		apiErr.Message = s
	}
	return apiErr
}
