package router

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hana/fieldmate/internal/remote"
	"github.com/hana/fieldmate/internal/stubapi"
	"github.com/hana/fieldmate/pkg/database"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	lg := zaptest.NewLogger(t).Sugar()
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tokens, err := stubapi.NewTokenIssuer("router-test", nil)
	require.NoError(t, err)
	svc := stubapi.NewService(db, stubapi.BcryptHasher{Cost: bcrypt.MinCost}, tokens, nil, lg, stubapi.Config{})
	require.NoError(t, svc.EnsureSchema(context.Background()))
	return RegisterRoutes(lg, stubapi.NewHandler(svc, lg))
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestHSTSOnlyOverTLS(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestRoutes(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		auth   string
		status int
		code   string
	}{
		{"method not allowed", http.MethodGet, remote.PathJoin, nil, "", http.StatusMethodNotAllowed, ""},
		{"join unverified", http.MethodPost, remote.PathJoin,
			remote.JoinRequest{Name: "Hana", PhoneNumber: "010-1234-5678", Password: "Abcd123!", PasswordCheck: "Abcd123!"},
			"", http.StatusBadRequest, "bad_request"},
		{"send bad phone", http.MethodPost, remote.PathSendMessage,
			remote.SendMessageRequest{PhoneNumber: "123", MessageType: remote.MessageJoin}, "", http.StatusBadRequest, "bad_request"},
		{"send ok", http.MethodPost, remote.PathSendMessage,
			remote.SendMessageRequest{PhoneNumber: "010-1234-5678", MessageType: remote.MessageJoin}, "", http.StatusNoContent, ""},
		{"verify wrong code", http.MethodPost, remote.PathVerifyMessage,
			remote.VerifyMessageRequest{PhoneNumber: "010-1234-5678", AuthenticationNumber: "x", MessageType: remote.MessageJoin},
			"", http.StatusBadRequest, "bad_request"},
		{"me without token", http.MethodGet, remote.PathMember, nil, "", http.StatusUnauthorized, "unauthorized"},
		{"quit bad token", http.MethodDelete, remote.PathMember, nil, "Bearer nope", http.StatusUnauthorized, "unauthorized"},
		{"unknown", http.MethodGet, "/api/v1/nothing", nil, "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body bytes.Buffer
			if tt.body != nil {
				require.NoError(t, json.NewEncoder(&body).Encode(tt.body))
			}
			req := httptest.NewRequest(tt.method, tt.path, &body)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				var eb remote.ErrorBody
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&eb))
				assert.Equal(t, tt.code, eb.Error)
				assert.NotEmpty(t, eb.Message)
			}
		})
	}
}

func TestInvalidPayload(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, remote.PathJoin, bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_payload","message":"invalid payload"}`, rec.Body.String())
}
