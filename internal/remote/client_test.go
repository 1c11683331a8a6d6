package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hana/fieldmate/internal/remote"
	"github.com/hana/fieldmate/internal/router"
	"github.com/hana/fieldmate/internal/stubapi"
	"github.com/hana/fieldmate/pkg/database"
)

type staticTokens struct{ access string }

func (s *staticTokens) AccessToken(context.Context) (string, error) { return s.access, nil }

type fixture struct {
	client *remote.Client
	tokens *staticTokens
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lg := zaptest.NewLogger(t).Sugar()
	clock := clockwork.NewFakeClock()

	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	issuer, err := stubapi.NewTokenIssuer("fieldmate-dev", clock)
	require.NoError(t, err)
	svc := stubapi.NewService(db, stubapi.BcryptHasher{Cost: bcrypt.MinCost}, issuer, clock, lg,
		stubapi.Config{AccessTTL: time.Hour})
	svc.NewCode = func() (string, error) { return "424242", nil }
	require.NoError(t, svc.EnsureSchema(context.Background()))

	srv := httptest.NewServer(router.RegisterRoutes(lg, stubapi.NewHandler(svc, lg)))
	t.Cleanup(srv.Close)

	tokens := &staticTokens{}
	c := remote.NewClient(remote.Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second}, tokens, lg, clock)
	return &fixture{client: c, tokens: tokens, clock: clock}
}

func TestClient_JoinRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.SendMessage(ctx, "010-1234-5678", remote.MessageJoin))
	require.NoError(t, f.client.VerifyMessage(ctx, "010-1234-5678", "424242", remote.MessageJoin))

	resp, err := f.client.Join(ctx, remote.JoinRequest{
		Name:          "Hana",
		PhoneNumber:   "010-1234-5678",
		Password:      "Abcd123!",
		PasswordCheck: "Abcd123!",
	})
	require.NoError(t, err)
	assert.NotZero(t, resp.MemberID)

	f.tokens.access = resp.AccessToken
	info, err := f.client.FetchUserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.MemberID, info.MemberID)
	assert.Equal(t, "Hana", info.Name)
	assert.Equal(t, "NONE", info.JoinCompanyStatus)

	require.NoError(t, f.client.QuitMember(ctx))
	_, err = f.client.FetchUserInfo(ctx)
	assert.ErrorIs(t, err, remote.ErrTokenExpired, "a deleted member's token is rejected with 401")
}

func TestClient_BadRequestIsClassified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.SendMessage(ctx, "010-1234-5678", remote.MessageJoin))
	err := f.client.VerifyMessage(ctx, "010-1234-5678", "000000", remote.MessageJoin)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrBadRequest)
	assert.NotErrorIs(t, err, remote.ErrTokenExpired)

	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "bad_request", apiErr.Code)
	assert.Equal(t, "verification code mismatch", apiErr.Message)
}

func TestClient_UnauthorizedIsTokenExpired(t *testing.T) {
	f := newFixture(t)
	f.tokens.access = "not-a-jwt"
	err := f.client.QuitMember(context.Background())
	assert.ErrorIs(t, err, remote.ErrTokenExpired)

	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClient_ExpiredTokenRefusedLocally(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": clock.Now().Add(time.Minute).Unix(),
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	c := remote.NewClient(remote.Config{BaseURL: srv.URL}, &staticTokens{access: signed}, nil, clock)
	require.NoError(t, c.QuitMember(context.Background()))
	assert.Equal(t, int32(1), hits.Load())

	clock.Advance(time.Minute)
	err = c.QuitMember(context.Background())
	assert.ErrorIs(t, err, remote.ErrTokenExpired)
	assert.Equal(t, int32(1), hits.Load(), "no request leaves once the token is known to be stale")
}

func TestClient_MissingTokenIsTokenExpired(t *testing.T) {
	c := remote.NewClient(remote.Config{BaseURL: "http://127.0.0.1:1"}, &staticTokens{}, nil, nil)
	_, err := c.FetchUserInfo(context.Background())
	assert.ErrorIs(t, err, remote.ErrTokenExpired)

	c = remote.NewClient(remote.Config{BaseURL: "http://127.0.0.1:1"}, nil, nil, nil)
	assert.ErrorIs(t, c.QuitMember(context.Background()), remote.ErrTokenExpired)
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "api 500", (&remote.APIError{Status: 500}).Error())
	assert.Equal(t, "api 400: nope", (&remote.APIError{Status: 400, Message: "nope"}).Error())
}
