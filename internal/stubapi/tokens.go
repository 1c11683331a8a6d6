package stubapi

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hana/fieldmate/internal/stubapi/entity"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs RS256 access tokens with an in-memory key. Refresh tokens
// are opaque.
type TokenIssuer struct {
	key    *rsa.PrivateKey
	kid    string
	issuer string
	clock  clockwork.Clock
}

func NewTokenIssuer(issuer string, clock clockwork.Clock) (*TokenIssuer, error) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	// kid is a short hash of the public modulus
	h := sha256.Sum256(k.PublicKey.N.Bytes())
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	return &TokenIssuer{key: k, kid: kid, issuer: issuer, clock: clock}, nil
}

// Issue creates an access token for m valid for ttl, plus a refresh token.
func (t *TokenIssuer) Issue(m *entity.Member, ttl time.Duration) (access, refresh string, err error) {
	now := t.clock.Now()
	claims := jwt.MapClaims{
		"iss":  t.issuer,
		"sub":  strconv.FormatInt(m.ID, 10),
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
		"v":    m.Version,
		"role": m.Role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = t.kid
	access, err = tok.SignedString(t.key)
	if err != nil {
		return "", "", err
	}
	return access, uuid.NewString(), nil
}

// Parse verifies an access token and returns the member id it was issued to.
// Expired tokens fail with an error matching jwt.ErrTokenExpired.
func (t *TokenIssuer) Parse(token string) (int64, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return &t.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
