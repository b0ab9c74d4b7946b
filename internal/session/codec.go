// Package session issues and verifies the signed, browser-held session
// token and manages the cookie that carries it.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// TTL is the lifetime of every issued token and cookie.
const TTL = 30 * 24 * time.Hour

// ErrEmptySecret is returned by NewCodec when no signing key is given.
var ErrEmptySecret = errors.New("session: empty signing secret")

// Payload is the verified content of a session token.
type Payload struct {
	UserID    string
	ExpiresAt time.Time
}

// Claims is the JWT body. ExpiresAt mirrors the caller supplied expiry for
// display; the enforced expiry is the registered exp claim.
type Claims struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with HMAC-SHA256.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, used by tests to move across expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithLogger sets the logger used to report rejected tokens.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Codec) { c.log = l }
}

// NewCodec creates a Codec for secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    TTL,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encrypt signs p. The exp claim is always now+TTL, independent of p.ExpiresAt.
func (c *Codec) Encrypt(p Payload) (string, error) {
	now := c.now()
	claims := Claims{
		UserID:    p.UserID,
		ExpiresAt: p.ExpiresAt,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decrypt verifies token and returns its payload. ok is false for blank,
// malformed, expired or foreign tokens and for tokens without a user id.
func (c *Codec) Decrypt(token string) (p Payload, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Payload{}, false
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		c.log.Debug().Err(err).Msg("session token rejected")
		return Payload{}, false
	}
	if !parsed.Valid || claims.UserID == "" {
		c.log.Debug().Msg("session token without user id")
		return Payload{}, false
	}
	return Payload{UserID: claims.UserID, ExpiresAt: claims.ExpiresAt}, true
}
