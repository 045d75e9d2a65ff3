// internal/auth/session.go
package auth

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jason-s-yu/arcade/internal/models"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "session"

// ErrNoSession is returned when a request carries no usable session.
var ErrNoSession = errors.New("no session")

type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Sessions issues and reads signed session cookies. The token binds a user id
// (sub) and username; nothing is kept server side, so logout only clears the
// cookie.
type Sessions struct {
	method    jwt.SigningMethod
	signKey   crypto.PrivateKey
	verifyKey crypto.PublicKey

	// TTL of zero issues tokens without expiry and browser-session cookies.
	TTL    time.Duration
	Secure bool
}

// NewSessions signs with HMAC-SHA256 when secret is set. Without a secret a
// fresh ed25519 key pair is generated, which invalidates every session on
// restart.
func NewSessions(secret string, ttl time.Duration, secure bool) (*Sessions, error) {
	s := &Sessions{TTL: ttl, Secure: secure}
	if secret != "" {
		s.method = jwt.SigningMethodHS256
		s.signKey = []byte(secret)
		s.verifyKey = []byte(secret)
		return s, nil
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	s.method = jwt.SigningMethodEdDSA
	s.signKey = priv
	s.verifyKey = pub
	return s, nil
}

// Issue creates a signed token for id.
func (s *Sessions) Issue(id models.Identity) (string, error) {
	claims := sessionClaims{
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(id.ID, 10),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if s.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.TTL))
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
}

// Parse verifies a token and returns the identity it binds.
func (s *Sessions) Parse(token string) (models.Identity, error) {
	var claims sessionClaims
	t, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.verifyKey, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return models.Identity{}, fmt.Errorf("invalid token")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 || claims.Username == "" {
		return models.Identity{}, fmt.Errorf("invalid session claims")
	}
	return models.Identity{ID: id, Username: claims.Username}, nil
}

// Login sets the session cookie for id.
func (s *Sessions) Login(w http.ResponseWriter, id models.Identity) error {
	token, err := s.Issue(id)
	if err != nil {
		return err
	}
	cookie := s.cookie(token)
	if s.TTL > 0 {
		cookie.MaxAge = int(s.TTL.Seconds())
	}
	http.SetCookie(w, cookie)
	return nil
}

// Logout expires the session cookie. Safe to call without a session.
func (s *Sessions) Logout(w http.ResponseWriter) {
	cookie := s.cookie("")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

// FromRequest returns the identity bound to r's session cookie.
func (s *Sessions) FromRequest(r *http.Request) (models.Identity, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return models.Identity{}, ErrNoSession
	}
	return s.Parse(c.Value)
}

func (s *Sessions) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteNoneMode,
	}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	return id, ok
}
