// Package session threads the signed-in user's bearer token to the remote
// calls of the payment flow. The token is handed in explicitly (a static
// value, a cookie jar, the incoming API request) instead of being read from
// ambient client storage.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
)

// CookieName is the cookie the web client stores the bearer token in.
const CookieName = "authToken"

// TokenSource yields the current bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", apperr.New(apperr.ErrUnauthenticated, "")
	}
	return string(s), nil
}

type cookieSource struct {
	jar http.CookieJar
	u   *url.URL
}

// FromCookieJar reads CookieName from jar for u on every call.
func FromCookieJar(jar http.CookieJar, u *url.URL) TokenSource {
	if jar == nil {
		panic("session.FromCookieJar: nil jar")
	}
	return cookieSource{jar: jar, u: u}
}

func (c cookieSource) Token(context.Context) (string, error) {
	for _, ck := range c.jar.Cookies(c.u) {
		if ck.Name == CookieName && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", apperr.New(apperr.ErrUnauthenticated, "")
}

// FromRequest extracts the bearer token of an incoming request, preferring
// the Authorization header over the authToken cookie.
func FromRequest(r *http.Request) Static {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return Static(strings.TrimSpace(tok))
		}
	}
	if ck, err := r.Cookie(CookieName); err == nil {
		return Static(ck.Value)
	}
	return ""
}

// Claims are the token fields the flow looks at. The signature is checked by
// the backend, never here.
type Claims struct {
	AccountNumber string `json:"account_number"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a JWT without verifying it.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("session: parse claims: %w", err)
	}
	return claims, nil
}

// Session authorizes outgoing requests for one signed-in user.
type Session struct {
	src TokenSource
	now func() time.Time
}

// New creates a Session reading tokens from src.
func New(src TokenSource) *Session {
	if src == nil {
		panic("session.New: nil token source")
	}
	return &Session{src: src, now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (s *Session) WithClock(now func() time.Time) *Session {
	if now != nil {
		s.now = now
	}
	return s
}

// Bearer returns the token to send. Tokens that decode as JWTs and carry an
// expiry in the past are refused before any request is made; opaque tokens
// are passed through.
func (s *Session) Bearer(ctx context.Context) (string, error) {
	tok, err := s.src.Token(ctx)
	if err != nil {
		return "", err
	}
	if strings.Count(tok, ".") != 2 {
		return tok, nil
	}
	claims, err := ParseClaims(tok)
	if err != nil {
		return tok, nil
	}
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		return "", apperr.New(apperr.ErrUnauthenticated, "Session expired, please sign in again")
	}
	return tok, nil
}

// Authorize sets the Authorization header on req.
func (s *Session) Authorize(ctx context.Context, req *http.Request) error {
	tok, err := s.Bearer(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// Account returns the sender account number carried by the token, if any.
func (s *Session) Account(ctx context.Context) string {
	tok, err := s.src.Token(ctx)
	if err != nil {
		return ""
	}
	claims, err := ParseClaims(tok)
	if err != nil {
		return ""
	}
	return claims.AccountNumber
}
