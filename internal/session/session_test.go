package session

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
)

func signToken(t *testing.T, account string, exp time.Time) string {
	t.Helper()

	claims := &Claims{
		AccountNumber: account,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestStatic(t *testing.T) {
	t.Parallel()

	tok, err := Static("abc").Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", tok)

	_, err = Static("").Token(context.Background())
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestFromCookieJar(t *testing.T) {
	t.Parallel()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, _ := url.Parse("https://wallet.example/")

	src := FromCookieJar(jar, u)
	_, err = src.Token(context.Background())
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	jar.SetCookies(u, []*http.Cookie{{Name: CookieName, Value: "cookie-token"}})
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cookie-token", tok)
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, Static(""), FromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	require.Equal(t, Static("from-cookie"), FromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, Static("from-header"), FromRequest(r))
}

func TestBearer(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	valid := signToken(t, "1111111111", now.Add(time.Hour))
	expired := signToken(t, "1111111111", now.Add(-time.Minute))

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid_jwt", token: valid},
		{name: "expired_jwt", token: expired, wantErr: apperr.ErrUnauthenticated},
		{name: "opaque", token: "opaque-token"},
		{name: "missing", token: "", wantErr: apperr.ErrUnauthenticated},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := New(Static(tt.token)).WithClock(clock)
			got, err := s.Bearer(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.token, got)
		})
	}
}

func TestAuthorizeAndAccount(t *testing.T) {
	t.Parallel()

	tok := signToken(t, "2222222222", time.Now().Add(time.Hour))
	s := New(Static(tok))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-pin", nil)
	require.NoError(t, s.Authorize(context.Background(), req))
	require.Equal(t, "Bearer "+tok, req.Header.Get("Authorization"))
	require.Equal(t, "2222222222", s.Account(context.Background()))

	require.Empty(t, New(Static("opaque")).Account(context.Background()))
}

func TestNew_NilSourcePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil token source")
		}
	}()
	New(nil)
}
