package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/trimrr/pkg/config"
)

func newAuthEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AppEnv:            "test",
		GoogleClientID:    "client-id",
		GoogleRedirectURL: "http://localhost:8080/auth/google/callback",
		JWTSecret:         testSecret,
		FrontendURL:       "http://localhost:8080/dashboard",
	}

	r := NewEngine()
	RegisterRoutes(r, RouterDeps{
		Links:     &fakeLinks{},
		Resolver:  &fakeResolver{},
		JWTSecret: testSecret,
		Auth:      NewAuthHandler(cfg, nil),
	})
	return r
}

func TestLogin_SetsStateAndRedirects(t *testing.T) {
	r := newAuthEngine()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", loc.Host)
	require.Equal(t, state, loc.Query().Get("state"))
	require.Equal(t, "client-id", loc.Query().Get("client_id"))
}

func TestCallback_RejectsBadState(t *testing.T) {
	r := newAuthEngine()

	t.Run("bad/no_cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=x&code=y", nil))
		require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("bad/mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=x&code=y", nil)
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: "other"})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	})
}

func TestLogout_ClearsCookie(t *testing.T) {
	r := newAuthEngine()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "http://localhost:8080/dashboard/login", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, authCookie, cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.True(t, cookies[0].Expires.Before(time.Now()))
}

func TestIssueToken(t *testing.T) {
	now := time.Now()
	signed, expires, err := IssueToken([]byte(testSecret), testOwner, now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(24*time.Hour), expires, time.Second)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	require.Equal(t, testOwner, claims.Subject)
}
