package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

func Test_server_home(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "YouPass API is running", rec.Body.String())

	app.runTests(t, []httpTest{
		{name: "health", method: http.MethodGet, path: "/health", wantData: []byte(`{"success": true, "message": "ok"}`)},
		{name: "trailing slash", method: http.MethodGet, path: "/health/", wantData: []byte(`{"success": true, "message": "ok"}`)},
		{
			name: "unknown route", method: http.MethodGet, path: "/api/v1/nope",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errMsg("Not Found")),
		},
	})
}

func Test_server_authentication(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Jane", "jane@example.com", "")
	ghost := user.User{ID: "4b1c7a52-0f0e-4c55-9a3b-55d1f0b5a111", Email: "ghost@example.com", Role: user.RoleStudent}

	expired := expiredToken(t, app.env.Conf, usr)

	app.runTests(t, []httpTest{
		{
			name: "no token", method: http.MethodGet, path: "/api/v1/auth/profile",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("Not authorized, no token")),
		},
		{
			name: "garbage token", method: http.MethodGet, path: "/api/v1/auth/profile", token: "not.a.jwt",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("invalid or expired jwt")),
		},
		{
			name: "expired token", method: http.MethodGet, path: "/api/v1/auth/profile", token: expired,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("invalid or expired jwt")),
		},
		{
			name: "token signed with another key", method: http.MethodGet, path: "/api/v1/auth/profile",
			token:    getToken(t, &core.Config{SecretKey: "other", AppName: "YouPass", JWTExpirationDelta: time.Hour}, usr),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("invalid or expired jwt")),
		},
		{
			name: "deleted user", method: http.MethodGet, path: "/api/v1/auth/profile", token: app.getToken(t, ghost),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("Not authorized, user not found")),
		},
		{
			name: "admin only", method: http.MethodGet, path: "/api/v1/progress/stats", token: app.getToken(t, usr),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errMsg("Not authorized as an admin")),
		},
	})
}

func expiredToken(t *testing.T, conf *core.Config, usr user.User) string {
	past := time.Now().Add(-2 * conf.JWTExpirationDelta)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   usr.ID,
		ExpiresAt: past.Add(conf.JWTExpirationDelta / 2).Unix(),
		IssuedAt:  past.Unix(),
	})
	ss, err := token.SignedString([]byte(conf.SecretKey))
	require.NoError(t, err)
	return ss
}

func Test_server_rateLimit(t *testing.T) {
	app := setup(t, withConf(func(conf *core.Config) {
		conf.Limits.AuthRequests = 2
		conf.Limits.AuthWindow = time.Minute
	}))
	app.createUser(t, "Jane", "jane@example.com", "")
	body := marchallObj(t, map[string]string{"email": "jane@example.com", "password": "wrong"})

	for i, want := range []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests} {
		req, rec := newRequest(http.MethodPost, "/api/v1/auth/login", body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request #%d", i+1)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	// routes are limited separately
	req, rec := newRequest(http.MethodPost, "/api/v1/auth/forgot-password", marchallObj(t, map[string]string{"email": "jane@example.com"}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	// other clients are not affected
	req, rec = newRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.RemoteAddr = "203.0.113.9:4242"
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
