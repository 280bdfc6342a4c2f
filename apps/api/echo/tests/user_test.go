package tests

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/youpass/youpass/apps/api/echo"
	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Taken", "taken@example.com", "")
	path := "/api/v1/auth/register"

	app.runTests(t, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: path, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errFields(map[string]string{
				"name":     "this field is required",
				"email":    "this field is required",
				"password": "this field is required",
			})),
		},
		{
			name: "invalid fields", method: http.MethodPost, path: path, wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{Name: "Jane", Email: "lol", Password: "abc"}),
			wantData: marchallObj(t, errFields(map[string]string{
				"email":    "email must be a valid email address",
				"password": "password should be at least 6 characters long",
			})),
		},
		{
			name: "duplicate email", method: http.MethodPost, path: path, wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{Name: "Jane", Email: " TAKEN@example.com", Password: testPwd}),
			wantData: marchallObj(t, errFields(map[string]string{
				"email": "a user with this email already exists",
			})),
		},
	})

	res, rec := app.do(t, http.MethodPost, path, "", marchallObj(t, user.NewUser{Name: "Jane", Email: "Jane@Example.com", Password: testPwd}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Token)

	var usr map[string]interface{}
	unmarshalData(t, res, &usr)
	assert.Equal(t, "jane@example.com", usr["email"])
	assert.Equal(t, user.RoleStudent, usr["role"])
	assert.NotContains(t, usr, "passwordHash")
	assert.NotContains(t, usr, "PasswordHash")

	// the token works straight away
	res, rec = app.do(t, http.MethodGet, "/api/v1/auth/profile", res.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile user.User
	unmarshalData(t, res, &profile)
	assert.Equal(t, "Jane", profile.Name)

	sent := app.env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "welcome", sent[0].TemplateName)
}

func Test_userApi_registerThenLogin(t *testing.T) {
	app := setup(t)

	payloads := []user.NewUser{
		{Name: "Anna", Email: "anna@x.io", Password: "annabc"},
		{Name: "Jane Doe", Email: "jd@example.com", Password: "janedoe"},
		{Name: "Bo", Email: "BO@Example.com", Password: "123456"},
	}
	for _, nu := range payloads {
		nu := nu
		t.Run(nu.Email, func(t *testing.T) {
			res, rec := app.do(t, http.MethodPost, "/api/v1/auth/register", "", marchallObj(t, nu))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var registered user.User
			unmarshalData(t, res, &registered)

			login := marchallObj(t, map[string]string{"email": nu.Email, "password": nu.Password})
			res, rec = app.do(t, http.MethodPost, "/api/v1/auth/login", "", login)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var loggedIn user.User
			unmarshalData(t, res, &loggedIn)
			assert.Equal(t, registered.ID, loggedIn.ID)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Jane", "jane@example.com", "")
	path := "/api/v1/auth/login"

	app.runTests(t, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: path, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errFields(map[string]string{
				"email":    "this field is required",
				"password": "this field is required",
			})),
		},
		{
			name: "wrong password", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized,
			body:     marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: "wrong-password"}),
			wantData: marchallObj(t, errMsg("Invalid credentials")),
		},
		{
			name: "unknown email", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "nobody@example.com", Password: testPwd}),
			wantData: marchallObj(t, errMsg("Invalid credentials")),
		},
	})

	res, rec := app.do(t, http.MethodPost, path, "", marchallObj(t, echoapi.LoginRequest{Email: " JANE@example.com ", Password: testPwd}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, res.Token)

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(app.env.Conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, claims.Subject)
	assert.Equal(t, usr.Email, claims.Email)
	assert.Equal(t, user.RoleStudent, claims.Role)

	var loggedIn user.User
	unmarshalData(t, res, &loggedIn)
	assert.False(t, loggedIn.LastLogin.IsZero())
}

func Test_userApi_profile(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Jane", "jane@example.com", "")
	token := app.getToken(t, usr)
	path := "/api/v1/auth/profile"

	app.runTests(t, []httpTest{
		{
			name: "blank name", method: http.MethodPatch, path: path, token: token, wantCode: http.StatusBadRequest,
			body:     []byte(`{"name": "   "}`),
			wantData: marchallObj(t, errFields(map[string]string{"name": "this field cannot be blank"})),
		},
		{
			name: "target score out of range", method: http.MethodPatch, path: path, token: token, wantCode: http.StatusBadRequest,
			body:     []byte(`{"studyGoals": {"targetScore": 10}}`),
			wantData: marchallObj(t, errFields(map[string]string{"targetScore": "targetScore must be 9 or less"})),
		},
	})

	res, rec := app.do(t, http.MethodPatch, path, token, []byte(`{"name": " Jane Doe ", "studyGoals": {"targetScore": 8, "focusAreas": ["Writing"]}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated user.User
	unmarshalData(t, res, &updated)
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, 8.0, updated.StudyGoals.TargetScore)
	assert.Equal(t, []string{"writing"}, updated.StudyGoals.FocusAreas)
	assert.Equal(t, usr.Email, updated.Email, "email cannot be changed")
}

func Test_userApi_changePassword(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Jane", "jane@example.com", "")
	token := app.getToken(t, usr)
	path := "/api/v1/auth/change-password"
	newPwd := "N3w-s3cret!"

	app.runTests(t, []httpTest{
		{
			name: "wrong current password", method: http.MethodPost, path: path, token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ChangePassword{CurrentPassword: "wrong", Password: newPwd}),
			wantData: marchallObj(t, errFields(map[string]string{"currentPassword": "current password is incorrect"})),
		},
		{
			name: "weak password", method: http.MethodPost, path: path, token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ChangePassword{CurrentPassword: testPwd, Password: "abc"}),
			wantData: marchallObj(t, errFields(map[string]string{"password": "password should be at least 6 characters long"})),
		},
		{
			name: "changed", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, user.ChangePassword{CurrentPassword: testPwd, Password: newPwd}),
			wantData: []byte(`{"success": true, "message": "Password updated successfully"}`),
		},
	})

	_, err := app.env.UserSvc.Authenticate(context.Background(), usr.Email, newPwd)
	assert.NoError(t, err)
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Jane", "jane@example.com", "")
	conf := app.env.Conf

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Email:        usr.Email,
		Role:         usr.Role,
	}
	unrefreshableToken, err := echoapi.GenerateToken(conf, unrefreshableClaims)
	require.NoError(t, err)

	path := "/api/v1/auth/token-refresh"
	app.runTests(t, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMsg("Not authorized, no token")),
		},
		{
			name: "refresh period expired", method: http.MethodPost, path: path, token: unrefreshableToken,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("Refresh has expired")),
		},
	})

	// cannot guess new token.. just check that it's not empty and keeps the original issue time
	origClaims := echoapi.GetUserClaims(conf, usr, now.Add(-time.Hour).Unix())
	origToken, err := echoapi.GenerateToken(conf, origClaims)
	require.NoError(t, err)

	res, rec := app.do(t, http.MethodPost, path, origToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, res.Token)

	claims := new(echoapi.Claims)
	_, err = jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, origClaims.OrigIssuedAt, claims.OrigIssuedAt)
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Jane", "jane@example.com", "")
	successData := []byte(`{"success": true, "message": "If the email address supplied is associated with an account on this system, ` +
		`an email will arrive in your inbox shortly with instructions to reset your password."}`)
	path := "/api/v1/auth/forgot-password"

	app.runTests(t, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: path, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errFields(map[string]string{"email": "this field is required"})),
		},
		{
			name: "invalid email", method: http.MethodPost, path: path, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, errFields(map[string]string{"email": "email must be a valid email address"})),
		},
		{
			name: "unknown email", method: http.MethodPost, path: path,
			body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@example.com"}), wantData: successData,
		},
	})
	assert.Empty(t, app.env.Mail.SentMessages(), "no mail for unknown emails")

	req, rec := newRequest(http.MethodPost, path, marchallObj(t, echoapi.PasswordResetRequest{Email: usr.Email}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), successData)
	require.NoError(t, err)
	assert.True(t, ok)

	sent := app.env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, usr.Email, sent[0].To[0].Address)
	data := sent[0].TemplateData.(map[string]interface{})
	resetURL := data["ResetURL"].(string)
	prefix := app.env.Conf.FrontendBaseURL + "/reset-password/"
	require.True(t, strings.HasPrefix(resetURL, prefix), resetURL)
	token := strings.TrimPrefix(resetURL, prefix)

	newPwd := "N3w-s3cret!"
	resetPath := "/api/v1/auth/reset-password/"
	app.runTests(t, []httpTest{
		{
			name: "bad token", method: http.MethodPost, path: resetPath + "garbage", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, map[string]string{"password": newPwd}),
			wantData: marchallObj(t, errMsg("Invalid or expired reset token")),
		},
		{
			name: "weak password", method: http.MethodPost, path: resetPath + token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, map[string]string{"password": "abc"}),
			wantData: marchallObj(t, errFields(map[string]string{"password": "password should be at least 6 characters long"})),
		},
		{
			name: "reset", method: http.MethodPost, path: resetPath + token,
			body:     marchallObj(t, map[string]string{"password": newPwd}),
			wantData: []byte(`{"success": true, "message": "Password has been reset with the new password."}`),
		},
		{
			name: "token is single use", method: http.MethodPost, path: resetPath + token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, map[string]string{"password": "An0ther-one!"}),
			wantData: marchallObj(t, errMsg("Invalid or expired reset token")),
		},
	})

	_, rec = app.do(t, http.MethodPost, "/api/v1/auth/login", "", marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: newPwd}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeProvider struct {
	enabled bool
	profile user.FederatedProfile
}

func (p fakeProvider) Enabled() bool { return p.enabled }

func (p fakeProvider) AuthCodeURL() (string, error) {
	return "https://accounts.example.com/o/oauth2/auth?state=xyz", nil
}

func (p fakeProvider) Exchange(_ context.Context, state, code string) (user.FederatedProfile, error) {
	if state != "xyz" || code != "good" {
		return user.FederatedProfile{}, core.NewUnauthorizedError("Invalid or expired OAuth state")
	}
	return p.profile, nil
}

func Test_userApi_google(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		app := setup(t)
		app.runTests(t, []httpTest{
			{
				name: "login", method: http.MethodGet, path: "/api/v1/auth/google",
				wantCode: http.StatusNotFound, wantData: marchallObj(t, errMsg("Google authentication is not configured")),
			},
			{
				name: "callback", method: http.MethodGet, path: "/api/v1/auth/google/callback?state=a&code=b",
				wantCode: http.StatusNotFound, wantData: marchallObj(t, errMsg("Google authentication is not configured")),
			},
		})
	})

	provider := fakeProvider{enabled: true, profile: user.FederatedProfile{
		ProviderID: "g-42", DisplayName: "Jane G", Email: "jane@example.com", AvatarURL: "https://img.example.com/jane.png",
	}}
	app := setup(t, withGoogle(provider))
	existing := app.createUser(t, "Jane", "jane@example.com", "")

	req, rec := newRequest(http.MethodGet, "/api/v1/auth/google")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://accounts.example.com/o/oauth2/auth?state=xyz", rec.Header().Get("Location"))

	app.runTests(t, []httpTest{
		{
			name: "consent denied", method: http.MethodGet, path: "/api/v1/auth/google/callback?error=access_denied",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("Google authentication failed: access_denied")),
		},
		{
			name: "bad state", method: http.MethodGet, path: "/api/v1/auth/google/callback?state=nope&code=good",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("Invalid or expired OAuth state")),
		},
	})

	req, rec = newRequest(http.MethodGet, "/api/v1/auth/google/callback?state=xyz&code=good")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, app.env.Conf.FrontendBaseURL+"/auth/callback", loc.Scheme+"://"+loc.Host+loc.Path)
	token := loc.Query().Get("token")
	require.NotEmpty(t, token)

	res, rec := app.do(t, http.MethodGet, "/api/v1/auth/profile", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var linked user.User
	unmarshalData(t, res, &linked)
	assert.Equal(t, existing.ID, linked.ID)
	assert.Equal(t, "g-42", linked.GoogleID)
}
