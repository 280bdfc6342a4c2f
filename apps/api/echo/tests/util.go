package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/youpass/youpass/apps/api/echo"
	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
	oauthsvc "github.com/youpass/youpass/services/oauth"
	testutil "github.com/youpass/youpass/tests"
)

const testPwd = "Xq9!vLp2#"

type testApp struct {
	*echoapi.Server
	env *testutil.Env
}

type setupOption func(deps *echoapi.ServerDeps)

func withConf(configure func(conf *core.Config)) setupOption {
	return func(deps *echoapi.ServerDeps) { configure(deps.Conf) }
}

func withGoogle(provider user.IdentityProvider) setupOption {
	return func(deps *echoapi.ServerDeps) { deps.Google = provider }
}

// setup builds a server on a fresh in-memory database.
func setup(t *testing.T, opts ...setupOption) testApp {
	env := testutil.NewEnv(t)
	env.Conf.Limits.AuthRequests = 0 // unlimited unless a test says otherwise

	deps := echoapi.ServerDeps{
		Conf:           env.Conf,
		Logger:         env.Logger,
		Validate:       env.Validate,
		Translator:     env.Translator,
		UserSvc:        env.UserSvc,
		CourseSvc:      env.CourseSvc,
		ExamSvc:        env.ExamSvc,
		ForumSvc:       env.ForumSvc,
		GroupSvc:       env.GroupSvc,
		ProgressSvc:    env.ProgressSvc,
		Google:         oauthsvc.NewGoogleProvider(env.Conf),
		DisableReqLogs: true,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return testApp{Server: echoapi.NewServer(deps), env: env}
}

func (app testApp) createUser(t *testing.T, name, email, role string) user.User {
	return testutil.CreateUser(t, app.env.UserRepo, name, email, testPwd, role)
}

// errResponse is the body of every failed request.
type errResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func errMsg(msg string) errResponse { return errResponse{Message: msg} }

func errFields(flds map[string]string) errResponse {
	return errResponse{Message: "Validation failed", Errors: flds}
}

// apiResponse mirrors the response envelope, keeping data undecoded.
type apiResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Token      string            `json:"token"`
	Count      *int              `json:"count"`
	Total      *int              `json:"total"`
	Pagination *struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Pages int `json:"pages"`
	} `json:"pagination"`
	Data   json.RawMessage   `json:"data"`
	Errors map[string]string `json:"errors"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves one request and decodes the envelope.
func (app testApp) do(t *testing.T, method, path, token string, data ...[]byte) (apiResponse, *httptest.ResponseRecorder) {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	var res apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
	return res, rec
}

func (app testApp) getToken(t *testing.T, usr user.User) string {
	return getToken(t, app.env.Conf, usr)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshalData(t *testing.T, res apiResponse, dst interface{}) {
	if err := json.Unmarshal(res.Data, dst); err != nil {
		t.Fatalf("unmarshalData(%s): %v", string(res.Data), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// runTests serves every test whose wantData is set and compares the whole body.
func (app testApp) runTests(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
