package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/devtasks/internal/controller"
	"github.com/rryowa/devtasks/internal/keypath"
	"github.com/rryowa/devtasks/internal/keypath/keypathtest"
	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/service"
	"github.com/rryowa/devtasks/internal/storage"
	keypathstorage "github.com/rryowa/devtasks/internal/storage/keypath"
	"github.com/rryowa/devtasks/internal/storage/memory"
	"github.com/rryowa/devtasks/internal/util"
)

type stores struct {
	accounts    storage.AccountRepository
	tasks       storage.TaskRepository
	revocations storage.RevocationStore
}

func memoryStores(log *zap.SugaredLogger) stores {
	return stores{
		accounts:    memory.NewAccountRepository(log),
		tasks:       memory.NewTaskRepository(),
		revocations: memory.NewRevocationStore(log),
	}
}

func newTestServer(t *testing.T, s stores) http.Handler {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	tokenCfg := &util.TokenConfig{
		AccessKey:  []byte("access-key-access-key-access-key-00"),
		RefreshKey: []byte("refresh-key-refresh-key-refresh-key"),
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
	}
	policy := service.NewTokenPolicy(tokenCfg, service.NewTokenCodec(), log)
	authService := service.NewAuthService(policy, s.accounts, s.revocations, service.NewBcryptHasher(bcrypt.MinCost), nil, log)
	taskService := service.NewTaskService(s.tasks, log)
	cookieCfg := &util.CookieConfig{Secure: true, SameSite: http.SameSiteStrictMode}

	c := controller.NewController(log, authService, taskService, cookieCfg, tokenCfg.RefreshTTL)
	a, err := NewAPI(c, service.NewAuthGate(policy), &util.ServerConfig{ServerAddr: "localhost:0"}, log, nil)
	require.NoError(t, err)
	return a.Handler()
}

type call struct {
	method  string
	path    string
	body    string
	bearer  string
	header  string
	refresh string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.header != "" {
		req.Header.Set("Authorization", c.header)
	}
	if c.refresh != "" {
		req.AddCookie(&http.Cookie{Name: models.RefreshTokenCookie, Value: c.refresh})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == models.RefreshTokenCookie {
			return c
		}
	}
	require.Fail(t, "refresh cookie not set")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const aliceCreds = `{"email":"alice@example.com","password":"pw123"}`

func runScenario(t *testing.T, h http.Handler) {
	rec := do(t, h, call{method: http.MethodPost, path: "/api/register", body: aliceCreds})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[models.TokenResponse](t, rec)
	assert.Equal(t, "success", reg.Status)
	assert.Equal(t, "Account created", reg.Message)
	assert.NotEmpty(t, reg.Token)

	cookie := refreshCookie(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/register", body: aliceCreds})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", decode[models.StatusResponse](t, rec).Message)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/login", body: `{"email":"alice@example.com","password":"wrongpw"}`})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/login", body: aliceCreds})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	r1 := refreshCookie(t, rec).Value

	rec = do(t, h, call{method: http.MethodGet, path: "/api/refreshToken", refresh: r1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	refreshed := decode[models.TokenResponse](t, rec)
	assert.NotEmpty(t, refreshed.Token)
	r2 := refreshCookie(t, rec).Value
	assert.NotEqual(t, r1, r2)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/refreshToken", refresh: r1})
	require.Equal(t, http.StatusNotAcceptable, rec.Code)
	assert.Equal(t, "Invalid Refresh Token", decode[models.StatusResponse](t, rec).Message)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/tasks", bearer: refreshed.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, call{method: http.MethodGet, path: "/api/tasks"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decode[models.StatusResponse](t, rec).Message)
}

func TestScenarioMemory(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	runScenario(t, newTestServer(t, memoryStores(log)))
}

func keyPathStores(t *testing.T, timeout time.Duration) (stores, *keypathtest.Server) {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	srv := keypathtest.NewServer(t, "db-pw")
	client := keypath.NewClient(&util.KeyPathConfig{URL: srv.URL, Password: "db-pw", Database: "devtasks", Timeout: timeout}, log)
	require.NoError(t, client.Connect(context.Background()))

	return stores{
		accounts:    keypathstorage.NewAccountRepository(client, log),
		tasks:       keypathstorage.NewTaskRepository(client),
		revocations: keypathstorage.NewRevocationStore(client),
	}, srv
}

func TestScenarioKeyPathDatabase(t *testing.T) {
	s, srv := keyPathStores(t, time.Second)
	runScenario(t, newTestServer(t, s))

	_, ok := srv.Value("devtasks", "users/alice@example.com")
	assert.True(t, ok)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	h := newTestServer(t, memoryStores(zaptest.NewLogger(t).Sugar()))
	require.Equal(t, http.StatusCreated, do(t, h, call{method: http.MethodPost, path: "/api/register", body: aliceCreds}).Code)

	wrong := do(t, h, call{method: http.MethodPost, path: "/api/login", body: `{"email":"alice@example.com","password":"nope"}`})
	unknown := do(t, h, call{method: http.MethodPost, path: "/api/login", body: `{"email":"ghost@example.com","password":"pw123"}`})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Email or password incorrect", decode[models.StatusResponse](t, wrong).Message)
}

func TestLoginFailuresLookTheSameKeyPath(t *testing.T) {
	s, _ := keyPathStores(t, time.Second)
	h := newTestServer(t, s)

	rec := do(t, h, call{method: http.MethodPost, path: "/api/register", body: aliceCreds})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := decode[models.TokenResponse](t, rec).Token
	rec = do(t, h, call{method: http.MethodPost, path: "/api/tasks", bearer: token, body: `{"task_name":"write docs"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	login := func(email, password string) *httptest.ResponseRecorder {
		body, err := json.Marshal(map[string]string{"email": email, "password": password})
		require.NoError(t, err)
		return do(t, h, call{method: http.MethodPost, path: "/api/login", body: string(body)})
	}

	wrong := login("alice@example.com", "nope")
	unknown := login("ghost@example.com", "pw123")
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())

	existing := login("alice@example.com/tasks", "pw123")
	missing := login("bob@example.com/tasks", "pw123")
	assert.NotEqual(t, http.StatusServiceUnavailable, existing.Code)
	assert.Equal(t, missing.Code, existing.Code)
	assert.JSONEq(t, missing.Body.String(), existing.Body.String())
}

func TestRegisterRejectsPathEmails(t *testing.T) {
	s, srv := keyPathStores(t, time.Second)
	h := newTestServer(t, s)

	for _, email := range []string{"alice@example.com/tasks", "../alice@example.com", "alice@example.com/.."} {
		t.Run(email, func(t *testing.T) {
			body, err := json.Marshal(map[string]string{"email": email, "password": "pw123"})
			require.NoError(t, err)

			rec := do(t, h, call{method: http.MethodPost, path: "/api/register", body: string(body)})
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "Invalid register JSON", decode[models.StatusResponse](t, rec).Message)
		})
	}

	_, ok := srv.Value("devtasks", "users/alice@example.com")
	assert.False(t, ok)
}

func TestInvalidPayloads(t *testing.T) {
	h := newTestServer(t, memoryStores(zaptest.NewLogger(t).Sugar()))

	tests := []struct {
		name string
		c    call
		msg  string
	}{
		{"register missing password", call{method: http.MethodPost, path: "/api/register", body: `{"email":"alice@example.com"}`}, "Invalid register JSON"},
		{"register bad email", call{method: http.MethodPost, path: "/api/register", body: `{"email":"not-an-email","password":"pw"}`}, "Invalid register JSON"},
		{"register empty body", call{method: http.MethodPost, path: "/api/register"}, "Invalid register JSON"},
		{"register broken json", call{method: http.MethodPost, path: "/api/register", body: `{"email":`}, "Invalid register JSON"},
		{"login missing email", call{method: http.MethodPost, path: "/api/login", body: `{"password":"pw"}`}, "Invalid login JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.c)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[models.StatusResponse](t, rec)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.msg, resp.Message)
		})
	}
}

func TestAuthGateResponses(t *testing.T) {
	h := newTestServer(t, memoryStores(zaptest.NewLogger(t).Sugar()))
	rec := do(t, h, call{method: http.MethodPost, path: "/api/register", body: aliceCreds})
	require.Equal(t, http.StatusCreated, rec.Code)
	refresh := refreshCookie(t, rec).Value

	tests := []struct {
		name   string
		header string
		msg    string
	}{
		{"basic scheme", "Basic abc", "Please use Bearer Token"},
		{"bare token", "abc", "Please use Bearer Token"},
		{"forged token", "Bearer abc.def.ghi", "Invalid auth token"},
		{"refresh token as access", "Bearer " + refresh, "Invalid auth token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, call{method: http.MethodGet, path: "/api/tasks", header: tt.header})
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.msg, decode[models.StatusResponse](t, rec).Message)
		})
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	h := newTestServer(t, memoryStores(zaptest.NewLogger(t).Sugar()))

	for _, c := range []call{
		{method: http.MethodGet, path: "/api/refreshToken"},
		{method: http.MethodPost, path: "/api/refresh"},
		{method: http.MethodGet, path: "/api/refreshToken", refresh: "garbage"},
	} {
		rec := do(t, h, c)
		assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h := newTestServer(t, memoryStores(zaptest.NewLogger(t).Sugar()))
	rec := do(t, h, call{method: http.MethodPost, path: "/api/register", body: aliceCreds})
	require.Equal(t, http.StatusCreated, rec.Code)
	refresh := refreshCookie(t, rec).Value

	rec = do(t, h, call{method: http.MethodPost, path: "/api/logout", refresh: refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, refreshCookie(t, rec).Value)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/refresh", refresh: refresh})
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestTaskCRUD(t *testing.T) {
	h := newTestServer(t, memoryStores(zaptest.NewLogger(t).Sugar()))
	rec := do(t, h, call{method: http.MethodPost, path: "/api/register", body: aliceCreds})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decode[models.TokenResponse](t, rec).Token

	rec = do(t, h, call{method: http.MethodPost, path: "/api/tasks", bearer: token, body: `{"task_name":"write docs"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[models.Task](t, rec)
	assert.Equal(t, "write docs", task.Name)
	assert.Equal(t, models.TaskStatusIncomplete, task.Status)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/tasks", bearer: token, body: `{}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid task data", decode[models.StatusResponse](t, rec).Message)

	body := `{"task_id":` + jsonInt(task.ID) + `,"task_status":"complete"}`
	rec = do(t, h, call{method: http.MethodPut, path: "/api/tasks", bearer: token, body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "complete", decode[models.Task](t, rec).Status)

	rec = do(t, h, call{method: http.MethodPut, path: "/api/tasks", bearer: token, body: `{"task_id":1,"task_status":"complete"}`})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task ID not found", decode[models.StatusResponse](t, rec).Message)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/tasks", bearer: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Task](t, rec), 1)

	rec = do(t, h, call{method: http.MethodDelete, path: "/api/tasks", bearer: token, body: `{"task_id":` + jsonInt(task.ID) + `}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Task #"+jsonInt(task.ID)+" deleted", decode[models.StatusResponse](t, rec).Message)

	rec = do(t, h, call{method: http.MethodDelete, path: "/api/tasks", bearer: token, body: `{"task_id":` + jsonInt(task.ID) + `}`})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpstreamUnavailable(t *testing.T) {
	s, srv := keyPathStores(t, 50*time.Millisecond)
	h := newTestServer(t, s)
	srv.SetDelay(300 * time.Millisecond)

	rec := do(t, h, call{method: http.MethodPost, path: "/api/login", body: aliceCreds})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEqual(t, "Email or password incorrect", decode[models.StatusResponse](t, rec).Message)
}

func TestPing(t *testing.T) {
	h := newTestServer(t, memoryStores(zaptest.NewLogger(t).Sugar()))
	rec := do(t, h, call{method: http.MethodGet, path: "/api/ping"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"ok"`, rec.Body.String())
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestGracefulShutdownRunsCleanups(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	s := memoryStores(log)
	policy := service.NewTokenPolicy(&util.TokenConfig{
		AccessKey:  []byte("a"),
		RefreshKey: []byte("b"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, service.NewTokenCodec(), log)
	authService := service.NewAuthService(policy, s.accounts, s.revocations, service.NewBcryptHasher(bcrypt.MinCost), nil, log)
	c := controller.NewController(log, authService, service.NewTaskService(s.tasks, log), &util.CookieConfig{}, time.Hour)

	var cleaned int
	a, err := NewAPI(c, service.NewAuthGate(policy), &util.ServerConfig{
		ServerAddr:      "127.0.0.1:0",
		GracefulTimeout: time.Second,
	}, log, []func(){func() { cleaned++ }, func() { cleaned++ }})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		a.ListenGracefulShutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		require.Fail(t, "shutdown did not finish")
	}
	assert.Equal(t, 2, cleaned)
}
