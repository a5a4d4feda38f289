package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/logging"
	"github.com/dmitrijs2005/kitchensink/internal/server/auth"
	"github.com/dmitrijs2005/kitchensink/internal/server/metrics"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/ratelimit"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/memory"
	"github.com/dmitrijs2005/kitchensink/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

type testServer struct {
	*httptest.Server
	store   *memory.Manager
	tokens  *auth.TokenManager
	metrics *metrics.Metrics
}

type serverOption func(*Options)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := memory.NewManager()
	tokens, err := auth.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	logger := logging.Nop()
	refresh := services.NewRefreshTokenService(db, store, 15*time.Minute)
	m := metrics.NewMetrics(prometheus.NewRegistry())

	o := Options{
		CORSOrigin: "http://localhost:3000",
		Auth:       services.NewAuthService(db, store, tokens, hasher, refresh, []models.Role{models.RoleUser}, logger),
		Members:    services.NewMemberService(db, store, logger),
		Limiter:    ratelimit.NewMemoryLimiter(100, time.Minute),
		Metrics:    m,
		Health:     db.PingContext,
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	srv := httptest.NewServer(NewHTTPServer(o).Handler())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: store, tokens: tokens, metrics: m}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (ts *testServer) register(t *testing.T, username, email, password string) {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func (ts *testServer) login(t *testing.T, identifier, password string) (string, string) {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": identifier, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	return body["token"].(string), body["refreshToken"].(string)
}

func (ts *testServer) admin(t *testing.T) string {
	t.Helper()
	ts.register(t, "root", "root@x.com", "root-pass")
	_, err := ts.store.Accounts(nil).AddRole(context.Background(), "root", models.RoleAdmin)
	require.NoError(t, err)
	_, err = ts.store.Accounts(nil).AddRole(context.Background(), "root", models.RoleUser)
	require.NoError(t, err)
	token, _ := ts.login(t, "root", "root-pass")
	return token
}

func TestScenario_RegisterLoginRefreshLogout(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "User registered successfully!", body["message"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@x.com", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	token, _ := body["token"].(string)
	refresh, _ := body["refreshToken"].(string)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, refresh)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, []any{"USER"}, body["roles"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/refresh-token", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotEmpty(t, body["accessToken"])
	assert.Equal(t, refresh, body["refreshToken"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Log out successful", body["message"])

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/refresh-token", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "refresh token not found", body["error"])
}

func TestRegister_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", "alice@x.com", "pw1")

	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "new@x.com", "password": "pw1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "username is already taken", body["error"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice2", "email": "alice@x.com", "password": "pw1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email is already in use", body["error"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bob", "email": "nope", "password": "pw1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email must be a well-formed address", body["error"])

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/register", bytes.NewBufferString("{"))
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", "alice@x.com", "pw1")

	resp, body := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid username or password", body["error"])
}

func TestLogin_Throttled(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.Limiter = ratelimit.NewMemoryLimiter(2, time.Minute) })
	ts.register(t, "alice", "alice@x.com", "pw1")

	for i := 0; i < 2; i++ {
		resp, _ := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "bad"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, body := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "pw1"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too many login attempts", body["error"])
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.Limiter = ratelimit.NewMemoryLimiter(2, time.Minute) })
	ts.register(t, "alice", "alice@x.com", "pw1")

	resp, _ := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "bad"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	ts.login(t, "alice", "pw1")

	for i := 0; i < 2; i++ {
		resp, _ := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "bad"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("redis down")
}

func (brokenLimiter) Reset(context.Context, string) error {
	return errors.New("redis down")
}

func TestLogin_LimiterFailsOpen(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.Limiter = brokenLimiter{} })
	ts.register(t, "alice", "alice@x.com", "pw1")
	ts.login(t, "alice", "pw1")
}

func TestGate(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", "alice@x.com", "pw1")
	token, _ := ts.login(t, "alice", "pw1")

	resp, body := ts.do(t, http.MethodGet, "/api/members", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing authorization header", body["error"])

	resp, _ = ts.do(t, http.MethodGet, "/api/members", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := auth.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), time.Nanosecond)
	require.NoError(t, err)
	stale, err := expired.Issue("alice")
	require.NoError(t, err)
	resp, body = ts.do(t, http.MethodGet, "/api/members", stale, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token expired", body["error"])

	resp, body = ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])

	resp, _ = ts.do(t, http.MethodGet, "/api/members", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/members", token, map[string]string{
		"name": "Jane Doe", "email": "jane@x.com", "phoneNumber": "+12125551234",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])

	// Roles are read on every request, so a grant applies to the same token.
	_, err = ts.store.Accounts(nil).AddRole(context.Background(), "alice", models.RoleAdmin)
	require.NoError(t, err)
	resp, _ = ts.do(t, http.MethodPost, "/api/members", token, map[string]string{
		"name": "Jane Doe", "email": "jane@x.com", "phoneNumber": "+12125551234",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestGate_TokenErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", "alice@x.com", "pw1")

	foreign, err := auth.NewTokenManager([]byte("fedcba9876543210fedcba9876543210"), time.Hour)
	require.NoError(t, err)
	forged, err := foreign.Issue("alice")
	require.NoError(t, err)
	resp, body := ts.do(t, http.MethodGet, "/api/auth/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid token", body["error"])

	resp, body = ts.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid token", body["error"])

	ghost, err := ts.tokens.Issue("nobody")
	require.NoError(t, err)
	resp, body = ts.do(t, http.MethodGet, "/api/auth/me", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])
}

func TestMembers_CRUD(t *testing.T) {
	ts := newTestServer(t)
	token := ts.admin(t)

	resp, body := ts.do(t, http.MethodPost, "/api/members", token, map[string]string{
		"name": "Jane Doe", "email": "jane@x.com", "phoneNumber": "+12125551234",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	id := body["data"].(map[string]any)["id"].(string)

	resp, body = ts.do(t, http.MethodPost, "/api/members", token, map[string]string{
		"name": "Jane Again", "email": "jane@x.com", "phoneNumber": "+12125551234",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	resp, body = ts.do(t, http.MethodPost, "/api/members", token, map[string]string{
		"name": "J4ne", "email": "", "phoneNumber": "12",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "name must contain only letters and spaces")
	assert.Contains(t, body["error"], "email is required")

	resp, body = ts.do(t, http.MethodGet, "/api/members/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Jane Doe", body["data"].(map[string]any)["name"])

	resp, body = ts.do(t, http.MethodPut, "/api/members/"+id, token, map[string]string{
		"name": "Jane Smith", "email": "jane@x.com", "phoneNumber": "+12125551234",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Jane Smith", body["data"].(map[string]any)["name"])

	resp, body = ts.do(t, http.MethodPost, "/api/members", token, map[string]string{
		"name": "Adam", "email": "adam@x.com", "phoneNumber": "+12125550000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = ts.do(t, http.MethodGet, "/api/members?size=1&sortBy=name&direction=asc", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data := body["data"].(map[string]any)
	content := data["content"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, "Adam", content[0].(map[string]any)["name"])
	assert.EqualValues(t, 2, data["totalElements"])
	assert.EqualValues(t, 2, data["totalPages"])
	assert.Equal(t, false, data["last"])

	resp, _ = ts.do(t, http.MethodGet, "/api/members?size=101", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/members?page=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/members?sortBy=id", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/members/"+id, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/members/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/api/members/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	ts.register(t, "alice", "alice@x.com", "pw1")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(raw.Body)
	assert.Contains(t, buf.String(), `kitchensink_auth_events_total{event="register",outcome="success"} 1`)
	assert.Contains(t, buf.String(), `route="/api/auth/register"`)
}

func TestHealth_Unavailable(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.Health = func(context.Context) error { return errors.New("db down") }
	})
	resp, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unavailable", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/members", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := NewHTTPServer(Options{Address: "127.0.0.1:0", Logger: logging.Nop(), ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
