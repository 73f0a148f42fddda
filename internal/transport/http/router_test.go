package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	jwtpkg "vmail/backend/internal/auth/jwt"
	"vmail/backend/internal/config"
	"vmail/backend/internal/credential"
	"vmail/backend/internal/health"
	"vmail/backend/internal/monitoring"
	"vmail/backend/internal/ratelimit"
	"vmail/backend/internal/service"
	"vmail/backend/internal/storage/memory"
)

const testSecret = "test-secret-key-for-development-32-chars-long-at-least"

type testServer struct {
	router http.Handler
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	metrics := monitoring.NewMetrics()
	directory := service.NewDirectoryService(store, credential.NewEngine(credential.Config{}),
		service.WithLimiter(ratelimit.NewAttemptLimiter(store, 3, time.Minute)),
		service.WithMetrics(metrics),
	)
	manager := jwtpkg.NewManager(testSecret, "vmail", time.Hour)

	cfg := &config.Config{}
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000

	router := NewRouter(RouterDependencies{
		Config:     cfg,
		Directory:  directory,
		JWTManager: manager,
		Health:     health.NewHealthChecker(store, nil, zap.NewNop()),
		Metrics:    metrics,
		Logger:     zap.NewNop(),
	})

	tok, err := manager.Issue("ops", jwtpkg.RoleAdmin)
	require.NoError(t, err)
	return &testServer{router: router, token: tok.AccessToken}
}

func (s *testServer) do(t *testing.T, method, path string, body any, authed bool) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp Response
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func TestRouter_RequiresAdminToken(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/v1/admin/domains", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := s.do(t, http.MethodGet, "/v1/admin/domains", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRouter_DomainLifecycle(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/v1/admin/domains", gin.H{"fqdn": "Example.ORG"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "example.org", resp.Data.(map[string]any)["fqdn"])

	w, _ = s.do(t, http.MethodPost, "/v1/admin/domains", gin.H{"fqdn": "example.org"}, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/admin/domains", gin.H{"fqdn": "not a domain"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/admin/domains", gin.H{}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodPatch, "/v1/admin/domains/example.org", gin.H{"active": false}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.(map[string]any)["active"])

	w, _ = s.do(t, http.MethodGet, "/v1/admin/domains/missing.org", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/v1/admin/domains/example.org", nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_MailboxAndVerify(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/v1/admin/mailboxes", gin.H{"email": "alice@example.org", "password": "secret"}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := s.do(t, http.MethodPost, "/v1/admin/mailboxes",
		gin.H{"email": "Alice@Example.org", "password": "secret", "createDomain": true}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	view := resp.Data.(map[string]any)
	assert.Equal(t, "alice@example.org", view["email"])
	assert.Equal(t, true, view["hasPassword"])
	assert.NotContains(t, w.Body.String(), "shadigest")

	// the domain now owns a mailbox
	w, _ = s.do(t, http.MethodDelete, "/v1/admin/domains/example.org", nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/auth/verify", gin.H{"email": "alice@example.org", "password": "secret"}, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(t, http.MethodPost, "/v1/auth/verify", gin.H{"email": "alice@example.org", "password": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, MsgInvalidCredentials, resp.Msg)

	w, _ = s.do(t, http.MethodPost, "/v1/admin/mailboxes/alice@example.org/password/change",
		gin.H{"currentPassword": "wrong", "newPassword": "next"}, true)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/admin/mailboxes/alice@example.org/password/change",
		gin.H{"currentPassword": "secret", "newPassword": "next"}, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, http.MethodPut, "/v1/admin/mailboxes/alice@example.org/password", gin.H{"password": "reset"}, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/auth/verify", gin.H{"email": "alice@example.org", "password": "reset"}, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/v1/admin/mailboxes/alice@example.org", gin.H{"active": false}, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/auth/verify", gin.H{"email": "alice@example.org", "password": "reset"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp = s.do(t, http.MethodGet, "/v1/admin/mailboxes?domain=example.org", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = s.do(t, http.MethodDelete, "/v1/admin/mailboxes/alice@example.org", nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, http.MethodGet, "/v1/admin/mailboxes/alice@example.org", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_VerifyRateLimited(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/v1/admin/mailboxes",
		gin.H{"email": "bob@example.org", "password": "secret", "createDomain": true}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	for i := 0; i < 3; i++ {
		w, _ = s.do(t, http.MethodPost, "/v1/auth/verify", gin.H{"email": "bob@example.org", "password": "wrong"}, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w, _ = s.do(t, http.MethodPost, "/v1/auth/verify", gin.H{"email": "bob@example.org", "password": "secret"}, false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_Aliases(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/v1/admin/aliases", gin.H{
		"domain":       "example.org",
		"source":       "@example.org",
		"destination":  "postmaster@example.net",
		"createDomain": true,
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	id := resp.Data.(map[string]any)["id"].(string)

	w, _ = s.do(t, http.MethodPost, "/v1/admin/aliases", gin.H{
		"domain":      "example.org",
		"source":      "@example.org",
		"destination": "postmaster@example.net",
	}, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/admin/aliases", gin.H{
		"domain":      "example.org",
		"source":      "info@example.org",
		"destination": "not-an-address",
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodPatch, "/v1/admin/aliases/"+id, gin.H{"active": false}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.(map[string]any)["active"])

	w, resp = s.do(t, http.MethodGet, "/v1/admin/aliases", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = s.do(t, http.MethodDelete, "/v1/admin/aliases/"+id, nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(t, http.MethodGet, "/v1/admin/aliases/"+id, nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"OK"`)

	w, _ = s.do(t, http.MethodGet, "/health/ready", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vmail_http_requests_total")
}
