package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/userstore"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *authgate.Engine {
	t.Helper()

	hcfg := password.DefaultConfig()
	hcfg.Memory = 8 * 1024
	hcfg.Parallelism = 1
	hasher, err := password.NewArgon2(hcfg)
	require.NoError(t, err)

	users := userstore.NewMemory(hasher)
	require.NoError(t, users.Add("a@x.com", "correct-horse", authgate.Principal{
		UserID: "u1", FirstName: "A", LastName: "B", Email: "a@x.com", Verified: true,
	}))

	cfg := authgate.DefaultConfig()
	cfg.Strategy = authgate.StrategyToken
	cfg.Token.Secret = []byte(strings.Repeat("s", 32))

	engine, err := authgate.New().WithConfig(cfg).WithUserStore(users).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"a@x.com","password":"correct-horse"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			return c
		}
	}
	t.Fatal("login did not set the credential cookie")
	return nil
}

func TestRouter_LoginThenMe(t *testing.T) {
	r := NewRouter(RouterOptions{Engine: newEngine(t)})
	cookie := login(t, r)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		User authgate.UserSummary `json:"userDto"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.User.UserID)
	assert.Equal(t, "a@x.com", body.User.Email)
}

func TestRouter_MeWithoutCredential(t *testing.T) {
	r := NewRouter(RouterOptions{Engine: newEngine(t)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"name":"UserNotAuthenticated","message":"User not authenticated"}`, rec.Body.String())
}

func TestRouter_RequestID(t *testing.T) {
	r := NewRouter(RouterOptions{Engine: newEngine(t)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

type failingPing struct {
	*authgate.Engine
}

func (failingPing) Ping(context.Context) error {
	return authgate.ErrSessionStoreUnavailable
}

func TestRouter_Health(t *testing.T) {
	engine := newEngine(t)

	rec := httptest.NewRecorder()
	NewRouter(RouterOptions{Engine: engine}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","strategy":"TOKEN"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewRouter(RouterOptions{Engine: failingPing{engine}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unavailable"`)
}

func TestRouter_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("authgate_login_success_total 0\n"))
	})

	rec := httptest.NewRecorder()
	NewRouter(RouterOptions{Engine: newEngine(t), Metrics: metrics}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authgate_login_success_total")

	rec = httptest.NewRecorder()
	NewRouter(RouterOptions{Engine: newEngine(t)}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Proxy(t *testing.T) {
	seen := make(chan http.Header, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		_, _ = w.Write([]byte("upstream " + r.URL.Path))
	}))
	defer upstream.Close()

	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	r := NewRouter(RouterOptions{Engine: newEngine(t), Upstream: u})
	cookie := login(t, r)

	t.Run("rejected requests never reach the upstream", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		select {
		case <-seen:
			t.Fatal("upstream was called")
		default:
		}
	})

	t.Run("admitted requests carry the principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		req.AddCookie(cookie)
		req.Header.Set(HeaderUserID, "spoofed")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "upstream /api/projects", rec.Body.String())

		h := <-seen
		assert.Equal(t, "u1", h.Get(HeaderUserID))
		assert.Equal(t, "a@x.com", h.Get(HeaderUserEmail))
		assert.Equal(t, "TOKEN", h.Get(HeaderStrategy))
		assert.NotEmpty(t, h.Get(requestIDHeader))
	})
}

func TestRouter_ProxyUpstreamDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	r := NewRouter(RouterOptions{Engine: newEngine(t), Upstream: &url.URL{Scheme: "http", Host: addr}})
	cookie := login(t, r)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"name":"BadGateway","message":"upstream unavailable"}`, rec.Body.String())
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := NewRouter(RouterOptions{Engine: newEngine(t)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, Config{ReadTimeout: time.Second, ShutdownTimeout: time.Second}, handler, nil)
	}()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_ListenError(t *testing.T) {
	err := Run(context.Background(), Config{Addr: "not-an-address"}, http.NotFoundHandler(), nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, http.ErrServerClosed))
}

func TestRouter_ExtraRoutes(t *testing.T) {
	r := NewRouter(RouterOptions{
		Engine: newEngine(t),
		ExtraRoutes: func(r chi.Router) {
			r.Get("/debug/ping", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("pong"))
			})
		},
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
