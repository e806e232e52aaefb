// Package server mounts an authgate Engine behind a chi router.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authgate"
	authmw "github.com/MrEthical07/authgate/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"

	// Headers forwarded to the upstream for admitted requests. Inbound
	// copies are always stripped.
	HeaderUserID    = "X-Authgate-User-Id"
	HeaderUserEmail = "X-Authgate-User-Email"
	HeaderStrategy  = "X-Authgate-Strategy"

	healthTimeout = 2 * time.Second
)

// Engine is what the router needs from *authgate.Engine.
type Engine interface {
	authmw.Engine
	Ping(ctx context.Context) error
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Engine Engine
	Logger *slog.Logger

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Upstream, when set, receives every other request that passes the
	// guard.
	Upstream *url.URL

	// Extractor overrides the credential cookie for the guard.
	Extractor authmw.Extractor

	// ExtraRoutes mounts additional unguarded routes before the proxy
	// catch-all.
	ExtraRoutes func(chi.Router)
}

// NewRouter builds the HTTP surface: login, logout, the current user,
// health, metrics and an optional guarded reverse proxy.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var guardOpts []authmw.Option
	if opts.Extractor != nil {
		guardOpts = append(guardOpts, authmw.WithExtractor(opts.Extractor))
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler(opts.Engine, logger))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	r.Post("/login", authmw.LoginHandler(opts.Engine).ServeHTTP)
	r.Post("/logout", authmw.LogoutHandler(opts.Engine, guardOpts...).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(authmw.Guard(opts.Engine, guardOpts...))
		r.Get("/me", meHandler)
		if opts.Upstream != nil {
			r.Handle("/*", newProxy(opts.Upstream, logger))
		}
	})

	return r
}

// requestContext puts the request ID and client IP where the engine's
// audit trail can find them. middleware.RealIP has already rewritten
// RemoteAddr by the time this runs.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := authgate.WithRequestID(r.Context(), id)
		ctx = authgate.WithClientIP(ctx, clientIP(r.RemoteAddr))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", authgate.RequestIDFromContext(r.Context())),
			)
		})
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Strategy string `json:"strategy,omitempty"`
	Error    string `json:"error,omitempty"`
}

func healthHandler(engine Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: authgate.ErrEngineNotReady.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		res := healthResponse{Status: "ok", Strategy: engine.Strategy().String()}
		if err := engine.Ping(ctx); err != nil {
			logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
			res.Status = "unavailable"
			res.Error = string(authgate.Classify(err).Name)
			writeJSON(w, http.StatusServiceUnavailable, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type meResponse struct {
	User authgate.UserSummary `json:"userDto"`
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := authgate.PrincipalFromContext(r.Context())
	if !ok {
		authmw.WriteError(w, authgate.ErrUserNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: p.Summary()})
}

func newProxy(upstream *url.URL, logger *slog.Logger) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()

			pr.Out.Header.Del(HeaderUserID)
			pr.Out.Header.Del(HeaderUserEmail)
			pr.Out.Header.Del(HeaderStrategy)

			ac, ok := authgate.AuthContextFromContext(pr.In.Context())
			if !ok || !ac.Authenticated() {
				return
			}
			pr.Out.Header.Set(HeaderUserID, ac.Principal.UserID)
			pr.Out.Header.Set(HeaderUserEmail, ac.Principal.Email)
			pr.Out.Header.Set(HeaderStrategy, ac.Strategy.String())
			if id := authgate.RequestIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set(requestIDHeader, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				slog.String("upstream", upstream.Redacted()),
				slog.Any("error", err),
			)
			writeJSON(w, http.StatusBadGateway, authgate.ErrorResponse{
				Name:    "BadGateway",
				Message: "upstream unavailable",
			})
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
