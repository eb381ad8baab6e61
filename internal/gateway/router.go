// Package gateway is the stateless HTTP/WS request router: it normalizes
// identities, extracts and resolves bearer sessions, enforces CORS and
// rate limits, and translates wire requests into calls against the
// nonce/session/profile/inbox/callroom/blobstore components.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/solace-labs/wallet-messenger/internal/authutil"
	"github.com/solace-labs/wallet-messenger/internal/blobstore"
	"github.com/solace-labs/wallet-messenger/internal/callroom"
	"github.com/solace-labs/wallet-messenger/internal/inbox"
	"github.com/solace-labs/wallet-messenger/internal/nonce"
	"github.com/solace-labs/wallet-messenger/internal/profile"
)

var (
	ErrBadRequest       = errors.New("gateway: bad request")
	ErrUnauthorized     = errors.New("gateway: unauthorized")
	ErrInvalidNonce     = errors.New("gateway: invalid nonce")
	ErrInvalidSignature = errors.New("gateway: invalid signature")
	ErrRateLimited      = errors.New("gateway: rate limited")
)

// AnalyticsSink receives best-effort call-completion records. A no-op
// implementation is used when Postgres isn't configured.
type AnalyticsSink interface {
	RecordCallEnded(roomID, callerID, calleeID, reason string, startedAt, endedAt int64)
}

// Notifier fires a best-effort push-notification trigger after a
// successful store. Failures here never fail the enqueue.
type Notifier interface {
	Notify(recipient string, envelope inbox.Envelope)
}

// Limiter admits or rejects an (identity, action) event against a
// fixed-window budget. Satisfied by both ratelimit.Limiter (in-memory,
// the default) and ratelimit.DurableLimiter (bbolt-backed, for
// RATE_LIMIT_PERSIST=1 deployments).
type Limiter interface {
	Admit(identity, action string) bool
}

// noopNotifier satisfies Notifier when no push backend is configured.
type noopNotifier struct{}

func (noopNotifier) Notify(string, inbox.Envelope) {}

// Server bundles every component the gateway fronts, one field per
// subsystem.
type Server struct {
	Nonces     *nonce.Store
	Limiter    Limiter
	Profiles   profile.Store
	Inboxes    *inbox.Manager
	Calls      *callroom.Manager
	Blobs      *blobstore.Store
	Analytics  AnalyticsSink
	Notifier   Notifier
	AllowedOrigins []string

	metrics Metrics
}

// Router wires up chi routes, middleware, and handlers ready for
// http.ListenAndServe.
func (s *Server) Router() http.Handler {
	if s.Notifier == nil {
		s.Notifier = noopNotifier{}
	}
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  s.allowOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.loggingMiddleware)
	r.Use(noStoreMiddleware)

	r.Get("/auth/nonce", s.handleIssueNonce)
	r.Post("/auth/verify", s.handleVerify)

	r.Get("/profile/lookup", s.handleProfileLookupByNickname)
	r.Get("/profile/by-key", s.handleProfileLookupByPubkey)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticated)
		r.Post("/messages/send", s.handleMessagesSend)
		r.Get("/inbox/poll", s.handleInboxPoll)
		r.Post("/messages/ack", s.handleMessagesAck)
		r.Get("/profile/me", s.handleProfileMe)
		r.Post("/profile/nickname", s.handleSetNickname)
		r.Post("/profile/encryption-key", s.handleSetEncryptionKey)
		r.Put("/sync/chat/{contactKey}", s.handleSyncPut)
		r.Get("/sync/chat/{contactKey}", s.handleSyncGet)
		r.Delete("/sync/chat/{contactKey}", s.handleSyncDelete)
		r.Post("/voice/upload", s.handleVoiceUpload)
		r.Get("/voice/{recipient}/{messageId}", s.handleVoiceDownload)
		r.Get("/call/signal/{roomId}", s.handleCallSignal)
	})

	return r
}

func (s *Server) allowOrigin(r *http.Request, origin string) bool {
	if len(s.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return isLocalhostOrigin(origin)
}

func isLocalhostOrigin(origin string) bool {
	origin = strings.TrimPrefix(origin, "http://")
	origin = strings.TrimPrefix(origin, "https://")
	host := origin
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host == "localhost" || host == "127.0.0.1"
}

func noStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type ctxUserKey struct{}

// authenticated extracts and resolves the bearer session token, storing
// the resolved identity in the request context.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := parseTokenFromHeader(r.Header.Get("Authorization"))
		pubkey, ok := authutil.ResolveSession(token)
		if !ok {
			writeError(w, ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, pubkey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseTokenFromHeader(h string) string {
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func callerIdentity(r *http.Request) string {
	v, _ := r.Context().Value(ctxUserKey{}).(string)
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("gateway: json write failed: %v", err)
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return ErrBadRequest
	}
	return nil
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

type accessLogEntry struct {
	Route      string `json:"route"`
	Method     string `json:"method"`
	Status     int    `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Client     string `json:"client"`
	Timestamp  string `json:"timestamp"`
}

// loggingMiddleware emits one structured JSON line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Requests.Add(1)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		entry := accessLogEntry{
			Route:      routePattern(r),
			Method:     r.Method,
			Status:     recorder.status,
			DurationMS: time.Since(start).Milliseconds(),
			Client:     clientOrigin(r),
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			log.Printf("log marshal error: %v", err)
			return
		}
		log.Print(string(payload))
	})
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func clientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
