package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxUsername contextKey = "username"
)

func userIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

func usernameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxUsername).(string)
	return v
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(requestIDHeader) == "" {
			r.Header.Set(requestIDHeader, uuid.NewString())
		}
		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps the event stream working behind the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("request_id", r.Header.Get(requestIDHeader)),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic in handler",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", r.Header.Get(requestIDHeader)),
					)
					writeError(w, http.StatusInternalServerError, "panic", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// authMiddleware accepts a session JWT or the admin API token. EventSource
// clients cannot set headers, so GET requests may pass either one as the
// token query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	apiToken := strings.TrimSpace(s.cfg.APIToken)
	isAPIToken := func(tok string) bool {
		return apiToken != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(apiToken)) == 1
	}
	withUser := func(r *http.Request, c tokenClaims) *http.Request {
		ctx := context.WithValue(r.Context(), ctxUserID, c.UserID)
		ctx = context.WithValue(ctx, ctxUsername, c.Username)
		return r.WithContext(ctx)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var candidates []string
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			candidates = append(candidates, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
		}
		if r.Method == http.MethodGet {
			if q := strings.TrimSpace(r.URL.Query().Get("token")); q != "" {
				candidates = append(candidates, q)
			}
		}

		for _, tok := range candidates {
			if c, err := s.tokens.ParseSession(tok); err == nil {
				next.ServeHTTP(w, withUser(r, c))
				return
			}
			if isAPIToken(tok) {
				next.ServeHTTP(w, r)
				return
			}
		}

		if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" && isAPIToken(key) {
			next.ServeHTTP(w, r)
			return
		}

		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
	})
}
