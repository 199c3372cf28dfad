package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"siteflow/auth"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(auth.Identity)
	return id, ok
}

// requireAuth verifies the bearer token and rejects inactive or unknown
// tenants before any handler runs.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		id, err := s.auth.VerifyToken(token)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		if _, err := s.tenants.RequireActive(r.Context(), id.TenantID); err != nil {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "tenant unknown or inactive")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, id)))
	})
}

// requireOperator gates the admin surface on the shared operator key.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.operator.Verify(r.Header.Get("X-Admin-Key")); err != nil {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "operator key rejected")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
