package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hirewell/profile-ingest/internal/apierr"
)

// apiKeyAuth checks the x-api-key header against the configured key with a
// constant-time comparison (§4.7), rejecting a missing or mismatched key
// with 401 before any route handler runs.
func apiKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get("x-api-key")
			if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(apiKey)) != 1 {
				writeError(w, apierr.New(apierr.Unauthorized, "missing or invalid x-api-key", nil, nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger is a zap-backed replacement for chimiddleware.Logger,
// grounded on the teacher's pervasive zap.L() structured-logging idiom
// rather than chi's own stdlib-log-based default.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("elapsed", time.Since(start)),
		)
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
