package api

import (
	"net/http"
	"time"
)

// requestLoggingMiddleware logs every admin request with its status code
// and duration.
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.LogAdminRequest(r.Context(), r.Method, r.URL.Path, r.UserAgent(), rec.status, time.Since(start))
	})
}

// recoveryMiddleware converts a panicking handler into a 500 instead of
// killing the admin listener.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.LogAdminRequest(r.Context(), r.Method, r.URL.Path, r.UserAgent(), http.StatusInternalServerError, 0)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "the server encountered an unexpected condition")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
