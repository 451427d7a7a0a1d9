package log

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPMiddleware is GinMiddleware for plain handlers that take over the
// connection, such as WebSocket upgrades. The response writer is passed
// through untouched so it can still be hijacked.
func HTTPMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := requestID(r)
		child := requestLogger(logger, reqID, r, clientIP(r))

		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), &child)))

		child.Info().
			Float64(FieldLatency, float64(time.Since(start).Microseconds())/1000).
			Msg("http request")
	})
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	return uuid.New().String()
}

func requestLogger(logger *zerolog.Logger, reqID string, r *http.Request, ip string) zerolog.Logger {
	return logger.With().
		Str(FieldRequestID, reqID).
		Str(FieldMethod, r.Method).
		Str(FieldPath, r.URL.Path).
		Str(FieldClientIP, ip).
		Logger()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
