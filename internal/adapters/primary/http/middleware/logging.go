package middleware

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// whether the connection was hijacked for a websocket upgrade.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	hijacked   bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the raw connection to the websocket upgrader. The upgrader
// writes its 101 directly on the hijacked connection, so the status is
// recorded here instead of through WriteHeader.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response does not implement http.Hijacker")
	}
	conn, buf, err := hijacker.Hijack()
	if err == nil {
		rw.hijacked = true
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

// identityAttrs carries verified identity up to the request log. The logger
// runs outside Authenticate, so it seats an empty holder that Authenticate
// fills once the token checks out.
type identityAttrs struct {
	userID    string
	empresaID string
	role      string
}

const identityAttrsKey contextKey = "identity_attrs"

func annotateRequestLog(ctx context.Context, claims *ports.IdentityClaims) {
	attrs, ok := ctx.Value(identityAttrsKey).(*identityAttrs)
	if !ok {
		return
	}
	attrs.userID = claims.UserID.String()
	attrs.empresaID = claims.EmpresaID.String()
	attrs.role = string(claims.Role)
}

// RequestLogger returns a middleware that logs HTTP requests. The query
// string is never logged: websocket handshakes carry the bearer token there.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newResponseWriter(w)
			identity := &identityAttrs{}
			ctx := context.WithValue(r.Context(), identityAttrsKey, identity)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", getClientIP(r),
			}

			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, "request_id", requestID)
			}

			if identity.empresaID != "" {
				attrs = append(attrs,
					"empresa_id", identity.empresaID,
					"user_id", identity.userID,
					"role", identity.role,
				)
			}

			message := "http request"
			if wrapped.hijacked {
				message = "websocket handshake"
			}

			switch {
			case wrapped.statusCode >= 500:
				logger.Error(message, attrs...)
			case wrapped.statusCode >= 400:
				logger.Warn(message, attrs...)
			default:
				logger.Info(message, attrs...)
			}
		})
	}
}

// RecoveryLogger returns a middleware that recovers from panics and logs them
func RecoveryLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"request_id", GetRequestID(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"error", err,
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Erro interno do servidor","code":"INTERNAL_ERROR"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
