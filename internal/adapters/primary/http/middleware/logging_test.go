package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendo/realtime-gateway/internal/auth"
	"github.com/atendo/realtime-gateway/internal/core/domain"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, nil)), buf
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRequestLogger(t *testing.T) {
	t.Run("logs method, path and status", func(t *testing.T) {
		logger, buf := captureLogger()
		handler := RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		entry := decodeLogLine(t, buf)
		assert.Equal(t, "http request", entry["msg"])
		assert.Equal(t, "GET", entry["method"])
		assert.Equal(t, "/health", entry["path"])
		assert.Equal(t, float64(http.StatusNoContent), entry["status"])
		assert.NotEmpty(t, entry["request_id"])
	})

	t.Run("warns on client errors", func(t *testing.T) {
		logger, buf := captureLogger()
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		entry := decodeLogLine(t, buf)
		assert.Equal(t, "WARN", entry["level"])
	})

	t.Run("never logs the query string", func(t *testing.T) {
		logger, buf := captureLogger()
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/ws?token=super-secret-jwt", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotContains(t, buf.String(), "super-secret-jwt")
	})

	t.Run("folds verified identity into the entry", func(t *testing.T) {
		logger, buf := captureLogger()
		tokenManager := auth.NewTokenManager("test-secret-key", time.Hour)
		empresaID := uuid.New()

		handler := RequestLogger(logger)(Authenticate(tokenManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

		token, err := tokenManager.GenerateToken(uuid.New(), empresaID, domain.RoleAtendente)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/presence/123", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		entry := decodeLogLine(t, buf)
		assert.Equal(t, empresaID.String(), entry["empresa_id"])
		assert.Equal(t, string(domain.RoleAtendente), entry["role"])
	})

	t.Run("rejected token leaves identity out", func(t *testing.T) {
		logger, buf := captureLogger()
		tokenManager := auth.NewTokenManager("test-secret-key", time.Hour)

		handler := RequestLogger(logger)(Authenticate(tokenManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

		req := httptest.NewRequest(http.MethodGet, "/presence/123", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		entry := decodeLogLine(t, buf)
		assert.NotContains(t, entry, "empresa_id")
		assert.Equal(t, float64(http.StatusUnauthorized), entry["status"])
	})

	t.Run("hijacked upgrade logs 101", func(t *testing.T) {
		logger, buf := captureLogger()
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
		}))

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		handler.ServeHTTP(&hijackableRecorder{httptest.NewRecorder()}, req)

		entry := decodeLogLine(t, buf)
		assert.Equal(t, "websocket handshake", entry["msg"])
		assert.Equal(t, float64(http.StatusSwitchingProtocols), entry["status"])
	})
}

func TestRecoveryLogger(t *testing.T) {
	logger, buf := captureLogger()
	handler := RecoveryLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Erro interno do servidor","code":"INTERNAL_ERROR"}`, rec.Body.String())

	entry := decodeLogLine(t, buf)
	assert.Equal(t, "panic recovered", entry["msg"])
	assert.Equal(t, "boom", entry["error"])
}

// hijackableRecorder lets handler tests exercise the upgrade path, which
// httptest.ResponseRecorder does not support.
type hijackableRecorder struct {
	*httptest.ResponseRecorder
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	go func() { _ = client.Close() }()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}
