package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bonkmc/modernauth/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, slogx.ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("bogus"))
	require.Equal(t, slog.LevelDebug+2, slogx.ParseLevel("debug+2"))
}

func TestNew_RedactsCredentials(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "modernauth", Env: "prod", Format: "json", Output: &buf})
	logger.Info("tenant call", "tenant_id", "bonk-network", "secret", "hunter2", "Token", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "bonk-network", entry["tenant_id"])
	require.Equal(t, slogx.Redacted, entry["secret"])
	require.Equal(t, slogx.Redacted, entry["Token"])
	require.Equal(t, "modernauth", entry["service"])
	require.NotContains(t, buf.String(), "hunter2")
}

func TestFromContext_Default(t *testing.T) {
	require.Equal(t, slog.Default(), slogx.FromContext(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tokens/{tenant_id}/{token}/status", func(w http.ResponseWriter, r *http.Request) {
		slogx.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	})

	h := slogx.HTTPMiddleware(logger)(mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/tokens/s1/secret-token-value/status", nil)
	req.Header.Set(slogx.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get(slogx.RequestIDHeader))
	require.NotContains(t, buf.String(), "secret-token-value")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	require.Equal(t, "http_request", entry["msg"])
	require.Equal(t, "req-1", entry["req_id"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
	require.Equal(t, "GET /v1/tokens/{tenant_id}/{token}/status", entry["route"])
}
