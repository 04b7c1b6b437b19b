package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagraph/internal/testutil"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
)

const schema = `
CREATE TABLE users (id INT PRIMARY KEY, email TEXT);
CREATE TABLE orders (id INT PRIMARY KEY, user_id INT REFERENCES users(id));`

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	return New(cfg)
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPostDiagram(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantNodes   []string
	}{
		{
			name:        "raw sql",
			contentType: "text/plain",
			body:        schema,
			wantNodes:   []string{"users", "orders"},
		},
		{
			name:        "json with focus",
			contentType: "application/json",
			body:        `{"sql": "CREATE TABLE a (id INT); CREATE TABLE b (id INT);", "focus": "b"}`,
			wantNodes:   []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/diagram", tt.contentType, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decode[DiagramResponse](t, rec)
			var ids []string
			for _, n := range resp.Diagram.Nodes {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.wantNodes, ids)
			assert.Equal(t, diagram.Fingerprint(resp.Diagram), resp.Fingerprint)
		})
	}
}

func TestPostDiagram_Direction(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/diagram", "application/json",
		`{"sql": "CREATE TABLE users (id INT); CREATE TABLE orders (user_id INT REFERENCES users(id));", "direction": "tb"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[DiagramResponse](t, rec)
	users, _ := resp.Diagram.Node("users")
	orders, _ := resp.Diagram.Node("orders")
	assert.Equal(t, users.Position.X, orders.Position.X)
	assert.Less(t, orders.Position.Y, users.Position.Y)
}

func TestPostDiagram_BadRequests(t *testing.T) {
	h := newTestServer(t, Config{MaxBodyBytes: 32}).Handler()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantCode    int
		wantMsg     string
	}{
		{"malformed json", "application/json", `{"sql": `, http.StatusBadRequest, "invalid request"},
		{"unknown direction", "application/json", `{"direction": "up"}`, http.StatusBadRequest, "unknown layout direction"},
		{"body too large", "text/plain", schema, http.StatusRequestEntityTooLarge, "exceeds 32 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/diagram", tt.contentType, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode[map[string]any](t, rec)
			assert.Contains(t, resp["message"], tt.wantMsg)
		})
	}
}

func TestSource_ETag(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/source/diagram", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/source", "text/plain", schema)
	require.Equal(t, http.StatusOK, rec.Code)
	put := decode[SourceResponse](t, rec)
	assert.True(t, put.Changed)
	assert.Len(t, put.Fingerprint, 32)

	rec = do(t, h, http.MethodGet, "/api/source/diagram", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	assert.Equal(t, `"`+put.Fingerprint+`"`, etag)
	assert.Len(t, decode[DiagramResponse](t, rec).Diagram.Nodes, 2)

	rec = do(t, h, http.MethodGet, "/api/source/diagram", "", "", "If-None-Match", "W/"+etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	// the same source again leaves the fingerprint alone
	rec = do(t, h, http.MethodPut, "/api/source", "text/plain", schema)
	again := decode[SourceResponse](t, rec)
	assert.False(t, again.Changed)
	assert.Equal(t, put.Fingerprint, again.Fingerprint)
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	rec = do(t, h, http.MethodGet, "/healthz", "", "", RequestIDHeader, "trace-1")
	assert.Equal(t, "trace-1", rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Config{RateLimit: 1, Burst: 1}).Handler()

	rec := do(t, h, http.MethodPost, "/api/diagram", "text/plain", schema)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = do(t, h, http.MethodPost, "/api/diagram", "text/plain", schema)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// health checks are not limited
	rec = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Config{AllowedOrigins: []string{"vscode-webview://abc"}}).Handler()

	rec := do(t, h, http.MethodOptions, "/api/diagram", "", "",
		"Origin", "vscode-webview://abc",
		"Access-Control-Request-Method", http.MethodPost)
	assert.Equal(t, "vscode-webview://abc", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/api/diagram", "", "",
		"Origin", "https://elsewhere.example",
		"Access-Control-Request-Method", http.MethodPost)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && name != "":
			return name, data
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEvents(t *testing.T) {
	s := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)
	name, data := readEvent(t, body)
	assert.Equal(t, "ready", name)
	assert.JSONEq(t, `{"fingerprint":""}`, data)

	res, changed, err := s.SetSource(context.Background(), schema)
	require.NoError(t, err)
	require.True(t, changed)

	name, data = readEvent(t, body)
	assert.Equal(t, "source", name)
	assert.JSONEq(t, `{"fingerprint":"`+res.Fingerprint+`"}`, data)
}

func TestServeListener_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(t, Config{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
