package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/information-sharing-networks/ecommerce-api/internal/config"
)

func testConfig(port int) *config.ServerEnvironment {
	return &config.ServerEnvironment{
		Environment:           "test",
		Host:                  "127.0.0.1",
		Port:                  port,
		LogLevel:              "none",
		ServerShutdownTimeout: 5 * time.Second,
		MaxRequestSize:        102400,
	}
}

// syncBuffer lets the server goroutine and the test share a log buffer
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// findFreePort asks the kernel for a free port
func findFreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func TestRouter(t *testing.T) {
	handler := NewServer(testConfig(5000), discardLogger()).Handler()

	tests := []struct {
		name        string
		method      string
		path        string
		origin      string
		contentType string
		body        string
		wantCode    int
		wantBody    string
		wantNoBody  bool
	}{
		{name: "root", method: http.MethodGet, path: "/", wantCode: http.StatusOK, wantBody: "E-commerce API is running!"},
		{name: "root cross-origin", method: http.MethodGet, path: "/", origin: "https://shop.example.com", wantCode: http.StatusOK, wantBody: "E-commerce API is running!"},
		{name: "root with json body", method: http.MethodGet, path: "/", contentType: "application/json", body: `{"a":1}`, wantCode: http.StatusOK, wantBody: "E-commerce API is running!"},
		{name: "root head", method: http.MethodHead, path: "/", wantCode: http.StatusOK, wantNoBody: true},
		{name: "unknown route", method: http.MethodGet, path: "/products", wantCode: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, path: "/", wantCode: http.StatusMethodNotAllowed},
		{name: "malformed json", method: http.MethodPost, path: "/", contentType: "application/json", body: `{`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rr.Body.String())
			}
			if tt.wantNoBody {
				assert.Empty(t, rr.Body.String())
			}
			assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

			if tt.origin != "" {
				assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
			}

			// requests rejected by the body parser never reach the later stages
			if tt.wantCode != http.StatusBadRequest {
				assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
				assert.Equal(t, "SAMEORIGIN", rr.Header().Get("X-Frame-Options"))
			}
		})
	}
}

func TestRouter_Preflight(t *testing.T) {
	handler := NewServer(testConfig(5000), discardLogger()).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig(5000)
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	handler := NewServer(cfg, discardLogger()).Handler()

	codes := make([]int, 0, 2)
	for range 2 {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStart_ServesAndShutsDown(t *testing.T) {
	port := findFreePort(t)
	logs := &syncBuffer{}
	server := NewServer(testConfig(port), slog.New(slog.NewTextHandler(logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get(baseURL + "/")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "E-commerce API is running!", string(body))

	assert.Contains(t, logs.String(), fmt.Sprintf("Server is running on port %d", port))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_BindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	port := occupied.Addr().(*net.TCPAddr).Port
	server := NewServer(testConfig(port), discardLogger())

	done := make(chan error, 1)
	go func() { done <- server.Start(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to bind")
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return on bind failure")
	}
}
