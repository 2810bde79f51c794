package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/barberbradleyt/Cache/cache"
)

func newTestGateway(t *testing.T) (*Gateway, *http.ServeMux) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := cache.New[json.RawMessage](ctx, time.Minute, 100)
	if err != nil {
		t.Fatalf("unexpected error creating cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	g, err := NewGateway(Config{Port: 8080}, c, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error creating gateway: %v", err)
	}

	mux := http.NewServeMux()
	g.RegisterHTTPHandlers("/v1/", mux)
	return g, mux
}

func doRequest(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetOrGenerateRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "upstream-id-123")
	if id := getOrGenerateRequestID(req); id != "upstream-id-123" {
		t.Errorf("expected to extract upstream ID, got %q", id)
	}

	req = httptest.NewRequest("GET", "/test", nil)
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := getOrGenerateRequestID(req)
		if id == "" {
			t.Fatal("expected generated request ID, got empty string")
		}
		if ids[id] {
			t.Errorf("generated duplicate request ID: %s", id)
		}
		ids[id] = true
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Port: 8080}).Validate(); err != nil {
		t.Errorf("unexpected error for valid config: %v", err)
	}
	if err := (Config{Port: 0}).Validate(); err == nil {
		t.Error("expected error for zero port")
	}
	if err := (Config{Port: 70000}).Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}
	if err := (Config{Port: 8080, MaxBodyBytes: -1}).Validate(); err == nil {
		t.Error("expected error for negative body limit")
	}
}

func TestNewGatewayRequiresCache(t *testing.T) {
	if _, err := NewGateway(Config{Port: 8080}, nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil cache")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	_, mux := newTestGateway(t)

	rec := doRequest(mux, "PUT", "/v1/cache/user:1", `{"value": {"name": "alice"}}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(mux, "GET", "/v1/cache/user:1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on response")
	}

	var resp struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error parsing response: %v", err)
	}
	if resp.Key != "user:1" {
		t.Errorf("expected key 'user:1', got %q", resp.Key)
	}
	if !strings.Contains(string(resp.Value), "alice") {
		t.Errorf("unexpected value: %s", resp.Value)
	}
}

func TestGetMissingKey(t *testing.T) {
	_, mux := newTestGateway(t)

	rec := doRequest(mux, "GET", "/v1/cache/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error parsing error body: %v", err)
	}
	if resp["error"] != "key not found" {
		t.Errorf("unexpected error message: %v", resp["error"])
	}
}

func TestPutRejectsBadBody(t *testing.T) {
	_, mux := newTestGateway(t)

	rec := doRequest(mux, "PUT", "/v1/cache/k", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}

	rec = doRequest(mux, "PUT", "/v1/cache/k", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing value, got %d", rec.Code)
	}
}

func TestPutRejectsOversizedBody(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := cache.New[json.RawMessage](ctx, time.Minute, 100)
	if err != nil {
		t.Fatalf("unexpected error creating cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	g, err := NewGateway(Config{Port: 8080, MaxBodyBytes: 64}, c, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error creating gateway: %v", err)
	}
	mux := http.NewServeMux()
	g.RegisterHTTPHandlers("/v1/", mux)

	big := `{"value": "` + strings.Repeat("x", 200) + `"}`
	rec := doRequest(mux, "PUT", "/v1/cache/k", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	_, mux := newTestGateway(t)

	doRequest(mux, "PUT", "/v1/cache/k", `{"value": 1}`)

	rec := doRequest(mux, "DELETE", "/v1/cache/k", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(mux, "DELETE", "/v1/cache/k", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for absent key, got %d", rec.Code)
	}
}

func TestClearAndSize(t *testing.T) {
	_, mux := newTestGateway(t)

	doRequest(mux, "PUT", "/v1/cache/a", `{"value": 1}`)
	doRequest(mux, "PUT", "/v1/cache/b", `{"value": 2}`)

	rec := doRequest(mux, "GET", "/v1/size", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var size map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &size); err != nil {
		t.Fatalf("unexpected error parsing size: %v", err)
	}
	if size["size"] != 2 {
		t.Errorf("expected size 2, got %d", size["size"])
	}

	rec = doRequest(mux, "POST", "/v1/clear", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(mux, "GET", "/v1/size", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &size)
	if size["size"] != 0 {
		t.Errorf("expected size 0 after clear, got %d", size["size"])
	}
}

func TestStats(t *testing.T) {
	_, mux := newTestGateway(t)

	doRequest(mux, "PUT", "/v1/cache/a", `{"value": 1}`)
	doRequest(mux, "GET", "/v1/cache/a", "")
	doRequest(mux, "GET", "/v1/cache/missing", "")

	rec := doRequest(mux, "GET", "/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var summary cache.StatsSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unexpected error parsing stats: %v", err)
	}
	if summary.Sets != 1 || summary.Hits != 1 || summary.Misses != 1 {
		t.Errorf("unexpected stats: %+v", summary)
	}
}

func TestHealthzWithoutMonitor(t *testing.T) {
	_, mux := newTestGateway(t)

	rec := doRequest(mux, "GET", "/v1/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequestCounters(t *testing.T) {
	g, mux := newTestGateway(t)

	doRequest(mux, "PUT", "/v1/cache/a", `{"value": 1}`)
	doRequest(mux, "GET", "/v1/cache/a", "")
	doRequest(mux, "GET", "/v1/cache/missing", "")

	total, success, failed := g.RequestCounts()
	if total != 3 || success != 2 || failed != 1 {
		t.Errorf("expected 3/2/1 request counts, got %d/%d/%d", total, success, failed)
	}
}

func TestCORS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := cache.New[json.RawMessage](ctx, time.Minute, 100)
	if err != nil {
		t.Fatalf("unexpected error creating cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	g, err := NewGateway(Config{
		Port:        8080,
		EnableCORS:  true,
		CORSOrigins: []string{"https://example.com"},
	}, c, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error creating gateway: %v", err)
	}
	mux := http.NewServeMux()
	g.RegisterHTTPHandlers("/v1/", mux)

	req := httptest.NewRequest("GET", "/v1/size", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("expected CORS origin echo, got %q", got)
	}

	req = httptest.NewRequest("GET", "/v1/size", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers for disallowed origin, got %q", got)
	}
}
