package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"microblog/internal/observability"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	// No inbound header: one is generated and echoed.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("expected a generated request id in the context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header %q does not match context id %q", got, seen)
	}

	// A clean inbound header is preserved.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "client-id-42" {
		t.Errorf("expected inbound id to be preserved, got %q", seen)
	}

	// A hostile inbound header is replaced.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "evil\nheader")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen == "evil\nheader" || seen == "" {
		t.Errorf("hostile id should be replaced, got %q", seen)
	}
}

func TestRequestIDFlowsToLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := observability.NewLogger(observability.Config{Level: "info", Format: "json", Output: buf})

	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.InfoContext(r.Context(), "inside handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-77")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"request_id":"rid-77"`) {
		t.Errorf("expected request_id in log entry, got: %s", buf.String())
	}
}

func TestSanitizeRequestID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc-123_DEF.x", "abc-123_DEF.x"},
		{"  trimmed  ", "trimmed"},
		{"", ""},
		{"has space", ""},
		{"new\nline", ""},
		{strings.Repeat("a", 65), ""},
		{strings.Repeat("a", 64), strings.Repeat("a", 64)},
	}
	for _, tt := range tests {
		if got := sanitizeRequestID(tt.in); got != tt.want {
			t.Errorf("sanitizeRequestID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyMiddlewaresOrder(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mk("outer"), mk("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("unexpected call order: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected call order: %v", order)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 2}
	handler := RateLimitMiddleware(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(last, req)
		if last.Code != http.StatusOK {
			t.Fatalf("request %d within burst should pass, got %d", i+1, last.Code)
		}
	}
	if last.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("expected X-RateLimit-Limit header")
	}

	// Third request from the same client exhausts the bucket.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}

	// A different client has its own bucket.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client should not be limited, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareTrustedProxy(t *testing.T) {
	tc, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 1, ProxyConfig: tc}
	handler := RateLimitMiddleware(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwardedFor string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:4444"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Both requests arrive from the same proxy, so without the forwarded
	// address they would share one bucket.
	if code := send("203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first client should pass, got %d", code)
	}
	if code := send("203.0.113.8"); code != http.StatusOK {
		t.Fatalf("second client has its own bucket, got %d", code)
	}
	if code := send("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Fatalf("first client's bucket should be exhausted, got %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass with limiting disabled, got %d", i+1, rec.Code)
		}
	}
}

func TestParseTrustedProxies(t *testing.T) {
	tc, err := ParseTrustedProxies("10.0.0.0/8, 192.168.1.0/24")
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	if !tc.IsTrusted("10.1.2.3:555") {
		t.Error("10.1.2.3 should be trusted")
	}
	if tc.IsTrusted("172.16.0.1:555") {
		t.Error("172.16.0.1 should not be trusted")
	}

	if _, err := ParseTrustedProxies("not-a-cidr"); err == nil {
		t.Error("expected error for invalid CIDR")
	}

	empty, err := ParseTrustedProxies("")
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if empty.IsTrusted("10.0.0.1:1") {
		t.Error("empty config trusts nothing")
	}
}

func TestClientKeyWithProxies(t *testing.T) {
	tc, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}

	// Trusted proxy: first X-Forwarded-For entry wins.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4444"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	if got := clientKeyWithProxies(req, tc); got != "203.0.113.7" {
		t.Errorf("expected forwarded client ip, got %q", got)
	}

	// Untrusted remote: the header is ignored.
	req.RemoteAddr = "198.51.100.9:4444"
	if got := clientKeyWithProxies(req, tc); got != "198.51.100.9" {
		t.Errorf("expected remote addr host, got %q", got)
	}
}
