package api_test

import (
	"net/http"
	"testing"

	"microblog/internal/testutil"
)

func TestHealthz(t *testing.T) {
	c := testutil.NewTestServer(t, testutil.DefaultTestServerConfig())
	defer c.Cleanup()

	resp, err := http.Get(c.URL("/healthz"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	testutil.AssertStatus(t, resp.StatusCode, http.StatusOK)
	testutil.AssertContains(t, resp.Body, `"status":"ok"`)
}

func TestReadyz(t *testing.T) {
	c := testutil.NewTestServer(t, testutil.DefaultTestServerConfig())
	defer c.Cleanup()

	resp, err := http.Get(c.URL("/readyz"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	testutil.AssertStatus(t, resp.StatusCode, http.StatusOK)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	testutil.ReadJSONResponse(t, resp, &body)
	if body.Status != "ok" || body.Checks["storage"] != "ok" {
		t.Errorf("unexpected readiness response: %+v", body)
	}
}

func TestOpenAPISpec(t *testing.T) {
	c := testutil.NewTestServer(t, testutil.DefaultTestServerConfig())
	defer c.Cleanup()

	resp, err := http.Get(c.URL("/openapi.yaml"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	testutil.AssertStatus(t, resp.StatusCode, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("unexpected content type %q", ct)
	}
	testutil.AssertContains(t, resp.Body, "openapi: 3.0.3")
}

func TestIndexPage(t *testing.T) {
	c := testutil.NewTestServer(t, testutil.DefaultTestServerConfig())
	defer c.Cleanup()

	resp, err := http.Get(c.URL("/"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	testutil.AssertStatus(t, resp.StatusCode, http.StatusOK)
	testutil.AssertContains(t, resp.Body, "<title>microblog</title>")

	// Unknown top-level paths fall through to a 404.
	resp2, err := http.Get(c.URL("/nope"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp2.Body.Close()
	testutil.AssertStatus(t, resp2.StatusCode, http.StatusNotFound)
}

func TestRequestIDEchoedEndToEnd(t *testing.T) {
	c := testutil.NewTestServer(t, testutil.DefaultTestServerConfig())
	defer c.Cleanup()

	req, err := http.NewRequest(http.MethodGet, c.URL("/healthz"), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-ID", "trace-me-1")
	resp := testutil.DoRequest(t, c.HTTPClient(), req)
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "trace-me-1" {
		t.Errorf("expected request id echoed, got %q", got)
	}
}

func TestRateLimitEndToEnd(t *testing.T) {
	cfg := testutil.DefaultTestServerConfig()
	cfg.EnableRateLimit = true
	cfg.RateLimitConfig.RequestsPerSecond = 1
	cfg.RateLimitConfig.Burst = 3
	c := testutil.NewTestServer(t, cfg)
	defer c.Cleanup()

	limited := false
	for i := 0; i < 10; i++ {
		resp, err := http.Get(c.URL("/healthz"))
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected a 429 once the burst was exhausted")
	}
}
