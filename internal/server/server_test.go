// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/logging"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeService struct {
	mu        sync.Mutex
	generated []gateway.GenerateRequest
	fixed     []gateway.FixRequest
	reply     gateway.GenerateResponse
	panicMsg  string
}

func (f *fakeService) Backends(context.Context) []gateway.BackendDescriptor {
	return []gateway.BackendDescriptor{{ID: "openai", Name: "OpenAI", DefaultModel: "gpt-4o"}}
}

func (f *fakeService) Generate(_ context.Context, req gateway.GenerateRequest) gateway.GenerateResponse {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	f.generated = append(f.generated, req)
	f.mu.Unlock()
	return f.reply
}

func (f *fakeService) Fix(_ context.Context, req gateway.FixRequest) gateway.FixResponse {
	f.mu.Lock()
	f.fixed = append(f.fixed, req)
	f.mu.Unlock()
	return gateway.FixResponse{FixedCode: "fixed:" + req.Code}
}

func newTestServer(svc Service, opts Options) *Server {
	opts.Logger = logging.Discard()
	return New(svc, opts)
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// =============================================================================
// ROUTE TESTS
// =============================================================================

func TestHandleConfig(t *testing.T) {
	s := newTestServer(&fakeService{}, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/ai-assistant/config", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	cfg := decodeBody[gateway.ConfigResponse](t, rec)
	if len(cfg.AvailableModels) != 1 || cfg.AvailableModels[0].ID != "openai" {
		t.Errorf("available_models = %+v", cfg.AvailableModels)
	}
}

func TestHandleLLM(t *testing.T) {
	svc := &fakeService{reply: gateway.GenerateResponse{Content: "hi", Model: "gpt-4o", Provider: "OpenAI"}}
	s := newTestServer(svc, Options{})

	body := `{"llm_type":"gemini","prompt":"why?","messages":[{"role":"user","content":"a"}],` +
		`"notebook_content":{"cells":[{"cell_type":"code","source":["x = 1\n","y = 2"],"outputs":[]}],"metadata":{}}}`
	rec := do(t, s.Handler(), http.MethodPost, "/ai-assistant/llm", body, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[gateway.GenerateResponse](t, rec)
	if got.Content != "hi" || got.Provider != "OpenAI" {
		t.Errorf("response = %+v", got)
	}

	if len(svc.generated) != 1 {
		t.Fatalf("service called %d times, want 1", len(svc.generated))
	}
	req := svc.generated[0]
	if req.Backend != "gemini" || req.Prompt != "why?" {
		t.Errorf("request = %+v", req)
	}
	if src := req.NotebookContent.Cells[0].Source; src != "x = 1\ny = 2" {
		t.Errorf("source = %q, want joined lines", src)
	}
}

func TestHandleLLM_DefaultsBackend(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc, Options{})
	do(t, s.Handler(), http.MethodPost, "/ai-assistant/llm", `{"prompt":"p"}`, nil)

	if len(svc.generated) != 1 || svc.generated[0].Backend != "openai" {
		t.Errorf("generated = %+v, want backend openai", svc.generated)
	}
}

func TestHandleLLM_InBandErrorCounted(t *testing.T) {
	svc := &fakeService{reply: gateway.GenerateResponse{Content: "Error generating response: x", Error: true}}
	s := newTestServer(svc, Options{})
	rec := do(t, s.Handler(), http.MethodPost, "/ai-assistant/llm", `{"llm_type":"openai"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for in-band errors", rec.Code)
	}
	if !decodeBody[gateway.GenerateResponse](t, rec).Error {
		t.Error("error flag lost")
	}
	if got := s.Stats().ProviderErrors.Load(); got != 1 {
		t.Errorf("ProviderErrors = %d, want 1", got)
	}
}

func TestHandleFixError(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc, Options{})
	rec := do(t, s.Handler(), http.MethodPost, "/ai-assistant/fix-error",
		`{"llm_type":"ollama","code":"int('x')","errors":[{"message":"ValueError: bad"}]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody[gateway.FixResponse](t, rec).FixedCode; got != "fixed:int('x')" {
		t.Errorf("fixed_code = %q", got)
	}
	if len(svc.fixed) != 1 || svc.fixed[0].Errors[0].Message != "ValueError: bad" {
		t.Errorf("fix request = %+v", svc.fixed)
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(&fakeService{}, Options{})
	for _, path := range []string{"/ai-assistant/llm", "/ai-assistant/fix-error"} {
		rec := do(t, s.Handler(), http.MethodPost, path, `{"prompt":`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		if msg := decodeBody[gateway.ErrorBody](t, rec).Message; msg == "" {
			t.Errorf("%s: missing message", path)
		}
	}
}

func TestPanicReturnsJSON500(t *testing.T) {
	s := newTestServer(&fakeService{panicMsg: "provider exploded"}, Options{})
	rec := do(t, s.Handler(), http.MethodPost, "/ai-assistant/llm", `{}`, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody[gateway.ErrorBody](t, rec)
	if body.Message == "" || body.Error != "provider exploded" {
		t.Errorf("body = %+v", body)
	}
}

func TestNotFoundAndMethod(t *testing.T) {
	s := newTestServer(&fakeService{}, Options{})

	if rec := do(t, s.Handler(), http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
	if rec := do(t, s.Handler(), http.MethodGet, "/ai-assistant/llm", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET llm status = %d, want 405", rec.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(&fakeService{}, Options{})
	do(t, s.Handler(), http.MethodPost, "/ai-assistant/fix-error", `{"code":"x"}`, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/health", "", nil)
	if h := decodeBody[HealthResponse](t, rec); h.Status != "ok" || h.Version != Version {
		t.Errorf("health = %+v", h)
	}

	stats := decodeBody[StatsResponse](t, do(t, s.Handler(), http.MethodGet, "/stats", "", nil))
	if stats.TotalRequests != 3 || stats.FixRequests != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(&fakeService{}, Options{Token: "s3cret"})
	h := s.Handler()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "token nope", http.StatusUnauthorized},
		{"bad scheme", "Basic s3cret", http.StatusUnauthorized},
		{"token scheme", "token s3cret", http.StatusOK},
		{"bearer scheme", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			rec := do(t, h, http.MethodGet, "/ai-assistant/config", "", header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if rec := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", rec.Code)
	}
}

func TestValidateToken(t *testing.T) {
	if ValidateToken("", "") {
		t.Error("empty tokens must not match")
	}
	if !ValidateToken("abc", "abc") {
		t.Error("equal tokens must match")
	}
	if ValidateToken("abc", "abd") {
		t.Error("different tokens must not match")
	}
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(&fakeService{}, Options{AllowedOrigins: []string{"http://localhost:8888"}})
	h := s.Handler()

	header := http.Header{"Origin": {"http://localhost:8888"}}
	rec := do(t, h, http.MethodOptions, "/ai-assistant/llm", "", header)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8888" {
		t.Errorf("allow origin = %q", got)
	}

	rec = do(t, h, http.MethodGet, "/health", "", http.Header{"Origin": {"http://evil.example"}})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

// =============================================================================
// CLIENT CONTRACT AND LIFECYCLE
// =============================================================================

func TestGatewayClientRoundTrip(t *testing.T) {
	svc := &fakeService{reply: gateway.GenerateResponse{Content: "```python\nx\n```", HasCode: true, Model: "gpt-4o", Provider: "OpenAI"}}
	s := newTestServer(svc, Options{Token: "tok"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c := gateway.NewClientWithConfig(&gateway.ClientConfig{BaseURL: ts.URL + "/", Token: "tok", Logger: logging.Discard()})
	ctx := context.Background()

	backends, err := c.FetchConfig(ctx)
	if err != nil || len(backends) != 1 {
		t.Fatalf("FetchConfig = %v, %v", backends, err)
	}
	resp, err := c.Generate(ctx, gateway.GenerateRequest{Backend: "openai", Prompt: "p"})
	if err != nil || !resp.HasCode {
		t.Fatalf("Generate = %+v, %v", resp, err)
	}
	fix, err := c.FixError(ctx, gateway.FixRequest{Backend: "openai", Code: "c"})
	if err != nil || fix.FixedCode != "fixed:c" {
		t.Fatalf("FixError = %+v, %v", fix, err)
	}

	bad := gateway.NewClientWithConfig(&gateway.ClientConfig{BaseURL: ts.URL, Logger: logging.Discard()})
	_, err = bad.FetchConfig(ctx)
	if !gateway.IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("unauthenticated FetchConfig error = %v, want 401", err)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(&fakeService{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
