package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Protocol-Lattice/companion/pkg/companion"
	"github.com/Protocol-Lattice/companion/pkg/embed"
	"github.com/Protocol-Lattice/companion/pkg/models"
	"github.com/Protocol-Lattice/companion/pkg/store"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	engine, err := companion.New(companion.Options{
		Store:    store.NewInMemoryStore(),
		Model:    models.NewDummyLLM(""),
		Embedder: embed.NewDegrading(embed.DummyEmbedder{}),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewServer(engine, opts)
}

func TestChatMintsIdentityCookie(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var aid *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "aid" {
			aid = c
		}
	}
	if aid == nil {
		t.Fatal("no aid cookie set on first contact")
	}
	if !aid.HttpOnly {
		t.Fatal("aid cookie must be HttpOnly")
	}
	if aid.MaxAge != 365*24*60*60 {
		t.Fatalf("aid cookie MaxAge = %d, want one year", aid.MaxAge)
	}

	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if resp.Reply == "" {
		t.Fatal("empty reply")
	}
}

func TestChatKeepsExistingCookie(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`))
	req.AddCookie(&http.Cookie{Name: "aid", Value: "existing-aid"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "aid" {
			t.Fatal("server must not re-mint an existing identity")
		}
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatRejectsWrongMethod(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestMemoryListsStoredFacts(t *testing.T) {
	srv := newTestServer(t, Options{})

	chat := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"my name is Ada"}`))
	chat.AddCookie(&http.Cookie{Name: "aid", Value: "aid-1"})
	srv.ServeHTTP(httptest.NewRecorder(), chat)

	req := httptest.NewRequest(http.MethodGet, "/memory", nil)
	req.AddCookie(&http.Cookie{Name: "aid", Value: "aid-1"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []struct {
			Kind string `json:"kind"`
			Text string `json:"text"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Text != "User name is Ada" {
		t.Fatalf("unexpected memory listing: %+v", resp.Items)
	}
}

func TestMemoryEmptyForNewIdentity(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/memory", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	srv := newTestServer(t, Options{AllowOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials must be allowed for cookie auth")
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	srv := newTestServer(t, Options{AllowOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin must not be echoed")
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RatePerMinute: 2})

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.AddCookie(&http.Cookie{Name: "aid", Value: "limited"})
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", lastCode)
	}

	// A different identity is unaffected.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.AddCookie(&http.Cookie{Name: "aid", Value: "other"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other identity = %d, want 200", rec.Code)
	}
}
