// Package httpapi exposes the companion engine over a small JSON API.
//
//	POST /chat    {"message": "..."} -> {"reply": "..."}
//	GET  /memory  -> {"items": [...]}
//	GET  /healthz -> ok
//
// Callers are identified by an anonymous "aid" cookie minted on first
// contact. Validation problems return 400 with a reason; everything else
// that fails returns a generic 500 and the detail goes to the log only.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/companion/pkg/companion"
	"github.com/Protocol-Lattice/companion/pkg/model"
)

const aidCookieName = "aid"

// Options configures the HTTP surface. Zero values give a permissive
// development setup: any origin, lenient rate limits, lax cookies.
type Options struct {
	// AllowOrigins lists origins allowed for cross-site requests. Empty
	// means same-origin only; a single "*" echoes the caller's origin.
	AllowOrigins []string

	// CookieSecure marks the aid cookie Secure. Required when the frontend
	// is served over https from another origin.
	CookieSecure bool

	// CookieSameSite defaults to Lax when unset.
	CookieSameSite http.SameSite

	// RatePerMinute caps requests per client identity. Zero disables
	// limiting.
	RatePerMinute int
}

// Server routes HTTP traffic to the companion engine.
type Server struct {
	engine  *companion.Engine
	opts    Options
	limiter *clientLimiter
	mux     *http.ServeMux
}

func NewServer(engine *companion.Engine, opts Options) *Server {
	if opts.CookieSameSite == 0 {
		opts.CookieSameSite = http.SameSiteLaxMode
	}
	s := &Server{
		engine: engine,
		opts:   opts,
		mux:    http.NewServeMux(),
	}
	if opts.RatePerMinute > 0 {
		s.limiter = newClientLimiter(opts.RatePerMinute)
	}
	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/memory", s.handleMemory)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.applyCORS(w, r) {
		return
	}
	aid := s.ensureAID(w, r)
	if s.limiter != nil && !s.limiter.allow(aid) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	s.mux.ServeHTTP(w, r.WithContext(withAID(r.Context(), aid)))
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type memoryResponse struct {
	Items []model.Memory `json:"items"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reply, err := s.engine.Converse(r.Context(), aidFrom(r.Context()), req.Message)
	if err != nil {
		if errors.Is(err, companion.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		log.Printf("[HTTP] chat turn failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items, err := s.engine.Memories(r.Context(), aidFrom(r.Context()))
	if err != nil {
		log.Printf("[HTTP] memory listing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []model.Memory{}
	}
	writeJSON(w, http.StatusOK, memoryResponse{Items: items})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ensureAID returns the caller's anonymous identity, minting and setting a
// cookie when the request carries none. The identity persists for a year.
func (s *Server) ensureAID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(aidCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	aid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     aidCookieName,
		Value:    aid,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: s.opts.CookieSameSite,
	})
	return aid
}

// applyCORS writes CORS headers for allowed origins and short-circuits
// preflight requests. It reports whether the request was fully handled.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin != "" && s.originAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.opts.AllowOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] response encoding failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
