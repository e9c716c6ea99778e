// Package mock provides an in-process fake of the admin backend: session
// login, CSRF cookie issuance and checking, and an in-memory registration
// table. It records every request so tests can assert on exact traffic.
package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
)

const (
	DefaultEmail    = "admin@skykeenentreprise.com"
	DefaultPassword = "secret"

	csrfCookie    = "csrftoken"
	csrfHeader    = "X-CSRFToken"
	sessionCookie = "sessionid"
)

// Registration is one row of the fake registration table.
type Registration struct {
	ID              int    `json:"id"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	PaymentVerified bool   `json:"payment_verified"`
	Notes           string `json:"notes"`
}

// Request is a recorded inbound request.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Backend is a running fake admin API.
type Backend struct {
	Server *httptest.Server

	mu            sync.Mutex
	email         string
	password      string
	forbidAlways  bool
	failCSRF      bool
	requireLogin  bool
	csrf          string
	tokenSeq      int
	sessions      map[string]bool
	registrations map[int]Registration
	requests      []Request
}

// NewBackend starts a fake backend seeded with a few registrations. Call Close
// when done.
func NewBackend() *Backend {
	b := &Backend{
		email:        DefaultEmail,
		password:     DefaultPassword,
		requireLogin: true,
		sessions:     make(map[string]bool),
		registrations: map[int]Registration{
			7:  {ID: 7, FullName: "Awa Diallo", Email: "awa@example.com"},
			42: {ID: 42, FullName: "Jean Dupont", Email: "jean@example.com", PaymentVerified: true, Notes: "paid cash"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/csrf-token/{$}", b.handleCSRFToken)
	mux.HandleFunc("POST /api/admin/login/{$}", b.handleLogin)
	mux.HandleFunc("POST /api/admin/logout/{$}", b.handleLogout)
	mux.HandleFunc("GET /api/admin/check/{$}", b.handleCheck)
	mux.HandleFunc("GET /api/registrations/{$}", b.authenticated(b.handleList))
	mux.HandleFunc("GET /api/registrations/{id}/{$}", b.authenticated(b.handleGet))
	mux.HandleFunc("PATCH /api/registrations/{id}/verify/{$}", b.authenticated(b.handleVerify))
	mux.HandleFunc("DELETE /api/registrations/{id}/{$}", b.authenticated(b.handleDelete))

	b.Server = httptest.NewServer(b.middleware(mux))
	return b
}

// URL is the backend origin.
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) Close() {
	b.Server.Close()
}

// SetForbidAlways makes every request other than the token endpoint fail with 403.
func (b *Backend) SetForbidAlways(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forbidAlways = v
}

// SetFailCSRFEndpoint makes GET /api/csrf-token/ answer 500.
func (b *Backend) SetFailCSRFEndpoint(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failCSRF = v
}

// SetRequireLogin controls whether registration routes need a session.
func (b *Backend) SetRequireLogin(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requireLogin = v
}

// SetCSRFToken replaces the server-side token without touching any client
// cookie, so a client holding the old cookie is rejected until it refreshes.
func (b *Backend) SetCSRFToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.csrf = token
}

// RotateCSRF invalidates the token clients currently hold.
func (b *Backend) RotateCSRF() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenSeq++
	b.csrf = "rotated-" + strconv.Itoa(b.tokenSeq)
}

// CSRFToken returns the token the server currently accepts.
func (b *Backend) CSRFToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.csrf
}

// Registration returns a copy of one row.
func (b *Backend) Registration(id int) (Registration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.registrations[id]
	return r, ok
}

// Requests returns every recorded request in arrival order.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Hits counts recorded requests matching method and path.
func (b *Backend) Hits(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Reset clears the recorded requests.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

func (b *Backend) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		forbid := b.forbidAlways && r.URL.Path != "/api/csrf-token/"
		token := b.csrf
		b.mu.Unlock()

		if forbid {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Forbidden"})
			return
		}
		if isMutating(r.Method) && (token == "" || r.Header.Get(csrfHeader) != token) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing or incorrect."})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		need := b.requireLogin
		b.mu.Unlock()
		if need && !b.hasSession(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		next(w, r)
	}
}

func (b *Backend) hasSession(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[c.Value]
}

func (b *Backend) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	if b.failCSRF {
		b.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "token service unavailable"})
		return
	}
	b.tokenSeq++
	b.csrf = "token-" + strconv.Itoa(b.tokenSeq)
	token := b.csrf
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: token, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"detail": "CSRF cookie set"})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}

	b.mu.Lock()
	ok := body.Email == b.email && body.Password == b.password
	var session string
	if ok {
		b.tokenSeq++
		session = "session-" + strconv.Itoa(b.tokenSeq)
		b.sessions[session] = true
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid credentials"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    map[string]string{"email": body.Email},
	})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (b *Backend) handleCheck(w http.ResponseWriter, r *http.Request) {
	if !b.hasSession(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "email": b.email})
}

func (b *Backend) handleList(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := make([]Registration, 0, len(b.registrations))
	for _, reg := range b.registrations {
		out = append(out, reg)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	reg, found := b.Registration(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (b *Backend) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		PaymentVerified *bool   `json:"payment_verified"`
		Notes           *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PaymentVerified == nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"payment_verified": {"This field is required."}})
		return
	}

	b.mu.Lock()
	reg, found := b.registrations[id]
	if found {
		reg.PaymentVerified = *body.PaymentVerified
		if body.Notes != nil {
			reg.Notes = *body.Notes
		}
		b.registrations[id] = reg
	}
	b.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	_, found := b.registrations[id]
	delete(b.registrations, id)
	b.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("invalid id %q", r.PathValue("id"))})
		return 0, false
	}
	return id, true
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
