// Package apitest runs an in-memory fake of the finance API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/theirongolddev/fintrack/internal/model"
)

const (
	tokenAlgo = "HS256"
	secret    = "apitest-secret"
)

type user struct {
	Name    string
	Email   string
	Hash    []byte
	Balance string
}

// Server is a fake API. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	auth     *jwtauth.JWTAuth
	requests atomic.Int64

	mu       sync.Mutex
	users    map[string]user
	expenses map[string][]model.FinancialRecord
	incomes  map[string][]model.FinancialRecord
	failWith int
	tokenTTL time.Duration
}

// New starts a fake API and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		auth:     jwtauth.New(tokenAlgo, []byte(secret), nil),
		users:    make(map[string]user),
		expenses: make(map[string][]model.FinancialRecord),
		incomes:  make(map[string][]model.FinancialRecord),
		tokenTTL: time.Hour,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(s.auth))
			r.Use(jwtauth.Authenticator(s.auth))
			r.Use(s.injectFailure)
			r.Get("/expenses", s.handleList(s.expenses))
			r.Post("/expenses", s.handleCreate(s.expenses, true))
			r.Get("/incomes", s.handleList(s.incomes))
			r.Post("/incomes", s.handleCreate(s.incomes, false))
		})
	})
	return r
}

// AddUser registers an account directly.
func (s *Server) AddUser(name, email, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = user{Name: name, Email: email, Hash: hash, Balance: "0"}
}

// Seed replaces the records stored for email.
func (s *Server) Seed(email string, expenses, incomes []model.FinancialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	s.expenses[key] = append([]model.FinancialRecord(nil), expenses...)
	s.incomes[key] = append([]model.FinancialRecord(nil), incomes...)
}

// Records returns what is stored for email.
func (s *Server) Records(email string) (expenses, incomes []model.FinancialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	return append([]model.FinancialRecord(nil), s.expenses[key]...),
		append([]model.FinancialRecord(nil), s.incomes[key]...)
}

// FailWith makes authenticated endpoints answer with status until reset with 0.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.failWith = status
	s.mu.Unlock()
}

// SetTokenTTL changes the lifetime of tokens issued by later logins.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	s.tokenTTL = d
	s.mu.Unlock()
}

// Requests is the number of requests received so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Token issues a valid bearer token for email.
func (s *Server) Token(email string, ttl time.Duration) string {
	_, tok, err := s.auth.Encode(map[string]interface{}{
		"email": strings.ToLower(email),
		"exp":   time.Now().Add(ttl),
	})
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := s.failWith
		s.mu.Unlock()
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "malformed request"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(creds.Email)]
	ttl := s.tokenTTL
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(u.Hash, []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Invalid email or password"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"token":   s.Token(u.Email, ttl),
		"name":    u.Name,
		"email":   u.Email,
		"balance": u.Balance,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "name, email and password are required"})
		return
	}

	s.mu.Lock()
	_, exists := s.users[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]any{"status": "error", "message": "User already exists"})
		return
	}

	s.AddUser(req.Name, req.Email, req.Password)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "message": "Registration successful"})
}

func (s *Server) handleList(store map[string][]model.FinancialRecord) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := claimEmail(r)
		s.mu.Lock()
		records := append([]model.FinancialRecord{}, store[email]...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, records)
	}
}

func (s *Server) handleCreate(store map[string][]model.FinancialRecord, needCategory bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec model.FinancialRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec.Name == "" || !rec.Amount.Valid {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid record"})
			return
		}
		if needCategory && !rec.Category.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid category"})
			return
		}
		rec.ID = uuid.NewString()

		email := claimEmail(r)
		s.mu.Lock()
		store[email] = append(store[email], rec)
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, rec)
	}
}

func claimEmail(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
