// Package keypathtest runs an in-memory key-path database over httptest.
package keypathtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type Server struct {
	*httptest.Server

	Password string

	mu        sync.Mutex
	values    map[string]json.RawMessage
	databases map[string]bool
	token     string
	tokens    atomic.Int64

	delay      atomic.Int64
	failStatus atomic.Int32
	logins     atomic.Int32
}

// NewServer starts a server accepting password and closes it with the test.
func NewServer(t *testing.T, password string) *Server {
	t.Helper()

	s := &Server{
		Password:  password,
		values:    make(map[string]json.RawMessage),
		databases: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("POST /database", s.authorized(s.handleCreateDatabase))
	mux.HandleFunc("GET /database/{db}/{path...}", s.authorized(s.handleGet))
	mux.HandleFunc("POST /database/{db}/{path...}", s.authorized(s.handlePut))

	s.Server = httptest.NewServer(s.slow(mux))
	t.Cleanup(s.Close)
	return s
}

// SetDelay makes every request wait d before being served.
func (s *Server) SetDelay(d time.Duration) { s.delay.Store(int64(d)) }

// FailWith makes every data request answer with status. Zero restores normal behaviour.
func (s *Server) FailWith(status int) { s.failStatus.Store(int32(status)) }

// ExpireToken invalidates the issued token so the next data request gets 401.
func (s *Server) ExpireToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func (s *Server) Logins() int { return int(s.logins.Load()) }

// Value returns the raw JSON stored at path in db.
func (s *Server) Value(db, path string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[db+"/"+path]
	return v, ok
}

func (s *Server) slow(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := time.Duration(s.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status := int(s.failStatus.Load()); status != 0 {
			w.WriteHeader(status)
			return
		}

		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("password") != s.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	s.logins.Add(1)

	token := "tok-" + strconv.FormatInt(s.tokens.Add(1), 10)
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		IfNotExists bool   `json:"if_not_exists"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.databases[req.Name] && !req.IfNotExists {
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.databases[req.Name] = true
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := s.key(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	v, found := s.values[key]
	s.mu.Unlock()

	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"data": v})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := s.key(w, r)
	if !ok {
		return
	}

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.values[key] = body.Data
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) key(w http.ResponseWriter, r *http.Request) (string, bool) {
	db := r.PathValue("db")

	s.mu.Lock()
	exists := s.databases[db]
	s.mu.Unlock()

	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return "", false
	}
	return db + "/" + r.PathValue("path"), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
