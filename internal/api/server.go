// Package api is the demo answer-collection server: it serves the worker
// form and stores submitted answers in memory for local development without
// the marketplace in the loop.
package api

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

//go:embed form.html
var formHTML []byte

// Record is one stored worker answer.
type Record struct {
	ReceiptID    string    `json:"receiptId"`
	AssignmentID string    `json:"assignmentId"`
	Answer       string    `json:"answer"`
	Timestamp    time.Time `json:"timestamp"`
}

type Server struct {
	r  *chi.Mux
	mu sync.RWMutex
	// answers keyed by assignment id; in-memory only, this server is a
	// development aid
	answers map[string]Record
}

func NewServer() *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, answers: make(map[string]Record)}

	r.Get("/health", s.health)
	r.Get("/mturk-form", s.form)
	r.Post("/submit", s.submit)
	r.Get("/api/answers", s.getAnswer)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) form(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write(formHTML)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	assignmentID := r.FormValue("assignmentId")
	text := r.FormValue("answer")
	if assignmentID == "" || text == "" {
		http.Error(w, "Missing required fields", 400)
		return
	}

	rec := Record{
		ReceiptID:    "ans_" + uuid.NewString(),
		AssignmentID: assignmentID,
		Answer:       text,
		Timestamp:    time.Now().UTC(),
	}
	s.mu.Lock()
	s.answers[assignmentID] = rec
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<html><body><h1>Thank you!</h1><p>Your response has been submitted successfully.</p></body></html>`))
}

func (s *Server) getAnswer(w http.ResponseWriter, r *http.Request) {
	assignmentID := r.URL.Query().Get("assignmentId")
	if assignmentID == "" {
		writeJSON(w, 400, map[string]string{"error": "Missing assignmentId parameter"})
		return
	}
	s.mu.RLock()
	rec, ok := s.answers[assignmentID]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, 404, map[string]string{"error": "Answer not found"})
		return
	}
	writeJSON(w, 200, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
