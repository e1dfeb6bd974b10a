// Package testserver is an in-memory stand-in for the admin backend used by
// package and CLI tests. It speaks the same envelope, pagination and upload
// contracts as the real service.
package testserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Record is one stored entity.
type Record = map[string]any

// Option customises a Server.
type Option func(*Server)

// WithUser sets the accepted credentials.
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// WithRecords seeds a collection.
func WithRecords(collection string, records ...Record) Option {
	return func(s *Server) {
		for _, r := range records {
			clone := Record{}
			for k, v := range r {
				clone[k] = v
			}
			if _, ok := clone["id"]; !ok {
				clone["id"] = uuid.NewString()
			}
			s.collections[collection] = append(s.collections[collection], clone)
		}
	}
}

// WithHasMorePaging answers list requests with {items, hasMore} instead of
// {items, totalPages}.
func WithHasMorePaging() Option {
	return func(s *Server) {
		s.hasMore = true
	}
}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	username    string
	password    string
	tokens      map[string]bool
	collections map[string][]Record
	uploads     map[string][]byte
	hasMore     bool
	requests    []string
}

// New starts a server. Call Close when done.
func New(options ...Option) *Server {
	s := &Server{
		username:    "admin",
		password:    "secret",
		tokens:      make(map[string]bool),
		collections: make(map[string][]Record),
		uploads:     make(map[string][]byte),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticated)
			r.Post("/auth/logout", s.logout)
			r.Post("/auth/change-password", s.changePassword)
			r.Post("/upload", s.upload)
			r.Post("/upload/{folder}", s.upload)
			r.Get("/{collection}", s.list)
			r.Post("/{collection}", s.create)
			r.Get("/{collection}/{id}", s.get)
			r.Put("/{collection}/{id}", s.update)
			r.Delete("/{collection}/{id}", s.remove)
		})
	})
	return r
}

// URL of the API root.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// Records returns a copy of a collection.
func (s *Server) Records(collection string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.collections[collection]...)
}

// Uploaded returns the stored bytes of an uploaded file by name.
func (s *Server) Uploaded(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[name]
	return data, ok
}

// Requests lists "METHOD path?query" for every request seen.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		line := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			line += "?" + r.URL.RawQuery
		}
		s.mu.Lock()
		s.requests = append(s.requests, line)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeFailure(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	s.mu.Lock()
	valid := body.Username == s.username && body.Password == s.password
	token := ""
	if valid {
		token = uuid.NewString()
		s.tokens[token] = true
	}
	s.mu.Unlock()
	if !valid {
		writeFailure(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"token": token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if body["oldPassword"] != s.password {
		writeFailure(w, http.StatusBadRequest, "password change rejected", map[string][]string{
			"oldPassword": {"is incorrect"},
		})
		return
	}
	if next, ok := body["newPassword"].(string); ok {
		s.password = next
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "expected multipart body", nil)
		return
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if part.FileName() == "" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		name := part.FileName()
		if strings.HasPrefix(name, "reject") {
			writeFailure(w, http.StatusUnprocessableEntity, "unsupported file "+name, nil)
			return
		}
		s.mu.Lock()
		s.uploads[name] = data
		s.mu.Unlock()
		writeSuccess(w, http.StatusOK, map[string]any{"url": s.URL + "/files/" + name})
		return
	}
	writeFailure(w, http.StatusBadRequest, "no file part", nil)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	pageIndex, _ := strconv.Atoi(r.URL.Query().Get("pageIndex"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 {
		pageSize = 10
	}

	s.mu.Lock()
	records := append([]Record(nil), s.collections[collection]...)
	hasMoreMode := s.hasMore
	s.mu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		return fmt.Sprint(records[i]["name"]) < fmt.Sprint(records[j]["name"])
	})
	start := pageIndex * pageSize
	if start > len(records) {
		start = len(records)
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	items := records[start:end]
	if items == nil {
		items = []Record{}
	}

	if hasMoreMode {
		writeSuccess(w, http.StatusOK, map[string]any{"items": items, "hasMore": end < len(records)})
		return
	}
	totalPages := (len(records) + pageSize - 1) / pageSize
	writeSuccess(w, http.StatusOK, map[string]any{"items": items, "totalPages": totalPages})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	var body Record
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := body["name"]; ok {
		for _, existing := range s.collections[collection] {
			if existing["name"] == name {
				writeFailure(w, http.StatusUnprocessableEntity, "record already exists", map[string][]string{
					"name": {"is already taken"},
				})
				return
			}
		}
	}
	body["id"] = uuid.NewString()
	s.collections[collection] = append(s.collections[collection], body)
	writeSuccess(w, http.StatusCreated, body)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.collections[collection] {
		if record["id"] == id {
			writeSuccess(w, http.StatusOK, record)
			return
		}
	}
	writeFailure(w, http.StatusNotFound, "not found", nil)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	var body Record
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, record := range s.collections[collection] {
		if record["id"] == id {
			body["id"] = id
			s.collections[collection][i] = body
			writeSuccess(w, http.StatusOK, body)
			return
		}
	}
	writeFailure(w, http.StatusNotFound, "not found", nil)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.collections[collection]
	for i, record := range records {
		if record["id"] == id {
			s.collections[collection] = append(records[:i], records[i+1:]...)
			writeSuccess(w, http.StatusOK, nil)
			return
		}
	}
	writeFailure(w, http.StatusNotFound, "not found", nil)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeFailure(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	body := map[string]any{"success": false, "message": message}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	writeJSON(w, status, body)
}
