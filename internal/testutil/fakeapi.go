// Package testutil provides an in-memory fake of the remote task service for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Default credentials accepted by FakeAPI.
const (
	Username    = "tester"
	Password    = "testpass123"
	AccessToken = "fake-access-token"
)

// Request is a request recorded by FakeAPI.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Record is a task as stored by FakeAPI, using the service's wire shape.
type Record struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	DueDate     *string `json:"due_date"`
	CreatedAt   string  `json:"created_at"`
}

// FakeAPI is an httptest server implementing the token endpoint and the task collection.
// All fields except the embedded server may be changed before the first request.
type FakeAPI struct {
	*httptest.Server

	Username    string
	Password    string
	AccessToken string

	mu            sync.Mutex
	nextID        int64
	records       []Record
	requests      []Request
	tokenRequests int
	now           time.Time
}

// NewFakeAPI starts a FakeAPI that is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		Username:    Username,
		Password:    Password,
		AccessToken: AccessToken,
		nextID:      1,
		now:         time.Date(2026, time.January, 2, 9, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token/", f.handleToken)
	mux.HandleFunc("GET /api/tasks/", f.authorized(f.handleList))
	mux.HandleFunc("POST /api/tasks/", f.authorized(f.handleCreate))
	mux.HandleFunc("GET /api/tasks/{id}/", f.authorized(f.handleGet))
	mux.HandleFunc("PATCH /api/tasks/{id}/", f.authorized(f.handlePatch))
	mux.HandleFunc("DELETE /api/tasks/{id}/", f.authorized(f.handleDelete))

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

// AddTask stores a task directly and returns its record.
func (f *FakeAPI) AddTask(title, description string, completed bool) Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(Record{Title: title, Description: description, Completed: completed})
}

// Tasks returns the stored tasks in insertion order.
func (f *FakeAPI) Tasks() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.records)
}

// Requests returns every request received, in arrival order.
func (f *FakeAPI) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// LastRequest returns the most recent request matching method and path prefix.
func (f *FakeAPI) LastRequest(method, pathPrefix string) (Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		r := f.requests[i]
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			return r, true
		}
	}
	return Request{}, false
}

// TokenRequests returns how many token exchanges were attempted.
func (f *FakeAPI) TokenRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenRequests
}

func (f *FakeAPI) insert(r Record) Record {
	r.ID = f.nextID
	f.nextID++
	r.CreatedAt = f.now.Add(time.Duration(r.ID) * time.Minute).Format(time.RFC3339)
	f.records = append(f.records, r)
	return r
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.AccessToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}
		next(w, r)
	}
}

func (f *FakeAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenRequests++
	f.mu.Unlock()

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	if creds.Username != f.Username || creds.Password != f.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No active account found with the given credentials",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"refresh": "fake-refresh-token",
		"access":  f.AccessToken,
	})
}

func (f *FakeAPI) handleList(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	out := slices.Clone(f.records)
	f.mu.Unlock()

	// Newest first, like the service's -created_at ordering
	slices.Reverse(out)
	if out == nil {
		out = []Record{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in Record
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"title": {"This field may not be blank."}})
		return
	}

	f.mu.Lock()
	created := f.insert(in)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, created)
}

func (f *FakeAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.find(r)
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, f.records[i])
}

func (f *FakeAPI) handlePatch(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.find(r)
	if !ok {
		writeNotFound(w)
		return
	}

	rec := f.records[i]
	for key, raw := range fields {
		var err error
		switch key {
		case "title":
			err = json.Unmarshal(raw, &rec.Title)
		case "description":
			err = json.Unmarshal(raw, &rec.Description)
		case "completed":
			err = json.Unmarshal(raw, &rec.Completed)
		case "due_date":
			rec.DueDate = nil
			err = json.Unmarshal(raw, &rec.DueDate)
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{key: err.Error()})
			return
		}
	}
	f.records[i] = rec
	writeJSON(w, http.StatusOK, rec)
}

func (f *FakeAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.find(r)
	if !ok {
		writeNotFound(w)
		return
	}
	f.records = slices.Delete(f.records, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

// find returns the index of the task named by the request path. Callers hold f.mu.
func (f *FakeAPI) find(r *http.Request) (int, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	i := slices.IndexFunc(f.records, func(rec Record) bool { return rec.ID == id })
	return i, i >= 0
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Task matches the given query."})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("encoding fake response: %v", err))
	}
}
