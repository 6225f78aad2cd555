package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRESTSelectFilterAndOrder(t *testing.T) {
	var gotPath string
	var gotQuery string
	var gotAuth string
	var gotAPIKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		_ = json.NewEncoder(w).Encode([]Record{
			{UserID: "u1", TaskID: 1, Text: "A", TaskDate: "2024-03-01"},
		})
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "anon-key", "taskly_tasks")
	q := ByUserAndDay("u1", "2024-03-01")
	q.OrderBy = "task_date"
	q.Descending = true

	recs, err := store.Select(context.Background(), q)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(recs) != 1 || recs[0].TaskID != 1 {
		t.Errorf("unexpected records: %+v", recs)
	}

	if gotPath != "/rest/v1/taskly_tasks" {
		t.Errorf("path = %s, want /rest/v1/taskly_tasks", gotPath)
	}
	want := "order=task_date.desc&task_date=eq.2024-03-01&user_id=eq.u1"
	if gotQuery != want {
		t.Errorf("query = %s, want %s", gotQuery, want)
	}
	if gotAuth != "Bearer anon-key" {
		t.Errorf("Authorization = %s, want Bearer anon-key", gotAuth)
	}
	if gotAPIKey != "anon-key" {
		t.Errorf("apikey = %s, want anon-key", gotAPIKey)
	}
}

func TestRESTBearerTokenOverride(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "anon-key", "taskly_tasks", WithBearerToken("user-token"))
	if _, err := store.Select(context.Background(), ByUser("u1")); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if gotAuth != "Bearer user-token" {
		t.Errorf("Authorization = %s, want Bearer user-token", gotAuth)
	}
}

func TestRESTInsertPostsRecord(t *testing.T) {
	var gotMethod string
	var gotBody Record

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "k", "taskly_tasks")
	rec := Record{
		UserID:      "u1",
		TaskID:      42,
		Text:        "ship it",
		DateCreated: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		TaskDate:    "2024-03-01",
	}
	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotBody.TaskID != 42 || gotBody.Text != "ship it" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
}

func TestRESTUpdatePatchesFiltered(t *testing.T) {
	var gotMethod string
	var gotQuery string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "k", "taskly_tasks")
	completed := true
	err := store.Update(context.Background(), Patch{Completed: &completed}, ByUserDayAndTask("u1", "2024-03-01", 7))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	want := "task_date=eq.2024-03-01&task_id=eq.7&user_id=eq.u1"
	if gotQuery != want {
		t.Errorf("query = %s, want %s", gotQuery, want)
	}
	if _, ok := gotBody["text"]; ok {
		t.Error("patch should omit unset text field")
	}
	if gotBody["completed"] != true {
		t.Errorf("patch completed = %v, want true", gotBody["completed"])
	}
}

func TestRESTDelete(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "k", "taskly_tasks")
	if err := store.Delete(context.Background(), ByUserDayAndTask("u1", "2024-03-01", 7)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
}

func TestRESTServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "k", "taskly_tasks")
	_, err := store.Select(context.Background(), ByUser("u1"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRESTNetworkErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	store := NewRESTStore(server.URL, "k", "taskly_tasks")
	err := store.Insert(context.Background(), Record{UserID: "u1", TaskID: 1, TaskDate: "2024-03-01"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRESTMalformedResponseIsEmptySet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"oops": "not an array`))
	}))
	defer server.Close()

	store := NewRESTStore(server.URL, "k", "taskly_tasks")
	recs, err := store.Select(context.Background(), ByUser("u1"))
	if err != nil {
		t.Fatalf("Select should not fail on malformed body: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty result set, got %+v", recs)
	}
}
