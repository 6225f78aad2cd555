package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/tasklyapp/taskly/internal/cache"
)

func setupClient(t *testing.T, handler http.HandlerFunc) (*Client, *cache.Cache) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return NewClient(srv.URL, "anon-key", c, WithHTTPClient(srv.Client())), c
}

func sessionJSON() map[string]any {
	return map[string]any{
		"access_token":  "token-abc",
		"refresh_token": "refresh-xyz",
		"expires_at":    4102444800,
		"user":          map[string]string{"id": "user-1", "email": "a@b.c"},
	}
}

func TestSignInStoresSession(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody credentials

	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAPIKey = r.Header.Get("apikey")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_ = json.NewEncoder(w).Encode(sessionJSON())
	})

	ctx := context.Background()
	sess, err := client.SignIn(ctx, "a@b.c", "hunter2")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if gotPath != "/auth/v1/token?grant_type=password" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAPIKey != "anon-key" {
		t.Errorf("expected apikey header, got %q", gotAPIKey)
	}
	if gotBody.Email != "a@b.c" || gotBody.Password != "hunter2" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
	if sess.User.ID != "user-1" || sess.AccessToken != "token-abc" {
		t.Errorf("unexpected session: %+v", sess)
	}

	stored, err := client.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if stored.AccessToken != "token-abc" {
		t.Errorf("session not persisted: %+v", stored)
	}
}

func TestSignInBadCredentials(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
	})

	_, err := client.SignIn(context.Background(), "a@b.c", "wrong")
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if got := err.Error(); got != "auth failed: Invalid login credentials" {
		t.Errorf("unexpected error message: %q", got)
	}

	if _, err := client.CurrentSession(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after failed sign-in, got %v", err)
	}
}

func TestSignUpNeedsConfirmation(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		// No session in the response means confirmation is pending.
		_, _ = w.Write([]byte(`{"user":{"id":"user-2","email":"new@b.c"}}`))
	})

	needs, err := client.SignUp(context.Background(), "new@b.c", "hunter2")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if !needs {
		t.Error("expected needsConfirmation")
	}
	if _, err := client.CurrentSession(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("no session should be stored, got %v", err)
	}
}

func TestSignOutClearsSessionEvenWhenEndpointFails(t *testing.T) {
	client, c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	blob, _ := json.Marshal(Session{AccessToken: "tok", User: User{ID: "user-1"}})
	if err := c.SetSession(ctx, blob); err != nil {
		t.Fatalf("SetSession failed: %v", err)
	}

	if err := client.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, err := client.CurrentSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected session cleared, got %v", err)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	var gotRefresh string
	client, c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotRefresh = body["refresh_token"]

		out := sessionJSON()
		out["access_token"] = "token-new"
		_ = json.NewEncoder(w).Encode(out)
	})

	ctx := context.Background()
	blob, _ := json.Marshal(Session{AccessToken: "old", RefreshToken: "refresh-old", User: User{ID: "user-1"}})
	if err := c.SetSession(ctx, blob); err != nil {
		t.Fatalf("SetSession failed: %v", err)
	}

	sess, err := client.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if gotRefresh != "refresh-old" {
		t.Errorf("expected old refresh token sent, got %q", gotRefresh)
	}
	if sess.AccessToken != "token-new" {
		t.Errorf("expected rotated token, got %q", sess.AccessToken)
	}
}

func TestRefreshRejectionClearsSession(t *testing.T) {
	client, c := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"refresh token revoked"}`))
	})

	ctx := context.Background()
	blob, _ := json.Marshal(Session{AccessToken: "old", RefreshToken: "revoked", User: User{ID: "user-1"}})
	if err := c.SetSession(ctx, blob); err != nil {
		t.Fatalf("SetSession failed: %v", err)
	}

	if _, err := client.Refresh(ctx); err == nil {
		t.Fatal("expected refresh to fail")
	}
	if _, err := client.CurrentSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected session cleared after rejection, got %v", err)
	}
}

func TestSessionExpired(t *testing.T) {
	if (Session{ExpiresAt: 0}).Expired() {
		t.Error("zero expiry should never expire")
	}
	if (Session{ExpiresAt: 4102444800}).Expired() {
		t.Error("far-future expiry should not be expired")
	}
	if !(Session{ExpiresAt: 1}).Expired() {
		t.Error("past expiry should be expired")
	}
}
