package sources

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

const moltbookProfileBody = `{
	"success": true,
	"agent": {
		"id": "a-1",
		"name": "Clankermind",
		"description": "an agent of note",
		"karma": 12500,
		"follower_count": 840,
		"avatar_url": "https://cdn.moltbook.com/clankermind.png",
		"is_active": true,
		"is_claimed": true,
		"last_active": "2026-02-28T10:00:00Z",
		"created_at": "2024-01-15T00:00:00Z",
		"owner": {"x_handle": "clankermind", "x_follower_count": 2100}
	},
	"recentPosts": [
		{"upvotes": 10, "comment_count": 4},
		{"upvotes": 20, "comment_count": 2}
	]
}`

func TestMoltbookFetch_NormalizesProfile(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, moltbookProfileBody)
	}))
	defer srv.Close()

	a := NewMoltbookAdapter(MoltbookOptions{BaseURL: srv.URL, APIKey: "sekrit", Logger: testLogger()})

	snap, err := a.Fetch(context.Background(), "clankermind")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotPath != "/agents/profile?name=clankermind" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}

	if snap.DisplayName != "Clankermind" || snap.XHandle != "clankermind" {
		t.Errorf("identity fields wrong: %+v", snap)
	}
	if snap.Karma == nil || *snap.Karma != 12500 {
		t.Errorf("karma not mapped: %v", snap.Karma)
	}
	if snap.Verified == nil || !*snap.Verified {
		t.Error("claimed agent should be verified")
	}
	if snap.PostCount == nil || *snap.PostCount != 2 {
		t.Errorf("post count not mapped: %v", snap.PostCount)
	}
	if snap.AvgUpvotes == nil || *snap.AvgUpvotes != 15 {
		t.Errorf("avg upvotes wrong: %v", snap.AvgUpvotes)
	}
	if snap.CreatedAt == nil || snap.CreatedAt.Year() != 2024 {
		t.Errorf("created_at not parsed: %v", snap.CreatedAt)
	}
}

func TestMoltbookFetch_UnsuccessfulPayloadIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": false}`)
	}))
	defer srv.Close()

	a := NewMoltbookAdapter(MoltbookOptions{BaseURL: srv.URL, Logger: testLogger()})

	if _, err := a.Fetch(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMoltbookFetch_ErrorCollapsing(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"404 is not found", http.StatusNotFound, "", ErrNotFound},
		{"500 is unavailable", http.StatusInternalServerError, "", ErrUnavailable},
		{"429 is unavailable", http.StatusTooManyRequests, "", ErrUnavailable},
		{"garbage body is unavailable", http.StatusOK, "<html>oops</html>", ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			a := NewMoltbookAdapter(MoltbookOptions{BaseURL: srv.URL, Logger: testLogger()})
			if _, err := a.Fetch(context.Background(), "x"); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMoltbookFetch_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	a := NewMoltbookAdapter(MoltbookOptions{BaseURL: srv.URL, Logger: testLogger()})

	if _, err := a.Fetch(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
