package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Agent Announcements</title>
    <item>
      <title>clankermind ships v2</title>
      <guid>post-1</guid>
      <dc:creator>clankermind</dc:creator>
      <pubDate>Sun, 01 Mar 2026 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>untitled drop</title>
      <link>https://example.com/post-2</link>
    </item>
    <item>
      <title>third post</title>
      <guid>post-3</guid>
    </item>
  </channel>
</rss>`

func TestRSSFeed_Poll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	f := NewRSSFeed(srv.URL, testLogger())

	entries, err := f.Poll(context.Background(), 10)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}

	if entries[0].ID != "post-1" || entries[0].Author != "clankermind" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].PublishedAt.IsZero() {
		t.Error("published time not parsed")
	}
	// Link stands in for a missing GUID.
	if entries[1].ID != "https://example.com/post-2" {
		t.Errorf("unexpected fallback id: %q", entries[1].ID)
	}
}

func TestRSSFeed_PollHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	f := NewRSSFeed(srv.URL, testLogger())

	entries, err := f.Poll(context.Background(), 1)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d", len(entries))
	}
}

func TestRSSFeed_PollFailureCollapsesToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewRSSFeed(srv.URL, testLogger())
	if _, err := f.Poll(context.Background(), 10); err != ErrFeedUnavailable {
		t.Errorf("expected ErrFeedUnavailable, got %v", err)
	}
}
