package verdict

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agent-trust-lab/internal/domain"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func breakdown() domain.ScoreBreakdown {
	return domain.ScoreBreakdown{
		Pillars: []domain.Pillar{
			{Name: "karma", Raw: 5000, Normalized: 61.6, Weight: 0.4, Contribution: 24.64},
		},
		FinalScore:     61.64,
		Classification: "NEUTRAL",
	}
}

func completionServer(t *testing.T, reply string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Error("missing bearer token")
		}
		if capture != nil {
			_ = json.NewDecoder(r.Body).Decode(capture)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestGenerate(t *testing.T) {
	var got chatRequest
	srv := completionServer(t, "  A cautious but credible operator.  ", &got)
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "key", Logger: testLogger()})

	out := c.Generate(context.Background(), "alice", breakdown())
	if out != "A cautious but credible operator." {
		t.Errorf("unexpected verdict %q", out)
	}

	if got.MaxTokens != 150 {
		t.Errorf("max tokens = %d", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if !strings.Contains(got.Messages[1].Content, "@alice") {
		t.Errorf("prompt missing identity: %s", got.Messages[1].Content)
	}
}

func TestCompare(t *testing.T) {
	var got chatRequest
	srv := completionServer(t, "A outpaces B on every pillar.", &got)
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "key", Logger: testLogger()})

	a := &domain.VerificationRecord{Identifier: "alice", Breakdown: breakdown()}
	b := &domain.VerificationRecord{Identifier: "bob"}

	out := c.Compare(context.Background(), a, b)
	if out != "A outpaces B on every pillar." {
		t.Errorf("unexpected verdict %q", out)
	}
	if got.MaxTokens != 200 {
		t.Errorf("max tokens = %d", got.MaxTokens)
	}
}

func TestGenerate_FailuresDegradeToOfflineNotice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "key", Logger: testLogger()})
	if out := c.Generate(context.Background(), "alice", breakdown()); out != OfflineNotice {
		t.Errorf("expected offline notice, got %q", out)
	}

	// No API key short-circuits before any request.
	offline := NewClient(Options{BaseURL: srv.URL, Logger: testLogger()})
	if out := offline.Generate(context.Background(), "alice", breakdown()); out != OfflineNotice {
		t.Errorf("expected offline notice without key, got %q", out)
	}
}

func TestDisabled(t *testing.T) {
	d := Disabled{}
	if d.Generate(context.Background(), "alice", breakdown()) != OfflineNotice {
		t.Error("disabled generator must return the offline notice")
	}
	if d.Compare(context.Background(), nil, nil) != OfflineNotice {
		t.Error("disabled comparison must return the offline notice")
	}
}
