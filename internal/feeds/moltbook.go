package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// MoltbookFeedOptions configures the platform feed source.
type MoltbookFeedOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *log.Logger
}

// MoltbookFeed polls the platform's global feed sorted by newest.
type MoltbookFeed struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *log.Logger
}

var _ Source = (*MoltbookFeed)(nil)

// NewMoltbookFeed creates the platform feed source.
func NewMoltbookFeed(opts MoltbookFeedOptions) *MoltbookFeed {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.moltbook.com/api/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[feed] ", log.LstdFlags)
	}
	return &MoltbookFeed{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  opts.Logger,
	}
}

// Name implements Source.
func (f *MoltbookFeed) Name() string { return "moltbook-feed" }

// feedPost tolerates the two author encodings the API has shipped: a nested
// agent object or a flat author string.
type feedPost struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Agent *struct {
		Name string `json:"name"`
	} `json:"agent"`
	AgentUsername string `json:"agent_username"`
	Author        string `json:"author"`
	CreatedAt     string `json:"created_at"`
}

func (p feedPost) author() string {
	switch {
	case p.Agent != nil && p.Agent.Name != "":
		return p.Agent.Name
	case p.AgentUsername != "":
		return p.AgentUsername
	default:
		return p.Author
	}
}

// Poll implements Source. The endpoint has returned both a bare array and an
// object wrapping it under "posts" or "data"; all three are accepted.
func (f *MoltbookFeed) Poll(ctx context.Context, limit int) ([]Entry, error) {
	u := fmt.Sprintf("%s/feed?sort=new&limit=%d", f.baseURL, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Printf("poll failed: %v", err)
		return nil, ErrFeedUnavailable
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		f.logger.Printf("poll: HTTP %d", resp.StatusCode)
		return nil, ErrFeedUnavailable
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	posts, err := decodeFeedPosts(body)
	if err != nil {
		f.logger.Printf("poll decode: %v", err)
		return nil, ErrFeedUnavailable
	}

	entries := make([]Entry, 0, len(posts))
	for _, p := range posts {
		e := Entry{ID: p.ID, Author: p.author(), Title: p.Title}
		if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			e.PublishedAt = t
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func decodeFeedPosts(body []byte) ([]feedPost, error) {
	var direct []feedPost
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Posts []feedPost `json:"posts"`
		Data  []feedPost `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Posts) > 0 {
		return wrapped.Posts, nil
	}
	return wrapped.Data, nil
}
