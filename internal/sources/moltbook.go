package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"agent-trust-lab/internal/domain"
)

// MoltbookOptions configures the social platform adapter.
type MoltbookOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *log.Logger
}

// MoltbookAdapter fetches agent profiles from the Moltbook social platform.
type MoltbookAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *log.Logger
}

var _ Adapter = (*MoltbookAdapter)(nil)

// NewMoltbookAdapter creates the social platform adapter.
func NewMoltbookAdapter(opts MoltbookOptions) *MoltbookAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.moltbook.com/api/v1"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[moltbook] ", log.LstdFlags)
	}
	return &MoltbookAdapter{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		client:  newHTTPClient(opts.Timeout),
		logger:  opts.Logger,
	}
}

// Name implements Adapter.
func (a *MoltbookAdapter) Name() string { return "moltbook" }

// moltbookProfileResponse is the upstream profile payload.
type moltbookProfileResponse struct {
	Success bool `json:"success"`
	Agent   struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		Karma         int    `json:"karma"`
		FollowerCount int    `json:"follower_count"`
		AvatarURL     string `json:"avatar_url"`
		IsActive      bool   `json:"is_active"`
		IsClaimed     bool   `json:"is_claimed"`
		LastActive    string `json:"last_active"`
		CreatedAt     string `json:"created_at"`
		Owner         *struct {
			XHandle        string `json:"x_handle"`
			XFollowerCount int    `json:"x_follower_count"`
		} `json:"owner"`
	} `json:"agent"`
	RecentPosts []struct {
		Upvotes      int `json:"upvotes"`
		CommentCount int `json:"comment_count"`
	} `json:"recentPosts"`
}

// Fetch retrieves an agent profile by username.
func (a *MoltbookAdapter) Fetch(ctx context.Context, id string) (*domain.Snapshot, error) {
	u := fmt.Sprintf("%s/agents/profile?name=%s", a.baseURL, url.QueryEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Printf("profile request failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}
	defer drainClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		a.logger.Printf("profile request for %s: HTTP %d", id, resp.StatusCode)
		return nil, ErrUnavailable
	}

	var payload moltbookProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		a.logger.Printf("profile decode failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}
	// The API reports unknown agents as an unsuccessful 200.
	if !payload.Success {
		return nil, ErrNotFound
	}

	return a.normalize(id, &payload), nil
}

// Search is profile lookup by name on this platform.
func (a *MoltbookAdapter) Search(ctx context.Context, query string) (*domain.Snapshot, error) {
	return a.Fetch(ctx, query)
}

// normalize maps the upstream payload to a canonical snapshot.
func (a *MoltbookAdapter) normalize(id string, payload *moltbookProfileResponse) *domain.Snapshot {
	agent := payload.Agent

	snap := &domain.Snapshot{
		Source:      domain.SourceMoltbook,
		Identifier:  id,
		DisplayName: agent.Name,
		AvatarURL:   agent.AvatarURL,
		Description: agent.Description,
		Karma:       int64p(int64(agent.Karma)),
		Followers:   int64p(int64(agent.FollowerCount)),
		Verified:    boolp(agent.IsClaimed),
		Claimed:     boolp(agent.IsClaimed),
		Active:      boolp(agent.IsActive),
		PostCount:   int64p(int64(len(payload.RecentPosts))),
		FetchedAt:   time.Now().UTC(),
	}
	if snap.DisplayName == "" {
		snap.DisplayName = id
	}

	if owner := agent.Owner; owner != nil {
		snap.XHandle = owner.XHandle
		snap.XFollowers = int64p(int64(owner.XFollowerCount))
	}

	if t, err := time.Parse(time.RFC3339, agent.CreatedAt); err == nil {
		snap.CreatedAt = timep(t)
	}
	if t, err := time.Parse(time.RFC3339, agent.LastActive); err == nil {
		snap.LastActiveAt = timep(t)
	}

	if n := len(payload.RecentPosts); n > 0 {
		var upvotes, comments int
		for _, p := range payload.RecentPosts {
			upvotes += p.Upvotes
			comments += p.CommentCount
		}
		snap.AvgUpvotes = f64p(float64(upvotes) / float64(n))
		snap.AvgComments = f64p(float64(comments) / float64(n))
	}

	return snap
}
