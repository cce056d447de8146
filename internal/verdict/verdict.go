// Package verdict produces short analyst briefings for verification records
// through an OpenAI-compatible chat completions endpoint. Verdicts are
// best-effort color commentary: a failure degrades to a fixed offline notice
// and never fails the verification that requested it.
package verdict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"agent-trust-lab/internal/domain"
)

// OfflineNotice is returned when the generator is unreachable or disabled.
const OfflineNotice = "Analyst oracle temporarily offline. Manual cross-referencing advised."

// Generator produces a verdict for a scored identity.
type Generator interface {
	Generate(ctx context.Context, identifier string, breakdown domain.ScoreBreakdown) string

	// Compare produces a side-by-side briefing for two scored identities.
	Compare(ctx context.Context, a, b *domain.VerificationRecord) string
}

// Options configures the chat completions client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *log.Logger
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *log.Logger
}

var _ Generator = (*Client)(nil)

// NewClient creates a verdict client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[verdict] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.Model,
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  opts.Logger,
	}
}

const systemPrompt = "You are a trust intelligence oracle. Your verdicts help " +
	"a community decide which network identities to trust. Respond in a " +
	"professional, slightly cyber-oracle tone, in English."

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, identifier string, breakdown domain.ScoreBreakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this identity verification data and provide a concise "+
		"'Intelligence Verdict' (max 3 sentences) explaining why the identity got "+
		"this score and any red flags or trust signals.\n\n")
	fmt.Fprintf(&sb, "IDENTITY: @%s\nFINAL TRUST SCORE: %.2f/100 (%s)\n\nBREAKDOWN:\n",
		identifier, breakdown.FinalScore, breakdown.Classification)
	for i, p := range breakdown.Pillars {
		fmt.Fprintf(&sb, "%d. %s (%.0f%%): raw %.1f, normalized %.1f/100, contribution %.1f\n",
			i+1, p.Name, p.Weight*100, p.Raw, p.Normalized, p.Contribution)
	}

	out, err := c.complete(ctx, sb.String(), 150)
	if err != nil {
		c.logger.Printf("generate failed for %s: %v", identifier, err)
		return OfflineNotice
	}
	return out
}

// Compare implements Generator.
func (c *Client) Compare(ctx context.Context, a, b *domain.VerificationRecord) string {
	breakdownA, _ := json.Marshal(a.Breakdown)
	breakdownB, _ := json.Marshal(b.Breakdown)

	prompt := fmt.Sprintf("Compare these two identities and provide a concise "+
		"'Comparison Verdict' (max 3 sentences). Highlight which has better trust "+
		"signals and any significant gaps.\n\n"+
		"IDENTITY A: @%s (score %.2f)\nIDENTITY B: @%s (score %.2f)\n\n"+
		"PILLAR DATA A: %s\nPILLAR DATA B: %s\n",
		a.Identifier, a.Breakdown.FinalScore,
		b.Identifier, b.Breakdown.FinalScore,
		breakdownA, breakdownB)

	out, err := c.complete(ctx, prompt, 200)
	if err != nil {
		c.logger.Printf("compare failed for %s vs %s: %v", a.Identifier, b.Identifier, err)
		return OfflineNotice
	}
	return out
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no api key configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return strings.TrimSpace(payload.Choices[0].Message.Content), nil
}

// Disabled is a Generator that always reports the offline notice. Used when
// no API key is configured.
type Disabled struct{}

var _ Generator = Disabled{}

// Generate implements Generator.
func (Disabled) Generate(context.Context, string, domain.ScoreBreakdown) string {
	return OfflineNotice
}

// Compare implements Generator.
func (Disabled) Compare(context.Context, *domain.VerificationRecord, *domain.VerificationRecord) string {
	return OfflineNotice
}
