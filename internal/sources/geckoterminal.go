package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"agent-trust-lab/internal/domain"
)

// GeckoTerminalOptions configures the GeckoTerminal market adapter.
type GeckoTerminalOptions struct {
	BaseURL string
	Network string
	Timeout time.Duration
	Logger  *log.Logger
}

// GeckoTerminalAdapter fetches token attributes from the GeckoTerminal
// public API. It reports fewer fields than DexScreener (no socials, no
// liquidity) and serves as the second hop in the market fallback chain.
type GeckoTerminalAdapter struct {
	baseURL string
	network string
	client  *http.Client
	logger  *log.Logger
}

var _ Adapter = (*GeckoTerminalAdapter)(nil)

// NewGeckoTerminalAdapter creates the GeckoTerminal adapter.
func NewGeckoTerminalAdapter(opts GeckoTerminalOptions) *GeckoTerminalAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.geckoterminal.com/api/v2"
	}
	if opts.Network == "" {
		opts.Network = "base"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[geckoterminal] ", log.LstdFlags)
	}
	return &GeckoTerminalAdapter{
		baseURL: opts.BaseURL,
		network: opts.Network,
		client:  newHTTPClient(opts.Timeout),
		logger:  opts.Logger,
	}
}

// Name implements Adapter.
func (a *GeckoTerminalAdapter) Name() string { return "geckoterminal" }

type geckoTokenResponse struct {
	Data struct {
		Attributes struct {
			Name      string `json:"name"`
			Symbol    string `json:"symbol"`
			ImageURL  string `json:"image_url"`
			PriceUSD  string `json:"price_usd"`
			VolumeUSD struct {
				H24 string `json:"h24"`
			} `json:"volume_usd"`
			TotalReserveInUSD string `json:"total_reserve_in_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

// Fetch retrieves token attributes for a contract address on the configured
// network.
func (a *GeckoTerminalAdapter) Fetch(ctx context.Context, id string) (*domain.Snapshot, error) {
	u := fmt.Sprintf("%s/networks/%s/tokens/%s", a.baseURL, url.PathEscape(a.network), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Printf("token request failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}
	defer drainClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		a.logger.Printf("token request for %s: HTTP %d", id, resp.StatusCode)
		return nil, ErrUnavailable
	}

	var payload geckoTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		a.logger.Printf("token decode failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}

	attrs := payload.Data.Attributes
	if attrs.Name == "" && attrs.Symbol == "" {
		return nil, ErrNotFound
	}

	snap := &domain.Snapshot{
		Source:      domain.SourceGeckoTerminal,
		Identifier:  id,
		DisplayName: attrs.Name,
		Symbol:      attrs.Symbol,
		AvatarURL:   attrs.ImageURL,
		FetchedAt:   time.Now().UTC(),
	}
	if v, err := strconv.ParseFloat(attrs.PriceUSD, 64); err == nil {
		snap.PriceUSD = f64p(v)
	}
	if v, err := strconv.ParseFloat(attrs.VolumeUSD.H24, 64); err == nil {
		snap.VolumeUSD24h = f64p(v)
	}
	// GeckoTerminal reports pooled reserve rather than pair liquidity; it is
	// the closest available stand-in when DexScreener is down.
	if v, err := strconv.ParseFloat(attrs.TotalReserveInUSD, 64); err == nil {
		snap.LiquidityUSD = f64p(v)
	}
	snap.SetExt("network", a.network)

	return snap, nil
}

// Search is unsupported; GeckoTerminal has no free-text token search on the
// endpoints this adapter uses.
func (a *GeckoTerminalAdapter) Search(ctx context.Context, query string) (*domain.Snapshot, error) {
	return nil, ErrNotFound
}
