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
	"strings"
	"time"

	"agent-trust-lab/internal/domain"
)

// DexScreenerOptions configures the DexScreener market adapter.
type DexScreenerOptions struct {
	BaseURL string
	// ChainID restricts search results to one chain. Empty accepts any.
	ChainID string
	Timeout time.Duration
	Logger  *log.Logger
}

// DexScreenerAdapter fetches token market data from the DexScreener public
// API. A token can trade in many pairs; the pair with the deepest liquidity
// is taken as the token's canonical market.
type DexScreenerAdapter struct {
	baseURL string
	chainID string
	client  *http.Client
	logger  *log.Logger
}

var _ Adapter = (*DexScreenerAdapter)(nil)

// NewDexScreenerAdapter creates the DexScreener adapter.
func NewDexScreenerAdapter(opts DexScreenerOptions) *DexScreenerAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.dexscreener.com/latest/dex"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[dexscreener] ", log.LstdFlags)
	}
	return &DexScreenerAdapter{
		baseURL: opts.BaseURL,
		chainID: opts.ChainID,
		client:  newHTTPClient(opts.Timeout),
		logger:  opts.Logger,
	}
}

// Name implements Adapter.
func (a *DexScreenerAdapter) Name() string { return "dexscreener" }

type dexPair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H1 float64 `json:"h1"`
	} `json:"priceChange"`
	Info struct {
		ImageURL string `json:"imageUrl"`
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

type dexPairsResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// Fetch retrieves market data for a token contract address.
func (a *DexScreenerAdapter) Fetch(ctx context.Context, id string) (*domain.Snapshot, error) {
	return a.get(ctx, fmt.Sprintf("%s/tokens/%s", a.baseURL, url.PathEscape(id)), id)
}

// Search resolves a free-text query through the pair search endpoint. The
// best-liquidity match on the configured chain wins.
func (a *DexScreenerAdapter) Search(ctx context.Context, query string) (*domain.Snapshot, error) {
	return a.get(ctx, fmt.Sprintf("%s/search/?q=%s", a.baseURL, url.QueryEscape(query)), query)
}

func (a *DexScreenerAdapter) get(ctx context.Context, u, id string) (*domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Printf("request failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		a.logger.Printf("request for %s: HTTP %d", id, resp.StatusCode)
		return nil, ErrUnavailable
	}

	var payload dexPairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		a.logger.Printf("decode failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}

	best := a.bestPair(payload.Pairs)
	if best == nil {
		return nil, ErrNotFound
	}
	return a.normalize(best), nil
}

// bestPair picks the deepest-liquidity pair, restricted to the configured
// chain when one is set.
func (a *DexScreenerAdapter) bestPair(pairs []dexPair) *dexPair {
	var best *dexPair
	for i := range pairs {
		p := &pairs[i]
		if a.chainID != "" && p.ChainID != a.chainID {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}

func (a *DexScreenerAdapter) normalize(p *dexPair) *domain.Snapshot {
	snap := &domain.Snapshot{
		Source:       domain.SourceDexScreener,
		Identifier:   p.BaseToken.Address,
		DisplayName:  p.BaseToken.Name,
		Symbol:       p.BaseToken.Symbol,
		AvatarURL:    p.Info.ImageURL,
		LiquidityUSD: f64p(p.Liquidity.USD),
		VolumeUSD24h: f64p(p.Volume.H24),
		HasWebsite:   boolp(len(p.Info.Websites) > 0),
		FetchedAt:    time.Now().UTC(),
	}

	if price, err := strconv.ParseFloat(p.PriceUSD, 64); err == nil {
		snap.PriceUSD = f64p(price)
	}
	snap.PriceChangeH1 = f64p(p.PriceChange.H1)

	hasTelegram := false
	for _, s := range p.Info.Socials {
		switch s.Type {
		case "twitter":
			snap.XHandle = handleFromURL(s.URL)
		case "telegram":
			hasTelegram = true
		}
	}
	snap.HasTelegram = boolp(hasTelegram)
	snap.SetExt("chain_id", p.ChainID)

	return snap
}

// handleFromURL extracts the account name from an x.com or twitter.com link.
func handleFromURL(raw string) string {
	if !strings.Contains(raw, "twitter.com/") && !strings.Contains(raw, "x.com/") {
		return ""
	}
	trimmed := strings.TrimRight(raw, "/")
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}
