package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"agent-trust-lab/internal/domain"
)

// ChainRPCOptions configures the JSON-RPC on-chain activity probe.
type ChainRPCOptions struct {
	// Endpoint is the full provider URL, API key included.
	Endpoint string
	Timeout  time.Duration
	Logger   *log.Logger
}

// ChainRPCAdapter probes raw on-chain activity through a JSON-RPC provider.
// It is the last hop of the market fallback chain: when no market data
// source knows the address, a transfer-history probe at least establishes
// whether the address is live. The resulting snapshot carries only a
// transaction count, which scores as minimal evidence.
type ChainRPCAdapter struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

var _ Adapter = (*ChainRPCAdapter)(nil)

// NewChainRPCAdapter creates the on-chain probe adapter.
func NewChainRPCAdapter(opts ChainRPCOptions) *ChainRPCAdapter {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[chainrpc] ", log.LstdFlags)
	}
	return &ChainRPCAdapter{
		endpoint: opts.Endpoint,
		client:   newHTTPClient(opts.Timeout),
		logger:   opts.Logger,
	}
}

// Name implements Adapter.
func (a *ChainRPCAdapter) Name() string { return "chainrpc" }

type rpcRequest struct {
	ID      int    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type transfersResult struct {
	Result struct {
		Transfers []struct {
			Hash string `json:"hash"`
		} `json:"transfers"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch counts recent outgoing asset transfers for an address.
func (a *ChainRPCAdapter) Fetch(ctx context.Context, id string) (*domain.Snapshot, error) {
	if a.endpoint == "" {
		return nil, ErrUnavailable
	}

	reqBody := rpcRequest{
		ID:      1,
		JSONRPC: "2.0",
		Method:  "alchemy_getAssetTransfers",
		Params: []any{map[string]any{
			"fromAddress":      id,
			"category":         []string{"external", "erc20"},
			"excludeZeroValue": true,
			"maxCount":         "0x3e8",
		}},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Printf("transfers request failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		a.logger.Printf("transfers request for %s: HTTP %d", id, resp.StatusCode)
		return nil, ErrUnavailable
	}

	var payload transfersResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		a.logger.Printf("transfers decode failed for %s: %v", id, err)
		return nil, ErrUnavailable
	}
	if payload.Error != nil {
		a.logger.Printf("transfers rpc error for %s: %d %s", id, payload.Error.Code, payload.Error.Message)
		return nil, ErrUnavailable
	}

	n := len(payload.Result.Transfers)
	if n == 0 {
		// No history at all: the provider knows nothing about this address.
		return nil, ErrNotFound
	}

	return &domain.Snapshot{
		Source:     domain.SourceChainRPC,
		Identifier: id,
		TxCount:    int64p(int64(n)),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// Search is unsupported on a raw RPC endpoint.
func (a *ChainRPCAdapter) Search(ctx context.Context, query string) (*domain.Snapshot, error) {
	return nil, ErrNotFound
}
