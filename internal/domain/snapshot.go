package domain

import "time"

// SourceTag identifies the external provider a Snapshot was normalized from.
type SourceTag string

const (
	SourceMoltbook      SourceTag = "MOLTBOOK"
	SourceDexScreener   SourceTag = "DEXSCREENER"
	SourceGeckoTerminal SourceTag = "GECKOTERMINAL"
	SourceChainRPC      SourceTag = "CHAIN_RPC"
	SourceSystem        SourceTag = "SYSTEM"
)

// String returns the string representation of SourceTag.
func (s SourceTag) String() string {
	return string(s)
}

// IsMarket reports whether the tag belongs to a market-data provider.
func (s SourceTag) IsMarket() bool {
	return s == SourceDexScreener || s == SourceGeckoTerminal || s == SourceChainRPC
}

// Snapshot is a normalized, point-in-time view of one identity from one
// source. Metric fields are pointers because providers expose different
// subsets; absence is a first-class state, not a zero. Snapshots are
// transient inputs to the scoring engine and are never persisted.
type Snapshot struct {
	Identifier string
	Source     SourceTag
	FetchedAt  time.Time

	DisplayName string
	AvatarURL   string
	Description string
	Symbol      string

	// Social metrics.
	Karma        *int64
	Followers    *int64
	XFollowers   *int64
	PostCount    *int64
	AvgUpvotes   *float64
	AvgComments  *float64
	Verified     *bool
	Claimed      *bool
	Active       *bool
	CreatedAt    *time.Time
	LastActiveAt *time.Time

	// Market metrics.
	LiquidityUSD  *float64
	VolumeUSD24h  *float64
	PriceUSD      *float64
	PriceChangeH1 *float64

	// On-chain activity.
	TxCount *int64

	// Web presence.
	XHandle     string
	HasWebsite  *bool
	HasTelegram *bool

	// Ext carries provider fields with no canonical mapping, keyed by the
	// provider's own field name. Kept for audit, never scored.
	Ext map[string]string
}

// SetExt records an unmapped provider field, allocating the bag lazily.
func (s *Snapshot) SetExt(key, value string) {
	if value == "" {
		return
	}
	if s.Ext == nil {
		s.Ext = make(map[string]string)
	}
	s.Ext[key] = value
}
