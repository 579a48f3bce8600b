package types

// Market is a normalized binary event-contract market. A market is uniquely
// identified by (Venue, MarketID); MarketID alone is only unique per venue.
type Market struct {
	Venue          VenueKind `json:"venue"`
	MarketID       string    `json:"market_id"`
	Name           string    `json:"name"`
	Rules          string    `json:"rules"`
	CloseTimestamp int64     `json:"close_timestamp"` // epoch seconds
}

// Key returns the globally unique identifier for the market.
func (m *Market) Key() string {
	return string(m.Venue) + "/" + m.MarketID
}

// MarketPair is an unordered pair of markets on distinct venues judged to be
// semantically identical. Canonical form orders the ids lexicographically so
// each pair has exactly one key.
type MarketPair struct {
	MarketID1 string    `json:"market_id_1"`
	Venue1    VenueKind `json:"venue_1"`
	MarketID2 string    `json:"market_id_2"`
	Venue2    VenueKind `json:"venue_2"`
}

// NewMarketPair builds the canonical pair for two markets.
func NewMarketPair(a, b *Market) MarketPair {
	p := MarketPair{
		MarketID1: a.MarketID,
		Venue1:    a.Venue,
		MarketID2: b.MarketID,
		Venue2:    b.Venue,
	}
	p.Canonicalize()
	return p
}

// Canonicalize swaps the two sides if needed so MarketID1 < MarketID2.
func (p *MarketPair) Canonicalize() {
	if p.MarketID1 > p.MarketID2 {
		p.MarketID1, p.MarketID2 = p.MarketID2, p.MarketID1
		p.Venue1, p.Venue2 = p.Venue2, p.Venue1
	}
}

// Key returns the canonical unique key of the pair.
func (p *MarketPair) Key() string {
	return p.MarketID1 + "|" + p.MarketID2
}
