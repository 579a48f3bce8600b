package types

import (
	"fmt"

	"github.com/goccy/go-json"
)

// OpportunityType names which venue takes which leg of the arbitrage.
type OpportunityType string

const (
	// OppYes1No2 buys YES on venue 1 and NO on venue 2.
	OppYes1No2 OpportunityType = "yes1_no2"
	// OppYes2No1 buys YES on venue 2 and NO on venue 1.
	OppYes2No1 OpportunityType = "yes2_no1"
)

// Opportunity is a sized cross-venue arbitrage: buying Shares of YES on one
// venue and Shares of NO on the other for TotalCost, with the guarantee that
// one leg resolves for 1000*Shares. All monetary fields are in tenths of a
// cent. MaxPrice1/MaxPrice2 are the worst marginal prices the two legs must
// accept for the full size to fill.
type Opportunity struct {
	Type         OpportunityType `json:"type"`
	Shares       int64           `json:"shares"`
	TotalCost    int64           `json:"total_cost"`
	CostPerShare int64           `json:"cost_per_share"`
	MaxPrice1    int64           `json:"max_price_1"`
	MaxPrice2    int64           `json:"max_price_2"`
	PairKey      string          `json:"pair_key"`
}

// Legs returns the outcome side bought on venue 1 and venue 2 respectively.
func (o *Opportunity) Legs() (side1, side2 Side) {
	if o.Type == OppYes1No2 {
		return SideYes, SideNo
	}
	return SideNo, SideYes
}

// Encode serializes the opportunity for the stream wire format.
func (o *Opportunity) Encode() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("marshal opportunity: %w", err)
	}
	return string(b), nil
}

// DecodeOpportunity parses the wire form and validates its fields.
func DecodeOpportunity(s string) (*Opportunity, error) {
	var o Opportunity
	err := json.Unmarshal([]byte(s), &o)
	if err != nil {
		return nil, fmt.Errorf("unmarshal opportunity: %w", err)
	}
	if o.Type != OppYes1No2 && o.Type != OppYes2No1 {
		return nil, fmt.Errorf("invalid opportunity type %q", o.Type)
	}
	if o.Shares <= 0 {
		return nil, fmt.Errorf("invalid opportunity shares %d", o.Shares)
	}
	if o.TotalCost <= 0 {
		return nil, fmt.Errorf("invalid opportunity total cost %d", o.TotalCost)
	}
	return &o, nil
}
