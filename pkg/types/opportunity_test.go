package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpportunityLegs(t *testing.T) {
	s1, s2 := (&Opportunity{Type: OppYes1No2}).Legs()
	require.Equal(t, SideYes, s1)
	require.Equal(t, SideNo, s2)

	s1, s2 = (&Opportunity{Type: OppYes2No1}).Legs()
	require.Equal(t, SideNo, s1)
	require.Equal(t, SideYes, s2)
}

func TestOpportunityWireRoundTrip(t *testing.T) {
	opp := &Opportunity{
		Type:         OppYes2No1,
		Shares:       42,
		TotalCost:    33600,
		CostPerShare: 800,
		MaxPrice1:    410,
		MaxPrice2:    395,
		PairKey:      "0xfed|FED-CUT",
	}

	encoded, err := opp.Encode()
	require.NoError(t, err)

	decoded, err := DecodeOpportunity(encoded)
	require.NoError(t, err)
	require.Equal(t, opp, decoded)
}

func TestDecodeOpportunityValidates(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"not json", "{"},
		{"unknown type", `{"type":"sideways","shares":1,"total_cost":1}`},
		{"zero shares", `{"type":"yes1_no2","shares":0,"total_cost":1}`},
		{"negative cost", `{"type":"yes1_no2","shares":1,"total_cost":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOpportunity(tt.wire)
			require.Error(t, err)
		})
	}
}
