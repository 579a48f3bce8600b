package types

import "fmt"

// VenueKind identifies an event-contract venue.
type VenueKind string

const (
	VenueKalshi     VenueKind = "kalshi"
	VenuePolymarket VenueKind = "polymarket"
	VenueTest       VenueKind = "test"
)

// ParseVenueKind converts a wire string into a VenueKind.
func ParseVenueKind(s string) (VenueKind, error) {
	switch VenueKind(s) {
	case VenueKalshi, VenuePolymarket, VenueTest:
		return VenueKind(s), nil
	}
	return "", fmt.Errorf("unknown venue %q", s)
}

func (v VenueKind) String() string {
	return string(v)
}
