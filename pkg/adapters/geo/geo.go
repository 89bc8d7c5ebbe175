// Package geo resolves client IPs to a coarse location.
package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

// None never resolves anything; every click gets no location.
type None struct{}

func (None) Lookup(context.Context, string) (domain.Location, error) {
	return domain.Location{}, fmt.Errorf("geo disabled: %w", domain.ErrExternalLookup)
}

// parsePublicIP rejects addresses no geo database can place.
func parsePublicIP(raw string) (net.IP, error) {
	ip := net.ParseIP(raw)
	if ip == nil {
		return nil, fmt.Errorf("geo: invalid ip %q: %w", raw, domain.ErrExternalLookup)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return nil, fmt.Errorf("geo: non-public ip %s: %w", raw, domain.ErrExternalLookup)
	}
	return ip, nil
}
