package app

import (
	"fmt"
	"strings"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

// AcceptPolicy computes the listing quantity left after accepting req.
// It is the single point where accept-time capacity rules live.
type AcceptPolicy interface {
	Remaining(listing domain.Listing, req domain.Request) (int, error)
}

// AcceptPolicyFunc adapts a function to AcceptPolicy.
type AcceptPolicyFunc func(listing domain.Listing, req domain.Request) (int, error)

func (f AcceptPolicyFunc) Remaining(listing domain.Listing, req domain.Request) (int, error) {
	return f(listing, req)
}

// ClampToZero grants the request even if it no longer fits; quantity never goes negative.
var ClampToZero AcceptPolicy = AcceptPolicyFunc(func(listing domain.Listing, req domain.Request) (int, error) {
	remaining := listing.Quantity - req.QuantityRequested
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
})

// StrictCapacity refuses to accept a request larger than the current quantity.
var StrictCapacity AcceptPolicy = AcceptPolicyFunc(func(listing domain.Listing, req domain.Request) (int, error) {
	if req.QuantityRequested > listing.Quantity {
		return 0, &domain.CapacityError{Available: listing.Quantity}
	}
	return listing.Quantity - req.QuantityRequested, nil
})

// ParseAcceptPolicy maps a configuration value to a policy.
func ParseAcceptPolicy(name string) (AcceptPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "clamp":
		return ClampToZero, nil
	case "strict":
		return StrictCapacity, nil
	default:
		return nil, fmt.Errorf("unknown accept policy %q", name)
	}
}
