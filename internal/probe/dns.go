package probe

import (
	"context"
	"net"
	"time"

	"netwatch/internal/models"
)

// DNS resolves target.Address as a hostname. A non-empty answer counts as success.
type DNS struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver
}

// Probe implements Prober.
func (p *DNS) Probe(ctx context.Context, target models.Target) (models.ProbeResult, error) {
	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	started := time.Now()
	addrs, err := resolver.LookupHost(ctx, target.Address)
	latency := time.Since(started)
	if err != nil {
		return failed(target, err.Error()), nil
	}
	if len(addrs) == 0 {
		return failed(target, "no addresses resolved"), nil
	}
	return succeeded(target, latency), nil
}
