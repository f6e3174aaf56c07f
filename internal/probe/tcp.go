package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"netwatch/internal/models"
)

// TCP opens a TCP connection to host:port. A bare host is dialled on port 53,
// the way DNS resolvers are usually reachable.
type TCP struct {
	dialer net.Dialer
}

// Probe implements Prober.
func (p *TCP) Probe(ctx context.Context, target models.Target) (models.ProbeResult, error) {
	address := strings.TrimSpace(target.Address)
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "53")
	}

	started := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return failed(target, err.Error()), nil
	}
	latency := time.Since(started)
	_ = conn.Close()
	return succeeded(target, latency), nil
}
