package probe

import (
	"context"
	"log"
	"time"

	"github.com/go-ping/ping"

	"netwatch/internal/models"
)

const defaultICMPTimeout = 3 * time.Second

// ICMP sends echo requests with go-ping. Without Privileged the pinger uses
// unprivileged UDP ICMP sockets.
type ICMP struct {
	Privileged bool
	// Count is the number of echo requests per probe; defaults to 1.
	Count int
}

// Probe implements Prober.
func (p *ICMP) Probe(ctx context.Context, target models.Target) (models.ProbeResult, error) {
	pinger, err := ping.NewPinger(target.Address)
	if err != nil {
		// NewPinger resolves the host; a lookup failure is a network condition.
		log.Printf("probe: icmp target=%s resolve error=%v", target.ID, err)
		return failed(target, err.Error()), nil
	}

	count := p.Count
	if count <= 0 {
		count = 1
	}
	pinger.Count = count
	pinger.Timeout = deadline(ctx, defaultICMPTimeout)
	pinger.SetPrivileged(p.Privileged)

	stop := context.AfterFunc(ctx, pinger.Stop)
	defer stop()

	if err := pinger.Run(); err != nil {
		return failed(target, err.Error()), nil
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return failed(target, "no echo reply"), nil
	}
	return succeeded(target, stats.AvgRtt), nil
}
