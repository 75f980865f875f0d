package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luna-svc/luna/internal/provider"
)

// Capability status values.
const (
	CapabilityHealthy       = "healthy"
	CapabilityUnavailable   = "unavailable"
	CapabilityNotConfigured = "not_configured"
)

// Health reports overall service health and per-capability status.
type Health struct {
	Overall      string            `json:"overall_status"`
	Capabilities map[string]string `json:"capabilities"`
	CheckedAt    time.Time         `json:"checked_at"`
}

const healthProbeTimeout = 10 * time.Second

// HealthCheck probes the configured capabilities concurrently. Probe
// failures mark the capability unavailable, never error the check itself.
func (s *Service) HealthCheck(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	var mu sync.Mutex
	caps := map[string]string{
		"completion": CapabilityNotConfigured,
		"chains":     CapabilityNotConfigured,
		"voice":      CapabilityNotConfigured,
	}
	set := func(name, status string) {
		mu.Lock()
		caps[name] = status
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.gateway.Completer != nil {
		g.Go(func() error {
			_, err := s.gateway.Completer.Complete(ctx, provider.CompletionRequest{Prompt: "ping"})
			if err != nil {
				set("completion", CapabilityUnavailable)
			} else {
				set("completion", CapabilityHealthy)
			}
			return nil
		})
	}
	if s.gateway.Chains != nil {
		// Chain execution rides on the completion capability, so a static
		// presence check is enough here.
		set("chains", CapabilityHealthy)
	}
	if s.gateway.Voice != nil {
		g.Go(func() error {
			_, err := s.gateway.Voice.Synthesize(ctx, "ping", "")
			if err != nil {
				set("voice", CapabilityUnavailable)
			} else {
				set("voice", CapabilityHealthy)
			}
			return nil
		})
	}

	_ = g.Wait() // probes report through caps, never through errors

	health := Health{Capabilities: caps, CheckedAt: time.Now().UTC()}
	switch {
	case caps["completion"] == CapabilityHealthy:
		health.Overall = "healthy"
		for _, status := range caps {
			if status == CapabilityUnavailable {
				health.Overall = "degraded"
				break
			}
		}
	case caps["completion"] == CapabilityUnavailable:
		health.Overall = "unhealthy"
	default:
		health.Overall = "degraded"
	}
	return health
}
