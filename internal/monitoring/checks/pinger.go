package checks

import (
	"context"
	"time"

	"github.com/charlesng35/mediacache/internal/monitoring"
)

// Pinger is implemented by dependencies that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a probe named name that calls target.Ping. A nil target is
// reported as disabled when optional, and as down otherwise.
func Ping(name string, target Pinger, optional bool) monitoring.Check {
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if target == nil {
			if optional {
				return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: name + " disabled"}
			}
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: name + " unavailable"}
		}
		return monitoring.ResultFromError(name, target.Ping(ctx), time.Since(start))
	})
}
