package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/mediacache/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// Maintenance reports on a scheduled job. A job that has not run yet is up,
// a job whose last run failed is down, and a job whose last run is older than
// maxAge is degraded. A zero maxAge uses a 6h window.
func Maintenance(job string, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		for _, summary := range monitoring.Snapshot().Maintenance.Jobs {
			if summary.Job != job {
				continue
			}
			switch {
			case summary.ConsecutiveFailures > 0:
				return monitoring.ProbeResult{
					Status:  monitoring.StatusDown,
					Details: fmt.Sprintf("%s: %d consecutive failures: %s", job, summary.ConsecutiveFailures, summary.LastError),
				}
			case time.Since(summary.LastRunAt) > maxAge:
				return monitoring.ProbeResult{
					Status:  monitoring.StatusDegraded,
					Details: job + ": stale run " + summary.LastRunAt.UTC().Format(time.RFC3339),
				}
			default:
				return monitoring.ProbeResult{Status: monitoring.StatusUp}
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: job + ": pending first run"}
	})
}
