package monitoring

import "time"

// Summary surfaces aggregated counters for the admin API.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Cache       CacheSummary       `json:"cache"`
	Origin      OriginSummary      `json:"origin"`
	Commits     CommitSummary      `json:"commits"`
	Eviction    EvictionSummary    `json:"eviction"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type CacheSummary struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

type OriginSummary struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
}

type CommitSummary struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
	Bytes   uint64 `json:"bytes"`
}

type EvictionSummary struct {
	Deleted    uint64 `json:"deleted"`
	FreedBytes uint64 `json:"freed_bytes"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

func emptySummary() Summary {
	return Summary{
		GeneratedAt: time.Now(),
		Maintenance: MaintenanceSummary{Jobs: []MaintenanceJobSummary{}},
	}
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	return CurrentModule().Summary()
}
