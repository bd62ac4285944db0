package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	originSuccess atomic.Uint64
	originFailure atomic.Uint64

	commitSuccess atomic.Uint64
	commitFailure atomic.Uint64
	commitBytes   atomic.Uint64

	evictedObjects atomic.Uint64
	evictedBytes   atomic.Uint64

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) recordLookup(hit bool) {
	if hit {
		s.cacheHits.Add(1)
		return
	}
	s.cacheMisses.Add(1)
}

func (s *statStore) recordOrigin(ok bool) {
	if ok {
		s.originSuccess.Add(1)
		return
	}
	s.originFailure.Add(1)
}

func (s *statStore) recordCommit(ok bool, bytes int64) {
	if !ok {
		s.commitFailure.Add(1)
		return
	}
	s.commitSuccess.Add(1)
	if bytes > 0 {
		s.commitBytes.Add(uint64(bytes))
	}
}

func (s *statStore) recordEviction(deleted int, freed int64) {
	if deleted > 0 {
		s.evictedObjects.Add(uint64(deleted))
	}
	if freed > 0 {
		s.evictedBytes.Add(uint64(freed))
	}
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	if value, ok := s.maintenance.Load(job); ok {
		return value.(*maintenanceStats)
	}
	actual, _ := s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return actual.(*maintenanceStats)
}

func (s *statStore) summary() Summary {
	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	jobs := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		jobs = append(jobs, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})

	return Summary{
		GeneratedAt: time.Now(),
		Cache: CacheSummary{
			Hits:     hits,
			Misses:   misses,
			HitRatio: ratio,
		},
		Origin: OriginSummary{
			Success: s.originSuccess.Load(),
			Failure: s.originFailure.Load(),
		},
		Commits: CommitSummary{
			Success: s.commitSuccess.Load(),
			Failure: s.commitFailure.Load(),
			Bytes:   s.commitBytes.Load(),
		},
		Eviction: EvictionSummary{
			Deleted:    s.evictedObjects.Load(),
			FreedBytes: s.evictedBytes.Load(),
		},
		Maintenance: MaintenanceSummary{Jobs: jobs},
	}
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           time.Unix(0, m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       time.Unix(0, m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	if result == "success" {
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
		return
	}
	m.consecutiveFailures.Add(1)
	m.consecutiveSuccesses.Store(0)
}
