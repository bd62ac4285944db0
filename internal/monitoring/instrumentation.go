package monitoring

import (
	"strconv"
	"strings"
	"time"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	observeDuration(module.metrics.apiLatency.WithLabelValues(method, path, status), duration)
}

// RecordCacheLookup counts a blob store hit or miss for category.
func RecordCacheLookup(category string, hit bool) {
	module := CurrentModule()
	if module == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	module.metrics.cacheLookups.WithLabelValues(normalizeLabel(category), result).Inc()
	module.stats.recordLookup(hit)
}

// RecordOriginFetch counts an origin response. A zero status means a transport error.
func RecordOriginFetch(kind string, status int, latency time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	kind = normalizeLabel(kind)
	module.metrics.originFetches.WithLabelValues(kind, StatusClass(status)).Inc()
	observeDuration(module.metrics.originLatency.WithLabelValues(kind), latency)
	module.stats.recordOrigin(status >= 200 && status < 300)
}

// RecordCommit counts a background population attempt.
func RecordCommit(category, result string, bytes int64) {
	module := CurrentModule()
	if module == nil {
		return
	}
	category = normalizeLabel(category)
	result = normalizeLabel(result)
	module.metrics.commits.WithLabelValues(category, result).Inc()
	if result == "success" && bytes > 0 {
		module.metrics.committedBytes.WithLabelValues(category).Add(float64(bytes))
	}
	module.stats.recordCommit(result == "success", bytes)
}

// RecordEviction adds deleted objects and freed bytes for an eviction phase.
func RecordEviction(phase, category string, deleted int, freed int64) {
	module := CurrentModule()
	if module == nil {
		return
	}
	if deleted <= 0 && freed <= 0 {
		return
	}
	phase = normalizeLabel(phase)
	category = normalizeLabel(category)
	module.metrics.evictedObjects.WithLabelValues(phase, category).Add(float64(max(deleted, 0)))
	module.metrics.evictedBytes.WithLabelValues(phase, category).Add(float64(max(freed, 0)))
	module.stats.recordEviction(deleted, freed)
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

// StatusClass buckets an HTTP status as "2xx", "4xx" and so on. Zero maps to "error".
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
