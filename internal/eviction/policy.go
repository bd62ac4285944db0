package eviction

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultTTLDays   = 7
	DefaultBatchSize = 200
	MaxBatchSize     = 500

	ttlIterations      = 10
	capacityIterations = 20
	dayMs              = int64(24 * 60 * 60 * 1000)
	bytesPerMB         = 1024 * 1024
)

// Policy holds the parsed eviction knobs. TTLDays of zero disables the TTL phase.
type Policy struct {
	TTLDays   int
	BatchSize int
}

// ParsePolicy converts the raw configuration strings into a Policy.
func ParsePolicy(ttlDays, batchSize string) Policy {
	return Policy{
		TTLDays:   ParseTTLDays(ttlDays),
		BatchSize: ParseBatchSize(batchSize),
	}
}

// ParseTTLDays returns the default for an empty value and zero (disabled)
// for anything non-positive or unparsable. Fractions are floored.
func ParseTTLDays(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTTLDays
	}
	n, ok := parsePositive(raw)
	if !ok {
		return 0
	}
	return n
}

// ParseBatchSize falls back to DefaultBatchSize and caps at MaxBatchSize.
func ParseBatchSize(raw string) int {
	n, ok := parsePositive(strings.TrimSpace(raw))
	if !ok {
		return DefaultBatchSize
	}
	return min(n, MaxBatchSize)
}

// MBToBytes converts a megabyte ceiling to bytes. Non-positive or
// non-finite input means no limit and yields 0.
func MBToBytes(mb float64) int64 {
	if math.IsNaN(mb) || math.IsInf(mb, 0) || mb <= 0 {
		return 0
	}
	b := math.Floor(mb * bytesPerMB)
	if b >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(b)
}

func parsePositive(raw string) (int, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f)
	if f <= 0 {
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(f), true
}

func (p Policy) withDefaults() Policy {
	if p.TTLDays < 0 {
		p.TTLDays = 0
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	p.BatchSize = min(p.BatchSize, MaxBatchSize)
	return p
}
