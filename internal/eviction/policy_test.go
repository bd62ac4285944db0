package eviction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTTLDays(t *testing.T) {
	cases := map[string]int{
		"":      DefaultTTLDays,
		"7":     7,
		" 30 ":  30,
		"2.9":   2,
		"0":     0,
		"-1":    0,
		"never": 0,
		"NaN":   0,
	}
	for raw, want := range cases {
		require.Equal(t, want, ParseTTLDays(raw), "input %q", raw)
	}
}

func TestParseBatchSize(t *testing.T) {
	cases := map[string]int{
		"":     DefaultBatchSize,
		"50":   50,
		"0":    DefaultBatchSize,
		"-5":   DefaultBatchSize,
		"abc":  DefaultBatchSize,
		"500":  500,
		"501":  MaxBatchSize,
		"9999": MaxBatchSize,
	}
	for raw, want := range cases {
		require.Equal(t, want, ParseBatchSize(raw), "input %q", raw)
	}
}

func TestMBToBytes(t *testing.T) {
	require.Equal(t, int64(1_048_576), MBToBytes(1))
	require.Equal(t, int64(524_288), MBToBytes(0.5))
	require.Equal(t, int64(1), MBToBytes(1.0/1_048_576+1e-12))
	require.Zero(t, MBToBytes(0))
	require.Zero(t, MBToBytes(-3))
	require.Zero(t, MBToBytes(math.Inf(1)))
	require.Zero(t, MBToBytes(math.NaN()))
	require.Equal(t, int64(math.MaxInt64), MBToBytes(1e300))
	require.Equal(t, int64(math.MaxInt64), MBToBytes(math.MaxFloat64))
}
