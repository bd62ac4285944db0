package blob

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeResolve(t *testing.T) {
	const size = 1000

	tests := []struct {
		name  string
		rng   Range
		start int64
		end   int64
		len   int64
	}{
		{name: "suffix", rng: *SuffixRange(100), start: 900, end: 999, len: 100},
		{name: "suffix larger than object", rng: *SuffixRange(5000), start: 0, end: 999, len: 1000},
		{name: "offset and length", rng: *OffsetRange(990, 50), start: 990, end: 999, len: 10},
		{name: "offset only", rng: *OffsetRange(10, 0), start: 10, end: 999, len: 990},
		{name: "first byte", rng: *OffsetRange(0, 1), start: 0, end: 0, len: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			span, err := tc.rng.Resolve(size)
			require.NoError(t, err)
			require.Equal(t, tc.start, span.Start)
			require.Equal(t, tc.end, span.End)
			require.Equal(t, tc.len, span.Length)
			require.Equal(t, int64(size), span.Size)
		})
	}
}

func TestRangeResolveUnsatisfiable(t *testing.T) {
	cases := map[string]struct {
		rng  Range
		size int64
	}{
		"offset past end": {rng: *OffsetRange(1000, 10), size: 1000},
		"zero suffix":     {rng: *SuffixRange(0), size: 1000},
		"empty object":    {rng: *OffsetRange(0, 0), size: 0},
		"negative offset": {rng: *OffsetRange(-1, 0), size: 1000},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.rng.Resolve(tc.size)
			require.ErrorIs(t, err, ErrRangeNotSatisfiable)

			var rangeErr *UnsatisfiableRangeError
			require.True(t, errors.As(err, &rangeErr))
			require.Equal(t, tc.size, rangeErr.Size)
		})
	}
}

func TestSpanContentRange(t *testing.T) {
	span, err := SuffixRange(100).Resolve(1000)
	require.NoError(t, err)
	require.Equal(t, "bytes 900-999/1000", span.ContentRange())
}

func TestParseRangeHeader(t *testing.T) {
	require.Equal(t, OffsetRange(0, 100), ParseRangeHeader("bytes=0-99"))
	require.Equal(t, OffsetRange(500, 0), ParseRangeHeader("bytes=500-"))
	require.Equal(t, SuffixRange(250), ParseRangeHeader("bytes=-250"))
	require.Equal(t, SuffixRange(0), ParseRangeHeader(" bytes=-0 "))

	for _, header := range []string{
		"",
		"bytes=",
		"items=0-1",
		"bytes=0-1,5-9",
		"bytes=abc-",
		"bytes=9-1",
		"bytes=-x",
		"bytes=5",
	} {
		require.Nil(t, ParseRangeHeader(header), header)
	}
}

func TestRangeHeaderRoundTrip(t *testing.T) {
	require.Equal(t, "bytes=0-99", OffsetRange(0, 100).Header())
	require.Equal(t, "bytes=7-", OffsetRange(7, 0).Header())
	require.Equal(t, "bytes=-20", SuffixRange(20).Header())
}
