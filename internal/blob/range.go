package blob

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrRangeNotSatisfiable is matched by *UnsatisfiableRangeError.
var ErrRangeNotSatisfiable = errors.New("blob: range not satisfiable")

// UnsatisfiableRangeError carries the object size needed for "bytes */size".
type UnsatisfiableRangeError struct {
	Size int64
}

func (e *UnsatisfiableRangeError) Error() string {
	return fmt.Sprintf("blob: range not satisfiable for object of %d bytes", e.Size)
}

func (e *UnsatisfiableRangeError) Is(target error) bool {
	return target == ErrRangeNotSatisfiable
}

// Range is a single requested byte range. When Suffix is true only
// SuffixLength is used; otherwise a non-positive Length reads to the end.
type Range struct {
	Offset       int64
	Length       int64
	Suffix       bool
	SuffixLength int64
}

// OffsetRange reads length bytes from offset.
func OffsetRange(offset, length int64) *Range {
	return &Range{Offset: offset, Length: length}
}

// SuffixRange reads the last length bytes.
func SuffixRange(length int64) *Range {
	return &Range{Suffix: true, SuffixLength: length}
}

// Span is a range resolved against a concrete object size. End is inclusive.
type Span struct {
	Start  int64
	End    int64
	Length int64
	Size   int64
}

// ContentRange formats the span as a Content-Range header value.
func (s Span) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, s.Size)
}

// Resolve clamps the range to an object of the given size.
func (r Range) Resolve(size int64) (Span, error) {
	if size <= 0 {
		return Span{}, &UnsatisfiableRangeError{Size: max(size, 0)}
	}

	if r.Suffix {
		if r.SuffixLength <= 0 {
			return Span{}, &UnsatisfiableRangeError{Size: size}
		}
		length := min(size, r.SuffixLength)
		return Span{Start: size - length, End: size - 1, Length: length, Size: size}, nil
	}

	if r.Offset < 0 || r.Offset >= size {
		return Span{}, &UnsatisfiableRangeError{Size: size}
	}
	end := size - 1
	if r.Length > 0 {
		end = min(size-1, r.Offset+r.Length-1)
	}
	return Span{Start: r.Offset, End: end, Length: end - r.Offset + 1, Size: size}, nil
}

// ParseRangeHeader parses a single "bytes=" range. Absent, malformed and
// multi-range values yield nil so the caller serves the full object.
func ParseRangeHeader(header string) *Range {
	header = strings.TrimSpace(header)
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil
	}
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.Contains(spec, ",") {
		return nil
	}

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return nil
	}
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return nil
		}
		return SuffixRange(n)
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return nil
	}
	if last == "" {
		return OffsetRange(start, 0)
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return nil
	}
	return OffsetRange(start, end-start+1)
}

// Header renders the range as a Range request header value.
func (r Range) Header() string {
	if r.Suffix {
		return fmt.Sprintf("bytes=-%d", r.SuffixLength)
	}
	if r.Length > 0 {
		return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1)
	}
	return fmt.Sprintf("bytes=%d-", r.Offset)
}
