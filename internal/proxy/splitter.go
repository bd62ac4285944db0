package proxy

import (
	"errors"
	"io"
	"sync/atomic"
)

// errSinksDetached stops the pump once no sink is left to receive bytes.
var errSinksDetached = errors.New("proxy: all sinks detached")

const splitBufferSize = 32 * 1024

// splitter copies one source into several pipe sinks in lockstep. A sink
// whose reader goes away is detached; the others keep receiving bytes. A
// source error is propagated to every remaining sink so nothing partial is
// committed.
type splitter struct {
	src   io.Reader
	sinks []*io.PipeWriter
	count atomic.Int64
}

func newSplitter(src io.Reader, sinks ...*io.PipeWriter) *splitter {
	return &splitter{src: src, sinks: sinks}
}

// Count returns the number of bytes read from the source so far.
func (s *splitter) Count() int64 {
	return s.count.Load()
}

// Run pumps until EOF, a source error, or every sink is detached.
func (s *splitter) Run() error {
	live := make([]bool, len(s.sinks))
	for i := range live {
		live[i] = true
	}
	remaining := len(s.sinks)
	buf := make([]byte, splitBufferSize)

	for {
		n, readErr := s.src.Read(buf)
		if n > 0 {
			s.count.Add(int64(n))
			for i, sink := range s.sinks {
				if !live[i] {
					continue
				}
				if _, err := sink.Write(buf[:n]); err != nil {
					live[i] = false
					remaining--
				}
			}
			if remaining == 0 {
				return errSinksDetached
			}
		}

		if readErr == nil {
			continue
		}
		for i, sink := range s.sinks {
			if !live[i] {
				continue
			}
			if errors.Is(readErr, io.EOF) {
				_ = sink.Close()
			} else {
				_ = sink.CloseWithError(readErr)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		return readErr
	}
}
