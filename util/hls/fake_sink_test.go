package hls

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"

	"ncd/models"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeSink records everything written to it in memory.
type fakeSink struct {
	mu         sync.Mutex
	writes     [][]byte
	flushes    int
	closed     bool
	terminated bool

	// writeErr is returned from every Write once set
	writeErr error
	// block, when non-nil, stalls each Write until released
	block       chan struct{}
	releaseOnce sync.Once
	// closeErr and waitErr are returned from CloseInput and Wait
	closeErr error
	waitErr  error
}

func (s *fakeSink) release() {
	if s.block != nil {
		s.releaseOnce.Do(func() { close(s.block) })
	}
}

func (s *fakeSink) Write(p []byte) (int, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes = append(s.writes, bytes.Clone(p))
	return len(p), nil
}

func (s *fakeSink) Flush() error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) CloseInput() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.closeErr
}

func (s *fakeSink) Wait() error {
	return s.waitErr
}

// Terminate unblocks pending writes like a killed process would.
func (s *fakeSink) Terminate() error {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
	s.release()
	return nil
}

func (s *fakeSink) chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *fakeSink) output() []byte {
	return bytes.Join(s.chunks(), nil)
}

// factory mimics the muxer by creating the output file up front.
func (s *fakeSink) factory(created *int) SinkFactory {
	return func(ctx context.Context, output string, args models.MuxArgs) (Sink, error) {
		if created != nil {
			*created++
		}
		if err := os.WriteFile(output, []byte("partial"), 0644); err != nil {
			return nil, err
		}
		return s, nil
	}
}
