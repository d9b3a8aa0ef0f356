package hls

import (
	"context"
	"fmt"
	"sync"

	"ncd/metrics"
	"ncd/util"

	"golang.org/x/sync/errgroup"
)

// Bridge carries decoded segments to the sink in order. the
// producer blocks once size chunks are waiting.
type Bridge struct {
	chunks    chan []byte
	done      chan struct{}
	group     errgroup.Group
	closeOnce sync.Once
}

// NewBridge starts the consumer immediately.
func NewBridge(sink Sink, size int) *Bridge {
	b := &Bridge{
		chunks: make(chan []byte, size),
		done:   make(chan struct{}),
	}
	b.group.Go(func() error {
		return b.consume(sink)
	})
	return b
}

// Push hands a chunk over to the consumer. it must
// not be called after Close.
func (b *Bridge) Push(ctx context.Context, chunk []byte) error {
	select {
	case <-b.done:
		return util.ErrConduitClosed
	default:
	}
	select {
	case b.chunks <- chunk:
		metrics.ConduitDepth.Set(float64(len(b.chunks)))
		return nil
	case <-b.done:
		return util.ErrConduitClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tells the consumer no more chunks will come.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.chunks)
	})
}

// Wait blocks until the consumer exits and returns the
// error that stopped it, if any.
func (b *Bridge) Wait() error {
	return b.group.Wait()
}

func (b *Bridge) consume(sink Sink) error {
	defer close(b.done)

	var err error
	for chunk := range b.chunks {
		metrics.ConduitDepth.Set(float64(len(b.chunks)))
		if _, err = sink.Write(chunk); err != nil {
			err = fmt.Errorf("%w: write: %w", util.ErrSink, err)
			break
		}
		if err = sink.Flush(); err != nil {
			err = fmt.Errorf("%w: flush: %w", util.ErrSink, err)
			break
		}
	}
	// end of stream is signalled even after a failure
	// so the process is not left waiting on its input
	closeErr := sink.CloseInput()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close input: %w", util.ErrSink, closeErr)
	}
	return nil
}
