package hls

import (
	"context"
	"io"

	"ncd/models"
)

// Sink is the muxing process fed with the decoded
// transport stream.
type Sink interface {
	io.Writer

	// Flush pushes buffered bytes to the process.
	Flush() error
	// CloseInput signals end of stream.
	CloseInput() error
	// Wait blocks until the process exits and
	// reports whether it succeeded.
	Wait() error
	// Terminate stops the process abnormally. it is
	// safe to call after the process has exited.
	Terminate() error
}

type SinkFactory func(ctx context.Context, output string, args models.MuxArgs) (Sink, error)
