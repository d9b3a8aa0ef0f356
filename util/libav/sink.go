package libav

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"ncd/models"
	"ncd/util/hls"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// FFmpegSink muxes an MPEG-TS stream read from stdin
// into the output file.
type FFmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *bufio.Writer
	stderr *bytes.Buffer

	waitOnce sync.Once
	waitErr  error
}

func NewFFmpegSink(
	ctx context.Context,
	ffmpegPath string,
	output string,
	args models.MuxArgs,
) (*FFmpegSink, error) {
	outputArgs := make(ffmpeg.KwArgs, len(args))
	for key, value := range args {
		outputArgs[key] = value
	}
	stream := ffmpeg.
		Input("pipe:0", ffmpeg.KwArgs{"f": "mpegts"}).
		Output(output, outputArgs).
		GlobalArgs("-hide_banner", "-loglevel", "error", "-nostats").
		OverWriteOutput()

	cmdArgs := stream.GetArgs()
	zap.S().Debugf("running %s %s", ffmpegPath, strings.Join(cmdArgs, " "))

	cmd := exec.CommandContext(ctx, ffmpegPath, cmdArgs...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg input: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &FFmpegSink{
		cmd:    cmd,
		stdin:  stdin,
		writer: bufio.NewWriterSize(stdin, 64*1024),
		stderr: stderr,
	}, nil
}

// NewSinkFactory returns a factory spawning ffmpegPath.
func NewSinkFactory(ffmpegPath string) hls.SinkFactory {
	return func(ctx context.Context, output string, args models.MuxArgs) (hls.Sink, error) {
		return NewFFmpegSink(ctx, ffmpegPath, output, args)
	}
}

func (s *FFmpegSink) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *FFmpegSink) Flush() error {
	return s.writer.Flush()
}

func (s *FFmpegSink) CloseInput() error {
	flushErr := s.writer.Flush()
	closeErr := s.stdin.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return closeErr
	}
	return nil
}

func (s *FFmpegSink) Wait() error {
	s.waitOnce.Do(func() {
		if err := s.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(s.stderr.String())
			if msg != "" {
				s.waitErr = fmt.Errorf("ffmpeg exited: %w: %s", err, msg)
			} else {
				s.waitErr = fmt.Errorf("ffmpeg exited: %w", err)
			}
		}
	})
	return s.waitErr
}

func (s *FFmpegSink) Terminate() error {
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill ffmpeg: %w", err)
	}
	// reap the process, its exit status is meaningless here
	s.Wait()
	return nil
}
