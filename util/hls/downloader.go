package hls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ncd/metrics"
	"ncd/models"
	"ncd/util"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type State int

const (
	StateResolvingPlaylist State = iota
	StateEstablishingKey
	StateStreamingSegments
	StateDraining
	StateAwaitingSink
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolvingPlaylist:
		return "resolving playlist"
	case StateEstablishingKey:
		return "establishing key"
	case StateStreamingSegments:
		return "streaming segments"
	case StateDraining:
		return "draining"
	case StateAwaitingSink:
		return "awaiting sink"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Downloader turns an HLS playlist into a single output file
// by streaming its segments, in order, into a muxing sink.
type Downloader struct {
	client   models.HTTPClient
	config   *models.DownloadConfig
	newSink  SinkFactory
	registry *util.Registry
}

func NewDownloader(
	client models.HTTPClient,
	config *models.DownloadConfig,
	newSink SinkFactory,
	registry *util.Registry,
) *Downloader {
	if registry == nil {
		registry = util.NewRegistry()
	}
	return &Downloader{
		client:   client,
		config:   models.GetDownloadConfig(config),
		newSink:  newSink,
		registry: registry,
	}
}

// Download fetches playlistURL and writes the muxed result to
// output. on failure no output file is left behind and the
// returned error is a *PipelineError naming the failed stage.
func (d *Downloader) Download(
	ctx context.Context,
	playlistURL string,
	output string,
	args models.MuxArgs,
) (err error) {
	ctx, span := otel.Tracer("ncd/hls").Start(ctx, "hls.Download",
		trace.WithAttributes(
			attribute.String("hls.playlist_url", playlistURL),
			attribute.String("hls.output", output),
		),
	)
	defer func() {
		if err != nil {
			var pipelineErr *PipelineError
			if errors.As(err, &pipelineErr) {
				span.SetAttributes(attribute.String("hls.failed_stage", string(pipelineErr.Stage)))
				metrics.DownloadFailuresTotal.WithLabelValues(string(pipelineErr.Stage)).Inc()
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.DownloadsTotal.WithLabelValues("failure").Inc()
		} else {
			metrics.DownloadsTotal.WithLabelValues("success").Inc()
		}
		span.End()
	}()

	r := &run{
		downloader:  d,
		transfer:    util.NewTransfer(d.client, d.config),
		playlistURL: playlistURL,
		output:      output,
		args:        args,
	}
	r.keys = NewKeyStore(r.transfer)
	return r.execute(ctx)
}

// run holds the state of a single Download call.
type run struct {
	downloader  *Downloader
	transfer    *util.Transfer
	keys        *KeyStore
	playlistURL string
	output      string
	args        models.MuxArgs

	state   State
	tracked bool
	sink    Sink
	bridge  *Bridge
}

func (r *run) setState(state State) {
	zap.S().Debugf("%s: %s -> %s", r.output, r.state, state)
	r.state = state
}

func (r *run) execute(ctx context.Context) error {
	config := r.downloader.config

	r.setState(StateResolvingPlaylist)
	playlist, err := NewResolver(r.transfer, config.MaxVariantDepth).Resolve(ctx, r.playlistURL)
	if err != nil {
		return r.fail(StageResolution, err)
	}

	r.setState(StateEstablishingKey)
	// only the first segment seeds the playlist key
	baseKey, err := r.establishKey(ctx, playlist.Segments[0].Key)
	if err != nil {
		return r.fail(StageKey, err)
	}

	if err := util.EnsureDownloadDir(config.DownloadDir); err != nil {
		return r.fail(StageTransfer, err)
	}
	tempDir, err := util.CreateTempDir(config.DownloadDir)
	if err != nil {
		return r.fail(StageTransfer, fmt.Errorf("failed to create segments directory: %w", err))
	}
	defer os.RemoveAll(tempDir)

	r.downloader.registry.Track(r.output)
	r.tracked = true
	r.sink, err = r.downloader.newSink(ctx, r.output, r.args)
	if err != nil {
		return r.fail(StageSink, fmt.Errorf("%w: %w", util.ErrSink, err))
	}
	r.bridge = NewBridge(r.sink, config.ConduitSize)

	metrics.ActiveDownloads.Inc()
	defer metrics.ActiveDownloads.Dec()

	r.setState(StateStreamingSegments)
	total := len(playlist.Segments)
	for i, segment := range playlist.Segments {
		data, stage, err := r.fetchSegment(ctx, tempDir, i, segment, baseKey)
		if err != nil {
			return r.fail(stage, err)
		}
		if err := r.bridge.Push(ctx, data); err != nil {
			if errors.Is(err, util.ErrConduitClosed) {
				return r.fail(StageSink, err)
			}
			// cancelled while waiting for room in the conduit
			return r.fail(StageTransfer, err)
		}
		metrics.SegmentsTotal.Inc()
		if config.SegmentUpdater != nil {
			config.SegmentUpdater(i+1, total)
		}
	}

	r.setState(StateDraining)
	r.bridge.Close()
	if err := r.bridge.Wait(); err != nil {
		return r.fail(StageSink, err)
	}

	r.setState(StateAwaitingSink)
	if err := r.sink.Wait(); err != nil {
		return r.fail(StageSink, fmt.Errorf("%w: %w", util.ErrSink, err))
	}

	r.downloader.registry.Release(r.output)
	r.setState(StateDone)
	return nil
}

// fail stops the sink, drains the bridge and removes the
// partial output before tagging err with its stage.
func (r *run) fail(stage Stage, err error) error {
	r.setState(StateFailed)

	if r.sink != nil {
		if terr := r.sink.Terminate(); terr != nil {
			zap.S().Debugf("failed to terminate sink: %v", terr)
		}
	}
	if r.bridge != nil {
		r.bridge.Close()
		werr := r.bridge.Wait()
		if werr != nil && errors.Is(err, util.ErrConduitClosed) {
			// the consumer's own error explains why it stopped
			err = fmt.Errorf("%w: %w", err, werr)
		}
	}
	if r.tracked {
		r.downloader.registry.Remove(r.output)
	}

	return &PipelineError{Stage: stage, Err: err}
}

func (r *run) establishKey(ctx context.Context, ref *models.KeyRef) (*models.DecryptionKey, error) {
	if !ref.IsAES128() {
		return nil, nil
	}
	key, err := r.keys.FetchKey(ctx, ref.URI)
	if err != nil {
		return nil, err
	}
	iv, err := util.ParseIV(ref.IV)
	if err != nil {
		return nil, err
	}
	return &models.DecryptionKey{
		Key:    key,
		IV:     iv,
		Method: ref.Method,
		URI:    ref.URI,
	}, nil
}

// a segment uses its own key when it declares a usable one,
// otherwise the playlist key (which may be nil)
func (r *run) segmentKey(
	ctx context.Context,
	segment *models.Segment,
	baseKey *models.DecryptionKey,
) (*models.DecryptionKey, error) {
	if !segment.Key.IsAES128() {
		return baseKey, nil
	}
	key, err := r.establishKey(ctx, segment.Key)
	if errors.Is(err, util.ErrKeyTooShort) {
		zap.S().Warnf("segment %d: %v, using playlist key", segment.Sequence, err)
		return baseKey, nil
	}
	return key, err
}

func (r *run) fetchSegment(
	ctx context.Context,
	tempDir string,
	index int,
	segment *models.Segment,
	baseKey *models.DecryptionKey,
) ([]byte, Stage, error) {
	ctx, span := otel.Tracer("ncd/hls").Start(ctx, "hls.Segment",
		trace.WithAttributes(attribute.Int64("hls.sequence", int64(segment.Sequence))),
	)
	defer span.End()

	key, err := r.segmentKey(ctx, segment, baseKey)
	if err != nil {
		return nil, StageKey, err
	}

	segmentPath := filepath.Join(tempDir, fmt.Sprintf("segment_%05d.ts", index))
	defer os.Remove(segmentPath)

	start := time.Now()
	if _, err := r.transfer.Fetch(ctx, segment.URI, segmentPath, true); err != nil {
		return nil, StageTransfer, err
	}
	metrics.SegmentDuration.Observe(time.Since(start).Seconds())

	data, err := os.ReadFile(segmentPath)
	if err != nil {
		return nil, StageTransfer, fmt.Errorf("failed to read segment: %w", err)
	}

	if key == nil {
		return data, "", nil
	}
	data, err = util.Decrypt(data, key.Key, key.IV)
	if err != nil {
		return nil, StageDecryption, fmt.Errorf("segment %d: %w", segment.Sequence, err)
	}
	return data, "", nil
}
