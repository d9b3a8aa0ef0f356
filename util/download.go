package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"ncd/metrics"
	"ncd/models"
	"ncd/util/networking"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const copyBufferSize = 32 * 1024 // 32KB

// Transfer fetches playlists, keys and segments over HTTP,
// retrying transient failures with exponential backoff.
type Transfer struct {
	client  models.HTTPClient
	config  *models.DownloadConfig
	limiter *rate.Limiter
}

func NewTransfer(client models.HTTPClient, config *models.DownloadConfig) *Transfer {
	if client == nil {
		client = networking.GetDefaultHTTPClient()
	}
	config = models.GetDownloadConfig(config)
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(
			rate.Limit(config.RateLimit),
			max(config.RateLimit, copyBufferSize),
		)
	}
	return &Transfer{
		client:  client,
		config:  config,
		limiter: limiter,
	}
}

type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// 4xx responses will not get better by asking again,
// except for the few that signal a busy server
func (e *statusError) permanent() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooEarly,
		http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func classify(err error) error {
	if se, ok := err.(*statusError); ok && se.permanent() {
		return backoff.Permanent(err)
	}
	return err
}

func retry[T any](
	ctx context.Context,
	config *models.DownloadConfig,
	operation backoff.Operation[T],
) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = config.RetryInitialDelay
	policy.MaxInterval = config.RetryMaxDelay

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(config.RetryMaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RequestRetriesTotal.Inc()
			zap.S().Debugf("request failed, retrying in %s: %v", next, err)
		}),
	}
	if config.RetryAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(config.RetryAttempts)))
	}
	return backoff.Retry(ctx, operation, opts...)
}

// Fetch downloads fileURL into filePath and returns the final
// file length. with resume set, bytes already present in filePath
// are kept and only the remainder is requested. every retry
// resumes from whatever the previous attempt managed to write.
func (t *Transfer) Fetch(
	ctx context.Context,
	fileURL string,
	filePath string,
	resume bool,
) (int64, error) {
	zap.S().Debugf("downloading segment: %s", fileURL)

	size, err := retry(ctx, t.config, func() (int64, error) {
		size, err := t.fetchToFile(ctx, fileURL, filePath, resume)
		if err != nil {
			return 0, classify(err)
		}
		return size, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrTransport, fileURL, err)
	}
	return size, nil
}

func DownloadSegment(
	ctx context.Context,
	client models.HTTPClient,
	segmentURL string,
	filePath string,
	resume bool,
	config *models.DownloadConfig,
) (int64, error) {
	return NewTransfer(client, config).Fetch(ctx, segmentURL, filePath, resume)
}

func (t *Transfer) fetchToFile(
	ctx context.Context,
	fileURL string,
	filePath string,
	resume bool,
) (int64, error) {
	var offset int64
	if resume {
		if info, err := os.Stat(filePath); err == nil {
			offset = info.Size()
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	req, err := t.newRequest(reqCtx, fileURL)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		// the partial file no longer lines up with the
		// remote one, start over from the first byte
		zap.S().Debugf("range %d- not satisfiable, restarting %s", offset, fileURL)
		metrics.ResumedTransfersTotal.WithLabelValues("false").Inc()
		resp.Body.Close()
		return t.fetchToFile(ctx, fileURL, filePath, false)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, &statusError{StatusCode: resp.StatusCode}
	}

	if offset > 0 {
		if resp.StatusCode == http.StatusPartialContent {
			metrics.ResumedTransfersTotal.WithLabelValues("true").Inc()
		} else {
			// server ignored the range, appending
			// would corrupt the segment
			zap.S().Debugf("server ignored range request, restarting %s", fileURL)
			metrics.ResumedTransfersTotal.WithLabelValues("false").Inc()
			offset = 0
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("failed to open file: %w", err))
	}
	defer file.Close()

	var total int64
	if resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}
	progress := &progressWriter{
		ctx:        ctx,
		limiter:    t.limiter,
		written:    offset,
		total:      total,
		onProgress: t.config.ProgressUpdater,
	}

	// use a fixed-size buffer for
	// copying to avoid large allocations (32KB)
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(io.MultiWriter(file, progress), resp.Body, buf)
	metrics.SegmentBytesTotal.Add(float64(n))
	if err != nil {
		return 0, fmt.Errorf("failed to write segment data: %w", err)
	}
	if err := file.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}

	return offset + n, nil
}

// FetchInMemory downloads a small resource such as a
// playlist or a key, retrying transient failures.
func (t *Transfer) FetchInMemory(
	ctx context.Context,
	fileURL string,
) ([]byte, error) {
	data, err := retry(ctx, t.config, func() ([]byte, error) {
		data, err := t.downloadInMemory(ctx, fileURL)
		if err != nil {
			return nil, classify(err)
		}
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, fileURL, err)
	}
	return data, nil
}

func (t *Transfer) downloadInMemory(
	ctx context.Context,
	fileURL string,
) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	req, err := t.newRequest(reqCtx, fileURL)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > int64(t.config.MaxInMemory) {
		return nil, backoff.Permanent(fmt.Errorf("%w: %d bytes", ErrFileTooLarge, resp.ContentLength))
	}

	// use a limited reader to prevent
	// exceeding memory limits even if content-length is wrong
	limitedReader := io.LimitReader(resp.Body, int64(t.config.MaxInMemory)+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > t.config.MaxInMemory {
		return nil, backoff.Permanent(ErrFileTooLarge)
	}

	return data, nil
}

func (t *Transfer) newRequest(ctx context.Context, fileURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range t.config.Headers {
		req.Header.Set(key, value)
	}
	for _, cookie := range t.config.Cookies {
		req.AddCookie(cookie)
	}
	return req, nil
}

// progressWriter counts the bytes that reach the destination
// file, throttles them and reports progress.
type progressWriter struct {
	ctx        context.Context
	limiter    *rate.Limiter
	written    int64
	total      int64
	onProgress func(chunkSize int, downloaded, total int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if w.limiter != nil {
		for remaining := len(p); remaining > 0; {
			n := min(remaining, w.limiter.Burst())
			if err := w.limiter.WaitN(w.ctx, n); err != nil {
				return 0, err
			}
			remaining -= n
		}
	}
	w.written += int64(len(p))
	if w.onProgress != nil {
		w.onProgress(len(p), w.written, w.total)
	}
	return len(p), nil
}

func EnsureDownloadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			zap.S().Debugf("creating downloads directory: %s", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create downloads directory: %w", err)
			}
		} else {
			return fmt.Errorf("error accessing directory: %w", err)
		}
	}
	return nil
}
