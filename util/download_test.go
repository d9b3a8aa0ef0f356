package util

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ncd/models"

	"github.com/matryer/is"
)

var payload = bytes.Repeat([]byte("0123456789"), 1000)

func testConfig() *models.DownloadConfig {
	return &models.DownloadConfig{
		Timeout:           5 * time.Second,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     10 * time.Millisecond,
		RetryMaxElapsed:   5 * time.Second,
	}
}

type rangeRecorder struct {
	mu     sync.Mutex
	ranges []string
}

func (r *rangeRecorder) record(req *http.Request) {
	r.mu.Lock()
	r.ranges = append(r.ranges, req.Header.Get("Range"))
	r.mu.Unlock()
}

func (r *rangeRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ranges...)
}

func serveRanges(rec *rangeRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		http.ServeContent(w, r, "segment.ts", time.Time{}, bytes.NewReader(payload))
	}
}

func TestFetchFullSegment(t *testing.T) {
	is := is.New(t)
	rec := &rangeRecorder{}
	srv := httptest.NewServer(serveRanges(rec))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	size, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, testConfig())
	is.NoErr(err)
	is.Equal(size, int64(len(payload)))

	data, err := os.ReadFile(dest)
	is.NoErr(err)
	is.Equal(data, payload)
	is.Equal(rec.seen(), []string{""}) // nothing to resume from
}

func TestFetchResumesPartialFile(t *testing.T) {
	is := is.New(t)
	rec := &rangeRecorder{}
	srv := httptest.NewServer(serveRanges(rec))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	is.NoErr(os.WriteFile(dest, payload[:10], 0644))

	size, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, testConfig())
	is.NoErr(err)
	is.Equal(size, int64(len(payload)))

	data, err := os.ReadFile(dest)
	is.NoErr(err)
	is.Equal(data, payload)
	is.Equal(rec.seen(), []string{"bytes=10-"}) // only the remainder is requested
}

func TestFetchWithoutResumeTruncates(t *testing.T) {
	is := is.New(t)
	rec := &rangeRecorder{}
	srv := httptest.NewServer(serveRanges(rec))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	is.NoErr(os.WriteFile(dest, bytes.Repeat([]byte("x"), 2*len(payload)), 0644))

	_, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, false, testConfig())
	is.NoErr(err)

	data, err := os.ReadFile(dest)
	is.NoErr(err)
	is.Equal(data, payload)
	is.Equal(rec.seen(), []string{""})
}

func TestFetchServerIgnoringRange(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	is.NoErr(os.WriteFile(dest, []byte("garbage!!!"), 0644))

	size, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, testConfig())
	is.NoErr(err)
	is.Equal(size, int64(len(payload)))

	data, err := os.ReadFile(dest)
	is.NoErr(err)
	is.Equal(data, payload) // stale bytes must not survive a 200
}

func TestFetchRangeNotSatisfiable(t *testing.T) {
	is := is.New(t)
	rec := &rangeRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	is.NoErr(os.WriteFile(dest, []byte("0123456789"), 0644))

	_, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, testConfig())
	is.NoErr(err)

	data, err := os.ReadFile(dest)
	is.NoErr(err)
	is.Equal(data, payload)
	is.Equal(rec.seen(), []string{"bytes=10-", ""}) // restarted from zero
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	is := is.New(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	_, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, testConfig())
	is.NoErr(err)
	is.Equal(attempts.Load(), int32(3))

	data, err := os.ReadFile(dest)
	is.NoErr(err)
	is.Equal(data, payload)
}

func TestFetchResumesAfterBrokenBody(t *testing.T) {
	is := is.New(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			// promise the whole payload, deliver part of it
			w.Header().Set("Content-Length", "10000")
			w.Write(payload[:4000])
			return
		}
		http.ServeContent(w, r, "segment.ts", time.Time{}, bytes.NewReader(payload))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	_, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, testConfig())
	is.NoErr(err)
	is.Equal(attempts.Load(), int32(2))

	data, err := os.ReadFile(dest)
	is.NoErr(err)
	is.Equal(data, payload)
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	is := is.New(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segment.ts")
	_, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, testConfig())
	is.True(errors.Is(err, ErrTransport))
	is.Equal(attempts.Load(), int32(1)) // 404 is permanent
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	is := is.New(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RetryAttempts = 4
	dest := filepath.Join(t.TempDir(), "segment.ts")
	_, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, cfg)
	is.True(errors.Is(err, ErrTransport))
	is.Equal(attempts.Load(), int32(4))
}

func TestFetchReportsProgress(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(serveRanges(&rangeRecorder{}))
	defer srv.Close()

	var chunks int
	var lastDownloaded, lastTotal int64
	cfg := testConfig()
	cfg.ProgressUpdater = func(chunkSize int, downloaded, total int64) {
		chunks += chunkSize
		lastDownloaded, lastTotal = downloaded, total
	}

	dest := filepath.Join(t.TempDir(), "segment.ts")
	is.NoErr(os.WriteFile(dest, payload[:100], 0644))
	_, err := DownloadSegment(context.Background(), srv.Client(), srv.URL, dest, true, cfg)
	is.NoErr(err)
	is.Equal(chunks, len(payload)-100)            // only transferred bytes count as chunks
	is.Equal(lastDownloaded, int64(len(payload))) // resumed bytes count towards the total
	is.Equal(lastTotal, int64(len(payload)))
}

func TestFetchSendsHeadersAndCookies(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if r.Header.Get("Referer") != "https://example.com/" || err != nil || cookie.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Headers = map[string]string{"Referer": "https://example.com/"}
	cfg.Cookies = []*http.Cookie{{Name: "session", Value: "abc"}}

	data, err := NewTransfer(srv.Client(), cfg).FetchInMemory(context.Background(), srv.URL)
	is.NoErr(err)
	is.Equal(string(data), "#EXTM3U\n")
}

func TestFetchInMemoryLimit(t *testing.T) {
	is := is.New(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxInMemory = 100
	_, err := NewTransfer(srv.Client(), cfg).FetchInMemory(context.Background(), srv.URL)
	is.True(errors.Is(err, ErrFileTooLarge))
	is.Equal(attempts.Load(), int32(1)) // size limits are not retried
}

func TestFetchHonoursCancellation(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	cfg := testConfig()
	cfg.RetryInitialDelay = 10 * time.Millisecond

	dest := filepath.Join(t.TempDir(), "segment.ts")
	_, err := DownloadSegment(ctx, srv.Client(), srv.URL, dest, true, cfg)
	is.True(err != nil)
	is.True(errors.Is(err, ErrTransport))
}
