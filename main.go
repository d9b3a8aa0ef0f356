package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // profiling
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ncd/config"
	"ncd/logger"
	"ncd/metrics"
	"ncd/models"
	"ncd/telemetry"
	"ncd/util"
	"ncd/util/av"
	"ncd/util/hls"
	"ncd/util/libav"
	"ncd/util/networking"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type metaFlag map[string]string

func (m metaFlag) String() string {
	pairs := make([]string, 0, len(m))
	for key, value := range m {
		pairs = append(pairs, key+"="+value)
	}
	return strings.Join(pairs, ",")
}

func (m metaFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	m[key] = val
	return nil
}

type options struct {
	outputDir   string
	output      string
	title       string
	format      string
	cover       string
	metadata    metaFlag
	incremental bool
}

func parseFlags() (*options, []string) {
	opts := &options{metadata: make(metaFlag)}
	flag.StringVar(&opts.outputDir, "d", ".", "directory for finished files")
	flag.StringVar(&opts.output, "o", "", "output file, only valid with a single playlist")
	flag.StringVar(&opts.title, "title", "", "title used to name the output file")
	flag.StringVar(&opts.format, "format", libav.DefaultFormat, "output container (mkv, mp4, ts)")
	flag.StringVar(&opts.cover, "cover", "", "image attached as cover art (mkv only)")
	flag.Var(opts.metadata, "meta", "global metadata as key=value, may be repeated")
	flag.BoolVar(&opts.incremental, "incremental", false, "stop at the first output that already exists")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <playlist-url>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	return opts, flag.Args()
}

func main() {
	logger.Init()
	defer logger.Sync()

	opts, urls := parseFlags()
	if len(urls) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if opts.output != "" && len(urls) > 1 {
		zap.S().Fatal("-o can only be used with a single playlist")
	}

	// load environment variables and configurations
	if err := config.Load(); err != nil {
		zap.S().Fatalf("failed to load config: %v", err)
	}
	logger.SetLevel(config.Env.LogLevel)

	// check for ffmpeg binary
	if err := util.CheckFFmpeg(config.Env.FFmpegPath); err != nil {
		zap.S().Fatal(err)
	}

	muxArgs, err := libav.BuildMuxArgs(opts.format, opts.metadata, opts.cover)
	if err != nil {
		zap.S().Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, config.Env.ServiceName)
	if err != nil {
		zap.S().Fatalf("failed to init telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown(shutdownCtx)
	}()

	// setup metrics and pprof profiler
	if config.Env.MetricsPort > 0 {
		startMetricsServer(config.Env.MetricsPort)
	}

	// cleanup leftovers of interrupted runs
	util.CleanupOldFiles(config.Env.DownloadsDirectory, 30*time.Minute)

	if err := util.EnsureDownloadDir(opts.outputDir); err != nil {
		zap.S().Fatal(err)
	}

	registry := util.NewRegistry()
	defer registry.Cleanup()

	newSink := libav.NewSinkFactory(config.Env.FFmpegPath)
	extension := libav.FormatExtension(opts.format)

	var failed int
	for i, playlistURL := range urls {
		output, err := outputPath(opts, playlistURL, extension, i, len(urls))
		if err != nil {
			zap.S().Errorf("%s: %v", playlistURL, err)
			failed++
			continue
		}
		if opts.incremental {
			if _, err := os.Stat(output); err == nil {
				zap.S().Infof("%s already exists, stopping", output)
				break
			}
		}

		if err := download(ctx, playlistURL, output, muxArgs, newSink, registry); err != nil {
			zap.S().Errorf("%s: %v", playlistURL, err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if info, err := av.GetMediaInfo(output); err == nil {
			zap.S().Infof(
				"saved %s (%.0fs, %dx%d)",
				output, info.Duration, info.Width, info.Height,
			)
		} else {
			zap.S().Infof("saved %s", output)
			zap.S().Debug(err)
		}
	}

	if failed > 0 {
		registry.Cleanup()
		logger.Sync()
		os.Exit(1)
	}
}

func download(
	ctx context.Context,
	playlistURL string,
	output string,
	muxArgs models.MuxArgs,
	newSink hls.SinkFactory,
	registry *util.Registry,
) error {
	host, err := networking.ExtractBaseHost(playlistURL)
	if err != nil {
		zap.S().Debugf("no base host for %s: %v", playlistURL, err)
	}
	hostConfig := config.GetHostConfig(host)
	client := networking.GetHostHTTPClient(host, hostConfig)

	downloadConfig := config.DownloadConfig()

	cookiesFile := config.Env.CookiesFile
	if hostConfig != nil && hostConfig.CookiesFile != "" {
		cookiesFile = hostConfig.CookiesFile
	}
	if cookiesFile != "" {
		cookies, err := util.ParseCookieFile(cookiesFile)
		if err != nil {
			return err
		}
		downloadConfig.Cookies = cookies
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetDescription(filepath.Base(output)),
	)
	defer bar.Finish()

	var downloaded int64
	downloadConfig.ProgressUpdater = func(chunkSize int, _, _ int64) {
		downloaded += int64(chunkSize)
	}
	downloadConfig.SegmentUpdater = func(done, total int) {
		if bar.GetMax() != total {
			bar.ChangeMax(total)
		}
		bar.Describe(fmt.Sprintf("%s (%.1f MiB)", filepath.Base(output), float64(downloaded)/(1<<20)))
		bar.Set(done)
	}

	downloader := hls.NewDownloader(client, downloadConfig, newSink, registry)
	return downloader.Download(ctx, playlistURL, output, muxArgs)
}

func outputPath(
	opts *options,
	playlistURL string,
	extension string,
	index int,
	total int,
) (string, error) {
	if opts.output != "" {
		return opts.output, nil
	}
	title := opts.title
	if title == "" {
		title = titleFromURL(playlistURL)
	}
	// playlist basenames are often just "index", number
	// every output of a batch so they cannot collide
	var suffix string
	if total > 1 {
		suffix = fmt.Sprintf(" %02d", index+1)
	}
	name, err := util.OutputFilename(title, extension)
	if err != nil {
		return "", err
	}
	if suffix != "" {
		name = util.TruncateFilename(name, util.MaxFilenameLength, suffix)
	}
	return filepath.Join(opts.outputDir, name), nil
}

func titleFromURL(playlistURL string) string {
	parsed, err := url.Parse(playlistURL)
	if err != nil {
		return "output"
	}
	base := path.Base(parsed.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "output"
	}
	return base
}

func startMetricsServer(port int) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zap.S().Infof("serving metrics on port %d", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorf("metrics server stopped: %v", err)
		}
	}()
}
