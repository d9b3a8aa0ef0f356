package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ncd",
		Name:      "downloads_total",
		Help:      "Finished downloads by result.",
	}, []string{"result"})

	DownloadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ncd",
		Name:      "download_failures_total",
		Help:      "Failed downloads by pipeline stage.",
	}, []string{"stage"})

	ActiveDownloads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ncd",
		Name:      "active_downloads",
		Help:      "Number of downloads currently streaming into a muxer.",
	})

	SegmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ncd",
		Name:      "segments_total",
		Help:      "Total number of segments handed to the muxer.",
	})

	SegmentBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ncd",
		Name:      "segment_bytes_total",
		Help:      "Total number of segment bytes written to temporary storage.",
	})

	SegmentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ncd",
		Name:      "segment_fetch_duration_seconds",
		Help:      "Time spent transferring a single segment, retries included.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	})

	RequestRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ncd",
		Name:      "request_retries_total",
		Help:      "Total number of retried HTTP requests.",
	})

	ResumedTransfersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ncd",
		Name:      "resumed_transfers_total",
		Help:      "Segment transfers that asked for a byte range, by whether the server honoured it.",
	}, []string{"honoured"})

	ConduitDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ncd",
		Name:      "conduit_depth",
		Help:      "Decoded segments waiting for the muxer.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		DownloadsTotal,
		DownloadFailuresTotal,
		ActiveDownloads,
		SegmentsTotal,
		SegmentBytesTotal,
		SegmentDuration,
		RequestRetriesTotal,
		ResumedTransfersTotal,
		ConduitDepth,
	)
}
