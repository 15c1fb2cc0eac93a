package metrics

import (
	"fmt"
	"net/http"

	"github.com/downfa11-org/go-journal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	prometheus.MustRegister(JournalsOpen, RecordsAppended, BytesAppended, AppendFailures, AppendLatency)
	prometheus.MustRegister(SegmentsCreated, OverflowSegments, BatchCommits, BatchFailures)
	prometheus.MustRegister(RecordsReplayed, ReplayGaps, TornSegments, QueueDepth)
}

// StartMetricsServer serves the default registry on :port/metrics in the background.
func StartMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		util.Info("[METRICS] Prometheus exporter listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Error("[METRICS] Failed to start metrics server: %v", err)
		}
	}()
	return srv
}
