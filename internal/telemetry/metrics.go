package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archiver_cycles_total",
		Help: "Number of completed archive cycles.",
	})
	MessagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archiver_messages_fetched_total",
		Help: "Messages fetched from the source, per channel.",
	}, []string{"channel"})
	SinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archiver_sink_failures_total",
		Help: "Failed sink persist calls, per sink.",
	}, []string{"sink"})
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archiver_rate_limit_waits_total",
		Help: "Times the fetcher waited out a source rate limit.",
	})
	CheckpointSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archiver_checkpoint_save_failures_total",
		Help: "Failed checkpoint flushes.",
	})
)

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
