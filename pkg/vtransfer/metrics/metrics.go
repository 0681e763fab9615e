// The view transfer protocol takes the 9XX metric range.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ViewTransferProcessMessageTime   = "VT_MSG_PROCESS_TIME"
	ViewTransferProcessMessageTimeID = 900
)

// The kind of value a metric collects.
type MetricKind uint8

const (
	Duration MetricKind = iota
)

// Granularity at which a metric is published.
type MetricLevel uint8

const (
	Info MetricLevel = iota
)

// A single metric this module publishes.
type MetricRegistry struct {
	ID    int
	Name  string
	Kind  MetricKind
	Level MetricLevel
}

// The metrics published by the view transfer protocol.
func Metrics() []MetricRegistry {
	return []MetricRegistry{
		{ID: ViewTransferProcessMessageTimeID, Name: ViewTransferProcessMessageTime, Kind: Duration, Level: Info},
	}
}

var processMessageTime = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name: "vt_msg_process_time_seconds",
	Help: "Wall clock spent processing a single view transfer message.",
})

func init() {
	prometheus.MustRegister(processMessageTime)
}

// Record the wall clock a single ProcessMessage call took,
// from entry to exit.
func ObserveProcessMessageTime(elapsed time.Duration) {
	processMessageTime.Observe(elapsed.Seconds())
}
