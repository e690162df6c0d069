package durable_kv_pairs

import (
	"time"

	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is shared by all repository implementations, each under own subsystem.
type Metrics struct {
	HandleTimeHist  prometheus.Histogram
	RequestsCnt     prometheus.Counter
	ErrProcessCnt   prometheus.Counter
	UnitsWrittenCnt prometheus.Counter
	UnitsDeletedCnt prometheus.Counter
	UnitsLoadedCnt  prometheus.Counter
	UnitsSkippedCnt prometheus.Counter
}

func NewMetrics(ss string) *Metrics {
	return &Metrics{
		HandleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
		)),
		RequestsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "requests_cnt",
			Subsystem: ss,
			Help:      "Count of incoming requests",
		}),
		ErrProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_processes_cnt",
			Subsystem: ss,
			Help:      "Count of processes finished with non-nil error",
		}),
		UnitsWrittenCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "units_written_cnt",
			Subsystem: ss,
			Help:      "Count of stored units written",
		}),
		UnitsDeletedCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "units_deleted_cnt",
			Subsystem: ss,
			Help:      "Count of stored units deleted",
		}),
		UnitsLoadedCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "units_loaded_cnt",
			Subsystem: ss,
			Help:      "Count of stored units loaded on bootstrap",
		}),
		UnitsSkippedCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "units_skipped_cnt",
			Subsystem: ss,
			Help:      "Count of stored units skipped on bootstrap",
		}),
	}
}

func (m *Metrics) List() []prometheus.Collector {
	return []prometheus.Collector{
		m.HandleTimeHist,
		m.RequestsCnt,
		m.ErrProcessCnt,
		m.UnitsWrittenCnt,
		m.UnitsDeletedCnt,
		m.UnitsLoadedCnt,
		m.UnitsSkippedCnt,
	}
}

// Observe is meant to be deferred with time.Now() and a pointer to the named result error.
func (m *Metrics) Observe(ts time.Time, resErr *error) {
	m.RequestsCnt.Inc()
	m.HandleTimeHist.Observe(float64(time.Since(ts)))
	if resErr != nil && *resErr != nil {
		m.ErrProcessCnt.Inc()
	}
}
