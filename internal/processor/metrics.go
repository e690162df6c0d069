package processor

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	flushTimeHist prometheus.Histogram
	flushesCnt    prometheus.Counter
	errFlushesCnt prometheus.Counter
	mergedOpsCnt  prometheus.Counter
	droppedOpsCnt prometheus.Counter
	queueLenGauge prometheus.GaugeFunc
}

func newMetrics(queueLen func() int) *metrics {
	const ss = "processor"
	return &metrics{
		flushTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"flush_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Flush time distribution"),
		)),
		flushesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "flushes_cnt",
			Subsystem: ss,
			Help:      "Count of non-empty flushes",
		}),
		errFlushesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_flushes_cnt",
			Subsystem: ss,
			Help:      "Count of flushes finished with non-nil error",
		}),
		mergedOpsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "merged_ops_cnt",
			Subsystem: ss,
			Help:      "Count of ops merged into flushes",
		}),
		droppedOpsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "dropped_ops_cnt",
			Subsystem: ss,
			Help:      "Count of ops dropped on abrupt stop",
		}),
		queueLenGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "queue_len_gauge",
			Subsystem: ss,
			Help:      "actual count of queued ops",
		}, func() float64 {
			return float64(queueLen())
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.flushTimeHist,
		m.flushesCnt,
		m.errFlushesCnt,
		m.mergedOpsCnt,
		m.droppedOpsCnt,
		m.queueLenGauge,
	}
}
