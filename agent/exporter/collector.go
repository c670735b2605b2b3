package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safeping/safeping-agent/agent/autoping"
)

// ResultSource yields the outcome of the most recent ping round.
type ResultSource interface {
	Iterate(callback func(res autoping.Result))
}

var (
	labels   = []string{"target"}
	descSent = prometheus.NewDesc(
		"ping_packets_sent",
		"Echo requests sent to target in the last round",
		labels, nil,
	)
	descReceived = prometheus.NewDesc(
		"ping_packets_received",
		"Echo replies received from target in the last round",
		labels, nil,
	)
	descLost = prometheus.NewDesc(
		"ping_packets_lost",
		"Echo requests left unanswered in the last round",
		labels, nil,
	)
	descMin = prometheus.NewDesc(
		"ping_rtt_min_ms",
		"Minimum round trip time to target",
		labels, nil,
	)
	descMax = prometheus.NewDesc(
		"ping_rtt_max_ms",
		"Maximum round trip time to target",
		labels, nil,
	)
	descMean = prometheus.NewDesc(
		"ping_rtt_mean_ms",
		"Mean round trip time to target",
		labels, nil,
	)
	descVariance = prometheus.NewDesc(
		"ping_rtt_variance",
		"Round trip time variance accumulator for target",
		labels, nil,
	)
)

type pingCollector struct {
	source ResultSource
}

func NewCollector(source ResultSource) prometheus.Collector {
	return &pingCollector{source: source}
}

func (pc *pingCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(pc, ch)
}

func (pc *pingCollector) Collect(ch chan<- prometheus.Metric) {
	pc.source.Iterate(func(res autoping.Result) {
		ch <- prometheus.MustNewConstMetric(descSent,
			prometheus.GaugeValue, float64(res.Sent), res.Target)
		ch <- prometheus.MustNewConstMetric(descReceived,
			prometheus.GaugeValue, float64(res.Received), res.Target)
		ch <- prometheus.MustNewConstMetric(descLost,
			prometheus.GaugeValue, float64(res.Lost), res.Target)
		if res.Received == 0 {
			// no samples means no round trip times to report
			return
		}
		ch <- prometheus.MustNewConstMetric(descMin,
			prometheus.GaugeValue, res.MinRtt, res.Target)
		ch <- prometheus.MustNewConstMetric(descMax,
			prometheus.GaugeValue, res.MaxRtt, res.Target)
		ch <- prometheus.MustNewConstMetric(descMean,
			prometheus.GaugeValue, res.MeanRtt, res.Target)
		ch <- prometheus.MustNewConstMetric(descVariance,
			prometheus.GaugeValue, res.Variance, res.Target)
	})
}
