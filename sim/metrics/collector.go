// Package metrics exposes the statistics of a finished run as Prometheus
// metrics, for scraping or for a node-exporter textfile.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/queue"
)

// Prometheus metric descriptor indices and descriptor table
const (
	accessesDesc = iota
	localHitsDesc
	remoteAccessesDesc
	inflightHitsDesc
	transfersDesc
	evictionsDesc
	writebacksDesc
	redundantDesc
	throttledDesc
	violationsDesc
	bytesMovedDesc
	compressionRatioDesc
	codecTransfersDesc
	latencyDesc
	queueRequestsDesc
	queueMeanDelayDesc
	queueMaxDelayDesc
	queueCappedDesc
	queueUtilizationDesc
	queueSpillsDesc
	requesterAccessesDesc
	requesterLatencyDesc
	localPagesDesc
	inflightPagesDesc
	numDescriptors
)

func desc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc("memsim_"+name, help, append([]string{"run"}, labels...), nil)
}

var descriptors = [numDescriptors]*prometheus.Desc{
	accessesDesc:          desc("accesses_total", "Memory accesses served."),
	localHitsDesc:         desc("local_hits_total", "Accesses served from local memory."),
	remoteAccessesDesc:    desc("remote_accesses_total", "Accesses that found their page remote."),
	inflightHitsDesc:      desc("inflight_hits_total", "Accesses to a page already moving local."),
	transfersDesc:         desc("page_transfers_total", "Pages brought local, by cause.", "cause"),
	evictionsDesc:         desc("evictions_total", "Pages evicted from local memory."),
	writebacksDesc:        desc("writebacks_total", "Dirty pages written back to remote memory."),
	redundantDesc:         desc("redundant_requests_total", "Cacheline requests for in-flight pages, by outcome.", "outcome"),
	throttledDesc:         desc("throttled_migrations_total", "Migrations skipped by admission control, by reason.", "reason"),
	violationsDesc:        desc("invariant_violations_total", "Internal invariant violations recovered from."),
	bytesMovedDesc:        desc("bytes_moved_total", "Bytes of migrated and written back pages.", "form"),
	compressionRatioDesc:  desc("compression_ratio", "Raw over compressed bytes moved."),
	codecTransfersDesc:    desc("codec_transfers_total", "Transfers compressed by each codec.", "codec"),
	latencyDesc:           desc("access_latency_seconds", "Access latency."),
	queueRequestsDesc:     desc("queue_requests_total", "Transfers committed to a link queue.", "queue"),
	queueMeanDelayDesc:    desc("queue_mean_delay_seconds", "Mean queueing delay of a link queue.", "queue"),
	queueMaxDelayDesc:     desc("queue_max_delay_seconds", "Largest queueing delay of a link queue.", "queue"),
	queueCappedDesc:       desc("queue_capped_total", "Queueing delays clamped to the cap.", "queue"),
	queueUtilizationDesc:  desc("queue_utilization_observations_total", "Utilization seen by each transfer, in 10% buckets.", "queue", "bucket"),
	queueSpillsDesc:       desc("queue_spills_total", "Transfers served by the other partition."),
	requesterAccessesDesc: desc("requester_accesses_total", "Accesses per requester.", "requester"),
	requesterLatencyDesc:  desc("requester_mean_latency_seconds", "Mean access latency per requester.", "requester"),
	localPagesDesc:        desc("local_pages", "Pages resident in local memory at the end of the run."),
	inflightPagesDesc:     desc("inflight_pages", "Pages still in flight at the end of the run."),
}

type collector struct {
	run   string
	stats sim.StatsSnapshot
}

// NewCollector creates a Prometheus collector over a finished run. An empty
// run id is replaced by a fresh xid.
func NewCollector(stats sim.StatsSnapshot, run string) prometheus.Collector {
	if run == "" {
		run = xid.New().String()
	}
	return &collector{run: run, stats: stats}
}

// Describe implements prometheus.Collector interface
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector interface
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats
	counter := func(d int, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(descriptors[d], prometheus.CounterValue, float64(v), append([]string{c.run}, labels...)...)
	}
	gauge := func(d int, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(descriptors[d], prometheus.GaugeValue, v, append([]string{c.run}, labels...)...)
	}

	counter(accessesDesc, s.Accesses)
	counter(localHitsDesc, s.LocalHits)
	counter(remoteAccessesDesc, s.RemoteAccesses)
	counter(inflightHitsDesc, s.InflightHits)
	counter(transfersDesc, s.Migrations, "migration")
	counter(transfersDesc, s.Prefetches, "prefetch")
	counter(transfersDesc, s.Placements, "placement")
	counter(evictionsDesc, s.Evictions)
	counter(writebacksDesc, s.Writebacks)
	counter(redundantDesc, s.RedundantFetches, "issued")
	counter(redundantDesc, s.RedundantSuppressed, "suppressed")
	counter(throttledDesc, s.ThrottledUtilization, "utilization")
	counter(throttledDesc, s.ThrottledBuffer, "buffer")
	counter(throttledDesc, s.ThrottledNoVictim, "no_victim")
	counter(violationsDesc, s.InvariantViolations)
	counter(bytesMovedDesc, s.BytesMoved, "raw")
	counter(bytesMovedDesc, s.CompressedBytesMoved, "compressed")
	gauge(compressionRatioDesc, s.CompressionRatio)
	for codec, n := range s.CodecUsage {
		counter(codecTransfersDesc, n, codec)
	}

	l := s.Latency
	ch <- prometheus.MustNewConstSummary(descriptors[latencyDesc],
		uint64(l.Count), seconds(l.Mean)*float64(l.Count),
		map[float64]float64{0.5: seconds(l.P50), 0.9: seconds(l.P90), 0.99: seconds(l.P99)},
		c.run)

	for _, q := range s.Queue.Queues {
		c.collectQueue(ch, q)
	}
	counter(queueSpillsDesc, s.Queue.Spills)

	for _, r := range s.Requesters {
		id := strconv.Itoa(r.ID)
		counter(requesterAccessesDesc, r.Accesses, id)
		gauge(requesterLatencyDesc, seconds(r.MeanLatency()), id)
	}
	gauge(localPagesDesc, float64(s.LocalPages))
	gauge(inflightPagesDesc, float64(s.InflightPages))
}

func (c *collector) collectQueue(ch chan<- prometheus.Metric, q queue.SubQueueStats) {
	labels := []string{c.run, q.Name}
	ch <- prometheus.MustNewConstMetric(descriptors[queueRequestsDesc], prometheus.CounterValue, float64(q.Requests), labels...)
	ch <- prometheus.MustNewConstMetric(descriptors[queueMeanDelayDesc], prometheus.GaugeValue, seconds(q.MeanQueueDelay()), labels...)
	ch <- prometheus.MustNewConstMetric(descriptors[queueMaxDelayDesc], prometheus.GaugeValue, seconds(float64(q.MaxQueueDelay)), labels...)
	ch <- prometheus.MustNewConstMetric(descriptors[queueCappedDesc], prometheus.CounterValue, float64(q.Capped), labels...)
	for i, n := range q.UtilizationHistogram {
		bucket := fmt.Sprintf("%d-%d%%", i*10, (i+1)*10)
		ch <- prometheus.MustNewConstMetric(descriptors[queueUtilizationDesc], prometheus.CounterValue, float64(n), c.run, q.Name, bucket)
	}
}

func seconds(ps float64) float64 {
	return ps / float64(sim.Second)
}

// WriteTextfile registers a collector for stats and writes every metric to
// path in the Prometheus text format.
func WriteTextfile(path string, stats sim.StatsSnapshot, run string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(stats, run)); err != nil {
		return fmt.Errorf("registering run collector: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
