package sim

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/compress"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/queue"
)

// Metrics counts engine events as they happen.
type Metrics struct {
	Accesses       int64
	Reads          int64
	Writes         int64
	LocalHits      int64
	RemoteAccesses int64 // accesses that found their page remote, migrated or not
	InflightHits   int64 // accesses that waited on a page already moving local
	ClampedTimes   int64 // accesses presented out of time order

	Migrations int64
	Prefetches int64
	Evictions  int64
	Writebacks int64
	Placements int64 // pages placed local directly by a static policy

	RedundantFetches    int64 // separate cacheline transfers for a page in flight
	RedundantSuppressed int64 // duplicate requests dropped while a page was in flight

	ThrottledUtilization int64
	ThrottledBuffer      int64
	ThrottledNoVictim    int64
	InvariantViolations  int64

	BytesMoved           int64 // raw bytes of migrated and written back pages
	CompressedBytesMoved int64 // bytes actually placed on the link for them
	CompressionLatency   int64
	DecompressionLatency int64
	CodecUsage           map[string]int64

	latencies  []float64
	requesters map[int]*RequesterStats
}

// RequesterStats summarizes the accesses of one requester.
type RequesterStats struct {
	ID           int
	Accesses     int64
	LocalHits    int64
	TotalLatency int64
}

// MeanLatency returns the average access latency in picoseconds.
func (r RequesterStats) MeanLatency() float64 {
	if r.Accesses == 0 {
		return 0
	}
	return float64(r.TotalLatency) / float64(r.Accesses)
}

func newMetrics() *Metrics {
	return &Metrics{
		CodecUsage: make(map[string]int64),
		requesters: make(map[int]*RequesterStats),
	}
}

func (m *Metrics) recordAccess(requester int, latency int64, localHit bool) {
	m.latencies = append(m.latencies, float64(latency))
	r, ok := m.requesters[requester]
	if !ok {
		r = &RequesterStats{ID: requester}
		m.requesters[requester] = r
	}
	r.Accesses++
	r.TotalLatency += latency
	if localHit {
		r.LocalHits++
	}
}

// StatsSnapshot is the read-only summary of a run.
type StatsSnapshot struct {
	Metrics
	CompressionRatio float64
	Latency          LatencySummary
	Queue            queue.Stats
	Adaptive         *compress.AdaptiveStats // nil unless the adaptive codec is active
	Requesters       []RequesterStats        // sorted by ID
	LocalPages       int
	InflightPages    int
}

// LocalHitRate returns the fraction of accesses served locally.
func (s StatsSnapshot) LocalHitRate() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.LocalHits) / float64(s.Accesses)
}

func (m *Metrics) snapshot() StatsSnapshot {
	s := StatsSnapshot{Metrics: *m, CompressionRatio: 1}
	s.CodecUsage = make(map[string]int64, len(m.CodecUsage))
	for name, n := range m.CodecUsage {
		s.CodecUsage[name] = n
	}
	s.latencies = nil
	s.requesters = nil
	if m.CompressedBytesMoved > 0 {
		s.CompressionRatio = float64(m.BytesMoved) / float64(m.CompressedBytesMoved)
	}
	s.Latency = SummarizeLatencies(append([]float64(nil), m.latencies...))
	for _, r := range m.requesters {
		s.Requesters = append(s.Requesters, *r)
	}
	sort.Slice(s.Requesters, func(i, j int) bool { return s.Requesters[i].ID < s.Requesters[j].ID })
	return s
}

// Print writes a human-readable report of the snapshot.
func (s StatsSnapshot) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Accesses             : %d (%d reads, %d writes)\n", s.Accesses, s.Reads, s.Writes)
	fmt.Fprintf(w, "Local Hits           : %d (%.2f%%)\n", s.LocalHits, 100*s.LocalHitRate())
	fmt.Fprintf(w, "Remote Accesses      : %d\n", s.RemoteAccesses)
	fmt.Fprintf(w, "In-flight Hits       : %d\n", s.InflightHits)
	if s.Latency.Count > 0 {
		fmt.Fprintf(w, "Latency mean/p50/p90/p99 : %.2f / %.2f / %.2f / %.2f ns\n",
			s.Latency.Mean/float64(Nanosecond), s.Latency.P50/float64(Nanosecond),
			s.Latency.P90/float64(Nanosecond), s.Latency.P99/float64(Nanosecond))
	}
	fmt.Fprintf(w, "Migrations           : %d (+%d prefetched)\n", s.Migrations, s.Prefetches)
	fmt.Fprintf(w, "Evictions            : %d (%d dirty writebacks)\n", s.Evictions, s.Writebacks)
	fmt.Fprintf(w, "Redundant Fetches    : %d issued, %d suppressed\n", s.RedundantFetches, s.RedundantSuppressed)
	fmt.Fprintf(w, "Throttled            : %d utilization, %d buffer, %d no victim\n",
		s.ThrottledUtilization, s.ThrottledBuffer, s.ThrottledNoVictim)
	fmt.Fprintf(w, "Bytes Moved          : %s raw, %s on link (ratio %.2f)\n",
		humanize.IBytes(uint64(s.BytesMoved)), humanize.IBytes(uint64(s.CompressedBytesMoved)), s.CompressionRatio)
	if len(s.CodecUsage) > 0 {
		names := make([]string, 0, len(s.CodecUsage))
		for name := range s.CodecUsage {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "Codec %-15s: %s transfers\n", name, humanize.Comma(s.CodecUsage[name]))
		}
	}
	for _, q := range s.Queue.Queues {
		fmt.Fprintf(w, "Queue %-15s: %d requests, mean delay %.2f ns, max %.2f ns, %d capped\n",
			q.Name, q.Requests, q.MeanQueueDelay()/float64(Nanosecond),
			float64(q.MaxQueueDelay)/float64(Nanosecond), q.Capped)
	}
	if s.Queue.Spills > 0 {
		fmt.Fprintf(w, "Queue Spills         : %d\n", s.Queue.Spills)
	}
	if s.InvariantViolations > 0 {
		fmt.Fprintf(w, "Invariant Violations : %d\n", s.InvariantViolations)
	}
}
