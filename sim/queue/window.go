package queue

import (
	"math"

	"github.com/google/btree"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"
)

// maxUtilization keeps 1-u away from zero in the waiting-time formula.
const maxUtilization = 0.9999

// Record is one transfer held in the sliding window.
type Record struct {
	Start   int64 // time the transfer was requested
	Arrival int64 // time the last byte lands
	Service int64
	Bytes   int64
	Kind    Kind
	seq     uint64
}

func recordLess(a, b Record) bool {
	if a.Arrival != b.Arrival {
		return a.Arrival < b.Arrival
	}
	return a.seq < b.seq
}

// Window is a windowed M/G/1 queue over one link.
//
// Records stay in the window until their arrival time falls more than the
// window length behind now. Σt is exact in int64 and Σt² in 128 bits, so
// adding and expiring millions of transfers never drifts.
type Window struct {
	name      string
	size      int64 // window length
	maxDelay  int64 // cap on queueing delay
	bandwidth float64
	analytic  bool // false: service time only, never any queueing

	records *btree.BTreeG[Record]
	seq     uint64
	now     int64
	sumT    int64
	sumT2   util.SumSq

	stats SubQueueStats
}

// NewWindow creates a window of the given length. maxDelay <= 0 caps the
// queueing delay at the window length. If analytic is false the window only
// tracks load and reports zero queueing delay.
func NewWindow(name string, size, maxDelay int64, bandwidthGBps float64, analytic bool) *Window {
	if size <= 0 {
		panic("queue.NewWindow: window size must be > 0")
	}
	if maxDelay <= 0 || maxDelay > size {
		maxDelay = size
	}
	return &Window{
		name:      name,
		size:      size,
		maxDelay:  maxDelay,
		bandwidth: bandwidthGBps,
		analytic:  analytic,
		records:   btree.NewG[Record](32, recordLess),
		stats:     SubQueueStats{Name: name},
	}
}

// ServiceTime is the time the link needs to move bytes.
func (w *Window) ServiceTime(bytes int64) int64 {
	return util.TransferTime(bytes, w.bandwidth)
}

// advance clamps now to the latest time seen and drops expired records.
func (w *Window) advance(now int64) int64 {
	if now < w.now {
		now = w.now
	}
	w.now = now
	cutoff := now - w.size
	for {
		oldest, ok := w.records.Min()
		if !ok || oldest.Arrival >= cutoff {
			break
		}
		w.records.DeleteMin()
		w.sumT -= oldest.Service
		w.sumT2.Sub(oldest.Service)
	}
	return now
}

func (w *Window) utilization() float64 {
	u := float64(w.sumT) / float64(w.size)
	return math.Min(u, maxUtilization)
}

// queueDelay applies the Pollaczek-Khinchine mean waiting time
//
//	W = λ·E[t²] / (2·(1-u)),  λ = n/W, E[t²] = Σt²/n
//
// which simplifies to Σt² / (2·W·(1-u)).
func (w *Window) queueDelay() (delay int64, capped bool) {
	n := w.records.Len()
	if !w.analytic || n <= 1 {
		return 0, false
	}
	u := w.utilization()
	d := w.sumT2.Float64() / (2 * float64(w.size) * (1 - u))
	if d >= float64(w.maxDelay) {
		return w.maxDelay, true
	}
	return int64(d), false
}

func (w *Window) estimate(now, bytes int64, kind Kind) (Estimate, bool) {
	w.advance(now)
	delay, capped := w.queueDelay()
	return Estimate{QueueDelay: delay, ServiceTime: w.ServiceTime(bytes), Queue: kind}, capped
}

// Delay estimates the delay of a transfer and adds it to the window.
func (w *Window) Delay(now, bytes int64, kind Kind) Estimate {
	est, capped := w.estimate(now, bytes, kind)
	w.record(est.QueueDelay, bytes, capped)
	w.addItem(w.now, est, bytes, kind)
	return est
}

// PeekDelay estimates the delay of a transfer without adding it.
func (w *Window) PeekDelay(now, bytes int64, kind Kind) Estimate {
	est, _ := w.estimate(now, bytes, kind)
	return est
}

// Utilization returns Σt/W over the current window, capped just below 1.
func (w *Window) Utilization(now int64, _ Kind) float64 {
	w.advance(now)
	return w.utilization()
}

// Len returns the number of records currently in the window.
func (w *Window) Len() int {
	return w.records.Len()
}

// Stats returns the counters of this window.
func (w *Window) Stats() Stats {
	return Stats{Queues: []SubQueueStats{w.stats}}
}

func (w *Window) addItem(now int64, est Estimate, bytes int64, kind Kind) {
	w.seq++
	w.records.ReplaceOrInsert(Record{
		Start:   now,
		Arrival: now + est.Total(),
		Service: est.ServiceTime,
		Bytes:   bytes,
		Kind:    kind,
		seq:     w.seq,
	})
	w.sumT += est.ServiceTime
	w.sumT2.Add(est.ServiceTime)
}

func (w *Window) record(delay, bytes int64, capped bool) {
	w.stats.Requests++
	w.stats.Bytes += bytes
	w.stats.TotalQueueDelay += delay
	w.stats.MaxQueueDelay = max(w.stats.MaxQueueDelay, delay)
	if capped {
		w.stats.Capped++
	}
	bucket := int(w.utilization() * HistogramBuckets)
	w.stats.UtilizationHistogram[min(bucket, HistogramBuckets-1)]++
}
