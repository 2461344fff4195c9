// Package queue models contention on the link between local and remote memory.
//
// A Model turns a transfer of N bytes into a contention-aware delay using a
// windowed M/G/1 approximation: the moments of the service times observed in
// a trailing window of simulated time feed the Pollaczek-Khinchine mean
// waiting time. Models are pure bookkeeping; nothing here blocks or schedules.
// Time is int64 picoseconds and must be presented in non-decreasing order.
package queue

import (
	"fmt"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"
)

// Kind classifies a transfer by the unit it moves.
type Kind int

const (
	// KindPage is a whole-page migration or writeback.
	KindPage Kind = iota
	// KindCacheline is a single cacheline fetch.
	KindCacheline
)

func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindCacheline:
		return "cacheline"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Estimate is the outcome of a delay query.
type Estimate struct {
	QueueDelay  int64 // waiting time before the transfer starts
	ServiceTime int64 // time on the wire once started
	Queue       Kind  // sub-queue that carried the transfer (differs from the request kind on overflow)
}

// Total returns queueing plus service time.
func (e Estimate) Total() int64 {
	return e.QueueDelay + e.ServiceTime
}

// Model is the contention simulator consulted for every transfer.
type Model interface {
	// Delay estimates the delay of a transfer and commits its load to the window.
	Delay(now, bytes int64, kind Kind) Estimate
	// PeekDelay estimates like Delay but leaves the window unchanged.
	PeekDelay(now, bytes int64, kind Kind) Estimate
	// Utilization returns the busy fraction of the sub-queue serving kind.
	Utilization(now int64, kind Kind) float64
	// Stats returns a copy of the accumulated counters.
	Stats() Stats
}

// HistogramBuckets is the number of 10%-wide utilization buckets.
const HistogramBuckets = 10

// SubQueueStats are the counters of one window.
type SubQueueStats struct {
	Name                 string
	Requests             int64
	Bytes                int64
	TotalQueueDelay      int64
	MaxQueueDelay        int64
	Capped               int64 // delays clamped to the cap (saturation)
	UtilizationHistogram [HistogramBuckets]int64
}

// MeanQueueDelay returns the average queueing delay per committed request.
func (s SubQueueStats) MeanQueueDelay() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TotalQueueDelay) / float64(s.Requests)
}

// Stats aggregates all sub-queues of a model.
type Stats struct {
	Queues []SubQueueStats
	Spills int64 // requests served by the other partition on overflow
}

// Config selects and parameterizes a queue model.
type Config struct {
	Model        string  `yaml:"model"`         // "windowed-mg1" (default) or "fixed"
	WindowNs     int64   `yaml:"window_ns"`     // sliding window length
	MaxDelayNs   int64   `yaml:"max_delay_ns"`  // cap on the queueing delay (0 = window length)
	Partitioned  bool    `yaml:"partitioned"`   // separate page and cacheline sub-queues
	PageFraction float64 `yaml:"page_fraction"` // share of bandwidth given to page transfers
	Overflow     bool    `yaml:"overflow"`      // allow spilling into the other sub-queue
	OverflowHigh float64 `yaml:"overflow_high"` // own utilization above which a spill is considered
	OverflowLow  float64 `yaml:"overflow_low"`  // other utilization below which a spill is allowed
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Model:        "windowed-mg1",
		WindowNs:     10_000,
		PageFraction: 0.5,
		OverflowHigh: 0.8,
		OverflowLow:  0.5,
	}
}

// ValidModels is the set of recognized queue model names.
var ValidModels = map[string]bool{"": true, "windowed-mg1": true, "fixed": true}

// IsValidModel returns true if name is a recognized queue model.
func IsValidModel(name string) bool {
	return ValidModels[name]
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if !IsValidModel(c.Model) {
		return fmt.Errorf("unknown queue model %q", c.Model)
	}
	if c.WindowNs <= 0 {
		return fmt.Errorf("queue window_ns must be > 0, got %d", c.WindowNs)
	}
	if c.MaxDelayNs < 0 {
		return fmt.Errorf("queue max_delay_ns must be non-negative, got %d", c.MaxDelayNs)
	}
	if c.Partitioned && (c.PageFraction <= 0 || c.PageFraction >= 1) {
		return fmt.Errorf("queue page_fraction must be in (0, 1), got %f", c.PageFraction)
	}
	if c.Overflow && (c.OverflowLow < 0 || c.OverflowHigh > 1 || c.OverflowLow > c.OverflowHigh) {
		return fmt.Errorf("queue overflow thresholds must satisfy 0 <= low <= high <= 1, got low=%f high=%f",
			c.OverflowLow, c.OverflowHigh)
	}
	return nil
}

// New builds the model named by cfg over a link of the given bandwidth (GB/s,
// 0 = unlimited). Unknown names are an error; nothing is partially built.
func New(cfg Config, bandwidthGBps float64) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	analytic := cfg.Model != "fixed"
	window := cfg.WindowNs * util.Nanosecond
	maxDelay := cfg.MaxDelayNs * util.Nanosecond
	if !cfg.Partitioned {
		return NewWindow("link", window, maxDelay, bandwidthGBps, analytic), nil
	}
	return NewPartitioned(cfg, window, maxDelay, bandwidthGBps, analytic), nil
}
