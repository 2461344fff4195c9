package compress

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Adaptive selector policies.
const (
	PolicyThreshold = "threshold"
	PolicyCost      = "cost"
	PolicyHybrid    = "hybrid"
	PolicyWeighted  = "weighted"
)

// ValidAdaptivePolicies is the set of recognized selector policies. The empty
// string selects the cost policy.
var ValidAdaptivePolicies = map[string]bool{
	"":              true,
	PolicyThreshold: true,
	PolicyCost:      true,
	PolicyHybrid:    true,
	PolicyWeighted:  true,
}

// IsValidAdaptivePolicy returns true if name is a recognized selector policy.
func IsValidAdaptivePolicy(name string) bool {
	return ValidAdaptivePolicies[name]
}

// AdaptiveConfig parameterizes the adaptive selector.
type AdaptiveConfig struct {
	Policy    string `yaml:"policy"`
	LowCodec  string `yaml:"low_codec"`  // fast, low ratio
	HighCodec string `yaml:"high_codec"` // slow, high ratio

	// HighUtilization is the link utilization at or above which the threshold
	// policy picks the high codec, and the starting point for hybrid.
	HighUtilization float64 `yaml:"high_utilization"`

	// Hybrid moves its threshold by ThresholdStep after every call: down when
	// the high codec's running ratio meets TargetRatio, up otherwise.
	TargetRatio   float64 `yaml:"target_ratio"`
	ThresholdStep float64 `yaml:"threshold_step"`
	MinThreshold  float64 `yaml:"min_threshold"`
	MaxThreshold  float64 `yaml:"max_threshold"`
}

// DefaultAdaptiveConfig pairs BDI with deflate under the cost policy.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Policy:          PolicyCost,
		LowCodec:        "bdi",
		HighCodec:       "deflate",
		HighUtilization: 0.7,
		TargetRatio:     2.0,
		ThresholdStep:   0.05,
		MinThreshold:    0.3,
		MaxThreshold:    0.95,
	}
}

// Validate checks the selector configuration.
func (c AdaptiveConfig) Validate() error {
	if !IsValidAdaptivePolicy(c.Policy) {
		return fmt.Errorf("unknown adaptive policy %q", c.Policy)
	}
	for _, name := range []string{c.LowCodec, c.HighCodec} {
		if !IsValidCodec(name) || name == "adaptive" {
			return fmt.Errorf("adaptive selector needs two non-adaptive codecs, got %q", name)
		}
	}
	if c.HighUtilization < 0 || c.HighUtilization > 1 {
		return fmt.Errorf("adaptive high_utilization must be in [0, 1], got %f", c.HighUtilization)
	}
	if c.Policy == PolicyHybrid {
		if c.MinThreshold < 0 || c.MaxThreshold > 1 || c.MinThreshold > c.MaxThreshold {
			return fmt.Errorf("adaptive thresholds must satisfy 0 <= min <= max <= 1, got [%f, %f]",
				c.MinThreshold, c.MaxThreshold)
		}
		if c.ThresholdStep <= 0 || c.TargetRatio <= 0 {
			return fmt.Errorf("hybrid policy needs threshold_step > 0 and target_ratio > 0")
		}
	}
	return nil
}

// Variants of Compressed produced by the selector.
const (
	VariantLow  uint8 = 0
	VariantHigh uint8 = 1
)

// codecTotals are the running totals the selector keeps per codec.
type codecTotals struct {
	calls      int64
	bytesIn    int64
	bytesOut   int64
	latencySum int64
}

func (t *codecTotals) add(in int, c Compressed, latency int64) {
	t.calls++
	t.bytesIn += int64(in)
	t.bytesOut += int64(c.Bytes)
	t.latencySum += latency
}

func (t *codecTotals) ratio() float64 {
	if t.bytesOut == 0 {
		return 1
	}
	return float64(t.bytesIn) / float64(t.bytesOut)
}

// AdaptiveStats summarizes the selector's choices.
type AdaptiveStats struct {
	Choices        [2]int64 // indexed by variant
	MeanRatio      [2]float64
	MeanLatency    [2]float64 // picoseconds per call
	FinalThreshold float64
}

// AdaptiveSelector runs a low and a high codec on every call, keeping both
// codecs' running statistics current, and charges only the one its policy
// picks given the current link utilization.
type AdaptiveSelector struct {
	codecs    [2]Codec
	cfg       AdaptiveConfig
	link      LinkMonitor
	now       int64
	threshold float64
	totals    [2]codecTotals
	choices   [2]int64
}

// NewAdaptiveSelector wraps low and high behind the configured policy.
func NewAdaptiveSelector(low, high Codec, cfg AdaptiveConfig, link LinkMonitor) (*AdaptiveSelector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if low == nil || high == nil || link == nil {
		return nil, fmt.Errorf("adaptive selector requires two codecs and a link monitor")
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyCost
	}
	logrus.Infof("adaptive compression: policy=%s low=%s high=%s", cfg.Policy, low.Name(), high.Name())
	return &AdaptiveSelector{
		codecs:    [2]Codec{low, high},
		cfg:       cfg,
		link:      link,
		threshold: cfg.HighUtilization,
	}, nil
}

func (s *AdaptiveSelector) Name() string    { return "adaptive" }
func (s *AdaptiveSelector) Stateless() bool { return false }

// SetClock sets the simulated time the next Compress reads utilization at.
func (s *AdaptiveSelector) SetClock(now int64) {
	s.now = now
}

func (s *AdaptiveSelector) variant(v uint8) Codec {
	if v == VariantHigh {
		return s.codecs[VariantHigh]
	}
	return s.codecs[VariantLow]
}

func (s *AdaptiveSelector) Compress(data []byte) (Compressed, int64) {
	var results [2]Compressed
	var latencies [2]int64
	for i, codec := range s.codecs {
		if clocked, ok := codec.(Clocked); ok {
			clocked.SetClock(s.now)
		}
		results[i], latencies[i] = codec.Compress(data)
		s.totals[i].add(len(data), results[i], latencies[i])
	}
	u := s.link.Utilization(s.now)
	v := s.choose(u, len(data), results, latencies)
	s.choices[v]++
	logrus.Debugf("adaptive: t=%d u=%.3f chose %s (%d -> %d bytes)",
		s.now, u, s.codecs[v].Name(), len(data), results[v].Bytes)
	c := results[v]
	c.Variant = v
	return c, latencies[v]
}

func (s *AdaptiveSelector) Decompress(c Compressed) int64 {
	return s.variant(c.Variant).Decompress(c)
}

func (s *AdaptiveSelector) choose(u float64, size int, results [2]Compressed, latencies [2]int64) uint8 {
	switch s.cfg.Policy {
	case PolicyThreshold:
		if u >= s.cfg.HighUtilization {
			return VariantHigh
		}
		return VariantLow
	case PolicyHybrid:
		if s.totals[VariantHigh].ratio() >= s.cfg.TargetRatio {
			s.threshold -= s.cfg.ThresholdStep
		} else {
			s.threshold += s.cfg.ThresholdStep
		}
		s.threshold = min(max(s.threshold, s.cfg.MinThreshold), s.cfg.MaxThreshold)
		if u >= s.threshold {
			return VariantHigh
		}
		return VariantLow
	case PolicyWeighted:
		return s.chooseWeighted(u, size, results, latencies)
	default:
		return s.chooseCost(results, latencies)
	}
}

// chooseCost predicts compress + transfer + decompress time for both results
// and picks the faster, preferring the low codec on ties.
func (s *AdaptiveSelector) chooseCost(results [2]Compressed, latencies [2]int64) uint8 {
	var total [2]int64
	for i := range results {
		total[i] = latencies[i] +
			s.link.PeekTransfer(s.now, int64(results[i].Bytes)) +
			s.codecs[i].Decompress(results[i])
	}
	if total[VariantHigh] < total[VariantLow] {
		return VariantHigh
	}
	return VariantLow
}

// chooseWeighted scores each codec by its normalized throughput weighted by
// idle link capacity plus its normalized space savings weighted by utilization.
func (s *AdaptiveSelector) chooseWeighted(u float64, size int, results [2]Compressed, latencies [2]int64) uint8 {
	var rate, saved [2]float64
	for i := range results {
		rate[i] = float64(size) / float64(max(latencies[i], 1))
		saved[i] = float64(size - int(results[i].Bytes))
	}
	var score [2]float64
	for i := range score {
		score[i] = (1-u)*normalize(rate[i], rate) + u*normalize(saved[i], saved)
	}
	if score[VariantHigh] > score[VariantLow] {
		return VariantHigh
	}
	return VariantLow
}

func normalize(v float64, all [2]float64) float64 {
	top := max(all[0], all[1])
	if top <= 0 {
		return 0
	}
	return v / top
}

// Stats returns the selector's choices and running codec statistics.
func (s *AdaptiveSelector) Stats() AdaptiveStats {
	st := AdaptiveStats{Choices: s.choices, FinalThreshold: s.threshold}
	for i, t := range s.totals {
		st.MeanRatio[i] = t.ratio()
		if t.calls > 0 {
			st.MeanLatency[i] = float64(t.latencySum) / float64(t.calls)
		}
	}
	return st
}
