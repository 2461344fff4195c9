package workload

import (
	"fmt"
	"sort"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim"
)

// GeneratorConfig describes a synthetic hot/cold access stream.
type GeneratorConfig struct {
	Accesses      int     `yaml:"accesses"`
	Requesters    int     `yaml:"requesters"`
	Pages         int     `yaml:"pages"`          // footprint in pages
	HotPages      int     `yaml:"hot_pages"`      // leading pages of the footprint that form the hot set
	HotFraction   float64 `yaml:"hot_fraction"`   // probability an access goes to the hot set
	WriteFraction float64 `yaml:"write_fraction"` // probability an access is a write
	MeanGapNs     float64 `yaml:"mean_gap_ns"`    // mean gap between accesses of one requester
	Arrival       string  `yaml:"arrival"`        // gap process: poisson (default), gamma or weibull
	ArrivalCV     float64 `yaml:"arrival_cv"`     // gap coefficient of variation for gamma and weibull
	PageSize      int64   `yaml:"page_size"`
	AccessSize    int64   `yaml:"access_size"`
	Seed          int64   `yaml:"seed"`
}

// DefaultGeneratorConfig returns a 4-requester stream over 4096 pages with a
// 256-page hot set receiving 90% of accesses.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Accesses:      100_000,
		Requesters:    4,
		Pages:         4096,
		HotPages:      256,
		HotFraction:   0.9,
		WriteFraction: 0.3,
		MeanGapNs:     50,
		PageSize:      4096,
		AccessSize:    8,
	}
}

// Validate checks the generator ranges.
func (c GeneratorConfig) Validate() error {
	if c.Accesses < 0 || c.Requesters < 1 || c.Pages < 1 {
		return fmt.Errorf("generator needs accesses >= 0, requesters >= 1 and pages >= 1")
	}
	if c.HotPages < 0 || c.HotPages > c.Pages {
		return fmt.Errorf("hot_pages must be in [0, %d], got %d", c.Pages, c.HotPages)
	}
	if c.HotFraction < 0 || c.HotFraction > 1 || c.WriteFraction < 0 || c.WriteFraction > 1 {
		return fmt.Errorf("hot_fraction and write_fraction must be in [0, 1]")
	}
	if c.MeanGapNs <= 0 {
		return fmt.Errorf("mean_gap_ns must be > 0, got %f", c.MeanGapNs)
	}
	if !ValidArrivalProcesses[c.Arrival] {
		return fmt.Errorf("unknown arrival process %q", c.Arrival)
	}
	if c.PageSize <= 0 || c.AccessSize <= 0 || c.AccessSize > c.PageSize || c.PageSize%c.AccessSize != 0 {
		return fmt.Errorf("access_size must divide page_size, got %d and %d", c.AccessSize, c.PageSize)
	}
	return nil
}

// GenerateAccesses creates a synthetic access stream from cfg.
// Deterministic given the same config; each requester draws from its own
// RNG subsystem so adding a requester does not perturb the others.
// Returns accesses sorted by time, ties broken by requester.
func GenerateAccesses(cfg GeneratorConfig) ([]Access, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	slots := cfg.PageSize / cfg.AccessSize
	gaps, err := NewGapSampler(cfg.Arrival, cfg.MeanGapNs*float64(sim.Nanosecond), cfg.ArrivalCV)
	if err != nil {
		return nil, err
	}

	accesses := make([]Access, 0, cfg.Accesses)
	for id := 0; id < cfg.Requesters; id++ {
		r := rng.ForSubsystem(sim.SubsystemRequester(id))
		n := cfg.Accesses / cfg.Requesters
		if id < cfg.Accesses%cfg.Requesters {
			n++
		}
		now := int64(0)
		for i := 0; i < n; i++ {
			now += gaps.SampleGap(r)
			var page int
			if cfg.HotPages > 0 && r.Float64() < cfg.HotFraction {
				page = r.Intn(cfg.HotPages)
			} else {
				page = r.Intn(cfg.Pages)
			}
			offset := r.Int63n(slots) * cfg.AccessSize
			accesses = append(accesses, Access{
				TimePs:    now,
				Address:   uint64(int64(page)*cfg.PageSize + offset),
				Size:      cfg.AccessSize,
				IsWrite:   r.Float64() < cfg.WriteFraction,
				Requester: id,
			})
		}
	}
	sort.SliceStable(accesses, func(i, j int) bool {
		return accesses[i].TimePs < accesses[j].TimePs
	})
	return accesses, nil
}
