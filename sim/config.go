package sim

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/compress"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/queue"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/trace"
)

// MigrationConfig groups the page movement policy and its admission valves.
type MigrationConfig struct {
	Policy              string  `yaml:"policy"`                // "always" (default), "threshold" or "static"
	ThresholdAccesses   int     `yaml:"threshold_accesses"`    // remote accesses before a threshold migration
	ThresholdWindowNs   int64   `yaml:"threshold_window_ns"`   // window the accesses must fall in
	TrackedPages        int     `yaml:"tracked_pages"`         // pages the threshold policy remembers
	StaticLocalFraction float64 `yaml:"static_local_fraction"` // probability a page's static home is local
	MaxUtilization      float64 `yaml:"max_utilization"`       // skip migration above this page-queue utilization (0 = off)
	MaxInflightPages    int     `yaml:"max_inflight_pages"`    // in-flight buffer entries (0 = unlimited)
	RedundantMoveLimit  int     `yaml:"redundant_move_limit"`  // cacheline fetches per in-flight page
	AvoidDirtyEviction  bool    `yaml:"avoid_dirty_eviction"`  // prefer clean victims in the LRU half
	PrefetchDegree      int     `yaml:"prefetch_degree"`       // next pages prefetched per migration (0 = off)
}

// NetworkConfig groups the link between local and remote memory.
type NetworkConfig struct {
	LatencyToLocalNs  int64   `yaml:"latency_to_local_ns"`
	LatencyToRemoteNs int64   `yaml:"latency_to_remote_ns"`
	BandwidthGBps     float64 `yaml:"bandwidth_gbps"` // 0 = unlimited
}

// HardwareConfig parameterizes ConstantHardware.
type HardwareConfig struct {
	LocalLatencyNs  int64 `yaml:"local_latency_ns"`
	RemoteLatencyNs int64 `yaml:"remote_latency_ns"`
}

// CompressionConfig enables a codec on migrated pages.
type CompressionConfig struct {
	Enabled         bool `yaml:"enabled"`
	compress.Config `yaml:",inline"`
}

// Config is the full engine configuration.
type Config struct {
	PageSize             int64             `yaml:"page_size"`
	CachelineSize        int64             `yaml:"cacheline_size"`
	CachelineGranularity bool              `yaml:"cacheline_granularity"` // migrate cachelines instead of pages
	LocalCapacityPages   int               `yaml:"local_capacity_pages"`
	Migration            MigrationConfig   `yaml:"migration"`
	Network              NetworkConfig     `yaml:"network"`
	Queue                queue.Config      `yaml:"queue"`
	Compression          CompressionConfig `yaml:"compression"`
	Hardware             HardwareConfig    `yaml:"hardware"`
	TraceLevel           string            `yaml:"trace_level"`
	Seed                 int64             `yaml:"seed"`
}

// DefaultConfig returns 4 KiB pages, 64-byte cachelines, a 1024-page local
// pool and a 25 GB/s link with compression disabled.
func DefaultConfig() Config {
	return Config{
		PageSize:           4096,
		CachelineSize:      64,
		LocalCapacityPages: 1024,
		Migration: MigrationConfig{
			Policy:              PolicyAlways,
			ThresholdAccesses:   2,
			ThresholdWindowNs:   100_000,
			TrackedPages:        4096,
			StaticLocalFraction: 0.5,
			RedundantMoveLimit:  4,
			AvoidDirtyEviction:  true,
		},
		Network: NetworkConfig{
			LatencyToLocalNs:  120,
			LatencyToRemoteNs: 120,
			BandwidthGBps:     25,
		},
		Queue:       queue.DefaultConfig(),
		Compression: CompressionConfig{Config: compress.DefaultConfig()},
		Hardware: HardwareConfig{
			LocalLatencyNs:  80,
			RemoteLatencyNs: 80,
		},
		TraceLevel: string(trace.TraceLevelNone),
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// UnitSize is the number of bytes one migration moves.
func (c Config) UnitSize() int64 {
	if c.CachelineGranularity {
		return c.CachelineSize
	}
	return c.PageSize
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if !isPowerOfTwo(c.PageSize) {
		add("page_size must be a positive power of two, got %d", c.PageSize)
	}
	if !isPowerOfTwo(c.CachelineSize) || c.CachelineSize > c.PageSize {
		add("cacheline_size must be a power of two no larger than page_size, got %d", c.CachelineSize)
	}
	if c.LocalCapacityPages < 0 {
		add("local_capacity_pages must be >= 0, got %d", c.LocalCapacityPages)
	}

	m := c.Migration
	if !IsValidMigrationPolicy(m.Policy) {
		add("unknown migration policy %q (valid: %v)", m.Policy, validNames(ValidMigrationPolicies))
	}
	if m.Policy == PolicyThreshold {
		if m.ThresholdAccesses < 1 {
			add("migration.threshold_accesses must be >= 1, got %d", m.ThresholdAccesses)
		}
		if m.ThresholdWindowNs <= 0 {
			add("migration.threshold_window_ns must be > 0, got %d", m.ThresholdWindowNs)
		}
		if m.TrackedPages < 1 {
			add("migration.tracked_pages must be >= 1, got %d", m.TrackedPages)
		}
	}
	if m.StaticLocalFraction < 0 || m.StaticLocalFraction > 1 {
		add("migration.static_local_fraction must be in [0, 1], got %f", m.StaticLocalFraction)
	}
	if m.MaxUtilization < 0 || m.MaxUtilization > 1 {
		add("migration.max_utilization must be in [0, 1], got %f", m.MaxUtilization)
	}
	if m.MaxInflightPages < 0 || m.RedundantMoveLimit < 0 || m.PrefetchDegree < 0 {
		add("migration limits must be non-negative")
	}

	if c.Network.LatencyToLocalNs < 0 || c.Network.LatencyToRemoteNs < 0 {
		add("network latencies must be non-negative")
	}
	if c.Network.BandwidthGBps < 0 {
		add("network.bandwidth_gbps must be >= 0, got %f", c.Network.BandwidthGBps)
	}
	if c.Hardware.LocalLatencyNs < 0 || c.Hardware.RemoteLatencyNs < 0 {
		add("hardware latencies must be non-negative")
	}
	if err := c.Queue.Validate(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("queue: %w", err))
	}
	if c.Compression.Enabled {
		if err := c.Compression.Config.Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("compression: %w", err))
		}
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		add("unknown trace_level %q", c.TraceLevel)
	}
	return errs.ErrorOrNil()
}

func isPowerOfTwo(v int64) bool {
	return v > 0 && v&(v-1) == 0
}
