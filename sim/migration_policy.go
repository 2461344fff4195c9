package sim

import (
	"fmt"
	"math/rand"
	"sort"

	arc "github.com/hashicorp/golang-lru/arc/v2"
)

// Migration policy names.
const (
	PolicyAlways    = "always"
	PolicyThreshold = "threshold"
	PolicyStatic    = "static"
)

// ValidMigrationPolicies is the set of recognized migration policy names.
var ValidMigrationPolicies = map[string]bool{"": true, PolicyAlways: true, PolicyThreshold: true, PolicyStatic: true}

// IsValidMigrationPolicy returns true if name is a recognized migration policy.
func IsValidMigrationPolicy(name string) bool {
	return ValidMigrationPolicies[name]
}

func validNames(valid map[string]bool) []string {
	names := make([]string, 0, len(valid))
	for name := range valid {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MigrationPolicy decides whether a remote access should move its page to
// local memory. It never changes how a migration is carried out.
type MigrationPolicy interface {
	Name() string
	ShouldMigrate(now int64, page *Page) bool
}

// Committer is implemented by policies that must learn when a migration they
// approved actually started. Admission control may still refuse a page the
// policy approved.
type Committer interface {
	Migrated(key uint64)
}

// Placer is implemented by policies that fix a page's home on first sight.
type Placer interface {
	PlaceLocal(page *Page) bool
}

// AlwaysMigrate moves every remotely accessed page.
type AlwaysMigrate struct{}

func (AlwaysMigrate) Name() string                    { return PolicyAlways }
func (AlwaysMigrate) ShouldMigrate(int64, *Page) bool { return true }

// ThresholdMigrate moves a page once it has seen the configured number of
// remote accesses within a sliding window. Access history is kept for a
// bounded number of pages in an adaptive replacement cache and survives
// until the migration is admitted.
type ThresholdMigrate struct {
	accesses int
	window   int64
	history  *arc.ARCCache[uint64, []int64]
}

// NewThresholdMigrate creates a threshold policy remembering up to tracked pages.
func NewThresholdMigrate(accesses int, window int64, tracked int) (*ThresholdMigrate, error) {
	if accesses < 1 || window <= 0 {
		return nil, fmt.Errorf("threshold policy needs accesses >= 1 and window > 0, got %d and %d", accesses, window)
	}
	history, err := arc.NewARC[uint64, []int64](tracked)
	if err != nil {
		return nil, fmt.Errorf("threshold policy history: %w", err)
	}
	return &ThresholdMigrate{accesses: accesses, window: window, history: history}, nil
}

func (t *ThresholdMigrate) Name() string { return PolicyThreshold }

func (t *ThresholdMigrate) ShouldMigrate(now int64, page *Page) bool {
	times, _ := t.history.Get(page.Key)
	recent := times[:0:0]
	for _, ts := range times {
		if ts >= now-t.window {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	t.history.Add(page.Key, recent)
	return len(recent) >= t.accesses
}

// Migrated forgets key's history once the page is moving local.
func (t *ThresholdMigrate) Migrated(key uint64) {
	t.history.Remove(key)
}

// Tracked returns the number of pages with remembered remote accesses.
func (t *ThresholdMigrate) Tracked() int {
	return t.history.Len()
}

// StaticPlacement gives each page a fixed home on first sight, local with
// probability fraction, and never migrates.
type StaticPlacement struct {
	fraction float64
	rng      *rand.Rand
}

// NewStaticPlacement creates a static policy drawing homes from rng.
func NewStaticPlacement(fraction float64, rng *rand.Rand) *StaticPlacement {
	return &StaticPlacement{fraction: fraction, rng: rng}
}

func (s *StaticPlacement) Name() string                    { return PolicyStatic }
func (s *StaticPlacement) ShouldMigrate(int64, *Page) bool { return false }

func (s *StaticPlacement) PlaceLocal(*Page) bool {
	return s.rng.Float64() < s.fraction
}

// NewMigrationPolicy creates the policy named in cfg. Static placement draws
// from the placement subsystem of rng.
func NewMigrationPolicy(cfg MigrationConfig, rng *PartitionedRNG) (MigrationPolicy, error) {
	switch cfg.Policy {
	case "", PolicyAlways:
		return AlwaysMigrate{}, nil
	case PolicyThreshold:
		return NewThresholdMigrate(cfg.ThresholdAccesses, cfg.ThresholdWindowNs*Nanosecond, cfg.TrackedPages)
	case PolicyStatic:
		return NewStaticPlacement(cfg.StaticLocalFraction, rng.ForSubsystem(SubsystemPlacement)), nil
	default:
		return nil, fmt.Errorf("unknown migration policy %q (valid: %v)", cfg.Policy, validNames(ValidMigrationPolicies))
	}
}
