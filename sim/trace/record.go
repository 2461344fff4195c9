// Package trace provides decision-trace recording for residency and migration analysis.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// Migration decisions.
const (
	DecisionMigrate          = "migrate"
	DecisionPrefetch         = "prefetch"
	DecisionSkipUtilization  = "skip-utilization"
	DecisionSkipBuffer       = "skip-buffer"
	DecisionSkipNoVictim     = "skip-no-victim"
	DecisionSkipInconsistent = "skip-inconsistent"
)

// MigrationRecord captures one decision to move, or not move, a page to local memory.
type MigrationRecord struct {
	Clock           int64
	Page            uint64
	Requester       int
	Decision        string
	RawBytes        int64
	CompressedBytes int64  // 0 for skipped migrations
	Codec           string // codec that produced CompressedBytes; empty when uncompressed
	QueueDelay      int64
	Arrival         int64 // simulated time the page becomes local
}

// EvictionRecord captures a page leaving local memory.
type EvictionRecord struct {
	Clock int64
	Page  uint64
	Dirty bool
	Cause uint64 // page whose admission forced the eviction
}

// WritebackRecord captures a dirty page sent back to remote memory.
type WritebackRecord struct {
	Clock           int64
	Page            uint64
	CompressedBytes int64
	Arrival         int64
}

// RedundantRecord captures an access to a cacheline of a page still in flight.
type RedundantRecord struct {
	Clock       int64
	Page        uint64
	Line        uint64
	Issued      bool   // true if a separate cacheline transfer was requested
	Reason      string // why no transfer was requested; empty when Issued
	PageArrival int64
	LineArrival int64 // 0 when not issued
}
