package sim

import "github.com/kaii789/disaggregated-systems-research-sub000/sim/compress"

// Residency is where a page currently lives. A page has exactly one.
type Residency int

const (
	Remote Residency = iota
	Local
	InFlightToLocal
	InFlightToRemote
)

func (r Residency) String() string {
	switch r {
	case Remote:
		return "remote"
	case Local:
		return "local"
	case InFlightToLocal:
		return "inflight-to-local"
	case InFlightToRemote:
		return "inflight-to-remote"
	default:
		return "unknown"
	}
}

// InFlight reports whether the page is moving in either direction.
func (r Residency) InFlight() bool {
	return r == InFlightToLocal || r == InFlightToRemote
}

// PageKey masks an address down to its aligned unit. unit must be a power of two.
func PageKey(addr uint64, unit int64) uint64 {
	return addr &^ (uint64(unit) - 1)
}

// cachedCompression is the result of the last compression of a page.
type cachedCompression struct {
	valid      bool
	result     compress.Compressed
	compress   int64
	decompress int64
}

// Page is the residency state of one migration unit.
type Page struct {
	Key         uint64
	State       Residency
	Arrival     int64 // in-flight completion time; meaningful only while in flight
	Dirty       bool
	AccessCount int64

	compressed cachedCompression
	placed     bool // initial home decided

	// redundant cacheline fetches issued during the current inbound transfer
	redundant int
	lines     map[uint64]int64 // cacheline key -> arrival

	prev, next *Page // LRU list of Local pages, head is least recently used
}

// markDirty records a write and drops any cached compression result.
func (p *Page) markDirty() {
	p.Dirty = true
	p.compressed.valid = false
}

// lineArrival returns when line arrives if it has its own transfer in flight at now.
func (p *Page) lineArrival(line uint64, now int64) (int64, bool) {
	arrival, ok := p.lines[line]
	if !ok || arrival <= now {
		return 0, false
	}
	return arrival, true
}
