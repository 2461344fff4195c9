package sim

import (
	"errors"
	"fmt"

	"github.com/google/btree"
)

var (
	// ErrNoCapacity means local memory holds no pages at all.
	ErrNoCapacity = errors.New("local memory has no capacity")
	// ErrBufferExhausted means every local slot is held by a page still in flight.
	ErrBufferExhausted = errors.New("local slots all held by in-flight pages")
)

// ResidencyManager classifies pages as local, remote or in flight, keeps the
// LRU order of local pages and picks eviction victims.
//
// Local pages plus pages in flight to local never exceed the capacity: an
// inbound transfer holds its slot from the moment it starts.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type ResidencyManager struct {
	capacity   int
	avoidDirty bool

	pages    map[uint64]*Page
	lruHead  *Page // least recently used
	lruTail  *Page // most recently used
	local    int
	inbound  int
	outbound int
	inflight *btree.BTreeG[*Page] // ordered by (Arrival, Key)
}

func inflightLess(a, b *Page) bool {
	if a.Arrival != b.Arrival {
		return a.Arrival < b.Arrival
	}
	return a.Key < b.Key
}

// NewResidencyManager creates a manager for capacity local pages.
// Panics if capacity is negative.
func NewResidencyManager(capacity int, avoidDirty bool) *ResidencyManager {
	if capacity < 0 {
		panic(fmt.Sprintf("NewResidencyManager: capacity must be >= 0, got %d", capacity))
	}
	return &ResidencyManager{
		capacity:   capacity,
		avoidDirty: avoidDirty,
		pages:      make(map[uint64]*Page),
		inflight:   btree.NewG[*Page](32, inflightLess),
	}
}

// Capacity returns the number of local slots.
func (rm *ResidencyManager) Capacity() int { return rm.capacity }

// Page returns the page for key, creating it as Remote on first sight.
func (rm *ResidencyManager) Page(key uint64) *Page {
	if p, ok := rm.pages[key]; ok {
		return p
	}
	p := &Page{Key: key, State: Remote}
	rm.pages[key] = p
	return p
}

// Lookup returns the page for key without creating it.
func (rm *ResidencyManager) Lookup(key uint64) (*Page, bool) {
	p, ok := rm.pages[key]
	return p, ok
}

// Classify returns the page for key and its residency. A local page becomes
// the most recently used.
func (rm *ResidencyManager) Classify(key uint64) (*Page, Residency) {
	p := rm.Page(key)
	if p.State == Local {
		rm.removeLRU(p)
		rm.appendLRU(p)
	}
	return p, p.State
}

// CompleteInflight finalizes every transfer whose arrival is at or before now
// and returns the pages that changed state, in arrival order.
func (rm *ResidencyManager) CompleteInflight(now int64) []*Page {
	var done []*Page
	for {
		p, ok := rm.inflight.Min()
		if !ok || p.Arrival > now {
			return done
		}
		rm.inflight.DeleteMin()
		switch p.State {
		case InFlightToLocal:
			rm.inbound--
			p.State = Local
			p.redundant = 0
			p.lines = nil
			rm.appendLRU(p)
			rm.local++
		case InFlightToRemote:
			rm.outbound--
			p.State = Remote
			p.Dirty = false
		}
		done = append(done, p)
	}
}

// Occupancy is the number of slots held by local and inbound pages.
func (rm *ResidencyManager) Occupancy() int { return rm.local + rm.inbound }

// FreeSlots is the number of slots an inbound page could take without eviction.
func (rm *ResidencyManager) FreeSlots() int { return rm.capacity - rm.Occupancy() }

// InflightCount is the number of pages moving in either direction.
func (rm *ResidencyManager) InflightCount() int { return rm.inbound + rm.outbound }

// LocalCount is the number of pages resident in local memory.
func (rm *ResidencyManager) LocalCount() int { return rm.local }

// ReserveSlot makes room for one inbound page. When local memory is full it
// evicts a victim and returns it in state Remote; the caller schedules the
// writeback if the victim is dirty.
func (rm *ResidencyManager) ReserveSlot() (*Page, error) {
	if rm.capacity == 0 {
		return nil, ErrNoCapacity
	}
	if rm.Occupancy() < rm.capacity {
		return nil, nil
	}
	if rm.local == 0 {
		return nil, ErrBufferExhausted
	}
	victim := rm.selectVictim()
	rm.removeLRU(victim)
	rm.local--
	victim.State = Remote
	return victim, nil
}

// selectVictim returns the least recently used page, or with dirty avoidance
// the first clean page within the least recently used half.
func (rm *ResidencyManager) selectVictim() *Page {
	if !rm.avoidDirty {
		return rm.lruHead
	}
	limit := min(rm.local/2+1, rm.local)
	p := rm.lruHead
	for i := 0; i < limit && p != nil; i++ {
		if !p.Dirty {
			return p
		}
		p = p.next
	}
	return rm.lruHead
}

// BeginInflight moves p into flight toward dir, completing at arrival.
// Moving toward local requires a slot reserved with ReserveSlot.
func (rm *ResidencyManager) BeginInflight(p *Page, arrival int64, dir Residency) error {
	if !dir.InFlight() {
		return fmt.Errorf("BeginInflight: %s is not a transfer direction", dir)
	}
	if dir == InFlightToLocal && p.State != Local && rm.Occupancy() >= rm.capacity {
		return ErrBufferExhausted
	}
	rm.detach(p)
	p.State = dir
	p.Arrival = arrival
	if dir == InFlightToLocal {
		rm.inbound++
		p.redundant = 0
		p.lines = nil
	} else {
		rm.outbound++
	}
	rm.inflight.ReplaceOrInsert(p)
	return nil
}

// InsertLocal places a remote page directly into a free local slot.
func (rm *ResidencyManager) InsertLocal(p *Page) error {
	if p.State != Remote {
		return fmt.Errorf("InsertLocal: page %#x is %s", p.Key, p.State)
	}
	if rm.FreeSlots() <= 0 {
		return ErrBufferExhausted
	}
	p.State = Local
	rm.appendLRU(p)
	rm.local++
	return nil
}

// MarkDirty records a write to the page for key.
func (rm *ResidencyManager) MarkDirty(key uint64) {
	rm.Page(key).markDirty()
}

// IsDirty reports whether the page for key has unwritten changes.
func (rm *ResidencyManager) IsDirty(key uint64) bool {
	p, ok := rm.pages[key]
	return ok && p.Dirty
}

// detach removes p from whatever structure its current state keeps it in.
func (rm *ResidencyManager) detach(p *Page) {
	switch p.State {
	case Local:
		rm.removeLRU(p)
		rm.local--
	case InFlightToLocal:
		rm.inflight.Delete(p)
		rm.inbound--
	case InFlightToRemote:
		rm.inflight.Delete(p)
		rm.outbound--
	}
}

// appendLRU inserts a page at the most recently used end without touching counters.
func (rm *ResidencyManager) appendLRU(p *Page) {
	p.next = nil
	if rm.lruTail != nil {
		rm.lruTail.next = p
		p.prev = rm.lruTail
		rm.lruTail = p
	} else {
		rm.lruHead = p
		rm.lruTail = p
		p.prev = nil
	}
}

// removeLRU unlinks a page from the LRU list without touching counters.
func (rm *ResidencyManager) removeLRU(p *Page) {
	if p.prev != nil {
		p.prev.next = p.next
	} else {
		rm.lruHead = p.next
	}
	if p.next != nil {
		p.next.prev = p.prev
	} else {
		rm.lruTail = p.prev
	}
	p.prev = nil
	p.next = nil
}

// LocalPages returns local page keys from least to most recently used.
func (rm *ResidencyManager) LocalPages() []uint64 {
	keys := make([]uint64, 0, rm.local)
	for p := rm.lruHead; p != nil; p = p.next {
		keys = append(keys, p.Key)
	}
	return keys
}

// CheckInvariants verifies the counters against the page states and the LRU
// list, and that occupancy is within capacity.
func (rm *ResidencyManager) CheckInvariants() error {
	counts := make(map[Residency]int)
	for _, p := range rm.pages {
		counts[p.State]++
	}
	if counts[Local] != rm.local || counts[InFlightToLocal] != rm.inbound || counts[InFlightToRemote] != rm.outbound {
		return fmt.Errorf("state counts %v disagree with local=%d inbound=%d outbound=%d",
			counts, rm.local, rm.inbound, rm.outbound)
	}
	listed := 0
	for p := rm.lruHead; p != nil; p = p.next {
		if p.State != Local {
			return fmt.Errorf("page %#x on LRU list is %s", p.Key, p.State)
		}
		listed++
	}
	if listed != rm.local {
		return fmt.Errorf("LRU list holds %d pages, want %d", listed, rm.local)
	}
	if n := rm.inflight.Len(); n != rm.inbound+rm.outbound {
		return fmt.Errorf("in-flight index holds %d pages, want %d", n, rm.inbound+rm.outbound)
	}
	if rm.Occupancy() > rm.capacity {
		return fmt.Errorf("occupancy %d exceeds capacity %d", rm.Occupancy(), rm.capacity)
	}
	return nil
}
