package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// admit moves a remote page through a zero-length transfer into local memory.
func admit(t *testing.T, rm *ResidencyManager, key uint64, now int64) *Page {
	t.Helper()
	p := rm.Page(key)
	victim, err := rm.ReserveSlot()
	require.NoError(t, err)
	require.Nil(t, victim)
	require.NoError(t, rm.BeginInflight(p, now, InFlightToLocal))
	rm.CompleteInflight(now)
	require.Equal(t, Local, p.State)
	return p
}

func TestResidencyManager_Classify_PromotesLocalPage(t *testing.T) {
	// GIVEN local pages 1, 2, 3 admitted in order
	rm := NewResidencyManager(3, false)
	for _, k := range []uint64{1, 2, 3} {
		admit(t, rm, k, 0)
	}

	// WHEN page 1 is classified
	_, state := rm.Classify(1)

	// THEN it is local and now most recently used
	assert.Equal(t, Local, state)
	assert.Equal(t, []uint64{2, 3, 1}, rm.LocalPages())
	assert.Equal(t, 3, rm.LocalCount())
	require.NoError(t, rm.CheckInvariants())
}

func TestResidencyManager_Classify_UnknownPageIsRemote(t *testing.T) {
	rm := NewResidencyManager(1, false)

	p, state := rm.Classify(0x1000)

	assert.Equal(t, Remote, state)
	assert.Equal(t, uint64(0x1000), p.Key)
}

func TestResidencyManager_ReserveSlot_StrictLRU(t *testing.T) {
	rm := NewResidencyManager(2, false)
	admit(t, rm, 1, 0).markDirty()
	admit(t, rm, 2, 0)

	victim, err := rm.ReserveSlot()

	require.NoError(t, err)
	assert.Equal(t, uint64(1), victim.Key, "strict LRU ignores the dirty bit")
	assert.Equal(t, Remote, victim.State)
	assert.True(t, victim.Dirty)
	assert.Equal(t, 1, rm.LocalCount())
}

func TestResidencyManager_ReserveSlot_PrefersCleanInLRUHalf(t *testing.T) {
	tests := []struct {
		name       string
		dirty      []uint64
		wantVictim uint64
	}{
		{"clean head", nil, 1},
		{"dirty head, clean second", []uint64{1}, 2},
		{"clean page beyond the scanned half falls back to head", []uint64{1, 2, 3}, 1},
		{"all dirty falls back to head", []uint64{1, 2, 3, 4}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN four local pages in LRU order 1..4; the scan covers 4/2+1 = 3 pages
			rm := NewResidencyManager(4, true)
			for k := uint64(1); k <= 4; k++ {
				admit(t, rm, k, 0)
			}
			for _, k := range tt.dirty {
				rm.MarkDirty(k)
			}

			victim, err := rm.ReserveSlot()

			require.NoError(t, err)
			assert.Equal(t, tt.wantVictim, victim.Key)
			require.NoError(t, rm.CheckInvariants())
		})
	}
}

func TestResidencyManager_ReserveSlot_ZeroCapacity(t *testing.T) {
	rm := NewResidencyManager(0, true)

	_, err := rm.ReserveSlot()

	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestResidencyManager_ReserveSlot_AllSlotsInFlight(t *testing.T) {
	// GIVEN one slot held by a page still moving local
	rm := NewResidencyManager(1, false)
	require.NoError(t, rm.BeginInflight(rm.Page(1), 100, InFlightToLocal))

	// WHEN another slot is requested
	_, err := rm.ReserveSlot()

	// THEN there is nothing to evict
	assert.ErrorIs(t, err, ErrBufferExhausted)
	assert.ErrorIs(t, rm.BeginInflight(rm.Page(2), 100, InFlightToLocal), ErrBufferExhausted)
	require.NoError(t, rm.CheckInvariants())
}

func TestResidencyManager_CompleteInflight_InArrivalOrder(t *testing.T) {
	// GIVEN three pages in flight arriving at 30, 10, 20 and a dirty page being written back at 15
	rm := NewResidencyManager(4, false)
	for key, arrival := range map[uint64]int64{1: 30, 2: 10, 3: 20} {
		require.NoError(t, rm.BeginInflight(rm.Page(key), arrival, InFlightToLocal))
	}
	wb := rm.Page(4)
	wb.markDirty()
	require.NoError(t, rm.BeginInflight(wb, 15, InFlightToRemote))
	assert.Equal(t, 3, rm.Occupancy(), "outbound pages hold no local slot")

	// WHEN time reaches 20
	done := rm.CompleteInflight(20)

	// THEN the three transfers due by 20 finish in arrival order
	require.Len(t, done, 3)
	assert.Equal(t, []uint64{2, 4, 3}, []uint64{done[0].Key, done[1].Key, done[2].Key})
	assert.Equal(t, []uint64{2, 3}, rm.LocalPages())
	assert.Equal(t, Remote, wb.State)
	assert.False(t, wb.Dirty, "a completed writeback cleans the page")
	assert.Equal(t, InFlightToLocal, rm.Page(1).State)
	assert.Equal(t, 1, rm.InflightCount())
	require.NoError(t, rm.CheckInvariants())
}

func TestResidencyManager_BeginInflight_SupersedesWriteback(t *testing.T) {
	// GIVEN a page being written back
	rm := NewResidencyManager(2, false)
	p := rm.Page(7)
	p.markDirty()
	require.NoError(t, rm.BeginInflight(p, 500, InFlightToRemote))

	// WHEN it is requested back before the writeback lands
	require.NoError(t, rm.BeginInflight(p, 300, InFlightToLocal))

	// THEN it is only in flight toward local memory and stays dirty
	assert.Equal(t, InFlightToLocal, p.State)
	assert.True(t, p.Dirty)
	assert.Equal(t, 1, rm.InflightCount())
	rm.CompleteInflight(1000)
	assert.Equal(t, Local, p.State)
	require.NoError(t, rm.CheckInvariants())
}

func TestResidencyManager_BeginInflight_RejectsNonTransferState(t *testing.T) {
	rm := NewResidencyManager(1, false)

	assert.Error(t, rm.BeginInflight(rm.Page(1), 0, Local))
}

func TestResidencyManager_InsertLocal(t *testing.T) {
	rm := NewResidencyManager(1, false)

	require.NoError(t, rm.InsertLocal(rm.Page(1)))
	assert.Error(t, rm.InsertLocal(rm.Page(1)), "already local")
	assert.ErrorIs(t, rm.InsertLocal(rm.Page(2)), ErrBufferExhausted)
	assert.Equal(t, 0, rm.FreeSlots())
}

func TestResidencyManager_DirtyTracking(t *testing.T) {
	rm := NewResidencyManager(1, false)

	assert.False(t, rm.IsDirty(9), "unknown page")
	rm.MarkDirty(9)
	assert.True(t, rm.IsDirty(9))
}

func TestNewResidencyManager_NegativeCapacity_Panics(t *testing.T) {
	assert.Panics(t, func() { NewResidencyManager(-1, false) })
}

func TestPageKey(t *testing.T) {
	assert.Equal(t, uint64(0x3000), PageKey(0x3fff, 4096))
	assert.Equal(t, uint64(0x3fc0), PageKey(0x3fff, 64))
	assert.Equal(t, uint64(0), PageKey(0x3f, 64))
}
