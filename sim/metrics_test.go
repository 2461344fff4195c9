package sim

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SnapshotIsDetached(t *testing.T) {
	// GIVEN metrics with recorded accesses from two requesters
	m := newMetrics()
	m.Accesses = 3
	m.LocalHits = 1
	m.BytesMoved = 8192
	m.CompressedBytesMoved = 1024
	m.CodecUsage["bdi"] = 2
	m.recordAccess(2, 300, false)
	m.recordAccess(1, 100, true)
	m.recordAccess(2, 500, false)

	// WHEN a snapshot is taken and the metrics keep changing
	s := m.snapshot()
	m.CodecUsage["bdi"] = 99
	m.recordAccess(1, 700, true)

	// THEN the snapshot is unaffected
	want := []RequesterStats{
		{ID: 1, Accesses: 1, LocalHits: 1, TotalLatency: 100},
		{ID: 2, Accesses: 2, TotalLatency: 800},
	}
	if diff := cmp.Diff(want, s.Requesters); diff != "" {
		t.Errorf("requesters mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(2), s.CodecUsage["bdi"])
	assert.Equal(t, 8.0, s.CompressionRatio)
	assert.Equal(t, 3, s.Latency.Count)
	assert.InDelta(t, 400.0, s.Requesters[1].MeanLatency(), 1e-9)
	assert.InDelta(t, 1.0/3, s.LocalHitRate(), 1e-9)
}

func TestMetrics_SnapshotWithoutTransfers(t *testing.T) {
	s := newMetrics().snapshot()
	assert.Equal(t, 1.0, s.CompressionRatio)
	assert.Equal(t, 0.0, s.LocalHitRate())
	assert.Empty(t, s.Requesters)
}

func TestFinalizeStats_MatchesCounters(t *testing.T) {
	// GIVEN an engine that migrated two pages and hit one locally
	e := newTestEngine(t, instantConfig(4))
	e.Access(0, page(1), 8, false, 0)
	e.Access(Nanosecond, page(2), 8, true, 1)
	e.Access(2*Nanosecond, page(1), 8, false, 0)

	// WHEN the stats are finalized
	got := e.FinalizeStats()

	// THEN the counters match, ignoring derived distributions
	want := StatsSnapshot{
		Metrics: Metrics{
			Accesses:             3,
			Reads:                2,
			Writes:               1,
			LocalHits:            1,
			RemoteAccesses:       2,
			Migrations:           2,
			BytesMoved:           2 * testPage,
			CompressedBytesMoved: 2 * testPage,
			CodecUsage:           map[string]int64{},
		},
		CompressionRatio: 1,
		Requesters: []RequesterStats{
			{ID: 0, Accesses: 2, LocalHits: 1, TotalLatency: testRemote + testLocal},
			{ID: 1, Accesses: 1, TotalLatency: testRemote},
		},
		LocalPages:    2,
		InflightPages: 0,
	}
	opts := cmp.Options{
		cmpopts.IgnoreUnexported(Metrics{}),
		cmpopts.IgnoreFields(StatsSnapshot{}, "Latency", "Queue"),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("FinalizeStats mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsSnapshot_Print(t *testing.T) {
	cfg := slowConfig(2)
	cfg.Compression.Enabled = true
	e := newTestEngine(t, cfg)
	e.Access(0, page(1), 8, false, 0)

	var buf bytes.Buffer
	e.FinalizeStats().Print(&buf)

	out := buf.String()
	require.Contains(t, out, "=== Simulation Metrics ===")
	assert.Contains(t, out, "4.0 KiB raw")
	assert.Contains(t, out, "Codec bdi")
	assert.Contains(t, out, "Queue link")
}
