package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"
)

// 1000 bytes at 1 GB/s take exactly one microsecond.
const (
	testBytes = 1000
	testT     = util.Microsecond
)

func TestWindow_FewerThanTwoArrivals_NoQueueing(t *testing.T) {
	w := NewWindow("link", 10*testT, 0, 1.0, true)

	first := w.Delay(0, testBytes, KindPage)
	second := w.Delay(0, testBytes, KindPage)

	assert.Equal(t, int64(0), first.QueueDelay)
	assert.Equal(t, int64(0), second.QueueDelay)
	assert.Equal(t, testT, first.ServiceTime)
	assert.Equal(t, testT, first.Total())
}

func TestWindow_SteadyLoad_UtilizationAndDelayConverge(t *testing.T) {
	// GIVEN identical transfers of service time T arriving every 2T in a 10T window
	w := NewWindow("link", 10*testT, 0, 1.0, true)

	// WHEN 20 transfers are committed
	var delays []int64
	for k := int64(0); k < 20; k++ {
		est := w.Delay(2*testT*k, testBytes, KindPage)
		delays = append(delays, est.QueueDelay)
	}

	// THEN the delay never decreases while the window fills, then holds at T/2
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1], "delay decreased at call %d", i)
	}
	assert.Equal(t, testT/2, delays[len(delays)-1])
	assert.Less(t, delays[2], delays[5])

	// AND utilization settles at 0.5
	assert.InDelta(t, 0.5, w.Utilization(2*testT*20, KindPage), 1e-9)
}

func TestWindow_DelayNeverExceedsWindow(t *testing.T) {
	// GIVEN a burst far beyond link capacity at a single instant
	w := NewWindow("link", 10*testT, 0, 1.0, true)
	for i := 0; i < 100; i++ {
		est := w.Delay(0, testBytes, KindPage)
		// THEN every delay stays within [0, window]
		assert.GreaterOrEqual(t, est.QueueDelay, int64(0))
		assert.LessOrEqual(t, est.QueueDelay, 10*testT)
	}
	st := w.Stats().Queues[0]
	assert.Equal(t, int64(100), st.Requests)
	assert.Positive(t, st.Capped)
	assert.Equal(t, int64(100*testBytes), st.Bytes)
	assert.Equal(t, int64(100), st.UtilizationHistogram[0]+st.UtilizationHistogram[1]+
		st.UtilizationHistogram[2]+st.UtilizationHistogram[3]+st.UtilizationHistogram[4]+
		st.UtilizationHistogram[5]+st.UtilizationHistogram[6]+st.UtilizationHistogram[7]+
		st.UtilizationHistogram[8]+st.UtilizationHistogram[9])
}

func TestWindow_ConfiguredCap(t *testing.T) {
	w := NewWindow("link", 10*testT, testT, 1.0, true)
	for i := 0; i < 50; i++ {
		est := w.Delay(0, testBytes, KindPage)
		assert.LessOrEqual(t, est.QueueDelay, testT)
	}
}

func TestWindow_PeekDoesNotCommit(t *testing.T) {
	w := NewWindow("link", 10*testT, 0, 1.0, true)
	for i := 0; i < 3; i++ {
		w.Delay(0, testBytes, KindPage)
	}
	before := w.Len()

	peek1 := w.PeekDelay(0, testBytes, KindPage)
	peek2 := w.PeekDelay(0, testBytes, KindPage)

	assert.Equal(t, before, w.Len())
	assert.Equal(t, peek1, peek2)
	assert.Equal(t, int64(3), w.Stats().Queues[0].Requests)

	committed := w.Delay(0, testBytes, KindPage)
	assert.Equal(t, peek1, committed)
}

func TestWindow_ExpiresRecordsOutsideWindow(t *testing.T) {
	w := NewWindow("link", 10*testT, 0, 1.0, true)
	w.Delay(0, testBytes, KindPage)
	w.Delay(0, testBytes, KindPage)
	require.Equal(t, 2, w.Len())

	// both transfers land at T, which falls behind now-W at 13T
	assert.Equal(t, 0.0, w.Utilization(13*testT, KindPage))
	assert.Equal(t, 0, w.Len())
}

func TestWindow_TimeGoingBackwardsIsClamped(t *testing.T) {
	w := NewWindow("link", 10*testT, 0, 1.0, true)
	w.Delay(100*testT, testBytes, KindPage)
	w.Delay(100*testT, testBytes, KindPage)

	// an earlier timestamp is treated as the latest seen time
	est := w.PeekDelay(0, testBytes, KindPage)
	assert.Equal(t, w.PeekDelay(100*testT, testBytes, KindPage), est)
}

func TestWindow_NonAnalyticReportsServiceOnly(t *testing.T) {
	w := NewWindow("link", 10*testT, 0, 1.0, false)
	for i := 0; i < 5; i++ {
		est := w.Delay(0, testBytes, KindPage)
		assert.Equal(t, int64(0), est.QueueDelay)
		assert.Equal(t, testT, est.ServiceTime)
	}
	assert.InDelta(t, 0.5, w.Utilization(0, KindPage), 1e-9)
}

func TestWindow_UnlimitedBandwidth(t *testing.T) {
	w := NewWindow("link", 10*testT, 0, 0, true)
	for i := 0; i < 5; i++ {
		assert.Equal(t, int64(0), w.Delay(0, testBytes, KindPage).Total())
	}
}

func TestPartitioned_CachelineIsolatedFromPageLoad(t *testing.T) {
	// GIVEN a 2 GB/s link split evenly
	cfg := DefaultConfig()
	cfg.Partitioned = true
	p := NewPartitioned(cfg, 10*testT, 0, 2.0, true)

	// WHEN pages load their sub-queue
	for i := 0; i < 8; i++ {
		p.Delay(0, testBytes, KindPage)
	}

	// THEN cacheline fetches see an idle sub-queue at half the bandwidth
	est := p.Delay(0, 64, KindCacheline)
	assert.Equal(t, int64(0), est.QueueDelay)
	assert.Equal(t, util.TransferTime(64, 1.0), est.ServiceTime)
	assert.Equal(t, KindCacheline, est.Queue)
	assert.InDelta(t, 0.8, p.Utilization(0, KindPage), 1e-9)

	st := p.Stats()
	require.Len(t, st.Queues, 2)
	assert.Equal(t, "page", st.Queues[0].Name)
	assert.Equal(t, int64(8), st.Queues[0].Requests)
	assert.Equal(t, int64(1), st.Queues[1].Requests)
}

func TestPartitioned_OverflowSpillsToIdleQueue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Partitioned = true
	cfg.Overflow = true
	cfg.OverflowHigh = 0.8
	cfg.OverflowLow = 0.5
	p := NewPartitioned(cfg, 10*testT, 0, 2.0, true)

	// GIVEN the page sub-queue at 90% utilization
	for i := 0; i < 9; i++ {
		est := p.Delay(0, testBytes, KindPage)
		require.Equal(t, KindPage, est.Queue)
	}

	// WHEN another page transfer arrives
	peek := p.PeekDelay(0, testBytes, KindPage)
	est := p.Delay(0, testBytes, KindPage)

	// THEN it is carried by the idle cacheline sub-queue
	assert.Equal(t, KindCacheline, peek.Queue)
	assert.Equal(t, KindCacheline, est.Queue)
	assert.Equal(t, int64(1), p.Stats().Spills)
}

func TestPartitioned_NoOverflowKeepsOwnQueue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Partitioned = true
	p := NewPartitioned(cfg, 10*testT, 0, 2.0, true)
	for i := 0; i < 12; i++ {
		assert.Equal(t, KindPage, p.Delay(0, testBytes, KindPage).Queue)
	}
	assert.Equal(t, int64(0), p.Stats().Spills)
}

func TestNew_UnknownModel_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "mm1"
	m, err := New(cfg, 1)
	assert.Error(t, err)
	assert.Nil(t, m)
}

func TestNew_SelectsImplementation(t *testing.T) {
	cfg := DefaultConfig()
	m, err := New(cfg, 1)
	require.NoError(t, err)
	assert.IsType(t, &Window{}, m)

	cfg.Partitioned = true
	m, err = New(cfg, 1)
	require.NoError(t, err)
	assert.IsType(t, &Partitioned{}, m)

	cfg = DefaultConfig()
	cfg.Model = "fixed"
	m, err = New(cfg, 1)
	require.NoError(t, err)
	m.Delay(0, testBytes, KindPage)
	m.Delay(0, testBytes, KindPage)
	assert.Equal(t, int64(0), m.Delay(0, testBytes, KindPage).QueueDelay)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.WindowNs = 0 }},
		{"negative cap", func(c *Config) { c.MaxDelayNs = -1 }},
		{"page fraction one", func(c *Config) { c.Partitioned = true; c.PageFraction = 1 }},
		{"inverted overflow marks", func(c *Config) { c.Overflow = true; c.OverflowLow = 0.9; c.OverflowHigh = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}
