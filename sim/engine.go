package sim

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/compress"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/queue"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/trace"
)

// MigrationEngine computes the latency of every memory access against a
// local pool backed by remote memory, moving pages between them.
//
// Accesses must arrive in non-decreasing time order; earlier times are
// clamped to the latest seen. In-flight transfers complete when a later
// access observes a time at or past their arrival.
//
// Thread-safety: NOT thread-safe. Guard the whole engine with one mutex if
// several goroutines drive it.
type MigrationEngine struct {
	cfg         Config
	unit        int64
	rm          *ResidencyManager
	queue       queue.Model
	codec       compress.Codec // nil when compression is disabled
	policy      MigrationPolicy
	prefetcher  Prefetcher // nil when prefetching is disabled
	hw          HardwareTiming
	data        DataSource
	trace       *trace.SimulationTrace // nil when tracing is off
	metrics     *Metrics
	now         int64
	netToLocal  int64
	netToRemote int64
}

// queueLink exposes the page queue to the adaptive codec selector.
type queueLink struct {
	q queue.Model
}

func (l queueLink) Utilization(now int64) float64 {
	return l.q.Utilization(now, queue.KindPage)
}

func (l queueLink) PeekTransfer(now, bytes int64) int64 {
	return l.q.PeekDelay(now, bytes, queue.KindPage).Total()
}

// NewMigrationEngine builds an engine from cfg. A nil hw uses the constant
// latencies in cfg.Hardware; a nil data source compresses zero pages.
func NewMigrationEngine(cfg Config, hw HardwareTiming, data DataSource) (*MigrationEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	q, err := queue.New(cfg.Queue, cfg.Network.BandwidthGBps)
	if err != nil {
		return nil, err
	}
	policy, err := NewMigrationPolicy(cfg.Migration, NewPartitionedRNG(NewSimulationKey(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	var codec compress.Codec
	if cfg.Compression.Enabled {
		codec, err = compress.New(cfg.Compression.Config, queueLink{q})
		if err != nil {
			return nil, err
		}
	}
	if hw == nil {
		hw = NewConstantHardware(cfg.Hardware)
	}
	if data == nil {
		data = ZeroData{}
	}
	e := &MigrationEngine{
		cfg:         cfg,
		unit:        cfg.UnitSize(),
		rm:          NewResidencyManager(cfg.LocalCapacityPages, cfg.Migration.AvoidDirtyEviction),
		queue:       q,
		codec:       codec,
		policy:      policy,
		hw:          hw,
		data:        data,
		metrics:     newMetrics(),
		netToLocal:  cfg.Network.LatencyToLocalNs * Nanosecond,
		netToRemote: cfg.Network.LatencyToRemoteNs * Nanosecond,
	}
	if cfg.Migration.PrefetchDegree > 0 {
		e.prefetcher = NewNextPagePrefetcher(cfg.Migration.PrefetchDegree, e.unit)
	}
	if trace.TraceLevel(cfg.TraceLevel) == trace.TraceLevelDecisions {
		e.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	}
	codecName := "none"
	if codec != nil {
		codecName = codec.Name()
	}
	logrus.Infof("engine: unit=%dB capacity=%d pages policy=%s queue=%s codec=%s",
		e.unit, cfg.LocalCapacityPages, policy.Name(), cfg.Queue.Model, codecName)
	return e, nil
}

// Residency returns the engine's residency manager.
func (e *MigrationEngine) Residency() *ResidencyManager { return e.rm }

// Trace returns the decision trace, or nil when tracing is off.
func (e *MigrationEngine) Trace() *trace.SimulationTrace { return e.trace }

// Now returns the latest simulated time the engine has seen.
func (e *MigrationEngine) Now() int64 { return e.now }

// Access serves one memory access and returns its latency in picoseconds.
func (e *MigrationEngine) Access(time int64, addr uint64, size int64, isWrite bool, requester int) int64 {
	if time < e.now {
		logrus.Debugf("access at %d before %d, clamping", time, e.now)
		e.metrics.ClampedTimes++
		time = e.now
	}
	e.now = time
	e.metrics.Accesses++
	if isWrite {
		e.metrics.Writes++
	} else {
		e.metrics.Reads++
	}

	e.rm.CompleteInflight(time)
	page, state := e.rm.Classify(PageKey(addr, e.unit))
	if !page.placed {
		e.place(page)
		state = page.State
	}
	page.AccessCount++

	var latency int64
	switch state {
	case Local:
		e.metrics.LocalHits++
		if isWrite {
			page.markDirty()
		}
		latency = e.hw.AccessCost(addr, size, false)
	case InFlightToLocal:
		latency = e.waitInflight(time, page, addr, size, isWrite, requester)
	default:
		latency = e.accessRemote(time, page, addr, size, isWrite, requester)
	}
	e.metrics.recordAccess(requester, latency, state == Local)
	return latency
}

// place gives a page its initial home under a placing policy.
func (e *MigrationEngine) place(page *Page) {
	page.placed = true
	placer, ok := e.policy.(Placer)
	if !ok || page.State != Remote || !placer.PlaceLocal(page) {
		return
	}
	if e.rm.FreeSlots() <= 0 {
		logrus.Debugf("page %#x: local home but no free slot, staying remote", page.Key)
		return
	}
	if err := e.rm.InsertLocal(page); err != nil {
		e.violation("placing page %#x: %v", page.Key, err)
		return
	}
	e.metrics.Placements++
}

// waitInflight serves an access to a page already moving local. It waits for
// the page unless a separate cacheline transfer would arrive sooner.
func (e *MigrationEngine) waitInflight(time int64, page *Page, addr uint64, size int64, isWrite bool, requester int) int64 {
	e.metrics.InflightHits++
	if isWrite {
		page.markDirty()
	}
	wait := max(time, page.Arrival) - time
	if e.cfg.CachelineGranularity {
		return wait
	}

	line := PageKey(addr, e.cfg.CachelineSize)
	if arrival, ok := page.lineArrival(line, time); ok {
		return min(arrival, page.Arrival) - time
	}

	record := trace.RedundantRecord{Clock: time, Page: page.Key, Line: line, PageArrival: page.Arrival}
	if page.redundant >= e.cfg.Migration.RedundantMoveLimit {
		record.Reason = "limit"
	} else {
		hwCost := e.hw.AccessCost(addr, size, true)
		peek := e.queue.PeekDelay(time, e.cfg.CachelineSize, queue.KindCacheline)
		if time+hwCost+peek.Total()+e.netToLocal >= page.Arrival {
			record.Reason = "slower"
		} else {
			est := e.queue.Delay(time, e.cfg.CachelineSize, queue.KindCacheline)
			arrival := min(time+hwCost+est.Total()+e.netToLocal, page.Arrival)
			if page.lines == nil {
				page.lines = make(map[uint64]int64)
			}
			page.lines[line] = arrival
			page.redundant++
			e.metrics.RedundantFetches++
			record.Issued = true
			record.LineArrival = arrival
			e.recordRedundant(record)
			logrus.Debugf("page %#x in flight until %d: fetched line %#x by %d (requester %d)",
				page.Key, page.Arrival, line, arrival, requester)
			return arrival - time
		}
	}
	e.metrics.RedundantSuppressed++
	e.recordRedundant(record)
	return wait
}

// accessRemote serves an access to a page in remote memory, migrating it
// when the policy and admission control allow.
func (e *MigrationEngine) accessRemote(time int64, page *Page, addr uint64, size int64, isWrite bool, requester int) int64 {
	e.metrics.RemoteAccesses++
	if e.rm.Capacity() > 0 && e.policy.ShouldMigrate(time, page) {
		if latency, ok := e.migrate(time, page, addr, size, isWrite, requester); ok {
			return latency
		}
	}
	return e.fetchRemote(time, addr, size, isWrite)
}

// fetchRemote charges a cacheline-granularity transfer without moving the page.
func (e *MigrationEngine) fetchRemote(time int64, addr uint64, size int64, isWrite bool) int64 {
	lines := max(util.CeilDiv(size, e.cfg.CachelineSize), 1)
	est := e.queue.Delay(time, lines*e.cfg.CachelineSize, queue.KindCacheline)
	network := e.netToLocal
	if isWrite {
		network = e.netToRemote
	}
	return e.hw.AccessCost(addr, size, true) + est.Total() + network
}

// admission returns the skip decision admission control makes at time, or
// "" if a migration may proceed.
func (e *MigrationEngine) admission(time int64) string {
	m := e.cfg.Migration
	if m.MaxUtilization > 0 && e.queue.Utilization(time, queue.KindPage) > m.MaxUtilization {
		return trace.DecisionSkipUtilization
	}
	if m.MaxInflightPages > 0 && e.rm.InflightCount() >= m.MaxInflightPages {
		return trace.DecisionSkipBuffer
	}
	return ""
}

// migrate moves page local. ok is false when the migration was skipped and
// the access must be served remotely; residency is unchanged in that case.
func (e *MigrationEngine) migrate(time int64, page *Page, addr uint64, size int64, isWrite bool, requester int) (int64, bool) {
	if decision := e.admission(time); decision != "" {
		if decision == trace.DecisionSkipUtilization {
			e.metrics.ThrottledUtilization++
		} else {
			e.metrics.ThrottledBuffer++
		}
		e.recordSkip(time, page, requester, decision)
		return 0, false
	}

	victim, err := e.rm.ReserveSlot()
	switch {
	case errors.Is(err, ErrBufferExhausted):
		e.metrics.ThrottledNoVictim++
		e.recordSkip(time, page, requester, trace.DecisionSkipNoVictim)
		return 0, false
	case err != nil:
		e.violation("reserving slot for page %#x: %v", page.Key, err)
		e.recordSkip(time, page, requester, trace.DecisionSkipInconsistent)
		return 0, false
	}
	if victim != nil {
		e.evict(time, victim, page.Key)
	}

	rec, err := e.transferIn(time, page, trace.DecisionMigrate, requester)
	if err != nil {
		e.violation("migrating page %#x: %v", page.Key, err)
		return 0, false
	}
	if isWrite {
		page.markDirty()
	}
	e.committed(page.Key)
	e.metrics.Migrations++
	logrus.Debugf("t=%d migrate page %#x: %d -> %d bytes, arrives %d", time, page.Key, rec.RawBytes, rec.CompressedBytes, rec.Arrival)

	if e.prefetcher != nil {
		e.prefetchAfter(time, page.Key, requester)
	}
	return e.hw.AccessCost(addr, size, true) + rec.Arrival - time, true
}

// transferIn compresses page, enqueues it on the page queue and puts it in
// flight toward local memory. A slot must already be reserved.
func (e *MigrationEngine) transferIn(time int64, page *Page, decision string, requester int) (trace.MigrationRecord, error) {
	cost := e.pageCost(time, page)
	est := e.queue.Delay(time, cost.bytes, queue.KindPage)
	arrival := time + cost.compress + est.Total() + e.netToLocal + cost.decompress
	if err := e.rm.BeginInflight(page, arrival, InFlightToLocal); err != nil {
		return trace.MigrationRecord{}, err
	}
	e.countTransfer(cost)
	rec := trace.MigrationRecord{
		Clock:           time,
		Page:            page.Key,
		Requester:       requester,
		Decision:        decision,
		RawBytes:        e.unit,
		CompressedBytes: cost.bytes,
		Codec:           cost.codec,
		QueueDelay:      est.QueueDelay,
		Arrival:         arrival,
	}
	if e.trace != nil {
		e.trace.RecordMigration(rec)
	}
	return rec, nil
}

// evict finishes removing victim from local memory, writing it back if dirty.
func (e *MigrationEngine) evict(time int64, victim *Page, cause uint64) {
	e.metrics.Evictions++
	if e.trace != nil {
		e.trace.RecordEviction(trace.EvictionRecord{Clock: time, Page: victim.Key, Dirty: victim.Dirty, Cause: cause})
	}
	if !victim.Dirty {
		logrus.Debugf("t=%d evict clean page %#x", time, victim.Key)
		return
	}
	cost := e.pageCost(time, victim)
	est := e.queue.Delay(time, cost.bytes, queue.KindPage)
	arrival := time + cost.compress + est.Total() + e.netToRemote
	if err := e.rm.BeginInflight(victim, arrival, InFlightToRemote); err != nil {
		e.violation("writing back page %#x: %v", victim.Key, err)
		return
	}
	e.metrics.Writebacks++
	e.metrics.BytesMoved += e.unit
	e.metrics.CompressedBytesMoved += cost.bytes
	e.metrics.CompressionLatency += cost.compress
	logrus.Debugf("t=%d write back dirty page %#x, %d bytes, arrives %d", time, victim.Key, cost.bytes, arrival)
	if e.trace != nil {
		e.trace.RecordWriteback(trace.WritebackRecord{
			Clock:           time,
			Page:            victim.Key,
			CompressedBytes: cost.bytes,
			Arrival:         arrival,
		})
	}
}

// prefetchAfter moves the pages following key local in the background. It
// only fills free slots, so the migration that triggered it stays the
// access's single eviction. It stops when local memory is full or admission
// control refuses.
func (e *MigrationEngine) prefetchAfter(time int64, key uint64, requester int) {
	for _, next := range e.prefetcher.Candidates(key) {
		page := e.rm.Page(next)
		if page.State != Remote {
			continue
		}
		if e.rm.FreeSlots() <= 0 || e.admission(time) != "" {
			return
		}
		if _, err := e.transferIn(time, page, trace.DecisionPrefetch, requester); err != nil {
			e.violation("prefetching page %#x: %v", next, err)
			return
		}
		e.committed(next)
		e.metrics.Prefetches++
	}
}

// committed tells a policy that keeps per-page history that key is on its
// way local.
func (e *MigrationEngine) committed(key uint64) {
	if c, ok := e.policy.(Committer); ok {
		c.Migrated(key)
	}
}

// pageCost is what moving one page costs on the link and in the codec.
type pageCost struct {
	bytes      int64
	compress   int64
	decompress int64
	codec      string
}

// pageCost compresses page when compression is enabled, reusing the cached
// result while the page is clean and the codec is stateless.
func (e *MigrationEngine) pageCost(time int64, page *Page) pageCost {
	if e.codec == nil {
		return pageCost{bytes: e.unit}
	}
	cc := &page.compressed
	if !cc.valid || !e.codec.Stateless() {
		if clocked, ok := e.codec.(compress.Clocked); ok {
			clocked.SetClock(time)
		}
		c, latency := e.codec.Compress(e.data.PageData(page.Key, int(e.unit)))
		if int64(c.Bytes) > e.unit {
			e.violation("codec %s grew page %#x to %d bytes", e.codec.Name(), page.Key, c.Bytes)
			return pageCost{bytes: e.unit}
		}
		*cc = cachedCompression{
			valid:      true,
			result:     c,
			compress:   latency,
			decompress: e.codec.Decompress(c),
		}
	}
	name := compress.UsedCodec(e.codec, cc.result)
	e.metrics.CodecUsage[name]++
	return pageCost{
		bytes:      int64(cc.result.Bytes),
		compress:   cc.compress,
		decompress: cc.decompress,
		codec:      name,
	}
}

func (e *MigrationEngine) countTransfer(cost pageCost) {
	e.metrics.BytesMoved += e.unit
	e.metrics.CompressedBytesMoved += cost.bytes
	e.metrics.CompressionLatency += cost.compress
	e.metrics.DecompressionLatency += cost.decompress
}

func (e *MigrationEngine) recordSkip(time int64, page *Page, requester int, decision string) {
	logrus.Debugf("t=%d page %#x: %s", time, page.Key, decision)
	if e.trace != nil {
		e.trace.RecordMigration(trace.MigrationRecord{
			Clock:     time,
			Page:      page.Key,
			Requester: requester,
			Decision:  decision,
			RawBytes:  e.unit,
		})
	}
}

func (e *MigrationEngine) recordRedundant(record trace.RedundantRecord) {
	if e.trace != nil {
		e.trace.RecordRedundant(record)
	}
}

// violation reports a broken internal invariant. The caller falls back to
// the uncompressed or no-migration path.
func (e *MigrationEngine) violation(format string, args ...any) {
	e.metrics.InvariantViolations++
	logrus.Warnf("invariant violation: "+format, args...)
}

// FinalizeStats returns the summary of everything the engine has served.
func (e *MigrationEngine) FinalizeStats() StatsSnapshot {
	s := e.metrics.snapshot()
	s.Queue = e.queue.Stats()
	if sel, ok := e.codec.(*compress.AdaptiveSelector); ok {
		st := sel.Stats()
		s.Adaptive = &st
	}
	s.LocalPages = e.rm.LocalCount()
	s.InflightPages = e.rm.InflightCount()
	logrus.Infof("engine: %d accesses, %d local hits, %d migrations, %d evictions",
		s.Accesses, s.LocalHits, s.Migrations, s.Evictions)
	return s
}
