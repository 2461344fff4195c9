package queue

// Partitioned splits one link into independently modeled page and cacheline
// sub-queues so bulk page transfers cannot starve cacheline fetches.
// Each sub-queue owns a fixed fraction of the bandwidth.
type Partitioned struct {
	page      *Window
	cacheline *Window

	overflow     bool
	overflowHigh float64
	overflowLow  float64
	spills       int64
}

// NewPartitioned builds the two sub-queues from cfg. The page sub-queue gets
// cfg.PageFraction of the bandwidth and the cacheline sub-queue the rest.
func NewPartitioned(cfg Config, window, maxDelay int64, bandwidthGBps float64, analytic bool) *Partitioned {
	pageBW, lineBW := 0.0, 0.0
	if bandwidthGBps > 0 {
		pageBW = bandwidthGBps * cfg.PageFraction
		lineBW = bandwidthGBps * (1 - cfg.PageFraction)
	}
	return &Partitioned{
		page:         NewWindow(KindPage.String(), window, maxDelay, pageBW, analytic),
		cacheline:    NewWindow(KindCacheline.String(), window, maxDelay, lineBW, analytic),
		overflow:     cfg.Overflow,
		overflowHigh: cfg.OverflowHigh,
		overflowLow:  cfg.OverflowLow,
	}
}

func (p *Partitioned) sub(kind Kind) *Window {
	if kind == KindCacheline {
		return p.cacheline
	}
	return p.page
}

func other(kind Kind) Kind {
	if kind == KindCacheline {
		return KindPage
	}
	return KindCacheline
}

// route picks the sub-queue for a request: its own, unless overflow is on,
// its own is above the high mark and the other is below the low mark.
func (p *Partitioned) route(now int64, kind Kind) Kind {
	if !p.overflow {
		return kind
	}
	alt := other(kind)
	if p.sub(kind).Utilization(now, kind) > p.overflowHigh && p.sub(alt).Utilization(now, alt) < p.overflowLow {
		return alt
	}
	return kind
}

// Delay commits the transfer to the sub-queue chosen for kind.
func (p *Partitioned) Delay(now, bytes int64, kind Kind) Estimate {
	target := p.route(now, kind)
	if target != kind {
		p.spills++
	}
	return p.sub(target).Delay(now, bytes, target)
}

// PeekDelay estimates without committing.
func (p *Partitioned) PeekDelay(now, bytes int64, kind Kind) Estimate {
	target := p.route(now, kind)
	return p.sub(target).PeekDelay(now, bytes, target)
}

// Utilization reports the sub-queue that serves kind.
func (p *Partitioned) Utilization(now int64, kind Kind) float64 {
	return p.sub(kind).Utilization(now, kind)
}

// Stats returns page then cacheline counters.
func (p *Partitioned) Stats() Stats {
	return Stats{
		Queues: []SubQueueStats{p.page.stats, p.cacheline.stats},
		Spills: p.spills,
	}
}
