package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions       int
	MigratedCount        int
	PrefetchedCount      int
	SkippedCount         int
	DecisionDistribution map[string]int // decision → count
	Evictions            int
	DirtyEvictions       int
	Writebacks           int
	RedundantIssued      int
	RedundantSuppressed  int
	MeanCompressionRatio float64 // raw / compressed bytes over taken migrations
	UniquePages          int     // pages that were migrated or prefetched
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		DecisionDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Migrations)
	pages := make(map[uint64]bool)
	var raw, compressed int64
	for _, m := range st.Migrations {
		summary.DecisionDistribution[m.Decision]++
		switch m.Decision {
		case DecisionMigrate:
			summary.MigratedCount++
		case DecisionPrefetch:
			summary.PrefetchedCount++
		default:
			summary.SkippedCount++
			continue
		}
		pages[m.Page] = true
		raw += m.RawBytes
		compressed += m.CompressedBytes
	}
	if compressed > 0 {
		summary.MeanCompressionRatio = float64(raw) / float64(compressed)
	}
	summary.UniquePages = len(pages)

	summary.Evictions = len(st.Evictions)
	for _, e := range st.Evictions {
		if e.Dirty {
			summary.DirtyEvictions++
		}
	}
	summary.Writebacks = len(st.Writebacks)

	for _, r := range st.Redundant {
		if r.Issued {
			summary.RedundantIssued++
		} else {
			summary.RedundantSuppressed++
		}
	}

	return summary
}
