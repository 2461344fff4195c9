package sim

// Prefetcher proposes pages to bring local alongside a migrated page.
type Prefetcher interface {
	Candidates(key uint64) []uint64
}

// NextPagePrefetcher proposes the degree pages that follow a migrated page.
type NextPagePrefetcher struct {
	degree int
	unit   uint64
}

// NewNextPagePrefetcher creates a prefetcher stepping by unit bytes.
// Panics if degree is negative or unit is not positive.
func NewNextPagePrefetcher(degree int, unit int64) *NextPagePrefetcher {
	if degree < 0 || unit <= 0 {
		panic("NewNextPagePrefetcher: degree must be >= 0 and unit > 0")
	}
	return &NextPagePrefetcher{degree: degree, unit: uint64(unit)}
}

func (p *NextPagePrefetcher) Candidates(key uint64) []uint64 {
	keys := make([]uint64, 0, p.degree)
	for i := 1; i <= p.degree; i++ {
		next := key + uint64(i)*p.unit
		if next < key {
			break // address space wrapped
		}
		keys = append(keys, next)
	}
	return keys
}
