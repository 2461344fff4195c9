package workload

import (
	"encoding/binary"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim"
)

// DataMix is the share of each line pattern in synthetic pages. Lines not
// covered by the three fractions are random.
type DataMix struct {
	ZeroFraction     float64 `yaml:"zero_fraction"`
	RepeatedFraction float64 `yaml:"repeated_fraction"`
	NarrowFraction   float64 `yaml:"narrow_fraction"` // one base plus small signed deltas
}

// DefaultDataMix resembles a typical heap: many zero lines, some pointer-like
// lines, a few incompressible ones.
func DefaultDataMix() DataMix {
	return DataMix{ZeroFraction: 0.4, RepeatedFraction: 0.1, NarrowFraction: 0.3}
}

const syntheticLineSize = 64

// SyntheticData generates deterministic page contents. The same page key
// always yields the same bytes for a given seed.
type SyntheticData struct {
	seed uint64
	mix  DataMix
}

// NewSyntheticData seeds the generator from the data subsystem of rng.
func NewSyntheticData(mix DataMix, rng *sim.PartitionedRNG) *SyntheticData {
	return &SyntheticData{
		seed: uint64(rng.ForSubsystem(sim.SubsystemData).Int63()),
		mix:  mix,
	}
}

// PageData returns size bytes for the page at key.
func (d *SyntheticData) PageData(key uint64, size int) []byte {
	var seed [16]byte
	binary.LittleEndian.PutUint64(seed[:8], d.seed)
	binary.LittleEndian.PutUint64(seed[8:], key)
	r := rand.New(rand.NewSource(int64(xxhash.Sum64(seed[:]))))

	page := make([]byte, size)
	for off := 0; off < size; off += syntheticLineSize {
		d.fillLine(page[off:min(off+syntheticLineSize, size)], r)
	}
	return page
}

func (d *SyntheticData) fillLine(line []byte, r *rand.Rand) {
	p := r.Float64()
	switch {
	case p < d.mix.ZeroFraction:
		// already zero
	case p < d.mix.ZeroFraction+d.mix.RepeatedFraction:
		word := r.Uint64()
		for off := 0; off+8 <= len(line); off += 8 {
			binary.LittleEndian.PutUint64(line[off:], word)
		}
	case p < d.mix.ZeroFraction+d.mix.RepeatedFraction+d.mix.NarrowFraction:
		base := r.Uint64()
		for off := 0; off+8 <= len(line); off += 8 {
			delta := uint64(int64(int8(r.Intn(256))))
			binary.LittleEndian.PutUint64(line[off:], base+delta)
		}
	default:
		_, _ = r.Read(line)
	}
}
