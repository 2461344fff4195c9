package compress

import (
	"fmt"
	"math/bits"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"
)

// lzResult is what a dictionary parse reports: emitted tokens and the number
// of dictionary lookups and inserts it performed.
type lzResult struct {
	tokens   int
	accesses int
}

// lzTiming charges every dictionary access a fixed number of cycles.
type lzTiming struct {
	ghz          float64
	accessCycles int64
}

func newLZTiming(cfg Config) lzTiming {
	return lzTiming{ghz: cfg.FrequencyGHz, accessCycles: cfg.DictionaryAccessCycles}
}

// descriptor converts a parse into a Compressed of tokens of width bits each.
// Output that does not shrink is stored raw with no tokens to replay.
func (t lzTiming) descriptor(data []byte, r lzResult, width int) (Compressed, int64) {
	latency := util.CyclesToTime(int64(r.accesses)*t.accessCycles, t.ghz)
	size := (r.tokens*width + 7) / 8
	if size >= len(data) {
		return Compressed{Bytes: uint32(len(data))}, latency
	}
	return Compressed{Bytes: uint32(size), Units: uint32(r.tokens)}, latency
}

// decompress replays one dictionary read per token.
func (t lzTiming) decompress(c Compressed) int64 {
	return util.CyclesToTime(int64(c.Units)*t.accessCycles, t.ghz)
}

// LZ78 emits (phrase index, next byte) pairs over a dictionary that starts
// empty on every call.
type LZ78 struct {
	timing    lzTiming
	indexBits int
}

// NewLZ78 creates an LZ78 codec whose dictionary holds at most 2^IndexBits phrases.
func NewLZ78(cfg Config) *LZ78 {
	return &LZ78{timing: newLZTiming(cfg), indexBits: cfg.IndexBits}
}

func (l *LZ78) Name() string    { return "lz78" }
func (l *LZ78) Stateless() bool { return true }

func (l *LZ78) Compress(data []byte) (Compressed, int64) {
	return l.timing.descriptor(data, l.parse(data), l.indexBits+8)
}

func (l *LZ78) Decompress(c Compressed) int64 {
	return l.timing.decompress(c)
}

func (l *LZ78) parse(data []byte) lzResult {
	var r lzResult
	limit := 1 << l.indexBits
	dict := make(map[string]int)
	start := 0
	for start < len(data) {
		end := start + 1
		// extend the phrase while the dictionary knows it
		for end <= len(data) {
			r.accesses++
			if _, ok := dict[string(data[start:end])]; !ok {
				break
			}
			end++
		}
		if end > len(data) {
			// input ended inside a known phrase
			r.tokens++
			break
		}
		if len(dict) < limit {
			dict[string(data[start:end])] = len(dict) + 1
			r.accesses++
		}
		r.tokens++
		start = end
	}
	return r
}

// LZW emits dictionary codes only; single bytes are implicit entries.
type LZW struct {
	timing    lzTiming
	indexBits int
}

// NewLZW creates an LZW codec with codes of IndexBits bits (at least 8).
func NewLZW(cfg Config) *LZW {
	return &LZW{timing: newLZTiming(cfg), indexBits: max(cfg.IndexBits, 8)}
}

func (l *LZW) Name() string    { return "lzw" }
func (l *LZW) Stateless() bool { return true }

func (l *LZW) Compress(data []byte) (Compressed, int64) {
	return l.timing.descriptor(data, l.parse(data), l.indexBits)
}

func (l *LZW) Decompress(c Compressed) int64 {
	return l.timing.decompress(c)
}

func (l *LZW) parse(data []byte) lzResult {
	var r lzResult
	if len(data) == 0 {
		return r
	}
	free := (1 << l.indexBits) - 256
	dict := make(map[string]struct{})
	start, end := 0, 1
	for end < len(data) {
		r.accesses++
		if _, ok := dict[string(data[start:end+1])]; ok {
			end++
			continue
		}
		r.tokens++
		if len(dict) < free {
			dict[string(data[start:end+1])] = struct{}{}
			r.accesses++
		}
		start, end = end, end+1
	}
	r.tokens++
	return r
}

// BoundedLZ is LZW over a small associative dictionary that survives across
// calls and evicts its least recently used phrase when full. Its output
// depends on every earlier call.
type BoundedLZ struct {
	timing lzTiming
	width  int
	dict   *simplelru.LRU[string, struct{}]
}

// NewBoundedLZ creates the bounded-dictionary codec with cfg.DictionarySize entries.
func NewBoundedLZ(cfg Config) (*BoundedLZ, error) {
	dict, err := simplelru.NewLRU[string, struct{}](cfg.DictionarySize, nil)
	if err != nil {
		return nil, fmt.Errorf("lz-bounded dictionary: %w", err)
	}
	return &BoundedLZ{
		timing: newLZTiming(cfg),
		width:  bits.Len(uint(256 + cfg.DictionarySize - 1)),
		dict:   dict,
	}, nil
}

func (l *BoundedLZ) Name() string    { return "lz-bounded" }
func (l *BoundedLZ) Stateless() bool { return false }

func (l *BoundedLZ) Compress(data []byte) (Compressed, int64) {
	var r lzResult
	if len(data) > 0 {
		start, end := 0, 1
		for end < len(data) {
			r.accesses++
			if _, ok := l.dict.Get(string(data[start : end+1])); ok {
				end++
				continue
			}
			r.tokens++
			l.dict.Add(string(data[start:end+1]), struct{}{})
			r.accesses++
			start, end = end, end+1
		}
		r.tokens++
	}
	return l.timing.descriptor(data, r, l.width)
}

func (l *BoundedLZ) Decompress(c Compressed) int64 {
	return l.timing.decompress(c)
}

// Entries returns the number of phrases currently held.
func (l *BoundedLZ) Entries() int {
	return l.dict.Len()
}

// Reset empties the dictionary.
func (l *BoundedLZ) Reset() {
	l.dict.Purge()
}
