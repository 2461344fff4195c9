package compress

import "fmt"

// bdiEncoding is one base-delta layout: words of base bytes stored as deltas
// of delta bytes from either zero or one explicit base.
type bdiEncoding struct {
	base  int
	delta int
}

func (e bdiEncoding) String() string {
	return fmt.Sprintf("base%d-delta%d", e.base, e.delta)
}

// size is tag + base + one delta per word + a bitmask picking the base per word.
func (e bdiEncoding) size(lineSize int) int {
	words := lineSize / e.base
	return 1 + e.base + words*e.delta + (words+7)/8
}

var bdiEncodings = []bdiEncoding{
	{8, 1}, {8, 2}, {8, 4},
	{4, 1}, {4, 2},
	{2, 1},
}

var bdiFineEncodings = []bdiEncoding{
	{8, 3}, {8, 5}, {8, 6}, {8, 7},
	{4, 3},
}

// BDI option names reported by CompressLine.
const (
	BDIZeros        = "zeros"
	BDIRepeated     = "repeated"
	BDIUncompressed = "uncompressed"
)

// BDI is base-delta-immediate compression over fixed-size lines.
type BDI struct {
	timing    lineTiming
	encodings []bdiEncoding
}

// NewBDI creates a BDI codec. With cfg.BDIFineGrained the menu also tries
// 3, 5, 6 and 7-byte deltas.
func NewBDI(cfg Config) *BDI {
	encodings := append([]bdiEncoding{}, bdiEncodings...)
	if cfg.BDIFineGrained {
		encodings = append(encodings, bdiFineEncodings...)
	}
	return &BDI{
		timing:    newLineTiming(cfg, 2, 1),
		encodings: encodings,
	}
}

func (b *BDI) Name() string    { return "bdi" }
func (b *BDI) Stateless() bool { return true }

func (b *BDI) Compress(data []byte) (Compressed, int64) {
	return b.timing.compressLines(data, func(line []byte) int {
		size, _ := b.CompressLine(line)
		return size
	})
}

// Decompress costs a fixed number of cycles per compressed line; lines left
// uncompressed cost nothing extra.
func (b *BDI) Decompress(c Compressed) int64 {
	return b.timing.decompressLatency(c)
}

// CompressLine returns the smallest encoded size of line and the option that
// produced it. A line nothing fits reports len(line) and BDIUncompressed.
func (b *BDI) CompressLine(line []byte) (int, string) {
	if isZero(line) {
		return zeroLineSize, BDIZeros
	}
	if _, ok := repeatedWord(line); ok {
		return repeatedLineSize, BDIRepeated
	}
	bestSize, bestName := len(line), BDIUncompressed
	for _, enc := range b.encodings {
		// a base wider than the line's word alignment cannot encode it
		if len(line)%enc.base != 0 {
			continue
		}
		size := enc.size(len(line))
		if size < bestSize && fitsBaseDelta(line, enc) {
			bestSize, bestName = size, enc.String()
		}
	}
	return bestSize, bestName
}

// fitsBaseDelta reports whether every word of line is within delta bytes of
// zero or of the explicit base, which is the first word that is not itself
// a small immediate.
func fitsBaseDelta(line []byte, enc bdiEncoding) bool {
	words, err := readWords(line, enc.base)
	if err != nil {
		return false
	}
	var base uint64
	haveBase := false
	for _, w := range words {
		if fitsSigned(signExtend(w, enc.base), enc.delta) {
			continue
		}
		if !haveBase {
			base, haveBase = w, true
			continue
		}
		// wrapping subtraction in the word width, as the hardware computes it
		if !fitsSigned(signExtend(w-base, enc.base), enc.delta) {
			return false
		}
	}
	return true
}
