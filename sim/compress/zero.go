package compress

// Zero recognizes lines that are all zero or one 8-byte value repeated.
type Zero struct {
	timing lineTiming
}

// NewZero creates the zero/repeat codec.
func NewZero(cfg Config) *Zero {
	return &Zero{timing: newLineTiming(cfg, 1, 1)}
}

func (z *Zero) Name() string    { return "zero" }
func (z *Zero) Stateless() bool { return true }

// Compress encodes zero lines in 1 byte and repeated-word lines in 9.
func (z *Zero) Compress(data []byte) (Compressed, int64) {
	return z.timing.compressLines(data, zeroRepeatSize)
}

func (z *Zero) Decompress(c Compressed) int64 {
	return z.timing.decompressLatency(c)
}

const (
	zeroLineSize     = 1 // tag only
	repeatedLineSize = 9 // tag + one 8-byte value
)

// zeroRepeatSize returns the encoded size of line or len(line) if it is
// neither all zero nor a repeated 8-byte value.
func zeroRepeatSize(line []byte) int {
	if isZero(line) {
		return zeroLineSize
	}
	if _, ok := repeatedWord(line); ok {
		return repeatedLineSize
	}
	return len(line)
}

func isZero(line []byte) bool {
	for _, b := range line {
		if b != 0 {
			return false
		}
	}
	return true
}

// repeatedWord reports whether line is one 8-byte value repeated.
func repeatedWord(line []byte) (uint64, bool) {
	words, err := readWords(line, 8)
	if err != nil || len(words) == 0 {
		return 0, false
	}
	for _, w := range words[1:] {
		if w != words[0] {
			return 0, false
		}
	}
	return words[0], true
}
