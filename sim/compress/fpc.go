package compress

import "github.com/sirupsen/logrus"

// FPC pattern costs in bits, excluding the prefix.
const (
	fpcPrefixBits      = 3
	fpcZeroRunBits     = 3 // run length, up to fpcMaxZeroRun words
	fpcMaxZeroRun      = 8
	fpcSign4Bits       = 4
	fpcSign8Bits       = 8
	fpcSign16Bits      = 16
	fpcHalfPaddedBits  = 16
	fpcHalfPairBits    = 16
	fpcRepeatedByte    = 8
	fpcUncompressedBit = 32
)

// FPC is frequent pattern compression over 32-bit words.
type FPC struct {
	timing lineTiming
}

// NewFPC creates an FPC codec.
func NewFPC(cfg Config) *FPC {
	return &FPC{timing: newLineTiming(cfg, 3, 5)}
}

func (f *FPC) Name() string    { return "fpc" }
func (f *FPC) Stateless() bool { return true }

func (f *FPC) Compress(data []byte) (Compressed, int64) {
	return f.timing.compressLines(data, func(line []byte) int {
		bits, err := f.CompressLineBits(line)
		if err != nil {
			logrus.Warnf("fpc: %d-byte line: %v", len(line), err)
			return len(line)
		}
		return (bits + 7) / 8
	})
}

func (f *FPC) Decompress(c Compressed) int64 {
	return f.timing.decompressLatency(c)
}

// CompressLineBits returns the encoded size of line in bits. Consecutive zero
// words share one prefix; every other word takes the first pattern it matches.
func (f *FPC) CompressLineBits(line []byte) (int, error) {
	words, err := readWords(line, 4)
	if err != nil {
		return 0, err
	}
	bits := 0
	for i := 0; i < len(words); {
		if words[i] == 0 {
			run := 0
			for i < len(words) && words[i] == 0 && run < fpcMaxZeroRun {
				run++
				i++
			}
			bits += fpcPrefixBits + fpcZeroRunBits
			continue
		}
		bits += fpcPrefixBits + fpcWordBits(uint32(words[i]))
		i++
	}
	return bits, nil
}

// fpcWordBits returns the payload size of the first pattern w matches.
func fpcWordBits(w uint32) int {
	v := signExtend(uint64(w), 4)
	switch {
	case v >= -8 && v < 8:
		return fpcSign4Bits
	case fitsSigned(v, 1):
		return fpcSign8Bits
	case fitsSigned(v, 2):
		return fpcSign16Bits
	case w&0xffff == 0:
		return fpcHalfPaddedBits
	case halvesAreSignedBytes(w):
		return fpcHalfPairBits
	case repeatedBytes(w):
		return fpcRepeatedByte
	default:
		return fpcUncompressedBit
	}
}

// halvesAreSignedBytes reports whether both 16-bit halves of w are
// sign-extended bytes.
func halvesAreSignedBytes(w uint32) bool {
	lo := signExtend(uint64(w&0xffff), 2)
	hi := signExtend(uint64(w>>16), 2)
	return fitsSigned(lo, 1) && fitsSigned(hi, 1)
}

func repeatedBytes(w uint32) bool {
	b := w & 0xff
	return w == b|b<<8|b<<16|b<<24
}
