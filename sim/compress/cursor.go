package compress

import (
	"encoding/binary"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"
)

// readWord reads a little-endian unsigned word of width 1, 2, 4 or 8 bytes at off.
func readWord(buf []byte, off, width int) (uint64, error) {
	if off < 0 || off+width > len(buf) {
		return 0, ErrShortBuffer
	}
	b := buf[off : off+width]
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	default:
		return 0, ErrShortBuffer
	}
}

// readWords splits buf into words of the given width. A trailing partial
// word is an error.
func readWords(buf []byte, width int) ([]uint64, error) {
	if width <= 0 || len(buf)%width != 0 {
		return nil, ErrShortBuffer
	}
	words := make([]uint64, len(buf)/width)
	for i := range words {
		w, err := readWord(buf, i*width, width)
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

// signExtend interprets the low width bytes of v as a two's complement value.
func signExtend(v uint64, width int) int64 {
	shift := uint(64 - 8*width)
	return int64(v<<shift) >> shift
}

// fitsSigned reports whether v is representable in the given number of bytes.
func fitsSigned(v int64, bytes int) bool {
	if bytes >= 8 {
		return true
	}
	limit := int64(1) << (8*bytes - 1)
	return v >= -limit && v < limit
}

// lineTiming is the per-line cost model shared by the line codecs.
type lineTiming struct {
	lineSize         int
	ghz              float64
	compressCycles   int64
	decompressCycles int64
}

func newLineTiming(cfg Config, defCompress, defDecompress int64) lineTiming {
	t := lineTiming{
		lineSize:         cfg.LineSize,
		ghz:              cfg.FrequencyGHz,
		compressCycles:   defCompress,
		decompressCycles: defDecompress,
	}
	if cfg.CompressCycles > 0 {
		t.compressCycles = cfg.CompressCycles
	}
	if cfg.DecompressCycles > 0 {
		t.decompressCycles = cfg.DecompressCycles
	}
	return t
}

// compressLines applies sizeOf to every line of data. Lines that do not
// shrink count at full size and are not compressed units. Every line is
// examined, so compression latency scales with the line count.
func (t lineTiming) compressLines(data []byte, sizeOf func(line []byte) int) (Compressed, int64) {
	var c Compressed
	lines := 0
	for off := 0; off < len(data); off += t.lineSize {
		end := min(off+t.lineSize, len(data))
		line := data[off:end]
		lines++
		size := len(line)
		if len(line) == t.lineSize {
			size = sizeOf(line)
		}
		if size < len(line) {
			c.Units++
		} else {
			size = len(line)
		}
		c.Bytes += uint32(size)
	}
	return c, util.CyclesToTime(int64(lines)*t.compressCycles, t.ghz)
}

// decompressLatency charges only the lines that were compressed.
func (t lineTiming) decompressLatency(c Compressed) int64 {
	return util.CyclesToTime(int64(c.Units)*t.decompressCycles, t.ghz)
}
