package compress

import (
	"bytes"
	"fmt"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"
)

// encodeFunc returns the compressed length of src.
type encodeFunc func(src []byte) (int, error)

// Stream runs a general purpose byte compressor over fixed-size chunks.
// Latency comes from configured throughputs rather than the work done.
type Stream struct {
	name                 string
	granularity          int
	throughputGBps       float64
	decompressThroughput float64
	encode               encodeFunc
}

// NewStream creates the stream codec named by cfg.Codec.
func NewStream(cfg Config) (*Stream, error) {
	encode, err := newEncoder(cfg.Codec, cfg.Level)
	if err != nil {
		return nil, err
	}
	return &Stream{
		name:                 cfg.Codec,
		granularity:          cfg.Granularity,
		throughputGBps:       cfg.ThroughputGBps,
		decompressThroughput: cfg.DecompressThroughputGBps,
		encode:               encode,
	}, nil
}

func newEncoder(name string, level int) (encodeFunc, error) {
	var out bytes.Buffer
	switch name {
	case "deflate":
		if level == 0 {
			level = flate.DefaultCompression
		}
		w, err := flate.NewWriter(&out, level)
		if err != nil {
			return nil, fmt.Errorf("deflate level %d: %w", level, err)
		}
		return func(src []byte) (int, error) {
			out.Reset()
			w.Reset(&out)
			if _, err := w.Write(src); err != nil {
				return 0, err
			}
			if err := w.Close(); err != nil {
				return 0, err
			}
			return out.Len(), nil
		}, nil
	case "zlib":
		if level == 0 {
			level = zlib.DefaultCompression
		}
		w, err := zlib.NewWriterLevel(&out, level)
		if err != nil {
			return nil, fmt.Errorf("zlib level %d: %w", level, err)
		}
		return func(src []byte) (int, error) {
			out.Reset()
			w.Reset(&out)
			if _, err := w.Write(src); err != nil {
				return 0, err
			}
			if err := w.Close(); err != nil {
				return 0, err
			}
			return out.Len(), nil
		}, nil
	case "brotli":
		if level == 0 {
			level = brotli.DefaultCompression
		}
		w := brotli.NewWriterLevel(&out, level)
		return func(src []byte) (int, error) {
			out.Reset()
			w.Reset(&out)
			if _, err := w.Write(src); err != nil {
				return 0, err
			}
			if err := w.Close(); err != nil {
				return 0, err
			}
			return out.Len(), nil
		}, nil
	case "zstd":
		opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
		if level != 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		enc, err := zstd.NewWriter(nil, opts...)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		var dst []byte
		return func(src []byte) (int, error) {
			dst = enc.EncodeAll(src, dst[:0])
			return len(dst), nil
		}, nil
	case "lz4":
		var c lz4.Compressor
		var dst []byte
		return func(src []byte) (int, error) {
			if bound := lz4.CompressBlockBound(len(src)); cap(dst) < bound {
				dst = make([]byte, bound)
			}
			n, err := c.CompressBlock(src, dst[:cap(dst)])
			if err != nil {
				return 0, err
			}
			if n == 0 {
				// incompressible
				return len(src), nil
			}
			return n, nil
		}, nil
	default:
		return nil, fmt.Errorf("%q is not a stream codec", name)
	}
}

func (s *Stream) Name() string    { return s.name }
func (s *Stream) Stateless() bool { return true }

// Compress encodes each chunk independently. Chunks that do not shrink are
// kept raw; Units counts the original bytes of the chunks that did.
func (s *Stream) Compress(data []byte) (Compressed, int64) {
	chunk := s.granularity
	if chunk <= 0 || chunk > len(data) {
		chunk = len(data)
	}
	var c Compressed
	for off := 0; off < len(data); off += chunk {
		src := data[off:min(off+chunk, len(data))]
		n, err := s.encode(src)
		if err != nil {
			logrus.Warnf("%s: %d-byte chunk left uncompressed: %v", s.name, len(src), err)
			n = len(src)
		}
		if n < len(src) {
			c.Bytes += uint32(n)
			c.Units += uint32(len(src))
		} else {
			c.Bytes += uint32(len(src))
		}
	}
	return c, util.TransferTime(int64(len(data)), s.throughputGBps)
}

// Decompress charges the original size of the compressed chunks at the
// decompression throughput.
func (s *Stream) Decompress(c Compressed) int64 {
	return util.TransferTime(int64(c.Units), s.decompressThroughput)
}
