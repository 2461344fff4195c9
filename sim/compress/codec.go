// Package compress models on-the-fly compression of pages moving between
// local and remote memory.
//
// Codecs report timing, never payload: Compress returns how many bytes the
// data would occupy and how long compressing it takes, Decompress returns
// how long the reverse takes given only the descriptor Compress produced.
// Every codec except lz-bounded and adaptive is a pure function of its input.
package compress

import (
	"errors"
	"fmt"
	"sort"
)

// ErrShortBuffer is returned by the word readers when a read would run past
// the end of the buffer.
var ErrShortBuffer = errors.New("compress: read past end of buffer")

// Compressed describes the result of one Compress call. The caller keeps it
// and hands it back to Decompress.
type Compressed struct {
	Bytes   uint32 // compressed size
	Units   uint32 // compressed lines, tokens or bytes that drive decompression time
	Variant uint8  // codec that produced it, for selectors wrapping several codecs
}

// Codec is one compression scheme with its timing model.
type Codec interface {
	Name() string
	// Compress returns the compressed descriptor and the compression latency in picoseconds.
	Compress(data []byte) (Compressed, int64)
	// Decompress returns the decompression latency in picoseconds.
	Decompress(c Compressed) int64
	// Stateless reports whether Compress depends only on its input, which
	// lets callers reuse a previous result for unchanged data.
	Stateless() bool
}

// Clocked is implemented by codecs that need the simulated time before each call.
type Clocked interface {
	SetClock(now int64)
}

// LinkMonitor is the view of the transfer link a selector policy may read.
type LinkMonitor interface {
	Utilization(now int64) float64
	// PeekTransfer estimates queueing plus service time for bytes without committing.
	PeekTransfer(now, bytes int64) int64
}

// Config selects and parameterizes a codec.
type Config struct {
	Codec            string  `yaml:"codec"`
	LineSize         int     `yaml:"line_size"`         // bytes per line for the line codecs
	FrequencyGHz     float64 `yaml:"frequency_ghz"`     // clock of the compression engine
	CompressCycles   int64   `yaml:"compress_cycles"`   // per line; 0 = codec default
	DecompressCycles int64   `yaml:"decompress_cycles"` // per compressed line; 0 = codec default
	BDIFineGrained   bool    `yaml:"bdi_fine_grained"`

	DictionarySize         int   `yaml:"dictionary_size"`          // lz-bounded entries
	IndexBits              int   `yaml:"index_bits"`               // lz78/lzw token index width
	DictionaryAccessCycles int64 `yaml:"dictionary_access_cycles"` // per lookup or insert

	Granularity              int     `yaml:"granularity"`                 // stream codecs chunk size; 0 = whole unit
	ThroughputGBps           float64 `yaml:"throughput_gbps"`             // stream compression throughput
	DecompressThroughputGBps float64 `yaml:"decompress_throughput_gbps"` // stream decompression throughput
	Level                    int     `yaml:"level"`                       // stream codec level; 0 = codec default

	Adaptive AdaptiveConfig `yaml:"adaptive"`
}

// DefaultConfig returns a BDI setup over 64-byte lines at 2 GHz.
func DefaultConfig() Config {
	return Config{
		Codec:                    "bdi",
		LineSize:                 64,
		FrequencyGHz:             2.0,
		DictionarySize:           64,
		IndexBits:                12,
		DictionaryAccessCycles:   1,
		ThroughputGBps:           1.0,
		DecompressThroughputGBps: 2.0,
		Adaptive:                 DefaultAdaptiveConfig(),
	}
}

// ValidCodecs is the set of recognized codec names.
var ValidCodecs = map[string]bool{
	"zero": true, "bdi": true, "fpc": true,
	"lz78": true, "lzw": true, "lz-bounded": true,
	"deflate": true, "zlib": true, "zstd": true, "lz4": true, "brotli": true,
	"adaptive": true,
}

// IsValidCodec returns true if name is a recognized codec.
func IsValidCodec(name string) bool {
	return ValidCodecs[name]
}

// CodecNames returns the recognized codec names in sorted order.
func CodecNames() []string {
	names := make([]string, 0, len(ValidCodecs))
	for name := range ValidCodecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if !IsValidCodec(c.Codec) {
		return fmt.Errorf("unknown codec %q (valid: %v)", c.Codec, CodecNames())
	}
	if c.LineSize <= 0 || c.LineSize%4 != 0 {
		return fmt.Errorf("compression line_size must be a positive multiple of 4, got %d", c.LineSize)
	}
	if c.FrequencyGHz <= 0 {
		return fmt.Errorf("compression frequency_ghz must be > 0, got %f", c.FrequencyGHz)
	}
	if c.CompressCycles < 0 || c.DecompressCycles < 0 || c.DictionaryAccessCycles < 0 {
		return fmt.Errorf("compression cycle costs must be non-negative")
	}
	if c.IndexBits <= 0 || c.IndexBits > 24 {
		return fmt.Errorf("compression index_bits must be in [1, 24], got %d", c.IndexBits)
	}
	if c.Codec == "lz-bounded" && c.DictionarySize <= 0 {
		return fmt.Errorf("lz-bounded requires dictionary_size > 0, got %d", c.DictionarySize)
	}
	if c.Granularity < 0 {
		return fmt.Errorf("compression granularity must be non-negative, got %d", c.Granularity)
	}
	if c.ThroughputGBps < 0 || c.DecompressThroughputGBps < 0 {
		return fmt.Errorf("compression throughput must be non-negative")
	}
	if c.Codec == "adaptive" {
		if err := c.Adaptive.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// New builds the codec named by cfg.Codec. link is only consulted by the
// adaptive selector and may be nil otherwise.
func New(cfg Config, link LinkMonitor) (Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Codec {
	case "zero":
		return NewZero(cfg), nil
	case "bdi":
		return NewBDI(cfg), nil
	case "fpc":
		return NewFPC(cfg), nil
	case "lz78":
		return NewLZ78(cfg), nil
	case "lzw":
		return NewLZW(cfg), nil
	case "lz-bounded":
		lz, err := NewBoundedLZ(cfg)
		if err != nil {
			return nil, err
		}
		return lz, nil
	case "deflate", "zlib", "zstd", "lz4", "brotli":
		stream, err := NewStream(cfg)
		if err != nil {
			return nil, err
		}
		return stream, nil
	case "adaptive":
		if link == nil {
			return nil, fmt.Errorf("adaptive codec requires a link monitor")
		}
		low, err := newLeaf(cfg, cfg.Adaptive.LowCodec)
		if err != nil {
			return nil, fmt.Errorf("adaptive low codec: %w", err)
		}
		high, err := newLeaf(cfg, cfg.Adaptive.HighCodec)
		if err != nil {
			return nil, fmt.Errorf("adaptive high codec: %w", err)
		}
		sel, err := NewAdaptiveSelector(low, high, cfg.Adaptive, link)
		if err != nil {
			return nil, err
		}
		return sel, nil
	default:
		panic(fmt.Sprintf("unhandled codec %q", cfg.Codec))
	}
}

func newLeaf(cfg Config, name string) (Codec, error) {
	if name == "adaptive" {
		return nil, fmt.Errorf("adaptive codecs cannot be nested")
	}
	leaf := cfg
	leaf.Codec = name
	return New(leaf, nil)
}

// UsedCodec names the codec that actually produced c.
func UsedCodec(codec Codec, c Compressed) string {
	if sel, ok := codec.(*AdaptiveSelector); ok {
		return sel.variant(c.Variant).Name()
	}
	return codec.Name()
}

// Ratio returns original/compressed, or 1 when nothing was compressed.
func Ratio(original int, c Compressed) float64 {
	if c.Bytes == 0 || original == 0 {
		return 1
	}
	return float64(original) / float64(c.Bytes)
}
