package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EveryValidCodecBuilds(t *testing.T) {
	for _, name := range CodecNames() {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Codec = name

			codec, err := New(cfg, &fakeLink{})

			require.NoError(t, err)
			assert.Equal(t, name, codec.Name())
		})
	}
}

func TestNew_UnknownCodec_ReturnsError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Codec = "snappy"

	_, err := New(cfg, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown codec")
}

func TestNew_AdaptiveWithoutLink_ReturnsError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Codec = "adaptive"

	_, err := New(cfg, nil)

	assert.Error(t, err)
}

func TestNew_NestedAdaptive_ReturnsError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Codec = "adaptive"
	cfg.Adaptive.HighCodec = "adaptive"

	_, err := New(cfg, &fakeLink{})

	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"line size not multiple of 4", func(c *Config) { c.LineSize = 30 }, true},
		{"zero frequency", func(c *Config) { c.FrequencyGHz = 0 }, true},
		{"negative cycles", func(c *Config) { c.CompressCycles = -1 }, true},
		{"index bits too wide", func(c *Config) { c.IndexBits = 30 }, true},
		{"bounded lz without dictionary", func(c *Config) { c.Codec = "lz-bounded"; c.DictionarySize = 0 }, true},
		{"negative granularity", func(c *Config) { c.Granularity = -1 }, true},
		{"adaptive bad policy", func(c *Config) { c.Codec = "adaptive"; c.Adaptive.Policy = "greedy" }, true},
		{"adaptive ok", func(c *Config) { c.Codec = "adaptive" }, false},
		{"unlimited stream throughput", func(c *Config) { c.Codec = "zstd"; c.ThroughputGBps = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatelessCodecs_AreDeterministic(t *testing.T) {
	// GIVEN a page mixing zero, repeated, narrow and random lines
	page := append(make([]byte, 64), wordsLine(7, 7, 7, 7, 7, 7, 7, 7)...)
	page = append(page, wordsLine(1<<40, 1<<40+1, 1<<40+2, 1<<40+3, 1<<40+4, 1<<40+5, 1<<40+6, 1<<40+7)...)
	page = append(page, randomBytes(3, 64)...)

	for _, name := range CodecNames() {
		if name == "adaptive" || name == "lz-bounded" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Codec = name
			codec, err := New(cfg, nil)
			require.NoError(t, err)
			require.True(t, codec.Stateless())

			// WHEN the same bytes are compressed twice
			c1, lat1 := codec.Compress(page)
			c2, lat2 := codec.Compress(page)

			// THEN both calls agree and never grow the data
			assert.Equal(t, c1, c2)
			assert.Equal(t, lat1, lat2)
			assert.LessOrEqual(t, int(c1.Bytes), len(page))
			assert.Equal(t, codec.Decompress(c1), codec.Decompress(c2))
		})
	}
}

func TestZero_ZeroAndRepeatedLines(t *testing.T) {
	z := NewZero(DefaultConfig())
	data := append(make([]byte, 64), wordsLine(9, 9, 9, 9, 9, 9, 9, 9)...)
	data = append(data, randomBytes(1, 64)...)

	c, latency := z.Compress(data)

	assert.Equal(t, uint32(1+9+64), c.Bytes)
	assert.Equal(t, uint32(2), c.Units)
	assert.Equal(t, int64(1500), latency, "3 lines at 1 cycle, 2 GHz")
	assert.Equal(t, int64(1000), z.Decompress(c))
}

func TestCompressLines_TrailingPartialLineStaysRaw(t *testing.T) {
	z := NewZero(DefaultConfig())

	c, _ := z.Compress(make([]byte, 64+10))

	assert.Equal(t, uint32(1+10), c.Bytes)
	assert.Equal(t, uint32(1), c.Units)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 4.0, Ratio(64, Compressed{Bytes: 16}))
	assert.Equal(t, 1.0, Ratio(64, Compressed{}))
}

func TestReadWord_OutOfBounds_ReturnsErrShortBuffer(t *testing.T) {
	_, err := readWord(make([]byte, 6), 4, 4)
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = readWords(make([]byte, 10), 4)
	assert.ErrorIs(t, err, ErrShortBuffer)
}
