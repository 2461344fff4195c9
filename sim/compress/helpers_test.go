package compress

import (
	"encoding/binary"
	"math/rand"
)

// wordsLine packs 64-bit words little-endian into a line.
func wordsLine(words ...uint64) []byte {
	line := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(line[8*i:], w)
	}
	return line
}

func randomBytes(seed int64, n int) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}

// fakeLink is a LinkMonitor with a fixed utilization and a linear transfer cost.
type fakeLink struct {
	util      float64
	psPerByte int64
}

func (f *fakeLink) Utilization(int64) float64 { return f.util }

func (f *fakeLink) PeekTransfer(_, bytes int64) int64 { return bytes * f.psPerByte }
