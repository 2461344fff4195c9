package sim

// HardwareTiming is the memory device access cost, a pure function of its
// arguments.
type HardwareTiming interface {
	AccessCost(addr uint64, size int64, remote bool) int64
}

// ConstantHardware charges a fixed latency per access on each side.
type ConstantHardware struct {
	Local  int64
	Remote int64
}

// NewConstantHardware builds ConstantHardware from nanosecond latencies.
func NewConstantHardware(cfg HardwareConfig) ConstantHardware {
	return ConstantHardware{
		Local:  cfg.LocalLatencyNs * Nanosecond,
		Remote: cfg.RemoteLatencyNs * Nanosecond,
	}
}

func (h ConstantHardware) AccessCost(_ uint64, _ int64, remote bool) int64 {
	if remote {
		return h.Remote
	}
	return h.Local
}

// DataSource supplies the bytes of a page for compression.
type DataSource interface {
	PageData(key uint64, size int) []byte
}

// ZeroData is a DataSource of all-zero pages.
type ZeroData struct{}

func (ZeroData) PageData(_ uint64, size int) []byte {
	return make([]byte, size)
}
