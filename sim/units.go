package sim

import "github.com/kaii789/disaggregated-systems-research-sub000/sim/internal/util"

// Simulated time units. All engine times are int64 picoseconds.
const (
	Picosecond  = util.Picosecond
	Nanosecond  = util.Nanosecond
	Microsecond = util.Microsecond
	Millisecond = util.Millisecond
	Second      = util.Second
)
