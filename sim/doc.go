// Package sim computes the latency of memory accesses in a two-tier system
// where a small local pool is backed by remote memory across a network link.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - page.go: Page residency states (remote → in flight → local) and the page record
//   - residency.go: Local capacity, LRU order, victim selection and in-flight completion
//   - engine.go: The per-access path, migration, writeback and redundant cacheline fetches
//
// # Architecture
//
// The sim package owns the residency state machine and the access path;
// supporting models live in sub-packages:
//   - sim/queue/: Windowed M/G/1 link contention, single or partitioned
//   - sim/compress/: Line, dictionary and stream codecs plus the adaptive selector
//   - sim/workload/: Access trace loading, export and synthetic generation
//   - sim/metrics/: Prometheus export of a finished run
//   - sim/trace/: Decision trace recording
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - MigrationPolicy: decide whether a remote access moves its page local
//   - Placer: fix a page's home on first sight (static placement)
//   - Prefetcher: propose pages to move alongside a migration
//   - HardwareTiming: device access cost on either side of the link
//   - DataSource: page contents handed to the codec
//   - queue.Model and compress.Codec: contention and compression timing
//
// All times are int64 picoseconds. The engine is single-threaded and
// deterministic for a given configuration, seed and access sequence.
package sim
