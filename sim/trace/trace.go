package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every migration, eviction, writeback and
	// redundant-fetch decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a simulation run.
type SimulationTrace struct {
	Config     TraceConfig
	Migrations []MigrationRecord
	Evictions  []EvictionRecord
	Writebacks []WritebackRecord
	Redundant  []RedundantRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Migrations: make([]MigrationRecord, 0),
		Evictions:  make([]EvictionRecord, 0),
		Writebacks: make([]WritebackRecord, 0),
		Redundant:  make([]RedundantRecord, 0),
	}
}

// RecordMigration appends a migration decision, taken or skipped.
func (st *SimulationTrace) RecordMigration(record MigrationRecord) {
	st.Migrations = append(st.Migrations, record)
}

// RecordEviction appends an eviction.
func (st *SimulationTrace) RecordEviction(record EvictionRecord) {
	st.Evictions = append(st.Evictions, record)
}

// RecordWriteback appends a dirty writeback.
func (st *SimulationTrace) RecordWriteback(record WritebackRecord) {
	st.Writebacks = append(st.Writebacks, record)
}

// RecordRedundant appends a redundant cacheline decision.
func (st *SimulationTrace) RecordRedundant(record RedundantRecord) {
	st.Redundant = append(st.Redundant, record)
}
