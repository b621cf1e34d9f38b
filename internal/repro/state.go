package repro

import "time"

// State is everything needed to replay one fuzzing iteration. Statements are
// append-only.
type State struct {
	Seed            int64
	DatabaseName    string
	DatabaseVersion string
	// QueryString is the statement under test when an oracle fails.
	QueryString string
	Exception   string
	// ProviderState holds engine-specific lines appended to a failure log.
	ProviderState []string
	Started       time.Time

	statements []string
}

// NewState starts the record for one iteration.
func NewState(databaseName string, seed int64) *State {
	return &State{DatabaseName: databaseName, Seed: seed, Started: time.Now()}
}

// Log records an executed (or attempted) statement.
func (s *State) Log(stmt string) {
	s.statements = append(s.statements, stmt)
}

// Statements returns a copy of the recorded statements.
func (s *State) Statements() []string {
	out := make([]string, len(s.statements))
	copy(out, s.statements)
	return out
}

// Len returns the number of recorded statements.
func (s *State) Len() int {
	return len(s.statements)
}
