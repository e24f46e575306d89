package testutil

// FixedJobIDs returns the same job id every time, so runs submitted in tests
// produce byte-identical results and logs.
//
// Thread-safety: FixedJobIDs is stateless and safe for concurrent use.
type FixedJobIDs struct {
	id string
}

// NewFixedJobIDs creates a fixed generator. An empty id means "test-job".
func NewFixedJobIDs(id string) *FixedJobIDs {
	if id == "" {
		id = "test-job"
	}
	return &FixedJobIDs{id: id}
}

// Generate returns the fixed id.
func (g *FixedJobIDs) Generate() string {
	return g.id
}
