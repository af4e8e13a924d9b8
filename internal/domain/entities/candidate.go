package entities

// Candidate is an untrusted fact proposal from the extraction collaborator.
// It must pass boundary validation before it can affect store state.
type Candidate struct {
	EntityName  string      `json:"entity_name"`
	EntityKind  EntityKind  `json:"entity_kind"`
	Predicate   string      `json:"predicate"`
	Object      string      `json:"object"`
	ObjectName  string      `json:"object_name,omitempty"` // set when the object is itself an entity
	Confidence  float64     `json:"confidence"`
	Sensitivity Sensitivity `json:"sensitivity,omitempty"`
	ValidFrom   string      `json:"valid_from,omitempty"` // RFC 3339 date, optional
	Context     string      `json:"context,omitempty"`
}

// IngestStatus describes what the ingest pipeline did with a candidate.
type IngestStatus string

const (
	// IngestSkipped means the candidate failed boundary validation and was
	// silently dropped. Not an error.
	IngestSkipped IngestStatus = "skipped"
	// IngestInserted means a new fact (version 1) was created.
	IngestInserted IngestStatus = "inserted"
	// IngestReobserved means an identical open fact existed; confidence was
	// bumped, no new version.
	IngestReobserved IngestStatus = "reobserved"
	// IngestSuperseded means the candidate contradicted an open single-valued
	// fact, which was closed; a new version was inserted.
	IngestSuperseded IngestStatus = "superseded"
	// IngestAppended means the predicate is multi-valued and the fact was
	// added alongside existing ones.
	IngestAppended IngestStatus = "appended"
)
