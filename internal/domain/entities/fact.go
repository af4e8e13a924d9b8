// Package entities contains core domain data structures.
package entities

import "time"

// Fact is a versioned subject-predicate-object statement about an entity.
// Versioning is bi-temporal: ValidFrom/ValidTo track when the statement was
// true, InvalidatedAt tracks when the system learned it changed.
type Fact struct {
	ID             string  `json:"id"`
	OwnerID        string  `json:"owner_id"`
	EntityID       string  `json:"entity_id"`
	Predicate      string  `json:"predicate"`
	ObjectText     string  `json:"object_text"`
	ObjectEntityID string  `json:"object_entity_id,omitempty"`
	Confidence     float64 `json:"confidence"`
	Exclusive      bool    `json:"exclusive,omitempty"` // single-valued predicate

	ValidFrom         time.Time  `json:"valid_from"`
	ValidTo           *time.Time `json:"valid_to,omitempty"`
	InvalidatedAt     *time.Time `json:"invalidated_at,omitempty"`
	Version           int        `json:"version"`
	PreviousVersionID string     `json:"previous_version_id,omitempty"`
	SourceID          string     `json:"source_id,omitempty"`
	Deleted           bool       `json:"deleted,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// IsOpen reports whether the fact is the current version for its predicate
// (no end to its validity recorded yet).
func (f *Fact) IsOpen() bool {
	return f.ValidTo == nil && !f.Deleted
}

// ActiveAt reports whether the fact was valid at the given instant. Facts
// with a future ValidFrom are stored but not active until that date passes.
func (f *Fact) ActiveAt(t time.Time) bool {
	if f.Deleted {
		return false
	}
	if f.ValidFrom.After(t) {
		return false
	}
	return f.ValidTo == nil || f.ValidTo.After(t)
}

// Source records where a fact came from. Deleting a source cascades a soft
// delete to its facts; nothing else in the engine hard-deletes.
type Source struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}
