package entities

import "time"

// Inference is a derived (non-stated) connection between two entities. Unlike
// facts, inferences carry an expiry and are swept by maintenance once stale.
type Inference struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	SourceEntityID string    `json:"source_entity_id"`
	TargetEntityID string    `json:"target_entity_id"`
	Relation       string    `json:"relation"`
	Confidence     float64   `json:"confidence"`
	Evidence       []string  `json:"evidence,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Expired reports whether the inference has passed its expiry.
func (i *Inference) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
