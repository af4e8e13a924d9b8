package entities

import "time"

// RelationType defines the kind of relationship between entities.
type RelationType string

const (
	RelationFamily    RelationType = "family"
	RelationPartner   RelationType = "partner"
	RelationFriend    RelationType = "friend"
	RelationColleague RelationType = "colleague"
	RelationManages   RelationType = "manages"
	RelationLocatedIn RelationType = "located_in"
	RelationOwns      RelationType = "owns"
	RelationMemberOf  RelationType = "member_of"
	RelationWorksOn   RelationType = "works_on"
	RelationRelatedTo RelationType = "related_to"
)

// Relationship represents a directed, weighted edge between two entities.
// Strength grows with repeated observation and gates graph traversal.
type Relationship struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner_id"`
	SourceEntityID string       `json:"source_entity_id"`
	TargetEntityID string       `json:"target_entity_id"`
	Type           RelationType `json:"type"`
	Strength       float64      `json:"strength"`
	Active         bool         `json:"active"`
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        *time.Time   `json:"ended_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
