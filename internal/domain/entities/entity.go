package entities

import (
	"strings"
	"time"
)

// Tier is the discrete importance classification of an entity. It drives
// decay rate, grace periods and ranking weight.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierTrivial  Tier = "trivial"
)

// AllTiers lists tiers from most to least important.
var AllTiers = []Tier{TierCritical, TierHigh, TierMedium, TierLow, TierTrivial}

// Valid reports whether t is one of the five known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierCritical, TierHigh, TierMedium, TierLow, TierTrivial:
		return true
	}
	return false
}

// Rank returns a numeric ordering for tiers (critical = 4 ... trivial = 0).
func (t Tier) Rank() int {
	switch t {
	case TierCritical:
		return 4
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// BaseScore is the importance score an entity of this tier is restored to
// when refreshed by a new mention.
func (t Tier) BaseScore() float64 {
	switch t {
	case TierCritical:
		return 1.0
	case TierHigh:
		return 0.8
	case TierMedium:
		return 0.5
	case TierLow:
		return 0.3
	default:
		return 0.15
	}
}

// Status is the lifecycle state of an entity.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Sensitivity classifies how private an entity is. Retrieval enforces a
// ceiling: items above the caller's ceiling are never returned.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "public"
	SensitivityNormal    Sensitivity = "normal"
	SensitivitySensitive Sensitivity = "sensitive"
	SensitivityPrivate   Sensitivity = "private"
)

// Valid reports whether s is one of the four known sensitivity levels.
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityPublic, SensitivityNormal, SensitivitySensitive, SensitivityPrivate:
		return true
	}
	return false
}

// Rank returns a numeric ordering for sensitivity levels (public = 0).
func (s Sensitivity) Rank() int {
	switch s {
	case SensitivityPrivate:
		return 3
	case SensitivitySensitive:
		return 2
	case SensitivityNormal:
		return 1
	default:
		return 0
	}
}

// EntityKind categorizes what an entity is.
type EntityKind string

const (
	KindPerson  EntityKind = "person"
	KindPlace   EntityKind = "place"
	KindProject EntityKind = "project"
	KindTopic   EntityKind = "topic"
	KindOther   EntityKind = "other"
	// KindUnknown is assigned when extraction could not classify the entity;
	// a later mention with a concrete kind upgrades it.
	KindUnknown EntityKind = "unknown"
)

// MaxRecentContext caps how many recent context snippets an entity keeps.
const MaxRecentContext = 10

// Entity represents a named thing (person, place, project, topic) tracked in
// the store. All entities are scoped to a single owner; cross-owner access is
// forbidden at every layer.
type Entity struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"owner_id"`
	Name            string      `json:"name"`
	NormalizedName  string      `json:"normalized_name"`
	Aliases         []string    `json:"aliases,omitempty"`
	Kind            EntityKind  `json:"kind"`
	Summary         string      `json:"summary,omitempty"`
	Tier            Tier        `json:"tier"`
	ImportanceScore float64     `json:"importance_score"`
	Sensitivity     Sensitivity `json:"sensitivity"`
	Status          Status      `json:"status"`
	MentionCount    int         `json:"mention_count"`
	AccessCount     int         `json:"access_count"`
	LastMentionedAt time.Time   `json:"last_mentioned_at"`
	LastDecayAt     *time.Time  `json:"last_decay_at,omitempty"`
	LastAccessedAt  *time.Time  `json:"last_accessed_at,omitempty"`
	SupersededBy    string      `json:"superseded_by,omitempty"`
	RecentContext   []string    `json:"recent_context,omitempty"`
	Version         int         `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NormalizeName converts a name to lowercase for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsActive reports whether the entity participates in default retrieval.
func (e *Entity) IsActive() bool {
	return e.Status == StatusActive
}

// HasAlias reports whether the entity already carries the given alias
// (case-insensitive, the canonical name counts).
func (e *Entity) HasAlias(name string) bool {
	norm := NormalizeName(name)
	if e.NormalizedName == norm {
		return true
	}
	for _, a := range e.Aliases {
		if NormalizeName(a) == norm {
			return true
		}
	}
	return false
}

// ClampScore forces the importance score back into [0,1].
func (e *Entity) ClampScore() {
	if e.ImportanceScore < 0 {
		e.ImportanceScore = 0
	}
	if e.ImportanceScore > 1 {
		e.ImportanceScore = 1
	}
}
