package entities

import "time"

// Predicate declares how facts with a given predicate behave. Single-valued
// predicates allow at most one open fact per entity; multi-valued predicates
// append instead of invalidating prior facts.
type Predicate struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SingleValue bool      `json:"single_value"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultPredicates are the built-in predicates seeded on owner creation.
// These cannot be deleted by users.
var DefaultPredicates = []Predicate{
	{Name: "works_at", Description: "Current employer or workplace", SingleValue: true},
	{Name: "lives_in", Description: "Current place of residence", SingleValue: true},
	{Name: "role", Description: "Job title or function", SingleValue: true},
	{Name: "relationship_status", Description: "Romantic relationship status", SingleValue: true},
	{Name: "feels_about", Description: "Current sentiment toward something", SingleValue: true},
	{Name: "birthday", Description: "Date of birth", SingleValue: true},
	{Name: "knows", Description: "Acquaintance with another entity", SingleValue: false},
	{Name: "likes", Description: "Things the subject enjoys", SingleValue: false},
	{Name: "dislikes", Description: "Things the subject avoids", SingleValue: false},
	{Name: "owns", Description: "Possessions", SingleValue: false},
	{Name: "works_on", Description: "Projects the subject contributes to", SingleValue: false},
	{Name: "decided", Description: "Decisions the subject made", SingleValue: false},
	{Name: "goal", Description: "Goals the subject is pursuing", SingleValue: false},
	{Name: "attended", Description: "Events the subject attended", SingleValue: false},
}

// DefaultPredicateNames returns just the names of default predicates.
func DefaultPredicateNames() []string {
	names := make([]string, len(DefaultPredicates))
	for i, p := range DefaultPredicates {
		names[i] = p.Name
	}
	return names
}

// IsDefaultPredicate checks if a predicate name is a built-in default.
func IsDefaultPredicate(name string) bool {
	for _, p := range DefaultPredicates {
		if p.Name == name {
			return true
		}
	}
	return false
}
