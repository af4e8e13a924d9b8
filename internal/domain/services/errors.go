// Package services contains domain business logic.
package services

import "errors"

// ErrConsolidationConflict means a merge candidate was already consolidated
// by a concurrent run. Batch callers skip it; it is not a failure.
var ErrConsolidationConflict = errors.New("entity already merged by a concurrent run")

// ErrVersioningRace means a concurrent fact insert won the open slot for a
// single-valued predicate even after one retry with a fresh read.
var ErrVersioningRace = errors.New("concurrent fact version conflict")

// ItemError records a single item's failure inside a batch run. Batch jobs
// never abort on one item; they collect these and keep going.
type ItemError struct {
	ID  string `json:"id"`
	Err string `json:"error"`
}
