package entities

import "time"

// MergeRecord logs a consolidation merge so it can be reasoned about and, if
// needed, reversed by hand. Snapshots are JSON-encoded entities.
type MergeRecord struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	WinnerID      string    `json:"winner_id"`
	LoserID       string    `json:"loser_id"`
	Similarity    float64   `json:"similarity"`
	WinnerBefore  string    `json:"winner_before"`
	LoserSnapshot string    `json:"loser_snapshot"`
	WinnerAfter   string    `json:"winner_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// MergeCandidate is a pair of near-duplicate entities proposed by the
// consolidation engine's preview mode.
type MergeCandidate struct {
	KeeperID   string  `json:"keeper_id"`
	LoserID    string  `json:"loser_id"`
	KeeperName string  `json:"keeper_name"`
	LoserName  string  `json:"loser_name"`
	Similarity float64 `json:"similarity"`
}
