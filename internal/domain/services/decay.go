package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

const (
	// ArchiveThreshold is the importance score under which a decayed entity
	// is archived (soft, never deleted).
	ArchiveThreshold = 0.15

	// DecayWindow is the minimum interval between two decay applications to
	// the same entity. Guards against double penalties within one sweep.
	DecayWindow = 7 * 24 * time.Hour
)

// gracePeriod is how long after the last mention an entity is left alone
// before decay starts, per tier. Critical entities never decay.
func gracePeriod(tier entities.Tier) time.Duration {
	switch tier {
	case entities.TierHigh:
		return 90 * 24 * time.Hour
	case entities.TierMedium:
		return 30 * 24 * time.Hour
	case entities.TierLow:
		return 14 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// weeklyDecayFactor is the per-cycle score multiplier, per tier.
func weeklyDecayFactor(tier entities.Tier) float64 {
	switch tier {
	case entities.TierHigh:
		return 0.95
	case entities.TierMedium:
		return 0.90
	case entities.TierLow:
		return 0.85
	default:
		return 0.80
	}
}

// DecayResult describes what one decay cycle did to an entity.
type DecayResult struct {
	Decayed  bool
	Archived bool
	Score    float64
}

// DecayService applies importance decay and archival, and refreshes entities
// when they are mentioned again.
type DecayService struct {
	relationalDB ports.RelationalDB
}

// NewDecayService creates a new DecayService.
func NewDecayService(relationalDB ports.RelationalDB) *DecayService {
	return &DecayService{relationalDB: relationalDB}
}

// Decay applies one decay cycle to an entity. Critical entities are exempt;
// entities inside their tier's grace period are skipped; an entity already
// decayed inside the current window is not penalized again. Absent a refresh
// the score is monotonic non-increasing.
func (s *DecayService) Decay(ctx context.Context, entity *entities.Entity, now time.Time) (*DecayResult, error) {
	result := &DecayResult{Score: entity.ImportanceScore}

	if entity.Status != entities.StatusActive || entity.Tier == entities.TierCritical {
		return result, nil
	}
	if now.Sub(entity.LastMentionedAt) < gracePeriod(entity.Tier) {
		return result, nil
	}
	if entity.LastDecayAt != nil && now.Sub(*entity.LastDecayAt) < DecayWindow {
		return result, nil
	}

	score := entity.ImportanceScore * weeklyDecayFactor(entity.Tier)
	if score < 0 {
		score = 0
	}

	status := entities.StatusActive
	if score < ArchiveThreshold {
		status = entities.StatusArchived
	}

	applied, err := s.relationalDB.ApplyDecay(ctx, entity.OwnerID, entity.ID, score, status, now)
	if err != nil {
		return nil, fmt.Errorf("applying decay: %w", err)
	}
	if !applied {
		// Row was no longer active (archived or merged meanwhile); nothing
		// to decay.
		return result, nil
	}

	entity.ImportanceScore = score
	entity.Status = status
	entity.LastDecayAt = &now

	result.Decayed = true
	result.Archived = status == entities.StatusArchived
	result.Score = score
	return result, nil
}

// Refresh resets an entity's mention clock and restores its score to at
// least the tier base. Never decreases the score. Entities archived by decay
// come back; merged losers (superseded_by set) stay archived.
func (s *DecayService) Refresh(ctx context.Context, entity *entities.Entity, snippet string, now time.Time) error {
	if base := entity.Tier.BaseScore(); entity.ImportanceScore < base {
		entity.ImportanceScore = base
	}
	entity.ClampScore()
	entity.MentionCount++
	entity.LastMentionedAt = now

	if entity.Status == entities.StatusArchived && entity.SupersededBy == "" {
		entity.Status = entities.StatusActive
	}

	if snippet != "" {
		entity.RecentContext = appendCapped(entity.RecentContext, snippet, entities.MaxRecentContext)
	}

	if err := s.relationalDB.UpdateEntity(ctx, entity); err != nil {
		return fmt.Errorf("refreshing entity: %w", err)
	}
	return nil
}

// appendCapped appends a value, dropping the oldest entries beyond cap.
// Duplicate values are not re-added.
func appendCapped(list []string, value string, limit int) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	list = append(list, value)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}
