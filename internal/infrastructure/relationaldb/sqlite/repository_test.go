package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
)

const testOwner = "owner-1"

// setupTestRepo creates an in-memory SQLite repository for testing.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	err = repo.EnsureSchema(context.Background())
	require.NoError(t, err)

	return repo
}

func testEntity(id, name string) *entities.Entity {
	now := time.Now()
	return &entities.Entity{
		ID:              id,
		OwnerID:         testOwner,
		Name:            name,
		NormalizedName:  entities.NormalizeName(name),
		Kind:            entities.KindPerson,
		Tier:            entities.TierMedium,
		ImportanceScore: 0.5,
		Sensitivity:     entities.SensitivityNormal,
		Status:          entities.StatusActive,
		MentionCount:    1,
		LastMentionedAt: now,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func testFact(id, entityID, predicate, object string, exclusive bool) *entities.Fact {
	now := time.Now()
	return &entities.Fact{
		ID:         id,
		OwnerID:    testOwner,
		EntityID:   entityID,
		Predicate:  predicate,
		ObjectText: object,
		Confidence: 0.9,
		Exclusive:  exclusive,
		ValidFrom:  now,
		Version:    1,
		CreatedAt:  now,
	}
}

func TestNewRepository(t *testing.T) {
	t.Run("success with memory database", func(t *testing.T) {
		repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
		require.NoError(t, err)
		defer repo.Close()
		assert.NotNil(t, repo)
	})

	t.Run("error with empty path", func(t *testing.T) {
		_, err := NewRepository(config.SQLiteConfig{Path: ""})
		require.Error(t, err)
	})
}

func TestRepository_EnsureSchema(t *testing.T) {
	repo := setupTestRepo(t)

	tables := []string{"entities", "facts", "relationships", "inferences", "sources", "predicates", "merge_log", "maintenance_runs", "audit_log"}
	for _, table := range tables {
		var count int
		err := repo.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestRepository_EnsureSchema_Idempotent(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err)
}

func TestRepository_FindOrCreateEntity(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("creates new entity", func(t *testing.T) {
		created, err := repo.FindOrCreateEntity(ctx, testEntity("ent-1", "Sarah Chen"))
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "ent-1", created.ID)
		assert.Equal(t, "sarah chen", created.NormalizedName)
	})

	t.Run("returns existing on same normalized name", func(t *testing.T) {
		found, err := repo.FindOrCreateEntity(ctx, testEntity("ent-2", "SARAH CHEN"))
		require.NoError(t, err)
		require.NotNil(t, found)
		// The pre-existing row wins; the candidate ID is discarded.
		assert.Equal(t, "ent-1", found.ID)
	})

	t.Run("find by name is case insensitive", func(t *testing.T) {
		found, err := repo.FindEntityByName(ctx, testOwner, "sArAh cHeN")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "ent-1", found.ID)
	})

	t.Run("unknown name returns nil", func(t *testing.T) {
		found, err := repo.FindEntityByName(ctx, testOwner, "nobody")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("other owner does not see it", func(t *testing.T) {
		found, err := repo.FindEntityByID(ctx, "owner-2", "ent-1")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestRepository_UpdateEntity(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	entity, err := repo.FindOrCreateEntity(ctx, testEntity("ent-1", "Maya"))
	require.NoError(t, err)

	entity.Summary = "friend from college"
	entity.Aliases = []string{"maya p"}
	entity.ImportanceScore = 0.8
	require.NoError(t, repo.UpdateEntity(ctx, entity))

	reloaded, err := repo.FindEntityByID(ctx, testOwner, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, "friend from college", reloaded.Summary)
	assert.Equal(t, []string{"maya p"}, reloaded.Aliases)
	assert.Equal(t, 0.8, reloaded.ImportanceScore)

	t.Run("missing entity errors", func(t *testing.T) {
		ghost := testEntity("ghost", "Ghost")
		err := repo.UpdateEntity(ctx, ghost)
		require.Error(t, err)
	})
}

func TestRepository_ListAndSearchEntities(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	low := testEntity("ent-low", "Background Person")
	low.ImportanceScore = 0.2
	high := testEntity("ent-high", "Best Friend")
	high.ImportanceScore = 0.9
	high.Aliases = []string{"bestie"}

	_, err := repo.FindOrCreateEntity(ctx, low)
	require.NoError(t, err)
	_, err = repo.FindOrCreateEntity(ctx, high)
	require.NoError(t, err)

	t.Run("list orders by importance", func(t *testing.T) {
		list, err := repo.ListEntities(ctx, testOwner, entities.StatusActive, 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "ent-high", list[0].ID)
	})

	t.Run("search matches name substring", func(t *testing.T) {
		found, err := repo.SearchEntities(ctx, testOwner, "friend", 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "ent-high", found[0].ID)
	})

	t.Run("search matches alias", func(t *testing.T) {
		found, err := repo.SearchEntities(ctx, testOwner, "bestie", 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "ent-high", found[0].ID)
	})

	t.Run("count by status", func(t *testing.T) {
		count, err := repo.CountEntities(ctx, testOwner, entities.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestRepository_ApplyDecay(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.FindOrCreateEntity(ctx, testEntity("ent-1", "Fading"))
	require.NoError(t, err)
	now := time.Now()

	t.Run("updates active entity", func(t *testing.T) {
		applied, err := repo.ApplyDecay(ctx, testOwner, "ent-1", 0.4, entities.StatusActive, now)
		require.NoError(t, err)
		assert.True(t, applied)

		entity, err := repo.FindEntityByID(ctx, testOwner, "ent-1")
		require.NoError(t, err)
		assert.Equal(t, 0.4, entity.ImportanceScore)
		require.NotNil(t, entity.LastDecayAt)
	})

	t.Run("can archive in the same write", func(t *testing.T) {
		applied, err := repo.ApplyDecay(ctx, testOwner, "ent-1", 0.1, entities.StatusArchived, now)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("archived entity is not touched again", func(t *testing.T) {
		applied, err := repo.ApplyDecay(ctx, testOwner, "ent-1", 0.05, entities.StatusArchived, now)
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestRepository_ArchiveEntity(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.FindOrCreateEntity(ctx, testEntity("ent-1", "Loser"))
	require.NoError(t, err)

	archived, err := repo.ArchiveEntity(ctx, testOwner, "ent-1", "ent-keeper", time.Now())
	require.NoError(t, err)
	assert.True(t, archived)

	entity, err := repo.FindEntityByID(ctx, testOwner, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusArchived, entity.Status)
	assert.Equal(t, "ent-keeper", entity.SupersededBy)

	// Second claim loses the race.
	archived, err = repo.ArchiveEntity(ctx, testOwner, "ent-1", "other", time.Now())
	require.NoError(t, err)
	assert.False(t, archived)
}

func TestRepository_TouchEntities(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.FindOrCreateEntity(ctx, testEntity("ent-1", "Seen"))
	require.NoError(t, err)

	at := time.Now()
	require.NoError(t, repo.TouchEntities(ctx, testOwner, []string{"ent-1"}, at))
	require.NoError(t, repo.TouchEntities(ctx, testOwner, []string{"ent-1"}, at))

	entity, err := repo.FindEntityByID(ctx, testOwner, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, 2, entity.AccessCount)
	require.NotNil(t, entity.LastAccessedAt)
}

func TestRepository_InsertFact_SingleActiveConstraint(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertFact(ctx, testFact("fact-1", "ent-1", "works_at", "Acme", true)))

	t.Run("second open exclusive fact rejected", func(t *testing.T) {
		err := repo.InsertFact(ctx, testFact("fact-2", "ent-1", "works_at", "Globex", true))
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrDuplicateActiveFact)
	})

	t.Run("multi-valued predicate accumulates", func(t *testing.T) {
		require.NoError(t, repo.InsertFact(ctx, testFact("fact-3", "ent-1", "likes", "climbing", false)))
		require.NoError(t, repo.InsertFact(ctx, testFact("fact-4", "ent-1", "likes", "jazz", false)))

		open, err := repo.FindOpenFacts(ctx, testOwner, "ent-1", "likes")
		require.NoError(t, err)
		assert.Len(t, open, 2)
	})

	t.Run("different entity unaffected", func(t *testing.T) {
		require.NoError(t, repo.InsertFact(ctx, testFact("fact-5", "ent-2", "works_at", "Globex", true)))
	})
}

func TestRepository_SupersedeFact(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	old := testFact("fact-1", "ent-1", "works_at", "Acme", true)
	require.NoError(t, repo.InsertFact(ctx, old))

	closedAt := time.Now()
	successor := testFact("fact-2", "ent-1", "works_at", "Globex", true)
	successor.Version = 2
	successor.PreviousVersionID = "fact-1"

	require.NoError(t, repo.SupersedeFact(ctx, "fact-1", closedAt, successor))

	t.Run("old fact closed with learning time", func(t *testing.T) {
		fact, err := repo.FindFactByID(ctx, testOwner, "fact-1")
		require.NoError(t, err)
		require.NotNil(t, fact.ValidTo)
		require.NotNil(t, fact.InvalidatedAt)
	})

	t.Run("successor is the only open fact", func(t *testing.T) {
		open, err := repo.FindOpenFacts(ctx, testOwner, "ent-1", "works_at")
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "fact-2", open[0].ID)
		assert.Equal(t, 2, open[0].Version)
	})

	t.Run("superseding a closed fact fails", func(t *testing.T) {
		again := testFact("fact-3", "ent-1", "works_at", "Initech", true)
		err := repo.SupersedeFact(ctx, "fact-1", time.Now(), again)
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrDuplicateActiveFact)
	})
}

func TestRepository_FindVersionChain(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	v1 := testFact("fact-1", "ent-1", "works_at", "Acme", true)
	require.NoError(t, repo.InsertFact(ctx, v1))

	v2 := testFact("fact-2", "ent-1", "works_at", "Globex", true)
	v2.Version = 2
	v2.PreviousVersionID = "fact-1"
	require.NoError(t, repo.SupersedeFact(ctx, "fact-1", time.Now(), v2))

	v3 := testFact("fact-3", "ent-1", "works_at", "Initech", true)
	v3.Version = 3
	v3.PreviousVersionID = "fact-2"
	require.NoError(t, repo.SupersedeFact(ctx, "fact-2", time.Now(), v3))

	chain, err := repo.FindVersionChain(ctx, testOwner, "fact-3")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "fact-3", chain[0].ID)
	assert.Equal(t, "fact-2", chain[1].ID)
	assert.Equal(t, "fact-1", chain[2].ID)
}

func TestRepository_FactWindows(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	older := testFact("fact-old", "ent-1", "lives_in", "Berlin", true)
	older.ValidFrom = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.InsertFact(ctx, older))

	newer := testFact("fact-new", "ent-1", "lives_in", "Lisbon", true)
	newer.ValidFrom = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer.Version = 2
	newer.PreviousVersionID = "fact-old"
	require.NoError(t, repo.SupersedeFact(ctx, "fact-old", newer.ValidFrom, newer))

	t.Run("window filter on valid_from", func(t *testing.T) {
		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		facts, err := repo.FindFactsInWindow(ctx, testOwner, from, to, 10)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "fact-new", facts[0].ID)
	})

	t.Run("closed facts", func(t *testing.T) {
		facts, err := repo.FindClosedFacts(ctx, testOwner, 10)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "fact-old", facts[0].ID)
	})
}

func TestRepository_FutureFactsHiddenUntilValid(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	current := testFact("fact-now", "ent-1", "likes", "jazz", false)
	require.NoError(t, repo.InsertFact(ctx, current))

	future := testFact("fact-future", "ent-1", "works_at", "Globex", true)
	future.ValidFrom = time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, repo.InsertFact(ctx, future))

	t.Run("active entity view", func(t *testing.T) {
		facts, err := repo.FindFactsByEntity(ctx, testOwner, "ent-1", false)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "fact-now", facts[0].ID)
	})

	t.Run("history shows it", func(t *testing.T) {
		facts, err := repo.FindFactsByEntity(ctx, testOwner, "ent-1", true)
		require.NoError(t, err)
		assert.Len(t, facts, 2)
	})

	t.Run("predicate search", func(t *testing.T) {
		facts, err := repo.FindFactsByPredicates(ctx, testOwner, []string{"works_at", "likes"}, 10)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "fact-now", facts[0].ID)
	})

	t.Run("versioning still sees the open slot", func(t *testing.T) {
		facts, err := repo.FindOpenFacts(ctx, testOwner, "ent-1", "works_at")
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "fact-future", facts[0].ID)
	})
}

func TestRepository_ReassignFacts(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertFact(ctx, testFact("fact-1", "ent-loser", "likes", "jazz", false)))
	require.NoError(t, repo.InsertFact(ctx, testFact("fact-2", "ent-loser", "likes", "golf", false)))

	moved, err := repo.ReassignFacts(ctx, testOwner, "ent-loser", "ent-keeper")
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	facts, err := repo.FindFactsByEntity(ctx, testOwner, "ent-keeper", false)
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestRepository_Relationships(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rel := &entities.Relationship{
		ID:             "rel-1",
		OwnerID:        testOwner,
		SourceEntityID: "ent-a",
		TargetEntityID: "ent-b",
		Type:           entities.RelationColleague,
		Strength:       0.5,
		Active:         true,
	}

	t.Run("save and find by entity", func(t *testing.T) {
		require.NoError(t, repo.SaveRelationship(ctx, rel))

		found, err := repo.FindRelationshipsByEntity(ctx, testOwner, "ent-a", 0)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "rel-1", found[0].ID)
	})

	t.Run("found from target side too", func(t *testing.T) {
		found, err := repo.FindRelationshipsByEntity(ctx, testOwner, "ent-b", 0)
		require.NoError(t, err)
		require.Len(t, found, 1)
	})

	t.Run("reobserving keeps the stronger edge", func(t *testing.T) {
		weaker := *rel
		weaker.ID = "rel-dup"
		weaker.Strength = 0.3
		require.NoError(t, repo.SaveRelationship(ctx, &weaker))

		found, err := repo.FindRelationshipBetween(ctx, testOwner, "ent-a", "ent-b")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 0.5, found.Strength)
	})

	t.Run("min strength filters", func(t *testing.T) {
		found, err := repo.FindRelationshipsByEntity(ctx, testOwner, "ent-a", 0.8)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("between finds either direction", func(t *testing.T) {
		found, err := repo.FindRelationshipBetween(ctx, testOwner, "ent-b", "ent-a")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "rel-1", found.ID)
	})

	t.Run("no edge returns nil", func(t *testing.T) {
		found, err := repo.FindRelationshipBetween(ctx, testOwner, "ent-a", "ent-z")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestRepository_ReassignRelationships(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	edges := []*entities.Relationship{
		{ID: "rel-1", OwnerID: testOwner, SourceEntityID: "ent-loser", TargetEntityID: "ent-c", Type: entities.RelationFriend, Strength: 0.6, Active: true},
		{ID: "rel-2", OwnerID: testOwner, SourceEntityID: "ent-d", TargetEntityID: "ent-loser", Type: entities.RelationColleague, Strength: 0.4, Active: true},
		// Would become a self-loop after the merge.
		{ID: "rel-3", OwnerID: testOwner, SourceEntityID: "ent-loser", TargetEntityID: "ent-keeper", Type: entities.RelationFriend, Strength: 0.5, Active: true},
	}
	for _, rel := range edges {
		require.NoError(t, repo.SaveRelationship(ctx, rel))
	}

	_, err := repo.ReassignRelationships(ctx, testOwner, "ent-loser", "ent-keeper")
	require.NoError(t, err)

	keeperEdges, err := repo.FindRelationshipsByEntity(ctx, testOwner, "ent-keeper", 0)
	require.NoError(t, err)
	assert.Len(t, keeperEdges, 2)
	for _, edge := range keeperEdges {
		assert.NotEqual(t, edge.SourceEntityID, edge.TargetEntityID)
	}

	loserEdges, err := repo.FindRelationshipsByEntity(ctx, testOwner, "ent-loser", 0)
	require.NoError(t, err)
	assert.Empty(t, loserEdges)
}

func TestRepository_Inferences(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	fresh := &entities.Inference{
		ID:             "inf-1",
		OwnerID:        testOwner,
		SourceEntityID: "ent-a",
		TargetEntityID: "ent-b",
		Relation:       "probably_knows",
		Confidence:     0.7,
		Evidence:       []string{"both work at Acme"},
		ExpiresAt:      now.Add(24 * time.Hour),
	}
	stale := &entities.Inference{
		ID:             "inf-2",
		OwnerID:        testOwner,
		SourceEntityID: "ent-a",
		TargetEntityID: "ent-c",
		Relation:       "probably_knows",
		Confidence:     0.5,
		ExpiresAt:      now.Add(-time.Hour),
	}
	require.NoError(t, repo.SaveInference(ctx, fresh))
	require.NoError(t, repo.SaveInference(ctx, stale))

	t.Run("expired inferences are not returned", func(t *testing.T) {
		found, err := repo.FindInferencesByEntity(ctx, testOwner, "ent-a", now)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "inf-1", found[0].ID)
		assert.Equal(t, []string{"both work at Acme"}, found[0].Evidence)
	})

	t.Run("cleanup removes expired", func(t *testing.T) {
		removed, err := repo.DeleteExpiredInferences(ctx, testOwner, now)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
	})
}

func TestRepository_TaskRuns(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("unknown task returns nil", func(t *testing.T) {
		at, err := repo.LastTaskRun(ctx, testOwner, "decay")
		require.NoError(t, err)
		assert.Nil(t, at)
	})

	t.Run("record and read back", func(t *testing.T) {
		first := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.RecordTaskRun(ctx, testOwner, "decay", first))

		at, err := repo.LastTaskRun(ctx, testOwner, "decay")
		require.NoError(t, err)
		require.NotNil(t, at)
		assert.True(t, at.Equal(first))
	})

	t.Run("recording again overwrites", func(t *testing.T) {
		second := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.RecordTaskRun(ctx, testOwner, "decay", second))

		at, err := repo.LastTaskRun(ctx, testOwner, "decay")
		require.NoError(t, err)
		require.NotNil(t, at)
		assert.True(t, at.Equal(second))
	})
}

func TestRepository_MergeLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rec := &entities.MergeRecord{
		OwnerID:       testOwner,
		WinnerID:      "ent-keeper",
		LoserID:       "ent-loser",
		Similarity:    0.96,
		WinnerBefore:  `{"id":"ent-keeper"}`,
		LoserSnapshot: `{"id":"ent-loser"}`,
		WinnerAfter:   `{"id":"ent-keeper","mention_count":12}`,
	}
	require.NoError(t, repo.SaveMergeRecord(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	records, err := repo.ListMergeRecords(ctx, testOwner, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ent-keeper", records[0].WinnerID)
	assert.Equal(t, 0.96, records[0].Similarity)
}

func TestRepository_AuditLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogAction(ctx, testOwner, "merge", "ent-1", map[string]any{"loser": "ent-2"}))
	require.NoError(t, repo.LogAction(ctx, testOwner, "archive", "ent-1", nil))

	entries, err := repo.FindAuditLog(ctx, testOwner, "ent-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	actions := []string{entries[0].Action, entries[1].Action}
	assert.Contains(t, actions, "merge")
	assert.Contains(t, actions, "archive")
}

func TestRepository_Predicates(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("save and find", func(t *testing.T) {
		require.NoError(t, repo.SavePredicate(ctx, &entities.Predicate{
			Name:        "works_at",
			Description: "Employer",
			SingleValue: true,
		}))

		found, err := repo.FindPredicate(ctx, "works_at")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.SingleValue)
	})

	t.Run("find nonexistent returns nil", func(t *testing.T) {
		found, err := repo.FindPredicate(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("delete nonexistent errors", func(t *testing.T) {
		err := repo.DeletePredicate(ctx, "nope")
		require.Error(t, err)
	})
}

func TestRepository_Sources(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	src := &entities.Source{
		OwnerID:   testOwner,
		Kind:      "cli",
		Reference: "Sarah started at Acme",
	}
	require.NoError(t, repo.SaveSource(ctx, src))
	assert.NotEmpty(t, src.ID)

	fact := testFact("fact-1", "ent-1", "works_at", "Acme", true)
	fact.SourceID = src.ID
	require.NoError(t, repo.InsertFact(ctx, fact))

	t.Run("deleting source soft-deletes its facts", func(t *testing.T) {
		affected, err := repo.DeleteSource(ctx, testOwner, src.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, affected)

		open, err := repo.FindOpenFacts(ctx, testOwner, "ent-1", "works_at")
		require.NoError(t, err)
		assert.Empty(t, open)
	})
}
