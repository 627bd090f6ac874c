package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stride/internal/config"
	"stride/internal/db"
	"stride/internal/domain"
	"stride/internal/migrate"
	"stride/internal/repo"
)

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}, context.Background()
}

func sampleRequirement(id string) domain.Requirement {
	price := 120.5
	return domain.Requirement{
		ID:              id,
		Title:           "Reading stand",
		SourceType:      "BLIND",
		Priority:        "P1",
		TechLevel:       "LOW",
		TherapyDomains:  []string{"OT", "ADL"},
		DisabilityTypes: []string{"Visual"},
		GapFlags:        []string{},
		MarketPrice:     &price,
		CurrentState:    "S1",
		Version:         1,
		CreatedBy:       "coe-1",
		CreatedAt:       "2024-01-01T00:00:00Z",
		UpdatedAt:       "2024-01-01T00:00:00Z",
	}
}

func insert(t *testing.T, r repo.Repo, ctx context.Context, req domain.Requirement) {
	t.Helper()
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.InsertRequirementTx(ctx, tx, req))
	require.NoError(t, tx.Commit())
}

func TestRequirementRoundTrip(t *testing.T) {
	r, ctx := newRepo(t)
	want := sampleRequirement("req-1")
	insert(t, r, ctx, want)

	got, err := r.GetRequirement(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = r.GetRequirement(ctx, "nope")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUpdateRequirementIsVersionChecked(t *testing.T) {
	r, ctx := newRepo(t)
	req := sampleRequirement("req-1")
	insert(t, r, ctx, req)

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	req.CurrentState = "S2"
	require.NoError(t, r.UpdateRequirementTx(ctx, tx, req, 1))
	require.NoError(t, tx.Commit())

	tx, err = r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	req.CurrentState = "S3"
	assert.ErrorIs(t, r.UpdateRequirementTx(ctx, tx, req, 1), repo.ErrConflict)
	require.NoError(t, tx.Rollback())

	got, err := r.GetRequirement(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "S2", got.CurrentState)
	assert.Equal(t, int64(2), got.Version)
}

func TestTransitionsAndFeedbackOrdering(t *testing.T) {
	r, ctx := newRepo(t)
	insert(t, r, ctx, sampleRequirement("req-1"))

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	for _, hop := range [][2]string{{"NEW", "S1"}, {"S1", "S2"}} {
		_, err := r.InsertTransitionTx(ctx, tx, domain.StateTransition{
			RequirementID: "req-1", FromState: hop[0], ToState: hop[1], ActorID: "coe-1", CreatedAt: "2024-01-01T00:00:00Z",
		})
		require.NoError(t, err)
	}
	require.NoError(t, r.InsertFeedbackTx(ctx, tx, domain.PhaseFeedback{
		ID: "fb-1", RequirementID: "req-1", FromState: "S1", ToState: "S2", PhaseNotes: "ok",
		GatesChecked: map[string]bool{"title_complete": true},
		SubmittedBy:  "coe-1", CreatedAt: "2024-01-01T00:00:00Z",
	}))
	require.NoError(t, tx.Commit())

	hist, err := r.ListTransitions(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "NEW", hist[0].FromState)
	assert.Equal(t, "S2", hist[1].ToState)

	fbs, err := r.ListFeedback(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, fbs, 1)
	assert.True(t, fbs[0].GatesChecked["title_complete"])
	assert.Nil(t, fbs[0].PhaseData)
	assert.Equal(t, []string{}, fbs[0].BlockersResolved)

	entries, err := r.ListStateEntries(ctx, "H-DOE-5")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-01T00:00:00Z", entries[0].EnteredAt)
}

func TestOrgConfigRoundTrip(t *testing.T) {
	r, ctx := newRepo(t)
	_, err := r.LatestOrgConfig(ctx)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, r.UpsertOrgConfig(ctx, "coe", config.Default("coe")))
	cfg, err := r.LatestOrgConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "coe", cfg.Org.ID)
	assert.True(t, cfg.RoleCanAttest(config.RoleAdmin))
}

func TestAPIKeys(t *testing.T) {
	r, ctx := newRepo(t)
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.EnsureActor(ctx, tx, "coe-1", "2024-01-01T00:00:00Z"))
	raw, key, err := r.IssueAPIKey(ctx, tx, "coe-1", "ci", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NotContains(t, key.KeyHash, raw)

	got, err := r.LookupAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.Equal(t, "coe-1", got.ActorID)

	_, err = r.LookupAPIKey(ctx, "stk_wrong")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	keys, err := r.ListAPIKeys(ctx, "coe-1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	require.NoError(t, r.RevokeAPIKey(ctx, key.ID))
	assert.ErrorIs(t, r.RevokeAPIKey(ctx, key.ID), repo.ErrNotFound)
}
