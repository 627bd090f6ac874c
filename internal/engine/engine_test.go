package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"stride/internal/config"
	"stride/internal/db"
	"stride/internal/domain"
	"stride/internal/engine"
	"stride/internal/engine/auth"
	"stride/internal/lifecycle"
	"stride/internal/migrate"
	"stride/internal/repo"
)

var admin = domain.Actor{ID: "coe-1", Role: config.RoleAdmin}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	Engine engine.Engine
	Clock  *clock
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default("coe")
	eng := engine.New(conn, cfg)
	clk := &clock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	eng.Now = clk.Now
	return testEnv{Engine: eng, Clock: clk, Ctx: context.Background()}
}

func (env testEnv) create(t *testing.T, title string) domain.Requirement {
	t.Helper()
	req, err := env.Engine.CreateRequirement(env.Ctx, admin, engine.RequirementInput{
		Title:          title,
		Description:    "grip aid for children with limited hand strength",
		SourceType:     "CDC",
		TherapyDomains: []string{"OT"},
	})
	require.NoError(t, err)
	return req
}

func fullInput(from, to string) lifecycle.AdvanceInput {
	in := lifecycle.AdvanceInput{To: to, Notes: "initial review", Gates: map[string]bool{}, PhaseData: map[string]string{}}
	for _, g := range lifecycle.GateCriteria(from, to) {
		in.Gates[g.ID] = true
	}
	for _, f := range lifecycle.PhaseFields(from, to) {
		v := "captured"
		if len(f.Options) > 0 {
			v = f.Options[0]
		}
		in.PhaseData[f.ID] = v
	}
	return in
}

// walk advances req through each target with complete input, assigning
// path at S4 when needed.
func (env testEnv) walk(t *testing.T, req domain.Requirement, targets ...string) domain.Requirement {
	t.Helper()
	for _, to := range targets {
		if req.CurrentState == lifecycle.S4 && req.PathAssignment == "" {
			path := lifecycle.PathDesignathon
			if to == lifecycle.HInt1 {
				path = lifecycle.PathInternal
			}
			var err error
			req, err = env.Engine.AssignPath(env.Ctx, req.ID, admin, path, "walk")
			require.NoError(t, err)
		}
		var err error
		req, err = env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(req.CurrentState, to))
		require.NoError(t, err, "advance %s -> %s", req.CurrentState, to)
	}
	return req
}

func repoFilter(evtType string) repo.EventFilters {
	return repo.EventFilters{Type: evtType}
}

var toS4 = []string{lifecycle.S2, lifecycle.S3, lifecycle.S4}

var internalToCommittee = []string{
	lifecycle.HInt1, lifecycle.HInt2, lifecycle.HDoe1, lifecycle.HDoe2, lifecycle.HDoe3, lifecycle.HDoe4,
}

func TestCreateRequirementDefaults(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "  Adaptive spoon ")
	assert.Equal(t, "Adaptive spoon", req.Title)
	assert.Equal(t, lifecycle.S1, req.CurrentState)
	assert.Equal(t, "P2", req.Priority)
	assert.Equal(t, "MEDIUM", req.TechLevel)
	assert.Equal(t, 0, req.RevisionNumber)
	assert.Equal(t, []string{}, req.GapFlags)

	got, err := env.Engine.GetRequirement(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	history, err := env.Engine.History(env.Ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, lifecycle.StateNew, history[0].FromState)
	assert.Equal(t, lifecycle.S1, history[0].ToState)

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, repoFilter("requirement.created"))
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, req.ID, evts[0].EntityID)
}

func TestCreateRequirementRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	neg := -1.0
	cases := map[string]engine.RequirementInput{
		"blank title":     {Title: " ", SourceType: "CDC"},
		"bad source":      {Title: "x", SourceType: "MARS"},
		"bad priority":    {Title: "x", SourceType: "CDC", Priority: "P9"},
		"bad tech level":  {Title: "x", SourceType: "CDC", TechLevel: "EXTREME"},
		"bad therapy":     {Title: "x", SourceType: "CDC", TherapyDomains: []string{"OT", "Dance"}},
		"bad gap flag":    {Title: "x", SourceType: "CDC", GapFlags: []string{"GREEN"}},
		"negative price":  {Title: "x", SourceType: "CDC", MarketPrice: &neg},
		"bad disability":  {Title: "x", SourceType: "CDC", DisabilityTypes: []string{"Unknown"}},
		"negative target": {Title: "x", SourceType: "CDC", TargetPrice: &neg},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.Engine.CreateRequirement(env.Ctx, admin, in)
			assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidInput), "got %v", err)
		})
	}
	_, err := env.Engine.CreateRequirement(env.Ctx, domain.Actor{}, engine.RequirementInput{Title: "x", SourceType: "CDC"})
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidInput))

	items, _, err := env.Engine.ListRequirements(env.Ctx, engine.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAdvanceS1ToS2(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Adaptive spoon")

	in := fullInput(lifecycle.S1, lifecycle.S2)
	in.BlockersResolved = []string{"clarified grip size"}
	got, err := env.Engine.Advance(env.Ctx, req.ID, admin, in)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.S2, got.CurrentState)
	assert.Equal(t, req.Version+1, got.Version)

	history, err := env.Engine.History(env.Ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, lifecycle.S1, history[1].FromState)
	assert.Equal(t, lifecycle.S2, history[1].ToState)
	assert.Equal(t, "initial review", history[1].Note)
	assert.Equal(t, admin.ID, history[1].ActorID)

	fbs, err := env.Engine.Feedback(env.Ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, fbs, 1)
	assert.Equal(t, "initial review", fbs[0].PhaseNotes)
	assert.Equal(t, []string{"clarified grip size"}, fbs[0].BlockersResolved)
	assert.Equal(t, []string{}, fbs[0].KeyDecisions)
	assert.True(t, fbs[0].GatesChecked["title_complete"])
}

func TestAdvanceRejectionLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Adaptive spoon")

	in := fullInput(lifecycle.S1, lifecycle.S2)
	in.Notes = "   "
	for i := 0; i < 2; i++ {
		_, err := env.Engine.Advance(env.Ctx, req.ID, admin, in)
		require.Error(t, err)
		assert.Equal(t, lifecycle.KindMissingPhaseNotes, lifecycle.KindOf(err))
	}

	in = fullInput(lifecycle.S1, lifecycle.S2)
	in.Gates["source_identified"] = false
	_, err := env.Engine.Advance(env.Ctx, req.ID, admin, in)
	var le *lifecycle.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lifecycle.KindGateCriteriaNotMet, le.Kind)
	assert.Equal(t, []string{"source_identified"}, le.Detail)

	_, err = env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S1, lifecycle.S3))
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidTransition))

	history, err := env.Engine.History(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	fbs, err := env.Engine.Feedback(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, fbs)
	got, err := env.Engine.GetRequirement(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.S1, got.CurrentState)
	assert.Equal(t, req.Version, got.Version)
}

func TestAdvanceUnknownRequirement(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Advance(env.Ctx, "missing", admin, fullInput(lifecycle.S1, lifecycle.S2))
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindNotFound))
	_, err = env.Engine.AssignPath(env.Ctx, "missing", admin, lifecycle.PathInternal, "why")
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindNotFound))
	_, err = env.Engine.History(env.Ctx, "missing")
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindNotFound))
}

func TestPathGatesS4(t *testing.T) {
	env := newTestEnv(t)
	req := env.walk(t, env.create(t, "Talking clock"), toS4...)
	require.Equal(t, lifecycle.S4, req.CurrentState)

	next, err := env.Engine.NextStates(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, next)

	_, err = env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S4, lifecycle.HInt1))
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidTransition))

	_, err = env.Engine.AssignPath(env.Ctx, req.ID, admin, lifecycle.PathInternal, "  ")
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidInput))

	req, err = env.Engine.AssignPath(env.Ctx, req.ID, admin, lifecycle.PathInternal, "simple device, in-house team available")
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL", req.PathAssignment)
	assert.Equal(t, lifecycle.S4, req.CurrentState)

	next, err = env.Engine.NextStates(env.Ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, lifecycle.HInt1, next[0].ID)

	_, err = env.Engine.AssignPath(env.Ctx, req.ID, admin, lifecycle.PathDesignathon, "changed our mind")
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindPathAlreadyAssigned))

	_, err = env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S4, lifecycle.HDes1))
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidTransition))

	req, err = env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S4, lifecycle.HInt1))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.HInt1, req.CurrentState)
}

func TestAssignPathOutsideS4(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Talking clock")
	_, err := env.Engine.AssignPath(env.Ctx, req.ID, admin, lifecycle.PathInternal, "too early")
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidTransition))
}

func TestRevisionLoopIncrementsOnce(t *testing.T) {
	env := newTestEnv(t)
	req := env.walk(t, env.create(t, "Braille labeler"), toS4...)
	req = env.walk(t, req, internalToCommittee...)
	require.Equal(t, lifecycle.HDoe4, req.CurrentState)
	require.Equal(t, 0, req.RevisionNumber)

	req = env.walk(t, req, lifecycle.HInt1)
	assert.Equal(t, 1, req.RevisionNumber)

	req = env.walk(t, req, internalToCommittee[1:]...)
	req = env.walk(t, req, lifecycle.HDoe5)
	assert.Equal(t, lifecycle.HDoe5, req.CurrentState)
	assert.Equal(t, 1, req.RevisionNumber)

	next, err := env.Engine.NextStates(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, next)

	history, err := env.Engine.History(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.HDoe5, history[len(history)-1].ToState)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].ToState, history[i].FromState, "history must chain")
	}

	revised, err := env.Engine.Repo.LatestEvents(env.Ctx, repoFilter("requirement.revised"))
	require.NoError(t, err)
	assert.Len(t, revised, 1)
}

func TestConcurrentAdvanceSerializes(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Adaptive spoon")

	targets := []string{lifecycle.S2, lifecycle.HDoe5}
	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, to := range targets {
		i, to := i, to
		g.Go(func() error {
			_, errs[i] = env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S1, to))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, errs[0])
	kind := lifecycle.KindOf(errs[1])
	assert.Contains(t, []lifecycle.Kind{lifecycle.KindInvalidTransition, lifecycle.KindConcurrentUpdate}, kind)

	assertConsistent(t, env, req.ID, lifecycle.S2, 2)
}

func TestConcurrentAdvanceSameTarget(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Adaptive spoon")

	const n = 8
	var (
		mu        sync.Mutex
		successes int
		failures  []lifecycle.Kind
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S1, lifecycle.S2))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, lifecycle.KindOf(err))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, successes)
	for _, k := range failures {
		assert.Contains(t, []lifecycle.Kind{lifecycle.KindInvalidTransition, lifecycle.KindConcurrentUpdate}, k)
	}
	assertConsistent(t, env, req.ID, lifecycle.S2, 2)
}

func assertConsistent(t *testing.T, env testEnv, id, state string, transitions int) {
	t.Helper()
	got, err := env.Engine.GetRequirement(env.Ctx, id)
	require.NoError(t, err)
	assert.Equal(t, state, got.CurrentState)
	history, err := env.Engine.History(env.Ctx, id)
	require.NoError(t, err)
	require.Len(t, history, transitions)
	assert.Equal(t, got.CurrentState, history[len(history)-1].ToState)
	fbs, err := env.Engine.Feedback(env.Ctx, id)
	require.NoError(t, err)
	assert.Len(t, fbs, transitions-1)
}

type denyAttestor struct{}

func (denyAttestor) CanAttestGates(context.Context, domain.Actor) (bool, error) { return false, nil }

func TestGateAttestationRequiresCapability(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Adaptive spoon")

	viewer := domain.Actor{ID: "lead-1", Role: config.RoleViewer}
	_, err := env.Engine.Advance(env.Ctx, req.ID, viewer, fullInput(lifecycle.S1, lifecycle.S2))
	var forbidden auth.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, config.PermGateAttest, forbidden.Permission)

	eng := env.Engine
	eng.Attestor = denyAttestor{}
	_, err = eng.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S1, lifecycle.S2))
	require.ErrorAs(t, err, &forbidden)

	// Without attesting anything the gate check itself rejects the edge.
	in := fullInput(lifecycle.S1, lifecycle.S2)
	in.Gates = nil
	_, err = eng.Advance(env.Ctx, req.ID, admin, in)
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindGateCriteriaNotMet))

	got, err := env.Engine.GetRequirement(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.S1, got.CurrentState)
}

func TestAgingReport(t *testing.T) {
	env := newTestEnv(t)
	start := env.Clock.Now()
	stale := env.create(t, "Stale request")
	fresh := env.create(t, "Fresh request")

	env.Clock.Advance(10 * 24 * time.Hour)
	env.walk(t, fresh, lifecycle.S2)

	report, err := env.Engine.AgingReport(env.Ctx, start.Add(20*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, stale.ID, report[0].Requirement.ID)
	assert.True(t, report[0].Aging)
	assert.Equal(t, 20, report[0].DaysInPhase)
	assert.Equal(t, 14, report[0].Threshold)
	assert.Equal(t, 6, report[0].OverdueBy)

	report, err = env.Engine.AgingReport(env.Ctx, start.Add(30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, stale.ID, report[0].Requirement.ID, "most overdue first")
	assert.Equal(t, fresh.ID, report[1].Requirement.ID)
	assert.Equal(t, 6, report[1].OverdueBy)

	counts, err := env.Engine.Counts(env.Ctx, start.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.ByState[lifecycle.S1])
	assert.Equal(t, 1, counts.ByState[lifecycle.S2])
	assert.Equal(t, 2, counts.ByPhase[string(lifecycle.PhaseSensing)])
	assert.Equal(t, 0, counts.ByPhase[string(lifecycle.PhaseConvergence)])
	assert.Equal(t, 2, counts.Aging)
}

func TestCommitteeReviews(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Standing frame")

	good := engine.ReviewInput{UserNeed: 10, TechnicalFeasibility: 10, DoEResults: 10, CostEffectiveness: 10, Safety: 10, Recommendation: "APPROVE"}
	_, err := env.Engine.AddReview(env.Ctx, req.ID, admin, good)
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidTransition))

	req = env.walk(t, req, toS4...)
	req = env.walk(t, req, internalToCommittee[:5]...)
	require.Equal(t, lifecycle.HDoe3, req.CurrentState)

	bad := good
	bad.Safety = 11
	bad.UserNeed = 0
	_, err = env.Engine.AddReview(env.Ctx, req.ID, admin, bad)
	var le *lifecycle.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lifecycle.KindInvalidInput, le.Kind)
	assert.Equal(t, []string{"user_need", "safety"}, le.Detail)

	bad = good
	bad.Recommendation = "MAYBE"
	_, err = env.Engine.AddReview(env.Ctx, req.ID, admin, bad)
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidInput))

	rv, err := env.Engine.AddReview(env.Ctx, req.ID, admin, good)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, rv.WeightedTotal, 1e-9)

	second := engine.ReviewInput{UserNeed: 6, TechnicalFeasibility: 5, DoEResults: 7, CostEffectiveness: 4, Safety: 9, Recommendation: "REVISE"}
	assert.InDelta(t, 6.2, second.WeightedTotal(), 1e-9)
	_, err = env.Engine.AddReview(env.Ctx, req.ID, domain.Actor{ID: "coe-2", Role: config.RoleAdmin}, second)
	require.NoError(t, err)

	sum, err := env.Engine.Reviews(env.Ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.InDelta(t, 8.1, sum.AverageScore, 1e-9)
	assert.Equal(t, 1, sum.Approve)
	assert.Equal(t, 1, sum.Revise)
	assert.Equal(t, 0, sum.Reject)
	require.Len(t, sum.Reviews, 2)
	assert.Equal(t, "coe-2", sum.Reviews[1].ReviewerID)
}

func TestListRequirementsPaginates(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		ids = append(ids, env.create(t, title).ID)
		env.Clock.Advance(time.Minute)
	}

	page, cursor, err := env.Engine.ListRequirements(env.Ctx, engine.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
	require.NotEmpty(t, cursor)

	page, cursor, err = env.Engine.ListRequirements(env.Ctx, engine.ListOptions{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Empty(t, cursor)

	page, _, err = env.Engine.ListRequirements(env.Ctx, engine.ListOptions{Phase: string(lifecycle.PhaseConvergence)})
	require.NoError(t, err)
	assert.Empty(t, page)

	_, _, err = env.Engine.ListRequirements(env.Ctx, engine.ListOptions{State: "S9"})
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidInput))
	_, _, err = env.Engine.ListRequirements(env.Ctx, engine.ListOptions{Cursor: "garbage"})
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidInput))
}

func TestStorageFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Adaptive spoon")
	require.NoError(t, env.Engine.DB.Close())

	_, err := env.Engine.Advance(env.Ctx, req.ID, admin, fullInput(lifecycle.S1, lifecycle.S2))
	var le *lifecycle.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lifecycle.KindStorageUnavailable, le.Kind)
	assert.True(t, le.Retryable())
}

func TestDescribe(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Adaptive spoon")
	env.Clock.Advance(48 * time.Hour)
	req = env.walk(t, req, lifecycle.S2)

	d, err := env.Engine.Describe(env.Ctx, req.ID, env.Clock.Now().Add(15*24*time.Hour+time.Hour))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.S2, d.Requirement.CurrentState)
	require.Len(t, d.NextStates, 1)
	assert.Equal(t, lifecycle.S3, d.NextStates[0].ID)
	assert.Equal(t, "2024-01-03T09:00:00Z", d.EnteredAt)
	assert.True(t, d.Aging.Aging)
	assert.Equal(t, 15, d.Aging.DaysInPhase)
	assert.Equal(t, 1, d.Aging.OverdueBy)

	_, err = env.Engine.Describe(env.Ctx, "missing", env.Clock.Now())
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindNotFound))
}
