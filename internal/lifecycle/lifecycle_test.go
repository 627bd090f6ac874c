package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stride/internal/lifecycle"
)

func TestRegistry(t *testing.T) {
	states := lifecycle.States()
	require.Len(t, states, 17)
	assert.Equal(t, lifecycle.S1, states[0].ID)
	assert.Equal(t, lifecycle.HDoe5, states[len(states)-1].ID)

	info, ok := lifecycle.Lookup("H-DOE-3")
	require.True(t, ok)
	assert.Equal(t, "Committee Review", info.Label)
	assert.Equal(t, lifecycle.PhaseConvergence, info.Phase)

	info, ok = lifecycle.Lookup("bogus")
	assert.False(t, ok)
	assert.Equal(t, "Unknown", info.Label)
	assert.Equal(t, lifecycle.Phase(""), info.Phase)
}

func TestNextStatesLiteralTable(t *testing.T) {
	want := map[string][]string{
		"S1":      {"S2"},
		"S2":      {"S3"},
		"S3":      {"S4"},
		"H-INT-1": {"H-INT-2"},
		"H-INT-2": {"H-DOE-1"},
		"H-DES-1": {"H-DES-2"},
		"H-DES-2": {"H-DES-3"},
		"H-DES-3": {"H-DES-4"},
		"H-DES-4": {"H-DES-5"},
		"H-DES-5": {"H-DES-6"},
		"H-DES-6": {"H-DOE-1"},
		"H-DOE-1": {"H-DOE-2"},
		"H-DOE-2": {"H-DOE-3"},
		"H-DOE-3": {"H-DOE-4"},
		"H-DOE-4": {"H-DOE-5", "H-INT-1", "H-DES-1"},
		"H-DOE-5": {},
	}
	for _, path := range []lifecycle.Path{lifecycle.PathUnset, lifecycle.PathInternal, lifecycle.PathDesignathon} {
		for state, next := range want {
			assert.Equal(t, next, lifecycle.NextStates(state, path), "state %s path %q", state, path)
		}
	}
}

func TestNextStatesAtS4FollowsPath(t *testing.T) {
	assert.Empty(t, lifecycle.NextStates("S4", lifecycle.PathUnset))
	assert.Equal(t, []string{"H-INT-1"}, lifecycle.NextStates("S4", lifecycle.PathInternal))
	assert.Equal(t, []string{"H-DES-1"}, lifecycle.NextStates("S4", lifecycle.PathDesignathon))
	assert.Empty(t, lifecycle.NextStates("S4", lifecycle.Path("SOMETHING")))
}

func TestNextStatesUnknownState(t *testing.T) {
	assert.Empty(t, lifecycle.NextStates("nope", lifecycle.PathInternal))
}

func TestNextStatesReturnsCopy(t *testing.T) {
	next := lifecycle.NextStates("H-DOE-4", lifecycle.PathUnset)
	next[0] = "mutated"
	assert.Equal(t, "H-DOE-5", lifecycle.NextStates("H-DOE-4", lifecycle.PathUnset)[0])
}

func TestEveryEdgeHasKnownEndpoints(t *testing.T) {
	for _, e := range lifecycle.Edges() {
		assert.True(t, lifecycle.IsKnown(e.From), e.String())
		assert.True(t, lifecycle.IsKnown(e.To), e.String())
	}
}

func TestRevisionEdge(t *testing.T) {
	assert.True(t, lifecycle.IsRevisionEdge("H-DOE-4", "H-INT-1"))
	assert.True(t, lifecycle.IsRevisionEdge("H-DOE-4", "H-DES-1"))
	assert.False(t, lifecycle.IsRevisionEdge("H-DOE-4", "H-DOE-5"))
	assert.False(t, lifecycle.IsRevisionEdge("S4", "H-INT-1"))
	assert.False(t, lifecycle.IsRevisionEdge("S4", "H-DES-1"))

	for _, e := range lifecycle.Edges() {
		rev := lifecycle.NextRevision(3, e.From, e.To)
		if lifecycle.IsRevisionEdge(e.From, e.To) {
			assert.Equal(t, 4, rev, e.String())
		} else {
			assert.Equal(t, 3, rev, e.String())
		}
	}
}

func TestGateCriteriaCatalog(t *testing.T) {
	gates := lifecycle.GateCriteria("S3", "S4")
	require.Len(t, gates, 3)
	assert.Equal(t, "pricing_estimated", gates[2].ID)
	assert.False(t, gates[2].Required)

	assert.Empty(t, lifecycle.GateCriteria("S1", "S4"))

	sat := map[string]bool{"priority_set": true, "tech_assessed": true}
	assert.True(t, lifecycle.AllRequiredGatesSatisfied("S3", "S4", sat))
	sat["tech_assessed"] = false
	assert.Equal(t, []string{"tech_assessed"}, lifecycle.UnmetGates("S3", "S4", sat))
}

func TestPhaseFieldsCatalog(t *testing.T) {
	fields := lifecycle.PhaseFields("S2", "S3")
	require.Len(t, fields, 2)
	assert.Equal(t, lifecycle.FieldSelect, fields[1].Type)
	assert.Contains(t, fields[1].Options, "Expert Review")

	fields[1].Options[0] = "mutated"
	assert.Equal(t, "Field Visit", lifecycle.PhaseFields("S2", "S3")[1].Options[0])

	assert.Empty(t, lifecycle.PhaseFields("S4", "S1"))
	assert.Equal(t, []string{"reviewer_name"}, lifecycle.MissingPhaseFields("S1", "S2", map[string]string{"reviewer_name": "   "}))
	assert.True(t, lifecycle.AllRequiredPhaseFieldsFilled("H-DOE-4", "H-DOE-5", nil))
}

func fullInput(from, to string) lifecycle.AdvanceInput {
	in := lifecycle.AdvanceInput{To: to, Notes: "ok", Gates: map[string]bool{}, PhaseData: map[string]string{}}
	for _, g := range lifecycle.GateCriteria(from, to) {
		in.Gates[g.ID] = true
	}
	for _, f := range lifecycle.PhaseFields(from, to) {
		in.PhaseData[f.ID] = "value"
	}
	return in
}

func pathFor(from, to string) lifecycle.Path {
	if from != "S4" {
		return lifecycle.PathUnset
	}
	if to == "H-INT-1" {
		return lifecycle.PathInternal
	}
	return lifecycle.PathDesignathon
}

func TestCheckAdvanceBoundaryPerRequiredItem(t *testing.T) {
	for _, e := range lifecycle.Edges() {
		path := pathFor(e.From, e.To)
		require.NoError(t, lifecycle.CheckAdvance(e.From, path, fullInput(e.From, e.To)), e.String())

		for _, g := range lifecycle.GateCriteria(e.From, e.To) {
			in := fullInput(e.From, e.To)
			in.Gates[g.ID] = false
			err := lifecycle.CheckAdvance(e.From, path, in)
			if !g.Required {
				assert.NoError(t, err, "%s optional gate %s", e, g.ID)
				continue
			}
			assert.True(t, lifecycle.IsKind(err, lifecycle.KindGateCriteriaNotMet), "%s gate %s: %v", e, g.ID, err)
		}
		for _, f := range lifecycle.PhaseFields(e.From, e.To) {
			in := fullInput(e.From, e.To)
			delete(in.PhaseData, f.ID)
			err := lifecycle.CheckAdvance(e.From, path, in)
			if !f.Required {
				assert.NoError(t, err, "%s optional field %s", e, f.ID)
				continue
			}
			assert.True(t, lifecycle.IsKind(err, lifecycle.KindMissingPhaseData), "%s field %s: %v", e, f.ID, err)
		}
	}
}

func TestCheckAdvanceOrder(t *testing.T) {
	in := lifecycle.AdvanceInput{To: "S3"}
	err := lifecycle.CheckAdvance("S1", lifecycle.PathUnset, in)
	assert.Equal(t, lifecycle.KindInvalidTransition, lifecycle.KindOf(err))

	in.To = "S2"
	err = lifecycle.CheckAdvance("S1", lifecycle.PathUnset, in)
	var le *lifecycle.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lifecycle.KindGateCriteriaNotMet, le.Kind)
	assert.Equal(t, []string{"title_complete", "source_identified", "description_present"}, le.Detail)

	in = fullInput("S1", "S2")
	delete(in.PhaseData, "reviewer_name")
	in.Notes = ""
	err = lifecycle.CheckAdvance("S1", lifecycle.PathUnset, in)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lifecycle.KindMissingPhaseData, le.Kind)
	assert.Equal(t, []string{"reviewer_name"}, le.Detail)
}

func TestCheckAdvanceBlankNotesIsStable(t *testing.T) {
	for _, notes := range []string{"", "   ", "\n\t"} {
		in := fullInput("S1", "S2")
		in.Notes = notes
		for i := 0; i < 3; i++ {
			err := lifecycle.CheckAdvance("S1", lifecycle.PathUnset, in)
			assert.Equal(t, lifecycle.KindMissingPhaseNotes, lifecycle.KindOf(err))
		}
	}
}

func TestCheckAdvanceS4NeedsPath(t *testing.T) {
	in := fullInput("S4", "H-INT-1")
	err := lifecycle.CheckAdvance("S4", lifecycle.PathUnset, in)
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidTransition))
	assert.Contains(t, err.Error(), "assign a path")

	err = lifecycle.CheckAdvance("S4", lifecycle.PathDesignathon, in)
	assert.True(t, lifecycle.IsKind(err, lifecycle.KindInvalidTransition))

	assert.NoError(t, lifecycle.CheckAdvance("S4", lifecycle.PathInternal, in))
}

func TestCheckAssignPath(t *testing.T) {
	assert.NoError(t, lifecycle.CheckAssignPath("S4", lifecycle.PathUnset, lifecycle.PathInternal, "in-house team"))
	assert.True(t, lifecycle.IsKind(
		lifecycle.CheckAssignPath("S4", lifecycle.PathInternal, lifecycle.PathDesignathon, "x"),
		lifecycle.KindPathAlreadyAssigned))
	assert.True(t, lifecycle.IsKind(
		lifecycle.CheckAssignPath("S3", lifecycle.PathUnset, lifecycle.PathInternal, "x"),
		lifecycle.KindInvalidTransition))
	assert.True(t, lifecycle.IsKind(
		lifecycle.CheckAssignPath("S4", lifecycle.PathUnset, lifecycle.Path("EXTERNAL"), "x"),
		lifecycle.KindInvalidInput))
	assert.True(t, lifecycle.IsKind(
		lifecycle.CheckAssignPath("S4", lifecycle.PathUnset, lifecycle.PathInternal, "  "),
		lifecycle.KindInvalidInput))
}

func TestAgingThresholds(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	cases := []struct {
		state     string
		threshold int
	}{
		{"S1", 14}, {"S4", 14}, {"H-INT-2", 60}, {"H-DES-3", 90}, {"H-DOE-2", 45}, {"X-1", 30},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.threshold, lifecycle.ThresholdDays(tc.state), tc.state)

		limit := time.Duration(tc.threshold) * day
		atLimit := lifecycle.IsAging(tc.state, now.Add(-limit), now)
		assert.False(t, atLimit.Aging, "%s exactly at limit", tc.state)
		assert.Equal(t, tc.threshold, atLimit.DaysInPhase)

		justOver := lifecycle.IsAging(tc.state, now.Add(-limit-time.Minute), now)
		assert.True(t, justOver.Aging, "%s just over limit", tc.state)
		assert.Equal(t, 0, justOver.OverdueBy)

		late := lifecycle.IsAging(tc.state, now.Add(-limit-5*day), now)
		assert.True(t, late.Aging)
		assert.Equal(t, 5, late.OverdueBy)
		assert.Equal(t, tc.threshold, late.Threshold)
	}
}

func TestAgingTerminalNeverAges(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	res := lifecycle.IsAging("H-DOE-5", now.Add(-1000*24*time.Hour), now)
	assert.False(t, res.Aging)
	assert.Equal(t, 0, res.OverdueBy)
	assert.Equal(t, 1000, res.DaysInPhase)
}

func TestAgingFutureReference(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	res := lifecycle.IsAging("S1", now.Add(time.Hour), now)
	assert.False(t, res.Aging)
	assert.Equal(t, 0, res.DaysInPhase)
}
