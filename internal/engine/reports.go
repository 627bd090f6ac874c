package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stride/internal/domain"
	"stride/internal/lifecycle"
)

type AgingEntry struct {
	Requirement domain.Requirement `json:"requirement"`
	EnteredAt   string             `json:"entered_at" format:"date-time"`
	lifecycle.AgingResult
}

// AgingReport lists requirements that have overstayed their phase
// threshold, most overdue first.
func (e Engine) AgingReport(ctx context.Context, now time.Time) ([]AgingEntry, error) {
	entries, err := e.Repo.ListStateEntries(ctx, lifecycle.HDoe5)
	if err != nil {
		return nil, e.storageFailure("list state entries", err)
	}
	res := []AgingEntry{}
	for _, en := range entries {
		ref, err := time.Parse(time.RFC3339, en.EnteredAt)
		if err != nil {
			return nil, e.storageFailure("parse timestamp", fmt.Errorf("requirement %s: %w", en.Requirement.ID, err))
		}
		ag := lifecycle.IsAging(en.Requirement.CurrentState, ref, now)
		if !ag.Aging {
			continue
		}
		res = append(res, AgingEntry{Requirement: en.Requirement, EnteredAt: en.EnteredAt, AgingResult: ag})
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].OverdueBy != res[j].OverdueBy {
			return res[i].OverdueBy > res[j].OverdueBy
		}
		return res[i].Requirement.ID < res[j].Requirement.ID
	})
	return res, nil
}

// PipelineCounts is the dashboard breakdown of requirements.
type PipelineCounts struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
	ByPhase map[string]int `json:"by_phase"`
	Aging   int            `json:"aging"`
}

func (e Engine) Counts(ctx context.Context, now time.Time) (PipelineCounts, error) {
	byState, err := e.Repo.CountRequirementsByState(ctx)
	if err != nil {
		return PipelineCounts{}, e.storageFailure("count requirements", err)
	}
	counts := PipelineCounts{ByState: map[string]int{}, ByPhase: map[string]int{}}
	for _, s := range lifecycle.States() {
		counts.ByState[s.ID] = byState[s.ID]
	}
	for _, p := range lifecycle.Phases() {
		counts.ByPhase[string(p)] = 0
	}
	for state, n := range byState {
		counts.Total += n
		if phase := lifecycle.PhaseOf(state); phase != "" {
			counts.ByPhase[string(phase)] += n
		}
	}
	aging, err := e.AgingReport(ctx, now)
	if err != nil {
		return PipelineCounts{}, err
	}
	counts.Aging = len(aging)
	return counts, nil
}

// Detail is a requirement with its permitted next states and aging status.
type Detail struct {
	Requirement domain.Requirement    `json:"requirement"`
	NextStates  []lifecycle.StateInfo `json:"next_states"`
	EnteredAt   string                `json:"entered_at" format:"date-time"`
	Aging       lifecycle.AgingResult `json:"aging"`
}

func (e Engine) Describe(ctx context.Context, id string, now time.Time) (Detail, error) {
	next, err := e.NextStates(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	history, err := e.History(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	req, err := e.GetRequirement(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	entered := req.CreatedAt
	if len(history) > 0 {
		entered = history[len(history)-1].CreatedAt
	}
	ref, err := time.Parse(time.RFC3339, entered)
	if err != nil {
		return Detail{}, e.storageFailure("parse timestamp", err)
	}
	return Detail{
		Requirement: req,
		NextStates:  next,
		EnteredAt:   entered,
		Aging:       lifecycle.IsAging(req.CurrentState, ref, now),
	}, nil
}
