package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"stride/internal/config"
	"stride/internal/domain"
	"stride/internal/engine/auth"
	"stride/internal/events"
	"stride/internal/lifecycle"
	"stride/internal/repo"
)

// Advance moves a requirement along one edge of the pipeline. The feedback
// record, the transition record and the requirement update commit together
// or not at all.
func (e Engine) Advance(ctx context.Context, id string, actor domain.Actor, in lifecycle.AdvanceInput) (domain.Requirement, error) {
	if err := requireActor(actor); err != nil {
		return domain.Requirement{}, err
	}
	if err := e.checkAttestation(ctx, actor, in.Gates); err != nil {
		return domain.Requirement{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Requirement{}, e.storageFailure("begin", err)
	}
	defer tx.Rollback()

	req, err := e.Repo.GetRequirementTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Requirement{}, notFound(id)
	}
	if err != nil {
		return domain.Requirement{}, e.storageFailure("get requirement", err)
	}
	from := req.CurrentState
	if err := lifecycle.CheckAdvance(from, lifecycle.Path(req.PathAssignment), in); err != nil {
		e.Logger.Debug().Err(err).Str("requirement_id", id).Str("from", from).Str("to", in.To).Msg("advance rejected")
		return domain.Requirement{}, err
	}

	now := e.stamp()
	fb := domain.PhaseFeedback{
		ID:               uuid.NewString(),
		RequirementID:    req.ID,
		FromState:        from,
		ToState:          in.To,
		PhaseNotes:       in.Notes,
		BlockersResolved: nonNil(in.BlockersResolved),
		KeyDecisions:     nonNil(in.KeyDecisions),
		GatesChecked:     in.Gates,
		PhaseData:        in.PhaseData,
		SubmittedBy:      actor.ID,
		CreatedAt:        now,
	}
	if err := e.Repo.InsertFeedbackTx(ctx, tx, fb); err != nil {
		return domain.Requirement{}, e.storageFailure("insert feedback", err)
	}
	if _, err := e.Repo.InsertTransitionTx(ctx, tx, domain.StateTransition{
		RequirementID: req.ID,
		FromState:     from,
		ToState:       in.To,
		Note:          in.Notes,
		ActorID:       actor.ID,
		CreatedAt:     now,
	}); err != nil {
		return domain.Requirement{}, e.storageFailure("insert transition", err)
	}

	version := req.Version
	req.CurrentState = in.To
	req.RevisionNumber = lifecycle.NextRevision(req.RevisionNumber, from, in.To)
	req.UpdatedAt = now
	if err := e.Repo.UpdateRequirementTx(ctx, tx, req, version); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.Requirement{}, lifecycle.Errorf(lifecycle.KindConcurrentUpdate, "requirement %s was modified concurrently", id)
		}
		return domain.Requirement{}, e.storageFailure("update requirement", err)
	}
	req.Version = version + 1

	evtType := events.RequirementAdvanced
	if lifecycle.IsRevisionEdge(from, in.To) {
		evtType = events.RequirementRevised
	}
	if err := e.events().Append(ctx, tx, evtType, "requirement", req.ID, actor.ID, events.EventPayload{
		"from":            from,
		"to":              in.To,
		"revision_number": req.RevisionNumber,
		"feedback_id":     fb.ID,
	}); err != nil {
		return domain.Requirement{}, e.storageFailure("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Requirement{}, e.storageFailure("commit", err)
	}
	e.Logger.Info().Str("requirement_id", req.ID).Str("from", from).Str("to", in.To).
		Int("revision", req.RevisionNumber).Str("actor", actor.ID).Msg("requirement advanced")
	return req, nil
}

// checkAttestation rejects actors that assert gate criteria without the
// attestor capability. Runs before the transaction opens.
func (e Engine) checkAttestation(ctx context.Context, actor domain.Actor, gates map[string]bool) error {
	if e.Attestor == nil || !attestsAny(gates) {
		return nil
	}
	ok, err := e.Attestor.CanAttestGates(ctx, actor)
	if err != nil {
		return e.storageFailure("check gate attestor", err)
	}
	if !ok {
		return auth.ForbiddenError{Permission: config.PermGateAttest}
	}
	return nil
}

func attestsAny(gates map[string]bool) bool {
	for _, v := range gates {
		if v {
			return true
		}
	}
	return false
}

// AssignPath records the one-time branch decision at S4.
func (e Engine) AssignPath(ctx context.Context, id string, actor domain.Actor, path lifecycle.Path, justification string) (domain.Requirement, error) {
	if err := requireActor(actor); err != nil {
		return domain.Requirement{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Requirement{}, e.storageFailure("begin", err)
	}
	defer tx.Rollback()

	req, err := e.Repo.GetRequirementTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Requirement{}, notFound(id)
	}
	if err != nil {
		return domain.Requirement{}, e.storageFailure("get requirement", err)
	}
	if err := lifecycle.CheckAssignPath(req.CurrentState, lifecycle.Path(req.PathAssignment), path, justification); err != nil {
		return domain.Requirement{}, err
	}

	version := req.Version
	req.PathAssignment = string(path)
	req.PathJustification = justification
	req.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateRequirementTx(ctx, tx, req, version); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.Requirement{}, lifecycle.Errorf(lifecycle.KindConcurrentUpdate, "requirement %s was modified concurrently", id)
		}
		return domain.Requirement{}, e.storageFailure("update requirement", err)
	}
	req.Version = version + 1
	if err := e.events().Append(ctx, tx, events.RequirementPathAssigned, "requirement", req.ID, actor.ID, events.EventPayload{
		"path":          req.PathAssignment,
		"justification": justification,
	}); err != nil {
		return domain.Requirement{}, e.storageFailure("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Requirement{}, e.storageFailure("commit", err)
	}
	e.Logger.Info().Str("requirement_id", req.ID).Str("path", req.PathAssignment).Str("actor", actor.ID).Msg("path assigned")
	return req, nil
}
