package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the engine.
const (
	RequirementCreated      = "requirement.created"
	RequirementAdvanced     = "requirement.advanced"
	RequirementRevised      = "requirement.revised"
	RequirementPathAssigned = "requirement.path_assigned"
	CommitteeReviewAdded    = "committee.review.added"
)

// Types lists every event type, in emission order of a typical lifecycle.
func Types() []string {
	return []string{RequirementCreated, RequirementAdvanced, RequirementRevised, RequirementPathAssigned, CommitteeReviewAdded}
}

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes an event row inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
