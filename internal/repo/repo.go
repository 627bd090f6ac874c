package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stride/internal/config"
	"stride/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a version-checked update matched no row.
	ErrConflict = errors.New("version conflict")
)

type rowScanner interface {
	Scan(dest ...any) error
}

const requirementColumns = `id,title,COALESCE(description,''),source_type,priority,tech_level,
therapy_domains_json,disability_types_json,gap_flags_json,market_price,target_price,
current_state,COALESCE(path_assignment,''),COALESCE(path_justification,''),revision_number,version,
COALESCE(created_by,''),created_at,updated_at`

func scanRequirement(s rowScanner) (domain.Requirement, error) {
	var (
		req                        domain.Requirement
		therapy, disability, flags string
		market, target             sql.NullFloat64
	)
	err := s.Scan(&req.ID, &req.Title, &req.Description, &req.SourceType, &req.Priority, &req.TechLevel,
		&therapy, &disability, &flags, &market, &target,
		&req.CurrentState, &req.PathAssignment, &req.PathJustification, &req.RevisionNumber, &req.Version,
		&req.CreatedBy, &req.CreatedAt, &req.UpdatedAt)
	if err == sql.ErrNoRows {
		return req, ErrNotFound
	}
	if err != nil {
		return req, err
	}
	if req.TherapyDomains, err = decodeList(therapy); err != nil {
		return req, err
	}
	if req.DisabilityTypes, err = decodeList(disability); err != nil {
		return req, err
	}
	if req.GapFlags, err = decodeList(flags); err != nil {
		return req, err
	}
	if market.Valid {
		req.MarketPrice = &market.Float64
	}
	if target.Valid {
		req.TargetPrice = &target.Float64
	}
	return req, nil
}

func (r Repo) InsertRequirementTx(ctx context.Context, tx *sql.Tx, req domain.Requirement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO requirements(id,title,description,source_type,priority,tech_level,
therapy_domains_json,disability_types_json,gap_flags_json,market_price,target_price,
current_state,path_assignment,path_justification,revision_number,version,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		req.ID, req.Title, nullable(req.Description), req.SourceType, req.Priority, req.TechLevel,
		encodeList(req.TherapyDomains), encodeList(req.DisabilityTypes), encodeList(req.GapFlags),
		nullableFloatPtr(req.MarketPrice), nullableFloatPtr(req.TargetPrice),
		req.CurrentState, nullable(req.PathAssignment), nullable(req.PathJustification), req.RevisionNumber, req.Version,
		nullable(req.CreatedBy), req.CreatedAt, req.UpdatedAt)
	return err
}

func (r Repo) GetRequirement(ctx context.Context, id string) (domain.Requirement, error) {
	return scanRequirement(r.DB.QueryRowContext(ctx, `SELECT `+requirementColumns+` FROM requirements WHERE id=?`, id))
}

func (r Repo) GetRequirementTx(ctx context.Context, tx *sql.Tx, id string) (domain.Requirement, error) {
	return scanRequirement(tx.QueryRowContext(ctx, `SELECT `+requirementColumns+` FROM requirements WHERE id=?`, id))
}

// UpdateRequirementTx writes the mutable lifecycle columns of req if the row
// is still at expectedVersion, bumping the version by one.
func (r Repo) UpdateRequirementTx(ctx context.Context, tx *sql.Tx, req domain.Requirement, expectedVersion int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE requirements
SET current_state=?, path_assignment=?, path_justification=?, revision_number=?, version=?, updated_at=?
WHERE id=? AND version=?`,
		req.CurrentState, nullable(req.PathAssignment), nullable(req.PathJustification), req.RevisionNumber,
		expectedVersion+1, req.UpdatedAt, req.ID, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

type RequirementFilters struct {
	States          []string
	Priority        string
	Path            string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListRequirements returns requirements newest first.
func (r Repo) ListRequirements(ctx context.Context, f RequirementFilters) ([]domain.Requirement, error) {
	clauses := []string{"1=1"}
	var args []any
	if len(f.States) > 0 {
		clauses = append(clauses, "current_state IN ("+placeholders(len(f.States))+")")
		for _, s := range f.States {
			args = append(args, s)
		}
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.Path != "" {
		clauses = append(clauses, "path_assignment=?")
		args = append(args, f.Path)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Requirement
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

// StateEntry pairs a requirement with the time it entered its current state.
type StateEntry struct {
	Requirement domain.Requirement
	EnteredAt   string
}

// ListStateEntries returns every requirement not in excludeState together
// with the timestamp of its latest transition, or its creation time.
func (r Repo) ListStateEntries(ctx context.Context, excludeState string) ([]StateEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+requirementColumns+`,
COALESCE((SELECT MAX(t.created_at) FROM state_transitions t WHERE t.requirement_id=requirements.id), created_at)
FROM requirements WHERE current_state<>? ORDER BY created_at, id`, excludeState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StateEntry
	for rows.Next() {
		var entered string
		req, err := scanRequirement(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &entered)...)
		}))
		if err != nil {
			return nil, err
		}
		res = append(res, StateEntry{Requirement: req, EnteredAt: entered})
	}
	return res, rows.Err()
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// CountRequirementsByState returns the number of requirements per state.
func (r Repo) CountRequirementsByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT current_state, COUNT(*) FROM requirements GROUP BY current_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		res[state] = n
	}
	return res, rows.Err()
}

func (r Repo) InsertTransitionTx(ctx context.Context, tx *sql.Tx, t domain.StateTransition) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO state_transitions(requirement_id,from_state,to_state,note,actor_id,created_at) VALUES (?,?,?,?,?,?)`,
		t.RequirementID, t.FromState, t.ToState, nullable(t.Note), t.ActorID, t.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListTransitions returns the transition history of a requirement, oldest first.
func (r Repo) ListTransitions(ctx context.Context, requirementID string) ([]domain.StateTransition, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,requirement_id,from_state,to_state,COALESCE(note,''),actor_id,created_at
FROM state_transitions WHERE requirement_id=? ORDER BY created_at, id`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StateTransition
	for rows.Next() {
		var t domain.StateTransition
		if err := rows.Scan(&t.ID, &t.RequirementID, &t.FromState, &t.ToState, &t.Note, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertFeedbackTx(ctx context.Context, tx *sql.Tx, fb domain.PhaseFeedback) error {
	gates, err := encodeMap(fb.GatesChecked)
	if err != nil {
		return err
	}
	data, err := encodeMap(fb.PhaseData)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO phase_feedbacks(id,requirement_id,from_state,to_state,phase_notes,blockers_resolved_json,key_decisions_json,gates_checked_json,phase_data_json,submitted_by,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		fb.ID, fb.RequirementID, fb.FromState, fb.ToState, fb.PhaseNotes, encodeList(fb.BlockersResolved), encodeList(fb.KeyDecisions),
		gates, data, fb.SubmittedBy, fb.CreatedAt)
	return err
}

// ListFeedback returns phase feedback for a requirement, oldest first.
func (r Repo) ListFeedback(ctx context.Context, requirementID string) ([]domain.PhaseFeedback, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,requirement_id,from_state,to_state,phase_notes,blockers_resolved_json,key_decisions_json,
COALESCE(gates_checked_json,''),COALESCE(phase_data_json,''),submitted_by,created_at
FROM phase_feedbacks WHERE requirement_id=? ORDER BY created_at, rowid`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PhaseFeedback
	for rows.Next() {
		var (
			fb                  domain.PhaseFeedback
			blockers, decisions string
			gates, data         string
		)
		if err := rows.Scan(&fb.ID, &fb.RequirementID, &fb.FromState, &fb.ToState, &fb.PhaseNotes, &blockers, &decisions,
			&gates, &data, &fb.SubmittedBy, &fb.CreatedAt); err != nil {
			return nil, err
		}
		if fb.BlockersResolved, err = decodeList(blockers); err != nil {
			return nil, err
		}
		if fb.KeyDecisions, err = decodeList(decisions); err != nil {
			return nil, err
		}
		if gates != "" {
			if err := json.Unmarshal([]byte(gates), &fb.GatesChecked); err != nil {
				return nil, fmt.Errorf("decode gates_checked: %w", err)
			}
		}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &fb.PhaseData); err != nil {
				return nil, fmt.Errorf("decode phase_data: %w", err)
			}
		}
		res = append(res, fb)
	}
	return res, rows.Err()
}

func (r Repo) UpsertOrgConfig(ctx context.Context, orgID string, cfg *config.Config) error {
	return upsertOrgConfig(ctx, r.DB, nil, orgID, cfg)
}

func (r Repo) UpsertOrgConfigTx(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	return upsertOrgConfig(ctx, nil, tx, orgID, cfg)
}

func upsertOrgConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, orgID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Org.ID = orgID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO org_configs(org_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(org_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, orgID, string(payload), now, now)
	return err
}

func (r Repo) GetOrgConfig(ctx context.Context, orgID string) (*config.Config, error) {
	return decodeConfig(r.DB.QueryRowContext(ctx, `SELECT config_json FROM org_configs WHERE org_id=?`, orgID))
}

// LatestOrgConfig returns the most recently written org config.
func (r Repo) LatestOrgConfig(ctx context.Context) (*config.Config, error) {
	return decodeConfig(r.DB.QueryRowContext(ctx, `SELECT config_json FROM org_configs ORDER BY updated_at DESC, org_id LIMIT 1`))
}

func decodeConfig(row *sql.Row) (*config.Config, error) {
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   string
	Limit      int
	// Before returns only events with an id lower than this cursor.
	Before int64
}

// LatestEvents returns events newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`,
		strings.Join(clauses, " AND "))
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func decodeList(s string) ([]string, error) {
	res := []string{}
	if s == "" {
		return res, nil
	}
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return res, nil
}

func encodeMap[V any](m map[string]V) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
