package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stride/internal/config"
	"stride/internal/domain"
	"stride/internal/engine/auth"
	"stride/internal/events"
	"stride/internal/lifecycle"
	"stride/internal/logging"
	"stride/internal/repo"
)

// GateAttestor decides whether an actor may assert gate criteria.
type GateAttestor interface {
	CanAttestGates(ctx context.Context, actor domain.Actor) (bool, error)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Attestor GateAttestor
	Logger   zerolog.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Config:   cfg,
		Attestor: auth.Service{DB: db, Config: cfg},
		Logger:   logging.Nop(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// storageFailure logs and wraps a collaborator error.
func (e Engine) storageFailure(op string, err error) error {
	var le *lifecycle.Error
	if errors.As(err, &le) {
		return err
	}
	e.Logger.Error().Err(err).Str("op", op).Msg("storage failure")
	return lifecycle.StorageError(op, err)
}

func notFound(id string) error {
	return lifecycle.Errorf(lifecycle.KindNotFound, "requirement %s not found", id)
}

func requireActor(actor domain.Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "actor id is required")
	}
	return nil
}

// RequirementInput are the user-supplied attributes of a new requirement.
type RequirementInput struct {
	Title           string
	Description     string
	SourceType      string
	Priority        string
	TechLevel       string
	TherapyDomains  []string
	DisabilityTypes []string
	GapFlags        []string
	MarketPrice     *float64
	TargetPrice     *float64
}

func (in *RequirementInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "title is required")
	}
	if !domain.OneOf(in.SourceType, domain.SourceTypes) {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "source type must be one of %s", strings.Join(domain.SourceTypes, ", "))
	}
	if in.Priority == "" {
		in.Priority = domain.DefaultPriority
	}
	if !domain.OneOf(in.Priority, domain.Priorities) {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "priority must be one of %s", strings.Join(domain.Priorities, ", "))
	}
	if in.TechLevel == "" {
		in.TechLevel = domain.DefaultTechLevel
	}
	if !domain.OneOf(in.TechLevel, domain.TechLevels) {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "tech level must be one of %s", strings.Join(domain.TechLevels, ", "))
	}
	lists := []struct {
		name    string
		values  []string
		allowed []string
	}{
		{"therapy domain", in.TherapyDomains, domain.TherapyDomains},
		{"disability type", in.DisabilityTypes, domain.DisabilityTypes},
		{"gap flag", in.GapFlags, domain.GapFlags},
	}
	for _, l := range lists {
		var bad []string
		for _, v := range l.values {
			if !domain.OneOf(v, l.allowed) {
				bad = append(bad, v)
			}
		}
		if len(bad) > 0 {
			return &lifecycle.Error{Kind: lifecycle.KindInvalidInput, Message: "unknown " + l.name, Detail: bad}
		}
	}
	if in.MarketPrice != nil && *in.MarketPrice < 0 {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "market price must be >= 0")
	}
	if in.TargetPrice != nil && *in.TargetPrice < 0 {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "target price must be >= 0")
	}
	return nil
}

// CreateRequirement stores a new requirement at the initial state together
// with its synthetic NEW transition.
func (e Engine) CreateRequirement(ctx context.Context, actor domain.Actor, in RequirementInput) (domain.Requirement, error) {
	if err := requireActor(actor); err != nil {
		return domain.Requirement{}, err
	}
	if err := in.normalize(); err != nil {
		return domain.Requirement{}, err
	}
	now := e.stamp()
	req := domain.Requirement{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     strings.TrimSpace(in.Description),
		SourceType:      in.SourceType,
		Priority:        in.Priority,
		TechLevel:       in.TechLevel,
		TherapyDomains:  nonNil(in.TherapyDomains),
		DisabilityTypes: nonNil(in.DisabilityTypes),
		GapFlags:        nonNil(in.GapFlags),
		MarketPrice:     in.MarketPrice,
		TargetPrice:     in.TargetPrice,
		CurrentState:    lifecycle.InitialState,
		RevisionNumber:  0,
		Version:         1,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Requirement{}, e.storageFailure("begin", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRequirementTx(ctx, tx, req); err != nil {
		return domain.Requirement{}, e.storageFailure("insert requirement", err)
	}
	if _, err := e.Repo.InsertTransitionTx(ctx, tx, domain.StateTransition{
		RequirementID: req.ID,
		FromState:     lifecycle.StateNew,
		ToState:       req.CurrentState,
		Note:          "Requirement created",
		ActorID:       actor.ID,
		CreatedAt:     now,
	}); err != nil {
		return domain.Requirement{}, e.storageFailure("insert transition", err)
	}
	if err := e.events().Append(ctx, tx, events.RequirementCreated, "requirement", req.ID, actor.ID, events.EventPayload{
		"title":       req.Title,
		"source_type": req.SourceType,
		"priority":    req.Priority,
		"state":       req.CurrentState,
	}); err != nil {
		return domain.Requirement{}, e.storageFailure("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Requirement{}, e.storageFailure("commit", err)
	}
	e.Logger.Info().Str("requirement_id", req.ID).Str("actor", actor.ID).Msg("requirement created")
	return req, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (e Engine) GetRequirement(ctx context.Context, id string) (domain.Requirement, error) {
	req, err := e.Repo.GetRequirement(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Requirement{}, notFound(id)
	}
	if err != nil {
		return domain.Requirement{}, e.storageFailure("get requirement", err)
	}
	return req, nil
}

// ListOptions filter requirement listings. Phase expands to every state of
// that phase; State wins when both are set.
type ListOptions struct {
	State    string
	Phase    string
	Priority string
	Path     string
	Limit    int
	Cursor   string
}

// ListRequirements returns one page of requirements, newest first, and the
// cursor for the next page ("" when exhausted).
func (e Engine) ListRequirements(ctx context.Context, opts ListOptions) ([]domain.Requirement, string, error) {
	f := repo.RequirementFilters{Priority: opts.Priority, Path: opts.Path}
	switch {
	case opts.State != "":
		if !lifecycle.IsKnown(opts.State) {
			return nil, "", lifecycle.Errorf(lifecycle.KindInvalidInput, "unknown state %q", opts.State)
		}
		f.States = []string{opts.State}
	case opts.Phase != "":
		for _, s := range lifecycle.States() {
			if string(s.Phase) == opts.Phase {
				f.States = append(f.States, s.ID)
			}
		}
		if len(f.States) == 0 {
			return nil, "", lifecycle.Errorf(lifecycle.KindInvalidInput, "unknown phase %q", opts.Phase)
		}
	}
	if opts.Cursor != "" {
		createdAt, id, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, "", lifecycle.Errorf(lifecycle.KindInvalidInput, "invalid cursor")
		}
		f.CursorCreatedAt, f.CursorID = createdAt, id
	}
	limit := opts.Limit
	if limit > 0 {
		f.Limit = limit + 1
	}
	items, err := e.Repo.ListRequirements(ctx, f)
	if err != nil {
		return nil, "", e.storageFailure("list requirements", err)
	}
	next := ""
	if limit > 0 && len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return items, next, nil
}

// History returns the ordered transition log of a requirement.
func (e Engine) History(ctx context.Context, id string) ([]domain.StateTransition, error) {
	if _, err := e.GetRequirement(ctx, id); err != nil {
		return nil, err
	}
	items, err := e.Repo.ListTransitions(ctx, id)
	if err != nil {
		return nil, e.storageFailure("list transitions", err)
	}
	return items, nil
}

// Feedback returns the phase feedback recorded for a requirement.
func (e Engine) Feedback(ctx context.Context, id string) ([]domain.PhaseFeedback, error) {
	if _, err := e.GetRequirement(ctx, id); err != nil {
		return nil, err
	}
	items, err := e.Repo.ListFeedback(ctx, id)
	if err != nil {
		return nil, e.storageFailure("list feedback", err)
	}
	return items, nil
}

// NextStates returns the states the requirement may move to right now.
func (e Engine) NextStates(ctx context.Context, id string) ([]lifecycle.StateInfo, error) {
	req, err := e.GetRequirement(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := lifecycle.NextStates(req.CurrentState, lifecycle.Path(req.PathAssignment))
	res := make([]lifecycle.StateInfo, 0, len(ids))
	for _, s := range ids {
		info, _ := lifecycle.Lookup(s)
		res = append(res, info)
	}
	return res, nil
}

func encodeCursor(createdAt, id string) string {
	return fmt.Sprintf("%s|%s", createdAt, id)
}

func decodeCursor(cursor string) (string, string, error) {
	createdAt, id, ok := strings.Cut(cursor, "|")
	if !ok || createdAt == "" || id == "" {
		return "", "", errors.New("invalid cursor")
	}
	return createdAt, id, nil
}
