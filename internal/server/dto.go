package server

import (
	"encoding/json"

	"stride/internal/domain"
	"stride/internal/engine"
	"stride/internal/lifecycle"
)

// Request payloads

type CreateRequirementRequest struct {
	Title           string   `json:"title" minLength:"1"`
	Description     string   `json:"description,omitempty"`
	SourceType      string   `json:"source_type" enum:"CDC,SEN,BLIND,ELDERLY,BUDS,OTHER"`
	Priority        string   `json:"priority,omitempty" enum:"P1,P2,P3"`
	TechLevel       string   `json:"tech_level,omitempty" enum:"LOW,MEDIUM,HIGH"`
	TherapyDomains  []string `json:"therapy_domains,omitempty"`
	DisabilityTypes []string `json:"disability_types,omitempty"`
	GapFlags        []string `json:"gap_flags,omitempty"`
	MarketPrice     *float64 `json:"market_price,omitempty"`
	TargetPrice     *float64 `json:"target_price,omitempty"`
}

func (r CreateRequirementRequest) input() engine.RequirementInput {
	return engine.RequirementInput{
		Title:           r.Title,
		Description:     r.Description,
		SourceType:      r.SourceType,
		Priority:        r.Priority,
		TechLevel:       r.TechLevel,
		TherapyDomains:  r.TherapyDomains,
		DisabilityTypes: r.DisabilityTypes,
		GapFlags:        r.GapFlags,
		MarketPrice:     r.MarketPrice,
		TargetPrice:     r.TargetPrice,
	}
}

type AdvanceRequest struct {
	To               string            `json:"to" example:"S2"`
	Notes            string            `json:"notes,omitempty"`
	BlockersResolved []string          `json:"blockers_resolved,omitempty"`
	KeyDecisions     []string          `json:"key_decisions,omitempty"`
	Gates            map[string]bool   `json:"gates,omitempty"`
	PhaseData        map[string]string `json:"phase_data,omitempty"`
}

func (r AdvanceRequest) input() lifecycle.AdvanceInput {
	return lifecycle.AdvanceInput{
		To:               r.To,
		Notes:            r.Notes,
		BlockersResolved: r.BlockersResolved,
		KeyDecisions:     r.KeyDecisions,
		Gates:            r.Gates,
		PhaseData:        r.PhaseData,
	}
}

type AssignPathRequest struct {
	Path          string `json:"path" example:"INTERNAL" doc:"INTERNAL or DESIGNATHON"`
	Justification string `json:"justification,omitempty"`
}

type CreateReviewRequest struct {
	UserNeed             int    `json:"user_need_score"`
	TechnicalFeasibility int    `json:"technical_feasibility_score"`
	DoEResults           int    `json:"doe_results_score"`
	CostEffectiveness    int    `json:"cost_effectiveness_score"`
	Safety               int    `json:"safety_score"`
	Recommendation       string `json:"recommendation" enum:"APPROVE,REVISE,REJECT"`
	Feedback             string `json:"feedback,omitempty"`
	Conditions           string `json:"conditions,omitempty"`
}

func (r CreateReviewRequest) input() engine.ReviewInput {
	return engine.ReviewInput{
		UserNeed:             r.UserNeed,
		TechnicalFeasibility: r.TechnicalFeasibility,
		DoEResults:           r.DoEResults,
		CostEffectiveness:    r.CostEffectiveness,
		Safety:               r.Safety,
		Recommendation:       r.Recommendation,
		Feedback:             r.Feedback,
		Conditions:           r.Conditions,
	}
}

type RoleChangeRequest struct {
	ActorID string `json:"actor_id"`
	RoleID  string `json:"role_id"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Response payloads

type RequirementPage struct {
	Items      []domain.Requirement `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type EdgeResponse struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Revision bool   `json:"revision"`
}

type StatesResponse struct {
	States []lifecycle.StateInfo `json:"states"`
	Edges  []EdgeResponse        `json:"edges"`
	Enums  map[string][]string   `json:"enums"`
}

type CatalogResponse struct {
	From   string                `json:"from"`
	To     string                `json:"to"`
	Gates  []lifecycle.Criterion `json:"gates"`
	Fields []lifecycle.Field     `json:"fields"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type WhoAmIResponse struct {
	ActorID        string   `json:"actor_id"`
	Source         string   `json:"source"`
	Roles          []string `json:"roles"`
	Permissions    []string `json:"permissions"`
	CanAttestGates bool     `json:"can_attest_gates"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type APIKeyResponse struct {
	ID      string `json:"id"`
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Key     string `json:"key"`
}

func eventResponse(evt domain.Event) EventResponse {
	res := EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
	}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &res.Payload)
	}
	return res
}

func nonNilSlice(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
