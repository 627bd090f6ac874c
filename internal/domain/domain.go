package domain

// Actor is the caller of an engine operation.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

type Requirement struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	SourceType        string   `json:"source_type" enum:"CDC,SEN,BLIND,ELDERLY,BUDS,OTHER"`
	Priority          string   `json:"priority" enum:"P1,P2,P3"`
	TechLevel         string   `json:"tech_level" enum:"LOW,MEDIUM,HIGH"`
	TherapyDomains    []string `json:"therapy_domains"`
	DisabilityTypes   []string `json:"disability_types"`
	GapFlags          []string `json:"gap_flags"`
	MarketPrice       *float64 `json:"market_price,omitempty"`
	TargetPrice       *float64 `json:"target_price,omitempty"`
	CurrentState      string   `json:"current_state"`
	PathAssignment    string   `json:"path_assignment,omitempty" enum:"INTERNAL,DESIGNATHON"`
	PathJustification string   `json:"path_justification,omitempty"`
	RevisionNumber    int      `json:"revision_number"`
	Version           int64    `json:"version"`
	CreatedBy         string   `json:"created_by,omitempty"`
	CreatedAt         string   `json:"created_at" format:"date-time"`
	UpdatedAt         string   `json:"updated_at" format:"date-time"`
}

// StateTransition is an immutable audit record of one hop.
type StateTransition struct {
	ID            int64  `json:"id"`
	RequirementID string `json:"requirement_id"`
	FromState     string `json:"from_state"`
	ToState       string `json:"to_state"`
	Note          string `json:"note,omitempty"`
	ActorID       string `json:"actor_id"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type PhaseFeedback struct {
	ID               string            `json:"id"`
	RequirementID    string            `json:"requirement_id"`
	FromState        string            `json:"from_state"`
	ToState          string            `json:"to_state"`
	PhaseNotes       string            `json:"phase_notes"`
	BlockersResolved []string          `json:"blockers_resolved"`
	KeyDecisions     []string          `json:"key_decisions"`
	GatesChecked     map[string]bool   `json:"gates_checked,omitempty"`
	PhaseData        map[string]string `json:"phase_data,omitempty"`
	SubmittedBy      string            `json:"submitted_by"`
	CreatedAt        string            `json:"created_at" format:"date-time"`
}

type CommitteeReview struct {
	ID                   string  `json:"id"`
	RequirementID        string  `json:"requirement_id"`
	ReviewerID           string  `json:"reviewer_id"`
	UserNeed             int     `json:"user_need_score"`
	TechnicalFeasibility int     `json:"technical_feasibility_score"`
	DoEResults           int     `json:"doe_results_score"`
	CostEffectiveness    int     `json:"cost_effectiveness_score"`
	Safety               int     `json:"safety_score"`
	WeightedTotal        float64 `json:"weighted_total"`
	Recommendation       string  `json:"recommendation" enum:"APPROVE,REVISE,REJECT"`
	Feedback             string  `json:"feedback,omitempty"`
	Conditions           string  `json:"conditions,omitempty"`
	CreatedAt            string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
