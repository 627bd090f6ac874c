package lifecycle

import "strings"

// Criterion is a manually attested precondition on an edge.
type Criterion struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// FieldType describes how a phase field is captured.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldLongText FieldType = "long-text"
	FieldSelect   FieldType = "select"
)

// Field is a structured data point captured with a transition.
type Field struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Options  []string  `json:"options,omitempty"`
	Required bool      `json:"required"`
}

var gateCriteria = map[Edge][]Criterion{
	{S1, S2}: {
		{"title_complete", "Device title is clearly defined", true},
		{"source_identified", "Source type identified", true},
		{"description_present", "Description provided", true},
	},
	{S2, S3}: {
		{"gaps_reviewed", "Gap flags reviewed and updated", true},
		{"disability_classified", "Disability types classified", true},
		{"therapy_mapped", "Therapy domains mapped", true},
	},
	{S3, S4}: {
		{"priority_set", "Priority level assigned (P1/P2/P3)", true},
		{"tech_assessed", "Tech level assessed", true},
		{"pricing_estimated", "Market/target pricing estimated", false},
	},
	{S4, HInt1}: {
		{"path_internal", "Path assigned: STRIDE Internal", true},
		{"designer_available", "Internal designer availability confirmed", true},
	},
	{S4, HDes1}: {
		{"path_designathon", "Path assigned: Designathon", true},
		{"challenge_brief", "Challenge brief prepared", true},
	},
	{HInt1, HInt2}: {
		{"design_complete", "Design files completed", true},
		{"material_selected", "Materials selected", true},
	},
	{HInt2, HDoe1}: {
		{"prototype_tested", "Prototype functionally tested", true},
		{"ready_for_doe", "Ready for Design of Experiments", true},
	},
	{HDes1, HDes2}: {{"challenge_published", "Challenge published to teams", true}},
	{HDes2, HDes3}: {{"teams_registered", "At least one team registered", true}},
	{HDes3, HDes4}: {{"submissions_received", "Submissions received", true}},
	{HDes4, HDes5}: {{"judging_complete", "All judges scored submissions", true}},
	{HDes5, HDes6}: {
		{"winner_notified", "Winner notified", true},
		{"handover_docs", "Handover documentation prepared", true},
	},
	{HDes6, HDoe1}: {{"prototype_received", "Prototype received from winner", true}},
	{HDoe1, HDoe2}: {
		{"doe_protocol", "DoE protocol followed", true},
		{"data_collected", "Pre/post test data collected", true},
	},
	{HDoe2, HDoe3}: {
		{"doe_report", "DoE report compiled", true},
		{"results_analyzed", "Results statistically analyzed", true},
	},
	{HDoe3, HDoe4}: {{"committee_reviewed", "All committee members reviewed", true}},
	{HDoe4, HDoe5}: {{"committee_approved", "Committee decision: APPROVED", true}},
	{HDoe4, HInt1}: {{"revision_reason", "Revision reason documented (Internal path)", true}},
	{HDoe4, HDes1}: {{"revision_reason_des", "Revision reason documented (Designathon path)", true}},
}

var phaseFields = map[Edge][]Field{
	{S1, S2}: {
		{ID: "reviewer_name", Label: "Reviewer Name", Type: FieldText, Required: true},
		{ID: "initial_assessment", Label: "Initial Assessment Notes", Type: FieldLongText},
	},
	{S2, S3}: {
		{ID: "gap_corrections", Label: "Gap Corrections Log", Type: FieldLongText, Required: true},
		{ID: "validation_method", Label: "Validation Method", Type: FieldSelect, Required: true,
			Options: []string{"Field Visit", "Expert Review", "Literature", "Stakeholder Interview"}},
	},
	{S3, S4}: {
		{ID: "prioritization_rationale", Label: "Prioritization Rationale", Type: FieldLongText, Required: true},
	},
	{S4, HInt1}: {
		{ID: "assigned_designer", Label: "Assigned Designer", Type: FieldText, Required: true},
		{ID: "estimated_timeline", Label: "Estimated Timeline (weeks)", Type: FieldText},
	},
	{S4, HDes1}: {
		{ID: "challenge_title", Label: "Challenge Title", Type: FieldText, Required: true},
		{ID: "target_audience", Label: "Target Participant Audience", Type: FieldText},
	},
	{HInt1, HInt2}: {
		{ID: "material_used", Label: "Primary Material Used", Type: FieldText, Required: true},
		{ID: "manufacturing_method", Label: "Manufacturing Method", Type: FieldSelect, Required: true,
			Options: []string{"3D Printing", "CNC", "Injection Molding", "Hand Assembly", "Other"}},
	},
	{HInt2, HDoe1}: {
		{ID: "prototype_id", Label: "Prototype ID / Version", Type: FieldText, Required: true},
	},
	{HDoe1, HDoe2}: {
		{ID: "sample_size", Label: "Sample Size", Type: FieldText, Required: true},
		{ID: "testing_duration", Label: "Testing Duration (days)", Type: FieldText, Required: true},
	},
	{HDoe2, HDoe3}: {
		{ID: "key_findings", Label: "Key Findings Summary", Type: FieldLongText, Required: true},
	},
	{HDoe4, HDoe5}: {
		{ID: "production_notes", Label: "Production Readiness Notes", Type: FieldLongText},
	},
	{HDoe4, HInt1}: {
		{ID: "revision_instructions", Label: "Revision Instructions", Type: FieldLongText, Required: true},
	},
	{HDoe4, HDes1}: {
		{ID: "revision_instructions", Label: "Revision Instructions", Type: FieldLongText, Required: true},
	},
}

// GateCriteria returns the checklist for from->to; edges without one return
// an empty list.
func GateCriteria(from, to string) []Criterion {
	src := gateCriteria[Edge{from, to}]
	out := make([]Criterion, len(src))
	copy(out, src)
	return out
}

// PhaseFields returns the structured fields captured on from->to.
func PhaseFields(from, to string) []Field {
	src := phaseFields[Edge{from, to}]
	out := make([]Field, len(src))
	for i, f := range src {
		out[i] = f
		if f.Options != nil {
			out[i].Options = append([]string(nil), f.Options...)
		}
	}
	return out
}

// UnmetGates returns the ids of required criteria not marked true in
// satisfied, in catalog order.
func UnmetGates(from, to string, satisfied map[string]bool) []string {
	var unmet []string
	for _, c := range gateCriteria[Edge{from, to}] {
		if c.Required && !satisfied[c.ID] {
			unmet = append(unmet, c.ID)
		}
	}
	return unmet
}

// AllRequiredGatesSatisfied reports whether every required criterion id is
// present and true.
func AllRequiredGatesSatisfied(from, to string, satisfied map[string]bool) bool {
	return len(UnmetGates(from, to, satisfied)) == 0
}

// MissingPhaseFields returns the ids of required fields that are blank.
func MissingPhaseFields(from, to string, values map[string]string) []string {
	var missing []string
	for _, f := range phaseFields[Edge{from, to}] {
		if f.Required && strings.TrimSpace(values[f.ID]) == "" {
			missing = append(missing, f.ID)
		}
	}
	return missing
}

// AllRequiredPhaseFieldsFilled reports whether every required field maps to a
// non-blank value.
func AllRequiredPhaseFieldsFilled(from, to string, values map[string]string) bool {
	return len(MissingPhaseFields(from, to, values)) == 0
}
