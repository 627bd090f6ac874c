package domain

// Allowed values for requirement attributes.
var (
	SourceTypes     = []string{"CDC", "SEN", "BLIND", "ELDERLY", "BUDS", "OTHER"}
	Priorities      = []string{"P1", "P2", "P3"}
	TechLevels      = []string{"LOW", "MEDIUM", "HIGH"}
	TherapyDomains  = []string{"OT", "PT", "Speech", "ADL", "Sensory", "Cognitive"}
	DisabilityTypes = []string{"Physical", "Visual", "Hearing", "Cognitive", "Multiple"}
	GapFlags        = []string{"RED", "BLUE"}
	Recommendations = []string{"APPROVE", "REVISE", "REJECT"}
)

const (
	DefaultPriority  = "P2"
	DefaultTechLevel = "MEDIUM"
)

// OneOf reports whether v is in allowed.
func OneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
