package lifecycle

// Phase groups related states.
type Phase string

const (
	PhaseSensing     Phase = "SENSING"
	PhaseHarmonizing Phase = "HARMONIZING"
	PhaseDesignathon Phase = "DESIGNATHON"
	PhaseConvergence Phase = "CONVERGENCE"
)

// State identifiers as stored in requirement records.
const (
	StateNew = "NEW"

	S1 = "S1"
	S2 = "S2"
	S3 = "S3"
	S4 = "S4"

	HInt1 = "H-INT-1"
	HInt2 = "H-INT-2"

	HDes1 = "H-DES-1"
	HDes2 = "H-DES-2"
	HDes3 = "H-DES-3"
	HDes4 = "H-DES-4"
	HDes5 = "H-DES-5"
	HDes6 = "H-DES-6"

	HDoe1 = "H-DOE-1"
	HDoe2 = "H-DOE-2"
	HDoe3 = "H-DOE-3"
	HDoe4 = "H-DOE-4"
	HDoe5 = "H-DOE-5"
)

// InitialState is where every requirement starts.
const InitialState = S1

// StateInfo is the display metadata of a registry entry.
type StateInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Phase Phase  `json:"phase"`
}

var registry = []StateInfo{
	{S1, "Captured", PhaseSensing},
	{S2, "Under Review", PhaseSensing},
	{S3, "Validated", PhaseSensing},
	{S4, "Prioritized", PhaseSensing},
	{HInt1, "Design Started", PhaseHarmonizing},
	{HInt2, "Prototype Ready", PhaseHarmonizing},
	{HDes1, "Challenge Published", PhaseDesignathon},
	{HDes2, "Teams Registered", PhaseDesignathon},
	{HDes3, "Submissions In", PhaseDesignathon},
	{HDes4, "Judging Complete", PhaseDesignathon},
	{HDes5, "Winner Selected", PhaseDesignathon},
	{HDes6, "Prototype Handed Over", PhaseDesignathon},
	{HDoe1, "DoE In Progress", PhaseConvergence},
	{HDoe2, "DoE Complete", PhaseConvergence},
	{HDoe3, "Committee Review", PhaseConvergence},
	{HDoe4, "Committee Decision", PhaseConvergence},
	{HDoe5, "Production-Ready", PhaseConvergence},
}

var registryIndex = func() map[string]int {
	idx := make(map[string]int, len(registry))
	for i, s := range registry {
		idx[s.ID] = i
	}
	return idx
}()

// States returns the registry in pipeline order.
func States() []StateInfo {
	out := make([]StateInfo, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the registry entry for id. Unknown ids yield a placeholder
// labelled "Unknown" and ok=false.
func Lookup(id string) (StateInfo, bool) {
	i, ok := registryIndex[id]
	if !ok {
		return StateInfo{ID: id, Label: "Unknown"}, false
	}
	return registry[i], true
}

// IsKnown reports whether id is a registry state.
func IsKnown(id string) bool {
	_, ok := registryIndex[id]
	return ok
}

// PhaseOf returns the phase tag of a state, or "" for unknown ids.
func PhaseOf(id string) Phase {
	info, _ := Lookup(id)
	return info.Phase
}

// IsTerminal reports whether the state has no outgoing edges.
func IsTerminal(id string) bool {
	return id == HDoe5
}

// Phases returns the phase tags in pipeline order.
func Phases() []Phase {
	return []Phase{PhaseSensing, PhaseHarmonizing, PhaseDesignathon, PhaseConvergence}
}
