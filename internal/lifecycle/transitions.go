package lifecycle

// Path is the branch chosen at S4.
type Path string

const (
	PathUnset       Path = ""
	PathInternal    Path = "INTERNAL"
	PathDesignathon Path = "DESIGNATHON"
)

// Valid reports whether p is one of the assignable paths.
func (p Path) Valid() bool {
	return p == PathInternal || p == PathDesignathon
}

// Edge is a (from, to) pair in the transition table.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e Edge) String() string { return e.From + "->" + e.To }

var transitions = map[string][]string{
	S1:    {S2},
	S2:    {S3},
	S3:    {S4},
	S4:    {HInt1, HDes1},
	HInt1: {HInt2},
	HInt2: {HDoe1},
	HDes1: {HDes2},
	HDes2: {HDes3},
	HDes3: {HDes4},
	HDes4: {HDes5},
	HDes5: {HDes6},
	HDes6: {HDoe1},
	HDoe1: {HDoe2},
	HDoe2: {HDoe3},
	HDoe3: {HDoe4},
	HDoe4: {HDoe5, HInt1, HDes1},
	HDoe5: {},
}

// pathEntry maps an assigned path to the single branch it unlocks at S4.
var pathEntry = map[Path]string{
	PathInternal:    HInt1,
	PathDesignathon: HDes1,
}

// NextStates returns the permitted destinations from current. At S4 the
// result is narrowed to the branch of the assigned path, and is empty while
// no path is assigned. H-DOE-4 always offers approve and both revise edges.
func NextStates(current string, path Path) []string {
	if current == S4 {
		to, ok := pathEntry[path]
		if !ok {
			return []string{}
		}
		return []string{to}
	}
	raw := transitions[current]
	out := make([]string, len(raw))
	copy(out, raw)
	return out
}

// CanTransition reports whether to is in NextStates(current, path).
func CanTransition(current string, path Path, to string) bool {
	for _, s := range NextStates(current, path) {
		if s == to {
			return true
		}
	}
	return false
}

// Edges lists every edge of the raw table in registry order.
func Edges() []Edge {
	var out []Edge
	for _, s := range registry {
		for _, to := range transitions[s.ID] {
			out = append(out, Edge{From: s.ID, To: to})
		}
	}
	return out
}

// IsRevisionEdge reports whether from->to sends a requirement back for rework
// after the committee decision.
func IsRevisionEdge(from, to string) bool {
	return from == HDoe4 && (to == HInt1 || to == HDes1)
}

// RequiresPathAssignment reports whether leaving state needs a path first.
func RequiresPathAssignment(state string) bool {
	return state == S4
}
