// Package lifecycle holds the requirement pipeline rules: the state registry,
// the transition table, per-edge gate and phase-field catalogs, and the aging
// policy. Everything here is static data plus pure functions.
package lifecycle

import (
	"fmt"
	"strings"
)

// AdvanceInput is the operator-supplied feedback for one transition.
type AdvanceInput struct {
	To               string
	Notes            string
	BlockersResolved []string
	KeyDecisions     []string
	Gates            map[string]bool
	PhaseData        map[string]string
}

// CheckAdvance validates a requested transition. Preconditions are checked in
// order and the first failure is returned:
//  1. to must be a permitted next state
//  2. required gate criteria must be attested
//  3. required phase fields must be non-blank
//  4. notes must be non-blank
func CheckAdvance(current string, path Path, in AdvanceInput) error {
	if !CanTransition(current, path, in.To) {
		msg := fmt.Sprintf("cannot move from %s to %s", current, in.To)
		if RequiresPathAssignment(current) && !path.Valid() {
			msg += "; assign a path first"
		}
		return newError(KindInvalidTransition, msg)
	}
	if unmet := UnmetGates(current, in.To, in.Gates); len(unmet) > 0 {
		return newError(KindGateCriteriaNotMet, "required gate criteria not met", unmet...)
	}
	if missing := MissingPhaseFields(current, in.To, in.PhaseData); len(missing) > 0 {
		return newError(KindMissingPhaseData, "required phase fields missing", missing...)
	}
	if strings.TrimSpace(in.Notes) == "" {
		return newError(KindMissingPhaseNotes, "phase notes are required")
	}
	return nil
}

// CheckAssignPath validates a path assignment for a requirement.
func CheckAssignPath(current string, assigned, path Path, justification string) error {
	if assigned != PathUnset {
		return newError(KindPathAlreadyAssigned, fmt.Sprintf("path already assigned: %s", assigned))
	}
	if !RequiresPathAssignment(current) {
		return newError(KindInvalidTransition, fmt.Sprintf("path can only be assigned at %s, requirement is at %s", S4, current))
	}
	if !path.Valid() {
		return newError(KindInvalidInput, fmt.Sprintf("unknown path %q", path))
	}
	if strings.TrimSpace(justification) == "" {
		return newError(KindInvalidInput, "justification is required")
	}
	return nil
}

// NextRevision returns the revision number after taking from->to.
func NextRevision(current int, from, to string) int {
	if IsRevisionEdge(from, to) {
		return current + 1
	}
	return current
}
