package lifecycle

import (
	"strings"
	"time"
)

const defaultAgingDays = 30

// agingPrefixes is checked in order; the longer H-* prefixes come before S.
var agingPrefixes = []struct {
	prefix string
	days   int
}{
	{"H-DOE", 45},
	{"H-DES", 90},
	{"H-INT", 60},
	{"S", 14},
}

// AgingResult describes how long a requirement has sat in its current state.
type AgingResult struct {
	Aging       bool `json:"aging"`
	DaysInPhase int  `json:"days_in_phase"`
	Threshold   int  `json:"threshold"`
	OverdueBy   int  `json:"overdue_by"`
}

// ThresholdDays returns the aging limit for a state by its phase prefix.
func ThresholdDays(state string) int {
	for _, p := range agingPrefixes {
		if strings.HasPrefix(state, p.prefix) {
			return p.days
		}
	}
	return defaultAgingDays
}

// IsAging evaluates the aging policy. A state is aging once the elapsed time
// since ref exceeds its threshold; the terminal state never ages.
func IsAging(state string, ref, now time.Time) AgingResult {
	threshold := ThresholdDays(state)
	elapsed := now.Sub(ref)
	if elapsed < 0 {
		elapsed = 0
	}
	days := int(elapsed / (24 * time.Hour))
	res := AgingResult{DaysInPhase: days, Threshold: threshold}
	if IsTerminal(state) {
		return res
	}
	if elapsed > time.Duration(threshold)*24*time.Hour {
		res.Aging = true
		res.OverdueBy = days - threshold
	}
	return res
}
