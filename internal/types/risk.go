// SPDX-License-Identifier: MIT

package types

import "fmt"

// RiskLevel is one class of the ordered 4-level moderation taxonomy.
// Severity increases from neutral to high.
type RiskLevel string

const (
	RiskNeutral RiskLevel = "neutral"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// RiskLevels lists all levels ordered by increasing severity.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskNeutral, RiskLow, RiskMedium, RiskHigh}
}

// Severity returns the ordinal position of the level: neutral=0 .. high=3.
// Unknown levels return -1.
func (l RiskLevel) Severity() int {
	switch l {
	case RiskNeutral:
		return 0
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return -1
	}
}

// IsValid checks whether the level is one of the defined constants.
func (l RiskLevel) IsValid() bool {
	return l.Severity() >= 0
}

// String implements fmt.Stringer.
func (l RiskLevel) String() string {
	return string(l)
}

// ParseRiskLevel parses a string into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(s)
	if !level.IsValid() {
		return "", fmt.Errorf("invalid risk level: %q (valid: neutral, low, medium, high)", s)
	}
	return level, nil
}

// ModerationStatus represents the state of one moderation run.
type ModerationStatus string

const (
	ModerationPending    ModerationStatus = "pending"
	ModerationProcessing ModerationStatus = "processing"
	ModerationCompleted  ModerationStatus = "completed"
	ModerationFailed     ModerationStatus = "failed"
)

// IsValid checks whether the status is one of the defined constants.
func (s ModerationStatus) IsValid() bool {
	switch s {
	case ModerationPending, ModerationProcessing, ModerationCompleted, ModerationFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the moderation run reached a final state.
// A terminal record is immutable except for an explicit re-run reset.
func (s ModerationStatus) IsTerminal() bool {
	return s == ModerationCompleted || s == ModerationFailed
}

// String implements fmt.Stringer.
func (s ModerationStatus) String() string {
	return string(s)
}

// ModerationVerdict is the outcome of a completed moderation run.
type ModerationVerdict string

const (
	VerdictSafe      ModerationVerdict = "safe"
	VerdictUnsafe    ModerationVerdict = "unsafe"
	VerdictUncertain ModerationVerdict = "uncertain"
)

// IsValid checks whether the verdict is one of the defined constants.
func (v ModerationVerdict) IsValid() bool {
	switch v {
	case VerdictSafe, VerdictUnsafe, VerdictUncertain:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (v ModerationVerdict) String() string {
	return string(v)
}
