package enums

import "fmt"

// Canal is the communication channel a segment serves.
type Canal string

const (
	CanalText  Canal = "text"
	CanalVoice Canal = "voice"
	CanalVideo Canal = "video"
)

var validCanals = []Canal{CanalText, CanalVoice, CanalVideo}

// IsValid reports whether the value is a known canal.
func (c Canal) IsValid() bool {
	for _, candidate := range validCanals {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCanal converts raw input into Canal.
func ParseCanal(value string) (Canal, error) {
	for _, candidate := range validCanals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid canal %q", value)
}

// AllocationUnit is what an SLA allocation is counted in.
type AllocationUnit string

const (
	UnitReplies AllocationUnit = "replies"
	UnitMinutes AllocationUnit = "minutes"
)

// IsValid reports whether the value is a known unit.
func (u AllocationUnit) IsValid() bool {
	return u == UnitReplies || u == UnitMinutes
}

// UnitForCanal returns the allocation unit a canal is billed in.
func UnitForCanal(c Canal) AllocationUnit {
	if c == CanalText {
		return UnitReplies
	}
	return UnitMinutes
}

// PriorityLevel identifies a priority tier on an SLA.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
)

var validPriorityLevels = []PriorityLevel{PriorityLow, PriorityMedium, PriorityHigh}

// IsValid reports whether the value is a known priority level.
func (p PriorityLevel) IsValid() bool {
	for _, candidate := range validPriorityLevels {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriorityLevel converts raw input into PriorityLevel.
func ParsePriorityLevel(value string) (PriorityLevel, error) {
	for _, candidate := range validPriorityLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid priority level %q", value)
}
