package enums

import "fmt"

// RuleIdentifier names the date component a rule constrains.
type RuleIdentifier string

const (
	RuleByWeekday  RuleIdentifier = "byweekday"
	RuleByMonth    RuleIdentifier = "bymonth"
	RuleBySetPos   RuleIdentifier = "bysetpos"
	RuleByMonthDay RuleIdentifier = "bymonthday"
	RuleByYearDay  RuleIdentifier = "byyearday"
	RuleByWeekNo   RuleIdentifier = "byweekno"
	RuleByHour     RuleIdentifier = "byhour"
	RuleByMinute   RuleIdentifier = "byminute"
	RuleBySecond   RuleIdentifier = "bysecond"
	// RuleInstant lists explicit datetimes added to or removed from the series.
	RuleInstant RuleIdentifier = "instant"
)

var validRuleIdentifiers = []RuleIdentifier{
	RuleByWeekday,
	RuleByMonth,
	RuleBySetPos,
	RuleByMonthDay,
	RuleByYearDay,
	RuleByWeekNo,
	RuleByHour,
	RuleByMinute,
	RuleBySecond,
	RuleInstant,
}

// IsValid reports whether the value is a known rule identifier.
func (r RuleIdentifier) IsValid() bool {
	for _, candidate := range validRuleIdentifiers {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRuleIdentifier converts raw input into RuleIdentifier.
func ParseRuleIdentifier(value string) (RuleIdentifier, error) {
	for _, candidate := range validRuleIdentifiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rule identifier %q", value)
}

// RuleValueType tags which typed column of a rule value is populated.
type RuleValueType string

const (
	RuleValueVarchar  RuleValueType = "varchar"
	RuleValueInteger  RuleValueType = "integer"
	RuleValueDatetime RuleValueType = "datetime"
)

// IsValid reports whether the value is a known rule value type.
func (t RuleValueType) IsValid() bool {
	switch t {
	case RuleValueVarchar, RuleValueInteger, RuleValueDatetime:
		return true
	}
	return false
}

// ParseRuleValueType converts raw input into RuleValueType.
func ParseRuleValueType(value string) (RuleValueType, error) {
	if t := RuleValueType(value); t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("invalid rule value type %q", value)
}

// RuleMode decides whether a rule adds or removes candidates.
type RuleMode string

const (
	RuleModeInclusion RuleMode = "inclusion"
	RuleModeExclusion RuleMode = "exclusion"
)

// IsValid reports whether the value is a known rule mode.
func (m RuleMode) IsValid() bool {
	return m == RuleModeInclusion || m == RuleModeExclusion
}

// ParseRuleMode converts raw input into RuleMode.
func ParseRuleMode(value string) (RuleMode, error) {
	if m := RuleMode(value); m.IsValid() {
		return m, nil
	}
	return "", fmt.Errorf("invalid rule mode %q", value)
}
