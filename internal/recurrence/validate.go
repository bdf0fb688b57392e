package recurrence

import (
	"fmt"

	"github.com/angelmondragon/consultly-backend/internal/validation"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

type intBounds struct {
	min, max int
	nonZero  bool
}

var integerBounds = map[enums.RuleIdentifier]intBounds{
	enums.RuleByHour:     {min: 0, max: 23},
	enums.RuleByMinute:   {min: 0, max: 59},
	enums.RuleBySecond:   {min: 0, max: 59},
	enums.RuleByMonthDay: {min: 1, max: 31},
	enums.RuleByYearDay:  {min: 1, max: 365},
	enums.RuleByWeekNo:   {min: 1, max: 52},
	enums.RuleByMonth:    {min: 1, max: 12},
	enums.RuleBySetPos:   {min: -366, max: 366, nonZero: true},
}

// ValidateTerm checks the base recurrence. Field names are relative to the term.
func ValidateTerm(term Term) validation.FieldErrors {
	errs := validation.FieldErrors{}
	term = term.Normalize()

	if term.Dtstart.IsZero() {
		errs.Add("dtstart", "is required")
	}
	if !term.Frequency.IsValid() {
		errs.Addf("frequency", "unknown frequency %q", term.Frequency)
	}
	if term.Interval < 1 {
		errs.Add("interval", "must be at least 1")
	}
	if !term.Wkst.IsValid() {
		errs.Addf("wkst", "unknown weekday %q", term.Wkst)
	}
	if !term.Direction.IsValid() {
		errs.Addf("direction", "unknown direction %q", term.Direction)
	}
	if term.Count != nil && *term.Count < 1 {
		errs.Add("count", "must be at least 1")
	}
	if term.Dtuntil != nil && !term.Dtstart.IsZero() && term.Dtuntil.Before(term.Dtstart) {
		errs.Add("dtuntil", "must not be before dtstart")
	}
	if term.Direction == enums.TermDirectionRecurrence && term.Count == nil && term.Dtuntil == nil {
		errs.Add("count", "count or dtuntil is required for a recurrence")
	}
	return errs
}

// ValidateRule checks a rule and each of its values. Field names are relative
// to the rule.
func ValidateRule(rule Rule) validation.FieldErrors {
	errs := validation.FieldErrors{}
	rule = rule.Normalize()

	if !rule.Identifier.IsValid() {
		errs.Addf("identifier", "unknown identifier %q", rule.Identifier)
		return errs
	}
	if !rule.Mode.IsValid() {
		errs.Addf("mode", "unknown mode %q", rule.Mode)
	}
	if rule.Direction != DirectionFor(rule.Identifier) {
		errs.Addf("direction", "%s rules use direction %s", rule.Identifier, DirectionFor(rule.Identifier))
	}
	if expected := ValueTypeFor(rule.Identifier); rule.ValueType != expected {
		errs.Addf("value_type", "%s values are %s", rule.Identifier, expected)
		return errs
	}
	if rule.Identifier == enums.RuleBySetPos && rule.Mode == enums.RuleModeExclusion {
		errs.Add("mode", "bysetpos cannot be used for exclusion")
	}
	if len(rule.Values) == 0 {
		errs.Add("values", "at least one value is required")
	}
	for i, value := range rule.Values {
		field := fmt.Sprintf("values[%d]", i)
		if msg := validateValue(rule.Identifier, rule.ValueType, value); msg != "" {
			errs.Add(field, msg)
		}
	}
	return errs
}

// ValidateValue checks a single value for an identifier and returns a
// validation error keyed by the identifier name.
func ValidateValue(identifier enums.RuleIdentifier, value Value) error {
	errs := validation.FieldErrors{}
	if !identifier.IsValid() {
		errs.Addf("identifier", "unknown identifier %q", identifier)
		return errs.Err()
	}
	if msg := validateValue(identifier, ValueTypeFor(identifier), value); msg != "" {
		errs.Add(string(identifier), msg)
	}
	return errs.Err()
}

func validateValue(identifier enums.RuleIdentifier, valueType enums.RuleValueType, value Value) string {
	set := 0
	for _, present := range []bool{value.Varchar != nil, value.Integer != nil, value.Datetime != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return "exactly one typed value is required"
	}

	switch valueType {
	case enums.RuleValueVarchar:
		if value.Varchar == nil {
			return "must be a varchar value"
		}
		if identifier == enums.RuleByWeekday && !enums.Weekday(*value.Varchar).IsValid() {
			return fmt.Sprintf("%q is not one of MO, TU, WE, TH, FR, SA, SU", *value.Varchar)
		}
	case enums.RuleValueInteger:
		if value.Integer == nil {
			return "must be an integer value"
		}
		bounds, ok := integerBounds[identifier]
		if !ok {
			return "identifier does not take integer values"
		}
		v := *value.Integer
		if !validation.IntRange(v, bounds.min, bounds.max) {
			return fmt.Sprintf("must be between %d and %d", bounds.min, bounds.max)
		}
		if bounds.nonZero && v == 0 {
			return "must not be zero"
		}
	case enums.RuleValueDatetime:
		if value.Datetime == nil {
			return "must be a datetime value"
		}
		if value.Datetime.IsZero() {
			return "datetime is required"
		}
	default:
		return fmt.Sprintf("unknown value type %q", valueType)
	}
	return ""
}

// Validate checks a term together with its rules, rejecting duplicate
// (mode, identifier, direction) rules and rules that cannot apply to the term.
func Validate(term Term, rules []Rule) error {
	errs := validation.FieldErrors{}
	errs.Merge("term", ValidateTerm(term))
	term = term.Normalize()

	seen := map[string]int{}
	for i, rule := range rules {
		prefix := fmt.Sprintf("rules[%d]", i)
		rule = rule.Normalize()
		errs.Merge(prefix, ValidateRule(rule))

		key := string(rule.Mode) + "/" + string(rule.Identifier) + "/" + string(rule.Direction)
		if first, dup := seen[key]; dup {
			errs.Addf(prefix, "duplicates rules[%d]", first)
		} else {
			seen[key] = i
		}

		if term.Direction == enums.TermDirectionOccurrence &&
			rule.Mode == enums.RuleModeInclusion &&
			rule.Identifier != enums.RuleInstant {
			errs.Add(prefix+".identifier", "single occurrence terms only accept instant inclusions")
		}
	}
	return errs.Err()
}
