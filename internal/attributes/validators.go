package attributes

import (
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/consultly-backend/internal/validation"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

const (
	maxVarcharLength = 255
	maxLeadTimeHours = 720
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

type validatorFunc func(errs validation.FieldErrors, v Value)

// scoped holds identifier checks layered over the per-type checks.
var scoped = map[enums.ContentType]map[string]validatorFunc{
	enums.ContentSchedule: {
		ScheduleTimezone: func(errs validation.FieldErrors, v Value) {
			name := strings.TrimSpace(v.Varchar)
			if name == "" {
				errs.Add("value", "timezone is required")
				return
			}
			if _, err := time.LoadLocation(name); err != nil {
				errs.Addf("value", "unknown timezone %q", name)
			}
		},
		ScheduleLeadTimeHours: func(errs validation.FieldErrors, v Value) {
			if v.Integer < 0 || v.Integer > maxLeadTimeHours {
				errs.Addf("value", "must be between 0 and %d", maxLeadTimeHours)
			}
		},
		ScheduleMaxDailyBookings: func(errs validation.FieldErrors, v Value) {
			if v.Integer < 1 {
				errs.Add("value", "must be at least 1")
			}
		},
	},
}

func validateDefinition(input DefineInput) error {
	errs := validation.FieldErrors{}
	if !input.ContentType.IsValid() {
		errs.Addf("content_type", "unknown content type %q", input.ContentType)
	}
	if !identifierPattern.MatchString(input.Identifier) {
		errs.Add("identifier", "must be lower snake case, at most 64 characters")
	}
	if !input.Type.IsValid() {
		errs.Addf("type", "unknown attribute type %q", input.Type)
	}
	if want, ok := wellKnown[input.ContentType][input.Identifier]; ok && input.Type.IsValid() && want != input.Type {
		errs.Addf("type", "%s must be %s", input.Identifier, want)
	}
	if len(strings.TrimSpace(input.Label)) > maxVarcharLength {
		errs.Addf("label", "must be at most %d characters", maxVarcharLength)
	}
	return errs.Err()
}

// validateValue checks v against the declared type of the attribute, then
// against any identifier-specific rule for the content type.
func validateValue(contentType enums.ContentType, identifier string, declared enums.AttributeType, v Value) error {
	errs := validation.FieldErrors{}
	if v.Type != declared {
		errs.Addf("value", "expected %s, got %s", declared, v.Type)
		return errs.Err()
	}
	switch v.Type {
	case enums.AttributeVarchar:
		if len(v.Varchar) > maxVarcharLength {
			errs.Addf("value", "must be at most %d characters", maxVarcharLength)
		}
	case enums.AttributeDate:
		if v.Date.IsZero() {
			errs.Add("value", "date is required")
		}
	case enums.AttributeDatetime:
		if v.Datetime.IsZero() {
			errs.Add("value", "datetime is required")
		}
	}
	if check, ok := scoped[contentType][identifier]; ok {
		check(errs, v)
	}
	return errs.Err()
}
