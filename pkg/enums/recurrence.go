package enums

import "fmt"

// Frequency is the base recurrence frequency of a schedule term.
type Frequency string

const (
	FrequencyYearly   Frequency = "YEARLY"
	FrequencyMonthly  Frequency = "MONTHLY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyDaily    Frequency = "DAILY"
	FrequencyHourly   Frequency = "HOURLY"
	FrequencyMinutely Frequency = "MINUTELY"
	FrequencySecondly Frequency = "SECONDLY"
)

var validFrequencies = []Frequency{
	FrequencyYearly,
	FrequencyMonthly,
	FrequencyWeekly,
	FrequencyDaily,
	FrequencyHourly,
	FrequencyMinutely,
	FrequencySecondly,
}

// IsValid reports whether the value is a known frequency.
func (f Frequency) IsValid() bool {
	for _, candidate := range validFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFrequency converts raw input into Frequency.
func ParseFrequency(value string) (Frequency, error) {
	for _, candidate := range validFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid frequency %q", value)
}

// Weekday is the two-letter weekday token used by byweekday rules and wkst.
// Tokens are upper case and matched case-sensitively.
type Weekday string

const (
	WeekdayMO Weekday = "MO"
	WeekdayTU Weekday = "TU"
	WeekdayWE Weekday = "WE"
	WeekdayTH Weekday = "TH"
	WeekdayFR Weekday = "FR"
	WeekdaySA Weekday = "SA"
	WeekdaySU Weekday = "SU"
)

var validWeekdays = []Weekday{
	WeekdayMO,
	WeekdayTU,
	WeekdayWE,
	WeekdayTH,
	WeekdayFR,
	WeekdaySA,
	WeekdaySU,
}

// IsValid reports whether the value is a known weekday token.
func (w Weekday) IsValid() bool {
	for _, candidate := range validWeekdays {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWeekday converts raw input into Weekday.
func ParseWeekday(value string) (Weekday, error) {
	for _, candidate := range validWeekdays {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", value)
}

// TermDirection distinguishes a one-off occurrence from a true recurrence.
type TermDirection string

const (
	TermDirectionOccurrence TermDirection = "occurrence"
	TermDirectionRecurrence TermDirection = "recurrence"
)

// IsValid reports whether the value is a known direction.
func (d TermDirection) IsValid() bool {
	return d == TermDirectionOccurrence || d == TermDirectionRecurrence
}

// ParseTermDirection converts raw input into TermDirection.
func ParseTermDirection(value string) (TermDirection, error) {
	switch TermDirection(value) {
	case TermDirectionOccurrence, TermDirectionRecurrence:
		return TermDirection(value), nil
	}
	return "", fmt.Errorf("invalid term direction %q", value)
}
