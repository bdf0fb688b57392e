package recurrence

import (
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

var weekdayTokens = map[time.Weekday]enums.Weekday{
	time.Monday:    enums.WeekdayMO,
	time.Tuesday:   enums.WeekdayTU,
	time.Wednesday: enums.WeekdayWE,
	time.Thursday:  enums.WeekdayTH,
	time.Friday:    enums.WeekdayFR,
	time.Saturday:  enums.WeekdaySA,
	time.Sunday:    enums.WeekdaySU,
}

var tokenWeekdays = map[enums.Weekday]time.Weekday{
	enums.WeekdayMO: time.Monday,
	enums.WeekdayTU: time.Tuesday,
	enums.WeekdayWE: time.Wednesday,
	enums.WeekdayTH: time.Thursday,
	enums.WeekdayFR: time.Friday,
	enums.WeekdaySA: time.Saturday,
	enums.WeekdaySU: time.Sunday,
}

// Matches reports whether candidate's component for the rule identifier is
// one of the rule's values. wkst is the week start used for byweekno.
// bysetpos is positional and never matches a lone candidate.
func (r Rule) Matches(candidate time.Time, wkst enums.Weekday) bool {
	for _, v := range r.Values {
		if matchValue(r.Identifier, v, candidate, wkst) {
			return true
		}
	}
	return false
}

func matchValue(identifier enums.RuleIdentifier, v Value, t time.Time, wkst enums.Weekday) bool {
	if identifier == enums.RuleInstant {
		return v.Datetime != nil && v.Datetime.Equal(t)
	}
	if identifier == enums.RuleByWeekday {
		return v.Varchar != nil && enums.Weekday(*v.Varchar) == weekdayTokens[t.Weekday()]
	}
	if v.Integer == nil {
		return false
	}
	want := *v.Integer
	switch identifier {
	case enums.RuleByMonth:
		return int(t.Month()) == want
	case enums.RuleByMonthDay:
		return t.Day() == want
	case enums.RuleByYearDay:
		return t.YearDay() == want
	case enums.RuleByWeekNo:
		return WeekNumber(t, wkst) == want
	case enums.RuleByHour:
		return t.Hour() == want
	case enums.RuleByMinute:
		return t.Minute() == want
	case enums.RuleBySecond:
		return t.Second() == want
	}
	return false
}

// WeekNumber returns the week of the year for t with weeks starting on wkst.
// Week 1 is the first week holding at least four days of the year, which is
// the week containing January 4th.
func WeekNumber(t time.Time, wkst enums.Weekday) int {
	start, ok := tokenWeekdays[wkst]
	if !ok {
		start = time.Monday
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := day.AddDate(0, 0, -((int(day.Weekday()) - int(start) + 7) % 7))

	year := t.Year()
	first := firstWeekStart(year, start)
	if weekStart.Before(first) {
		year--
		first = firstWeekStart(year, start)
	} else if next := firstWeekStart(year+1, start); !weekStart.Before(next) {
		first = next
	}
	return int(weekStart.Sub(first).Hours()/24)/7 + 1
}

func firstWeekStart(year int, start time.Weekday) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return jan4.AddDate(0, 0, -((int(jan4.Weekday()) - int(start) + 7) % 7))
}
