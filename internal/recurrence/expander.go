package recurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// DefaultMaxInstants caps a single expansion when the caller passes no limit.
const DefaultMaxInstants = 5000

var frequencies = map[enums.Frequency]rrule.Frequency{
	enums.FrequencyYearly:   rrule.YEARLY,
	enums.FrequencyMonthly:  rrule.MONTHLY,
	enums.FrequencyWeekly:   rrule.WEEKLY,
	enums.FrequencyDaily:    rrule.DAILY,
	enums.FrequencyHourly:   rrule.HOURLY,
	enums.FrequencyMinutely: rrule.MINUTELY,
	enums.FrequencySecondly: rrule.SECONDLY,
}

var rruleWeekdays = map[enums.Weekday]rrule.Weekday{
	enums.WeekdayMO: rrule.MO,
	enums.WeekdayTU: rrule.TU,
	enums.WeekdayWE: rrule.WE,
	enums.WeekdayTH: rrule.TH,
	enums.WeekdayFR: rrule.FR,
	enums.WeekdaySA: rrule.SA,
	enums.WeekdaySU: rrule.SU,
}

// Iterator yields the available instants of a term in ascending order.
// It is lazy: each call to Next advances the underlying recurrence set.
type Iterator struct {
	next       func() (time.Time, bool)
	exclusions []Rule
	wkst       enums.Weekday
}

// Next returns the next instant that survives every exclusion rule.
func (it *Iterator) Next() (time.Time, bool) {
	for {
		candidate, ok := it.next()
		if !ok {
			return time.Time{}, false
		}
		if it.excluded(candidate) {
			continue
		}
		return candidate, true
	}
}

func (it *Iterator) excluded(candidate time.Time) bool {
	for _, rule := range it.exclusions {
		if rule.Matches(candidate, it.wkst) {
			return true
		}
	}
	return false
}

// NewIterator validates term and rules and builds the lazy series.
// Instants are produced in loc; a nil loc keeps dtstart's location.
//
// Inclusion by-rules restrict the base series through the matching BYxxx
// option, inclusion instants are unioned in, and exclusion rules are applied
// last so an excluded candidate is never returned.
func NewIterator(term Term, rules []Rule, loc *time.Location) (*Iterator, error) {
	if err := Validate(term, rules); err != nil {
		return nil, err
	}
	term = term.Normalize()

	dtstart := term.Dtstart
	if loc != nil {
		dtstart = dtstart.In(loc)
	}

	opt := rrule.ROption{
		Freq:     frequencies[term.Frequency],
		Dtstart:  dtstart,
		Interval: term.Interval,
		Wkst:     rruleWeekdays[term.Wkst],
	}
	if term.Direction == enums.TermDirectionOccurrence {
		opt.Count = 1
	} else {
		if term.Count != nil {
			opt.Count = *term.Count
		}
		if term.Dtuntil != nil {
			opt.Until = term.Dtuntil.In(dtstart.Location())
		}
	}

	set := &rrule.Set{}
	var exclusions []Rule
	for _, rule := range rules {
		rule = rule.Normalize()
		switch {
		case rule.Mode == enums.RuleModeExclusion && rule.Identifier == enums.RuleInstant:
			for _, v := range rule.Values {
				set.ExDate(v.Datetime.In(dtstart.Location()))
			}
		case rule.Mode == enums.RuleModeExclusion:
			exclusions = append(exclusions, rule)
		case rule.Identifier == enums.RuleInstant:
			for _, v := range rule.Values {
				set.RDate(v.Datetime.In(dtstart.Location()))
			}
		default:
			applyInclusion(&opt, rule)
		}
	}

	base, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("building recurrence: %w", err)
	}
	set.RRule(base)

	return &Iterator{
		next:       set.Iterator(),
		exclusions: exclusions,
		wkst:       term.Wkst,
	}, nil
}

func applyInclusion(opt *rrule.ROption, rule Rule) {
	ints := func() []int {
		out := make([]int, 0, len(rule.Values))
		for _, v := range rule.Values {
			out = append(out, *v.Integer)
		}
		return out
	}
	switch rule.Identifier {
	case enums.RuleByWeekday:
		for _, v := range rule.Values {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[enums.Weekday(*v.Varchar)])
		}
	case enums.RuleByMonth:
		opt.Bymonth = append(opt.Bymonth, ints()...)
	case enums.RuleBySetPos:
		opt.Bysetpos = append(opt.Bysetpos, ints()...)
	case enums.RuleByMonthDay:
		opt.Bymonthday = append(opt.Bymonthday, ints()...)
	case enums.RuleByYearDay:
		opt.Byyearday = append(opt.Byyearday, ints()...)
	case enums.RuleByWeekNo:
		opt.Byweekno = append(opt.Byweekno, ints()...)
	case enums.RuleByHour:
		opt.Byhour = append(opt.Byhour, ints()...)
	case enums.RuleByMinute:
		opt.Byminute = append(opt.Byminute, ints()...)
	case enums.RuleBySecond:
		opt.Bysecond = append(opt.Bysecond, ints()...)
	}
}

// Window bounds an expansion, both ends inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Result is a drained expansion.
type Result struct {
	Instants  []time.Time `json:"instants"`
	Truncated bool        `json:"truncated"`
}

// Expand drains the iterator for the window, returning at most limit instants.
// It stops early once the series passes the window end or ctx is done.
func Expand(ctx context.Context, it *Iterator, window Window, limit int) (Result, error) {
	if window.End.Before(window.Start) {
		return Result{}, fmt.Errorf("window end %s is before start %s", window.End, window.Start)
	}
	if limit <= 0 {
		limit = DefaultMaxInstants
	}

	result := Result{Instants: []time.Time{}}
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		instant, ok := it.Next()
		if !ok || instant.After(window.End) {
			return result, nil
		}
		if instant.Before(window.Start) {
			continue
		}
		if len(result.Instants) == limit {
			result.Truncated = true
			return result, nil
		}
		result.Instants = append(result.Instants, instant)
	}
}

// Contains reports whether instant is produced by the term within its series.
func Contains(ctx context.Context, it *Iterator, instant time.Time) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		candidate, ok := it.Next()
		if !ok || candidate.After(instant) {
			return false, nil
		}
		if candidate.Equal(instant) {
			return true, nil
		}
	}
}
