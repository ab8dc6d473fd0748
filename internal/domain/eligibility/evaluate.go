// Package eligibility decides whether a child may receive the next dose of a
// vaccine on a candidate date. The core is a pure function over explicit
// inputs; persistence and HTTP live in the service and handler around it.
package eligibility

import (
	"time"

	"github.com/vaxflow/vaxflow/internal/domain/child"
	"github.com/vaxflow/vaxflow/internal/domain/vaccine"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

// Input carries everything Evaluate needs. History holds the child's
// administered doses of the target vaccine ordered by dose number;
// ParentStarted reports whether at least one dose of the parent vaccine has
// been recorded (meaningful only when the vaccine has a parent).
type Input struct {
	BirthDate     time.Time
	CandidateDate time.Time
	Vaccine       *vaccine.Vaccine
	Rules         *vaccine.RuleSet
	History       []*child.DoseRecord
	ParentStarted bool
}

// Decision is the evaluator's answer. On an INTERVAL_NOT_MET failure
// NextAllowedDate carries the earliest date the dose would pass.
type Decision struct {
	Eligible        bool       `json:"eligible"`
	TargetDose      int        `json:"target_dose"`
	NextAllowedDate *time.Time `json:"next_allowed_date,omitempty"`
	ReasonCode      rules.Code `json:"reason_code,omitempty"`
	Reason          string     `json:"reason,omitempty"`
}

func failure(target int, v *rules.Violation) Decision {
	return Decision{TargetDose: target, ReasonCode: v.Code, Reason: v.Reason}
}

// Evaluate runs the dose-eligibility check: lifetime dose limit, parent
// vaccine precondition, whole-month or whole-year minimum age, and the
// minimum calendar-day gap since the prior dose. Advisory only; the caller
// re-runs it inside the appointment-creation commit.
func Evaluate(in Input) Decision {
	target := len(in.History) + 1

	if target > in.Vaccine.LifetimeDoseLimit {
		return failure(target, rules.New(rules.DoseLimitExceeded,
			"dose %d exceeds the lifetime limit of %d for %s",
			target, in.Vaccine.LifetimeDoseLimit, in.Vaccine.Name))
	}

	if in.Vaccine.ParentID != nil && !in.ParentStarted {
		return failure(target, rules.New(rules.ParentVaccineRequired,
			"%s requires its parent vaccine to be started first", in.Vaccine.Name))
	}

	rule := in.Rules.For(target)
	if rule == nil {
		// NewRuleSet guarantees the chain, so this only fires on a rule set
		// built for a different vaccine.
		return failure(target, rules.New(rules.ConfigurationError,
			"no dose-interval rule for dose %d of %s", target, in.Vaccine.Name))
	}

	switch rule.ValidateBy {
	case vaccine.ValidateByMonths:
		if months := wholeMonthsBetween(in.BirthDate, in.CandidateDate); months < *rule.MinAgeApplicableMonth {
			return failure(target, rules.New(rules.AgeNotMet,
				"child is %d whole months old on %s; dose %d of %s requires %d months",
				months, in.CandidateDate.Format("2006-01-02"), target, in.Vaccine.Name,
				*rule.MinAgeApplicableMonth))
		}
	case vaccine.ValidateByYears:
		if years := wholeYearsBetween(in.BirthDate, in.CandidateDate); years < *rule.MinAgeApplicableYear {
			return failure(target, rules.New(rules.AgeNotMet,
				"child is %d whole years old on %s; dose %d of %s requires %d years",
				years, in.CandidateDate.Format("2006-01-02"), target, in.Vaccine.Name,
				*rule.MinAgeApplicableYear))
		}
	}

	if target > 1 {
		prior := in.History[len(in.History)-1]
		elapsed := daysBetween(prior.AdministeredDate, in.CandidateDate)
		if elapsed < rule.DaysBetween {
			next := atMidnight(prior.AdministeredDate).AddDate(0, 0, rule.DaysBetween)
			d := failure(target, rules.New(rules.IntervalNotMet,
				"only %d days since dose %d on %s; %d required",
				elapsed, prior.DoseNumber, prior.AdministeredDate.Format("2006-01-02"),
				rule.DaysBetween))
			d.NextAllowedDate = &next
			return d
		}
	}

	return Decision{Eligible: true, TargetDose: target}
}

func atMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b, ignoring clock time.
func daysBetween(a, b time.Time) int {
	return int(atMidnight(b).Sub(atMidnight(a)).Hours() / 24)
}

// wholeMonthsBetween counts fully elapsed calendar months from birth to at.
// The month only counts once the day-of-month has been reached.
func wholeMonthsBetween(birth, at time.Time) int {
	months := (at.Year()-birth.Year())*12 + int(at.Month()) - int(birth.Month())
	if at.Day() < birth.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func wholeYearsBetween(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
