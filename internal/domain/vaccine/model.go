package vaccine

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

// Vaccine maps to the vaccine table. The temperature conditions are the
// storage envelope in °C that any batch of this vaccine must be kept within.
type Vaccine struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	Code                     string     `db:"code" json:"code"`
	Name                     string     `db:"name" json:"name"`
	LifetimeDoseLimit        int        `db:"lifetime_dose_limit" json:"lifetime_dose_limit"`
	MinTemperatureConditions float64    `db:"min_temperature_conditions" json:"min_temperature_conditions"`
	MaxTemperatureConditions float64    `db:"max_temperature_conditions" json:"max_temperature_conditions"`
	ParentID                 *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	Active                   bool       `db:"active" json:"active"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	ValidateByMonths = "MONTHS"
	ValidateByYears  = "YEARS"
)

// DoseIntervalRule describes one dose transition of a vaccine: the minimum
// age the child must have reached and the minimum day gap since the prior
// dose. ToDoseNumber is always FromDoseNumber+1.
type DoseIntervalRule struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	VaccineID             uuid.UUID `db:"vaccine_id" json:"vaccine_id"`
	FromDoseNumber        int       `db:"from_dose_number" json:"from_dose_number"`
	ToDoseNumber          int       `db:"to_dose_number" json:"to_dose_number"`
	ValidateBy            string    `db:"validate_by" json:"validate_by"`
	MinAgeApplicableMonth *int      `db:"min_age_applicable_month" json:"min_age_applicable_month,omitempty"`
	MinAgeApplicableYear  *int      `db:"min_age_applicable_year" json:"min_age_applicable_year,omitempty"`
	DaysBetween           int       `db:"days_between" json:"days_between"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// RuleSet is a vaccine's validated dose-interval chain, indexed by target
// dose number. Build it with NewRuleSet; an unvalidated slice of rules never
// reaches the evaluator.
type RuleSet struct {
	VaccineID uuid.UUID
	byToDose  map[int]*DoseIntervalRule
}

// NewRuleSet validates that the given rules form a contiguous chain
// 1..lifetimeDoseLimit and indexes them. Any gap, duplicate, stray rule, or
// malformed age threshold makes the vaccine not orderable: the engine fails
// closed with CONFIGURATION_ERROR rather than silently passing.
func NewRuleSet(v *Vaccine, ruleList []*DoseIntervalRule) (*RuleSet, error) {
	if v.LifetimeDoseLimit < 1 {
		return nil, rules.New(rules.ConfigurationError,
			"vaccine %s has lifetime dose limit %d", v.Code, v.LifetimeDoseLimit)
	}

	byToDose := make(map[int]*DoseIntervalRule, len(ruleList))
	for _, r := range ruleList {
		if _, dup := byToDose[r.ToDoseNumber]; dup {
			return nil, rules.New(rules.ConfigurationError,
				"vaccine %s has multiple rules for dose %d", v.Code, r.ToDoseNumber)
		}
		if r.ToDoseNumber < 1 || r.ToDoseNumber > v.LifetimeDoseLimit {
			return nil, rules.New(rules.ConfigurationError,
				"vaccine %s has a rule for dose %d outside 1..%d", v.Code, r.ToDoseNumber, v.LifetimeDoseLimit)
		}
		if r.FromDoseNumber != r.ToDoseNumber-1 {
			return nil, rules.New(rules.ConfigurationError,
				"vaccine %s rule for dose %d has from_dose_number %d, want %d",
				v.Code, r.ToDoseNumber, r.FromDoseNumber, r.ToDoseNumber-1)
		}
		if r.DaysBetween < 0 {
			return nil, rules.New(rules.ConfigurationError,
				"vaccine %s rule for dose %d has negative days_between", v.Code, r.ToDoseNumber)
		}
		switch r.ValidateBy {
		case ValidateByMonths:
			if r.MinAgeApplicableMonth == nil || r.MinAgeApplicableYear != nil {
				return nil, rules.New(rules.ConfigurationError,
					"vaccine %s rule for dose %d validates by months but does not carry exactly a month threshold",
					v.Code, r.ToDoseNumber)
			}
		case ValidateByYears:
			if r.MinAgeApplicableYear == nil || r.MinAgeApplicableMonth != nil {
				return nil, rules.New(rules.ConfigurationError,
					"vaccine %s rule for dose %d validates by years but does not carry exactly a year threshold",
					v.Code, r.ToDoseNumber)
			}
		default:
			return nil, rules.New(rules.ConfigurationError,
				"vaccine %s rule for dose %d has validate_by %q", v.Code, r.ToDoseNumber, r.ValidateBy)
		}
		byToDose[r.ToDoseNumber] = r
	}

	for dose := 1; dose <= v.LifetimeDoseLimit; dose++ {
		if _, ok := byToDose[dose]; !ok {
			return nil, rules.New(rules.ConfigurationError,
				"vaccine %s has no dose-interval rule for dose %d", v.Code, dose)
		}
	}

	return &RuleSet{VaccineID: v.ID, byToDose: byToDose}, nil
}

// For returns the rule whose ToDoseNumber is the given target dose, or nil.
func (rs *RuleSet) For(targetDose int) *DoseIntervalRule {
	return rs.byToDose[targetDose]
}
