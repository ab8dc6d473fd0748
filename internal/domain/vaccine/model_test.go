package vaccine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

func intPtr(n int) *int { return &n }

func chainVaccine(limit int) *Vaccine {
	return &Vaccine{ID: uuid.New(), Code: "6in1", Name: "Hexavalent", LifetimeDoseLimit: limit,
		MinTemperatureConditions: 2, MaxTemperatureConditions: 8, Active: true}
}

func monthRule(v *Vaccine, from, minMonths, gap int) *DoseIntervalRule {
	return &DoseIntervalRule{
		ID: uuid.New(), VaccineID: v.ID,
		FromDoseNumber: from, ToDoseNumber: from + 1,
		ValidateBy:            ValidateByMonths,
		MinAgeApplicableMonth: intPtr(minMonths),
		DaysBetween:           gap,
	}
}

func TestNewRuleSet_ValidChain(t *testing.T) {
	v := chainVaccine(2)
	rs, err := NewRuleSet(v, []*DoseIntervalRule{
		monthRule(v, 0, 2, 0),
		monthRule(v, 1, 4, 28),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := rs.For(2); r == nil || r.DaysBetween != 28 {
		t.Errorf("expected rule for dose 2 with 28-day gap, got %+v", r)
	}
	if rs.For(3) != nil {
		t.Error("expected no rule beyond the dose limit")
	}
}

func TestNewRuleSet_FailsClosed(t *testing.T) {
	v := chainVaccine(3)

	tests := []struct {
		name      string
		ruleList  []*DoseIntervalRule
		wantInMsg string
	}{
		{"no rules at all", nil, "no dose-interval rule"},
		{"gap in chain", []*DoseIntervalRule{monthRule(v, 0, 2, 0), monthRule(v, 2, 6, 28)}, "no dose-interval rule for dose 2"},
		{"duplicate dose", []*DoseIntervalRule{monthRule(v, 0, 2, 0), monthRule(v, 0, 2, 0), monthRule(v, 1, 4, 28), monthRule(v, 2, 6, 28)}, "multiple rules"},
		{"rule beyond limit", []*DoseIntervalRule{monthRule(v, 0, 2, 0), monthRule(v, 1, 4, 28), monthRule(v, 2, 6, 28), monthRule(v, 3, 8, 28)}, "outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(v, tt.ruleList)
			if err == nil {
				t.Fatal("expected a configuration error")
			}
			if !rules.Is(err, rules.ConfigurationError) {
				t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
			}
		})
	}
}

func TestNewRuleSet_TaggedAgeThreshold(t *testing.T) {
	v := chainVaccine(1)

	both := monthRule(v, 0, 2, 0)
	both.MinAgeApplicableYear = intPtr(1)
	if _, err := NewRuleSet(v, []*DoseIntervalRule{both}); !rules.Is(err, rules.ConfigurationError) {
		t.Errorf("expected CONFIGURATION_ERROR when both thresholds set, got %v", err)
	}

	wrongTag := monthRule(v, 0, 2, 0)
	wrongTag.ValidateBy = ValidateByYears
	if _, err := NewRuleSet(v, []*DoseIntervalRule{wrongTag}); !rules.Is(err, rules.ConfigurationError) {
		t.Errorf("expected CONFIGURATION_ERROR when tag and threshold disagree, got %v", err)
	}

	yearly := &DoseIntervalRule{
		ID: uuid.New(), VaccineID: v.ID, FromDoseNumber: 0, ToDoseNumber: 1,
		ValidateBy: ValidateByYears, MinAgeApplicableYear: intPtr(1),
	}
	if _, err := NewRuleSet(v, []*DoseIntervalRule{yearly}); err != nil {
		t.Errorf("expected valid yearly rule, got %v", err)
	}
}

func TestNewRuleSet_NegativeGap(t *testing.T) {
	v := chainVaccine(1)
	r := monthRule(v, 0, 2, -1)
	if _, err := NewRuleSet(v, []*DoseIntervalRule{r}); !rules.Is(err, rules.ConfigurationError) {
		t.Errorf("expected CONFIGURATION_ERROR for negative days_between, got %v", err)
	}
}
