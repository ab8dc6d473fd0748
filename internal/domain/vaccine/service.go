package vaccine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	vaccines VaccineRepository
	rules    RuleRepository
}

func NewService(vaccines VaccineRepository, ruleRepo RuleRepository) *Service {
	return &Service{vaccines: vaccines, rules: ruleRepo}
}

// -- Vaccine --

func validateVaccine(v *Vaccine) error {
	if v.Code == "" {
		return fmt.Errorf("code is required")
	}
	if v.Name == "" {
		return fmt.Errorf("name is required")
	}
	if v.LifetimeDoseLimit < 1 {
		return fmt.Errorf("lifetime_dose_limit must be at least 1")
	}
	if v.MinTemperatureConditions >= v.MaxTemperatureConditions {
		return fmt.Errorf("min_temperature_conditions must be below max_temperature_conditions")
	}
	return nil
}

func (s *Service) CreateVaccine(ctx context.Context, v *Vaccine) error {
	if err := validateVaccine(v); err != nil {
		return err
	}
	if v.ParentID != nil {
		if _, err := s.vaccines.GetByID(ctx, *v.ParentID); err != nil {
			return fmt.Errorf("parent vaccine: %w", err)
		}
	}
	return s.vaccines.Create(ctx, v)
}

func (s *Service) GetVaccine(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	return s.vaccines.GetByID(ctx, id)
}

func (s *Service) UpdateVaccine(ctx context.Context, v *Vaccine) error {
	if err := validateVaccine(v); err != nil {
		return err
	}
	if v.ParentID != nil {
		if *v.ParentID == v.ID {
			return fmt.Errorf("vaccine cannot be its own parent")
		}
		if _, err := s.vaccines.GetByID(ctx, *v.ParentID); err != nil {
			return fmt.Errorf("parent vaccine: %w", err)
		}
	}
	return s.vaccines.Update(ctx, v)
}

func (s *Service) DeleteVaccine(ctx context.Context, id uuid.UUID) error {
	return s.vaccines.Delete(ctx, id)
}

func (s *Service) ListVaccines(ctx context.Context, limit, offset int) ([]*Vaccine, int, error) {
	return s.vaccines.List(ctx, limit, offset)
}

// -- DoseIntervalRule --

// validateRule rejects at write time what NewRuleSet would later refuse at
// evaluation time, so a malformed rule never reaches storage.
func validateRule(r *DoseIntervalRule) error {
	if r.ToDoseNumber != r.FromDoseNumber+1 {
		return fmt.Errorf("to_dose_number must be from_dose_number+1")
	}
	if r.DaysBetween < 0 {
		return fmt.Errorf("days_between must not be negative")
	}
	switch r.ValidateBy {
	case ValidateByMonths:
		if r.MinAgeApplicableMonth == nil || r.MinAgeApplicableYear != nil {
			return fmt.Errorf("a %s rule must set min_age_applicable_month and leave min_age_applicable_year unset", ValidateByMonths)
		}
	case ValidateByYears:
		if r.MinAgeApplicableYear == nil || r.MinAgeApplicableMonth != nil {
			return fmt.Errorf("a %s rule must set min_age_applicable_year and leave min_age_applicable_month unset", ValidateByYears)
		}
	default:
		return fmt.Errorf("validate_by must be %s or %s", ValidateByMonths, ValidateByYears)
	}
	return nil
}

func (s *Service) CreateRule(ctx context.Context, r *DoseIntervalRule) error {
	if _, err := s.vaccines.GetByID(ctx, r.VaccineID); err != nil {
		return err
	}
	if err := validateRule(r); err != nil {
		return err
	}
	return s.rules.Create(ctx, r)
}

func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*DoseIntervalRule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *Service) UpdateRule(ctx context.Context, r *DoseIntervalRule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	return s.rules.Update(ctx, r)
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.rules.Delete(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, vaccineID uuid.UUID) ([]*DoseIntervalRule, error) {
	return s.rules.ListByVaccine(ctx, vaccineID)
}

// RuleSet loads and validates the vaccine's dose-interval chain. A vaccine
// whose chain is missing or malformed is not orderable; the returned error
// carries CONFIGURATION_ERROR.
func (s *Service) RuleSet(ctx context.Context, vaccineID uuid.UUID) (*Vaccine, *RuleSet, error) {
	v, err := s.vaccines.GetByID(ctx, vaccineID)
	if err != nil {
		return nil, nil, err
	}
	ruleList, err := s.rules.ListByVaccine(ctx, vaccineID)
	if err != nil {
		return nil, nil, err
	}
	rs, err := NewRuleSet(v, ruleList)
	if err != nil {
		return nil, nil, err
	}
	return v, rs, nil
}
