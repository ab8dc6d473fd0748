package child

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vaxflow/vaxflow/internal/platform/clock"
)

type Service struct {
	children ChildRepository
	doses    DoseRecordRepository
	clk      clock.Clock
}

func NewService(children ChildRepository, doses DoseRecordRepository, clk clock.Clock) *Service {
	return &Service{children: children, doses: doses, clk: clk}
}

func (s *Service) CreateChild(ctx context.Context, ch *Child) error {
	if ch.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if ch.ParentAccountID == uuid.Nil {
		return fmt.Errorf("parent_account_id is required")
	}
	if ch.DateOfBirth.IsZero() {
		return fmt.Errorf("date_of_birth is required")
	}
	if ch.DateOfBirth.After(s.clk.Now()) {
		return fmt.Errorf("date_of_birth cannot be in the future")
	}
	return s.children.Create(ctx, ch)
}

func (s *Service) GetChild(ctx context.Context, id uuid.UUID) (*Child, error) {
	return s.children.GetByID(ctx, id)
}

// UpdateChild applies a guardian edit. Once doses have been recorded the
// record is frozen; corrections go through UpdateChildCorrective.
func (s *Service) UpdateChild(ctx context.Context, ch *Child) error {
	if _, err := s.children.GetByID(ctx, ch.ID); err != nil {
		return err
	}
	n, err := s.doses.CountByChild(ctx, ch.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("child has recorded doses; use the corrective endpoint")
	}
	return s.applyUpdate(ctx, ch)
}

// UpdateChildCorrective is the admin-only escape hatch for fixing a child
// record that already has dose history.
func (s *Service) UpdateChildCorrective(ctx context.Context, ch *Child) error {
	if _, err := s.children.GetByID(ctx, ch.ID); err != nil {
		return err
	}
	return s.applyUpdate(ctx, ch)
}

func (s *Service) applyUpdate(ctx context.Context, ch *Child) error {
	if ch.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if ch.DateOfBirth.IsZero() || ch.DateOfBirth.After(s.clk.Now()) {
		return fmt.Errorf("date_of_birth must be a past date")
	}
	return s.children.Update(ctx, ch)
}

func (s *Service) DeleteChild(ctx context.Context, id uuid.UUID) error {
	n, err := s.doses.CountByChild(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("child has recorded doses and cannot be deleted")
	}
	return s.children.Delete(ctx, id)
}

func (s *Service) ListChildren(ctx context.Context, parentAccountID uuid.UUID, limit, offset int) ([]*Child, int, error) {
	return s.children.ListByParent(ctx, parentAccountID, limit, offset)
}

// History returns the child's administered doses for one vaccine, ordered by
// dose number.
func (s *Service) History(ctx context.Context, childID, vaccineID uuid.UUID) ([]*DoseRecord, error) {
	if _, err := s.children.GetByID(ctx, childID); err != nil {
		return nil, err
	}
	return s.doses.History(ctx, childID, vaccineID)
}

// RecordDose appends an administered dose. Called only from the appointment
// completion flow, inside its transaction.
func (s *Service) RecordDose(ctx context.Context, childID, vaccineID uuid.UUID, doseNumber int, administered time.Time) (*DoseRecord, error) {
	dr := &DoseRecord{
		ChildID:          childID,
		VaccineID:        vaccineID,
		DoseNumber:       doseNumber,
		AdministeredDate: administered,
	}
	if err := s.doses.Append(ctx, dr); err != nil {
		return nil, err
	}
	return dr, nil
}
