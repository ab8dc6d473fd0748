package vaccine

import (
	"context"

	"github.com/google/uuid"
)

type VaccineRepository interface {
	Create(ctx context.Context, v *Vaccine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccine, error)
	GetByCode(ctx context.Context, code string) (*Vaccine, error)
	Update(ctx context.Context, v *Vaccine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Vaccine, int, error)
}

type RuleRepository interface {
	Create(ctx context.Context, r *DoseIntervalRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*DoseIntervalRule, error)
	Update(ctx context.Context, r *DoseIntervalRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByVaccine(ctx context.Context, vaccineID uuid.UUID) ([]*DoseIntervalRule, error)
}
