package child

import (
	"context"

	"github.com/google/uuid"
)

type ChildRepository interface {
	Create(ctx context.Context, ch *Child) error
	GetByID(ctx context.Context, id uuid.UUID) (*Child, error)
	Update(ctx context.Context, ch *Child) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByParent(ctx context.Context, parentAccountID uuid.UUID, limit, offset int) ([]*Child, int, error)
}

type DoseRecordRepository interface {
	// Append inserts a new record; dose records are never updated or deleted.
	Append(ctx context.Context, dr *DoseRecord) error
	// History returns the child's records for one vaccine ordered by dose
	// number ascending.
	History(ctx context.Context, childID, vaccineID uuid.UUID) ([]*DoseRecord, error)
	CountByChild(ctx context.Context, childID uuid.UUID) (int, error)
}
