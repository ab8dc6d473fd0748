package coldchain

import (
	"context"

	"github.com/google/uuid"
)

type StorageRepository interface {
	Create(ctx context.Context, s *ColdStorage) error
	GetByID(ctx context.Context, id uuid.UUID) (*ColdStorage, error)
	Update(ctx context.Context, s *ColdStorage) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*ColdStorage, int, error)
	ListAll(ctx context.Context) ([]*ColdStorage, error)
	// AddVials bumps current_vial_count by delta only when the result stays
	// within 0..storage_capacity, reporting whether it applied. This is the
	// authoritative capacity check under concurrency.
	AddVials(ctx context.Context, id uuid.UUID, delta int) (bool, error)
}

type BatchRepository interface {
	Create(ctx context.Context, b *VaccineBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*VaccineBatch, error)
	Update(ctx context.Context, b *VaccineBatch) error
	List(ctx context.Context, limit, offset int) ([]*VaccineBatch, int, error)
	ListByStorage(ctx context.Context, storageID uuid.UUID) ([]*VaccineBatch, error)
	// SetStorage points the batch at a storage (nil clears it), only when the
	// current assignment matches expect.
	SetStorage(ctx context.Context, id uuid.UUID, expect, to *uuid.UUID) (bool, error)
}
