package coldchain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxflow/vaxflow/internal/domain/vaccine"
	"github.com/vaxflow/vaxflow/internal/platform/clock"
	"github.com/vaxflow/vaxflow/internal/platform/db"
	"github.com/vaxflow/vaxflow/internal/platform/keylock"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

// Service owns storage intake. Candidate listing is an advisory, lock-free
// read; Assign re-validates everything under the storage's lock before
// committing, so a stale candidate list can never overfill a unit.
type Service struct {
	storages StorageRepository
	batches  BatchRepository
	vaccines *vaccine.Service
	clk      clock.Clock
	locks    *keylock.Keeper
	log      zerolog.Logger
}

func NewService(storages StorageRepository, batches BatchRepository,
	vaccines *vaccine.Service, clk clock.Clock, locks *keylock.Keeper, log zerolog.Logger) *Service {
	return &Service{
		storages: storages,
		batches:  batches,
		vaccines: vaccines,
		clk:      clk,
		locks:    locks,
		log:      log,
	}
}

func storageLockKey(id uuid.UUID) string { return "coldstorage:" + id.String() }

// -- ColdStorage CRUD --

func validateStorage(s *ColdStorage) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.MinTemperatureThreshold >= s.MaxTemperatureThreshold {
		return fmt.Errorf("min_temperature_threshold must be below max_temperature_threshold")
	}
	if s.StorageCapacity <= 0 {
		return fmt.Errorf("storage_capacity must be positive")
	}
	return nil
}

func (s *Service) CreateStorage(ctx context.Context, cs *ColdStorage) error {
	if err := validateStorage(cs); err != nil {
		return err
	}
	if cs.EffectiveFrom.IsZero() {
		cs.EffectiveFrom = s.clk.Now()
	}
	cs.CurrentVialCount = 0
	return s.storages.Create(ctx, cs)
}

func (s *Service) GetStorage(ctx context.Context, id uuid.UUID) (*ColdStorage, error) {
	return s.storages.GetByID(ctx, id)
}

func (s *Service) UpdateStorage(ctx context.Context, cs *ColdStorage) error {
	if err := validateStorage(cs); err != nil {
		return err
	}

	release, err := s.locks.Acquire(storageLockKey(cs.ID))
	if err != nil {
		return err
	}
	defer release()

	cur, err := s.storages.GetByID(ctx, cs.ID)
	if err != nil {
		return err
	}
	if !cs.IsActive && cur.IsActive && cur.CurrentVialCount > 0 {
		return fmt.Errorf("storage holds %d vials and cannot be deactivated", cur.CurrentVialCount)
	}
	if cs.StorageCapacity < cur.CurrentVialCount {
		return fmt.Errorf("capacity %d is below the current vial count %d", cs.StorageCapacity, cur.CurrentVialCount)
	}
	return s.storages.Update(ctx, cs)
}

func (s *Service) DeleteStorage(ctx context.Context, id uuid.UUID) error {
	release, err := s.locks.Acquire(storageLockKey(id))
	if err != nil {
		return err
	}
	defer release()

	cur, err := s.storages.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cur.CurrentVialCount > 0 {
		return fmt.Errorf("storage holds %d vials and cannot be deleted", cur.CurrentVialCount)
	}
	return s.storages.Delete(ctx, id)
}

func (s *Service) ListStorages(ctx context.Context, limit, offset int) ([]*ColdStorage, int, error) {
	return s.storages.List(ctx, limit, offset)
}

// -- VaccineBatch CRUD --

func validateBatch(b *VaccineBatch) error {
	if b.BatchNumber == "" {
		return fmt.Errorf("batch_number is required")
	}
	if !b.ExpiryDate.After(b.ManufactureDate) {
		return fmt.Errorf("expiry_date must be after manufacture_date")
	}
	if b.InitialQuantity <= 0 {
		return fmt.Errorf("initial_quantity must be positive")
	}
	if b.CurrentQuantity < 0 || b.CurrentQuantity > b.InitialQuantity {
		return fmt.Errorf("current_quantity must be within 0..initial_quantity")
	}
	return nil
}

func (s *Service) CreateBatch(ctx context.Context, b *VaccineBatch) error {
	if _, err := s.vaccines.GetVaccine(ctx, b.VaccineID); err != nil {
		return err
	}
	if b.CurrentQuantity == 0 {
		b.CurrentQuantity = b.InitialQuantity
	}
	if err := validateBatch(b); err != nil {
		return err
	}
	if b.Status == "" {
		b.Status = BatchAvailable
	}
	b.ColdStorageID = nil
	return s.batches.Create(ctx, b)
}

func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (*VaccineBatch, error) {
	return s.batches.GetByID(ctx, id)
}

func (s *Service) UpdateBatch(ctx context.Context, b *VaccineBatch) error {
	if err := validateBatch(b); err != nil {
		return err
	}
	// An available batch that runs dry flips to sold out.
	if b.CurrentQuantity == 0 && b.Status == BatchAvailable {
		b.Status = BatchSoldOut
	}
	return s.batches.Update(ctx, b)
}

func (s *Service) ListBatches(ctx context.Context, limit, offset int) ([]*VaccineBatch, int, error) {
	return s.batches.List(ctx, limit, offset)
}

// envelopeFor reads the batch's required storage range off its vaccine.
func (s *Service) envelopeFor(ctx context.Context, b *VaccineBatch) (Envelope, error) {
	v, err := s.vaccines.GetVaccine(ctx, b.VaccineID)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Min: v.MinTemperatureConditions, Max: v.MaxTemperatureConditions}, nil
}

// Candidates lists the storages able to take the whole batch today, best
// fit first. Advisory: the authoritative check runs again inside Assign.
func (s *Service) Candidates(ctx context.Context, batchID uuid.UUID) ([]*ColdStorage, error) {
	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	env, err := s.envelopeFor(ctx, b)
	if err != nil {
		return nil, err
	}
	storages, err := s.storages.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return FindCandidates(b, env, storages, s.clk.Now()), nil
}

// Assign places the batch into the storage. All four candidate conditions
// are re-validated under the storage's lock, then the vial count bump and
// the batch back-reference commit together; a failure leaves both sides
// untouched.
func (s *Service) Assign(ctx context.Context, batchID, storageID uuid.UUID) error {
	release, err := s.locks.Acquire(storageLockKey(storageID))
	if err != nil {
		return err
	}
	defer release()

	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	if b.ColdStorageID != nil {
		return rules.New(rules.InvalidTransition,
			"batch %s is already assigned to a storage", b.BatchNumber)
	}
	env, err := s.envelopeFor(ctx, b)
	if err != nil {
		return err
	}
	st, err := s.storages.GetByID(ctx, storageID)
	if err != nil {
		return err
	}
	if v := checkStorage(st, env, b.CurrentQuantity, s.clk.Now()); v != nil {
		return v
	}

	err = db.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.storages.AddVials(txCtx, storageID, b.CurrentQuantity)
		if err != nil {
			return err
		}
		if !ok {
			return rules.New(rules.InsufficientCapacity,
				"storage %s can no longer take %d vials", st.Name, b.CurrentQuantity)
		}
		ok, err = s.batches.SetStorage(txCtx, batchID, nil, &storageID)
		if err != nil {
			return err
		}
		if !ok {
			return rules.New(rules.Contention, "batch %s changed concurrently", batchID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("batch", b.BatchNumber).Str("storage", st.Name).
		Int("quantity", b.CurrentQuantity).Msg("batch assigned to cold storage")
	return nil
}

// Release takes the batch back out of its storage, returning the vial count
// and clearing the back-reference together.
func (s *Service) Release(ctx context.Context, batchID uuid.UUID) error {
	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	if b.ColdStorageID == nil {
		return rules.New(rules.InvalidTransition,
			"batch %s is not assigned to a storage", b.BatchNumber)
	}
	storageID := *b.ColdStorageID

	release, err := s.locks.Acquire(storageLockKey(storageID))
	if err != nil {
		return err
	}
	defer release()

	return db.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.batches.SetStorage(txCtx, batchID, &storageID, nil)
		if err != nil {
			return err
		}
		if !ok {
			return rules.New(rules.Contention, "batch %s changed concurrently", batchID)
		}
		ok, err = s.storages.AddVials(txCtx, storageID, -b.CurrentQuantity)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("vial count for storage %s would go negative", storageID)
		}
		return nil
	})
}
