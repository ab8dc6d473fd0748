package coldchain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxflow/vaxflow/internal/domain/vaccine"
	"github.com/vaxflow/vaxflow/internal/platform/clock"
	"github.com/vaxflow/vaxflow/internal/platform/keylock"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

type memStorageRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*ColdStorage
}

func newMemStorageRepo() *memStorageRepo {
	return &memStorageRepo{items: map[uuid.UUID]*ColdStorage{}}
}

func (r *memStorageRepo) Create(_ context.Context, s *ColdStorage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *memStorageRepo) GetByID(_ context.Context, id uuid.UUID) (*ColdStorage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, rules.NotFound("cold storage", id.String())
	}
	cp := *s
	return &cp, nil
}

func (r *memStorageRepo) Update(_ context.Context, s *ColdStorage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[s.ID]
	if !ok {
		return rules.NotFound("cold storage", s.ID.String())
	}
	cp := *s
	cp.CurrentVialCount = cur.CurrentVialCount
	r.items[s.ID] = &cp
	return nil
}

func (r *memStorageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memStorageRepo) List(_ context.Context, _, _ int) ([]*ColdStorage, int, error) {
	all, err := r.ListAll(context.Background())
	return all, len(all), err
}

func (r *memStorageRepo) ListAll(_ context.Context) ([]*ColdStorage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ColdStorage
	for _, s := range r.items {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memStorageRepo) AddVials(_ context.Context, id uuid.UUID, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return false, nil
	}
	next := s.CurrentVialCount + delta
	if next < 0 || next > s.StorageCapacity {
		return false, nil
	}
	s.CurrentVialCount = next
	return true, nil
}

type memBatchRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*VaccineBatch
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{items: map[uuid.UUID]*VaccineBatch{}}
}

func (r *memBatchRepo) Create(_ context.Context, b *VaccineBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *memBatchRepo) GetByID(_ context.Context, id uuid.UUID) (*VaccineBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, rules.NotFound("vaccine batch", id.String())
	}
	cp := *b
	return &cp, nil
}

func (r *memBatchRepo) Update(_ context.Context, b *VaccineBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[b.ID]
	if !ok {
		return rules.NotFound("vaccine batch", b.ID.String())
	}
	cp := *b
	cp.ColdStorageID = cur.ColdStorageID
	r.items[b.ID] = &cp
	return nil
}

func (r *memBatchRepo) List(_ context.Context, _, _ int) ([]*VaccineBatch, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*VaccineBatch
	for _, b := range r.items {
		cp := *b
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *memBatchRepo) ListByStorage(_ context.Context, storageID uuid.UUID) ([]*VaccineBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*VaccineBatch
	for _, b := range r.items {
		if b.ColdStorageID != nil && *b.ColdStorageID == storageID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBatchRepo) SetStorage(_ context.Context, id uuid.UUID, expect, to *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return false, nil
	}
	switch {
	case expect == nil && b.ColdStorageID != nil:
		return false, nil
	case expect != nil && (b.ColdStorageID == nil || *b.ColdStorageID != *expect):
		return false, nil
	}
	b.ColdStorageID = to
	return true, nil
}

type stubVaccineRepo struct {
	items map[uuid.UUID]*vaccine.Vaccine
}

func (r *stubVaccineRepo) Create(_ context.Context, _ *vaccine.Vaccine) error { return nil }
func (r *stubVaccineRepo) GetByID(_ context.Context, id uuid.UUID) (*vaccine.Vaccine, error) {
	v, ok := r.items[id]
	if !ok {
		return nil, rules.NotFound("vaccine", id.String())
	}
	return v, nil
}
func (r *stubVaccineRepo) GetByCode(_ context.Context, code string) (*vaccine.Vaccine, error) {
	return nil, rules.NotFound("vaccine", code)
}
func (r *stubVaccineRepo) Update(_ context.Context, _ *vaccine.Vaccine) error { return nil }
func (r *stubVaccineRepo) Delete(_ context.Context, _ uuid.UUID) error        { return nil }
func (r *stubVaccineRepo) List(_ context.Context, _, _ int) ([]*vaccine.Vaccine, int, error) {
	return nil, 0, nil
}

type stubRuleRepo struct{}

func (stubRuleRepo) Create(_ context.Context, _ *vaccine.DoseIntervalRule) error { return nil }
func (stubRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*vaccine.DoseIntervalRule, error) {
	return nil, rules.NotFound("dose interval rule", id.String())
}
func (stubRuleRepo) Update(_ context.Context, _ *vaccine.DoseIntervalRule) error { return nil }
func (stubRuleRepo) Delete(_ context.Context, _ uuid.UUID) error                 { return nil }
func (stubRuleRepo) ListByVaccine(_ context.Context, _ uuid.UUID) ([]*vaccine.DoseIntervalRule, error) {
	return nil, nil
}

type fixture struct {
	svc      *Service
	storages *memStorageRepo
	batches  *memBatchRepo
	vaccID   uuid.UUID
}

// newFixture wires the service against in-memory repos with one vaccine
// whose batches must sit in [-18,-16]°C.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	vaccID := uuid.New()
	vaccines := &stubVaccineRepo{items: map[uuid.UUID]*vaccine.Vaccine{
		vaccID: {
			ID:                       vaccID,
			Code:                     "MMR",
			Name:                     "Measles-Mumps-Rubella",
			LifetimeDoseLimit:        2,
			MinTemperatureConditions: -18,
			MaxTemperatureConditions: -16,
			Active:                   true,
		},
	}}
	storages := newMemStorageRepo()
	batches := newMemBatchRepo()
	svc := NewService(
		storages, batches,
		vaccine.NewService(vaccines, stubRuleRepo{}),
		clock.Fixed{T: today},
		keylock.NewKeeper(500*time.Millisecond),
		zerolog.Nop(),
	)
	return &fixture{svc: svc, storages: storages, batches: batches, vaccID: vaccID}
}

func (f *fixture) storage(t *testing.T, name string, min, max float64, capacity, current int) *ColdStorage {
	t.Helper()
	s := testStorage(name, min, max, capacity, current)
	if err := f.storages.Create(context.Background(), s); err != nil {
		t.Fatalf("create storage: %v", err)
	}
	return s
}

func (f *fixture) batch(t *testing.T, quantity int) *VaccineBatch {
	t.Helper()
	b := testBatch(quantity)
	b.VaccineID = f.vaccID
	if err := f.batches.Create(context.Background(), b); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return b
}

func TestCreateStorage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := []*ColdStorage{
		{Name: "", MinTemperatureThreshold: -20, MaxTemperatureThreshold: -15, StorageCapacity: 10},
		{Name: "x", MinTemperatureThreshold: -15, MaxTemperatureThreshold: -20, StorageCapacity: 10},
		{Name: "x", MinTemperatureThreshold: -15, MaxTemperatureThreshold: -15, StorageCapacity: 10},
		{Name: "x", MinTemperatureThreshold: -20, MaxTemperatureThreshold: -15, StorageCapacity: 0},
	}
	for i, s := range bad {
		if err := f.svc.CreateStorage(ctx, s); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	ok := &ColdStorage{Name: "freezer-1", MinTemperatureThreshold: -20,
		MaxTemperatureThreshold: -15, StorageCapacity: 100, IsActive: true}
	if err := f.svc.CreateStorage(ctx, ok); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok.EffectiveFrom.IsZero() {
		t.Fatal("effective_from should default to now")
	}
}

func TestDeactivateStorage_BlockedWhileHoldingVials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.storage(t, "freezer-1", -20, -15, 100, 0)
	b := f.batch(t, 10)

	if err := f.svc.Assign(ctx, b.ID, s.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	upd := *s
	upd.IsActive = false
	if err := f.svc.UpdateStorage(ctx, &upd); err == nil {
		t.Fatal("expected deactivation to be refused while vials are stored")
	}
	if err := f.svc.DeleteStorage(ctx, s.ID); err == nil {
		t.Fatal("expected delete to be refused while vials are stored")
	}

	if err := f.svc.Release(ctx, b.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := f.svc.UpdateStorage(ctx, &upd); err != nil {
		t.Fatalf("deactivate after release: %v", err)
	}
}

func TestUpdateStorage_CapacityBelowVialCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.storage(t, "freezer-1", -20, -15, 100, 0)
	b := f.batch(t, 40)
	if err := f.svc.Assign(ctx, b.ID, s.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	upd := *s
	upd.StorageCapacity = 30
	if err := f.svc.UpdateStorage(ctx, &upd); err == nil {
		t.Fatal("expected shrink below vial count to be refused")
	}
	upd.StorageCapacity = 40
	if err := f.svc.UpdateStorage(ctx, &upd); err != nil {
		t.Fatalf("shrink to exactly the vial count: %v", err)
	}
}

func TestCreateBatch_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := testBatch(10)
	b.VaccineID = uuid.New() // unknown vaccine
	if err := f.svc.CreateBatch(ctx, b); err == nil {
		t.Fatal("expected unknown vaccine to be refused")
	}

	b = testBatch(10)
	b.VaccineID = f.vaccID
	b.ExpiryDate = b.ManufactureDate
	if err := f.svc.CreateBatch(ctx, b); err == nil {
		t.Fatal("expected expiry on manufacture date to be refused")
	}

	b = testBatch(10)
	b.VaccineID = f.vaccID
	b.CurrentQuantity = 11
	if err := f.svc.CreateBatch(ctx, b); err == nil {
		t.Fatal("expected current above initial to be refused")
	}

	b = testBatch(10)
	b.VaccineID = f.vaccID
	b.CurrentQuantity = 0
	b.Status = ""
	if err := f.svc.CreateBatch(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.CurrentQuantity != 10 {
		t.Fatalf("current_quantity should default to initial, got %d", b.CurrentQuantity)
	}
	if b.Status != BatchAvailable {
		t.Fatalf("status should default to %s, got %s", BatchAvailable, b.Status)
	}
}

func TestUpdateBatch_SoldOutAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.batch(t, 10)

	b.CurrentQuantity = 0
	if err := f.svc.UpdateBatch(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}
	if b.Status != BatchSoldOut {
		t.Fatalf("expected %s at zero quantity, got %s", BatchSoldOut, b.Status)
	}
}

func TestCandidates_ExcludesFilledStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	small := f.storage(t, "small", -19, -15, 12, 0)
	f.storage(t, "big", -20, -14, 100, 0)

	first := f.batch(t, 8)
	second := f.batch(t, 8)

	got, err := f.svc.Candidates(ctx, first.ID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(got) != 2 || got[0].Name != "small" {
		t.Fatalf("expected [small big], got %d candidates", len(got))
	}

	if err := f.svc.Assign(ctx, first.ID, small.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// small now holds 8 of 12 and cannot take another 8.
	got, err = f.svc.Candidates(ctx, second.ID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(got) != 1 || got[0].Name != "big" {
		t.Fatalf("expected only big after fill, got %d candidates", len(got))
	}
}

func TestAssign_UpdatesBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.storage(t, "freezer-1", -20, -15, 100, 0)
	b := f.batch(t, 10)

	if err := f.svc.Assign(ctx, b.ID, s.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	gotB, _ := f.batches.GetByID(ctx, b.ID)
	if gotB.ColdStorageID == nil || *gotB.ColdStorageID != s.ID {
		t.Fatal("batch back-reference not set")
	}
	gotS, _ := f.storages.GetByID(ctx, s.ID)
	if gotS.CurrentVialCount != 10 {
		t.Fatalf("expected 10 vials stored, got %d", gotS.CurrentVialCount)
	}
}

func TestAssign_AlreadyAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.storage(t, "freezer-1", -20, -15, 100, 0)
	other := f.storage(t, "freezer-2", -20, -15, 100, 0)
	b := f.batch(t, 10)

	if err := f.svc.Assign(ctx, b.ID, s.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	err := f.svc.Assign(ctx, b.ID, other.ID)
	if !rules.Is(err, rules.InvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
	gotOther, _ := f.storages.GetByID(ctx, other.ID)
	if gotOther.CurrentVialCount != 0 {
		t.Fatalf("second storage must be untouched, has %d vials", gotOther.CurrentVialCount)
	}
}

func TestAssign_EnvelopeMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.storage(t, "fridge", -17, -10, 100, 0)
	b := f.batch(t, 10)

	err := f.svc.Assign(ctx, b.ID, s.ID)
	if !rules.Is(err, rules.TemperatureEnvelopeMismatch) {
		t.Fatalf("expected TEMPERATURE_ENVELOPE_MISMATCH, got %v", err)
	}
	gotB, _ := f.batches.GetByID(ctx, b.ID)
	if gotB.ColdStorageID != nil {
		t.Fatal("batch must stay unassigned after a refused assign")
	}
}

// Two batches race for a unit that can only hold one of them. Exactly one
// assign must win; the loser sees INSUFFICIENT_CAPACITY and leaves no
// partial state.
func TestAssign_ConcurrentCapacityRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.storage(t, "freezer-1", -20, -15, 10, 0)
	b1 := f.batch(t, 8)
	b2 := f.batch(t, 8)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for _, id := range []uuid.UUID{b1.ID, b2.ID} {
		go func(batchID uuid.UUID) {
			defer wg.Done()
			errs <- f.svc.Assign(ctx, batchID, s.ID)
		}(id)
	}
	wg.Wait()
	close(errs)

	var wins, capacityLosses int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case rules.Is(err, rules.InsufficientCapacity):
			capacityLosses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || capacityLosses != 1 {
		t.Fatalf("expected exactly one winner and one capacity loss, got %d/%d", wins, capacityLosses)
	}
	gotS, _ := f.storages.GetByID(ctx, s.ID)
	if gotS.CurrentVialCount != 8 {
		t.Fatalf("expected 8 vials after the race, got %d", gotS.CurrentVialCount)
	}
}

func TestRelease_RestoresCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.storage(t, "freezer-1", -20, -15, 10, 0)
	b := f.batch(t, 8)

	if err := f.svc.Assign(ctx, b.ID, s.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := f.svc.Release(ctx, b.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	gotB, _ := f.batches.GetByID(ctx, b.ID)
	if gotB.ColdStorageID != nil {
		t.Fatal("back-reference must clear on release")
	}
	gotS, _ := f.storages.GetByID(ctx, s.ID)
	if gotS.CurrentVialCount != 0 {
		t.Fatalf("expected 0 vials after release, got %d", gotS.CurrentVialCount)
	}

	err := f.svc.Release(ctx, b.ID)
	if !rules.Is(err, rules.InvalidTransition) {
		t.Fatalf("second release should fail INVALID_TRANSITION, got %v", err)
	}
}
