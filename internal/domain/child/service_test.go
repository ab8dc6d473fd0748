package child

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vaxflow/vaxflow/internal/platform/clock"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

type mockChildRepo struct {
	children map[uuid.UUID]*Child
}

func newMockChildRepo() *mockChildRepo {
	return &mockChildRepo{children: make(map[uuid.UUID]*Child)}
}

func (m *mockChildRepo) Create(_ context.Context, ch *Child) error {
	ch.ID = uuid.New()
	m.children[ch.ID] = ch
	return nil
}

func (m *mockChildRepo) GetByID(_ context.Context, id uuid.UUID) (*Child, error) {
	ch, ok := m.children[id]
	if !ok {
		return nil, rules.NotFound("child", id.String())
	}
	return ch, nil
}

func (m *mockChildRepo) Update(_ context.Context, ch *Child) error {
	m.children[ch.ID] = ch
	return nil
}

func (m *mockChildRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.children, id)
	return nil
}

func (m *mockChildRepo) ListByParent(_ context.Context, parentID uuid.UUID, limit, offset int) ([]*Child, int, error) {
	var items []*Child
	for _, ch := range m.children {
		if ch.ParentAccountID == parentID {
			items = append(items, ch)
		}
	}
	return items, len(items), nil
}

type mockDoseRepo struct {
	records []*DoseRecord
}

func (m *mockDoseRepo) Append(_ context.Context, dr *DoseRecord) error {
	dr.ID = uuid.New()
	m.records = append(m.records, dr)
	return nil
}

func (m *mockDoseRepo) History(_ context.Context, childID, vaccineID uuid.UUID) ([]*DoseRecord, error) {
	var items []*DoseRecord
	for _, dr := range m.records {
		if dr.ChildID == childID && dr.VaccineID == vaccineID {
			items = append(items, dr)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DoseNumber < items[j].DoseNumber })
	return items, nil
}

func (m *mockDoseRepo) CountByChild(_ context.Context, childID uuid.UUID) (int, error) {
	n := 0
	for _, dr := range m.records {
		if dr.ChildID == childID {
			n++
		}
	}
	return n, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService() (*Service, *mockChildRepo, *mockDoseRepo) {
	cr := newMockChildRepo()
	dr := &mockDoseRepo{}
	clk := clock.Fixed{T: date(2024, time.June, 1)}
	return NewService(cr, dr, clk), cr, dr
}

func TestCreateChild_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.CreateChild(context.Background(), &Child{
		ParentAccountID: uuid.New(), FullName: "An Nguyen",
		DateOfBirth: date(2025, time.January, 1),
	})
	if err == nil {
		t.Error("expected error for future date of birth")
	}

	err = svc.CreateChild(context.Background(), &Child{
		ParentAccountID: uuid.New(), DateOfBirth: date(2024, time.January, 1),
	})
	if err == nil {
		t.Error("expected error for missing full_name")
	}
}

func TestUpdateChild_FrozenAfterDoses(t *testing.T) {
	svc, cr, dr := newTestService()
	ch := &Child{ParentAccountID: uuid.New(), FullName: "An Nguyen",
		DateOfBirth: date(2024, time.January, 1), Gender: "F"}
	cr.Create(context.Background(), ch)

	dr.Append(context.Background(), &DoseRecord{
		ChildID: ch.ID, VaccineID: uuid.New(), DoseNumber: 1,
		AdministeredDate: date(2024, time.March, 1),
	})

	edit := *ch
	edit.FullName = "An T. Nguyen"
	if err := svc.UpdateChild(context.Background(), &edit); err == nil {
		t.Error("expected guardian edit to be blocked once doses exist")
	}

	// The admin corrective path still works.
	if err := svc.UpdateChildCorrective(context.Background(), &edit); err != nil {
		t.Errorf("corrective update failed: %v", err)
	}

	if err := svc.DeleteChild(context.Background(), ch.ID); err == nil {
		t.Error("expected delete to be blocked once doses exist")
	}
}

func TestHistory_OrderedByDoseNumber(t *testing.T) {
	svc, cr, dr := newTestService()
	ch := &Child{ParentAccountID: uuid.New(), FullName: "An Nguyen",
		DateOfBirth: date(2024, time.January, 1)}
	cr.Create(context.Background(), ch)
	vaccineID := uuid.New()

	dr.Append(context.Background(), &DoseRecord{ChildID: ch.ID, VaccineID: vaccineID,
		DoseNumber: 2, AdministeredDate: date(2024, time.March, 29)})
	dr.Append(context.Background(), &DoseRecord{ChildID: ch.ID, VaccineID: vaccineID,
		DoseNumber: 1, AdministeredDate: date(2024, time.March, 1)})

	got, err := svc.History(context.Background(), ch.ID, vaccineID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].DoseNumber != 1 || got[1].DoseNumber != 2 {
		t.Errorf("expected doses ordered 1,2; got %+v", got)
	}

	if _, err := svc.History(context.Background(), uuid.New(), vaccineID); err == nil {
		t.Error("expected not-found for unknown child")
	}
}
