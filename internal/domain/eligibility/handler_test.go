package eligibility

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxflow/vaxflow/internal/domain/child"
	"github.com/vaxflow/vaxflow/internal/domain/vaccine"
	"github.com/vaxflow/vaxflow/internal/platform/clock"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

type stubVaccineRepo struct{ v *vaccine.Vaccine }

func (s *stubVaccineRepo) Create(context.Context, *vaccine.Vaccine) error { return nil }
func (s *stubVaccineRepo) GetByID(_ context.Context, id uuid.UUID) (*vaccine.Vaccine, error) {
	if s.v != nil && s.v.ID == id {
		return s.v, nil
	}
	return nil, rules.NotFound("vaccine", id.String())
}
func (s *stubVaccineRepo) GetByCode(_ context.Context, code string) (*vaccine.Vaccine, error) {
	return nil, rules.NotFound("vaccine", code)
}
func (s *stubVaccineRepo) Update(context.Context, *vaccine.Vaccine) error { return nil }
func (s *stubVaccineRepo) Delete(context.Context, uuid.UUID) error        { return nil }
func (s *stubVaccineRepo) List(context.Context, int, int) ([]*vaccine.Vaccine, int, error) {
	return nil, 0, nil
}

type stubRuleRepo struct{ rules []*vaccine.DoseIntervalRule }

func (s *stubRuleRepo) Create(context.Context, *vaccine.DoseIntervalRule) error { return nil }
func (s *stubRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*vaccine.DoseIntervalRule, error) {
	return nil, rules.NotFound("dose interval rule", id.String())
}
func (s *stubRuleRepo) Update(context.Context, *vaccine.DoseIntervalRule) error { return nil }
func (s *stubRuleRepo) Delete(context.Context, uuid.UUID) error                 { return nil }
func (s *stubRuleRepo) ListByVaccine(context.Context, uuid.UUID) ([]*vaccine.DoseIntervalRule, error) {
	return s.rules, nil
}

type stubChildRepo struct{ ch *child.Child }

func (s *stubChildRepo) Create(context.Context, *child.Child) error { return nil }
func (s *stubChildRepo) GetByID(_ context.Context, id uuid.UUID) (*child.Child, error) {
	if s.ch != nil && s.ch.ID == id {
		return s.ch, nil
	}
	return nil, rules.NotFound("child", id.String())
}
func (s *stubChildRepo) Update(context.Context, *child.Child) error { return nil }
func (s *stubChildRepo) Delete(context.Context, uuid.UUID) error    { return nil }
func (s *stubChildRepo) ListByParent(context.Context, uuid.UUID, int, int) ([]*child.Child, int, error) {
	return nil, 0, nil
}

type stubDoseRepo struct{ records []*child.DoseRecord }

func (s *stubDoseRepo) Append(_ context.Context, dr *child.DoseRecord) error {
	s.records = append(s.records, dr)
	return nil
}
func (s *stubDoseRepo) History(_ context.Context, childID, vaccineID uuid.UUID) ([]*child.DoseRecord, error) {
	var out []*child.DoseRecord
	for _, dr := range s.records {
		if dr.ChildID == childID && dr.VaccineID == vaccineID {
			out = append(out, dr)
		}
	}
	return out, nil
}
func (s *stubDoseRepo) CountByChild(_ context.Context, childID uuid.UUID) (int, error) {
	return len(s.records), nil
}

func newTestHandler(t *testing.T) (*Handler, *vaccine.Vaccine, *child.Child, *stubDoseRepo) {
	t.Helper()
	v := &vaccine.Vaccine{
		ID: uuid.New(), Code: "5in1", Name: "Pentavalent",
		LifetimeDoseLimit:        2,
		MinTemperatureConditions: 2, MaxTemperatureConditions: 8, Active: true,
	}
	ruleList := []*vaccine.DoseIntervalRule{
		{ID: uuid.New(), VaccineID: v.ID, FromDoseNumber: 0, ToDoseNumber: 1,
			ValidateBy: vaccine.ValidateByMonths, MinAgeApplicableMonth: intPtr(2), DaysBetween: 0},
		{ID: uuid.New(), VaccineID: v.ID, FromDoseNumber: 1, ToDoseNumber: 2,
			ValidateBy: vaccine.ValidateByMonths, MinAgeApplicableMonth: intPtr(4), DaysBetween: 28},
	}
	ch := &child.Child{ID: uuid.New(), ParentAccountID: uuid.New(),
		FullName: "An Nguyen", DateOfBirth: date(2024, time.January, 1)}

	doses := &stubDoseRepo{}
	vaccineSvc := vaccine.NewService(&stubVaccineRepo{v: v}, &stubRuleRepo{rules: ruleList})
	childSvc := child.NewService(&stubChildRepo{ch: ch}, doses,
		clock.Fixed{T: date(2024, time.June, 1)})
	return NewHandler(NewService(vaccineSvc, childSvc)), v, ch, doses
}

func postEvaluate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/eligibility/evaluate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Evaluate(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestEvaluateHandler_Eligible(t *testing.T) {
	h, v, ch, _ := newTestHandler(t)

	rec := postEvaluate(t, h, `{"child_id":"`+ch.ID.String()+`","vaccine_id":"`+v.ID.String()+`","candidate_date":"2024-03-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp evaluateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Eligible || resp.TargetDose != 1 {
		t.Errorf("expected eligible dose 1, got %+v", resp)
	}
}

func TestEvaluateHandler_IntervalNotMet(t *testing.T) {
	h, v, ch, doses := newTestHandler(t)
	doses.Append(context.Background(), &child.DoseRecord{
		ID: uuid.New(), ChildID: ch.ID, VaccineID: v.ID,
		DoseNumber: 1, AdministeredDate: date(2024, time.March, 1),
	})

	rec := postEvaluate(t, h, `{"child_id":"`+ch.ID.String()+`","vaccine_id":"`+v.ID.String()+`","candidate_date":"2024-03-20"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp evaluateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Eligible || resp.ReasonCode != rules.IntervalNotMet {
		t.Errorf("expected INTERVAL_NOT_MET, got %+v", resp)
	}
	if resp.NextAllowedDate == nil || *resp.NextAllowedDate != "2024-03-29" {
		t.Errorf("expected next_allowed_date 2024-03-29, got %v", resp.NextAllowedDate)
	}
}

func TestEvaluateHandler_BadDate(t *testing.T) {
	h, v, ch, _ := newTestHandler(t)
	rec := postEvaluate(t, h, `{"child_id":"`+ch.ID.String()+`","vaccine_id":"`+v.ID.String()+`","candidate_date":"20/03/2024"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestEvaluateHandler_UnknownChild(t *testing.T) {
	h, v, _, _ := newTestHandler(t)
	rec := postEvaluate(t, h, `{"child_id":"`+uuid.New().String()+`","vaccine_id":"`+v.ID.String()+`","candidate_date":"2024-03-01"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown child, got %d", rec.Code)
	}
}
