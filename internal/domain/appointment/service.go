package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxflow/vaxflow/internal/domain/child"
	"github.com/vaxflow/vaxflow/internal/domain/eligibility"
	"github.com/vaxflow/vaxflow/internal/platform/clock"
	"github.com/vaxflow/vaxflow/internal/platform/db"
	"github.com/vaxflow/vaxflow/internal/platform/keylock"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

// Service drives the appointment lifecycle. Every mutating operation runs
// under the detail's keyed lock, and every status flip is a conditional
// UPDATE on the previous status, so racing callers cannot both apply.
type Service struct {
	details      DetailRepository
	cancels      CancelRequestRepository
	refunds      RefundRepository
	observations ObservationRepository
	eligibility  *eligibility.Service
	children     *child.Service
	clk          clock.Clock
	loc          *time.Location
	locks        *keylock.Keeper
	cutoff       time.Duration
	log          zerolog.Logger
}

type ServiceConfig struct {
	Details      DetailRepository
	Cancels      CancelRequestRepository
	Refunds      RefundRepository
	Observations ObservationRepository
	Eligibility  *eligibility.Service
	Children     *child.Service
	Clock        clock.Clock
	Location     *time.Location
	Locks        *keylock.Keeper
	CancelCutoff time.Duration
	Logger       zerolog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		details:      cfg.Details,
		cancels:      cfg.Cancels,
		refunds:      cfg.Refunds,
		observations: cfg.Observations,
		eligibility:  cfg.Eligibility,
		children:     cfg.Children,
		clk:          cfg.Clock,
		loc:          loc,
		locks:        cfg.Locks,
		cutoff:       cfg.CancelCutoff,
		log:          cfg.Logger,
	}
}

func lockKey(id uuid.UUID) string { return "appointment:" + id.String() }

// withinCutoff reports whether now has passed the last instant at which a
// cancellation or reschedule is still accepted. Exactly cutoff hours before
// the slot is still allowed; one second later is not.
func (s *Service) withinCutoff(d *AppointmentDetail) bool {
	deadline := d.ScheduledAt(s.loc).Add(-s.cutoff)
	return s.clk.Now().After(deadline)
}

type CreateInput struct {
	ChildID       uuid.UUID
	VaccineID     uuid.UUID
	ScheduledDate time.Time
	TimeFrom      string
}

// Create books a dose. Eligibility is re-evaluated here against the
// scheduled date; an advisory pass at browse time is not trusted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*AppointmentDetail, error) {
	if in.TimeFrom == "" {
		return nil, fmt.Errorf("time_from is required")
	}
	if _, err := time.Parse("15:04:05", in.TimeFrom); err != nil {
		return nil, fmt.Errorf("time_from must be HH:MM:SS")
	}

	decision, err := s.eligibility.EvaluateFor(ctx, in.ChildID, in.VaccineID, in.ScheduledDate)
	if err != nil {
		return nil, err
	}
	if !decision.Eligible {
		return nil, rules.New(decision.ReasonCode, "%s", decision.Reason)
	}

	d := &AppointmentDetail{
		ChildID:       in.ChildID,
		VaccineID:     in.VaccineID,
		DoseNumber:    decision.TargetDose,
		ScheduledDate: in.ScheduledDate,
		TimeFrom:      in.TimeFrom,
		Status:        StatusPending,
	}
	if err := s.details.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info().Str("detail_id", d.ID.String()).Int("dose", d.DoseNumber).Msg("appointment created")
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.details.GetByID(ctx, id)
}

func (s *Service) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]*AppointmentDetail, int, error) {
	return s.details.ListByChild(ctx, childID, limit, offset)
}

// transition advances the detail to the target status under its lock with a
// conditional UPDATE. The current status must have a legal edge to the
// target; a swap miss means the status moved underneath us.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to string) (*AppointmentDetail, error) {
	release, err := s.locks.Acquire(lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := s.details.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, to) {
		return nil, rules.New(rules.InvalidTransition,
			"a %s appointment cannot move to %s", d.Status, to)
	}
	ok, err := s.details.UpdateStatus(ctx, id, d.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rules.New(rules.Contention, "appointment %s changed concurrently", id)
	}
	d.Status = to
	return d, nil
}

// Payment methods.
const (
	PayOnline = "online"
	PayCash   = "cash"
)

// MarkPaid records payment: PENDING→BANKED for online, PENDING→PAID_BY_CASH
// for cash at the counter.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, method string) (*AppointmentDetail, error) {
	var to string
	switch method {
	case PayOnline:
		to = StatusBanked
	case PayCash:
		to = StatusPaidByCash
	default:
		return nil, fmt.Errorf("method must be %q or %q", PayOnline, PayCash)
	}
	return s.transition(ctx, id, to)
}

// RequestCancel opens a customer cancellation request. The detail itself is
// untouched until staff approves; only one request may be open at a time.
func (s *Service) RequestCancel(ctx context.Context, detailID uuid.UUID, reason string) (*CancelRequest, error) {
	if reason == "" {
		return nil, fmt.Errorf("reason is required")
	}

	release, err := s.locks.Acquire(lockKey(detailID))
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := s.details.GetByID(ctx, detailID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, StatusCancelled) {
		return nil, rules.New(rules.InvalidTransition,
			"a %s appointment cannot be cancelled", d.Status)
	}
	if s.withinCutoff(d) {
		return nil, rules.New(rules.WithinCutoffWindow,
			"cancellation must be requested at least %s before the %s slot",
			s.cutoff, d.ScheduledAt(s.loc).Format("2006-01-02 15:04:05"))
	}
	open, err := s.cancels.OpenByDetail(ctx, detailID)
	if err != nil {
		var nf *rules.ErrNotFound
		if !errors.As(err, &nf) {
			return nil, err
		}
	}
	if open != nil {
		return nil, rules.New(rules.InvalidTransition,
			"appointment already has an open cancel request")
	}

	cr := &CancelRequest{
		AppointmentDetailID: detailID,
		Reason:              Reason{Customer: reason},
		Status:              CancelPending,
	}
	if err := s.cancels.Create(ctx, cr); err != nil {
		return nil, err
	}
	return cr, nil
}

type ResolveCancelInput struct {
	Status       string // APPROVED or REJECTED
	StaffReason  *string
	RefundAmount *int64 // minor currency units; required on approval, computed upstream
}

// ResolveCancel is the staff decision on an open request. Approval cancels
// the detail and records the refund in the same transaction; rejection keeps
// the detail as is and stores the staff reason beside the customer's.
// Resolving twice fails with ALREADY_RESOLVED.
func (s *Service) ResolveCancel(ctx context.Context, requestID uuid.UUID, in ResolveCancelInput) (*CancelRequest, error) {
	cr, err := s.cancels.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(lockKey(cr.AppointmentDetailID))
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock; a concurrent resolve may have won.
	cr, err = s.cancels.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if cr.Status != CancelPending {
		return nil, rules.New(rules.AlreadyResolved,
			"cancel request was already %s", cr.Status)
	}

	now := s.clk.Now()
	switch in.Status {
	case CancelApproved:
		if in.RefundAmount == nil {
			return nil, fmt.Errorf("refund_amount is required on approval")
		}
		if *in.RefundAmount < 0 {
			return nil, fmt.Errorf("refund_amount must not be negative")
		}
		err = db.RunInTx(ctx, func(txCtx context.Context) error {
			ok, err := s.cancels.Resolve(txCtx, requestID, CancelApproved, nil, now)
			if err != nil {
				return err
			}
			if !ok {
				return rules.New(rules.AlreadyResolved, "cancel request was already resolved")
			}
			ok, err = s.details.Cancel(txCtx, cr.AppointmentDetailID, cancellableStatuses,
				cr.Reason.Customer, in.RefundAmount)
			if err != nil {
				return err
			}
			if !ok {
				return rules.New(rules.InvalidTransition,
					"appointment can no longer be cancelled")
			}
			return s.refunds.Create(txCtx, &Refund{
				AppointmentDetailID: cr.AppointmentDetailID,
				Amount:              *in.RefundAmount,
				Status:              RefundApproved,
			})
		})
		if err != nil {
			return nil, err
		}
		cr.Status = CancelApproved
		cr.ResolvedAt = &now
		s.log.Info().Str("request_id", requestID.String()).Msg("cancel request approved")
		return cr, nil

	case CancelRejected:
		if in.StaffReason == nil || *in.StaffReason == "" {
			return nil, fmt.Errorf("staff_reason is required on rejection")
		}
		ok, err := s.cancels.Resolve(ctx, requestID, CancelRejected, in.StaffReason, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, rules.New(rules.AlreadyResolved, "cancel request was already resolved")
		}
		cr.Status = CancelRejected
		cr.Reason.StaffRejection = in.StaffReason
		cr.ResolvedAt = &now
		return cr, nil

	default:
		return nil, fmt.Errorf("status must be %q or %q", CancelApproved, CancelRejected)
	}
}

// Reschedule moves the scheduled date. The cutoff is checked against the
// original slot, and the new date must be strictly later than tomorrow.
// Nothing but the date changes.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time) (*AppointmentDetail, error) {
	release, err := s.locks.Acquire(lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := s.details.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, StatusCancelled) {
		return nil, rules.New(rules.InvalidTransition,
			"a %s appointment cannot be rescheduled", d.Status)
	}
	if s.withinCutoff(d) {
		return nil, rules.New(rules.WithinCutoffWindow,
			"reschedule must be requested at least %s before the %s slot",
			s.cutoff, d.ScheduledAt(s.loc).Format("2006-01-02 15:04:05"))
	}

	// The requested date carries no zone of its own, so compare calendar
	// days, reading "today" in the clinic's zone.
	now := s.clk.Now().In(s.loc)
	floor := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	candidate := time.Date(newDate.Year(), newDate.Month(), newDate.Day(), 0, 0, 0, 0, time.UTC)
	if !candidate.After(floor) {
		return nil, fmt.Errorf("new date must be later than tomorrow")
	}

	if err := s.details.Reschedule(ctx, id, newDate); err != nil {
		return nil, err
	}
	d.ScheduledDate = newDate
	return d, nil
}

// CheckIn marks the patient present. Allowed from either paid state, and
// only on the scheduled day.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	release, err := s.locks.Acquire(lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := s.details.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, StatusCheckedIn) {
		return nil, rules.New(rules.InvalidTransition,
			"check-in requires a paid appointment, not %s", d.Status)
	}

	now := s.clk.Now()
	if now.Year() != d.ScheduledDate.Year() || now.YearDay() != d.ScheduledDate.YearDay() {
		return nil, rules.New(rules.InvalidTransition,
			"check-in is only possible on the scheduled day %s",
			d.ScheduledDate.Format("2006-01-02"))
	}

	ok, err := s.details.UpdateStatus(ctx, id, d.Status, StatusCheckedIn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rules.New(rules.Contention, "appointment %s changed concurrently", id)
	}
	d.Status = StatusCheckedIn
	return d, nil
}

type ObservationInput struct {
	Status          string
	TemperatureC    float64
	AbnormalityNote *string
}

// Complete finishes a checked-in appointment. The post-injection
// observation, the dose record, and the status flip commit in one
// transaction; if any write fails the appointment stays CHECKED_IN.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, obs ObservationInput) (*AppointmentDetail, error) {
	switch obs.Status {
	case ObservationNormal:
	case ObservationAbnormal:
		if obs.AbnormalityNote == nil || *obs.AbnormalityNote == "" {
			return nil, fmt.Errorf("abnormality_note is required for an abnormal observation")
		}
	default:
		return nil, fmt.Errorf("observation status must be %q or %q", ObservationNormal, ObservationAbnormal)
	}

	release, err := s.locks.Acquire(lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := s.details.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, StatusCompleted) {
		return nil, rules.New(rules.InvalidTransition,
			"completion requires a checked-in appointment, not %s", d.Status)
	}

	now := s.clk.Now()
	err = db.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.observations.Create(txCtx, &PostInjectionObservation{
			AppointmentDetailID: id,
			Status:              obs.Status,
			TemperatureC:        obs.TemperatureC,
			AbnormalityNote:     obs.AbnormalityNote,
			RecordedAt:          now,
		}); err != nil {
			return err
		}
		if _, err := s.children.RecordDose(txCtx, d.ChildID, d.VaccineID, d.DoseNumber, now); err != nil {
			return err
		}
		ok, err := s.details.UpdateStatus(txCtx, id, StatusCheckedIn, StatusCompleted)
		if err != nil {
			return err
		}
		if !ok {
			return rules.New(rules.Contention, "appointment %s changed concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.Status = StatusCompleted
	s.log.Info().Str("detail_id", id.String()).Int("dose", d.DoseNumber).Msg("appointment completed")
	return d, nil
}

// StaffCancel cancels directly from any pre-check-in state, bypassing the
// request sub-flow. Used for expiry and front-desk cancellations; no refund
// is recorded here.
func (s *Service) StaffCancel(ctx context.Context, id uuid.UUID, reason string) (*AppointmentDetail, error) {
	if reason == "" {
		return nil, fmt.Errorf("reason is required")
	}

	release, err := s.locks.Acquire(lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := s.details.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.details.Cancel(ctx, id, cancellableStatuses, reason, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rules.New(rules.InvalidTransition,
			"a %s appointment cannot be cancelled", d.Status)
	}
	d.Status = StatusCancelled
	d.CancellationReason = &reason
	return d, nil
}

// CancelRequestsFor lists a detail's requests, rejected ones included, so
// both the customer and staff reasons stay retrievable.
func (s *Service) CancelRequestsFor(ctx context.Context, detailID uuid.UUID) ([]*CancelRequest, error) {
	return s.cancels.ListByDetail(ctx, detailID)
}

// ObservationFor returns the completion checkup for a detail.
func (s *Service) ObservationFor(ctx context.Context, detailID uuid.UUID) (*PostInjectionObservation, error) {
	return s.observations.GetByDetail(ctx, detailID)
}

// RefundFor returns the refund recorded for a cancelled detail.
func (s *Service) RefundFor(ctx context.Context, detailID uuid.UUID) (*Refund, error) {
	return s.refunds.GetByDetail(ctx, detailID)
}
