// Package appointment owns the lifecycle of a scheduled dose: payment,
// check-in, completion, and the cancellation/refund/reschedule sub-flows.
package appointment

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Appointment detail statuses.
const (
	StatusPending    = "PENDING"      // awaiting online payment
	StatusBanked     = "BANKED"       // paid online
	StatusPaidByCash = "PAID_BY_CASH" // paid at the counter
	StatusCheckedIn  = "CHECKED_IN"   // patient physically present
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// allowedTransitions is the full state machine. CHECKED_IN can only advance
// to COMPLETED; the terminal states have no exits.
var allowedTransitions = map[string]map[string]bool{
	StatusPending:    {StatusBanked: true, StatusPaidByCash: true, StatusCancelled: true},
	StatusBanked:     {StatusCheckedIn: true, StatusCancelled: true},
	StatusPaidByCash: {StatusCheckedIn: true, StatusCancelled: true},
	StatusCheckedIn:  {StatusCompleted: true},
}

// CanTransition reports whether from→to is a legal lifecycle edge.
func CanTransition(from, to string) bool {
	return allowedTransitions[from][to]
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(status string) bool {
	return len(allowedTransitions[status]) == 0
}

// cancellableStatuses are the states a detail may leave for CANCELLED,
// derived from the state machine so the two can never disagree.
var cancellableStatuses = func() []string {
	var from []string
	for s, outs := range allowedTransitions {
		if outs[StatusCancelled] {
			from = append(from, s)
		}
	}
	sort.Strings(from)
	return from
}()

// AppointmentDetail is one scheduled administration of one vaccine dose to
// one child. Mutated only through the service's transitions.
type AppointmentDetail struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	ChildID            uuid.UUID `db:"child_id" json:"child_id"`
	VaccineID          uuid.UUID `db:"vaccine_id" json:"vaccine_id"`
	DoseNumber         int       `db:"dose_number" json:"dose_number"`
	ScheduledDate      time.Time `db:"scheduled_date" json:"scheduled_date"`
	TimeFrom           string    `db:"time_from" json:"time_from"` // HH:MM:SS clinic-local
	Status             string    `db:"status" json:"status"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RefundAmount       *int64    `db:"refund_amount" json:"refund_amount,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduledAt combines the date and clinic-local start time into one instant.
func (d *AppointmentDetail) ScheduledAt(loc *time.Location) time.Time {
	t, err := time.Parse("15:04:05", d.TimeFrom)
	if err != nil {
		t = time.Time{}
	}
	return time.Date(d.ScheduledDate.Year(), d.ScheduledDate.Month(), d.ScheduledDate.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// Cancel request statuses.
const (
	CancelPending  = "PENDING"
	CancelApproved = "APPROVED"
	CancelRejected = "REJECTED"
)

// Reason keeps the customer's cancellation reason and, after a staff
// rejection, the staff's reason beside it. Both survive resolution.
type Reason struct {
	Customer       string  `json:"customer"`
	StaffRejection *string `json:"staff_rejection,omitempty"`
}

// CancelRequest is a customer-initiated cancellation awaiting staff review.
// Its status is independent of the appointment detail's own status.
type CancelRequest struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	AppointmentDetailID uuid.UUID  `db:"appointment_detail_id" json:"appointment_detail_id"`
	Reason              Reason     `json:"reason"`
	Status              string     `db:"status" json:"status"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt          *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Refund statuses.
const (
	RefundApproved = "APPROVED"
)

// Refund records a refund decision. The amount is supplied by the caller's
// refund policy in minor currency units; this engine only records it.
type Refund struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	AppointmentDetailID uuid.UUID `db:"appointment_detail_id" json:"appointment_detail_id"`
	Amount              int64     `db:"amount" json:"amount"`
	Status              string    `db:"status" json:"status"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Post-injection observation statuses.
const (
	ObservationNormal   = "NORMAL"
	ObservationAbnormal = "ABNORMAL"
)

// PostInjectionObservation is the checkup saved together with completion.
// An abnormal observation must carry a note.
type PostInjectionObservation struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	AppointmentDetailID uuid.UUID `db:"appointment_detail_id" json:"appointment_detail_id"`
	Status              string    `db:"status" json:"status"`
	TemperatureC        float64   `db:"temperature_c" json:"temperature_c"`
	AbnormalityNote     *string   `db:"abnormality_note" json:"abnormality_note,omitempty"`
	RecordedAt          time.Time `db:"recorded_at" json:"recorded_at"`
}
