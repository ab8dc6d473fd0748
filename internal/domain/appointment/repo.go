package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DetailRepository interface {
	Create(ctx context.Context, d *AppointmentDetail) error
	GetByID(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]*AppointmentDetail, int, error)
	// UpdateStatus flips the status only when the row still holds from,
	// reporting whether the swap applied.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	// Cancel moves the detail to CANCELLED when its status is one of from,
	// recording the reason and optional refund amount.
	Cancel(ctx context.Context, id uuid.UUID, from []string, reason string, refundAmount *int64) (bool, error)
	// Reschedule replaces the scheduled date. Nothing else changes.
	Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time) error
}

type CancelRequestRepository interface {
	Create(ctx context.Context, cr *CancelRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*CancelRequest, error)
	// OpenByDetail returns the detail's PENDING request, or not-found.
	OpenByDetail(ctx context.Context, detailID uuid.UUID) (*CancelRequest, error)
	ListByDetail(ctx context.Context, detailID uuid.UUID) ([]*CancelRequest, error)
	// Resolve moves a PENDING request to APPROVED or REJECTED, storing the
	// staff reason on rejection. Reports whether the request was still open.
	Resolve(ctx context.Context, id uuid.UUID, to string, staffReason *string, resolvedAt time.Time) (bool, error)
}

type RefundRepository interface {
	Create(ctx context.Context, r *Refund) error
	GetByDetail(ctx context.Context, detailID uuid.UUID) (*Refund, error)
}

type ObservationRepository interface {
	Create(ctx context.Context, o *PostInjectionObservation) error
	GetByDetail(ctx context.Context, detailID uuid.UUID) (*PostInjectionObservation, error)
}
