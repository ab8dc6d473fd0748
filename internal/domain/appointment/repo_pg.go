package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxflow/vaxflow/internal/platform/db"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== AppointmentDetail Repository ===========

type detailRepoPG struct{ pool *pgxpool.Pool }

func NewDetailRepoPG(pool *pgxpool.Pool) DetailRepository {
	return &detailRepoPG{pool: pool}
}

const detailCols = `id, child_id, vaccine_id, dose_number, scheduled_date,
	time_from, status, cancellation_reason, refund_amount, created_at, updated_at`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	err := row.Scan(&d.ID, &d.ChildID, &d.VaccineID, &d.DoseNumber, &d.ScheduledDate,
		&d.TimeFrom, &d.Status, &d.CancellationReason, &d.RefundAmount,
		&d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *detailRepoPG) Create(ctx context.Context, d *AppointmentDetail) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment_detail (id, child_id, vaccine_id, dose_number,
			scheduled_date, time_from, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.ChildID, d.VaccineID, d.DoseNumber,
		d.ScheduledDate, d.TimeFrom, d.Status)
	return err
}

func (r *detailRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	d, err := scanDetail(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+detailCols+` FROM appointment_detail WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("appointment detail", id.String())
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *detailRepoPG) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]*AppointmentDetail, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment_detail WHERE child_id = $1`, childID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+detailCols+` FROM appointment_detail
		 WHERE child_id = $1 ORDER BY scheduled_date DESC, time_from DESC
		 LIMIT $2 OFFSET $3`, childID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *detailRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment_detail SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *detailRepoPG) Cancel(ctx context.Context, id uuid.UUID, from []string, reason string, refundAmount *int64) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment_detail
		SET status = $3, cancellation_reason = $4, refund_amount = $5, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)`,
		id, from, StatusCancelled, reason, refundAmount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *detailRepoPG) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment_detail SET scheduled_date = $2, updated_at = NOW()
		WHERE id = $1`, id, newDate)
	return err
}

// =========== CancelRequest Repository ===========

type cancelRequestRepoPG struct{ pool *pgxpool.Pool }

func NewCancelRequestRepoPG(pool *pgxpool.Pool) CancelRequestRepository {
	return &cancelRequestRepoPG{pool: pool}
}

const cancelCols = `id, appointment_detail_id, reason_cancelled, reason_staff_rejected,
	status, created_at, resolved_at`

func scanCancel(row pgx.Row) (*CancelRequest, error) {
	var cr CancelRequest
	err := row.Scan(&cr.ID, &cr.AppointmentDetailID, &cr.Reason.Customer,
		&cr.Reason.StaffRejection, &cr.Status, &cr.CreatedAt, &cr.ResolvedAt)
	return &cr, err
}

func (r *cancelRequestRepoPG) Create(ctx context.Context, cr *CancelRequest) error {
	cr.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO cancel_request (id, appointment_detail_id, reason_cancelled, status)
		VALUES ($1,$2,$3,$4)`,
		cr.ID, cr.AppointmentDetailID, cr.Reason.Customer, cr.Status)
	return err
}

func (r *cancelRequestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CancelRequest, error) {
	cr, err := scanCancel(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+cancelCols+` FROM cancel_request WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("cancel request", id.String())
	}
	if err != nil {
		return nil, err
	}
	return cr, nil
}

func (r *cancelRequestRepoPG) OpenByDetail(ctx context.Context, detailID uuid.UUID) (*CancelRequest, error) {
	cr, err := scanCancel(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+cancelCols+` FROM cancel_request
		 WHERE appointment_detail_id = $1 AND status = $2`, detailID, CancelPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("open cancel request", detailID.String())
	}
	if err != nil {
		return nil, err
	}
	return cr, nil
}

func (r *cancelRequestRepoPG) ListByDetail(ctx context.Context, detailID uuid.UUID) ([]*CancelRequest, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+cancelCols+` FROM cancel_request
		 WHERE appointment_detail_id = $1 ORDER BY created_at`, detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CancelRequest
	for rows.Next() {
		cr, err := scanCancel(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cr)
	}
	return items, rows.Err()
}

func (r *cancelRequestRepoPG) Resolve(ctx context.Context, id uuid.UUID, to string, staffReason *string, resolvedAt time.Time) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE cancel_request
		SET status = $3, reason_staff_rejected = $4, resolved_at = $5
		WHERE id = $1 AND status = $2`,
		id, CancelPending, to, staffReason, resolvedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// =========== Refund Repository ===========

type refundRepoPG struct{ pool *pgxpool.Pool }

func NewRefundRepoPG(pool *pgxpool.Pool) RefundRepository {
	return &refundRepoPG{pool: pool}
}

func (r *refundRepoPG) Create(ctx context.Context, rf *Refund) error {
	rf.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO refund (id, appointment_detail_id, amount, status)
		VALUES ($1,$2,$3,$4)`,
		rf.ID, rf.AppointmentDetailID, rf.Amount, rf.Status)
	return err
}

func (r *refundRepoPG) GetByDetail(ctx context.Context, detailID uuid.UUID) (*Refund, error) {
	var rf Refund
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, appointment_detail_id, amount, status, created_at
		FROM refund WHERE appointment_detail_id = $1`, detailID).
		Scan(&rf.ID, &rf.AppointmentDetailID, &rf.Amount, &rf.Status, &rf.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("refund", detailID.String())
	}
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

// =========== Observation Repository ===========

type observationRepoPG struct{ pool *pgxpool.Pool }

func NewObservationRepoPG(pool *pgxpool.Pool) ObservationRepository {
	return &observationRepoPG{pool: pool}
}

func (r *observationRepoPG) Create(ctx context.Context, o *PostInjectionObservation) error {
	o.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO post_injection_observation
			(id, appointment_detail_id, status, temperature_c, abnormality_note, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.AppointmentDetailID, o.Status, o.TemperatureC, o.AbnormalityNote, o.RecordedAt)
	return err
}

func (r *observationRepoPG) GetByDetail(ctx context.Context, detailID uuid.UUID) (*PostInjectionObservation, error) {
	var o PostInjectionObservation
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, appointment_detail_id, status, temperature_c, abnormality_note, recorded_at
		FROM post_injection_observation WHERE appointment_detail_id = $1`, detailID).
		Scan(&o.ID, &o.AppointmentDetailID, &o.Status, &o.TemperatureC, &o.AbnormalityNote, &o.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("post-injection observation", detailID.String())
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
