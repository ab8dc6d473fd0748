package child

import (
	"context"
	"errors"

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

// =========== Child Repository ===========

type childRepoPG struct{ pool *pgxpool.Pool }

func NewChildRepoPG(pool *pgxpool.Pool) ChildRepository {
	return &childRepoPG{pool: pool}
}

func (r *childRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const childCols = `id, parent_account_id, full_name, date_of_birth, gender, created_at, updated_at`

func scanChild(row pgx.Row) (*Child, error) {
	var ch Child
	err := row.Scan(&ch.ID, &ch.ParentAccountID, &ch.FullName, &ch.DateOfBirth,
		&ch.Gender, &ch.CreatedAt, &ch.UpdatedAt)
	return &ch, err
}

func (r *childRepoPG) Create(ctx context.Context, ch *Child) error {
	ch.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO child (id, parent_account_id, full_name, date_of_birth, gender)
		VALUES ($1,$2,$3,$4,$5)`,
		ch.ID, ch.ParentAccountID, ch.FullName, ch.DateOfBirth, ch.Gender)
	return err
}

func (r *childRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Child, error) {
	ch, err := scanChild(r.conn(ctx).QueryRow(ctx,
		`SELECT `+childCols+` FROM child WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("child", id.String())
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *childRepoPG) Update(ctx context.Context, ch *Child) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE child SET full_name=$2, date_of_birth=$3, gender=$4, updated_at=NOW()
		WHERE id = $1`,
		ch.ID, ch.FullName, ch.DateOfBirth, ch.Gender)
	return err
}

func (r *childRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM child WHERE id = $1`, id)
	return err
}

func (r *childRepoPG) ListByParent(ctx context.Context, parentAccountID uuid.UUID, limit, offset int) ([]*Child, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM child WHERE parent_account_id = $1`, parentAccountID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+childCols+` FROM child WHERE parent_account_id = $1 ORDER BY full_name LIMIT $2 OFFSET $3`,
		parentAccountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Child
	for rows.Next() {
		ch, err := scanChild(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ch)
	}
	return items, total, rows.Err()
}

// =========== DoseRecord Repository ===========

type doseRecordRepoPG struct{ pool *pgxpool.Pool }

func NewDoseRecordRepoPG(pool *pgxpool.Pool) DoseRecordRepository {
	return &doseRecordRepoPG{pool: pool}
}

func (r *doseRecordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *doseRecordRepoPG) Append(ctx context.Context, dr *DoseRecord) error {
	dr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_record (id, child_id, vaccine_id, dose_number, administered_date)
		VALUES ($1,$2,$3,$4,$5)`,
		dr.ID, dr.ChildID, dr.VaccineID, dr.DoseNumber, dr.AdministeredDate)
	return err
}

func (r *doseRecordRepoPG) History(ctx context.Context, childID, vaccineID uuid.UUID) ([]*DoseRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, child_id, vaccine_id, dose_number, administered_date, created_at
		FROM dose_record
		WHERE child_id = $1 AND vaccine_id = $2
		ORDER BY dose_number`, childID, vaccineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DoseRecord
	for rows.Next() {
		var dr DoseRecord
		if err := rows.Scan(&dr.ID, &dr.ChildID, &dr.VaccineID, &dr.DoseNumber,
			&dr.AdministeredDate, &dr.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &dr)
	}
	return items, rows.Err()
}

func (r *doseRecordRepoPG) CountByChild(ctx context.Context, childID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dose_record WHERE child_id = $1`, childID).Scan(&n)
	return n, err
}
