package coldchain

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== ColdStorage Repository ===========

type storageRepoPG struct{ pool *pgxpool.Pool }

func NewStorageRepoPG(pool *pgxpool.Pool) StorageRepository {
	return &storageRepoPG{pool: pool}
}

const storageCols = `id, name, min_temperature_threshold, max_temperature_threshold,
	storage_capacity, current_vial_count, effective_from, is_active, created_at, updated_at`

func scanStorage(row pgx.Row) (*ColdStorage, error) {
	var s ColdStorage
	err := row.Scan(&s.ID, &s.Name, &s.MinTemperatureThreshold, &s.MaxTemperatureThreshold,
		&s.StorageCapacity, &s.CurrentVialCount, &s.EffectiveFrom, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *storageRepoPG) Create(ctx context.Context, s *ColdStorage) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO cold_storage (id, name, min_temperature_threshold,
			max_temperature_threshold, storage_capacity, current_vial_count,
			effective_from, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.Name, s.MinTemperatureThreshold, s.MaxTemperatureThreshold,
		s.StorageCapacity, s.CurrentVialCount, s.EffectiveFrom, s.IsActive)
	return err
}

func (r *storageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ColdStorage, error) {
	s, err := scanStorage(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+storageCols+` FROM cold_storage WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("cold storage", id.String())
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *storageRepoPG) Update(ctx context.Context, s *ColdStorage) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE cold_storage SET name=$2, min_temperature_threshold=$3,
			max_temperature_threshold=$4, storage_capacity=$5,
			effective_from=$6, is_active=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.MinTemperatureThreshold, s.MaxTemperatureThreshold,
		s.StorageCapacity, s.EffectiveFrom, s.IsActive)
	return err
}

func (r *storageRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM cold_storage WHERE id = $1`, id)
	return err
}

func (r *storageRepoPG) List(ctx context.Context, limit, offset int) ([]*ColdStorage, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM cold_storage`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+storageCols+` FROM cold_storage ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ColdStorage
	for rows.Next() {
		s, err := scanStorage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *storageRepoPG) ListAll(ctx context.Context) ([]*ColdStorage, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+storageCols+` FROM cold_storage ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ColdStorage
	for rows.Next() {
		s, err := scanStorage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *storageRepoPG) AddVials(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE cold_storage
		SET current_vial_count = current_vial_count + $2, updated_at = NOW()
		WHERE id = $1
		  AND current_vial_count + $2 >= 0
		  AND current_vial_count + $2 <= storage_capacity`, id, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// =========== VaccineBatch Repository ===========

type batchRepoPG struct{ pool *pgxpool.Pool }

func NewBatchRepoPG(pool *pgxpool.Pool) BatchRepository {
	return &batchRepoPG{pool: pool}
}

const batchCols = `id, vaccine_id, batch_number, manufacture_date, expiry_date,
	initial_quantity, current_quantity, status, cold_storage_id, created_at, updated_at`

func scanBatch(row pgx.Row) (*VaccineBatch, error) {
	var b VaccineBatch
	err := row.Scan(&b.ID, &b.VaccineID, &b.BatchNumber, &b.ManufactureDate, &b.ExpiryDate,
		&b.InitialQuantity, &b.CurrentQuantity, &b.Status, &b.ColdStorageID,
		&b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *batchRepoPG) Create(ctx context.Context, b *VaccineBatch) error {
	b.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO vaccine_batch (id, vaccine_id, batch_number, manufacture_date,
			expiry_date, initial_quantity, current_quantity, status, cold_storage_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.VaccineID, b.BatchNumber, b.ManufactureDate, b.ExpiryDate,
		b.InitialQuantity, b.CurrentQuantity, b.Status, b.ColdStorageID)
	return err
}

func (r *batchRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*VaccineBatch, error) {
	b, err := scanBatch(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+batchCols+` FROM vaccine_batch WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("vaccine batch", id.String())
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *batchRepoPG) Update(ctx context.Context, b *VaccineBatch) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE vaccine_batch SET batch_number=$2, manufacture_date=$3, expiry_date=$4,
			initial_quantity=$5, current_quantity=$6, status=$7, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.BatchNumber, b.ManufactureDate, b.ExpiryDate,
		b.InitialQuantity, b.CurrentQuantity, b.Status)
	return err
}

func (r *batchRepoPG) List(ctx context.Context, limit, offset int) ([]*VaccineBatch, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM vaccine_batch`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+batchCols+` FROM vaccine_batch ORDER BY expiry_date LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*VaccineBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *batchRepoPG) ListByStorage(ctx context.Context, storageID uuid.UUID) ([]*VaccineBatch, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+batchCols+` FROM vaccine_batch WHERE cold_storage_id = $1 ORDER BY expiry_date`, storageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VaccineBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *batchRepoPG) SetStorage(ctx context.Context, id uuid.UUID, expect, to *uuid.UUID) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	if expect == nil {
		tag, err = conn(ctx, r.pool).Exec(ctx, `
			UPDATE vaccine_batch SET cold_storage_id = $2, updated_at = NOW()
			WHERE id = $1 AND cold_storage_id IS NULL`, id, to)
	} else {
		tag, err = conn(ctx, r.pool).Exec(ctx, `
			UPDATE vaccine_batch SET cold_storage_id = $3, updated_at = NOW()
			WHERE id = $1 AND cold_storage_id = $2`, id, *expect, to)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
