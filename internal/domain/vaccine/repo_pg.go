package vaccine

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

// =========== Vaccine Repository ===========

type vaccineRepoPG struct{ pool *pgxpool.Pool }

func NewVaccineRepoPG(pool *pgxpool.Pool) VaccineRepository {
	return &vaccineRepoPG{pool: pool}
}

func (r *vaccineRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const vaccineCols = `id, code, name, lifetime_dose_limit,
	min_temperature_conditions, max_temperature_conditions,
	parent_id, active, created_at, updated_at`

func scanVaccine(row pgx.Row) (*Vaccine, error) {
	var v Vaccine
	err := row.Scan(&v.ID, &v.Code, &v.Name, &v.LifetimeDoseLimit,
		&v.MinTemperatureConditions, &v.MaxTemperatureConditions,
		&v.ParentID, &v.Active, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("vaccine", "")
	}
	return &v, err
}

func (r *vaccineRepoPG) Create(ctx context.Context, v *Vaccine) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vaccine (id, code, name, lifetime_dose_limit,
			min_temperature_conditions, max_temperature_conditions,
			parent_id, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.Code, v.Name, v.LifetimeDoseLimit,
		v.MinTemperatureConditions, v.MaxTemperatureConditions,
		v.ParentID, v.Active)
	return err
}

func (r *vaccineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	v, err := scanVaccine(r.conn(ctx).QueryRow(ctx,
		`SELECT `+vaccineCols+` FROM vaccine WHERE id = $1`, id))
	if err != nil {
		var nf *rules.ErrNotFound
		if errors.As(err, &nf) {
			return nil, rules.NotFound("vaccine", id.String())
		}
		return nil, err
	}
	return v, nil
}

func (r *vaccineRepoPG) GetByCode(ctx context.Context, code string) (*Vaccine, error) {
	v, err := scanVaccine(r.conn(ctx).QueryRow(ctx,
		`SELECT `+vaccineCols+` FROM vaccine WHERE code = $1`, code))
	if err != nil {
		var nf *rules.ErrNotFound
		if errors.As(err, &nf) {
			return nil, rules.NotFound("vaccine", code)
		}
		return nil, err
	}
	return v, nil
}

func (r *vaccineRepoPG) Update(ctx context.Context, v *Vaccine) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE vaccine SET code=$2, name=$3, lifetime_dose_limit=$4,
			min_temperature_conditions=$5, max_temperature_conditions=$6,
			parent_id=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.Code, v.Name, v.LifetimeDoseLimit,
		v.MinTemperatureConditions, v.MaxTemperatureConditions,
		v.ParentID, v.Active)
	return err
}

func (r *vaccineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM vaccine WHERE id = $1`, id)
	return err
}

func (r *vaccineRepoPG) List(ctx context.Context, limit, offset int) ([]*Vaccine, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccine`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+vaccineCols+` FROM vaccine ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Vaccine
	for rows.Next() {
		v, err := scanVaccine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

// =========== DoseIntervalRule Repository ===========

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepoPG{pool: pool}
}

func (r *ruleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ruleCols = `id, vaccine_id, from_dose_number, to_dose_number,
	validate_by, min_age_applicable_month, min_age_applicable_year,
	days_between, created_at, updated_at`

func scanRule(row pgx.Row) (*DoseIntervalRule, error) {
	var dr DoseIntervalRule
	err := row.Scan(&dr.ID, &dr.VaccineID, &dr.FromDoseNumber, &dr.ToDoseNumber,
		&dr.ValidateBy, &dr.MinAgeApplicableMonth, &dr.MinAgeApplicableYear,
		&dr.DaysBetween, &dr.CreatedAt, &dr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rules.NotFound("dose interval rule", "")
	}
	return &dr, err
}

func (r *ruleRepoPG) Create(ctx context.Context, dr *DoseIntervalRule) error {
	dr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_interval_rule (id, vaccine_id, from_dose_number,
			to_dose_number, validate_by, min_age_applicable_month,
			min_age_applicable_year, days_between)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		dr.ID, dr.VaccineID, dr.FromDoseNumber, dr.ToDoseNumber,
		dr.ValidateBy, dr.MinAgeApplicableMonth, dr.MinAgeApplicableYear,
		dr.DaysBetween)
	return err
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DoseIntervalRule, error) {
	dr, err := scanRule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ruleCols+` FROM dose_interval_rule WHERE id = $1`, id))
	if err != nil {
		var nf *rules.ErrNotFound
		if errors.As(err, &nf) {
			return nil, rules.NotFound("dose interval rule", id.String())
		}
		return nil, err
	}
	return dr, nil
}

func (r *ruleRepoPG) Update(ctx context.Context, dr *DoseIntervalRule) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE dose_interval_rule SET from_dose_number=$2, to_dose_number=$3,
			validate_by=$4, min_age_applicable_month=$5,
			min_age_applicable_year=$6, days_between=$7, updated_at=NOW()
		WHERE id = $1`,
		dr.ID, dr.FromDoseNumber, dr.ToDoseNumber,
		dr.ValidateBy, dr.MinAgeApplicableMonth, dr.MinAgeApplicableYear,
		dr.DaysBetween)
	return err
}

func (r *ruleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM dose_interval_rule WHERE id = $1`, id)
	return err
}

func (r *ruleRepoPG) ListByVaccine(ctx context.Context, vaccineID uuid.UUID) ([]*DoseIntervalRule, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+ruleCols+` FROM dose_interval_rule WHERE vaccine_id = $1 ORDER BY to_dose_number`,
		vaccineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DoseIntervalRule
	for rows.Next() {
		dr, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, dr)
	}
	return items, rows.Err()
}
