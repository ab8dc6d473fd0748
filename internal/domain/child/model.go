package child

import (
	"time"

	"github.com/google/uuid"
)

// Child maps to the child table.
type Child struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ParentAccountID uuid.UUID `db:"parent_account_id" json:"parent_account_id"`
	FullName        string    `db:"full_name" json:"full_name"`
	DateOfBirth     time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender          string    `db:"gender" json:"gender"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// DoseRecord is one administered dose. Records are append-only and are
// written exclusively by the appointment completion flow; the latest record
// per (child, vaccine) anchors the next eligibility check.
type DoseRecord struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ChildID          uuid.UUID `db:"child_id" json:"child_id"`
	VaccineID        uuid.UUID `db:"vaccine_id" json:"vaccine_id"`
	DoseNumber       int       `db:"dose_number" json:"dose_number"`
	AdministeredDate time.Time `db:"administered_date" json:"administered_date"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
