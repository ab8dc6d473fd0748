// Package coldchain matches vaccine batches to cold-storage units. A storage
// accepts a batch only when its operating envelope fully contains the
// vaccine's required envelope, it has room for the whole batch, and it is
// active on the day of intake.
package coldchain

import (
	"time"

	"github.com/google/uuid"
)

// ColdStorage is one physical refrigeration unit.
type ColdStorage struct {
	ID                      uuid.UUID `db:"id" json:"id"`
	Name                    string    `db:"name" json:"name"`
	MinTemperatureThreshold float64   `db:"min_temperature_threshold" json:"min_temperature_threshold"`
	MaxTemperatureThreshold float64   `db:"max_temperature_threshold" json:"max_temperature_threshold"`
	StorageCapacity         int       `db:"storage_capacity" json:"storage_capacity"`
	CurrentVialCount        int       `db:"current_vial_count" json:"current_vial_count"`
	EffectiveFrom           time.Time `db:"effective_from" json:"effective_from"`
	IsActive                bool      `db:"is_active" json:"is_active"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

// RemainingCapacity is the number of vials the unit can still take.
func (s *ColdStorage) RemainingCapacity() int {
	return s.StorageCapacity - s.CurrentVialCount
}

// EnvelopeWidth is the span of the unit's operating range in °C.
func (s *ColdStorage) EnvelopeWidth() float64 {
	return s.MaxTemperatureThreshold - s.MinTemperatureThreshold
}

// Batch statuses.
const (
	BatchAvailable   = "AVAILABLE"
	BatchSoldOut     = "SOLD_OUT"
	BatchUnavailable = "UNAVAILABLE"
)

// VaccineBatch is one delivered lot of a vaccine. ColdStorageID is a weak
// back-reference: set only while the batch sits in that unit.
type VaccineBatch struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	VaccineID       uuid.UUID  `db:"vaccine_id" json:"vaccine_id"`
	BatchNumber     string     `db:"batch_number" json:"batch_number"`
	ManufactureDate time.Time  `db:"manufacture_date" json:"manufacture_date"`
	ExpiryDate      time.Time  `db:"expiry_date" json:"expiry_date"`
	InitialQuantity int        `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int        `db:"current_quantity" json:"current_quantity"`
	Status          string     `db:"status" json:"status"`
	ColdStorageID   *uuid.UUID `db:"cold_storage_id" json:"cold_storage_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
