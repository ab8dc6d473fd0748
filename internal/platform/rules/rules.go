// Package rules defines the engine's business-rule error vocabulary. Every
// expected, non-fatal rule failure is a Violation carrying a machine-readable
// code and a human-readable reason; callers branch on the code, humans read
// the reason. Violations are ordinary errors and flow through errors.As.
package rules

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Code identifies a business-rule failure.
type Code string

const (
	DoseLimitExceeded           Code = "DOSE_LIMIT_EXCEEDED"
	AgeNotMet                   Code = "AGE_NOT_MET"
	IntervalNotMet              Code = "INTERVAL_NOT_MET"
	ParentVaccineRequired       Code = "PARENT_VACCINE_REQUIRED"
	WithinCutoffWindow          Code = "WITHIN_CUTOFF_WINDOW"
	InvalidTransition           Code = "INVALID_TRANSITION"
	AlreadyResolved             Code = "ALREADY_RESOLVED"
	TemperatureEnvelopeMismatch Code = "TEMPERATURE_ENVELOPE_MISMATCH"
	InsufficientCapacity        Code = "INSUFFICIENT_CAPACITY"
	StorageInactive             Code = "STORAGE_INACTIVE"
	ConfigurationError          Code = "CONFIGURATION_ERROR"
	Contention                  Code = "CONTENTION"
)

// Violation is an expected business-rule failure.
type Violation struct {
	Code   Code   `json:"code"`
	Reason string `json:"reason"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Reason)
}

// New builds a Violation with a formatted reason.
func New(code Code, format string, args ...interface{}) *Violation {
	return &Violation{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// CodeOf returns the violation code carried by err, or "" when err is not a
// Violation.
func CodeOf(err error) Code {
	var v *Violation
	if errors.As(err, &v) {
		return v.Code
	}
	return ""
}

// Is reports whether err is a Violation with the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// ErrNotFound wraps a missing-entity lookup so handlers can answer 404
// without inspecting driver errors.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// NotFound builds an ErrNotFound.
func NotFound(entity, key string) *ErrNotFound {
	return &ErrNotFound{Entity: entity, Key: key}
}

// HTTPError converts an engine error into the echo error the handlers return.
// Business-rule violations are 422 except for state conflicts and lock
// contention (409, retryable for CONTENTION) and configuration errors, which
// fail closed as 500.
func HTTPError(err error) error {
	var nf *ErrNotFound
	if errors.As(err, &nf) {
		return echo.NewHTTPError(http.StatusNotFound, map[string]string{
			"code":   "NOT_FOUND",
			"reason": nf.Error(),
		})
	}

	var v *Violation
	if !errors.As(err, &v) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusUnprocessableEntity
	switch v.Code {
	case InvalidTransition, AlreadyResolved, Contention:
		status = http.StatusConflict
	case ConfigurationError:
		status = http.StatusInternalServerError
	}

	body := map[string]interface{}{"code": v.Code, "reason": v.Reason}
	if v.Code == Contention {
		body["retryable"] = true
	}
	return echo.NewHTTPError(status, body)
}
