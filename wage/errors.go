/*
errors.go - Centralized error types for the wage engine

PURPOSE:
  All error kinds in one place. Callers distinguish them with errors.Is
  against the sentinels, or errors.As against the structured types to get
  the identifying context.

ERROR CATEGORIES:
  1. Rule errors - No pay rule covers the record
  2. Input errors - Malformed clock times, negative breaks, missing IDs
  3. Store errors - Passed through from the RuleStore, wrapped with %w

USAGE:
  _, err := calc.Calculate(ctx, input)
  var nf *wage.RuleNotFoundError
  if errors.As(err, &nf) {
      log.Printf("no rule for %s/%s on %s", nf.CompanyID, nf.VehicleTypeID, nf.WorkDate)
  }

SEE ALSO:
  - resolver.go: Returns RuleNotFoundError
  - time.go: Returns TimeFormatError
*/
package wage

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRuleNotFound is returned when no active rule covers the
	// company, vehicle type and work date of a record.
	ErrRuleNotFound = errors.New("wage rule not found")

	// ErrInvalidTimeFormat is returned for clock strings that are not HH:mm.
	ErrInvalidTimeFormat = errors.New("invalid time format")

	// ErrInvalidInput is returned for records that cannot be calculated
	// for reasons other than the clock format.
	ErrInvalidInput = errors.New("invalid calculation input")

	// ErrStoreRequired is returned when a Calculator is built without a RuleStore.
	ErrStoreRequired = errors.New("rule store is required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleNotFoundError identifies the record that had no applicable rule.
type RuleNotFoundError struct {
	CompanyID     string
	VehicleTypeID string
	WorkDate      time.Time
}

func (e *RuleNotFoundError) Error() string {
	return fmt.Sprintf("wage rule not found: company=%s, vehicle_type=%s, date=%s",
		e.CompanyID, e.VehicleTypeID, e.WorkDate.Format(DateLayout))
}

func (e *RuleNotFoundError) Unwrap() error {
	return ErrRuleNotFound
}

// TimeFormatError names the offending clock field and value.
type TimeFormatError struct {
	Field string
	Value string
}

func (e *TimeFormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid time format %q (want HH:mm)", e.Value)
	}
	return fmt.Sprintf("invalid time format for %s: %q (want HH:mm)", e.Field, e.Value)
}

func (e *TimeFormatError) Unwrap() error {
	return ErrInvalidTimeFormat
}

// InputError describes a record rejected before calculation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing rule.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsClientError returns true if the error is due to an invalid record.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTimeFormat) ||
		errors.Is(err, ErrInvalidInput)
}
