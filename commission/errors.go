/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Boundary packages (api, store) match on these with errors.Is.
*/
package commission

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCrossPartnerSelection is returned when a payout selection spans
	// more than one partner. Payouts are registered one partner at a time.
	ErrCrossPartnerSelection = errors.New("selection spans multiple partners")

	// ErrUnknownSelection is returned when a selected item id does not
	// exist in the supplied ledger.
	ErrUnknownSelection = errors.New("selected item not found in ledger")

	// ErrItemNotSelectable is returned when a selected item is Paid,
	// Paused, or still in lock-up.
	ErrItemNotSelectable = errors.New("selected item is not selectable")

	// ErrDuplicateLiquidation is returned when a liquidation already exists
	// for the same subscription and month. This is the storage-layer guard
	// against double-booking a month from concurrent registrations.
	ErrDuplicateLiquidation = errors.New("liquidation already exists for subscription and month")

	// ErrPayoutNotFound is returned when a referenced payout record does
	// not exist.
	ErrPayoutNotFound = errors.New("payout record not found")

	// ErrPartnerNotFound is returned when a referenced partner does not
	// exist.
	ErrPartnerNotFound = errors.New("partner not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SelectionError describes why a payout selection was rejected. Nothing is
// written when it is returned.
type SelectionError struct {
	ItemID   string
	Partners []PartnerID
	Status   ItemStatus
	reason   error
}

func (e *SelectionError) Error() string {
	switch {
	case errors.Is(e.reason, ErrCrossPartnerSelection):
		return fmt.Sprintf("selection spans partners %v: register one partner at a time", e.Partners)
	case errors.Is(e.reason, ErrItemNotSelectable):
		return fmt.Sprintf("item %s has status %s and cannot be selected", e.ItemID, e.Status)
	default:
		return fmt.Sprintf("item %s: %v", e.ItemID, e.reason)
	}
}

func (e *SelectionError) Unwrap() error { return e.reason }

// DuplicateLiquidationError identifies the exact month that was already
// settled when a write was rejected.
type DuplicateLiquidationError struct {
	SubscriptionID SubscriptionID
	MonthKey       string
	PaidAt         time.Time
}

func (e *DuplicateLiquidationError) Error() string {
	return fmt.Sprintf("month %s of subscription %s already liquidated", e.MonthKey, e.SubscriptionID)
}

func (e *DuplicateLiquidationError) Unwrap() error { return ErrDuplicateLiquidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCrossPartnerSelection) ||
		errors.Is(err, ErrUnknownSelection) ||
		errors.Is(err, ErrItemNotSelectable)
}

// IsConflict returns true if the error indicates a double-booking attempt.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateLiquidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPayoutNotFound) ||
		errors.Is(err, ErrPartnerNotFound)
}
