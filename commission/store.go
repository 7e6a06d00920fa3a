/*
store.go - Persistence interfaces for the commission engine

PURPOSE:
  Defines the interface between the domain logic and the database. The
  engine itself is pure; these interfaces exist for the liquidation log
  (append-only), payout records, and the directory collections that feed
  the ledger generator.

APPEND-ONLY CONTRACT:
  Liquidations are immutable. The store exposes no update or delete for
  them; once a month is settled it stays settled.

UNIQUENESS:
  Implementations MUST enforce uniqueness on (subscription id, month key)
  at the storage layer. Two concurrent registrations that both saw a
  Pending month must not both succeed; the loser gets
  ErrDuplicateLiquidation. Application-level checks are not sufficient.

IMPLEMENTATIONS:
  - store/sqlite: production store (unique index + SQL transactions)
  - commission/store: in-memory store for tests and dev
*/
package commission

import (
	"context"
	"time"
)

// =============================================================================
// LIQUIDATION STORE - Append-only payment log
// =============================================================================

type LiquidationStore interface {
	// AppendLiquidations persists a batch atomically: either every
	// liquidation is written or none are. Returns a
	// *DuplicateLiquidationError when any (subscription, month) pair is
	// already settled.
	AppendLiquidations(ctx context.Context, liqs []Liquidation) error

	// ListLiquidations returns the full payment log, ordered by payment
	// date then id. Read-only.
	ListLiquidations(ctx context.Context) ([]Liquidation, error)
}

// =============================================================================
// PAYOUT STORE - Invoice-like registration records
// =============================================================================

type PayoutStore interface {
	// RegisterPayout atomically appends the payout's liquidations and the
	// payout record itself. Uniqueness rules of AppendLiquidations apply;
	// on any failure neither the record nor any liquidation is written.
	RegisterPayout(ctx context.Context, payout PayoutRecord) error

	// Payout returns one record, or ErrPayoutNotFound.
	Payout(ctx context.Context, id PayoutID) (*PayoutRecord, error)

	// ListPayouts returns records newest-first, optionally scoped to a
	// partner (empty = all).
	ListPayouts(ctx context.Context, partnerID PartnerID) ([]PayoutRecord, error)

	// SetPaymentDate stamps or clears the payment date. This is the ONLY
	// permitted mutation of a payout record: a date flips status to Paid,
	// nil flips it back to Pending. Returns the updated record.
	SetPaymentDate(ctx context.Context, id PayoutID, date *time.Time) (*PayoutRecord, error)
}

// =============================================================================
// DIRECTORY STORE - Collections the ledger derives from
// =============================================================================

type DirectoryStore interface {
	SavePartner(ctx context.Context, p Partner) error
	ListPartners(ctx context.Context) ([]Partner, error)

	SaveSubscription(ctx context.Context, s Subscription) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)

	SavePlan(ctx context.Context, p CommercialPlan) error
	ListPlans(ctx context.Context) ([]CommercialPlan, error)

	// ReplaceDirectory swaps the partner/subscription/plan collections in
	// one atomic operation. Used by the importer so that a failed or
	// partial sync never leaves a half-updated directory. Liquidations and
	// payouts are untouched; imported liquidations append separately.
	ReplaceDirectory(ctx context.Context, partners []Partner, subs []Subscription, plans []CommercialPlan) error
}

// =============================================================================
// STORE - Everything a deployment needs
// =============================================================================

type Store interface {
	LiquidationStore
	PayoutStore
	DirectoryStore
}
