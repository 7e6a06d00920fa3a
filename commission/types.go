/*
Package commission provides the core partner-commission engine.

PURPOSE:
  This package contains the types and algorithms that turn a partner's
  subscriptions into a month-by-month commission ledger: which rule applies
  to which month, how much is owed, what has already been paid, and what is
  still locked behind the vesting period.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount in the single billing currency
  - Partner/Subscription/Liquidation: The input collections
  - PayableItem: One derived ledger line (never persisted)
  - PayoutRecord: An invoice-like batch of newly paid liquidations

DESIGN PRINCIPLES:
  1. Derivation: PayableItems are recomputed from scratch on every read.
     There is no cached "paid" flag that can drift from the payment log.
  2. Immutability: Liquidations are never mutated once written.
  3. Precision: Uses decimal.Decimal to avoid floating-point errors.
  4. Type Safety: Strong typing for IDs prevents mixing partner and
     subscription identifiers.

USAGE:
  items := commission.ComputeLedger(commission.LedgerInput{
      Subscriptions: subs,
      Liquidations:  liqs,
      Partners:      partners,
      Plans:         plans,
  })

SEE ALSO:
  - plan.go:   Commercial plans, tier rules, and rule resolution
  - ledger.go: The ledger generator (the core state machine)
  - payout.go: Payout registration and payment-date updates
*/
package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount in the single billing currency
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money               { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money               { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(pct decimal.Decimal) Money   { return Money{Value: m.Value.Mul(pct)} }
func (m Money) Neg() Money                      { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                    { return m.Value.IsZero() }
func (m Money) IsPositive() bool                { return m.Value.IsPositive() }
func (m Money) IsNegative() bool                { return m.Value.IsNegative() }
func (m Money) Equal(o Money) bool              { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool        { return m.Value.GreaterThan(o.Value) }
func (m Money) Float64() float64                { f, _ := m.Value.Float64(); return f }
func (m Money) String() string                  { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PartnerID string
type SubscriptionID string
type PlanID string
type LiquidationID string
type PayoutID string

// =============================================================================
// PARTNER - Referral agency originating subscriptions
// =============================================================================

type Tier string

const (
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

type PartnerStatus string

const (
	PartnerActive    PartnerStatus = "Partner"
	PartnerPotential PartnerStatus = "Potential Partner"
)

type Partner struct {
	ID         PartnerID
	Name       string
	Contact    string
	Email      string
	Status     PartnerStatus
	Tier       Tier
	EnrolledAt time.Time

	// Commissionable indicates whether payouts should be generated for this
	// partner. The ledger generator treats it as advisory: it is surfaced to
	// callers but does not suppress ledger lines.
	Commissionable bool

	// PlanID optionally pins the partner to a specific commercial plan.
	// Empty means "use the default/first available plan".
	PlanID PlanID
}

// =============================================================================
// SUBSCRIPTION - A client's recurring fee originated by a partner
// =============================================================================

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "Active"
	SubscriptionCancelled SubscriptionStatus = "Cancelled"
)

type Subscription struct {
	ID        SubscriptionID
	PartnerID PartnerID
	Client    string
	Fee       Money
	StartDate time.Time
	EndDate   *time.Time
	Status    SubscriptionStatus

	// OpeningBalance is commission debt accumulated before the system
	// existed, billed as a single "prior balance" line. Zero means none.
	OpeningBalance Money

	// CommissionStart optionally decouples the commission clock from the
	// subscription start. Used for migrated subscriptions whose early months
	// were settled outside the system. Bounty/year thresholds stay anchored
	// to StartDate regardless.
	CommissionStart *time.Time

	// PausedMonths lists year-months where accrual is skipped without
	// shifting the month-index counter.
	PausedMonths []Month

	// PlanID optionally links the subscription to a plan. The partner's plan
	// takes precedence during resolution.
	PlanID PlanID
}

// PausedSet returns the paused months as a lookup set.
func (s *Subscription) PausedSet() map[Month]bool {
	if len(s.PausedMonths) == 0 {
		return nil
	}
	set := make(map[Month]bool, len(s.PausedMonths))
	for _, m := range s.PausedMonths {
		set[m] = true
	}
	return set
}

// =============================================================================
// LIQUIDATION - Immutable record that a specific month has been paid
// =============================================================================

// LegacyMonthKey is the sentinel month key marking a subscription's opening
// balance as settled. Once a liquidation with this key exists, the "prior
// balance" line is never re-offered.
const LegacyMonthKey = "LEGACY"

type Liquidation struct {
	ID             LiquidationID
	PartnerID      PartnerID
	SubscriptionID SubscriptionID

	// MonthKey is a YYYY-MM key, or LegacyMonthKey for the opening balance.
	MonthKey string

	Amount Money
	PaidAt time.Time
}

// IsLegacy reports whether this liquidation settles the opening balance.
func (l Liquidation) IsLegacy() bool { return l.MonthKey == LegacyMonthKey }

// =============================================================================
// PAYABLE ITEM - One derived ledger line (recomputed on demand)
// =============================================================================

type ItemStatus string

const (
	StatusPending ItemStatus = "Pending"
	StatusPaid    ItemStatus = "Paid"
	StatusLockup  ItemStatus = "Lock-up"
	StatusPaused  ItemStatus = "Paused"
)

// legacyMonthsActive marks the opening-balance line as always-oldest for
// sorting and lock-up classification.
const legacyMonthsActive = 999

type PayableItem struct {
	ID             string
	SubscriptionID SubscriptionID
	PartnerID      PartnerID
	Client         string

	// MonthLabel is a YYYY-MM key for granular lines, or "Prior Balance" for
	// the legacy and aggregated lines.
	MonthLabel string

	// Rule is the human-readable description of the rule that produced the
	// amount (bounty ordinal, year-1/year-2 percentage, migration debt).
	Rule string

	Amount     Money
	Status     ItemStatus
	Selectable bool

	// MonthsActive is the subscription's total elapsed whole months at
	// computation time (999 for the legacy line).
	MonthsActive int

	// MonthKeys lists the liquidation month keys this line settles when
	// registered: one YYYY-MM key for a granular line, LegacyMonthKey for
	// the opening balance, every folded key for an aggregated line. Keeping
	// the folded keys here is what stops aggregated months from being
	// re-billed after payment.
	MonthKeys []string
}

// =============================================================================
// PAYOUT RECORD - Invoice-like batch of liquidations minted together
// =============================================================================

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "Pending"
	PayoutPaid    PayoutStatus = "Paid"
)

type PayoutRecord struct {
	ID          PayoutID
	PartnerID   PartnerID
	PartnerName string
	GeneratedAt time.Time
	PaymentDate *time.Time
	TotalAmount Money
	Status      PayoutStatus
	Items       []Liquidation
}
