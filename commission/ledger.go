/*
ledger.go - The ledger generator (the core state machine)

PURPOSE:
  Walks every active month of every subscription and classifies it as
  Pending, Paid, Locked, or Paused, emitting one PayableItem per month plus
  a legacy opening-balance line. The output is a full derivation: nothing
  here is cached or persisted, and status always comes fresh from the
  liquidation log and the pause/lock-up configuration.

CRITICAL INVARIANTS:
  1. COVERAGE: Exactly one line per calendar month from the commission clock
     start through the current month, inclusive. No gaps, no duplicates.
  2. PAID SUPPRESSION: A month with a recorded liquidation is Paid and never
     selectable again.
  3. ANCHORING: Bounty/year thresholds use the month index counted from the
     subscription's TRUE start date, even when the commission clock starts
     later (migrated subscriptions).
  4. AMOUNT INDEPENDENCE: Lock-up and Paused change only the status flag.
     The amount is always computed.

STATUS PRECEDENCE (per month):
  Paid > Paused > Lock-up > Pending

SEE ALSO:
  - calc.go:      MonthlyAmount (pricing one month)
  - plan.go:      ResolveRule (partner -> plan -> tier rule)
  - aggregate.go: Collapsing stale pending months into one line
*/
package commission

import (
	"sort"
	"strings"
	"time"
)

// =============================================================================
// LEDGER INPUT
// =============================================================================

// LedgerInput carries the collections the generator derives from. The engine
// does not care where they came from (CSV import, database, manual entry).
type LedgerInput struct {
	Subscriptions []Subscription
	Liquidations  []Liquidation
	Partners      []Partner
	Plans         []CommercialPlan

	// ScopePartner limits output to one partner's subscriptions. Empty
	// means all partners.
	ScopePartner PartnerID

	// Now is the evaluation clock. Zero means time.Now(). Tests pin it.
	Now time.Time

	// SkipAggregation leaves stale pending months granular instead of
	// collapsing them into a prior-balance line.
	SkipAggregation bool
}

func (in *LedgerInput) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

// =============================================================================
// LEDGER GENERATOR
// =============================================================================

// ComputeLedger derives the full payable ledger from the input collections.
// Pure function of its inputs: identical inputs yield identical output.
func ComputeLedger(input LedgerInput) []PayableItem {
	now := input.now()
	currentMonth := MonthOf(now)

	paid := paidIndex(input.Liquidations)

	var items []PayableItem
	for i := range input.Subscriptions {
		sub := &input.Subscriptions[i]
		if input.ScopePartner != "" && sub.PartnerID != input.ScopePartner {
			continue
		}
		items = append(items, subscriptionItems(sub, input, paid, now, currentMonth)...)
	}

	if !input.SkipAggregation {
		items = AggregatePending(items, currentMonth.Year)
	}

	sortItems(items)
	return items
}

// paidIndex maps "{subscriptionID}|{monthKey}" to true for every recorded
// liquidation. This is the idempotent reconciliation check: the liquidation
// log is the source of truth for what has been paid.
func paidIndex(liqs []Liquidation) map[string]bool {
	idx := make(map[string]bool, len(liqs))
	for _, l := range liqs {
		idx[string(l.SubscriptionID)+"|"+l.MonthKey] = true
	}
	return idx
}

func subscriptionItems(sub *Subscription, input LedgerInput, paid map[string]bool, now time.Time, currentMonth Month) []PayableItem {
	res := ResolveRule(sub, input.Partners, input.Plans)
	if res.Outcome == ResolutionUnresolvable {
		return nil
	}
	rule := res.Rule

	var items []PayableItem

	// Legacy opening balance: one Pending line until a LEGACY liquidation
	// exists for this subscription.
	if sub.OpeningBalance.IsPositive() && !paid[string(sub.ID)+"|"+LegacyMonthKey] {
		items = append(items, PayableItem{
			ID:             "LEGACY-" + string(sub.ID),
			SubscriptionID: sub.ID,
			PartnerID:      sub.PartnerID,
			Client:         sub.Client,
			MonthLabel:     "Prior Balance",
			Rule:           "Accumulated balance (migration)",
			Amount:         sub.OpeningBalance,
			Status:         StatusPending,
			Selectable:     true,
			MonthsActive:   legacyMonthsActive,
			MonthKeys:      []string{LegacyMonthKey},
		})
	}

	// Whole months elapsed since the true subscription start; day-of-month
	// is ignored.
	monthsActiveTotal := MonthsBetween(sub.StartDate, now)
	if monthsActiveTotal < 0 {
		// Starts in the future: no monthly lines yet.
		return items
	}
	inLockup := monthsActiveTotal < rule.VestingMonths

	// The commission clock starts at the override date when present,
	// normalized to the first of its month.
	clockStart := sub.StartDate
	if sub.CommissionStart != nil {
		clockStart = *sub.CommissionStart
	}

	pausedSet := sub.PausedSet()

	for m := MonthOf(clockStart); m.BeforeOrEqual(currentMonth); m = m.Next() {
		monthKey := m.Key()

		// Month index anchored to the TRUE start date, not the clock start.
		idx := MonthsBetween(sub.StartDate, m.Start()) + 1

		amount, ruleLabel := MonthlyAmount(sub.Fee, idx, rule)

		status := StatusPending
		selectable := true
		switch {
		case paid[string(sub.ID)+"|"+monthKey]:
			status, selectable = StatusPaid, false
		case pausedSet[m]:
			status, selectable = StatusPaused, false
		case inLockup:
			status, selectable = StatusLockup, false
		}

		items = append(items, PayableItem{
			ID:             string(sub.ID) + "-" + monthKey,
			SubscriptionID: sub.ID,
			PartnerID:      sub.PartnerID,
			Client:         sub.Client,
			MonthLabel:     monthKey,
			Rule:           ruleLabel,
			Amount:         amount,
			Status:         status,
			Selectable:     selectable,
			MonthsActive:   monthsActiveTotal,
			MonthKeys:      []string{monthKey},
		})
	}

	return items
}

// =============================================================================
// DISPLAY ORDER
// =============================================================================

// sortItems orders the ledger for display: legacy balance first, then the
// aggregated prior-balance line, then chronological month keys.
func sortItems(items []PayableItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return sortKey(items[i]) < sortKey(items[j])
	})
}

func sortKey(item PayableItem) string {
	switch {
	case strings.HasPrefix(item.ID, "LEGACY-"):
		return "0000-00"
	case strings.HasPrefix(item.ID, "PRIOR-"):
		return "0000-01"
	default:
		return item.MonthLabel
	}
}
