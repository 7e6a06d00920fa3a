/*
aggregate.go - Pending aggregation policy

PURPOSE:
  Collapses stale pending months into a single actionable line. Without
  this, a partner whose commissions went unpaid for a year would see a
  dozen separate billable rows per client; with it, everything pending
  from calendar years before the current one folds into one "prior
  balance" line per subscription.

POLICY:
  - Only Pending lines from years strictly before the current year fold.
  - Paid, Paused, and Lock-up lines always stay granular.
  - Current-year Pending lines always stay granular.
  - The legacy opening-balance line is never folded (it is already a lump).

SEE ALSO:
  - ledger.go: Runs aggregation after generation unless SkipAggregation
*/
package commission

import (
	"fmt"
	"strings"
)

// AggregatePending folds pending lines from years before currentYear into
// one synthetic Pending line per subscription, summing their amounts.
func AggregatePending(items []PayableItem, currentYear int) []PayableItem {
	var out []PayableItem
	groups := make(map[SubscriptionID]*priorGroup)
	var order []SubscriptionID

	for _, item := range items {
		if strings.HasPrefix(item.ID, "LEGACY-") {
			out = append(out, item)
			continue
		}

		month, err := ParseMonth(item.MonthLabel)
		stale := err == nil && month.Year < currentYear

		if stale && item.Status == StatusPending {
			g := groups[item.SubscriptionID]
			if g == nil {
				g = &priorGroup{first: item, total: ZeroMoney()}
				groups[item.SubscriptionID] = g
				order = append(order, item.SubscriptionID)
			}
			g.total = g.total.Add(item.Amount)
			g.months = append(g.months, item.MonthLabel)
			continue
		}
		out = append(out, item)
	}

	for _, subID := range order {
		g := groups[subID]
		out = append(out, PayableItem{
			ID:             "PRIOR-" + string(subID),
			SubscriptionID: g.first.SubscriptionID,
			PartnerID:      g.first.PartnerID,
			Client:         g.first.Client,
			MonthLabel:     "Prior Balance",
			Rule:           fmt.Sprintf("Accrued through close of %d", currentYear-1),
			Amount:         g.total,
			Status:         StatusPending,
			Selectable:     true,
			MonthsActive:   g.first.MonthsActive,
			MonthKeys:      g.months,
		})
	}

	return out
}

type priorGroup struct {
	first  PayableItem
	total  Money
	months []string
}
