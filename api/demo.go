/*
demo.go - Demo dataset loader

PURPOSE:
  Seeds the store with a small but representative dataset so the dashboard
  is explorable without connecting real spreadsheets. The dataset covers
  every interesting ledger shape: a mature subscription with paid history,
  one still inside its vesting lock-up, one with a migrated opening
  balance and a commission-clock override, and one with a paused month.

NOT FOR PRODUCTION:
  Loading the demo replaces the directory. Liquidations append, so loading
  twice does not duplicate the paid history.

SEE ALSO:
  - server.go: POST /api/demo/load
  - factory/plan.go: DefaultTieredProgram preset
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/atlas/commission-engine/commission"
	"github.com/atlas/commission-engine/factory"
)

// LoadDemo seeds the store with the demo dataset.
// POST /api/demo/load
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.loadDemoData(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (h *Handler) loadDemoData(ctx context.Context) error {
	now := h.now()
	date := func(monthsAgo int) time.Time {
		return time.Date(now.Year(), now.Month(), 15, 0, 0, 0, 0, time.UTC).AddDate(0, -monthsAgo, 0)
	}

	plan := factory.DefaultTieredProgram("plan-standard", "Standard Tiered Program",
		time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC))

	partners := []commission.Partner{
		{
			ID: "P-001", Name: "Northwind Consulting", Contact: "Ana Ruiz",
			Email: "ana@northwind.example", Status: commission.PartnerActive,
			Tier: commission.TierGold, EnrolledAt: date(18), Commissionable: true,
		},
		{
			ID: "P-002", Name: "Bluegrid Digital", Contact: "Marc Vidal",
			Email: "marc@bluegrid.example", Status: commission.PartnerActive,
			Tier: commission.TierSilver, EnrolledAt: date(8), Commissionable: true,
		},
		{
			ID: "P-003", Name: "Helio Ventures", Contact: "Sofia Leme",
			Email: "sofia@helio.example", Status: commission.PartnerPotential,
			Tier: commission.TierSilver, EnrolledAt: date(1), Commissionable: true,
		},
	}

	openingBalance := commission.NewMoneyFromInt(450)
	commissionStart := date(3)
	pausedMonth := commission.MonthOf(date(2))

	subs := []commission.Subscription{
		{
			// Mature: past vesting, paid history below.
			ID: "S-100", PartnerID: "P-001", Client: "Acme Retail",
			Fee: commission.NewMoneyFromInt(250), StartDate: date(14),
			Status: commission.SubscriptionActive,
		},
		{
			// Migrated: debt accrued before the system existed, commission
			// clock restarted three months ago.
			ID: "S-101", PartnerID: "P-001", Client: "Vertex Logistics",
			Fee: commission.NewMoneyFromInt(180), StartDate: date(20),
			Status:          commission.SubscriptionActive,
			OpeningBalance:  openingBalance,
			CommissionStart: &commissionStart,
		},
		{
			// Young: still inside the six-month lock-up.
			ID: "S-200", PartnerID: "P-002", Client: "Quartz Media",
			Fee: commission.NewMoneyFromInt(120), StartDate: date(3),
			Status: commission.SubscriptionActive,
		},
		{
			// Paused: one month skipped by agreement.
			ID: "S-201", PartnerID: "P-002", Client: "Delta Foods",
			Fee: commission.NewMoneyFromInt(90), StartDate: date(9),
			Status:       commission.SubscriptionActive,
			PausedMonths: []commission.Month{pausedMonth},
		},
	}

	if err := h.Store.ReplaceDirectory(ctx, partners, subs,
		[]commission.CommercialPlan{*plan}); err != nil {
		return err
	}

	// Paid history for the mature subscription: first two months settled.
	liqs := []commission.Liquidation{
		{
			ID: "L-demo-1", PartnerID: "P-001", SubscriptionID: "S-100",
			MonthKey: commission.MonthOf(date(14)).Key(),
			Amount:   commission.NewMoneyFromInt(250), PaidAt: date(13),
		},
		{
			ID: "L-demo-2", PartnerID: "P-001", SubscriptionID: "S-100",
			MonthKey: commission.MonthOf(date(13)).Key(),
			Amount:   commission.NewMoneyFromInt(250), PaidAt: date(12),
		},
	}

	err := h.Store.AppendLiquidations(ctx, liqs)
	if err != nil && !commission.IsConflict(err) {
		return err
	}
	return nil
}
