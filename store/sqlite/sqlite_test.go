/*
sqlite_test.go - Tests for the SQLite store

WHAT'S TESTED:
  - Round-trips for partners, subscriptions (paused months, opening
    balance, commission-clock override), and plans (tier rules as JSON)
  - The UNIQUE (subscription_id, month_key) guard and its transactional
    rollback during payout registration
  - Payment-date stamping
  - Directory replacement

Every test runs against a fresh in-memory database.
*/
package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas/commission-engine/commission"
	"github.com/atlas/commission-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testLiquidation(id commission.LiquidationID, sub commission.SubscriptionID, monthKey string) commission.Liquidation {
	return commission.Liquidation{
		ID:             id,
		PartnerID:      "P-1",
		SubscriptionID: sub,
		MonthKey:       monthKey,
		Amount:         commission.MustParseMoney("20"),
		PaidAt:         date(2024, time.June, 1),
	}
}

// =============================================================================
// DIRECTORY ROUND-TRIPS
// =============================================================================

func TestSQLite_PartnerRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// GIVEN a fully populated partner
	p := commission.Partner{
		ID:             "P-1",
		Name:           "Northwind Consulting",
		Contact:        "Ana Ruiz",
		Email:          "ana@northwind.example",
		Status:         commission.PartnerActive,
		Tier:           commission.TierGold,
		EnrolledAt:     date(2023, time.February, 10),
		Commissionable: true,
		PlanID:         "plan-1",
	}
	require.NoError(t, store.SavePartner(ctx, p))

	// WHEN it is read back
	partners, err := store.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)

	// THEN every field survives
	got := partners[0]
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Contact, got.Contact)
	assert.Equal(t, p.Email, got.Email)
	assert.Equal(t, p.Status, got.Status)
	assert.Equal(t, p.Tier, got.Tier)
	assert.Equal(t, p.PlanID, got.PlanID)
	assert.True(t, got.Commissionable)
	assert.True(t, got.EnrolledAt.Equal(p.EnrolledAt))
}

func TestSQLite_SubscriptionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// GIVEN a migrated subscription with every optional field set
	clockStart := date(2024, time.March, 1)
	end := date(2025, time.January, 31)
	sub := commission.Subscription{
		ID:              "S-1",
		PartnerID:       "P-1",
		Client:          "Vertex Logistics",
		Fee:             commission.MustParseMoney("180.50"),
		StartDate:       date(2023, time.January, 15),
		EndDate:         &end,
		Status:          commission.SubscriptionActive,
		OpeningBalance:  commission.MustParseMoney("450"),
		CommissionStart: &clockStart,
		PausedMonths: []commission.Month{
			commission.NewMonth(2023, time.August),
			commission.NewMonth(2024, time.February),
		},
		PlanID: "plan-1",
	}
	require.NoError(t, store.SaveSubscription(ctx, sub))

	// WHEN it is read back
	subs, err := store.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	// THEN the commission-relevant fields survive exactly
	got := subs[0]
	assert.True(t, got.Fee.Equal(sub.Fee))
	assert.True(t, got.OpeningBalance.Equal(sub.OpeningBalance))
	assert.True(t, got.StartDate.Equal(sub.StartDate))
	require.NotNil(t, got.EndDate)
	assert.True(t, got.EndDate.Equal(end))
	require.NotNil(t, got.CommissionStart)
	assert.True(t, got.CommissionStart.Equal(clockStart))
	assert.Equal(t, sub.PausedMonths, got.PausedMonths)
}

func TestSQLite_PlanRoundTripKeepsRules(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// GIVEN a plan with two tier rules
	maxClients := 20
	plan := commission.CommercialPlan{
		ID:        "plan-1",
		Name:      "Standard",
		StartDate: date(2023, time.January, 1),
		Active:    true,
		Default:   true,
		Rules: []commission.TierRule{
			{
				Tier:             commission.TierSilver,
				MaxClients:       &maxClients,
				BountyMonths:     1,
				BountyPercentage: commission.MustParseMoney("1").Value,
				Year1Percentage:  commission.MustParseMoney("0.2").Value,
				Year2Percentage:  commission.MustParseMoney("0.15").Value,
				VestingMonths:    6,
			},
			{
				Tier:             commission.TierGold,
				MinClients:       10,
				BountyMonths:     2,
				BountyPercentage: commission.MustParseMoney("1").Value,
				Year1Percentage:  commission.MustParseMoney("0.2").Value,
				Year2Percentage:  commission.MustParseMoney("0.15").Value,
				VestingMonths:    6,
			},
		},
	}
	require.NoError(t, store.SavePlan(ctx, plan))

	// WHEN it is read back
	plans, err := store.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	// THEN the rules decode with percentages intact
	got := plans[0]
	require.Len(t, got.Rules, 2)
	silver := got.RuleForTier(commission.TierSilver)
	require.NotNil(t, silver)
	assert.Equal(t, 1, silver.BountyMonths)
	assert.True(t, silver.Year1Percentage.Equal(plan.Rules[0].Year1Percentage))
	require.NotNil(t, silver.MaxClients)
	assert.Equal(t, 20, *silver.MaxClients)

	gold := got.RuleForTier(commission.TierGold)
	require.NotNil(t, gold)
	assert.Equal(t, 10, gold.MinClients)
	assert.Nil(t, gold.MaxClients)
}

func TestSQLite_ReplaceDirectory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SavePartner(ctx, commission.Partner{
		ID: "P-OLD", Name: "Old", Status: commission.PartnerActive,
		Tier: commission.TierSilver, EnrolledAt: date(2023, time.January, 1),
	}))
	require.NoError(t, store.AppendLiquidations(ctx, []commission.Liquidation{
		testLiquidation("L-1", "S-1", "2024-01"),
	}))

	// WHEN the directory is replaced
	err := store.ReplaceDirectory(ctx,
		[]commission.Partner{{
			ID: "P-NEW", Name: "New", Status: commission.PartnerActive,
			Tier: commission.TierSilver, EnrolledAt: date(2024, time.January, 1),
		}},
		nil, nil)
	require.NoError(t, err)

	// THEN partners are swapped but the payment log is untouched
	partners, err := store.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, commission.PartnerID("P-NEW"), partners[0].ID)

	liqs, err := store.ListLiquidations(ctx)
	require.NoError(t, err)
	assert.Len(t, liqs, 1)
}

// =============================================================================
// LIQUIDATION UNIQUENESS
// =============================================================================

func TestSQLite_DuplicateMonthIsRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AppendLiquidations(ctx, []commission.Liquidation{
		testLiquidation("L-1", "S-1", "2024-01"),
	}))

	// WHEN the same subscription-month is appended again under a new id
	err := store.AppendLiquidations(ctx, []commission.Liquidation{
		testLiquidation("L-2", "S-1", "2024-01"),
	})

	// THEN the database-level guard rejects it with a typed error
	var dupErr *commission.DuplicateLiquidationError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, commission.SubscriptionID("S-1"), dupErr.SubscriptionID)
	assert.Equal(t, "2024-01", dupErr.MonthKey)
	assert.True(t, commission.IsConflict(err))
}

func TestSQLite_AppendBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AppendLiquidations(ctx, []commission.Liquidation{
		testLiquidation("L-1", "S-1", "2024-01"),
	}))

	// WHEN a batch contains one fresh month and one duplicate
	err := store.AppendLiquidations(ctx, []commission.Liquidation{
		testLiquidation("L-2", "S-1", "2024-02"),
		testLiquidation("L-3", "S-1", "2024-01"),
	})
	require.Error(t, err)

	// THEN the fresh month did not survive the rollback
	liqs, err := store.ListLiquidations(ctx)
	require.NoError(t, err)
	assert.Len(t, liqs, 1)
}

func TestSQLite_RegisterPayoutRollsBackOnDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AppendLiquidations(ctx, []commission.Liquidation{
		testLiquidation("L-1", "S-1", "2024-01"),
	}))

	// WHEN a payout includes an already-settled month
	err := store.RegisterPayout(ctx, commission.PayoutRecord{
		ID:          "INV-2024-dup",
		PartnerID:   "P-1",
		PartnerName: "Northwind",
		GeneratedAt: date(2024, time.June, 15),
		TotalAmount: commission.MustParseMoney("40"),
		Status:      commission.PayoutPending,
		Items: []commission.Liquidation{
			testLiquidation("L-2", "S-1", "2024-02"),
			testLiquidation("L-3", "S-1", "2024-01"),
		},
	})
	require.Error(t, err)
	assert.True(t, commission.IsConflict(err))

	// THEN the whole registration rolled back
	_, err = store.Payout(ctx, "INV-2024-dup")
	assert.ErrorIs(t, err, commission.ErrPayoutNotFound)

	liqs, err := store.ListLiquidations(ctx)
	require.NoError(t, err)
	assert.Len(t, liqs, 1)
}

// =============================================================================
// PAYOUTS
// =============================================================================

func TestSQLite_PayoutRoundTripWithItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	payout := commission.PayoutRecord{
		ID:          "INV-2024-abc12345",
		PartnerID:   "P-1",
		PartnerName: "Northwind",
		GeneratedAt: date(2024, time.June, 15),
		TotalAmount: commission.MustParseMoney("40"),
		Status:      commission.PayoutPending,
		Items: []commission.Liquidation{
			testLiquidation("L-1", "S-1", "2024-01"),
			testLiquidation("L-2", "S-1", "2024-02"),
		},
	}
	require.NoError(t, store.RegisterPayout(ctx, payout))

	got, err := store.Payout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, "Northwind", got.PartnerName)
	assert.True(t, got.TotalAmount.Equal(payout.TotalAmount))
	assert.Equal(t, commission.PayoutPending, got.Status)
	assert.Nil(t, got.PaymentDate)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "2024-01", got.Items[0].MonthKey)
}

func TestSQLite_ListPayoutsNewestFirstAndScoped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.RegisterPayout(ctx, commission.PayoutRecord{
		ID: "INV-2024-a", PartnerID: "P-1", PartnerName: "A",
		GeneratedAt: date(2024, time.May, 1),
		TotalAmount: commission.MustParseMoney("20"),
		Status:      commission.PayoutPending,
		Items:       []commission.Liquidation{testLiquidation("L-1", "S-1", "2024-01")},
	}))
	require.NoError(t, store.RegisterPayout(ctx, commission.PayoutRecord{
		ID: "INV-2024-b", PartnerID: "P-2", PartnerName: "B",
		GeneratedAt: date(2024, time.June, 1),
		TotalAmount: commission.MustParseMoney("20"),
		Status:      commission.PayoutPending,
		Items:       []commission.Liquidation{testLiquidation("L-2", "S-2", "2024-01")},
	}))

	all, err := store.ListPayouts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, commission.PayoutID("INV-2024-b"), all[0].ID)
	require.Len(t, all[0].Items, 1)

	scoped, err := store.ListPayouts(ctx, "P-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, commission.PayoutID("INV-2024-a"), scoped[0].ID)
}

func TestSQLite_SetPaymentDate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.RegisterPayout(ctx, commission.PayoutRecord{
		ID: "INV-2024-a", PartnerID: "P-1", PartnerName: "A",
		GeneratedAt: date(2024, time.June, 15),
		TotalAmount: commission.MustParseMoney("20"),
		Status:      commission.PayoutPending,
		Items:       []commission.Liquidation{testLiquidation("L-1", "S-1", "2024-01")},
	}))

	// WHEN a payment date is stamped
	paidOn := date(2024, time.June, 20)
	updated, err := store.SetPaymentDate(ctx, "INV-2024-a", &paidOn)
	require.NoError(t, err)
	assert.Equal(t, commission.PayoutPaid, updated.Status)
	require.NotNil(t, updated.PaymentDate)
	assert.True(t, updated.PaymentDate.Equal(paidOn))

	// AND clearing it reverts to Pending
	cleared, err := store.SetPaymentDate(ctx, "INV-2024-a", nil)
	require.NoError(t, err)
	assert.Equal(t, commission.PayoutPending, cleared.Status)
	assert.Nil(t, cleared.PaymentDate)

	// AND a missing payout reports not-found
	_, err = store.SetPaymentDate(ctx, "INV-missing", &paidOn)
	assert.ErrorIs(t, err, commission.ErrPayoutNotFound)
}
