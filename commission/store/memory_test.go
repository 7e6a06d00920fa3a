/*
memory_test.go - Tests for the in-memory store

WHAT'S TESTED:
  - Batch atomicity: a rejected batch writes nothing
  - Month uniqueness per subscription, including within a single batch
  - Payout registration rollback on duplicates
  - Payout listing order and filtering
  - Directory replacement
*/
package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas/commission-engine/commission"
	"github.com/atlas/commission-engine/commission/store"
)

func liq(id commission.LiquidationID, sub commission.SubscriptionID, monthKey string, paidAt time.Time) commission.Liquidation {
	return commission.Liquidation{
		ID:             id,
		PartnerID:      "P-1",
		SubscriptionID: sub,
		MonthKey:       monthKey,
		Amount:         commission.NewMoneyFromInt(20),
		PaidAt:         paidAt,
	}
}

var day = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestMemory_AppendRejectsSettledMonth(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	// GIVEN a month already settled
	require.NoError(t, mem.AppendLiquidations(ctx, []commission.Liquidation{
		liq("L-1", "S-1", "2024-01", day),
	}))

	// WHEN a batch containing that month plus a new one is appended
	err := mem.AppendLiquidations(ctx, []commission.Liquidation{
		liq("L-2", "S-1", "2024-02", day),
		liq("L-3", "S-1", "2024-01", day),
	})

	// THEN the whole batch is rejected and the new month was not written
	var dupErr *commission.DuplicateLiquidationError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "2024-01", dupErr.MonthKey)

	liqs, lerr := mem.ListLiquidations(ctx)
	require.NoError(t, lerr)
	assert.Len(t, liqs, 1)
}

func TestMemory_AppendRejectsDuplicateWithinBatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	// WHEN one batch settles the same month twice
	err := mem.AppendLiquidations(ctx, []commission.Liquidation{
		liq("L-1", "S-1", "2024-01", day),
		liq("L-2", "S-1", "2024-01", day),
	})

	// THEN nothing is written
	assert.True(t, commission.IsConflict(err))
	liqs, lerr := mem.ListLiquidations(ctx)
	require.NoError(t, lerr)
	assert.Empty(t, liqs)
}

func TestMemory_SameMonthDifferentSubscriptionsIsFine(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	err := mem.AppendLiquidations(ctx, []commission.Liquidation{
		liq("L-1", "S-1", "2024-01", day),
		liq("L-2", "S-2", "2024-01", day),
	})
	require.NoError(t, err)
}

func TestMemory_RegisterPayoutRollsBackOnDuplicate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.AppendLiquidations(ctx, []commission.Liquidation{
		liq("L-1", "S-1", "2024-01", day),
	}))

	// WHEN a payout tries to settle an already-settled month
	err := mem.RegisterPayout(ctx, commission.PayoutRecord{
		ID:          "INV-2024-dup",
		PartnerID:   "P-1",
		GeneratedAt: day,
		Status:      commission.PayoutPending,
		Items: []commission.Liquidation{
			liq("L-2", "S-1", "2024-02", day),
			liq("L-3", "S-1", "2024-01", day),
		},
	})

	// THEN neither the payout nor any of its liquidations persist
	assert.True(t, commission.IsConflict(err))

	payouts, perr := mem.ListPayouts(ctx, "")
	require.NoError(t, perr)
	assert.Empty(t, payouts)

	liqs, lerr := mem.ListLiquidations(ctx)
	require.NoError(t, lerr)
	assert.Len(t, liqs, 1)
}

func TestMemory_ListPayoutsNewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	older := commission.PayoutRecord{
		ID: "INV-2024-a", PartnerID: "P-1",
		GeneratedAt: day, Status: commission.PayoutPending,
		Items: []commission.Liquidation{liq("L-1", "S-1", "2024-01", day)},
	}
	newer := commission.PayoutRecord{
		ID: "INV-2024-b", PartnerID: "P-2",
		GeneratedAt: day.AddDate(0, 0, 5), Status: commission.PayoutPending,
		Items: []commission.Liquidation{liq("L-2", "S-2", "2024-01", day)},
	}
	require.NoError(t, mem.RegisterPayout(ctx, older))
	require.NoError(t, mem.RegisterPayout(ctx, newer))

	all, err := mem.ListPayouts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, commission.PayoutID("INV-2024-b"), all[0].ID)

	scoped, err := mem.ListPayouts(ctx, "P-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, commission.PayoutID("INV-2024-a"), scoped[0].ID)
}

func TestMemory_SetPaymentDate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.RegisterPayout(ctx, commission.PayoutRecord{
		ID: "INV-2024-a", PartnerID: "P-1",
		GeneratedAt: day, Status: commission.PayoutPending,
	}))

	paidOn := day.AddDate(0, 0, 10)
	updated, err := mem.SetPaymentDate(ctx, "INV-2024-a", &paidOn)
	require.NoError(t, err)
	assert.Equal(t, commission.PayoutPaid, updated.Status)

	// The change survives a fresh read.
	fetched, err := mem.Payout(ctx, "INV-2024-a")
	require.NoError(t, err)
	assert.Equal(t, commission.PayoutPaid, fetched.Status)
	require.NotNil(t, fetched.PaymentDate)

	_, err = mem.SetPaymentDate(ctx, "INV-missing", &paidOn)
	assert.ErrorIs(t, err, commission.ErrPayoutNotFound)
}

func TestMemory_ReplaceDirectory(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.SavePartner(ctx, commission.Partner{ID: "P-OLD", Name: "Old"}))

	// WHEN the directory is replaced wholesale
	err := mem.ReplaceDirectory(ctx,
		[]commission.Partner{{ID: "P-NEW", Name: "New"}},
		[]commission.Subscription{{ID: "S-NEW", PartnerID: "P-NEW", Client: "Acme"}},
		[]commission.CommercialPlan{{ID: "plan-new", Name: "New Plan"}},
	)
	require.NoError(t, err)

	// THEN only the new collections remain
	partners, err := mem.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, commission.PartnerID("P-NEW"), partners[0].ID)

	subs, err := mem.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	plans, err := mem.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestMemory_SaveUpsertsByID(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.SavePartner(ctx, commission.Partner{ID: "P-1", Name: "Before"}))
	require.NoError(t, mem.SavePartner(ctx, commission.Partner{ID: "P-1", Name: "After"}))

	partners, err := mem.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, "After", partners[0].Name)
}
