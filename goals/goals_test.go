package goals_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas/commission-engine/commission"
	"github.com/atlas/commission-engine/goals"
)

func TestCurrentPeriod_QuarterBounds(t *testing.T) {
	tests := []struct {
		now       time.Time
		want      goals.PeriodID
		wantStart time.Time
	}{
		{time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), goals.PeriodQ1,
			time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, time.March, 31, 23, 59, 0, 0, time.UTC), goals.PeriodQ1,
			time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), goals.PeriodQ2,
			time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC), goals.PeriodQ2,
			time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, time.September, 30, 0, 0, 0, 0, time.UTC), goals.PeriodQ3,
			time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), goals.PeriodQ4,
			time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format("2006-01-02"), func(t *testing.T) {
			id, start, end := goals.CurrentPeriod(tt.now)
			assert.Equal(t, tt.want, id)
			assert.True(t, start.Equal(tt.wantStart))
			assert.True(t, end.After(tt.now) || end.Equal(tt.now),
				"period end %s must not precede now", end)
		})
	}
}

func TestDefaultTargets_CoversEveryPeriod(t *testing.T) {
	targets := goals.DefaultTargets(2024)
	require.Len(t, targets, 5)

	byID := make(map[goals.PeriodID]goals.Target, len(targets))
	for _, target := range targets {
		byID[target.ID] = target
	}

	assert.Equal(t, "Q2 2024", byID[goals.PeriodQ2].Label)
	assert.Equal(t, "Year 2024", byID[goals.PeriodAnnual].Label)

	// The annual rollup matches the sum of the quarters.
	assert.Equal(t, 45, byID[goals.PeriodAnnual].NewClientsTarget)
	assert.Equal(t, 14, byID[goals.PeriodAnnual].NewPartnersTarget)
}

func TestComputeProgress_CountsQuarterActuals(t *testing.T) {
	now := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC) // Q2

	partners := []commission.Partner{
		// Enrolled inside Q2: counts.
		{ID: "P-1", EnrolledAt: time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)},
		// Enrolled in Q1: does not count.
		{ID: "P-2", EnrolledAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)},
	}
	subs := []commission.Subscription{
		{ID: "S-1", StartDate: time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC),
			Status: commission.SubscriptionActive, Fee: commission.NewMoneyFromInt(300)},
		{ID: "S-2", StartDate: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
			Status: commission.SubscriptionActive, Fee: commission.NewMoneyFromInt(200)},
		// Started in Q2 but already cancelled: counts as a signup, adds no MRR.
		{ID: "S-3", StartDate: time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC),
			Status: commission.SubscriptionCancelled, Fee: commission.NewMoneyFromInt(999)},
		// Started last year: does not count.
		{ID: "S-4", StartDate: time.Date(2023, time.May, 20, 0, 0, 0, 0, time.UTC),
			Status: commission.SubscriptionActive, Fee: commission.NewMoneyFromInt(100)},
	}

	progress := goals.ComputeProgress(goals.DefaultTargets(2024), partners, subs, now)

	assert.Equal(t, goals.PeriodQ2, progress.Target.ID)
	assert.Equal(t, 3, progress.NewClients)
	assert.Equal(t, 1, progress.NewPartners)
	assert.True(t, progress.NewMRR.Equal(commission.NewMoneyFromInt(500)))
}

func TestProgressRatios_CappedAtOne(t *testing.T) {
	p := goals.Progress{
		Target: goals.Target{
			NewClientsTarget:  10,
			NewPartnersTarget: 4,
			MRRTarget:         commission.NewMoneyFromInt(1000),
		},
		NewClients:  5,
		NewPartners: 8, // over target
		NewMRR:      commission.NewMoneyFromInt(250),
	}

	assert.InDelta(t, 0.5, p.ClientsRatio(), 1e-9)
	assert.Equal(t, 1.0, p.PartnersRatio(), "over-attainment caps at 100%")
	assert.InDelta(t, 0.25, p.MRRRatio(), 1e-9)
}

func TestProgressRatios_ZeroTargetYieldsZero(t *testing.T) {
	p := goals.Progress{NewClients: 5}
	assert.Equal(t, 0.0, p.ClientsRatio())
	assert.Equal(t, 0.0, p.MRRRatio())
}
