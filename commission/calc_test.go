package commission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlas/commission-engine/commission"
)

func TestMonthlyAmount_Thresholds(t *testing.T) {
	rule := commission.TierRule{
		Tier:             commission.TierGold,
		BountyMonths:     2,
		BountyPercentage: pct("1"),
		Year1Percentage:  pct("0.2"),
		Year2Percentage:  pct("0.15"),
		VestingMonths:    6,
	}
	fee := commission.NewMoneyFromInt(200)

	tests := []struct {
		name  string
		month int
		want  int
		label string
	}{
		{"first bounty month", 1, 200, "Bounty (month 1 - 100%)"},
		{"last bounty month", 2, 200, "Bounty (month 2 - 100%)"},
		{"first year-1 month", 3, 40, "Year 1 (20%)"},
		{"last year-1 month", 12, 40, "Year 1 (20%)"},
		{"first year-2 month", 13, 30, "Year 2+ (15%)"},
		{"deep into year 2", 40, 30, "Year 2+ (15%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, label := commission.MonthlyAmount(fee, tt.month, rule)
			assert.True(t, amount.Equal(commission.NewMoneyFromInt(tt.want)),
				"want %d, got %s", tt.want, amount)
			assert.Equal(t, tt.label, label)
		})
	}
}

func TestMonthlyAmount_FractionalPercentagesStayExact(t *testing.T) {
	// GIVEN a fee and percentage that would accumulate float error
	rule := commission.TierRule{
		Tier:            commission.TierSilver,
		Year1Percentage: pct("0.1"),
		Year2Percentage: pct("0.1"),
	}
	fee := commission.MustParseMoney("32.10")

	// WHEN a month is priced
	amount, _ := commission.MonthlyAmount(fee, 5, rule)

	// THEN the result is exact decimal arithmetic
	assert.Equal(t, "3.21", amount.String())
}

func TestMoneyArithmetic(t *testing.T) {
	a := commission.MustParseMoney("10.50")
	b := commission.MustParseMoney("0.25")

	assert.Equal(t, "10.75", a.Add(b).String())
	assert.Equal(t, "10.25", a.Sub(b).String())
	assert.Equal(t, "-10.50", a.Neg().String())
	assert.True(t, a.GreaterThan(b))
	assert.True(t, commission.ZeroMoney().IsZero())
	assert.True(t, b.IsPositive())
	assert.True(t, b.Neg().IsNegative())

	// String always renders two decimal places.
	assert.Equal(t, "5.00", commission.NewMoneyFromInt(5).String())
}
