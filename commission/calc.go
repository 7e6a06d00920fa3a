package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTHLY AMOUNT CALCULATOR - Prices a single month under a tier rule
// =============================================================================

var hundred = decimal.NewFromInt(100)

// MonthlyAmount returns the commission owed for month index m (1-based,
// counted from the subscription's true start date) together with the
// human-readable label of the rule that produced it.
//
// Thresholds, evaluated in order:
//  1. m <= BountyMonths        -> fee * BountyPercentage
//  2. m <= 12                  -> fee * Year1Percentage
//  3. otherwise                -> fee * Year2Percentage
//
// No rounding happens here. Currency formatting is a presentation concern.
func MonthlyAmount(fee Money, m int, rule TierRule) (Money, string) {
	switch {
	case m <= rule.BountyMonths:
		return fee.Mul(rule.BountyPercentage),
			fmt.Sprintf("Bounty (month %d - %s%%)", m, pctString(rule.BountyPercentage))
	case m <= 12:
		return fee.Mul(rule.Year1Percentage),
			fmt.Sprintf("Year 1 (%s%%)", pctString(rule.Year1Percentage))
	default:
		return fee.Mul(rule.Year2Percentage),
			fmt.Sprintf("Year 2+ (%s%%)", pctString(rule.Year2Percentage))
	}
}

func pctString(p Percent) string {
	return p.Mul(hundred).String()
}
