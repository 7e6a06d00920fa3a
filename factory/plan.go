/*
Package factory provides JSON to Go commercial plan conversion.

PURPOSE:
  Converts JSON plan definitions into commission.CommercialPlan objects.
  This enables plan configuration without code changes - the sales team
  can author plans in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can author plans
  - Easy integration with admin UI
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "id": "plan-2024",
    "name": "Tiered Program 2024",
    "start_date": "2024-01-01",
    "active": true,
    "default": true,
    "rules": {
      "Gold": {
        "min_clients": 10,
        "max_clients": 20,
        "bounty_months": 2,
        "bounty_percentage": 1.0,
        "year1_percentage": 0.2,
        "year2_percentage": 0.15,
        "vesting_months": 6
      }
    }
  }

PERCENTAGES:
  All percentages are fractions (0.2 = 20%), matching how the engine
  multiplies them against subscription fees.

USAGE:
  factory := NewPlanFactory()

  // From JSON string
  plan, err := factory.ParsePlan(jsonString)

  // From the built-in preset
  plan := DefaultTieredProgram("plan-2024", "Tiered Program 2024", start)

SEE ALSO:
  - commission/plan.go: CommercialPlan and TierRule definitions
  - commission/ledger.go: Where resolved rules drive the waterfall
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas/commission-engine/commission"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a commercial plan.
type PlanJSON struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	StartDate string                  `json:"start_date"`
	Active    bool                    `json:"active"`
	Default   bool                    `json:"default,omitempty"`
	Rules     map[string]TierRuleJSON `json:"rules"`
}

// TierRuleJSON represents one tier's commission terms.
type TierRuleJSON struct {
	MinClients       int      `json:"min_clients"`
	MaxClients       *int     `json:"max_clients,omitempty"` // nil = unbounded
	BountyMonths     int      `json:"bounty_months"`
	BountyPercentage float64  `json:"bounty_percentage"`
	Year1Percentage  float64  `json:"year1_percentage"`
	Year2Percentage  float64  `json:"year2_percentage"`
	VestingMonths    int      `json:"vesting_months"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to Go structs.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a CommercialPlan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*commission.CommercialPlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to a CommercialPlan.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*commission.CommercialPlan, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("plan id is required")
	}
	if len(pj.Rules) == 0 {
		return nil, fmt.Errorf("plan %s has no tier rules", pj.ID)
	}

	startDate := time.Now().UTC()
	if pj.StartDate != "" {
		t, err := time.Parse("2006-01-02", pj.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	plan := &commission.CommercialPlan{
		ID:        commission.PlanID(pj.ID),
		Name:      pj.Name,
		StartDate: startDate,
		Active:    pj.Active,
		Default:   pj.Default,
	}

	// JSON objects have no order; emit rules Silver -> Gold -> Platinum so
	// the plan's "first rule" fallback is deterministic.
	for _, tier := range tierOrder {
		rj, ok := pj.Rules[string(tier)]
		if !ok {
			continue
		}
		rule, err := parseTierRule(rj)
		if err != nil {
			return nil, fmt.Errorf("tier %s: %w", tier, err)
		}
		rule.Tier = tier
		plan.Rules = append(plan.Rules, rule)
	}

	for tierName := range pj.Rules {
		if _, err := parseTier(tierName); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// ToJSON converts a CommercialPlan to PlanJSON.
func (f *PlanFactory) ToJSON(plan *commission.CommercialPlan) PlanJSON {
	pj := PlanJSON{
		ID:        string(plan.ID),
		Name:      plan.Name,
		StartDate: plan.StartDate.Format("2006-01-02"),
		Active:    plan.Active,
		Default:   plan.Default,
		Rules:     make(map[string]TierRuleJSON, len(plan.Rules)),
	}

	for _, rule := range plan.Rules {
		pj.Rules[string(rule.Tier)] = TierRuleJSON{
			MinClients:       rule.MinClients,
			MaxClients:       rule.MaxClients,
			BountyMonths:     rule.BountyMonths,
			BountyPercentage: fraction(rule.BountyPercentage),
			Year1Percentage:  fraction(rule.Year1Percentage),
			Year2Percentage:  fraction(rule.Year2Percentage),
			VestingMonths:    rule.VestingMonths,
		}
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var tierOrder = []commission.Tier{
	commission.TierSilver,
	commission.TierGold,
	commission.TierPlatinum,
}

func parseTier(s string) (commission.Tier, error) {
	switch s {
	case string(commission.TierSilver):
		return commission.TierSilver, nil
	case string(commission.TierGold):
		return commission.TierGold, nil
	case string(commission.TierPlatinum):
		return commission.TierPlatinum, nil
	default:
		return "", fmt.Errorf("unknown tier: %s", s)
	}
}

func parseTierRule(rj TierRuleJSON) (commission.TierRule, error) {
	if rj.VestingMonths < 0 {
		return commission.TierRule{}, fmt.Errorf("vesting_months cannot be negative")
	}
	for _, p := range []float64{rj.BountyPercentage, rj.Year1Percentage, rj.Year2Percentage} {
		if p < 0 {
			return commission.TierRule{}, fmt.Errorf("percentages cannot be negative")
		}
	}

	return commission.TierRule{
		MinClients:       rj.MinClients,
		MaxClients:       rj.MaxClients,
		BountyMonths:     rj.BountyMonths,
		BountyPercentage: decimal.NewFromFloat(rj.BountyPercentage),
		Year1Percentage:  decimal.NewFromFloat(rj.Year1Percentage),
		Year2Percentage:  decimal.NewFromFloat(rj.Year2Percentage),
		VestingMonths:    rj.VestingMonths,
	}, nil
}

func fraction(p commission.Percent) float64 {
	v, _ := decimal.Decimal(p).Float64()
	return v
}

// =============================================================================
// PRESET PLANS
// =============================================================================

// DefaultTieredProgram returns the standard three-tier program: a ramp-up
// bounty at full fee, 20% through the first subscription year, 15% after,
// and a six-month vesting lock-up. Tiers differ only in bounty length and
// the client bands that earn them.
func DefaultTieredProgram(id, name string, startDate time.Time) *commission.CommercialPlan {
	maxSilver := 9
	maxGold := 20

	return &commission.CommercialPlan{
		ID:        commission.PlanID(id),
		Name:      name,
		StartDate: startDate,
		Active:    true,
		Default:   true,
		Rules: []commission.TierRule{
			{
				Tier:             commission.TierSilver,
				MinClients:       0,
				MaxClients:       &maxSilver,
				BountyMonths:     1,
				BountyPercentage: decimal.NewFromInt(1),
				Year1Percentage:  decimal.NewFromFloat(0.20),
				Year2Percentage:  decimal.NewFromFloat(0.15),
				VestingMonths:    6,
			},
			{
				Tier:             commission.TierGold,
				MinClients:       10,
				MaxClients:       &maxGold,
				BountyMonths:     2,
				BountyPercentage: decimal.NewFromInt(1),
				Year1Percentage:  decimal.NewFromFloat(0.20),
				Year2Percentage:  decimal.NewFromFloat(0.15),
				VestingMonths:    6,
			},
			{
				Tier:             commission.TierPlatinum,
				MinClients:       21,
				BountyMonths:     3,
				BountyPercentage: decimal.NewFromInt(1),
				Year1Percentage:  decimal.NewFromFloat(0.20),
				Year2Percentage:  decimal.NewFromFloat(0.15),
				VestingMonths:    6,
			},
		},
	}
}
