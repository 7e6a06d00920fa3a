/*
plan.go - Commercial plans, tier rules, and rule resolution

PURPOSE:
  Defines the commercial program that governs commission math: for each
  partner tier, how long the bounty window lasts, which percentages apply
  in year 1 and year 2+, and how long commission stays locked up.

KEY CONCEPTS:
  - CommercialPlan: A named, dated set of tier rules
  - TierRule: The percentages and windows for one tier
  - RuleResolution: The outcome of resolving partner -> plan -> rule

RESOLUTION POLICY:
  Resolution never blocks billing on misconfiguration. A partner with an
  unknown plan id falls back to the first available plan; a tier with no
  matching rule falls back to the plan's first rule. Callers that care about
  data quality inspect RuleResolution.Outcome instead of relying on an error:
  a degraded fallback still bills, but is observable.

SEE ALSO:
  - calc.go:   Uses TierRule to price a single month
  - ledger.go: Resolves a rule per subscription before the monthly walk
*/
package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER RULE - Commission parameters for one partner tier
// =============================================================================

type TierRule struct {
	Tier Tier

	// MinClients/MaxClients describe the client-count band this tier is
	// intended for. Authoring guidance only: never enforced at ledger time.
	MinClients int
	MaxClients *int // nil = unbounded

	// BountyMonths is the length of the initial elevated-percentage window.
	BountyMonths int

	// Percentages are fractions of the monthly fee in [0, 1].
	BountyPercentage Percent
	Year1Percentage  Percent
	Year2Percentage  Percent

	// VestingMonths is the minimum subscription age in whole months before
	// any commission becomes payable.
	VestingMonths int
}

// Percent is a fraction in [0, 1]. Stored as decimal to keep fee*pct exact.
type Percent = decimal.Decimal

// =============================================================================
// COMMERCIAL PLAN
// =============================================================================

type CommercialPlan struct {
	ID        PlanID
	Name      string
	StartDate time.Time
	Active    bool
	Default   bool

	// Rules holds one rule per tier; tiers are unique within a plan.
	Rules []TierRule
}

// RuleForTier returns the rule matching the tier, or nil if absent.
func (p *CommercialPlan) RuleForTier(tier Tier) *TierRule {
	for i := range p.Rules {
		if p.Rules[i].Tier == tier {
			return &p.Rules[i]
		}
	}
	return nil
}

// =============================================================================
// RULE RESOLUTION - partner -> plan -> tier rule
// =============================================================================

type ResolutionOutcome string

const (
	// ResolutionFound: partner, plan, and tier rule all matched cleanly.
	ResolutionFound ResolutionOutcome = "found"

	// ResolutionFallback: a rule was produced but some lookup degraded
	// (unknown partner, unknown plan id, or missing tier rule).
	ResolutionFallback ResolutionOutcome = "fallback"

	// ResolutionUnresolvable: no plans or no rules exist at all. The
	// subscription cannot be billed.
	ResolutionUnresolvable ResolutionOutcome = "unresolvable"
)

type RuleResolution struct {
	Outcome ResolutionOutcome
	Rule    TierRule
	Plan    *CommercialPlan

	// Reason explains the degradation when Outcome != ResolutionFound.
	Reason string
}

// ResolveRule selects the tier rule applicable to a subscription.
//
// Lookup order:
//  1. Partner by subscription's partner id (missing partner -> Silver tier).
//  2. Plan by the partner's plan id, else the subscription's plan id, else
//     the first available plan.
//  3. Rule by the partner's tier within the plan, else the plan's first rule.
//
// Tier is looked up live: a tier change immediately affects all unpaid
// months, past and future. Already-recorded liquidations keep their amounts.
func ResolveRule(sub *Subscription, partners []Partner, plans []CommercialPlan) RuleResolution {
	if len(plans) == 0 {
		return RuleResolution{Outcome: ResolutionUnresolvable, Reason: "no commercial plans configured"}
	}

	degraded := ""

	var partner *Partner
	for i := range partners {
		if partners[i].ID == sub.PartnerID {
			partner = &partners[i]
			break
		}
	}

	tier := TierSilver
	planID := sub.PlanID
	if partner == nil {
		degraded = "partner not found, assuming Silver tier"
	} else {
		tier = partner.Tier
		if partner.PlanID != "" {
			planID = partner.PlanID
		}
	}

	plan := &plans[0]
	if planID != "" {
		found := false
		for i := range plans {
			if plans[i].ID == planID {
				plan = &plans[i]
				found = true
				break
			}
		}
		if !found && degraded == "" {
			degraded = "plan " + string(planID) + " not found, using first available plan"
		}
	} else if degraded == "" && !plan.Default {
		// No explicit plan anywhere; first plan is a deliberate fallback
		// unless it is flagged as the default.
		degraded = "no plan assigned, using first available plan"
	}

	if len(plan.Rules) == 0 {
		return RuleResolution{
			Outcome: ResolutionUnresolvable,
			Plan:    plan,
			Reason:  "plan " + string(plan.ID) + " has no tier rules",
		}
	}

	rule := plan.RuleForTier(tier)
	if rule == nil {
		rule = &plan.Rules[0]
		if degraded == "" {
			degraded = "no rule for tier " + string(tier) + ", using first rule"
		}
	}

	if degraded != "" {
		return RuleResolution{Outcome: ResolutionFallback, Rule: *rule, Plan: plan, Reason: degraded}
	}
	return RuleResolution{Outcome: ResolutionFound, Rule: *rule, Plan: plan}
}
