/*
plan_test.go - Tests for rule resolution

WHAT'S TESTED:
  - Clean resolution: partner -> plan -> tier rule
  - Fallback paths: missing partner, unknown plan, missing tier rule
  - Unresolvable inputs: no plans, plan without rules
  - Live tier lookup (tier changes reprice unpaid months immediately)
*/
package commission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas/commission-engine/commission"
)

func TestResolveRule_CleanMatch(t *testing.T) {
	// GIVEN a Gold partner on the default plan
	partner := testPartner("P-1", commission.TierGold)
	sub := testSub("S-1", "P-1", 100, monthsAgo(7))

	// WHEN the rule is resolved
	res := commission.ResolveRule(&sub,
		[]commission.Partner{partner},
		[]commission.CommercialPlan{testPlan()})

	// THEN the Gold rule is found with no degradation
	assert.Equal(t, commission.ResolutionFound, res.Outcome)
	assert.Equal(t, commission.TierGold, res.Rule.Tier)
	assert.Equal(t, 2, res.Rule.BountyMonths)
	assert.Empty(t, res.Reason)
}

func TestResolveRule_PartnerPlanOverridesSubscriptionPlan(t *testing.T) {
	// GIVEN two plans, with the partner pinned to the second
	planA := testPlan()
	planB := testPlan()
	planB.ID = "plan-2"
	planB.Default = false

	partner := testPartner("P-1", commission.TierSilver)
	partner.PlanID = "plan-2"
	sub := testSub("S-1", "P-1", 100, monthsAgo(7))
	sub.PlanID = "plan-1"

	// WHEN the rule is resolved
	res := commission.ResolveRule(&sub,
		[]commission.Partner{partner},
		[]commission.CommercialPlan{planA, planB})

	// THEN the partner's plan wins
	assert.Equal(t, commission.ResolutionFound, res.Outcome)
	require.NotNil(t, res.Plan)
	assert.Equal(t, commission.PlanID("plan-2"), res.Plan.ID)
}

func TestResolveRule_MissingPartnerFallsBackToSilver(t *testing.T) {
	// GIVEN a subscription whose partner is not in the directory
	sub := testSub("S-1", "P-GONE", 100, monthsAgo(7))

	// WHEN the rule is resolved
	res := commission.ResolveRule(&sub, nil,
		[]commission.CommercialPlan{testPlan()})

	// THEN billing still works on the Silver rule, flagged as degraded
	assert.Equal(t, commission.ResolutionFallback, res.Outcome)
	assert.Equal(t, commission.TierSilver, res.Rule.Tier)
	assert.NotEmpty(t, res.Reason)
}

func TestResolveRule_UnknownPlanFallsBackToFirst(t *testing.T) {
	// GIVEN a partner pinned to a plan that no longer exists
	partner := testPartner("P-1", commission.TierSilver)
	partner.PlanID = "plan-deleted"
	sub := testSub("S-1", "P-1", 100, monthsAgo(7))

	// WHEN the rule is resolved
	res := commission.ResolveRule(&sub,
		[]commission.Partner{partner},
		[]commission.CommercialPlan{testPlan()})

	// THEN the first available plan is used, flagged as degraded
	assert.Equal(t, commission.ResolutionFallback, res.Outcome)
	require.NotNil(t, res.Plan)
	assert.Equal(t, commission.PlanID("plan-1"), res.Plan.ID)
	assert.Contains(t, res.Reason, "plan-deleted")
}

func TestResolveRule_MissingTierRuleFallsBackToFirstRule(t *testing.T) {
	// GIVEN a plan that only defines a Silver rule
	plan := testPlan()
	plan.Rules = plan.Rules[:1]
	partner := testPartner("P-1", commission.TierPlatinum)
	sub := testSub("S-1", "P-1", 100, monthsAgo(7))

	// WHEN a Platinum partner is resolved against it
	res := commission.ResolveRule(&sub,
		[]commission.Partner{partner},
		[]commission.CommercialPlan{plan})

	// THEN the first rule applies, flagged as degraded
	assert.Equal(t, commission.ResolutionFallback, res.Outcome)
	assert.Equal(t, commission.TierSilver, res.Rule.Tier)
}

func TestResolveRule_NoPlansIsUnresolvable(t *testing.T) {
	sub := testSub("S-1", "P-1", 100, monthsAgo(7))

	res := commission.ResolveRule(&sub, nil, nil)

	assert.Equal(t, commission.ResolutionUnresolvable, res.Outcome)
}

func TestResolveRule_PlanWithoutRulesIsUnresolvable(t *testing.T) {
	plan := testPlan()
	plan.Rules = nil
	sub := testSub("S-1", "P-1", 100, monthsAgo(7))

	res := commission.ResolveRule(&sub, nil,
		[]commission.CommercialPlan{plan})

	assert.Equal(t, commission.ResolutionUnresolvable, res.Outcome)
}

func TestResolveRule_TierChangeRepricesUnpaidMonths(t *testing.T) {
	// GIVEN a ledger computed while the partner was Silver
	partner := testPartner("P-1", commission.TierSilver)
	sub := testSub("S-1", "P-1", 100, monthsAgo(7))
	before := computeGranular(
		[]commission.Subscription{sub}, nil, []commission.Partner{partner})

	// WHEN the partner is promoted to Platinum (3 bounty months)
	partner.Tier = commission.TierPlatinum
	after := computeGranular(
		[]commission.Subscription{sub}, nil, []commission.Partner{partner})

	// THEN month 2, unpaid, is repriced from year-1 to bounty
	assert.True(t, itemByID(t, before, "S-1-2023-12").Amount.
		Equal(commission.NewMoneyFromInt(20)))
	assert.True(t, itemByID(t, after, "S-1-2023-12").Amount.
		Equal(commission.NewMoneyFromInt(100)))
}
