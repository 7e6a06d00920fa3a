/*
Package goals tracks channel performance targets.

PURPOSE:
  Leadership sets quarterly and annual targets for the partner channel:
  new client signups, new partner enrollments, and net-new MRR. This
  package holds the target definitions and computes attainment against
  the live directory.

PERIODS:
  Four calendar quarters plus an annual rollup. Progress auto-detects the
  quarter containing "now" so the dashboard always compares against the
  right target without anyone selecting a period.
*/
package goals

import (
	"fmt"
	"time"

	"github.com/atlas/commission-engine/commission"
)

// PeriodID identifies a target period.
type PeriodID string

const (
	PeriodQ1     PeriodID = "Q1"
	PeriodQ2     PeriodID = "Q2"
	PeriodQ3     PeriodID = "Q3"
	PeriodQ4     PeriodID = "Q4"
	PeriodAnnual PeriodID = "Annual"
)

// Target holds the goals for one period.
type Target struct {
	ID                PeriodID
	Label             string
	NewClientsTarget  int
	NewPartnersTarget int
	MRRTarget         commission.Money
}

// Progress compares actuals against one target.
type Progress struct {
	Target      Target
	PeriodStart time.Time
	PeriodEnd   time.Time

	NewClients  int
	NewPartners int
	NewMRR      commission.Money
}

// ClientsRatio returns attainment of the client signup goal, capped at 1.
func (p Progress) ClientsRatio() float64 {
	return ratio(float64(p.NewClients), float64(p.Target.NewClientsTarget))
}

// PartnersRatio returns attainment of the partner enrollment goal.
func (p Progress) PartnersRatio() float64 {
	return ratio(float64(p.NewPartners), float64(p.Target.NewPartnersTarget))
}

// MRRRatio returns attainment of the net-new MRR goal.
func (p Progress) MRRRatio() float64 {
	return ratio(p.NewMRR.Float64(), p.Target.MRRTarget.Float64())
}

func ratio(actual, target float64) float64 {
	if target <= 0 {
		return 0
	}
	r := actual / target
	if r > 1 {
		return 1
	}
	return r
}

// DefaultTargets returns a starter target set for the given year.
func DefaultTargets(year int) []Target {
	label := func(p PeriodID) string {
		if p == PeriodAnnual {
			return fmt.Sprintf("Year %d", year)
		}
		return fmt.Sprintf("%s %d", p, year)
	}
	return []Target{
		{ID: PeriodQ1, Label: label(PeriodQ1), NewClientsTarget: 10, NewPartnersTarget: 3, MRRTarget: commission.NewMoneyFromInt(5000)},
		{ID: PeriodQ2, Label: label(PeriodQ2), NewClientsTarget: 12, NewPartnersTarget: 4, MRRTarget: commission.NewMoneyFromInt(6000)},
		{ID: PeriodQ3, Label: label(PeriodQ3), NewClientsTarget: 8, NewPartnersTarget: 2, MRRTarget: commission.NewMoneyFromInt(4000)},
		{ID: PeriodQ4, Label: label(PeriodQ4), NewClientsTarget: 15, NewPartnersTarget: 5, MRRTarget: commission.NewMoneyFromInt(8000)},
		{ID: PeriodAnnual, Label: label(PeriodAnnual), NewClientsTarget: 45, NewPartnersTarget: 14, MRRTarget: commission.NewMoneyFromInt(23000)},
	}
}

// CurrentPeriod returns the quarter containing now and its date bounds.
func CurrentPeriod(now time.Time) (PeriodID, time.Time, time.Time) {
	q := (int(now.Month()) - 1) / 3
	start := time.Date(now.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0).Add(-time.Nanosecond)

	ids := []PeriodID{PeriodQ1, PeriodQ2, PeriodQ3, PeriodQ4}
	return ids[q], start, end
}

// ComputeProgress measures the current quarter's actuals against its
// target. Falls back to the first target when the quarter has none.
func ComputeProgress(targets []Target, partners []commission.Partner, subs []commission.Subscription, now time.Time) Progress {
	periodID, start, end := CurrentPeriod(now)

	var target Target
	if len(targets) > 0 {
		target = targets[0]
	}
	for _, t := range targets {
		if t.ID == periodID {
			target = t
			break
		}
	}

	p := Progress{
		Target:      target,
		PeriodStart: start,
		PeriodEnd:   end,
		NewMRR:      commission.ZeroMoney(),
	}

	for _, sub := range subs {
		if sub.StartDate.Before(start) || sub.StartDate.After(end) {
			continue
		}
		p.NewClients++
		if sub.Status == commission.SubscriptionActive {
			p.NewMRR = p.NewMRR.Add(sub.Fee)
		}
	}
	for _, partner := range partners {
		if !partner.EnrolledAt.Before(start) && !partner.EnrolledAt.After(end) {
			p.NewPartners++
		}
	}
	return p
}
