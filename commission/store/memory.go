// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atlas/commission-engine/commission"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	partners      []commission.Partner
	subscriptions []commission.Subscription
	plans         []commission.CommercialPlan

	liquidations []commission.Liquidation
	settled      map[settledKey]bool

	payouts []commission.PayoutRecord
}

type settledKey struct {
	SubscriptionID commission.SubscriptionID
	MonthKey       string
}

func NewMemory() *Memory {
	return &Memory{settled: make(map[settledKey]bool)}
}

// =============================================================================
// LIQUIDATION STORE
// =============================================================================

// AppendLiquidations writes the batch atomically. The uniqueness check runs
// for the whole batch before anything is appended.
func (m *Memory) AppendLiquidations(_ context.Context, liqs []commission.Liquidation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(liqs)
}

func (m *Memory) appendLocked(liqs []commission.Liquidation) error {
	seen := make(map[settledKey]bool, len(liqs))
	for _, l := range liqs {
		k := settledKey{SubscriptionID: l.SubscriptionID, MonthKey: l.MonthKey}
		if m.settled[k] || seen[k] {
			return &commission.DuplicateLiquidationError{
				SubscriptionID: l.SubscriptionID,
				MonthKey:       l.MonthKey,
			}
		}
		seen[k] = true
	}
	for _, l := range liqs {
		m.liquidations = append(m.liquidations, l)
		m.settled[settledKey{SubscriptionID: l.SubscriptionID, MonthKey: l.MonthKey}] = true
	}
	return nil
}

func (m *Memory) ListLiquidations(_ context.Context) ([]commission.Liquidation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]commission.Liquidation, len(m.liquidations))
	copy(result, m.liquidations)
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].PaidAt.Equal(result[j].PaidAt) {
			return result[i].PaidAt.Before(result[j].PaidAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// PAYOUT STORE
// =============================================================================

func (m *Memory) RegisterPayout(_ context.Context, payout commission.PayoutRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.appendLocked(payout.Items); err != nil {
		return err
	}
	m.payouts = append(m.payouts, payout)
	return nil
}

func (m *Memory) Payout(_ context.Context, id commission.PayoutID) (*commission.PayoutRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.payouts {
		if m.payouts[i].ID == id {
			p := m.payouts[i]
			return &p, nil
		}
	}
	return nil, commission.ErrPayoutNotFound
}

func (m *Memory) ListPayouts(_ context.Context, partnerID commission.PartnerID) ([]commission.PayoutRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []commission.PayoutRecord
	for _, p := range m.payouts {
		if partnerID == "" || p.PartnerID == partnerID {
			result = append(result, p)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].GeneratedAt.After(result[j].GeneratedAt)
	})
	return result, nil
}

func (m *Memory) SetPaymentDate(_ context.Context, id commission.PayoutID, date *time.Time) (*commission.PayoutRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.payouts {
		if m.payouts[i].ID != id {
			continue
		}
		m.payouts[i].PaymentDate = date
		if date != nil {
			m.payouts[i].Status = commission.PayoutPaid
		} else {
			m.payouts[i].Status = commission.PayoutPending
		}
		p := m.payouts[i]
		return &p, nil
	}
	return nil, commission.ErrPayoutNotFound
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

func (m *Memory) SavePartner(_ context.Context, p commission.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.partners {
		if m.partners[i].ID == p.ID {
			m.partners[i] = p
			return nil
		}
	}
	m.partners = append(m.partners, p)
	return nil
}

func (m *Memory) ListPartners(_ context.Context) ([]commission.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]commission.Partner, len(m.partners))
	copy(result, m.partners)
	return result, nil
}

func (m *Memory) SaveSubscription(_ context.Context, s commission.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.subscriptions {
		if m.subscriptions[i].ID == s.ID {
			m.subscriptions[i] = s
			return nil
		}
	}
	m.subscriptions = append(m.subscriptions, s)
	return nil
}

func (m *Memory) ListSubscriptions(_ context.Context) ([]commission.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]commission.Subscription, len(m.subscriptions))
	copy(result, m.subscriptions)
	return result, nil
}

func (m *Memory) SavePlan(_ context.Context, p commission.CommercialPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.plans {
		if m.plans[i].ID == p.ID {
			m.plans[i] = p
			return nil
		}
	}
	m.plans = append(m.plans, p)
	return nil
}

func (m *Memory) ListPlans(_ context.Context) ([]commission.CommercialPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]commission.CommercialPlan, len(m.plans))
	copy(result, m.plans)
	return result, nil
}

// ReplaceDirectory swaps all three collections at once. Callers hand over
// fully-parsed slices; a failed import never reaches this point.
func (m *Memory) ReplaceDirectory(_ context.Context, partners []commission.Partner, subs []commission.Subscription, plans []commission.CommercialPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.partners = append([]commission.Partner{}, partners...)
	m.subscriptions = append([]commission.Subscription{}, subs...)
	m.plans = append([]commission.CommercialPlan{}, plans...)
	return nil
}

// Compile-time check that Memory implements the full store contract.
var _ commission.Store = (*Memory)(nil)
