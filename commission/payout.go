/*
payout.go - Payout registration and payment-date updates

PURPOSE:
  Turns a caller-selected subset of ledger lines into durable payment
  records: one Liquidation per settled month plus one PayoutRecord
  wrapping the batch. After registration the same months are Paid on the
  next ledger derivation, automatically, because the liquidation log is
  what the generator consults.

BUSINESS RULES:
  - A selection must belong to a single partner. Cross-partner selections
    are rejected before anything is written.
  - An empty selection is a no-op, not an error.
  - Registration is atomic: all liquidations and the record, or nothing.
  - An aggregated prior-balance line settles every month it folded, so a
    paid backlog cannot resurface as Pending.

SEE ALSO:
  - store.go:  Atomicity and uniqueness live in the store contract
  - ledger.go: Paid suppression on the next derivation
*/
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Registrar records payouts against a store.
type Registrar struct {
	Store PayoutStore

	// Clock returns "today" for stamping liquidations. Nil means time.Now.
	Clock func() time.Time
}

func NewRegistrar(store PayoutStore) *Registrar {
	return &Registrar{Store: store}
}

func (r *Registrar) today() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// Register validates the selection, mints liquidations, and persists them
// together with a new Pending PayoutRecord. On any validation or storage
// failure nothing is written and the returned record is nil.
func (r *Registrar) Register(ctx context.Context, selectedIDs []string, ledger []PayableItem, partners []Partner) (*PayoutRecord, error) {
	if len(selectedIDs) == 0 {
		return nil, nil // empty selection is a no-op
	}

	byID := make(map[string]PayableItem, len(ledger))
	for _, item := range ledger {
		byID[item.ID] = item
	}

	var selected []PayableItem
	for _, id := range selectedIDs {
		item, ok := byID[id]
		if !ok {
			return nil, &SelectionError{ItemID: id, reason: ErrUnknownSelection}
		}
		if !item.Selectable {
			return nil, &SelectionError{ItemID: id, Status: item.Status, reason: ErrItemNotSelectable}
		}
		selected = append(selected, item)
	}

	partnerID := selected[0].PartnerID
	for _, item := range selected {
		if item.PartnerID != partnerID {
			return nil, &SelectionError{
				Partners: []PartnerID{partnerID, item.PartnerID},
				reason:   ErrCrossPartnerSelection,
			}
		}
	}

	partnerName := string(partnerID)
	for i := range partners {
		if partners[i].ID == partnerID {
			partnerName = partners[i].Name
			break
		}
	}

	today := r.today()
	total := ZeroMoney()
	var liqs []Liquidation
	for _, item := range selected {
		total = total.Add(item.Amount)
		liqs = append(liqs, mintLiquidations(item, today)...)
	}

	payout := PayoutRecord{
		ID:          PayoutID(fmt.Sprintf("INV-%d-%s", today.Year(), uuid.NewString()[:8])),
		PartnerID:   partnerID,
		PartnerName: partnerName,
		GeneratedAt: today,
		TotalAmount: total,
		Status:      PayoutPending,
		Items:       liqs,
	}

	if err := r.Store.RegisterPayout(ctx, payout); err != nil {
		return nil, err
	}
	return &payout, nil
}

// mintLiquidations creates one liquidation per month key the item settles.
// Granular and legacy lines yield exactly one; an aggregated prior-balance
// line yields one per folded month, with the total on the first and zero on
// the rest so the batch sums to the item amount.
func mintLiquidations(item PayableItem, today time.Time) []Liquidation {
	keys := item.MonthKeys
	if len(keys) == 0 {
		keys = []string{item.MonthLabel}
	}

	liqs := make([]Liquidation, 0, len(keys))
	for i, key := range keys {
		amount := ZeroMoney()
		if i == 0 {
			amount = item.Amount
		}
		liqs = append(liqs, Liquidation{
			ID:             LiquidationID("L-" + uuid.NewString()),
			PartnerID:      item.PartnerID,
			SubscriptionID: item.SubscriptionID,
			MonthKey:       key,
			Amount:         amount,
			PaidAt:         today,
		})
	}
	return liqs
}

// MarkPaid stamps or clears the payment date on an existing payout record.
// This is the only mutation a payout record ever receives.
func (r *Registrar) MarkPaid(ctx context.Context, id PayoutID, date *time.Time) (*PayoutRecord, error) {
	return r.Store.SetPaymentDate(ctx, id, date)
}
