/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/atlas/commission-engine/commission"
	"github.com/atlas/commission-engine/factory"
	"github.com/atlas/commission-engine/goals"
)

// =============================================================================
// LEDGER TYPES
// =============================================================================

// PayableItemDTO is one derived ledger line.
type PayableItemDTO struct {
	ID             string   `json:"id"`
	SubscriptionID string   `json:"subscription_id"`
	PartnerID      string   `json:"partner_id"`
	Client         string   `json:"client"`
	MonthLabel     string   `json:"month_label"`
	Rule           string   `json:"rule"`
	Amount         float64  `json:"amount"`
	Status         string   `json:"status"`
	Selectable     bool     `json:"selectable"`
	MonthsActive   int      `json:"months_active"`
	MonthKeys      []string `json:"month_keys"`
}

// LedgerResponse wraps the derived ledger with its totals.
type LedgerResponse struct {
	Items        []PayableItemDTO `json:"items"`
	TotalPending float64          `json:"total_pending"`
	TotalLockup  float64          `json:"total_lockup"`
	TotalPaid    float64          `json:"total_paid"`
	AsOf         string           `json:"as_of"`
}

// =============================================================================
// PAYOUT TYPES
// =============================================================================

// RegisterPayoutRequest selects ledger lines for registration.
type RegisterPayoutRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// LiquidationDTO is one settled month inside a payout.
type LiquidationDTO struct {
	ID             string  `json:"id"`
	SubscriptionID string  `json:"subscription_id"`
	MonthKey       string  `json:"month_key"`
	Amount         float64 `json:"amount"`
	PaidAt         string  `json:"paid_at"`
}

// PayoutDTO is an invoice-like registration record.
type PayoutDTO struct {
	ID          string           `json:"id"`
	PartnerID   string           `json:"partner_id"`
	PartnerName string           `json:"partner_name"`
	GeneratedAt string           `json:"generated_at"`
	PaymentDate *string          `json:"payment_date,omitempty"`
	TotalAmount float64          `json:"total_amount"`
	Status      string           `json:"status"`
	Items       []LiquidationDTO `json:"items,omitempty"`
}

// SetPaymentDateRequest stamps or clears a payout's payment date.
type SetPaymentDateRequest struct {
	PaymentDate *string `json:"payment_date"` // YYYY-MM-DD, null clears
}

// =============================================================================
// DIRECTORY TYPES
// =============================================================================

// PartnerDTO represents a partner in API responses.
type PartnerDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Contact        string `json:"contact,omitempty"`
	Email          string `json:"email,omitempty"`
	Status         string `json:"status"`
	Tier           string `json:"tier"`
	PlanID         string `json:"plan_id,omitempty"`
	EnrolledAt     string `json:"enrolled_at"`
	Commissionable bool   `json:"commissionable"`
}

// CreatePartnerRequest is the request to create or update a partner.
type CreatePartnerRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Contact        string `json:"contact"`
	Email          string `json:"email"`
	Status         string `json:"status"`
	Tier           string `json:"tier"`
	PlanID         string `json:"plan_id"`
	EnrolledAt     string `json:"enrolled_at"`
	Commissionable *bool  `json:"commissionable,omitempty"`
}

// SubscriptionDTO represents a subscription in API responses.
type SubscriptionDTO struct {
	ID              string   `json:"id"`
	PartnerID       string   `json:"partner_id"`
	Client          string   `json:"client"`
	Fee             float64  `json:"fee"`
	StartDate       string   `json:"start_date"`
	EndDate         *string  `json:"end_date,omitempty"`
	Status          string   `json:"status"`
	OpeningBalance  float64  `json:"opening_balance,omitempty"`
	CommissionStart *string  `json:"commission_start,omitempty"`
	PausedMonths    []string `json:"paused_months,omitempty"`
	PlanID          string   `json:"plan_id,omitempty"`
}

// PartnerSummaryDTO aggregates one partner's book of business.
type PartnerSummaryDTO struct {
	Partner        PartnerDTO        `json:"partner"`
	Subscriptions  []SubscriptionDTO `json:"subscriptions"`
	ActiveClients  int               `json:"active_clients"`
	MonthlyRevenue float64           `json:"monthly_revenue"`
	TotalPending   float64           `json:"total_pending"`
	TotalPaid      float64           `json:"total_paid"`
	TotalLockup    float64           `json:"total_lockup"`
}

// PlanDTO wraps the factory's JSON schema with resolution metadata.
type PlanDTO struct {
	factory.PlanJSON
}

// =============================================================================
// GOAL TYPES
// =============================================================================

// GoalDTO is one target period.
type GoalDTO struct {
	ID                string  `json:"id"`
	Label             string  `json:"label"`
	NewClientsTarget  int     `json:"new_clients_target"`
	NewPartnersTarget int     `json:"new_partners_target"`
	MRRTarget         float64 `json:"mrr_target"`
}

// GoalProgressDTO reports attainment for the current quarter.
type GoalProgressDTO struct {
	Goal          GoalDTO `json:"goal"`
	PeriodStart   string  `json:"period_start"`
	PeriodEnd     string  `json:"period_end"`
	NewClients    int     `json:"new_clients"`
	NewPartners   int     `json:"new_partners"`
	NewMRR        float64 `json:"new_mrr"`
	ClientsRatio  float64 `json:"clients_ratio"`
	PartnersRatio float64 `json:"partners_ratio"`
	MRRRatio      float64 `json:"mrr_ratio"`
}

// =============================================================================
// IMPORT TYPES
// =============================================================================

// ImportResultDTO summarizes an applied spreadsheet sync.
type ImportResultDTO struct {
	Partners            int    `json:"partners"`
	Subscriptions       int    `json:"subscriptions"`
	Plans               int    `json:"plans"`
	NewLiquidations     int    `json:"new_liquidations"`
	SkippedLiquidations int    `json:"skipped_liquidations"`
	SyncedAt            string `json:"synced_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPayableItemDTO(item commission.PayableItem) PayableItemDTO {
	return PayableItemDTO{
		ID:             item.ID,
		SubscriptionID: string(item.SubscriptionID),
		PartnerID:      string(item.PartnerID),
		Client:         item.Client,
		MonthLabel:     item.MonthLabel,
		Rule:           item.Rule,
		Amount:         item.Amount.Float64(),
		Status:         string(item.Status),
		Selectable:     item.Selectable,
		MonthsActive:   item.MonthsActive,
		MonthKeys:      item.MonthKeys,
	}
}

func toPayoutDTO(p commission.PayoutRecord, includeItems bool) PayoutDTO {
	dto := PayoutDTO{
		ID:          string(p.ID),
		PartnerID:   string(p.PartnerID),
		PartnerName: p.PartnerName,
		GeneratedAt: p.GeneratedAt.Format("2006-01-02"),
		TotalAmount: p.TotalAmount.Float64(),
		Status:      string(p.Status),
	}
	if p.PaymentDate != nil {
		d := p.PaymentDate.Format("2006-01-02")
		dto.PaymentDate = &d
	}
	if includeItems {
		for _, l := range p.Items {
			dto.Items = append(dto.Items, LiquidationDTO{
				ID:             string(l.ID),
				SubscriptionID: string(l.SubscriptionID),
				MonthKey:       l.MonthKey,
				Amount:         l.Amount.Float64(),
				PaidAt:         l.PaidAt.Format("2006-01-02"),
			})
		}
	}
	return dto
}

func toPartnerDTO(p commission.Partner) PartnerDTO {
	return PartnerDTO{
		ID:             string(p.ID),
		Name:           p.Name,
		Contact:        p.Contact,
		Email:          p.Email,
		Status:         string(p.Status),
		Tier:           string(p.Tier),
		PlanID:         string(p.PlanID),
		EnrolledAt:     p.EnrolledAt.Format("2006-01-02"),
		Commissionable: p.Commissionable,
	}
}

func toSubscriptionDTO(s commission.Subscription) SubscriptionDTO {
	dto := SubscriptionDTO{
		ID:             string(s.ID),
		PartnerID:      string(s.PartnerID),
		Client:         s.Client,
		Fee:            s.Fee.Float64(),
		StartDate:      s.StartDate.Format("2006-01-02"),
		Status:         string(s.Status),
		OpeningBalance: s.OpeningBalance.Float64(),
		PlanID:         string(s.PlanID),
	}
	if s.EndDate != nil {
		d := s.EndDate.Format("2006-01-02")
		dto.EndDate = &d
	}
	if s.CommissionStart != nil {
		d := s.CommissionStart.Format("2006-01-02")
		dto.CommissionStart = &d
	}
	for _, m := range s.PausedMonths {
		dto.PausedMonths = append(dto.PausedMonths, m.Key())
	}
	return dto
}

func toGoalDTO(t goals.Target) GoalDTO {
	return GoalDTO{
		ID:                string(t.ID),
		Label:             t.Label,
		NewClientsTarget:  t.NewClientsTarget,
		NewPartnersTarget: t.NewPartnersTarget,
		MRRTarget:         t.MRRTarget.Float64(),
	}
}

func toGoalProgressDTO(p goals.Progress) GoalProgressDTO {
	return GoalProgressDTO{
		Goal:          toGoalDTO(p.Target),
		PeriodStart:   p.PeriodStart.Format("2006-01-02"),
		PeriodEnd:     p.PeriodEnd.Format("2006-01-02"),
		NewClients:    p.NewClients,
		NewPartners:   p.NewPartners,
		NewMRR:        p.NewMRR.Float64(),
		ClientsRatio:  p.ClientsRatio(),
		PartnersRatio: p.PartnersRatio(),
		MRRRatio:      p.MRRRatio(),
	}
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
