/*
handlers.go - HTTP API handlers for the commission dashboard

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Ledger:
    GET    /api/ledger                    Derived payable ledger (all partners)
    GET    /api/ledger?partner_id=P-001   Scoped to one partner

  Payouts:
    POST   /api/payouts                   Register selected ledger lines
    GET    /api/payouts                   Payout history
    GET    /api/payouts/{id}              One payout with its liquidations
    GET    /api/payouts/{id}/csv          Invoice CSV export
    PUT    /api/payouts/{id}/payment-date Stamp/clear the payment date

  Directory:
    GET    /api/partners                  List partners
    POST   /api/partners                  Create/update a partner
    GET    /api/partners/{id}/summary     Partner book of business
    GET    /api/subscriptions             List subscriptions
    GET    /api/plans                     List commercial plans
    POST   /api/plans                     Create/update a plan from JSON

  Goals:
    GET    /api/goals                     Target periods
    PUT    /api/goals                     Replace target periods
    GET    /api/goals/progress            Current-quarter attainment

  Import:
    POST   /api/import/sync               Pull the source spreadsheets

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (interface, so tests swap in the memory store)
  - Registrar: Payout registration
  - PlanFactory: JSON to plan conversion
  - Importer: Spreadsheet sync (nil when no source URLs configured)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid selection
  - 404: Resource not found
  - 409: Conflict (month already liquidated)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - demo.go: Demo dataset loader
*/
package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas/commission-engine/commission"
	"github.com/atlas/commission-engine/factory"
	"github.com/atlas/commission-engine/goals"
	"github.com/atlas/commission-engine/importer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       commission.Store
	Registrar   *commission.Registrar
	PlanFactory *factory.PlanFactory

	// Importer is nil when no spreadsheet URLs are configured; the sync
	// endpoint then returns 503.
	Importer *importer.Importer

	// Clock returns "now" for ledger derivation. Nil means time.Now.
	Clock func() time.Time

	mu      sync.RWMutex
	targets []goals.Target
}

// NewHandler creates a new handler with the given store.
func NewHandler(store commission.Store) *Handler {
	return &Handler{
		Store:       store,
		Registrar:   commission.NewRegistrar(store),
		PlanFactory: factory.NewPlanFactory(),
		targets:     goals.DefaultTargets(time.Now().Year()),
	}
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// ledgerInput assembles the generator input from the store.
func (h *Handler) ledgerInput(ctx context.Context, scope commission.PartnerID) (commission.LedgerInput, error) {
	subs, err := h.Store.ListSubscriptions(ctx)
	if err != nil {
		return commission.LedgerInput{}, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	liqs, err := h.Store.ListLiquidations(ctx)
	if err != nil {
		return commission.LedgerInput{}, fmt.Errorf("failed to load liquidations: %w", err)
	}
	partners, err := h.Store.ListPartners(ctx)
	if err != nil {
		return commission.LedgerInput{}, fmt.Errorf("failed to load partners: %w", err)
	}
	plans, err := h.Store.ListPlans(ctx)
	if err != nil {
		return commission.LedgerInput{}, fmt.Errorf("failed to load plans: %w", err)
	}

	return commission.LedgerInput{
		Subscriptions: subs,
		Liquidations:  liqs,
		Partners:      partners,
		Plans:         plans,
		ScopePartner:  scope,
		Now:           h.now(),
	}, nil
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the derived payable ledger.
// GET /api/ledger?partner_id=
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	scope := commission.PartnerID(r.URL.Query().Get("partner_id"))

	input, err := h.ledgerInput(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger input", err)
		return
	}

	items := commission.ComputeLedger(input)

	resp := LedgerResponse{
		Items: make([]PayableItemDTO, 0, len(items)),
		AsOf:  formatTime(input.Now),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toPayableItemDTO(item))
		switch item.Status {
		case commission.StatusPending:
			resp.TotalPending += item.Amount.Float64()
		case commission.StatusLockup:
			resp.TotalLockup += item.Amount.Float64()
		case commission.StatusPaid:
			resp.TotalPaid += item.Amount.Float64()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// RegisterPayout registers the selected ledger lines as a payout.
// POST /api/payouts
func (h *Handler) RegisterPayout(w http.ResponseWriter, r *http.Request) {
	var req RegisterPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "item_ids must not be empty", nil)
		return
	}

	// The selection validates against a server-side derivation, never
	// against amounts the client sent.
	input, err := h.ledgerInput(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger input", err)
		return
	}
	ledger := commission.ComputeLedger(input)

	payout, err := h.Registrar.Register(r.Context(), req.ItemIDs, ledger, input.Partners)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPayoutDTO(*payout, true))
}

// ListPayouts returns payout history, newest first.
// GET /api/payouts?partner_id=
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	partnerID := commission.PartnerID(r.URL.Query().Get("partner_id"))

	payouts, err := h.Store.ListPayouts(r.Context(), partnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payouts", err)
		return
	}

	dtos := make([]PayoutDTO, 0, len(payouts))
	for _, p := range payouts {
		dtos = append(dtos, toPayoutDTO(p, false))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayout returns one payout with its liquidations.
// GET /api/payouts/{id}
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id := commission.PayoutID(chi.URLParam(r, "id"))

	payout, err := h.Store.Payout(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(*payout, true))
}

// SetPaymentDate stamps or clears a payout's payment date.
// PUT /api/payouts/{id}/payment-date
func (h *Handler) SetPaymentDate(w http.ResponseWriter, r *http.Request) {
	id := commission.PayoutID(chi.URLParam(r, "id"))

	var req SetPaymentDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var date *time.Time
	if req.PaymentDate != nil {
		t, err := time.Parse("2006-01-02", *req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date format (use YYYY-MM-DD)", err)
			return
		}
		date = &t
	}

	payout, err := h.Registrar.MarkPaid(r.Context(), id, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(*payout, true))
}

// ExportPayoutCSV streams an invoice-style CSV for one payout.
// GET /api/payouts/{id}/csv
func (h *Handler) ExportPayoutCSV(w http.ResponseWriter, r *http.Request) {
	id := commission.PayoutID(chi.URLParam(r, "id"))

	payout, err := h.Store.Payout(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", payout.ID))

	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{"Payout", string(payout.ID)})
	cw.Write([]string{"Partner", payout.PartnerName})
	cw.Write([]string{"Generated", payout.GeneratedAt.Format("2006-01-02")})
	if payout.PaymentDate != nil {
		cw.Write([]string{"Paid", payout.PaymentDate.Format("2006-01-02")})
	}
	cw.Write(nil)
	cw.Write([]string{"Subscription", "Month", "Amount"})
	for _, item := range payout.Items {
		cw.Write([]string{string(item.SubscriptionID), item.MonthKey, item.Amount.String()})
	}
	cw.Write(nil)
	cw.Write([]string{"Total", "", payout.TotalAmount.String()})
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListPartners returns all partners.
// GET /api/partners
func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Store.ListPartners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list partners", err)
		return
	}

	dtos := make([]PartnerDTO, 0, len(partners))
	for _, p := range partners {
		dtos = append(dtos, toPartnerDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePartner creates or updates a partner.
// POST /api/partners
func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req CreatePartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	p := commission.Partner{
		ID:             commission.PartnerID(req.ID),
		Name:           req.Name,
		Contact:        req.Contact,
		Email:          req.Email,
		Status:         commission.PartnerActive,
		Tier:           commission.TierSilver,
		PlanID:         commission.PlanID(req.PlanID),
		EnrolledAt:     h.now(),
		Commissionable: true,
	}
	if req.Status == string(commission.PartnerPotential) {
		p.Status = commission.PartnerPotential
	}
	switch commission.Tier(req.Tier) {
	case commission.TierGold:
		p.Tier = commission.TierGold
	case commission.TierPlatinum:
		p.Tier = commission.TierPlatinum
	}
	if req.EnrolledAt != "" {
		t, err := time.Parse("2006-01-02", req.EnrolledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid enrolled_at format (use YYYY-MM-DD)", err)
			return
		}
		p.EnrolledAt = t
	}
	if req.Commissionable != nil {
		p.Commissionable = *req.Commissionable
	}

	if err := h.Store.SavePartner(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save partner", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartnerDTO(p))
}

// GetPartnerSummary aggregates one partner's book of business.
// GET /api/partners/{id}/summary
func (h *Handler) GetPartnerSummary(w http.ResponseWriter, r *http.Request) {
	id := commission.PartnerID(chi.URLParam(r, "id"))

	partners, err := h.Store.ListPartners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list partners", err)
		return
	}
	var partner *commission.Partner
	for i := range partners {
		if partners[i].ID == id {
			partner = &partners[i]
			break
		}
	}
	if partner == nil {
		writeError(w, http.StatusNotFound, "Partner not found", nil)
		return
	}

	input, err := h.ledgerInput(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger input", err)
		return
	}
	ledger := commission.ComputeLedger(input)

	summary := PartnerSummaryDTO{Partner: toPartnerDTO(*partner)}
	for _, sub := range input.Subscriptions {
		if sub.PartnerID != id {
			continue
		}
		summary.Subscriptions = append(summary.Subscriptions, toSubscriptionDTO(sub))
		if sub.Status == commission.SubscriptionActive {
			summary.ActiveClients++
			summary.MonthlyRevenue += sub.Fee.Float64()
		}
	}
	for _, item := range ledger {
		switch item.Status {
		case commission.StatusPending:
			summary.TotalPending += item.Amount.Float64()
		case commission.StatusPaid:
			summary.TotalPaid += item.Amount.Float64()
		case commission.StatusLockup:
			summary.TotalLockup += item.Amount.Float64()
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListSubscriptions returns subscriptions, optionally scoped to a partner.
// GET /api/subscriptions?partner_id=
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	partnerID := commission.PartnerID(r.URL.Query().Get("partner_id"))

	subs, err := h.Store.ListSubscriptions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}

	dtos := make([]SubscriptionDTO, 0, len(subs))
	for _, s := range subs {
		if partnerID != "" && s.PartnerID != partnerID {
			continue
		}
		dtos = append(dtos, toSubscriptionDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPlans returns all commercial plans in JSON schema form.
// GET /api/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, 0, len(plans))
	for i := range plans {
		dtos = append(dtos, PlanDTO{PlanJSON: h.PlanFactory.ToJSON(&plans[i])})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan creates or updates a plan from its JSON schema.
// POST /api/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.PlanFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan definition", err)
		return
	}

	if err := h.Store.SavePlan(r.Context(), *plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, PlanDTO{PlanJSON: h.PlanFactory.ToJSON(plan)})
}

// =============================================================================
// GOAL HANDLERS
// =============================================================================

// GetGoals returns the configured target periods.
// GET /api/goals
func (h *Handler) GetGoals(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dtos := make([]GoalDTO, 0, len(h.targets))
	for _, t := range h.targets {
		dtos = append(dtos, toGoalDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateGoals replaces the target periods.
// PUT /api/goals
func (h *Handler) UpdateGoals(w http.ResponseWriter, r *http.Request) {
	var req []GoalDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req) == 0 {
		writeError(w, http.StatusBadRequest, "at least one goal is required", nil)
		return
	}

	targets := make([]goals.Target, 0, len(req))
	for _, g := range req {
		targets = append(targets, goals.Target{
			ID:                goals.PeriodID(g.ID),
			Label:             g.Label,
			NewClientsTarget:  g.NewClientsTarget,
			NewPartnersTarget: g.NewPartnersTarget,
			MRRTarget:         commission.NewMoney(g.MRRTarget),
		})
	}

	h.mu.Lock()
	h.targets = targets
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, req)
}

// GetGoalProgress reports current-quarter attainment.
// GET /api/goals/progress
func (h *Handler) GetGoalProgress(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Store.ListPartners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list partners", err)
		return
	}
	subs, err := h.Store.ListSubscriptions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}

	h.mu.RLock()
	targets := h.targets
	h.mu.RUnlock()

	progress := goals.ComputeProgress(targets, partners, subs, h.now())
	writeJSON(w, http.StatusOK, toGoalProgressDTO(progress))
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// SyncImport pulls the source spreadsheets and applies them.
// POST /api/import/sync
func (h *Handler) SyncImport(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		writeError(w, http.StatusServiceUnavailable, "No import sources configured", nil)
		return
	}

	result, err := h.Importer.Sync(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Import sync failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ImportResultDTO{
		Partners:            result.Partners,
		Subscriptions:       result.Subscriptions,
		Plans:               result.Plans,
		NewLiquidations:     result.NewLiquidations,
		SkippedLiquidations: result.SkippedLiquidations,
		SyncedAt:            formatTime(result.SyncedAt),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case commission.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid selection", err)
	case commission.IsConflict(err):
		writeError(w, http.StatusConflict, "Month already liquidated", err)
	case commission.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
