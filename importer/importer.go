/*
Package importer synchronizes the directory collections from published
spreadsheets.

PURPOSE:
  The partner directory, subscriptions, commercial plans, and historically
  recorded payments live in spreadsheets the sales team maintains. The
  importer fetches their CSV exports, parses them through the column
  mappings, and applies the result to the store.

ALL-OR-NOTHING:
  A sync either replaces the full directory or leaves the store untouched.
  Every sheet is fetched and parsed before anything is written; a fetch or
  parse failure aborts the sync with the previous directory intact.

LIQUIDATIONS ARE APPEND-ONLY:
  Imported payments join the liquidation log but never replace it. Months
  already settled locally (or by a previous sync) are skipped, so re-running
  a sync is idempotent.

URL HANDLING:
  Sheet edit URLs are rewritten to their CSV export form, preserving the
  gid of the selected tab. Pre-built export URLs pass through unchanged.

SEE ALSO:
  - mapping.go: Header mapping rules
  - api/scheduler.go: Periodic background syncs
*/
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlas/commission-engine/commission"
)

// SourceURLs points at the four sheets. Empty URLs leave the matching
// collection empty in the snapshot.
type SourceURLs struct {
	Partners      string
	Subscriptions string
	Liquidations  string
	Plans         string
}

// Snapshot is a fully parsed sync result, produced before any write.
type Snapshot struct {
	Partners      []commission.Partner
	Subscriptions []commission.Subscription
	Plans         []commission.CommercialPlan
	Liquidations  []commission.Liquidation

	// SkippedLiquidations counts payment rows whose subscription could not
	// be resolved from the partner and client columns.
	SkippedLiquidations int
}

// Result summarizes an applied sync.
type Result struct {
	Partners            int
	Subscriptions       int
	Plans               int
	NewLiquidations     int
	SkippedLiquidations int
	SyncedAt            time.Time
}

// Importer fetches, parses, and applies spreadsheet data.
type Importer struct {
	Store    commission.Store
	URLs     SourceURLs
	Mappings Mappings

	// Client is the HTTP client for sheet fetches. Nil means a client
	// with a 30s timeout.
	Client *http.Client
}

func New(store commission.Store, urls SourceURLs, mappings Mappings) *Importer {
	return &Importer{Store: store, URLs: urls, Mappings: mappings}
}

func (im *Importer) client() *http.Client {
	if im.Client != nil {
		return im.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// =============================================================================
// SYNC
// =============================================================================

// Sync fetches all sheets, replaces the directory, and appends any payment
// rows not yet in the liquidation log.
func (im *Importer) Sync(ctx context.Context) (*Result, error) {
	snap, err := im.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := im.Store.ReplaceDirectory(ctx, snap.Partners, snap.Subscriptions, snap.Plans); err != nil {
		return nil, fmt.Errorf("failed to replace directory: %w", err)
	}

	fresh, err := im.filterSettled(ctx, snap.Liquidations)
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		if err := im.Store.AppendLiquidations(ctx, fresh); err != nil {
			return nil, fmt.Errorf("failed to append imported liquidations: %w", err)
		}
	}

	return &Result{
		Partners:            len(snap.Partners),
		Subscriptions:       len(snap.Subscriptions),
		Plans:               len(snap.Plans),
		NewLiquidations:     len(fresh),
		SkippedLiquidations: snap.SkippedLiquidations,
		SyncedAt:            time.Now(),
	}, nil
}

// filterSettled drops imported liquidations whose (subscription, month) is
// already in the log, making repeated syncs idempotent.
func (im *Importer) filterSettled(ctx context.Context, liqs []commission.Liquidation) ([]commission.Liquidation, error) {
	existing, err := im.Store.ListLiquidations(ctx)
	if err != nil {
		return nil, err
	}

	type key struct {
		sub   commission.SubscriptionID
		month string
	}
	settled := make(map[key]bool, len(existing))
	for _, l := range existing {
		settled[key{l.SubscriptionID, l.MonthKey}] = true
	}

	var fresh []commission.Liquidation
	for _, l := range liqs {
		k := key{l.SubscriptionID, l.MonthKey}
		if settled[k] {
			continue
		}
		settled[k] = true
		fresh = append(fresh, l)
	}
	return fresh, nil
}

// Fetch retrieves and parses every sheet without touching the store.
func (im *Importer) Fetch(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if im.URLs.Partners != "" {
		rows, err := im.fetchRows(ctx, im.URLs.Partners, im.Mappings.Partners)
		if err != nil {
			return nil, fmt.Errorf("partners sheet: %w", err)
		}
		snap.Partners = parsePartners(rows)
	}

	if im.URLs.Subscriptions != "" {
		rows, err := im.fetchRows(ctx, im.URLs.Subscriptions, im.Mappings.Subscriptions)
		if err != nil {
			return nil, fmt.Errorf("subscriptions sheet: %w", err)
		}
		snap.Subscriptions = parseSubscriptions(rows)
	}

	if im.URLs.Plans != "" {
		rows, err := im.fetchRows(ctx, im.URLs.Plans, im.Mappings.Plans)
		if err != nil {
			return nil, fmt.Errorf("plans sheet: %w", err)
		}
		snap.Plans = parsePlans(rows)
	}

	if im.URLs.Liquidations != "" {
		rows, err := im.fetchRows(ctx, im.URLs.Liquidations, im.Mappings.Liquidations)
		if err != nil {
			return nil, fmt.Errorf("liquidations sheet: %w", err)
		}
		snap.Liquidations, snap.SkippedLiquidations = parseLiquidations(rows, snap.Subscriptions)
	}

	return snap, nil
}

func (im *Importer) fetchRows(ctx context.Context, url string, mapping SheetMapping) ([]map[string]string, error) {
	exportURL, ok := ExportURL(url)
	if !ok {
		return nil, fmt.Errorf("not a recognizable sheet URL: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := im.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	return ParseCSV(resp.Body, mapping)
}

// =============================================================================
// URL REWRITING
// =============================================================================

var (
	sheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)
	gidPattern     = regexp.MustCompile(`gid=([0-9]+)`)
)

// ExportURL rewrites a sheet edit URL to its CSV export form, preserving
// the tab gid. URLs already pointing at a CSV export pass through.
func ExportURL(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	if strings.Contains(url, "format=csv") {
		return url, true
	}

	match := sheetIDPattern.FindStringSubmatch(url)
	if match == nil {
		return "", false
	}

	gid := "0"
	if g := gidPattern.FindStringSubmatch(url); g != nil {
		gid = g[1]
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", match[1], gid), true
}

// =============================================================================
// CSV PARSING
// =============================================================================

// ParseCSV reads CSV content into rows keyed by canonical field names.
func ParseCSV(r io.Reader, mapping SheetMapping) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = mapping.Map(strings.TrimSpace(h))
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		empty := true
		for i, h := range headers {
			if i >= len(record) {
				break
			}
			v := strings.TrimSpace(record[i])
			row[h] = v
			if v != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// =============================================================================
// ROW CONVERTERS
// =============================================================================

func parsePartners(rows []map[string]string) []commission.Partner {
	var partners []commission.Partner
	for _, row := range rows {
		p := commission.Partner{
			ID:             commission.PartnerID(orGenerated(row[FieldID], "P")),
			Name:           orDefault(row[FieldName], "Unnamed Partner"),
			Contact:        row[FieldContact],
			Email:          row[FieldEmail],
			Status:         parsePartnerStatus(row[FieldStatus]),
			Tier:           parseTier(row[FieldTier]),
			PlanID:         commission.PlanID(row[FieldPlan]),
			Commissionable: parseBool(row[FieldCommissionable], true),
		}
		if t, ok := parseDate(row[FieldEnrolled]); ok {
			p.EnrolledAt = t
		} else {
			p.EnrolledAt = time.Now().UTC()
		}
		partners = append(partners, p)
	}
	return partners
}

func parseSubscriptions(rows []map[string]string) []commission.Subscription {
	var subs []commission.Subscription
	for _, row := range rows {
		sub := commission.Subscription{
			ID:             commission.SubscriptionID(orGenerated(row[FieldID], "S")),
			PartnerID:      commission.PartnerID(row[FieldPartner]),
			Client:         orDefault(row[FieldClient], "Unknown Client"),
			Fee:            parseAmount(row[FieldFee]),
			Status:         parseSubscriptionStatus(row[FieldStatus]),
			OpeningBalance: parseAmount(row[FieldOpeningBalance]),
			PausedMonths:   parsePausedMonths(row[FieldPausedMonths]),
			PlanID:         commission.PlanID(row[FieldPlan]),
		}
		if t, ok := parseDate(row[FieldStart]); ok {
			sub.StartDate = t
		} else {
			sub.StartDate = time.Now().UTC()
		}
		if t, ok := parseDate(row[FieldEnd]); ok {
			sub.EndDate = &t
		}
		if t, ok := parseDate(row[FieldCommissionStart]); ok {
			sub.CommissionStart = &t
		}
		subs = append(subs, sub)
	}
	return subs
}

// parseLiquidations resolves each payment row to a subscription through
// the partner and client columns; the sheet predates subscription ids.
func parseLiquidations(rows []map[string]string, subs []commission.Subscription) ([]commission.Liquidation, int) {
	bySubKey := make(map[string]commission.SubscriptionID, len(subs))
	for _, sub := range subs {
		k := string(sub.PartnerID) + "|" + strings.ToLower(strings.TrimSpace(sub.Client))
		bySubKey[k] = sub.ID
	}

	var liqs []commission.Liquidation
	skipped := 0
	for _, row := range rows {
		partnerID := row[FieldPartner]
		client := strings.ToLower(strings.TrimSpace(row[FieldClient]))
		subID, ok := bySubKey[partnerID+"|"+client]
		if !ok {
			skipped++
			continue
		}

		l := commission.Liquidation{
			ID:             commission.LiquidationID(orGenerated(row[FieldID], "L")),
			PartnerID:      commission.PartnerID(partnerID),
			SubscriptionID: subID,
			MonthKey:       parseMonthKey(row[FieldMonth]),
			Amount:         parseAmount(row[FieldAmount]),
		}
		if t, ok := parseDate(row[FieldPaidAt]); ok {
			l.PaidAt = t
		} else {
			l.PaidAt = time.Now().UTC()
		}
		liqs = append(liqs, l)
	}
	return liqs, skipped
}

// parsePlans groups tier rows by plan id. Plan metadata comes from the
// first row of each group.
func parsePlans(rows []map[string]string) []commission.CommercialPlan {
	plans := make(map[string]*commission.CommercialPlan)
	var order []string

	for _, row := range rows {
		if row[FieldTier] == "" && row[FieldName] == "" {
			continue
		}

		planID := orDefault(row[FieldPlan], "DEFAULT")
		plan, seen := plans[planID]
		if !seen {
			plan = &commission.CommercialPlan{
				ID:      commission.PlanID(planID),
				Name:    orDefault(row[FieldName], "Commercial Plan"),
				Active:  parseStrictBool(row[FieldActive]),
				Default: parseStrictBool(row[FieldDefault]),
			}
			if t, ok := parseDate(row[FieldStart]); ok {
				plan.StartDate = t
			} else {
				plan.StartDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
			}
			plans[planID] = plan
			order = append(order, planID)
		}

		rule := commission.TierRule{
			Tier:             parseTier(row[FieldTier]),
			MinClients:       parseInt(row[FieldMinClients], 0),
			BountyMonths:     parseInt(row[FieldBountyMonths], 0),
			BountyPercentage: ParsePercentage(row[FieldBountyPct]),
			Year1Percentage:  ParsePercentage(row[FieldYear1Pct]),
			Year2Percentage:  ParsePercentage(row[FieldYear2Pct]),
			VestingMonths:    parseInt(row[FieldVesting], 6),
		}
		if max := strings.ToLower(strings.TrimSpace(row[FieldMaxClients])); max != "" && max != "infinity" {
			if n := parseInt(max, -1); n >= 0 {
				rule.MaxClients = &n
			}
		}
		setRule(plan, rule)
	}

	result := make([]commission.CommercialPlan, 0, len(order))
	for _, id := range order {
		result = append(result, *plans[id])
	}
	return result
}

// setRule replaces the plan's rule for the same tier, or appends. A sheet
// that lists a tier twice keeps the last row.
func setRule(plan *commission.CommercialPlan, rule commission.TierRule) {
	for i := range plan.Rules {
		if plan.Rules[i].Tier == rule.Tier {
			plan.Rules[i] = rule
			return
		}
	}
	plan.Rules = append(plan.Rules, rule)
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func orDefault(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return strings.TrimSpace(val)
}

func orGenerated(val, prefix string) string {
	if strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return prefix + "-" + uuid.NewString()[:5]
}

func parsePartnerStatus(val string) commission.PartnerStatus {
	if commission.PartnerStatus(val) == commission.PartnerPotential {
		return commission.PartnerPotential
	}
	return commission.PartnerActive
}

func parseSubscriptionStatus(val string) commission.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "cancelado", "cancelled", "canceled", "inactive":
		return commission.SubscriptionCancelled
	default:
		return commission.SubscriptionActive
	}
}

func parseTier(val string) commission.Tier {
	switch commission.Tier(strings.TrimSpace(val)) {
	case commission.TierGold:
		return commission.TierGold
	case commission.TierPlatinum:
		return commission.TierPlatinum
	default:
		return commission.TierSilver
	}
}
