/*
mapping.go - Column mapping for spreadsheet imports

PURPOSE:
  Source spreadsheets are maintained by the sales team in Spanish, English,
  or a mix of both, and columns get renamed without warning. Rather than
  hard-coding header names, each sheet has an ordered list of mapping rules
  that match normalized headers against substrings and rewrite them to
  canonical field names.

ORDER MATTERS:
  Rules are evaluated top to bottom and the first match wins. "Liquida
  comision partner" must map to the commissionable flag before the looser
  "partner" rule can claim it for the name field.

OVERRIDES:
  Deployments with unusual sheets can replace the rules per sheet via a
  YAML file (see LoadMappings). A sheet with no override keeps the
  defaults.
*/
package importer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical field names produced by header mapping.
const (
	FieldID              = "id"
	FieldName            = "name"
	FieldContact         = "contact"
	FieldEmail           = "email"
	FieldStatus          = "status"
	FieldTier            = "tier"
	FieldPlan            = "plan"
	FieldEnrolled        = "enrolled"
	FieldCommissionable  = "commissionable"
	FieldPartner         = "partner"
	FieldClient          = "client"
	FieldStart           = "start"
	FieldEnd             = "end"
	FieldFee             = "fee"
	FieldOpeningBalance  = "opening_balance"
	FieldPausedMonths    = "paused_months"
	FieldCommissionStart = "commission_start"
	FieldMonth           = "month"
	FieldAmount          = "amount"
	FieldPaidAt          = "paid_at"
	FieldActive          = "active"
	FieldDefault         = "default"
	FieldMinClients      = "min_clients"
	FieldMaxClients      = "max_clients"
	FieldBountyMonths    = "bounty_months"
	FieldBountyPct       = "bounty_pct"
	FieldYear1Pct        = "year1_pct"
	FieldYear2Pct        = "year2_pct"
	FieldVesting         = "vesting"
)

// Rule rewrites one header. Patterns are substring matches against the
// normalized header (lowercase, alphanumerics only); a pattern prefixed
// with "=" requires an exact match.
type Rule struct {
	Field    string   `yaml:"field"`
	Patterns []string `yaml:"patterns"`
}

// SheetMapping is an ordered rule list for one sheet.
type SheetMapping []Rule

// Mappings holds the rules for every source sheet.
type Mappings struct {
	Partners      SheetMapping `yaml:"partners"`
	Subscriptions SheetMapping `yaml:"subscriptions"`
	Liquidations  SheetMapping `yaml:"liquidations"`
	Plans         SheetMapping `yaml:"plans"`
}

// normalize lowercases a header and strips everything but letters and
// digits, so "Fecha de Alta" and "fecha_alta" compare equal.
func normalize(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Map rewrites a raw header to its canonical field name, or returns the
// raw header unchanged when no rule matches.
func (m SheetMapping) Map(header string) string {
	n := normalize(header)
	for _, rule := range m {
		for _, p := range rule.Patterns {
			if exact, ok := strings.CutPrefix(p, "="); ok {
				if n == exact {
					return rule.Field
				}
				continue
			}
			if strings.Contains(n, p) {
				return rule.Field
			}
		}
	}
	return header
}

// DefaultMappings returns the built-in Spanish/English rules.
func DefaultMappings() Mappings {
	return Mappings{
		Partners: SheetMapping{
			{Field: FieldID, Patterns: []string{"idpartner", "=id"}},
			// Flag columns mention "partner" too; match them before the
			// name rules can claim the header.
			{Field: FieldCommissionable, Patterns: []string{"liquida", "comision", "pagar"}},
			{Field: FieldStatus, Patterns: []string{"estado", "status"}},
			{Field: FieldPlan, Patterns: []string{"plan"}},
			{Field: FieldContact, Patterns: []string{"contacto", "persona"}},
			{Field: FieldEmail, Patterns: []string{"email", "correo"}},
			{Field: FieldName, Patterns: []string{"nombre", "empresa", "name", "=partner"}},
			{Field: FieldTier, Patterns: []string{"nivel", "tier"}},
			{Field: FieldEnrolled, Patterns: []string{"fecha", "alta"}},
		},
		Subscriptions: SheetMapping{
			{Field: FieldID, Patterns: []string{"idsuscripcion", "idsubscription", "=id"}},
			{Field: FieldPartner, Patterns: []string{"idpartner"}},
			{Field: FieldClient, Patterns: []string{"cliente", "client"}},
			{Field: FieldCommissionStart, Patterns: []string{"calculo"}},
			{Field: FieldStart, Patterns: []string{"inicio", "start"}},
			{Field: FieldEnd, Patterns: []string{"fin", "end"}},
			{Field: FieldFee, Patterns: []string{"cuota", "mrr", "fee"}},
			{Field: FieldStatus, Patterns: []string{"estado", "status"}},
			{Field: FieldOpeningBalance, Patterns: []string{"saldo", "balance"}},
			{Field: FieldPausedMonths, Patterns: []string{"pausado", "paused"}},
			{Field: FieldPlan, Patterns: []string{"plan"}},
		},
		Liquidations: SheetMapping{
			{Field: FieldID, Patterns: []string{"idliquidacion", "=id"}},
			{Field: FieldPartner, Patterns: []string{"idpartner"}},
			{Field: FieldClient, Patterns: []string{"cliente", "client"}},
			{Field: FieldMonth, Patterns: []string{"mes", "month"}},
			{Field: FieldAmount, Patterns: []string{"monto", "importe", "amount"}},
			{Field: FieldPaidAt, Patterns: []string{"fecha", "date"}},
		},
		Plans: SheetMapping{
			{Field: FieldPlan, Patterns: []string{"planid", "=id"}},
			{Field: FieldName, Patterns: []string{"nombre", "name"}},
			{Field: FieldStart, Patterns: []string{"inicio", "start"}},
			{Field: FieldActive, Patterns: []string{"activo", "active"}},
			{Field: FieldDefault, Patterns: []string{"defecto", "default"}},
			{Field: FieldTier, Patterns: []string{"nivel", "tier"}},
			{Field: FieldBountyMonths, Patterns: []string{"mesesbounty", "bountymonth"}},
			{Field: FieldBountyPct, Patterns: []string{"porcentajebounty", "bounty"}},
			{Field: FieldYear1Pct, Patterns: []string{"ao1", "year1", "ano1"}},
			{Field: FieldYear2Pct, Patterns: []string{"ao2", "year2", "ano2"}},
			{Field: FieldVesting, Patterns: []string{"permanencia", "vesting", "lock"}},
			{Field: FieldMinClients, Patterns: []string{"min"}},
			{Field: FieldMaxClients, Patterns: []string{"max"}},
		},
	}
}

// LoadMappings reads YAML overrides from path and merges them over the
// defaults. Sheets absent from the file keep their default rules.
func LoadMappings(path string) (Mappings, error) {
	m := DefaultMappings()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read mappings file: %w", err)
	}

	var override Mappings
	if err := yaml.Unmarshal(data, &override); err != nil {
		return m, fmt.Errorf("failed to parse mappings file: %w", err)
	}

	if len(override.Partners) > 0 {
		m.Partners = override.Partners
	}
	if len(override.Subscriptions) > 0 {
		m.Subscriptions = override.Subscriptions
	}
	if len(override.Liquidations) > 0 {
		m.Liquidations = override.Liquidations
	}
	if len(override.Plans) > 0 {
		m.Plans = override.Plans
	}
	return m, nil
}
