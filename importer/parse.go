/*
parse.go - Cell-level parsing for spreadsheet imports

PURPOSE:
  Spreadsheet cells arrive as strings in whatever format the sales team
  typed: "20%", "0,2", "1.500,00 EUR". These helpers turn them into typed
  values, erring toward a usable default over a failed import.
*/
package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas/commission-engine/commission"
)

// ParsePercentage turns a cell into a fraction.
//
// Handles "20%", "0,2", "0.2" and "20", all yielding 0.2. The heuristic: a
// trailing % sign or a value above 1 means the cell is in percent points
// and needs division by 100. Exactly 1 stays 1 - bounty columns routinely
// hold "1" meaning 100%.
func ParsePercentage(val string) commission.Percent {
	if val == "" {
		return decimal.Zero
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(val, ",", "."), "%", ""))
	n, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}

	if strings.Contains(val, "%") || n.GreaterThan(decimal.NewFromInt(1)) {
		return n.Div(decimal.NewFromInt(100))
	}
	return n
}

// parseAmount turns a money cell into Money. Currency symbols and thousand
// separators are stripped; a decimal comma becomes a dot.
func parseAmount(val string) commission.Money {
	cleaned := strings.TrimSpace(val)
	for _, sym := range []string{"€", "$", "EUR", "eur"} {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	// "1.500,00" -> "1500.00"; "1500.00" stays as is.
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return commission.ZeroMoney()
	}
	return commission.Money{Value: d}
}

// parseDate accepts the date formats the sheets actually contain.
func parseDate(val string) (time.Time, bool) {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseBool treats "no", "false" and "0" as false, everything else
// (including blank) as true. Import flags default to permissive.
func parseBool(val string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	switch v {
	case "":
		return fallback
	case "no", "false", "0":
		return false
	default:
		return true
	}
}

// parseStrictBool treats only "true" and "1" as true.
func parseStrictBool(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	return v == "true" || v == "1"
}

func parseInt(val string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return n
}

// parsePausedMonths splits a "2024-07, 2024-08" style cell.
func parsePausedMonths(val string) []commission.Month {
	var months []commission.Month
	for _, part := range strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ';' }) {
		if m, err := commission.ParseMonth(strings.TrimSpace(part)); err == nil {
			months = append(months, m)
		}
	}
	return months
}

// parseMonthKey normalizes a liquidation month cell. Legacy exports used
// sentinel labels for the pre-system balance; both spellings map to the
// canonical legacy key.
func parseMonthKey(val string) string {
	v := strings.ToUpper(strings.TrimSpace(val))
	switch v {
	case "SALDO-INICIAL", "SALDO-ANTERIOR", commission.LegacyMonthKey:
		return commission.LegacyMonthKey
	default:
		return strings.TrimSpace(val)
	}
}
