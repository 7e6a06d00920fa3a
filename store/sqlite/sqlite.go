/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements commission.Store using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  partners:       Partner directory
  subscriptions:  Client subscriptions per partner
  plans:          Commercial plans (tier rules stored as JSON)
  liquidations:   Append-only payment log
  payouts:        Invoice-like registration records

APPEND-ONLY ENFORCEMENT:
  Liquidations receive no UPDATE or DELETE statements. Once a month is
  settled it stays settled. Payouts allow exactly one mutation: the
  payment-date stamp.

DOUBLE-BOOKING GUARD:
  The liquidations table carries a UNIQUE index on
  (subscription_id, month_key). Two concurrent registrations that both saw
  the same Pending month cannot both succeed: the second insert violates
  the index and the whole registration rolls back. This constraint lives
  in the database on purpose - application-level checks alone cannot close
  the race.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - commission/store.go: Interface definitions
  - commission/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/atlas/commission-engine/commission"
)

const dateLayout = "2006-01-02"

// Store implements commission.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS partners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact TEXT,
		email TEXT,
		status TEXT NOT NULL,
		tier TEXT NOT NULL,
		enrolled_at TEXT NOT NULL,
		commissionable BOOLEAN NOT NULL DEFAULT TRUE,
		plan_id TEXT
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		client TEXT NOT NULL,
		fee TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL,
		opening_balance TEXT NOT NULL DEFAULT '0',
		commission_start TEXT,
		paused_months TEXT,
		plan_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_partner
		ON subscriptions(partner_id);

	-- Plans (tier rules as JSON config)
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		rules_json TEXT NOT NULL
	);

	-- Liquidations (append-only payment log)
	CREATE TABLE IF NOT EXISTS liquidations (
		id TEXT PRIMARY KEY,
		payout_id TEXT,
		partner_id TEXT NOT NULL,
		subscription_id TEXT NOT NULL,
		month_key TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL
	);

	-- CRITICAL: one liquidation per subscription-month. An already-settled
	-- month cannot be billed again, no matter how many registrations race.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_liquidations_sub_month
		ON liquidations(subscription_id, month_key);

	CREATE INDEX IF NOT EXISTS idx_liquidations_partner
		ON liquidations(partner_id);
	CREATE INDEX IF NOT EXISTS idx_liquidations_payout
		ON liquidations(payout_id) WHERE payout_id IS NOT NULL;

	-- Payouts (registration records)
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		partner_name TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		payment_date TEXT,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payouts_partner
		ON payouts(partner_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LIQUIDATION STORE (commission.LiquidationStore interface)
// =============================================================================

// AppendLiquidations writes the batch in one SQL transaction. Used by the
// importer for externally recorded payments; payout registration goes
// through RegisterPayout instead.
func (s *Store) AppendLiquidations(ctx context.Context, liqs []commission.Liquidation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertLiquidations(ctx, tx, "", liqs); err != nil {
		return err
	}
	return tx.Commit()
}

func insertLiquidations(ctx context.Context, tx *sql.Tx, payoutID string, liqs []commission.Liquidation) error {
	for _, l := range liqs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO liquidations (id, payout_id, partner_id, subscription_id, month_key, amount, paid_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(l.ID),
			nullString(payoutID),
			string(l.PartnerID),
			string(l.SubscriptionID),
			l.MonthKey,
			l.Amount.Value.String(),
			l.PaidAt.Format(dateLayout),
		)
		if err != nil {
			if isMonthUniquenessError(err) {
				return &commission.DuplicateLiquidationError{
					SubscriptionID: l.SubscriptionID,
					MonthKey:       l.MonthKey,
				}
			}
			return fmt.Errorf("failed to insert liquidation %s: %w", l.ID, err)
		}
	}
	return nil
}

// ListLiquidations returns the full payment log ordered by payment date.
func (s *Store) ListLiquidations(ctx context.Context) ([]commission.Liquidation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_id, subscription_id, month_key, amount, paid_at
		FROM liquidations
		ORDER BY paid_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query liquidations: %w", err)
	}
	defer rows.Close()

	return scanLiquidations(rows)
}

func scanLiquidations(rows *sql.Rows) ([]commission.Liquidation, error) {
	var result []commission.Liquidation
	for rows.Next() {
		var l commission.Liquidation
		var id, partnerID, subID, amount, paidAt string
		if err := rows.Scan(&id, &partnerID, &subID, &l.MonthKey, &amount, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan liquidation: %w", err)
		}
		l.ID = commission.LiquidationID(id)
		l.PartnerID = commission.PartnerID(partnerID)
		l.SubscriptionID = commission.SubscriptionID(subID)
		l.Amount = commission.MustParseMoney(amount)
		l.PaidAt, _ = time.Parse(dateLayout, paidAt)
		result = append(result, l)
	}
	return result, rows.Err()
}

// =============================================================================
// PAYOUT STORE (commission.PayoutStore interface)
// =============================================================================

// RegisterPayout inserts the record and its liquidations in one SQL
// transaction. A uniqueness violation on any liquidation rolls back the
// entire registration.
func (s *Store) RegisterPayout(ctx context.Context, payout commission.PayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var paymentDate *string
	if payout.PaymentDate != nil {
		d := payout.PaymentDate.Format(dateLayout)
		paymentDate = &d
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payouts (id, partner_id, partner_name, generated_at, payment_date, total_amount, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(payout.ID),
		string(payout.PartnerID),
		payout.PartnerName,
		payout.GeneratedAt.Format(dateLayout),
		paymentDate,
		payout.TotalAmount.Value.String(),
		string(payout.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payout %s: %w", payout.ID, err)
	}

	if err := insertLiquidations(ctx, tx, string(payout.ID), payout.Items); err != nil {
		return err
	}
	return tx.Commit()
}

// Payout retrieves one record with its liquidations.
func (s *Store) Payout(ctx context.Context, id commission.PayoutID) (*commission.PayoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, partner_id, partner_name, generated_at, payment_date, total_amount, status
		FROM payouts WHERE id = ?`, string(id))

	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, commission.ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadPayoutItems(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row rowScanner) (*commission.PayoutRecord, error) {
	var p commission.PayoutRecord
	var id, partnerID, generatedAt, totalAmount, status string
	var paymentDate sql.NullString

	err := row.Scan(&id, &partnerID, &p.PartnerName, &generatedAt, &paymentDate, &totalAmount, &status)
	if err != nil {
		return nil, err
	}

	p.ID = commission.PayoutID(id)
	p.PartnerID = commission.PartnerID(partnerID)
	p.GeneratedAt, _ = time.Parse(dateLayout, generatedAt)
	if paymentDate.Valid && paymentDate.String != "" {
		t, _ := time.Parse(dateLayout, paymentDate.String)
		p.PaymentDate = &t
	}
	p.TotalAmount = commission.MustParseMoney(totalAmount)
	p.Status = commission.PayoutStatus(status)
	return &p, nil
}

func (s *Store) loadPayoutItems(ctx context.Context, p *commission.PayoutRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_id, subscription_id, month_key, amount, paid_at
		FROM liquidations
		WHERE payout_id = ?
		ORDER BY paid_at ASC, id ASC`, string(p.ID))
	if err != nil {
		return fmt.Errorf("failed to query payout items: %w", err)
	}
	defer rows.Close()

	items, err := scanLiquidations(rows)
	if err != nil {
		return err
	}
	p.Items = items
	return nil
}

// ListPayouts returns payout records newest-first, optionally scoped to a
// partner.
func (s *Store) ListPayouts(ctx context.Context, partnerID commission.PartnerID) ([]commission.PayoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, partner_id, partner_name, generated_at, payment_date, total_amount, status
		FROM payouts`
	var args []any
	if partnerID != "" {
		query += ` WHERE partner_id = ?`
		args = append(args, string(partnerID))
	}
	query += ` ORDER BY generated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var result []commission.PayoutRecord
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if err := s.loadPayoutItems(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// SetPaymentDate stamps or clears the payment date, flipping status
// accordingly. The only mutation payouts ever receive.
func (s *Store) SetPaymentDate(ctx context.Context, id commission.PayoutID, date *time.Time) (*commission.PayoutRecord, error) {
	s.mu.Lock()

	status := commission.PayoutPending
	var dateVal *string
	if date != nil {
		status = commission.PayoutPaid
		d := date.Format(dateLayout)
		dateVal = &d
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET payment_date = ?, status = ? WHERE id = ?`,
		dateVal, string(status), string(id))
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	affected, err := res.RowsAffected()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, commission.ErrPayoutNotFound
	}
	return s.Payout(ctx, id)
}

// =============================================================================
// DIRECTORY STORE (commission.DirectoryStore interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SavePartner upserts a partner record.
func (s *Store) SavePartner(ctx context.Context, p commission.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertPartner(ctx, s.db, p)
}

func upsertPartner(ctx context.Context, db execer, p commission.Partner) error {
	query := `
		INSERT INTO partners (id, name, contact, email, status, tier, enrolled_at, commissionable, plan_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			contact = excluded.contact,
			email = excluded.email,
			status = excluded.status,
			tier = excluded.tier,
			enrolled_at = excluded.enrolled_at,
			commissionable = excluded.commissionable,
			plan_id = excluded.plan_id
	`

	_, err := db.ExecContext(ctx, query,
		string(p.ID), p.Name, p.Contact, p.Email,
		string(p.Status), string(p.Tier),
		p.EnrolledAt.Format(dateLayout),
		p.Commissionable, string(p.PlanID),
	)
	return err
}

// ListPartners returns all partners ordered by name.
func (s *Store) ListPartners(ctx context.Context) ([]commission.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact, email, status, tier, enrolled_at, commissionable, plan_id
		FROM partners ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer rows.Close()

	var result []commission.Partner
	for rows.Next() {
		var p commission.Partner
		var id, status, tier, enrolledAt string
		var contact, email, planID sql.NullString
		if err := rows.Scan(&id, &p.Name, &contact, &email, &status, &tier, &enrolledAt, &p.Commissionable, &planID); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		p.ID = commission.PartnerID(id)
		p.Contact = contact.String
		p.Email = email.String
		p.Status = commission.PartnerStatus(status)
		p.Tier = commission.Tier(tier)
		p.PlanID = commission.PlanID(planID.String)
		p.EnrolledAt, _ = time.Parse(dateLayout, enrolledAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

// SaveSubscription upserts a subscription record.
func (s *Store) SaveSubscription(ctx context.Context, sub commission.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertSubscription(ctx, s.db, sub)
}

func upsertSubscription(ctx context.Context, db execer, sub commission.Subscription) error {
	var endDate, commissionStart *string
	if sub.EndDate != nil {
		d := sub.EndDate.Format(dateLayout)
		endDate = &d
	}
	if sub.CommissionStart != nil {
		d := sub.CommissionStart.Format(dateLayout)
		commissionStart = &d
	}

	paused := make([]string, len(sub.PausedMonths))
	for i, m := range sub.PausedMonths {
		paused[i] = m.Key()
	}

	query := `
		INSERT INTO subscriptions (id, partner_id, client, fee, start_date, end_date, status,
			opening_balance, commission_start, paused_months, plan_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partner_id = excluded.partner_id,
			client = excluded.client,
			fee = excluded.fee,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			opening_balance = excluded.opening_balance,
			commission_start = excluded.commission_start,
			paused_months = excluded.paused_months,
			plan_id = excluded.plan_id
	`

	_, err := db.ExecContext(ctx, query,
		string(sub.ID), string(sub.PartnerID), sub.Client,
		sub.Fee.Value.String(),
		sub.StartDate.Format(dateLayout),
		endDate, string(sub.Status),
		sub.OpeningBalance.Value.String(),
		commissionStart,
		strings.Join(paused, ","),
		string(sub.PlanID),
	)
	return err
}

// ListSubscriptions returns all subscriptions ordered by start date.
func (s *Store) ListSubscriptions(ctx context.Context) ([]commission.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_id, client, fee, start_date, end_date, status,
			opening_balance, commission_start, paused_months, plan_id
		FROM subscriptions ORDER BY start_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var result []commission.Subscription
	for rows.Next() {
		var sub commission.Subscription
		var id, partnerID, fee, startDate, status, openingBalance string
		var endDate, commissionStart, paused, planID sql.NullString
		if err := rows.Scan(&id, &partnerID, &sub.Client, &fee, &startDate, &endDate, &status,
			&openingBalance, &commissionStart, &paused, &planID); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.ID = commission.SubscriptionID(id)
		sub.PartnerID = commission.PartnerID(partnerID)
		sub.Fee = commission.MustParseMoney(fee)
		sub.Status = commission.SubscriptionStatus(status)
		sub.OpeningBalance = commission.MustParseMoney(openingBalance)
		sub.PlanID = commission.PlanID(planID.String)
		sub.StartDate, _ = time.Parse(dateLayout, startDate)
		if endDate.Valid && endDate.String != "" {
			t, _ := time.Parse(dateLayout, endDate.String)
			sub.EndDate = &t
		}
		if commissionStart.Valid && commissionStart.String != "" {
			t, _ := time.Parse(dateLayout, commissionStart.String)
			sub.CommissionStart = &t
		}
		if paused.Valid && paused.String != "" {
			for _, key := range strings.Split(paused.String, ",") {
				if m, err := commission.ParseMonth(strings.TrimSpace(key)); err == nil {
					sub.PausedMonths = append(sub.PausedMonths, m)
				}
			}
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

// SavePlan upserts a commercial plan. Tier rules are serialized to JSON.
func (s *Store) SavePlan(ctx context.Context, p commission.CommercialPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertPlan(ctx, s.db, p)
}

func upsertPlan(ctx context.Context, db execer, p commission.CommercialPlan) error {
	rulesJSON, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules for plan %s: %w", p.ID, err)
	}

	query := `
		INSERT INTO plans (id, name, start_date, active, is_default, rules_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			active = excluded.active,
			is_default = excluded.is_default,
			rules_json = excluded.rules_json
	`

	_, err = db.ExecContext(ctx, query,
		string(p.ID), p.Name, p.StartDate.Format(dateLayout),
		p.Active, p.Default, string(rulesJSON),
	)
	return err
}

// ListPlans returns all plans ordered by start date.
func (s *Store) ListPlans(ctx context.Context) ([]commission.CommercialPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_date, active, is_default, rules_json
		FROM plans ORDER BY start_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var result []commission.CommercialPlan
	for rows.Next() {
		var p commission.CommercialPlan
		var id, startDate, rulesJSON string
		if err := rows.Scan(&id, &p.Name, &startDate, &p.Active, &p.Default, &rulesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.ID = commission.PlanID(id)
		p.StartDate, _ = time.Parse(dateLayout, startDate)
		if err := json.Unmarshal([]byte(rulesJSON), &p.Rules); err != nil {
			return nil, fmt.Errorf("failed to decode rules for plan %s: %w", id, err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ReplaceDirectory swaps all three directory collections in one SQL
// transaction. Liquidations and payouts are never touched here.
func (s *Store) ReplaceDirectory(ctx context.Context, partners []commission.Partner, subs []commission.Subscription, plans []commission.CommercialPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"partners", "subscriptions", "plans"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	for _, p := range partners {
		if err := upsertPartner(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, sub := range subs {
		if err := upsertSubscription(ctx, tx, sub); err != nil {
			return err
		}
	}
	for _, p := range plans {
		if err := upsertPlan(ctx, tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"liquidations", "payouts", "subscriptions", "partners", "plans"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isMonthUniquenessError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "idx_liquidations_sub_month") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed: liquidations.subscription_id"))
}

// Compile-time check that Store implements the full store contract.
var _ commission.Store = (*Store)(nil)
