/*
Package sqlite provides a SQLite-backed wage rule store.

PURPOSE:
  Persists company policies and versioned wage rules, and answers the
  engine's one question: which rule is in force for a company, vehicle type
  and work date.

INTERFACES IMPLEMENTED:
  wage.RuleStore: FindApplicableRule

KEY TABLES:
  companies:  Overtime unit, rounding method, restraint rule (JSON)
  wage_rules: One row per rule version, effective_from/effective_to as
              YYYY-MM-DD text so string order is date order

INDEXES:
  - idx_wage_rules_lookup: (company_id, vehicle_type_id, effective_from DESC),
    the resolution hot path

DECIMALS:
  Money and hours are stored as TEXT and parsed with shopspring/decimal, so
  no value ever passes through a float.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. A ":memory:" database is limited to a
  single connection, since every new connection would open an empty database.

USAGE:
  store, err := sqlite.New("./data/wage.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  calc := wage.NewCalculator(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - wage/store.go: RuleStore interface
  - wage/store/memory.go: In-memory implementation for testing
  - store/postgres: Same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/wage"
)

// Store implements wage.RuleStore using SQLite.
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
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
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
	-- Company pay policy, attached to every rule of the company
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		overtime_unit INTEGER NOT NULL DEFAULT 15,
		rounding_method TEXT NOT NULL DEFAULT 'floor',
		restraint_rule_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Wage rules, versioned by effective date range
	CREATE TABLE IF NOT EXISTS wage_rules (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		vehicle_type_id TEXT NOT NULL,
		base_daily_wage TEXT NOT NULL,
		base_hours TEXT NOT NULL,
		overtime_rate_normal TEXT,
		overtime_rate_late TEXT,
		overtime_rate_holiday TEXT,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Rule resolution (hot path)
	CREATE INDEX IF NOT EXISTS idx_wage_rules_lookup
		ON wage_rules(company_id, vehicle_type_id, effective_from DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COMPANY POLICIES
// =============================================================================

// SaveCompanyPolicy inserts or replaces a company policy.
func (s *Store) SaveCompanyPolicy(ctx context.Context, p wage.CompanyPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.savePolicy(ctx, s.db, p)
}

func (s *Store) savePolicy(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, p wage.CompanyPolicy) error {
	restraintJSON, err := factory.MarshalRestraintRule(p.RestraintRule)
	if err != nil {
		return fmt.Errorf("failed to encode restraint rule: %w", err)
	}

	query := `
		INSERT INTO companies (id, overtime_unit, rounding_method, restraint_rule_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			overtime_unit = excluded.overtime_unit,
			rounding_method = excluded.rounding_method,
			restraint_rule_json = excluded.restraint_rule_json,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.ExecContext(ctx, query,
		p.CompanyID, p.OvertimeUnit, string(p.RoundingMethod), restraintJSON, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save company policy: %w", err)
	}
	return nil
}

// GetCompanyPolicy retrieves a company policy, or nil if there is none.
func (s *Store) GetCompanyPolicy(ctx context.Context, companyID string) (*wage.CompanyPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p wage.CompanyPolicy
	var method string
	var restraintJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, overtime_unit, rounding_method, restraint_rule_json FROM companies WHERE id = ?",
		companyID,
	).Scan(&p.CompanyID, &p.OvertimeUnit, &method, &restraintJSON)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.RoundingMethod = wage.RoundingMethod(method)
	p.RestraintRule, err = factory.ParseRestraintRule(restraintJSON.String)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// WAGE RULES
// =============================================================================

// SaveRule inserts or replaces a rule. A rule carrying its company policy
// saves the policy in the same transaction; otherwise the company must
// already exist.
func (s *Store) SaveRule(ctx context.Context, r wage.WageRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if r.Company.CompanyID != "" {
		if err := s.savePolicy(ctx, tx, r.Company); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO wage_rules
		(id, company_id, vehicle_type_id, base_daily_wage, base_hours,
		 overtime_rate_normal, overtime_rate_late, overtime_rate_holiday,
		 effective_from, effective_to, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			vehicle_type_id = excluded.vehicle_type_id,
			base_daily_wage = excluded.base_daily_wage,
			base_hours = excluded.base_hours,
			overtime_rate_normal = excluded.overtime_rate_normal,
			overtime_rate_late = excluded.overtime_rate_late,
			overtime_rate_holiday = excluded.overtime_rate_holiday,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, query,
		r.ID,
		r.CompanyID,
		r.VehicleTypeID,
		r.BaseDailyWage.String(),
		r.BaseHours.String(),
		nullDecimal(r.OvertimeRateNormal),
		nullDecimal(r.OvertimeRateLate),
		nullDecimal(r.OvertimeRateHoliday),
		r.Window.From.Format(wage.DateLayout),
		nullDate(r.Window.To),
		r.IsActive,
		now, now,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &wage.InputError{Field: "company_id", Reason: fmt.Sprintf("unknown company %q", r.CompanyID)}
		}
		return fmt.Errorf("failed to save wage rule: %w", err)
	}

	return tx.Commit()
}

const ruleColumns = `
	r.id, r.company_id, r.vehicle_type_id, r.base_daily_wage, r.base_hours,
	r.overtime_rate_normal, r.overtime_rate_late, r.overtime_rate_holiday,
	r.effective_from, r.effective_to, r.is_active,
	c.overtime_unit, c.rounding_method, c.restraint_rule_json
`

// GetRule retrieves a rule by ID with its company policy, or nil.
func (s *Store) GetRule(ctx context.Context, id string) (*wage.WageRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules, err := s.queryRules(ctx,
		"SELECT "+ruleColumns+" FROM wage_rules r JOIN companies c ON c.id = r.company_id WHERE r.id = ?",
		id,
	)
	if err != nil || len(rules) == 0 {
		return nil, err
	}
	return &rules[0], nil
}

// ListRules returns the rules of a company ordered by vehicle type, then
// effective_from. An empty companyID lists every rule.
func (s *Store) ListRules(ctx context.Context, companyID string) ([]wage.WageRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + ruleColumns + " FROM wage_rules r JOIN companies c ON c.id = r.company_id"
	var args []any
	if companyID != "" {
		query += " WHERE r.company_id = ?"
		args = append(args, companyID)
	}
	query += " ORDER BY r.company_id, r.vehicle_type_id, r.effective_from"

	return s.queryRules(ctx, query, args...)
}

// FindApplicableRule implements wage.RuleStore. The latest effective_from
// wins; equal dates fall back to the lowest id.
func (s *Store) FindApplicableRule(ctx context.Context, companyID, vehicleTypeID string, workDate time.Time) (*wage.WageRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := wage.DateOf(workDate).Format(wage.DateLayout)
	query := `
		SELECT ` + ruleColumns + `
		FROM wage_rules r
		JOIN companies c ON c.id = r.company_id
		WHERE r.company_id = ?
		  AND r.vehicle_type_id = ?
		  AND r.is_active = 1
		  AND r.effective_from <= ?
		  AND (r.effective_to IS NULL OR r.effective_to >= ?)
		ORDER BY r.effective_from DESC, r.id ASC
		LIMIT 1
	`

	rules, err := s.queryRules(ctx, query, companyID, vehicleTypeID, day, day)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]wage.WageRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []wage.WageRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func scanRule(rows *sql.Rows) (wage.WageRule, error) {
	var r wage.WageRule
	var baseWage, baseHours, from, method string
	var normal, late, holiday, to, restraintJSON sql.NullString

	err := rows.Scan(
		&r.ID, &r.CompanyID, &r.VehicleTypeID, &baseWage, &baseHours,
		&normal, &late, &holiday,
		&from, &to, &r.IsActive,
		&r.Company.OvertimeUnit, &method, &restraintJSON,
	)
	if err != nil {
		return r, err
	}

	if r.BaseDailyWage, err = decimal.NewFromString(baseWage); err != nil {
		return r, fmt.Errorf("rule %s: base_daily_wage: %w", r.ID, err)
	}
	if r.BaseHours, err = decimal.NewFromString(baseHours); err != nil {
		return r, fmt.Errorf("rule %s: base_hours: %w", r.ID, err)
	}
	for _, f := range []struct {
		dst *decimal.NullDecimal
		src sql.NullString
	}{
		{&r.OvertimeRateNormal, normal},
		{&r.OvertimeRateLate, late},
		{&r.OvertimeRateHoliday, holiday},
	} {
		if *f.dst, err = parseNullDecimal(f.src); err != nil {
			return r, fmt.Errorf("rule %s: overtime rate: %w", r.ID, err)
		}
	}

	if r.Window.From, err = wage.ParseDate(from); err != nil {
		return r, fmt.Errorf("rule %s: effective_from: %w", r.ID, err)
	}
	if to.Valid {
		t, err := wage.ParseDate(to.String)
		if err != nil {
			return r, fmt.Errorf("rule %s: effective_to: %w", r.ID, err)
		}
		r.Window.To = &t
	}

	r.Company.CompanyID = r.CompanyID
	r.Company.RoundingMethod = wage.RoundingMethod(method)
	r.Company.RestraintRule, err = factory.ParseRestraintRule(restraintJSON.String)
	if err != nil {
		return r, fmt.Errorf("company %s: %w", r.CompanyID, err)
	}
	return r, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"wage_rules", "companies"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(wage.DateLayout), Valid: true}
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var _ wage.RuleStore = (*Store)(nil)
