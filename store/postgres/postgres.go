// Package postgres provides a PostgreSQL-backed wage rule store on pgxpool.
//
// It keeps the same contract as store/sqlite. Money and hours live in
// numeric columns and cross the wire as text, so they are parsed straight
// into decimals. The company restraint rule is a jsonb column in the factory
// JSON schema.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/wage"
)

// Store implements wage.RuleStore using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, pings the server and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		overtime_unit INTEGER NOT NULL DEFAULT 15,
		rounding_method TEXT NOT NULL DEFAULT 'floor',
		restraint_rule JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS wage_rules (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		vehicle_type_id TEXT NOT NULL,
		base_daily_wage NUMERIC(12, 2) NOT NULL,
		base_hours NUMERIC(5, 2) NOT NULL,
		overtime_rate_normal NUMERIC(12, 2),
		overtime_rate_late NUMERIC(12, 2),
		overtime_rate_holiday NUMERIC(12, 2),
		effective_from DATE NOT NULL,
		effective_to DATE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_wage_rules_lookup
		ON wage_rules(company_id, vehicle_type_id, effective_from DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
}

// =============================================================================
// COMPANY POLICIES
// =============================================================================

// SaveCompanyPolicy inserts or replaces a company policy.
func (s *Store) SaveCompanyPolicy(ctx context.Context, p wage.CompanyPolicy) error {
	return savePolicy(ctx, s.pool, p)
}

func savePolicy(ctx context.Context, q querier, p wage.CompanyPolicy) error {
	restraintJSON, err := factory.MarshalRestraintRule(p.RestraintRule)
	if err != nil {
		return fmt.Errorf("failed to encode restraint rule: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO companies (id, overtime_unit, rounding_method, restraint_rule)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			overtime_unit = EXCLUDED.overtime_unit,
			rounding_method = EXCLUDED.rounding_method,
			restraint_rule = EXCLUDED.restraint_rule,
			updated_at = now()`,
		p.CompanyID, p.OvertimeUnit, string(p.RoundingMethod), restraintJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save company policy: %w", err)
	}
	return nil
}

// GetCompanyPolicy retrieves a company policy, or nil if there is none.
func (s *Store) GetCompanyPolicy(ctx context.Context, companyID string) (*wage.CompanyPolicy, error) {
	var p wage.CompanyPolicy
	var method string
	var restraintJSON *string

	err := s.pool.QueryRow(ctx, `
		SELECT id, overtime_unit, rounding_method, restraint_rule::text
		FROM companies WHERE id = $1`,
		companyID,
	).Scan(&p.CompanyID, &p.OvertimeUnit, &method, &restraintJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.RoundingMethod = wage.RoundingMethod(method)
	if restraintJSON != nil {
		if p.RestraintRule, err = factory.ParseRestraintRule(*restraintJSON); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// =============================================================================
// WAGE RULES
// =============================================================================

// SaveRule inserts or replaces a rule, saving an embedded company policy in
// the same transaction.
func (s *Store) SaveRule(ctx context.Context, r wage.WageRule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.Company.CompanyID != "" {
		if err := savePolicy(ctx, tx, r.Company); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wage_rules
		(id, company_id, vehicle_type_id, base_daily_wage, base_hours,
		 overtime_rate_normal, overtime_rate_late, overtime_rate_holiday,
		 effective_from, effective_to, is_active)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::date, $10::date, $11)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			vehicle_type_id = EXCLUDED.vehicle_type_id,
			base_daily_wage = EXCLUDED.base_daily_wage,
			base_hours = EXCLUDED.base_hours,
			overtime_rate_normal = EXCLUDED.overtime_rate_normal,
			overtime_rate_late = EXCLUDED.overtime_rate_late,
			overtime_rate_holiday = EXCLUDED.overtime_rate_holiday,
			effective_from = EXCLUDED.effective_from,
			effective_to = EXCLUDED.effective_to,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
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
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return &wage.InputError{Field: "company_id", Reason: fmt.Sprintf("unknown company %q", r.CompanyID)}
		}
		return fmt.Errorf("failed to save wage rule: %w", err)
	}

	return tx.Commit(ctx)
}

const ruleColumns = `
	r.id, r.company_id, r.vehicle_type_id, r.base_daily_wage::text, r.base_hours::text,
	r.overtime_rate_normal::text, r.overtime_rate_late::text, r.overtime_rate_holiday::text,
	to_char(r.effective_from, 'YYYY-MM-DD'), to_char(r.effective_to, 'YYYY-MM-DD'), r.is_active,
	c.overtime_unit, c.rounding_method, c.restraint_rule::text
`

// GetRule retrieves a rule by ID with its company policy, or nil.
func (s *Store) GetRule(ctx context.Context, id string) (*wage.WageRule, error) {
	rules, err := queryRules(ctx, s.pool,
		"SELECT "+ruleColumns+" FROM wage_rules r JOIN companies c ON c.id = r.company_id WHERE r.id = $1",
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
	query := "SELECT " + ruleColumns + " FROM wage_rules r JOIN companies c ON c.id = r.company_id"
	var args []any
	if companyID != "" {
		query += " WHERE r.company_id = $1"
		args = append(args, companyID)
	}
	query += " ORDER BY r.company_id, r.vehicle_type_id, r.effective_from"

	return queryRules(ctx, s.pool, query, args...)
}

// FindApplicableRule implements wage.RuleStore.
func (s *Store) FindApplicableRule(ctx context.Context, companyID, vehicleTypeID string, workDate time.Time) (*wage.WageRule, error) {
	rules, err := queryRules(ctx, s.pool, `
		SELECT `+ruleColumns+`
		FROM wage_rules r
		JOIN companies c ON c.id = r.company_id
		WHERE r.company_id = $1
		  AND r.vehicle_type_id = $2
		  AND r.is_active
		  AND r.effective_from <= $3::date
		  AND (r.effective_to IS NULL OR r.effective_to >= $3::date)
		ORDER BY r.effective_from DESC, r.id ASC
		LIMIT 1`,
		companyID, vehicleTypeID, wage.DateOf(workDate).Format(wage.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

func queryRules(ctx context.Context, q querier, query string, args ...any) ([]wage.WageRule, error) {
	rows, err := q.Query(ctx, query, args...)
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

func scanRule(rows pgx.Rows) (wage.WageRule, error) {
	var r wage.WageRule
	var baseWage, baseHours, from, method string
	var normal, late, holiday, to, restraintJSON *string

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
	if r.OvertimeRateNormal, err = parseNullDecimal(normal); err != nil {
		return r, fmt.Errorf("rule %s: overtime_rate_normal: %w", r.ID, err)
	}
	if r.OvertimeRateLate, err = parseNullDecimal(late); err != nil {
		return r, fmt.Errorf("rule %s: overtime_rate_late: %w", r.ID, err)
	}
	if r.OvertimeRateHoliday, err = parseNullDecimal(holiday); err != nil {
		return r, fmt.Errorf("rule %s: overtime_rate_holiday: %w", r.ID, err)
	}

	if r.Window.From, err = wage.ParseDate(from); err != nil {
		return r, fmt.Errorf("rule %s: effective_from: %w", r.ID, err)
	}
	if to != nil {
		t, err := wage.ParseDate(*to)
		if err != nil {
			return r, fmt.Errorf("rule %s: effective_to: %w", r.ID, err)
		}
		r.Window.To = &t
	}

	r.Company.CompanyID = r.CompanyID
	r.Company.RoundingMethod = wage.RoundingMethod(method)
	if restraintJSON != nil {
		if r.Company.RestraintRule, err = factory.ParseRestraintRule(*restraintJSON); err != nil {
			return r, fmt.Errorf("company %s: %w", r.CompanyID, err)
		}
	}
	return r, nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE wage_rules, companies")
	return err
}

func nullDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.String()
	return &v
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(wage.DateLayout)
	return &v
}

var _ wage.RuleStore = (*Store)(nil)
