/*
scenarios.go - Demo master data for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate the rule store with realistic
	companies and wage rules, each with sample attendance records that can be
	posted straight to /api/calculations/batch.

AVAILABLE SCENARIOS:

	regional-trucking: 15 minute floor rounding, tiered restraint allowance,
	                   a 2023 rule version closed at year end
	night-logistics:   30 minute half-up rounding, holiday and late rates
	no-rounding:       Overtime paid to the minute, no restraint allowance

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Save company policies via factory JSON
 3. Save wage rules via factory JSON

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "regional-trucking"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' with ID, name, description and sample records
 2. Add its policy and rule JSON to 'scenarioData'

NOTE:

	Loading a scenario resets the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Store and calculator wiring
  - factory/rule.go: Rule and policy JSON schema
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/warp/wage-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "regional-trucking",
		Name:        "Regional Trucking",
		Description: "2t and 4t trucks, 15 minute floor rounding, restraint allowance over 12h",
		SampleRecords: []CalculationRequest{
			{WorkDate: "2024-06-03", WorkerID: "drv-001", CompanyID: "co-regional", VehicleTypeID: "4t", StartTime: "08:00", EndTime: "17:00", BreakMinutes: 60},
			{WorkDate: "2024-06-03", WorkerID: "drv-002", CompanyID: "co-regional", VehicleTypeID: "4t", StartTime: "08:00", EndTime: "19:30", BreakMinutes: 60},
			{WorkDate: "2024-06-03", WorkerID: "drv-003", CompanyID: "co-regional", VehicleTypeID: "2t", StartTime: "06:00", EndTime: "20:12", BreakMinutes: 60},
			{WorkDate: "2023-12-31", WorkerID: "drv-001", CompanyID: "co-regional", VehicleTypeID: "4t", StartTime: "08:00", EndTime: "18:00", BreakMinutes: 60, IsHoliday: true},
			{WorkDate: "2024-06-03", WorkerID: "drv-004", CompanyID: "co-regional", VehicleTypeID: "10t", StartTime: "08:00", EndTime: "17:00", BreakMinutes: 60},
		},
	},
	{
		ID:          "night-logistics",
		Name:        "Night Logistics",
		Description: "Overnight line-haul with late and holiday overtime rates, 30 minute half-up rounding",
		SampleRecords: []CalculationRequest{
			{WorkDate: "2024-06-03", WorkerID: "drv-101", CompanyID: "co-night", VehicleTypeID: "10t", StartTime: "23:00", EndTime: "06:00", IsNightShift: true},
			{WorkDate: "2024-06-03", WorkerID: "drv-102", CompanyID: "co-night", VehicleTypeID: "10t", StartTime: "18:00", EndTime: "06:00", BreakMinutes: 60, IsNightShift: true},
			{WorkDate: "2024-05-03", WorkerID: "drv-103", CompanyID: "co-night", VehicleTypeID: "10t", StartTime: "20:00", EndTime: "07:20", BreakMinutes: 45, IsNightShift: true, IsHoliday: true},
		},
	},
	{
		ID:          "no-rounding",
		Name:        "No Rounding",
		Description: "Overtime paid to the minute and no restraint allowance table",
		SampleRecords: []CalculationRequest{
			{WorkDate: "2024-06-03", WorkerID: "drv-201", CompanyID: "co-minute", VehicleTypeID: "light-van", StartTime: "09:00", EndTime: "18:07", BreakMinutes: 60},
			{WorkDate: "2024-06-03", WorkerID: "drv-202", CompanyID: "co-minute", VehicleTypeID: "light-van", StartTime: "9:00", EndTime: "18:7", BreakMinutes: 60},
		},
	},
}

// scenarioData holds the company policies and rules of each scenario as
// factory JSON.
var scenarioData = map[string]struct {
	policies []string
	rules    []string
}{
	"regional-trucking": {
		policies: []string{`{
			"company_id": "co-regional",
			"overtime_unit": 15,
			"rounding_method": "floor",
			"restraint_rule": {
				"type": "threshold",
				"includes_break": true,
				"conditions": [
					{"min_hours": 0,  "max_hours": 12,   "allowance": 0},
					{"min_hours": 12, "max_hours": 14,   "allowance": 500},
					{"min_hours": 14, "max_hours": null, "allowance": 1200}
				]
			}
		}`},
		rules: []string{
			`{"id": "regional-4t-2023", "company_id": "co-regional", "vehicle_type_id": "4t",
			  "base_daily_wage": "10000", "base_hours": "8",
			  "overtime_rate_normal": "1400", "overtime_rate_late": "1750", "overtime_rate_holiday": "1900",
			  "effective_from": "2023-01-01", "effective_to": "2023-12-31"}`,
			`{"id": "regional-4t-2024", "company_id": "co-regional", "vehicle_type_id": "4t",
			  "base_daily_wage": "11000", "base_hours": "8",
			  "overtime_rate_normal": "1500", "overtime_rate_late": "1875", "overtime_rate_holiday": "2000",
			  "effective_from": "2024-01-01"}`,
			`{"id": "regional-2t-2024", "company_id": "co-regional", "vehicle_type_id": "2t",
			  "base_daily_wage": "9500", "base_hours": "8",
			  "overtime_rate_normal": "1300",
			  "effective_from": "2024-01-01"}`,
		},
	},
	"night-logistics": {
		policies: []string{`{
			"company_id": "co-night",
			"overtime_unit": 30,
			"rounding_method": "round",
			"restraint_rule": {
				"type": "hourly",
				"includes_break": true,
				"conditions": [
					{"min_hours": 13, "max_hours": null, "allowance": 1000},
					{"min_hours": 11, "max_hours": 13,   "allowance": 600}
				]
			}
		}`},
		rules: []string{
			`{"id": "night-10t-2024", "company_id": "co-night", "vehicle_type_id": "10t",
			  "base_daily_wage": "14000", "base_hours": "7.5",
			  "overtime_rate_normal": "1800", "overtime_rate_late": "2250", "overtime_rate_holiday": "2500",
			  "effective_from": "2024-01-01"}`,
		},
	},
	"no-rounding": {
		policies: []string{`{"company_id": "co-minute", "overtime_unit": 0, "rounding_method": "floor", "restraint_rule": null}`},
		rules: []string{
			`{"id": "minute-van-2024", "company_id": "co-minute", "vehicle_type_id": "light-van",
			  "base_daily_wage": "8800", "base_hours": "8",
			  "overtime_rate_normal": "1200",
			  "effective_from": "2024-01-01"}`,
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, ok := scenarioData[req.ScenarioID]; !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.LoadScenarioData(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetStore clears all rules and policies.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// LoadScenarioData resets the store and saves the scenario's policies and
// rules. Used by the handler and by the -seed flag.
func (h *Handler) LoadScenarioData(ctx context.Context, id string) error {
	data, ok := scenarioData[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}

	for _, js := range data.policies {
		p, err := factory.ParseCompanyPolicy(js)
		if err != nil {
			return err
		}
		if err := h.Store.SaveCompanyPolicy(ctx, p); err != nil {
			return err
		}
	}
	for _, js := range data.rules {
		rule, err := factory.ParseRule(js)
		if err != nil {
			return err
		}
		if err := h.Store.SaveRule(ctx, rule); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.InfoContext(ctx, "scenario loaded",
		slog.String("scenario", id),
		slog.Int("policies", len(data.policies)),
		slog.Int("rules", len(data.rules)))
	return nil
}
