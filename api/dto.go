/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Calculation:
    CalculationRequest, CalculationResultDTO

  Batch:
    BatchRequest, BatchResponse, BatchEntryDTO, BatchSummaryDTO

  Rules:
    factory.RuleJSON, factory.CompanyPolicyJSON (used directly)

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

MONEY:
  Every amount is a JSON string holding an exact decimal ("3750"), never a
  float.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: Rule and policy JSON types
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// CALCULATION
// =============================================================================

// CalculationRequest is one attendance record.
type CalculationRequest struct {
	WorkDate          string                `json:"work_date"` // YYYY-MM-DD
	WorkerID          string                `json:"worker_id"`
	CompanyID         string                `json:"company_id"`
	VehicleTypeID     string                `json:"vehicle_type_id"`
	StartTime         string                `json:"start_time"` // HH:mm
	EndTime           string                `json:"end_time"`   // HH:mm
	BreakMinutes      int                   `json:"break_minutes"`
	IsHoliday         bool                  `json:"is_holiday"`
	IsNightShift      bool                  `json:"is_night_shift"`
	ManualAdjustments []ManualAdjustmentDTO `json:"manual_adjustments,omitempty"`
}

// ManualAdjustmentDTO is carried with a record but not applied.
type ManualAdjustmentDTO struct {
	Type   string          `json:"type"` // add, subtract, override
	Field  string          `json:"field"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// ToInput converts the request to an engine input.
func (r CalculationRequest) ToInput() (wage.CalculationInput, error) {
	in := wage.CalculationInput{
		WorkerID:      r.WorkerID,
		CompanyID:     r.CompanyID,
		VehicleTypeID: r.VehicleTypeID,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		BreakMinutes:  r.BreakMinutes,
		IsHoliday:     r.IsHoliday,
		IsNightShift:  r.IsNightShift,
	}
	if r.WorkDate != "" {
		d, err := wage.ParseDate(r.WorkDate)
		if err != nil {
			return in, &wage.InputError{Field: "work_date", Reason: "use YYYY-MM-DD"}
		}
		in.WorkDate = d
	}
	for _, a := range r.ManualAdjustments {
		in.ManualAdjustments = append(in.ManualAdjustments, wage.ManualAdjustment{
			Type:   wage.AdjustmentType(a.Type),
			Field:  a.Field,
			Amount: a.Amount,
			Reason: a.Reason,
		})
	}
	return in, nil
}

// CalculationResultDTO is the itemized wage of one record.
type CalculationResultDTO struct {
	WorkMinutes     int    `json:"work_minutes"`
	WorkDisplay     string `json:"work_display"`
	OvertimeMinutes int    `json:"overtime_minutes"`
	NightMinutes    int    `json:"night_minutes"`

	BaseWage           string `json:"base_wage"`
	OvertimeWage       string `json:"overtime_wage"`
	NightWage          string `json:"night_wage"`
	HolidayWage        string `json:"holiday_wage"`
	RestraintAllowance string `json:"restraint_allowance"`
	OtherAllowances    string `json:"other_allowances"`
	TotalWage          string `json:"total_wage"`

	CalculationLog []wage.LogEntry   `json:"calculation_log"`
	AppliedRule    factory.RuleJSON `json:"applied_rule"`
}

func toResultDTO(r *wage.CalculationResult) CalculationResultDTO {
	return CalculationResultDTO{
		WorkMinutes:        r.WorkMinutes,
		WorkDisplay:        wage.MinutesToDisplay(r.WorkMinutes),
		OvertimeMinutes:    r.OvertimeMinutes,
		NightMinutes:       r.NightMinutes,
		BaseWage:           r.BaseWage.String(),
		OvertimeWage:       r.OvertimeWage.String(),
		NightWage:          r.NightWage.String(),
		HolidayWage:        r.HolidayWage.String(),
		RestraintAllowance: r.RestraintAllowance.String(),
		OtherAllowances:    r.OtherAllowances.String(),
		TotalWage:          r.TotalWage.String(),
		CalculationLog:     r.Log,
		AppliedRule:        factory.RuleToJSON(r.AppliedRule),
	}
}

// =============================================================================
// BATCH
// =============================================================================

// BatchRequest is a list of attendance records.
type BatchRequest struct {
	Records []CalculationRequest `json:"records"`
}

// BatchResponse reports every record of a batch run.
type BatchResponse struct {
	RunID   string                   `json:"run_id"`
	Summary BatchSummaryDTO          `json:"summary"`
	Results map[string]BatchEntryDTO `json:"results"`
}

// BatchSummaryDTO counts the outcomes of a batch.
type BatchSummaryDTO struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    []FailedEntryDTO `json:"errors"`
}

type FailedEntryDTO struct {
	Key      string `json:"key"`
	WorkerID string `json:"worker_id"`
	Reason   string `json:"reason"`
}

// BatchEntryDTO holds either a result or an error.
type BatchEntryDTO struct {
	WorkerID string                `json:"worker_id"`
	WorkDate string                `json:"work_date"`
	Result   *CalculationResultDTO `json:"result,omitempty"`
	Error    *ErrorDTO             `json:"error,omitempty"`
}

// ErrorDTO classifies a per-record failure.
type ErrorDTO struct {
	Kind    string `json:"kind"` // rule_not_found, invalid_time_format, invalid_input, internal
	Message string `json:"message"`
}

func toSummaryDTO(s wage.BatchSummary) BatchSummaryDTO {
	dto := BatchSummaryDTO{
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Errors:    make([]FailedEntryDTO, 0, len(s.Errors)),
	}
	for _, e := range s.Errors {
		dto.Errors = append(dto.Errors, FailedEntryDTO{Key: e.Key, WorkerID: e.WorkerID, Reason: e.Reason})
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	SampleRecords []CalculationRequest `json:"sample_records,omitempty"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
