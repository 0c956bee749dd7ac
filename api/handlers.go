/*
handlers.go - HTTP API handlers for the wage engine

PURPOSE:
  Exposes the wage calculator and its rule store via REST API. Handles HTTP
  request/response and JSON serialization, and delegates to the engine.

ENDPOINTS:
  Calculations:
    POST   /api/calculations                Calculate one record
    POST   /api/calculations/batch          Calculate many records
                                            (?format=csv for a CSV export)

  Rules:
    GET    /api/rules?company_id=           List rules
    POST   /api/rules                       Save a rule (factory JSON)
    GET    /api/rules/resolve               Preview the rule in force
                                            (?company_id=&vehicle_type_id=&work_date=)

  Companies:
    GET    /api/companies/{id}/policy       Get a company policy
    PUT    /api/companies/{id}/policy       Save a company policy

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    GET    /api/scenarios/current           Currently loaded scenario
    POST   /api/scenarios/load              Load a demo scenario
    POST   /api/scenarios/reset             Clear all rules and policies

  Operations:
    GET    /health                          Liveness
    GET    /metrics                         Prometheus metrics (when enabled)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, bad clock time, invalid input
  - 404: No wage rule, unknown company or scenario
  - 500: Store failures

  A batch request only fails as a whole when its body cannot be read.
  Per-record failures are reported inside the 200 response.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/wage-engine/export"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/metrics"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Repository is the rule store surface the API needs. Implemented by
// store/sqlite, store/postgres and wage/store.
type Repository interface {
	wage.RuleStore
	SaveCompanyPolicy(ctx context.Context, p wage.CompanyPolicy) error
	GetCompanyPolicy(ctx context.Context, companyID string) (*wage.CompanyPolicy, error)
	SaveRule(ctx context.Context, r wage.WageRule) error
	ListRules(ctx context.Context, companyID string) ([]wage.WageRule, error)
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Repository
	Calc   *wage.Calculator
	Logger *slog.Logger
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. The calculator must resolve rules from
// the same store.
func NewHandler(store Repository, calc *wage.Calculator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{Store: store, Calc: calc, Logger: logger}
}

// maxBodyBytes bounds request bodies; a batch of a few thousand records fits.
const maxBodyBytes = 8 << 20

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate runs the engine for one record.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := req.ToInput()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	result, err := h.Calc.Calculate(r.Context(), in)
	h.Metrics.Calculation(errorKind(err))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResultDTO(result))
}

// CalculateBatch runs the engine over many records.
func (h *Handler) CalculateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inputs := make([]wage.CalculationInput, 0, len(req.Records))
	for i, rec := range req.Records {
		in, err := rec.ToInput()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid record %d", i), err)
			return
		}
		inputs = append(inputs, in)
	}

	runID := uuid.NewString()
	ctx := r.Context()
	h.Logger.InfoContext(ctx, "wage batch started",
		slog.String("run_id", runID),
		slog.Int("records", len(inputs)))

	start := time.Now()
	outcomes := h.Calc.CalculateBatch(ctx, inputs)
	h.Metrics.Batch(len(inputs), time.Since(start))
	for _, o := range outcomes {
		h.Metrics.Calculation(errorKind(o.Err))
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "wages-"+runID+".csv"))
		w.Header().Set("X-Run-ID", runID)
		if err := export.WriteCSV(w, outcomes); err != nil {
			h.Logger.ErrorContext(ctx, "csv export failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		}
		return
	}

	resp := BatchResponse{
		RunID:   runID,
		Summary: toSummaryDTO(wage.Summarize(outcomes)),
		Results: make(map[string]BatchEntryDTO, len(outcomes)),
	}
	for key, o := range outcomes {
		entry := BatchEntryDTO{
			WorkerID: o.Input.WorkerID,
			WorkDate: wage.DateOf(o.Input.WorkDate).Format(wage.DateLayout),
		}
		if o.OK() {
			dto := toResultDTO(o.Result)
			entry.Result = &dto
		} else {
			entry.Error = &ErrorDTO{Kind: errorKind(o.Err), Message: o.Err.Error()}
		}
		resp.Results[key] = entry
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns the rules of a company, or all rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context(), r.URL.Query().Get("company_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]factory.RuleJSON, len(rules))
	for i, rule := range rules {
		dtos[i] = factory.RuleToJSON(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule saves a rule from factory JSON.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := decodeJSON(w, r, &rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := factory.RuleFromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}

	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, factory.RuleToJSON(rule))
}

// ResolveRule returns the rule a record with the given triple would use.
func (h *Handler) ResolveRule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := wage.ParseDate(q.Get("work_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid work_date (use YYYY-MM-DD)", err)
		return
	}

	rule, err := h.Calc.Resolve(r.Context(), q.Get("company_id"), q.Get("vehicle_type_id"), day)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, factory.RuleToJSON(rule))
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// GetCompanyPolicy returns a company's pay policy.
func (h *Handler) GetCompanyPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.Store.GetCompanyPolicy(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get company policy", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Company not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, factory.PolicyToJSON(*p))
}

// SaveCompanyPolicy creates or replaces a company's pay policy.
func (h *Handler) SaveCompanyPolicy(w http.ResponseWriter, r *http.Request) {
	var pj factory.CompanyPolicyJSON
	if err := decodeJSON(w, r, &pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := chi.URLParam(r, "id")
	if pj.CompanyID != "" && pj.CompanyID != id {
		writeError(w, http.StatusBadRequest, "company_id does not match URL", nil)
		return
	}
	pj.CompanyID = id

	p, err := factory.PolicyFromJSON(pj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid company policy", err)
		return
	}

	if err := h.Store.SaveCompanyPolicy(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save company policy", err)
		return
	}

	writeJSON(w, http.StatusOK, factory.PolicyToJSON(p))
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

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

// writeEngineError maps engine and store errors to a status.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case wage.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Wage rule not found", err)
	case errors.Is(err, wage.ErrInvalidTimeFormat):
		writeError(w, http.StatusBadRequest, "Invalid time format", err)
	case wage.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	default:
		writeError(w, http.StatusInternalServerError, "Calculation failed", err)
	}
}

// errorKind classifies err for batch entries and metrics; nil is "ok".
func errorKind(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case wage.IsNotFound(err):
		return metrics.OutcomeRuleNotFound
	case errors.Is(err, wage.ErrInvalidTimeFormat):
		return metrics.OutcomeInvalidTimeFormat
	case errors.Is(err, wage.ErrInvalidInput):
		return metrics.OutcomeInvalidInput
	default:
		return metrics.OutcomeInternal
	}
}
