/*
handlers.go - HTTP API handlers for the reconciliation service

PURPOSE:
  Exposes the reconciliation core via REST. Handles HTTP request/response,
  JSON serialization and input validation, then delegates to the
  orchestrator, the approval workflow and the reporting queries.

ENDPOINTS:
  Reconciliation:
    POST /api/reconciliation/run         Manual run (one date)
    POST /api/reconciliation/run/forced  Forced run (date range)
    POST /api/reconciliation/dry-run     Preview intents, no writes
    GET  /api/reconciliation/runs        Run history

  Overtime:
    GET  /api/overtime                   Filtered listing
    GET  /api/overtime/{id}              Single record
    POST /api/overtime/{id}/decision     Approve or reject

  Absences / reports:
    GET  /api/absences                   Filtered listing
    GET  /api/reports/summary            Per-worker aggregates over a period

ERROR HANDLING:
  - 400: Validation errors, invalid input (nothing was processed)
  - 404: Record not found
  - 409: Decision on a non-pending overtime record (nothing was mutated)
  - 500: Internal errors

  Batch responses always carry both the aggregate outcome and the itemized
  per-pair results, so callers can tell "run failed entirely" apart from
  "run completed with some team/date failures".
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voltgrid/shift-engine/approval"
	"github.com/voltgrid/shift-engine/batch"
	"github.com/voltgrid/shift-engine/reconcile"
	"github.com/voltgrid/shift-engine/store/sqlite"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Orchestrator *batch.Orchestrator
	Workflow     *approval.Workflow
}

func NewHandler(store *sqlite.Store, orch *batch.Orchestrator, wf *approval.Workflow) *Handler {
	return &Handler{Store: store, Orchestrator: orch, Workflow: wf}
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// RunManual triggers reconciliation for one date.
// POST /api/reconciliation/run
func (h *Handler) RunManual(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeManualInput(w, r)
	if !ok {
		return
	}

	report, err := h.Orchestrator.RunManual(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Manual run rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReportDTO(report))
}

// RunForced triggers reconciliation over a date range.
// POST /api/reconciliation/run/forced
func (h *Handler) RunForced(w http.ResponseWriter, r *http.Request) {
	var req ForcedRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := batch.ForcedRunInput{}
	if req.HistoryDays != nil {
		if *req.HistoryDays < 1 {
			writeError(w, http.StatusBadRequest, "historyDays must be >= 1", nil)
			return
		}
		in.HistoryDays = *req.HistoryDays
	}
	var ok bool
	if req.StartDate != "" || req.EndDate != "" {
		if in.StartDate, ok = parseDate(w, "startDate", req.StartDate); !ok {
			return
		}
		if in.EndDate, ok = parseDate(w, "endDate", req.EndDate); !ok {
			return
		}
	}

	report, err := h.Orchestrator.RunForced(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Forced run rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReportDTO(report))
}

// DryRun previews the intents a manual run would apply.
// POST /api/reconciliation/dry-run
func (h *Handler) DryRun(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeManualInput(w, r)
	if !ok {
		return
	}

	report, err := h.Orchestrator.DryRun(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Dry run rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toDryRunDTO(report))
}

// ListRuns returns recent run history.
// GET /api/reconciliation/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1..500", nil)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunRecordDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunRecordDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) decodeManualInput(w http.ResponseWriter, r *http.Request) (batch.ManualRunInput, bool) {
	var req ManualRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return batch.ManualRunInput{}, false
	}

	date, ok := parseDate(w, "referenceDate", req.ReferenceDate)
	if !ok {
		return batch.ManualRunInput{}, false
	}
	in := batch.ManualRunInput{ReferenceDate: date, AllTeams: req.AllTeams}
	if req.TeamID != nil {
		in.TeamID = *req.TeamID
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return batch.ManualRunInput{}, false
	}
	return in, true
}

// =============================================================================
// OVERTIME
// =============================================================================

// GetOvertime returns one overtime record.
// GET /api/overtime/{id}
func (h *Handler) GetOvertime(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.GetOvertime(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if reconcile.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Overtime record not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get overtime record", err)
		return
	}
	writeJSON(w, http.StatusOK, toOvertimeDTO(*o))
}

// DecideOvertime approves or rejects a pending overtime record.
// POST /api/overtime/{id}/decision
func (h *Handler) DecideOvertime(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	decided, err := h.Workflow.Decide(r.Context(), chi.URLParam(r, "id"), approval.Decision{
		Action:  approval.Action(req.Action),
		Notes:   req.Notes,
		ActorID: req.Actor,
		At:      time.Now(),
	})
	if err != nil {
		writeDomainError(w, "Decision rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toOvertimeDTO(*decided))
}

// ListOvertime returns a filtered page of overtime records.
// GET /api/overtime
func (h *Handler) ListOvertime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := reconcile.OvertimeFilter{}
	page, pageSize, ok := parsePaging(w, q.Get("page"), q.Get("pageSize"))
	if !ok {
		return
	}
	filter.Page, filter.PageSize = page, pageSize

	if filter.WorkerID, ok = parseOptionalInt(w, "workerId", q.Get("workerId")); !ok {
		return
	}
	if filter.StartDate, ok = parseOptionalDate(w, "startDate", q.Get("startDate")); !ok {
		return
	}
	if filter.EndDate, ok = parseOptionalDate(w, "endDate", q.Get("endDate")); !ok {
		return
	}
	if raw := q.Get("kind"); raw != "" {
		kind := reconcile.OvertimeKind(raw)
		switch kind {
		case reconcile.OffDayWorked, reconcile.UnscheduledExtra, reconcile.LateCompensated, reconcile.ShiftSwap:
			filter.Kind = &kind
		default:
			writeError(w, http.StatusBadRequest, "Unknown overtime kind", nil)
			return
		}
	}
	if raw := q.Get("status"); raw != "" {
		status := reconcile.OutcomeStatus(raw)
		filter.Status = &status
	}

	records, total, err := h.Store.ListOvertime(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list overtime", err)
		return
	}
	items := make([]OvertimeDTO, len(records))
	for i, o := range records {
		items[i] = toOvertimeDTO(o)
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// =============================================================================
// ABSENCES / REPORTS
// =============================================================================

// ListAbsences returns a filtered page of absence records.
// GET /api/absences
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := reconcile.AbsenceFilter{}
	page, pageSize, ok := parsePaging(w, q.Get("page"), q.Get("pageSize"))
	if !ok {
		return
	}
	filter.Page, filter.PageSize = page, pageSize

	if filter.WorkerID, ok = parseOptionalInt(w, "workerId", q.Get("workerId")); !ok {
		return
	}
	if filter.TeamID, ok = parseOptionalInt(w, "teamId", q.Get("teamId")); !ok {
		return
	}
	if filter.StartDate, ok = parseOptionalDate(w, "startDate", q.Get("startDate")); !ok {
		return
	}
	if filter.EndDate, ok = parseOptionalDate(w, "endDate", q.Get("endDate")); !ok {
		return
	}
	if raw := q.Get("status"); raw != "" {
		status := reconcile.OutcomeStatus(raw)
		filter.Status = &status
	}

	records, total, err := h.Store.ListAbsences(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list absences", err)
		return
	}
	items := make([]AbsenceDTO, len(records))
	for i, a := range records {
		items[i] = toAbsenceDTO(a)
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// Summary returns per-worker aggregates over a period.
// GET /api/reports/summary?start=...&end=...
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	start, ok := parseDate(w, "start", r.URL.Query().Get("start"))
	if !ok {
		return
	}
	end, ok := parseDate(w, "end", r.URL.Query().Get("end"))
	if !ok {
		return
	}
	period := reconcile.Period{Start: start, End: end}
	if !period.Valid() {
		writeError(w, http.StatusBadRequest, "end before start", nil)
		return
	}

	rows, err := h.Store.Summary(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(rows))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(w http.ResponseWriter, field, raw string) (reconcile.RefDate, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, field+" is required", nil)
		return reconcile.RefDate{}, false
	}
	date, err := reconcile.ParseRefDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field+" (use YYYY-MM-DD)", err)
		return reconcile.RefDate{}, false
	}
	return date, true
}

func parseOptionalDate(w http.ResponseWriter, field, raw string) (*reconcile.RefDate, bool) {
	if raw == "" {
		return nil, true
	}
	date, err := reconcile.ParseRefDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field+" (use YYYY-MM-DD)", err)
		return nil, false
	}
	return &date, true
}

func parseOptionalInt(w http.ResponseWriter, field, raw string) (*int, bool) {
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "Invalid "+field, err)
		return nil, false
	}
	return &n, true
}

func parsePaging(w http.ResponseWriter, rawPage, rawSize string) (page, pageSize int, ok bool) {
	page, pageSize = 1, defaultPageSize
	if rawPage != "" {
		n, err := strconv.Atoi(rawPage)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be >= 1", nil)
			return 0, 0, false
		}
		page = n
	}
	if rawSize != "" {
		n, err := strconv.Atoi(rawSize)
		if err != nil || n < 1 || n > maxPageSize {
			writeError(w, http.StatusBadRequest, "pageSize must be 1..100", nil)
			return 0, 0, false
		}
		pageSize = n
	}
	return page, pageSize, true
}

// writeDomainError maps core errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case reconcile.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case reconcile.IsInvalidState(err):
		writeError(w, http.StatusConflict, message, err)
	case reconcile.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
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
