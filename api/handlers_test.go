package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/shift-engine/approval"
	"github.com/voltgrid/shift-engine/batch"
	"github.com/voltgrid/shift-engine/reconcile"
	"github.com/voltgrid/shift-engine/store/sqlite"
)

var may2 = reconcile.NewRefDate(2024, time.May, 2)

func newTestAPI(t *testing.T) (http.Handler, *sqlite.Store) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	orch := &batch.Orchestrator{
		Schedule: st,
		Shifts:   st,
		Catalog:  st,
		Outcomes: st,
		Engine:   &reconcile.Engine{},
		Runs:     st,
		Workers:  1,
	}
	return NewRouter(NewHandler(st, orch, approval.NewWorkflow(st))), st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// seedNoShow publishes a schedule where the worker is due to work the date
// but no shift record exists.
func seedNoShow(t *testing.T, st *sqlite.Store, teamID, workerID int, date reconcile.RefDate) {
	t.Helper()
	ctx := context.Background()
	scheduleID, err := st.SaveSchedule(ctx, teamID, sqlite.SchedulePublished)
	require.NoError(t, err)
	require.NoError(t, st.SaveSlot(ctx, scheduleID, reconcile.ScheduleSlot{
		TeamID: teamID, Date: date, WorkerID: workerID, State: reconcile.SlotWork,
	}))
}

// seedOvertime creates one pending overtime record and returns its ID.
func seedOvertime(t *testing.T, st *sqlite.Store) string {
	t.Helper()
	ctx := context.Background()

	_, err := st.Apply(ctx, []reconcile.Intent{{
		Kind: reconcile.IntentOvertime,
		Op:   reconcile.OpCreate,
		Overtime: &reconcile.Overtime{
			WorkerID: 5, TeamID: 10, ReferenceDate: may2,
			Kind: reconcile.UnscheduledExtra, HoursWorked: decimal.NewFromInt(8),
			Status: reconcile.StatusPending,
		},
	}})
	require.NoError(t, err)

	records, _, err := st.ListOvertime(ctx, reconcile.OvertimeFilter{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0].ID
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

func TestRunManual_EndToEnd(t *testing.T) {
	// GIVEN: A published schedule with one no-show worker
	router, st := newTestAPI(t)
	seedNoShow(t, st, 10, 7, may2)

	// WHEN: Triggering a manual run for the team and date
	teamID := 10
	rec := doJSON(t, router, http.MethodPost, "/api/reconciliation/run",
		ManualRunRequest{ReferenceDate: "2024-05-02", TeamID: &teamID})

	// THEN: The run succeeds and the absence is queryable
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[RunReportDTO](t, rec)
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Successes)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 10, report.Results[0].TeamID)

	rec = doJSON(t, router, http.MethodGet, "/api/absences?workerId=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ListResponse](t, rec)
	assert.Equal(t, 1, list.Total)

	// Run history reflects the run.
	rec = doJSON(t, router, http.MethodGet, "/api/reconciliation/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeBody[[]RunRecordDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "manual", runs[0].Mode)
}

func TestRunManual_Validation(t *testing.T) {
	router, _ := newTestAPI(t)
	teamID := 10

	cases := []struct {
		name string
		body ManualRunRequest
	}{
		{"missing date", ManualRunRequest{TeamID: &teamID}},
		{"bad date", ManualRunRequest{ReferenceDate: "02/05/2024", TeamID: &teamID}},
		{"no selector", ManualRunRequest{ReferenceDate: "2024-05-02"}},
		{"both selectors", ManualRunRequest{ReferenceDate: "2024-05-02", TeamID: &teamID, AllTeams: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/reconciliation/run", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestRunForced_Validation(t *testing.T) {
	router, _ := newTestAPI(t)

	zero := 0
	rec := doJSON(t, router, http.MethodPost, "/api/reconciliation/run/forced",
		ForcedRunRequest{HistoryDays: &zero})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/reconciliation/run/forced",
		ForcedRunRequest{StartDate: "2024-05-02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/reconciliation/run/forced",
		ForcedRunRequest{StartDate: "2024-05-02", EndDate: "2024-05-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunForced_ExplicitRange(t *testing.T) {
	router, st := newTestAPI(t)
	seedNoShow(t, st, 10, 7, may2)

	rec := doJSON(t, router, http.MethodPost, "/api/reconciliation/run/forced",
		ForcedRunRequest{StartDate: "2024-05-01", EndDate: "2024-05-03"})

	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[RunReportDTO](t, rec)
	assert.Equal(t, 1, report.Successes)
	require.NotNil(t, report.Period)
	assert.Equal(t, "2024-05-01", report.Period.Start)
}

func TestDryRun_PreviewsWithoutWriting(t *testing.T) {
	router, st := newTestAPI(t)
	seedNoShow(t, st, 10, 7, may2)

	teamID := 10
	rec := doJSON(t, router, http.MethodPost, "/api/reconciliation/dry-run",
		ManualRunRequest{ReferenceDate: "2024-05-02", TeamID: &teamID})
	require.Equal(t, http.StatusOK, rec.Code)

	// No absence was persisted.
	rec = doJSON(t, router, http.MethodGet, "/api/absences", nil)
	list := decodeBody[ListResponse](t, rec)
	assert.Equal(t, 0, list.Total)
}

// =============================================================================
// OVERTIME ENDPOINTS
// =============================================================================

func TestDecideOvertime_ApproveThenConflict(t *testing.T) {
	// GIVEN: A pending overtime record
	router, st := newTestAPI(t)
	id := seedOvertime(t, st)

	// WHEN: Approving it
	rec := doJSON(t, router, http.MethodPost, "/api/overtime/"+id+"/decision",
		DecisionRequest{Action: "approve", Notes: "confirmed", Actor: "supervisor-1"})

	// THEN: The updated record comes back approved
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[OvertimeDTO](t, rec)
	assert.Equal(t, "approved", dto.Status)
	assert.Equal(t, "supervisor-1", dto.DecidedBy)

	// AND: A second decision conflicts without mutating anything
	rec = doJSON(t, router, http.MethodPost, "/api/overtime/"+id+"/decision",
		DecisionRequest{Action: "reject", Actor: "supervisor-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/overtime/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto = decodeBody[OvertimeDTO](t, rec)
	assert.Equal(t, "approved", dto.Status)
}

func TestDecideOvertime_BadAction(t *testing.T) {
	router, st := newTestAPI(t)
	id := seedOvertime(t, st)

	rec := doJSON(t, router, http.MethodPost, "/api/overtime/"+id+"/decision",
		DecisionRequest{Action: "escalate"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecideOvertime_NotFound(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/overtime/no-such-id/decision",
		DecisionRequest{Action: "approve"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOvertime(t *testing.T) {
	router, st := newTestAPI(t)
	id := seedOvertime(t, st)

	rec := doJSON(t, router, http.MethodGet, "/api/overtime/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[OvertimeDTO](t, rec)
	assert.Equal(t, "unscheduled_extra", dto.Kind)
	assert.Equal(t, "8", dto.HoursWorked)

	rec = doJSON(t, router, http.MethodGet, "/api/overtime/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOvertime_QueryValidation(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/overtime/?kind=bonus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/overtime/?pageSize=5000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/overtime/?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestSummary(t *testing.T) {
	router, st := newTestAPI(t)
	seedOvertime(t, st)

	rec := doJSON(t, router, http.MethodGet, "/api/reports/summary?start=2024-05-01&end=2024-05-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decodeBody[[]SummaryRowDTO](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].WorkerID)
	assert.Equal(t, 1, rows[0].OvertimeCount)

	rec = doJSON(t, router, http.MethodGet, "/api/reports/summary?start=2024-05-31&end=2024-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/reports/summary", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
