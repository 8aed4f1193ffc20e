package batch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/shift-engine/batch"
	"github.com/voltgrid/shift-engine/reconcile"
	"github.com/voltgrid/shift-engine/reconcile/store"
)

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	schedule *store.MemorySchedule
	shifts   *store.MemoryShifts
	catalog  *store.MemoryCatalog
	outcomes *store.Memory
	runs     *batch.MemoryRuns
	orch     *batch.Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		schedule: store.NewMemorySchedule(),
		shifts:   store.NewMemoryShifts(),
		catalog:  store.NewMemoryCatalog(),
		outcomes: store.NewMemory(),
		runs:     batch.NewMemoryRuns(),
	}
	f.orch = &batch.Orchestrator{
		Schedule: f.schedule,
		Shifts:   f.shifts,
		Catalog:  f.catalog,
		Outcomes: f.outcomes,
		Engine:   &reconcile.Engine{},
		Runs:     f.runs,
		Workers:  2,
	}
	return f
}

var feb10 = reconcile.NewRefDate(2024, time.February, 10)

func (f *fixture) scheduleWork(teamID, workerID int, date reconcile.RefDate) {
	f.schedule.AddSlot(reconcile.ScheduleSlot{
		TeamID: teamID, Date: date, WorkerID: workerID, State: reconcile.SlotWork,
	})
}

func (f *fixture) openShift(teamID int, date reconcile.RefDate, workerIDs ...int) {
	opened := date.Time().Add(8 * time.Hour)
	closed := opened.Add(8 * time.Hour)
	shift := reconcile.ShiftRecord{TeamID: teamID, OpenedAt: opened, ClosedAt: &closed}
	for _, id := range workerIDs {
		shift.Roster = append(shift.Roster, reconcile.RosterEntry{WorkerID: id})
	}
	f.shifts.AddShift(shift)
}

// =============================================================================
// MANUAL RUNS
// =============================================================================

func TestRunManual_SingleTeam_CreatesOutcomes(t *testing.T) {
	// GIVEN: Team 10 has two scheduled workers; only one opened a shift
	f := newFixture()
	f.scheduleWork(10, 1, feb10)
	f.scheduleWork(10, 2, feb10)
	f.openShift(10, feb10, 1)

	// WHEN: Running reconciliation for team 10 on that date
	report, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{
		ReferenceDate: feb10, TeamID: 10,
	})

	// THEN: One pending absence exists for the no-show worker
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, 1, report.Results[0].Applied.Created)

	absence, ok := f.outcomes.Absence(reconcile.AbsenceKey{WorkerID: 2, TeamID: 10, Date: feb10})
	require.True(t, ok)
	assert.Equal(t, reconcile.StatusPending, absence.Status)
}

func TestRunManual_SecondRun_IsIdempotent(t *testing.T) {
	// GIVEN: A first run already persisted the outcomes
	f := newFixture()
	f.scheduleWork(10, 1, feb10)
	f.openShift(10, feb10, 5) // worker 5 has no slot: unscheduled extra

	first, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})
	require.NoError(t, err)
	require.Equal(t, 2, first.Results[0].Applied.Created) // absence + overtime

	// WHEN: Running again over unchanged source data
	second, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})
	require.NoError(t, err)

	// THEN: Nothing new is created; record counts are stable
	assert.Equal(t, 0, second.Results[0].Applied.Created)
	absences, overtimes, divergences := f.outcomes.Counts()
	assert.Equal(t, 1, absences)
	assert.Equal(t, 1, overtimes)
	assert.Equal(t, 0, divergences)
}

func TestRunManual_AllTeams(t *testing.T) {
	// GIVEN: Two teams with published slots on the date, one in draft
	f := newFixture()
	f.scheduleWork(10, 1, feb10)
	f.scheduleWork(20, 2, feb10)
	f.schedule.AddDraftSlot(reconcile.ScheduleSlot{
		TeamID: 30, Date: feb10, WorkerID: 3, State: reconcile.SlotWork,
	})

	// WHEN: Running for all teams
	report, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{
		ReferenceDate: feb10, AllTeams: true,
	})

	// THEN: Only the two published teams are processed
	require.NoError(t, err)
	assert.Equal(t, 2, report.ProcessedTeams)
	assert.Equal(t, 2, report.Successes)
}

func TestRunManual_FaultIsolation(t *testing.T) {
	// GIVEN: Three teams, with team 20's shift source failing
	f := newFixture()
	f.scheduleWork(10, 1, feb10)
	f.scheduleWork(20, 2, feb10)
	f.scheduleWork(30, 3, feb10)
	f.shifts.FailFor[20] = errors.New("telemetry backend down")

	// WHEN: Running for all teams
	report, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{
		ReferenceDate: feb10, AllTeams: true,
	})

	// THEN: The failing pair is recorded, the other two still commit
	require.NoError(t, err)
	assert.Equal(t, 2, report.Successes)
	assert.Equal(t, 1, report.Failures)

	var failed *batch.PairResult
	for i := range report.Results {
		if !report.Results[i].Success {
			failed = &report.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, 20, failed.TeamID)
	assert.Contains(t, failed.Error, "telemetry backend down")

	absences, _, _ := f.outcomes.Counts()
	assert.Equal(t, 2, absences)
}

func TestRunManual_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		in   batch.ManualRunInput
	}{
		{"missing date", batch.ManualRunInput{TeamID: 10}},
		{"neither team nor allTeams", batch.ManualRunInput{ReferenceDate: feb10}},
		{"both team and allTeams", batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10, AllTeams: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orch.RunManual(ctx, tc.in)
			require.Error(t, err)
			assert.True(t, reconcile.IsClientError(err))
		})
	}
}

func TestRunManual_Cancelled_ReturnsPartialReport(t *testing.T) {
	// GIVEN: A context cancelled before any pair is dispatched
	f := newFixture()
	f.scheduleWork(10, 1, feb10)
	f.scheduleWork(20, 2, feb10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// WHEN: Running for all teams
	report, err := f.orch.RunManual(ctx, batch.ManualRunInput{ReferenceDate: feb10, AllTeams: true})

	// THEN: No pair is processed and the report says so
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Contains(t, report.Message, "cancelled")
}

func TestRunManual_DivergenceRecordedWhenActualTeamUnpublished(t *testing.T) {
	// GIVEN: Worker 7 scheduled WORK for team 10 opens under team 99, which
	//        has no published schedule on the date
	f := newFixture()
	f.scheduleWork(10, 7, feb10)
	f.openShift(99, feb10, 7)

	// WHEN: Running for all teams (only team 10 resolves to a pair)
	report, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{
		ReferenceDate: feb10, AllTeams: true,
	})

	// THEN: Team 10's pair records the divergence itself; no absence exists
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProcessedTeams)

	_, ok := f.outcomes.Divergence(reconcile.DivergenceKey{
		WorkerID: 7, Date: feb10, ScheduledTeamID: 10, ActualTeamID: 99,
	})
	assert.True(t, ok, "divergence must be recorded by the scheduled team's pair")

	_, ok = f.outcomes.Absence(reconcile.AbsenceKey{WorkerID: 7, TeamID: 10, Date: feb10})
	assert.False(t, ok, "worker who opened elsewhere is not absent")
}

func TestRunManual_DivergenceDedupedWhenBothTeamsRun(t *testing.T) {
	// GIVEN: Both the scheduled and the actual team have published schedules,
	//        so both pairs see the same cross-team shift
	f := newFixture()
	f.scheduleWork(10, 7, feb10)
	f.scheduleWork(99, 8, feb10)
	f.openShift(99, feb10, 7, 8)

	// WHEN: Running for all teams, twice
	for i := 0; i < 2; i++ {
		_, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{
			ReferenceDate: feb10, AllTeams: true,
		})
		require.NoError(t, err)
	}

	// THEN: The natural key collapses both emissions into one record
	_, _, divergences := f.outcomes.Counts()
	assert.Equal(t, 1, divergences)
	_, ok := f.outcomes.Divergence(reconcile.DivergenceKey{
		WorkerID: 7, Date: feb10, ScheduledTeamID: 10, ActualTeamID: 99,
	})
	assert.True(t, ok)
}

// =============================================================================
// RERUN PROTECTION
// =============================================================================

func TestRerun_NeverTouchesDecidedRecords(t *testing.T) {
	// GIVEN: A first run produced an overtime, which was then approved
	f := newFixture()
	f.openShift(10, feb10, 5)

	_, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})
	require.NoError(t, err)

	key := reconcile.OvertimeKey{WorkerID: 5, TeamID: 10, Date: feb10, Kind: reconcile.UnscheduledExtra}
	f.outcomes.SetOvertimeStatus(key, reconcile.StatusApproved)

	// WHEN: Rerunning the same pair
	report, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})
	require.NoError(t, err)

	// THEN: The approved record is skipped, not overwritten
	assert.Equal(t, 1, report.Results[0].Applied.Skipped)
	got, ok := f.outcomes.OvertimeByKey(key)
	require.True(t, ok)
	assert.Equal(t, reconcile.StatusApproved, got.Status)
}

func TestRerun_SkipsSuppressedPendingAbsence(t *testing.T) {
	// GIVEN: A pending absence carrying a justification type that suppresses it
	f := newFixture()
	f.scheduleWork(10, 2, feb10)
	f.catalog.AddType(reconcile.JustificationType{ID: 4, Name: "union leave", SuppressesAbsence: true})

	_, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})
	require.NoError(t, err)

	key := reconcile.AbsenceKey{WorkerID: 2, TeamID: 10, Date: feb10}
	typeID := 4
	f.outcomes.SetAbsenceStatus(key, reconcile.StatusPending, &typeID)

	// WHEN: Rerunning
	report, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})
	require.NoError(t, err)

	// THEN: The record is left untouched
	assert.Equal(t, 1, report.Results[0].Applied.Skipped)
	assert.Equal(t, 0, report.Results[0].Applied.Updated)
}

// =============================================================================
// FORCED RUNS
// =============================================================================

func TestRunForced_ExplicitRange(t *testing.T) {
	// GIVEN: Published slots on two of the three dates in the range
	f := newFixture()
	f.scheduleWork(10, 1, feb10)
	f.scheduleWork(10, 1, feb10.AddDays(2))

	// WHEN: Running over the full range
	report, err := f.orch.RunForced(context.Background(), batch.ForcedRunInput{
		StartDate: feb10, EndDate: feb10.AddDays(2),
	})

	// THEN: Only dates with published teams count; each pair succeeds
	require.NoError(t, err)
	assert.Equal(t, 2, report.DaysProcessed)
	assert.Equal(t, 2, report.Successes)
	require.NotNil(t, report.Period)
	assert.Equal(t, feb10, report.Period.Start)
}

func TestRunForced_HistoryDaysCountsBackFromToday(t *testing.T) {
	f := newFixture()
	f.orch.Now = func() time.Time { return feb10.Time().Add(12 * time.Hour) }
	f.scheduleWork(10, 1, feb10.AddDays(-1))

	report, err := f.orch.RunForced(context.Background(), batch.ForcedRunInput{HistoryDays: 3})

	require.NoError(t, err)
	require.NotNil(t, report.Period)
	assert.Equal(t, feb10.AddDays(-3), report.Period.Start)
	assert.Equal(t, feb10, report.Period.End)
	assert.Equal(t, 1, report.Successes)
}

func TestRunForced_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orch.RunForced(ctx, batch.ForcedRunInput{StartDate: feb10})
	require.Error(t, err, "endDate missing")

	_, err = f.orch.RunForced(ctx, batch.ForcedRunInput{StartDate: feb10, EndDate: feb10.AddDays(-1)})
	require.Error(t, err, "range inverted")
}

// =============================================================================
// DRY RUNS
// =============================================================================

func TestDryRun_ComputesIntentsWithoutWriting(t *testing.T) {
	// GIVEN: A pair with pending work
	f := newFixture()
	f.scheduleWork(10, 1, feb10)

	// WHEN: Dry-running it
	report, err := f.orch.DryRun(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})

	// THEN: The would-be intents are returned and nothing is persisted
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Len(t, report.Results[0].Intents, 1)
	assert.Equal(t, reconcile.IntentAbsence, report.Results[0].Intents[0].Kind)
	assert.Equal(t, reconcile.OpCreate, report.Results[0].Intents[0].Op)

	absences, overtimes, divergences := f.outcomes.Counts()
	assert.Zero(t, absences+overtimes+divergences)
}

// =============================================================================
// RUN HISTORY
// =============================================================================

func TestRuns_AreRecorded(t *testing.T) {
	f := newFixture()
	f.scheduleWork(10, 1, feb10)

	_, err := f.orch.RunManual(context.Background(), batch.ManualRunInput{ReferenceDate: feb10, TeamID: 10})
	require.NoError(t, err)

	records, err := f.runs.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, batch.ModeManual, records[0].Mode)
	assert.Equal(t, 1, records[0].Successes)
}
