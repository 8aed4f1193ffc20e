/*
Package batch drives reconciliation over (team, date) pairs.

PURPOSE:
  The orchestrator owns everything around the pure engine: input validation,
  resolving which pairs to process, reading the per-pair snapshot from the
  sources, invoking the engine, applying intents through the OutcomeStore,
  and aggregating per-pair results into a run report.

ENTRY POINTS:
  RunManual: one date, one team or every team with a published schedule
  RunForced: a date range (explicit, or N days back from today)
  DryRun:    engine only, returns would-be intents, no writes

FAULT ISOLATION:
  Each (team, date) pair is independent: its reads and writes do not overlap
  with any other pair. A failure (or panic) inside one pair is recorded as a
  failed result and the remaining pairs continue. Commits are per pair, never
  one transaction for the whole batch, so a failure in pair N cannot roll
  back pairs already committed.

CONCURRENCY:
  Pairs run on a bounded errgroup worker pool. Within one pair all reads
  complete before any write is attempted. Cancellation stops dispatching new
  pairs; in-flight pairs finish and the report returns partial results.
*/
package batch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voltgrid/shift-engine/reconcile"
)

// DefaultWorkers bounds concurrent pair processing.
const DefaultWorkers = 4

// DefaultHistoryDays is how far a forced run reaches back when the caller
// gives no explicit range.
const DefaultHistoryDays = 30

// Orchestrator fans reconciliation out over (team, date) pairs.
type Orchestrator struct {
	Schedule reconcile.ScheduleSlotSource
	Shifts   reconcile.ShiftRecordSource
	Catalog  reconcile.JustificationCatalog
	Outcomes reconcile.OutcomeStore
	Engine   *reconcile.Engine

	// Runs records run history. Optional; nil disables history.
	Runs RunStore

	// Workers bounds the pair pool. Zero means DefaultWorkers.
	Workers int

	// Now is injectable for tests. Nil means time.Now.
	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers
}

// =============================================================================
// INPUTS
// =============================================================================

// ManualRunInput selects one date and either a single team or all teams with
// a published schedule on that date.
type ManualRunInput struct {
	ReferenceDate reconcile.RefDate
	TeamID        int
	AllTeams      bool
}

func (in ManualRunInput) Validate() error {
	if in.ReferenceDate.IsZero() {
		return &reconcile.ValidationError{Field: "referenceDate", Reason: "missing"}
	}
	if in.AllTeams == (in.TeamID > 0) {
		return &reconcile.ValidationError{
			Field:  "teamId",
			Reason: "provide exactly one of teamId or allTeams=true",
		}
	}
	return nil
}

// ForcedRunInput selects a date range. Explicit dates take precedence over
// HistoryDays; HistoryDays counts back from today.
type ForcedRunInput struct {
	HistoryDays int
	StartDate   reconcile.RefDate
	EndDate     reconcile.RefDate
}

func (in ForcedRunInput) Validate() error {
	explicit := !in.StartDate.IsZero() || !in.EndDate.IsZero()
	if explicit {
		if in.StartDate.IsZero() || in.EndDate.IsZero() {
			return &reconcile.ValidationError{Field: "startDate", Reason: "startDate and endDate must be given together"}
		}
		if in.EndDate.Before(in.StartDate) {
			return &reconcile.ValidationError{Field: "endDate", Reason: "before startDate"}
		}
		return nil
	}
	if in.HistoryDays < 0 {
		return &reconcile.ValidationError{Field: "historyDays", Reason: "must be >= 1"}
	}
	return nil
}

// Resolve returns the concrete period the run covers.
func (in ForcedRunInput) Resolve(today reconcile.RefDate) reconcile.Period {
	if !in.StartDate.IsZero() {
		return reconcile.Period{Start: in.StartDate, End: in.EndDate}
	}
	days := in.HistoryDays
	if days == 0 {
		days = DefaultHistoryDays
	}
	return reconcile.Period{Start: today.AddDays(-days), End: today}
}

// =============================================================================
// RESULTS
// =============================================================================

// PairResult is the outcome of one (team, date) pair.
type PairResult struct {
	TeamID  int
	Date    reconcile.RefDate
	Success bool
	Message string
	Error   string
	Applied reconcile.Applied
}

// RunReport aggregates a whole run. Success reflects whether the run as a
// whole executed; individual pair outcomes live in Results.
type RunReport struct {
	Success        bool
	Message        string
	Period         *reconcile.Period
	DaysProcessed  int
	ProcessedTeams int
	Successes      int
	Failures       int
	Results        []PairResult
}

// DryRunPair is the preview for one pair: the intents that a real run would
// hand to the OutcomeStore.
type DryRunPair struct {
	TeamID  int
	Date    reconcile.RefDate
	Intents []reconcile.Intent
	Error   string
}

// DryRunReport previews pending work without committing anything.
type DryRunReport struct {
	Success bool
	Results []DryRunPair
}

type pair struct {
	teamID int
	date   reconcile.RefDate
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// RunManual reconciles a single date for one team or all teams.
func (o *Orchestrator) RunManual(ctx context.Context, in ManualRunInput) (RunReport, error) {
	if err := in.Validate(); err != nil {
		return RunReport{}, err
	}

	pairs, err := o.resolveManualPairs(ctx, in)
	if err != nil {
		return RunReport{}, err
	}

	report := o.process(ctx, pairs)
	report.DaysProcessed = 1
	o.recordRun(ctx, ModeManual, reconcile.Period{Start: in.ReferenceDate, End: in.ReferenceDate}, report)
	return report, nil
}

// RunForced reconciles every date in the resolved range for every team with
// a published schedule on that date.
func (o *Orchestrator) RunForced(ctx context.Context, in ForcedRunInput) (RunReport, error) {
	if err := in.Validate(); err != nil {
		return RunReport{}, err
	}

	period := in.Resolve(reconcile.DateOf(o.now()))
	log.Printf("[Orchestrator] Forced run over %s..%s", period.Start, period.End)

	var pairs []pair
	datesWithTeams := 0
	var enumFailures []PairResult
	for _, date := range reconcile.DateRange(period.Start, period.End) {
		if ctx.Err() != nil {
			break
		}
		teams, err := o.Schedule.TeamsWithPublishedSchedule(ctx, date)
		if err != nil {
			// Team enumeration for one date failing must not sink the
			// other dates.
			enumFailures = append(enumFailures, PairResult{
				Date:  date,
				Error: fmt.Sprintf("listing teams: %v", err),
			})
			continue
		}
		if len(teams) > 0 {
			datesWithTeams++
		}
		for _, teamID := range teams {
			pairs = append(pairs, pair{teamID: teamID, date: date})
		}
	}

	report := o.process(ctx, pairs)
	report.Results = append(enumFailures, report.Results...)
	report.Failures += len(enumFailures)
	sortResults(report.Results)
	report.Period = &period
	report.DaysProcessed = datesWithTeams
	o.recordRun(ctx, ModeForced, period, report)
	return report, nil
}

// DryRun computes intents for a manual-run selection without writing.
func (o *Orchestrator) DryRun(ctx context.Context, in ManualRunInput) (DryRunReport, error) {
	if err := in.Validate(); err != nil {
		return DryRunReport{}, err
	}

	pairs, err := o.resolveManualPairs(ctx, in)
	if err != nil {
		return DryRunReport{}, err
	}

	report := DryRunReport{Success: true}
	for _, p := range pairs {
		input, err := o.readPair(ctx, p)
		if err != nil {
			report.Results = append(report.Results, DryRunPair{
				TeamID: p.teamID, Date: p.date, Error: err.Error(),
			})
			continue
		}
		intents, err := o.Engine.Compute(input)
		if err != nil {
			report.Results = append(report.Results, DryRunPair{
				TeamID: p.teamID, Date: p.date, Error: err.Error(),
			})
			continue
		}
		report.Results = append(report.Results, DryRunPair{
			TeamID: p.teamID, Date: p.date, Intents: intents,
		})
	}
	return report, nil
}

func (o *Orchestrator) resolveManualPairs(ctx context.Context, in ManualRunInput) ([]pair, error) {
	if !in.AllTeams {
		return []pair{{teamID: in.TeamID, date: in.ReferenceDate}}, nil
	}
	teams, err := o.Schedule.TeamsWithPublishedSchedule(ctx, in.ReferenceDate)
	if err != nil {
		return nil, fmt.Errorf("%w: listing teams for %s: %v",
			reconcile.ErrSourceUnavailable, in.ReferenceDate, err)
	}
	pairs := make([]pair, 0, len(teams))
	for _, teamID := range teams {
		pairs = append(pairs, pair{teamID: teamID, date: in.ReferenceDate})
	}
	return pairs, nil
}

// =============================================================================
// PAIR PROCESSING
// =============================================================================

// process runs the pairs on a bounded pool. Each worker writes its own slot
// of the result slice, so the final ordering is by (date, team) regardless
// of completion order.
func (o *Orchestrator) process(ctx context.Context, pairs []pair) RunReport {
	results := make([]PairResult, len(pairs))
	dispatched := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())

	for i, p := range pairs {
		if ctx.Err() != nil {
			// Abandoned: in-flight pairs finish, the rest are not started.
			break
		}
		dispatched++
		i, p := i, p
		g.Go(func() error {
			results[i] = o.processPair(gctx, p)
			return nil
		})
	}
	g.Wait()

	report := RunReport{Success: true, Results: results[:dispatched]}
	for _, res := range report.Results {
		if res.Success {
			report.Successes++
		} else {
			report.Failures++
		}
	}
	report.ProcessedTeams = len(report.Results)
	if dispatched < len(pairs) {
		report.Message = fmt.Sprintf("cancelled after %d of %d pairs", dispatched, len(pairs))
	}
	return report
}

// processPair is the pair boundary: any error or panic inside it becomes a
// failed result, never an aborted run.
func (o *Orchestrator) processPair(ctx context.Context, p pair) (result PairResult) {
	result = PairResult{TeamID: p.teamID, Date: p.date}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Orchestrator] Panic reconciling team %d on %s: %v", p.teamID, p.date, r)
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	input, err := o.readPair(ctx, p)
	if err != nil {
		result.Error = (&reconcile.PairError{TeamID: p.teamID, Date: p.date, Err: err}).Error()
		return result
	}

	intents, err := o.Engine.Compute(input)
	if err != nil {
		result.Error = (&reconcile.PairError{TeamID: p.teamID, Date: p.date, Err: err}).Error()
		return result
	}

	applied, err := o.Outcomes.Apply(ctx, intents)
	if err != nil {
		result.Error = (&reconcile.PairError{TeamID: p.teamID, Date: p.date, Err: err}).Error()
		return result
	}

	result.Success = true
	result.Applied = applied
	result.Message = fmt.Sprintf("%d created, %d updated, %d unchanged",
		applied.Created, applied.Updated, applied.Skipped)
	return result
}

// readPair performs every read for the pair before any decision is made.
func (o *Orchestrator) readPair(ctx context.Context, p pair) (reconcile.Input, error) {
	in := reconcile.Input{
		TeamID:          p.teamID,
		Date:            p.date,
		OpenerSlots:     make(map[int]reconcile.ScheduleSlot),
		OpenedElsewhere: make(map[int]int),
		OpenLateness:    make(map[int]reconcile.LatenessRecord),
	}

	slots, err := o.Schedule.SlotsForTeam(ctx, p.teamID, p.date)
	if err != nil {
		return in, fmt.Errorf("schedule slots: %w", err)
	}
	in.Slots = slots

	shifts, err := o.Shifts.ShiftsForTeam(ctx, p.teamID, p.date)
	if err != nil {
		return in, fmt.Errorf("shift records: %w", err)
	}
	in.Shifts = shifts

	scheduled := make(map[int]bool)
	for _, slot := range slots {
		if slot.State == reconcile.SlotWork {
			scheduled[slot.WorkerID] = true
		}
	}
	rosterSeen := make(map[int]bool)
	for _, shift := range shifts {
		for _, entry := range shift.Roster {
			rosterSeen[entry.WorkerID] = true
		}
	}

	// Each opener's own slot for the date, whichever team owns it.
	lookbackFrom := p.date.AddDays(-o.Engine.LookbackDays())
	for workerID := range rosterSeen {
		slot, err := o.Schedule.SlotForWorker(ctx, workerID, p.date)
		if err != nil {
			return in, fmt.Errorf("slot for worker %d: %w", workerID, err)
		}
		if slot != nil {
			in.OpenerSlots[workerID] = *slot
		}
		if !scheduled[workerID] {
			late, err := o.Shifts.OpenLateness(ctx, workerID, lookbackFrom, p.date)
			if err != nil {
				return in, fmt.Errorf("lateness for worker %d: %w", workerID, err)
			}
			if late != nil {
				in.OpenLateness[workerID] = *late
			}
		}
	}

	// Scheduled workers who opened under some other team instead.
	for workerID := range scheduled {
		if rosterSeen[workerID] {
			continue
		}
		actualTeam, ok, err := o.Shifts.TeamOpenedBy(ctx, workerID, p.date)
		if err != nil {
			return in, fmt.Errorf("team opened by worker %d: %w", workerID, err)
		}
		if ok && actualTeam != p.teamID {
			in.OpenedElsewhere[workerID] = actualTeam
		}
	}

	// Outcome snapshot for every worker the pair touches.
	workerIDs := make([]int, 0, len(scheduled)+len(rosterSeen))
	for id := range scheduled {
		workerIDs = append(workerIDs, id)
	}
	for id := range rosterSeen {
		if !scheduled[id] {
			workerIDs = append(workerIDs, id)
		}
	}
	sort.Ints(workerIDs)

	existing, err := o.Outcomes.Existing(ctx, p.teamID, p.date, workerIDs)
	if err != nil {
		return in, fmt.Errorf("existing outcomes: %w", err)
	}

	// Resolve suppression for pending absences that carry a justification.
	for key, state := range existing.Absences {
		if state.Status != reconcile.StatusPending || state.JustificationTypeID == nil {
			continue
		}
		suppresses, err := o.Catalog.SuppressesAbsence(ctx, *state.JustificationTypeID)
		if err != nil {
			return in, fmt.Errorf("justification %d: %w", *state.JustificationTypeID, err)
		}
		state.Suppressed = suppresses
		existing.Absences[key] = state
	}
	in.Existing = existing

	return in, nil
}

func (o *Orchestrator) recordRun(ctx context.Context, mode RunMode, period reconcile.Period, report RunReport) {
	if o.Runs == nil {
		return
	}
	if err := o.Runs.SaveRun(ctx, NewRunRecord(mode, period, report, o.now())); err != nil {
		log.Printf("[Orchestrator] Failed to record run: %v", err)
	}
}

func sortResults(results []PairResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Date != results[j].Date {
			return results[i].Date.Before(results[j].Date)
		}
		return results[i].TeamID < results[j].TeamID
	})
}
