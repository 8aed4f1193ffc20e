/*
engine.go - Pure reconciliation decision logic

PURPOSE:
  Given one team's published schedule and its actual shift data for one date,
  compute the set of absence, overtime and divergence intents. The engine has
  no side effects beyond its input and output, which makes it trivially
  retryable and unit-testable in isolation: all reads happen before Compute is
  called and all writes happen after it returns.

ALGORITHM:
  1. scheduledToWork = workers with a WORK slot for this team/date
  2. actuallyOpened  = workers present in a shift roster for this team/date
  3. Absence:    scheduled, opened nowhere -> Absence(PENDING) intent
  4. Divergence: opened here, scheduled elsewhere -> Divergence(B, A) intent;
     scheduled here, opened elsewhere -> the same Divergence from this pair,
     so the record exists even when the actual team runs no reconciliation
  5. Overtime:   opened here without being scheduled here -> first matching
     rule wins: OFF slot -> OFF_DAY_WORKED; no slot -> UNSCHEDULED_EXTRA;
     open lateness in window -> LATE_COMPENSATED; reciprocal cover the same
     date -> SHIFT_SWAP. At most one kind per worker/date.
  6. Existing records steer the op: missing -> create, pending -> update,
     terminal -> skip. The engine never emits a write against a terminal key.

OUTPUT ORDER:
  Intents are emitted absences first, then divergences, then overtimes, each
  group ordered by worker ID, so reruns over identical input produce an
  identical intent list.
*/
package reconcile

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultLatenessLookbackDays bounds how far back a lateness can be and still
// be compensated by an extra shift.
const DefaultLatenessLookbackDays = 7

// DefaultShiftHours is credited for a shift that was never closed.
var DefaultShiftHours = decimal.NewFromInt(8)

// Engine computes reconciliation outcomes for one (team, date) pair.
type Engine struct {
	// LatenessLookbackDays overrides DefaultLatenessLookbackDays when > 0.
	LatenessLookbackDays int

	// ShiftHoursFallback overrides DefaultShiftHours when non-zero. Used for
	// shifts that are still open at reconciliation time.
	ShiftHoursFallback decimal.Decimal
}

// LookbackDays returns the effective lateness lookback window.
func (e *Engine) LookbackDays() int {
	if e.LatenessLookbackDays > 0 {
		return e.LatenessLookbackDays
	}
	return DefaultLatenessLookbackDays
}

func (e *Engine) fallbackHours() decimal.Decimal {
	if !e.ShiftHoursFallback.IsZero() {
		return e.ShiftHoursFallback
	}
	return DefaultShiftHours
}

// Input is the pre-read snapshot for one (team, date) pair. The orchestrator
// assembles it from the sources; the engine never performs I/O.
type Input struct {
	TeamID int
	Date   RefDate

	// Slots are the published slots for this team and date.
	Slots []ScheduleSlot

	// Shifts are the shift records opened under this team on this date.
	Shifts []ShiftRecord

	// OpenerSlots maps each roster worker to their own published slot for
	// the date, whichever team it belongs to. A missing entry means the
	// worker has no slot at all that date.
	OpenerSlots map[int]ScheduleSlot

	// OpenedElsewhere maps workers scheduled WORK for this team to the team
	// they actually opened under instead. Workers present here are not
	// absent; they diverged.
	OpenedElsewhere map[int]int

	// OpenLateness maps roster workers to their oldest uncompensated
	// lateness within the lookback window, when one exists.
	OpenLateness map[int]LatenessRecord

	// Existing is the status snapshot of outcome records at the candidate
	// natural keys, read before the decision.
	Existing ExistingOutcomes
}

// Compute derives the intent list for the pair. It is deterministic over its
// input and never returns a write against a terminal record.
func (e *Engine) Compute(in Input) ([]Intent, error) {
	if in.TeamID <= 0 {
		return nil, &ValidationError{Field: "teamId", Reason: "must be positive"}
	}
	if in.Date.IsZero() {
		return nil, &ValidationError{Field: "referenceDate", Reason: "missing"}
	}

	scheduledToWork := make(map[int]ScheduleSlot)
	for _, slot := range in.Slots {
		if slot.State == SlotWork {
			scheduledToWork[slot.WorkerID] = slot
		}
	}

	// First shift a worker appears in wins; a worker cannot meaningfully be
	// on two rosters of the same team on one date.
	opened := make(map[int]ShiftRecord)
	for _, shift := range in.Shifts {
		for _, entry := range shift.Roster {
			if _, seen := opened[entry.WorkerID]; !seen {
				opened[entry.WorkerID] = shift
			}
		}
	}

	var intents []Intent
	intents = append(intents, e.absenceIntents(in, scheduledToWork, opened)...)
	intents = append(intents, e.divergenceIntents(in, scheduledToWork, opened)...)
	intents = append(intents, e.overtimeIntents(in, scheduledToWork, opened)...)
	return intents, nil
}

// absenceIntents covers workers scheduled WORK who opened no shift anywhere.
func (e *Engine) absenceIntents(in Input, scheduled map[int]ScheduleSlot, opened map[int]ShiftRecord) []Intent {
	var intents []Intent
	for _, workerID := range sortedKeys(scheduled) {
		if _, ok := opened[workerID]; ok {
			continue
		}
		if _, ok := in.OpenedElsewhere[workerID]; ok {
			// Worked under another team: divergence, not absence.
			continue
		}

		absence := &Absence{
			WorkerID:      workerID,
			TeamID:        in.TeamID,
			ReferenceDate: in.Date,
			Status:        StatusPending,
		}
		op := OpCreate
		if state, ok := in.Existing.Absences[absence.Key()]; ok {
			switch {
			case state.Status.IsTerminal():
				op = OpSkip
			case state.Suppressed:
				// A pending absence whose justification suppresses it is
				// left untouched rather than refreshed.
				op = OpSkip
			default:
				op = OpUpdate
			}
		}
		intents = append(intents, Intent{Kind: IntentAbsence, Op: op, Absence: absence})
	}
	return intents
}

// divergenceIntents covers both views of a cross-team shift: roster workers
// scheduled WORK for another team, and this team's scheduled workers who
// opened under another team. The natural key dedupes the double emission when
// both teams' pairs run; when the actual team has no published schedule, the
// scheduled team's pair is the only one that can record the divergence.
func (e *Engine) divergenceIntents(in Input, scheduled map[int]ScheduleSlot, opened map[int]ShiftRecord) []Intent {
	var intents []Intent
	for _, workerID := range sortedKeys(opened) {
		slot, ok := in.OpenerSlots[workerID]
		if !ok || slot.State != SlotWork || slot.TeamID == in.TeamID {
			continue
		}
		intents = append(intents, e.divergenceIntent(in, workerID, slot.TeamID, in.TeamID))
	}
	for _, workerID := range sortedKeys(in.OpenedElsewhere) {
		intents = append(intents, e.divergenceIntent(in, workerID, in.TeamID, in.OpenedElsewhere[workerID]))
	}
	return intents
}

func (e *Engine) divergenceIntent(in Input, workerID, scheduledTeam, actualTeam int) Intent {
	div := &ScheduleDivergence{
		WorkerID:        workerID,
		ScheduledTeamID: scheduledTeam,
		ActualTeamID:    actualTeam,
		ReferenceDate:   in.Date,
	}
	op := OpCreate
	if in.Existing.Divergences[div.Key()] {
		op = OpSkip
	}
	return Intent{Kind: IntentDivergence, Op: op, Divergence: div}
}

// overtimeIntents classifies roster workers who were not scheduled to work
// this team. Rule order is the tie-break; at most one kind per worker/date.
func (e *Engine) overtimeIntents(in Input, scheduled map[int]ScheduleSlot, opened map[int]ShiftRecord) []Intent {
	var intents []Intent
	for _, workerID := range sortedKeys(opened) {
		if _, ok := scheduled[workerID]; ok {
			continue
		}

		kind, notes, ok := e.classify(in, workerID)
		if !ok {
			continue
		}

		shift := opened[workerID]
		overtime := &Overtime{
			WorkerID:      workerID,
			TeamID:        in.TeamID,
			ReferenceDate: in.Date,
			Kind:          kind,
			HoursWorked:   shift.Hours(e.fallbackHours()),
			Status:        StatusPending,
			Notes:         notes,
		}
		op := OpCreate
		if status, ok := in.Existing.Overtimes[overtime.Key()]; ok {
			if status.IsTerminal() {
				op = OpSkip
			} else {
				op = OpUpdate
			}
		}
		intents = append(intents, Intent{Kind: IntentOvertime, Op: op, Overtime: overtime})
	}
	return intents
}

// classify applies the overtime rules in order. ok is false when no rule
// matches (a plain divergence with no lateness or swap involved).
func (e *Engine) classify(in Input, workerID int) (OvertimeKind, string, bool) {
	slot, hasSlot := in.OpenerSlots[workerID]

	// (a) OFF slot worked anyway.
	if hasSlot && slot.State == SlotOff {
		return OffDayWorked, fmt.Sprintf("worked scheduled off day for team %d", in.TeamID), true
	}

	// (b) No slot at all.
	if !hasSlot {
		return UnscheduledExtra, "no published slot on this date", true
	}

	// (c) Compensating a still-open lateness within the lookback window.
	if late, ok := in.OpenLateness[workerID]; ok {
		return LateCompensated,
			fmt.Sprintf("compensates %d min lateness of %s", late.Minutes, late.Date), true
	}

	// (d) Reciprocal swap: this worker was scheduled for team B; someone
	// scheduled WORK here opened under B the same date.
	if slot.State == SlotWork && slot.TeamID != in.TeamID {
		for _, actualTeam := range in.OpenedElsewhere {
			if actualTeam == slot.TeamID {
				return ShiftSwap,
					fmt.Sprintf("swapped slots with team %d", slot.TeamID), true
			}
		}
	}

	return "", "", false
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
