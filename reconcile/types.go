/*
Package reconcile provides the core shift reconciliation engine.

PURPOSE:
  This package contains the data contracts and the pure decision logic for
  comparing a published work schedule against what actually happened in the
  field. Given one team's schedule and shift data for one date, it derives
  absence, overtime and schedule-divergence outcomes as a list of write
  intents. It performs no I/O itself.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduleSlot:       One worker's published assignment for a team/date
  - ShiftRecord:        An actual opened (and possibly closed) field shift
  - Absence/Overtime/ScheduleDivergence: The outcome records this core owns
  - Natural keys:       The business keys that govern idempotent writes

DESIGN PRINCIPLES:
  1. Read-then-decide-then-write: the engine consumes a pre-read snapshot
  2. Precision: decimal.Decimal for worked hours, never float64
  3. Idempotence: every outcome is addressed by its natural key
  4. Ownership: outcome records are mutated only by this core and the
     approval/justification workflows, never by CRUD endpoints

SEE ALSO:
  - engine.go:  The classification algorithm
  - sources.go: Read-side port interfaces
  - store.go:   OutcomeStore write-side port
  - errors.go:  Error taxonomy
*/
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULE SLOT - Published plan input (immutable to this core)
// =============================================================================

// SlotState says whether the worker is planned to work or rest that date.
type SlotState string

const (
	SlotWork SlotState = "work"
	SlotOff  SlotState = "off"
)

// ScheduleSlot is one worker's published assignment for a team on a date.
// Sources must only ever surface slots belonging to PUBLISHED schedules;
// draft schedules are invisible to reconciliation.
type ScheduleSlot struct {
	TeamID        int
	Date          RefDate
	WorkerID      int
	State         SlotState
	PlannedStart  *time.Time
	RotationOrder *int
}

// =============================================================================
// SHIFT RECORD - Actual field event input (immutable to this core)
// =============================================================================

// RosterEntry is one worker's participation in an opened shift.
type RosterEntry struct {
	WorkerID int
	IsDriver bool
}

// ShiftRecord is an actual opened field work session with its roster.
type ShiftRecord struct {
	ID        string
	TeamID    int
	OpenedAt  time.Time
	ClosedAt  *time.Time
	VehicleID int
	Roster    []RosterEntry
}

// Date returns the reference date the shift belongs to.
func (s ShiftRecord) Date() RefDate { return DateOf(s.OpenedAt) }

// Hours returns the worked duration in hours. Open shifts fall back to the
// provided default shift length.
func (s ShiftRecord) Hours(defaultHours decimal.Decimal) decimal.Decimal {
	if s.ClosedAt == nil {
		return defaultHours
	}
	mins := s.ClosedAt.Sub(s.OpenedAt).Minutes()
	return decimal.NewFromFloat(mins).Div(decimal.NewFromInt(60)).Round(2)
}

// LatenessRecord is a still-open lateness that a later extra shift may
// compensate. Compensated records are excluded by the sources.
type LatenessRecord struct {
	WorkerID    int
	TeamID      int
	Date        RefDate
	Minutes     int
	Compensated bool
}

// =============================================================================
// JUSTIFICATION - External catalog input
// =============================================================================

// JustificationType classifies an absence justification and says whether it
// suppresses the absence entirely.
type JustificationType struct {
	ID                int
	Name              string
	SuppressesAbsence bool
}

// =============================================================================
// OUTCOME RECORDS - Owned and written by this core
// =============================================================================

// OutcomeStatus is the shared status vocabulary for absence and overtime
// records. PENDING is the only non-terminal state for either record kind.
type OutcomeStatus string

const (
	StatusPending   OutcomeStatus = "pending"
	StatusJustified OutcomeStatus = "justified" // absence only
	StatusDenied    OutcomeStatus = "denied"    // absence only
	StatusApproved  OutcomeStatus = "approved"  // overtime only
	StatusRejected  OutcomeStatus = "rejected"  // overtime only
)

// IsTerminal reports whether the status is immutable to the engine.
// Reruns must never overwrite a terminal record.
func (s OutcomeStatus) IsTerminal() bool { return s != StatusPending && s != "" }

// Absence records that a scheduled worker did not show up.
type Absence struct {
	ID                  string
	WorkerID            int
	TeamID              int
	ReferenceDate       RefDate
	Status              OutcomeStatus
	JustificationTypeID *int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (a Absence) Key() AbsenceKey {
	return AbsenceKey{WorkerID: a.WorkerID, TeamID: a.TeamID, Date: a.ReferenceDate}
}

// OvertimeKind classifies why a worker worked outside their schedule.
type OvertimeKind string

const (
	// OffDayWorked: the worker had an OFF slot for the date and opened anyway.
	OffDayWorked OvertimeKind = "off_day_worked"
	// UnscheduledExtra: the worker had no slot at all for the date.
	UnscheduledExtra OvertimeKind = "unscheduled_extra"
	// LateCompensated: the shift pays back a still-open lateness within the
	// lookback window.
	LateCompensated OvertimeKind = "late_compensated"
	// ShiftSwap: the worker's slot was exchanged with another worker who
	// reciprocally covered the original slot the same date.
	ShiftSwap OvertimeKind = "shift_swap"
)

// Overtime records work performed outside the published schedule.
type Overtime struct {
	ID            string
	WorkerID      int
	TeamID        int
	ReferenceDate RefDate
	Kind          OvertimeKind
	HoursWorked   decimal.Decimal
	Status        OutcomeStatus
	Notes         string
	DecidedBy     string
	DecidedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o Overtime) Key() OvertimeKey {
	return OvertimeKey{WorkerID: o.WorkerID, TeamID: o.TeamID, Date: o.ReferenceDate, Kind: o.Kind}
}

// ScheduleDivergence records that a worker worked under a different team than
// scheduled. It has no status lifecycle; it exists or it does not.
type ScheduleDivergence struct {
	ID              string
	WorkerID        int
	ScheduledTeamID int
	ActualTeamID    int
	ReferenceDate   RefDate
	CreatedAt       time.Time
}

func (d ScheduleDivergence) Key() DivergenceKey {
	return DivergenceKey{
		WorkerID:        d.WorkerID,
		Date:            d.ReferenceDate,
		ScheduledTeamID: d.ScheduledTeamID,
		ActualTeamID:    d.ActualTeamID,
	}
}

// =============================================================================
// NATURAL KEYS - Govern idempotent writes
// =============================================================================

type AbsenceKey struct {
	WorkerID int
	TeamID   int
	Date     RefDate
}

type OvertimeKey struct {
	WorkerID int
	TeamID   int
	Date     RefDate
	Kind     OvertimeKind
}

type DivergenceKey struct {
	WorkerID        int
	Date            RefDate
	ScheduledTeamID int
	ActualTeamID    int
}

// =============================================================================
// LISTING FILTERS - Read-only reporting surface
// =============================================================================

// OvertimeFilter selects overtime records for reporting.
// Zero values mean "no constraint"; Page/PageSize are validated upstream.
type OvertimeFilter struct {
	WorkerID  *int
	StartDate *RefDate
	EndDate   *RefDate
	Kind      *OvertimeKind
	Status    *OutcomeStatus
	Page      int
	PageSize  int
}

// AbsenceFilter selects absence records for reporting.
type AbsenceFilter struct {
	WorkerID  *int
	TeamID    *int
	StartDate *RefDate
	EndDate   *RefDate
	Status    *OutcomeStatus
	Page      int
	PageSize  int
}
