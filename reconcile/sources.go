/*
sources.go - Read-side port interfaces

PURPOSE:
  Defines the boundary between the reconciliation core and the systems that
  produce its inputs: the schedule store, the shift store and the absence
  justification catalog. The core depends only on these interfaces; SQLite
  adapters live in store/sqlite and in-memory fixtures in reconcile/store.

PUBLICATION GATING:
  ScheduleSlotSource implementations must only ever return slots belonging to
  schedules whose status is PUBLISHED. Draft schedules do not exist as far as
  reconciliation is concerned. The gate lives in the source query, not in the
  engine, so it cannot be forgotten per call site.
*/
package reconcile

import "context"

// ScheduleSlotSource reads published schedule entries.
type ScheduleSlotSource interface {
	// SlotsForTeam returns the published slots for a team on a date.
	SlotsForTeam(ctx context.Context, teamID int, date RefDate) ([]ScheduleSlot, error)

	// SlotForWorker returns the worker's own published slot for a date,
	// whichever team it belongs to. Nil means no slot at all.
	SlotForWorker(ctx context.Context, workerID int, date RefDate) (*ScheduleSlot, error)

	// TeamsWithPublishedSchedule lists every team that has at least one
	// published slot on the date.
	TeamsWithPublishedSchedule(ctx context.Context, date RefDate) ([]int, error)
}

// ShiftRecordSource reads actual opened/closed shift events.
type ShiftRecordSource interface {
	// ShiftsForTeam returns the shifts opened under a team on a date,
	// including their full roster.
	ShiftsForTeam(ctx context.Context, teamID int, date RefDate) ([]ShiftRecord, error)

	// TeamOpenedBy returns the team a worker actually joined on a date.
	// ok is false when the worker opened no shift anywhere that date.
	TeamOpenedBy(ctx context.Context, workerID int, date RefDate) (teamID int, ok bool, err error)

	// OpenLateness returns the worker's oldest uncompensated lateness with
	// a date in [from, to], or nil when there is none.
	OpenLateness(ctx context.Context, workerID int, from, to RefDate) (*LatenessRecord, error)
}

// JustificationCatalog looks up absence-justification types.
type JustificationCatalog interface {
	// SuppressesAbsence reports whether the justification type makes the
	// absence moot. Unknown IDs are not an error; they don't suppress.
	SuppressesAbsence(ctx context.Context, justificationTypeID int) (bool, error)
}
