package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voltgrid/shift-engine/reconcile"
)

// =============================================================================
// UPSTREAM WRITES - Used by the producing features and by test seeding.
// The reconciliation core itself never calls these.
// =============================================================================

// ScheduleStatus mirrors the upstream scheduler's lifecycle. Reconciliation
// only ever sees published schedules.
type ScheduleStatus string

const (
	ScheduleDraft     ScheduleStatus = "draft"
	SchedulePublished ScheduleStatus = "published"
)

// SaveSchedule creates a schedule header and returns its ID.
func (s *Store) SaveSchedule(ctx context.Context, teamID int, status ScheduleStatus) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (id, team_id, status, created_at) VALUES (?, ?, ?, ?)`,
		id, teamID, string(status), time.Now().UTC().Format(time.RFC3339))
	return id, err
}

// PublishSchedule flips a schedule to published, making its slots visible to
// reconciliation.
func (s *Store) PublishSchedule(ctx context.Context, scheduleID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE schedules SET status = 'published' WHERE id = ?`, scheduleID)
	return err
}

// SaveSlot attaches a slot to a schedule.
func (s *Store) SaveSlot(ctx context.Context, scheduleID string, slot reconcile.ScheduleSlot) error {
	var plannedStart any
	if slot.PlannedStart != nil {
		plannedStart = slot.PlannedStart.UTC().Format(time.RFC3339)
	}
	var rotation any
	if slot.RotationOrder != nil {
		rotation = *slot.RotationOrder
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_slots (id, schedule_id, team_id, date, worker_id, state, planned_start, rotation_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), scheduleID, slot.TeamID, slot.Date.String(),
		slot.WorkerID, string(slot.State), plannedStart, rotation)
	return err
}

// SaveShift persists a shift record with its roster.
func (s *Store) SaveShift(ctx context.Context, shift reconcile.ShiftRecord) error {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	var closedAt any
	if shift.ClosedAt != nil {
		closedAt = shift.ClosedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_records (id, team_id, opened_at, closed_at, vehicle_id, date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		shift.ID, shift.TeamID, shift.OpenedAt.UTC().Format(time.RFC3339),
		closedAt, shift.VehicleID, shift.Date().String())
	if err != nil {
		return err
	}
	for _, entry := range shift.Roster {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO shift_roster (shift_id, worker_id, is_driver) VALUES (?, ?, ?)`,
			shift.ID, entry.WorkerID, entry.IsDriver); err != nil {
			return err
		}
	}
	return nil
}

// SaveLateness persists a lateness record.
func (s *Store) SaveLateness(ctx context.Context, late reconcile.LatenessRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lateness_records (id, worker_id, team_id, date, minutes, compensated)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), late.WorkerID, late.TeamID, late.Date.String(),
		late.Minutes, late.Compensated)
	return err
}

// SaveJustificationType persists a justification type.
func (s *Store) SaveJustificationType(ctx context.Context, t reconcile.JustificationType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO justification_types (id, name, suppresses_absence)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, suppresses_absence = excluded.suppresses_absence`,
		t.ID, t.Name, t.SuppressesAbsence)
	return err
}

// JustifyAbsence is the external justification action: it attaches a
// justification to a pending absence and moves it to a terminal status.
// Used by the (out of scope) absence workflow and by tests.
func (s *Store) JustifyAbsence(ctx context.Context, key reconcile.AbsenceKey, justificationTypeID int, status reconcile.OutcomeStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE absences SET status = ?, justification_type_id = ?, updated_at = ?
		WHERE worker_id = ? AND team_id = ? AND reference_date = ? AND status = 'pending'`,
		string(status), justificationTypeID, time.Now().UTC().Format(time.RFC3339),
		key.WorkerID, key.TeamID, key.Date.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
