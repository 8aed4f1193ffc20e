/*
Package sqlite provides the SQLite-backed implementation of the
reconciliation ports.

PURPOSE:
  Implements every persistence interface the core depends on: the read-side
  sources (ScheduleSlotSource, ShiftRecordSource, JustificationCatalog), the
  idempotent OutcomeStore, the approval workflow's overtime repository, the
  run-history store and the reporting/listing queries. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

PUBLICATION GATING:
  Slot queries join through the schedules table and filter on
  status = 'published'. Draft schedules are invisible to every read, so the
  engine can never see them.

IDEMPOTENCY:
  The natural keys are enforced with UNIQUE indexes:
    absences(worker_id, team_id, reference_date)
    overtimes(worker_id, team_id, reference_date, kind)
    divergences(worker_id, reference_date, scheduled_team_id, actual_team_id)
  Apply runs one transaction per call and resolves each intent with
  insert-or-ignore followed by a status-guarded update, so a concurrent
  duplicate degrades to the update/skip branch instead of an error.

TERMINAL RECORDS:
  Every UPDATE on an outcome record is guarded by status = 'pending'.
  There is no code path that modifies an approved, rejected, justified or
  denied record, and no DELETE on outcome tables at all.

WAL MODE:
  The database is opened with WAL so concurrent pair commits from the worker
  pool don't serialize readers behind writers.

SEE ALSO:
  - reconcile/store.go:   OutcomeStore contract and write rule
  - reconcile/sources.go: read-side contracts
  - reconcile/store:      in-memory implementations for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/voltgrid/shift-engine/batch"
	"github.com/voltgrid/shift-engine/reconcile"
)

// Store implements all reconciliation storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a store backed by the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own private empty
		// database, so concurrent pair workers would see missing tables.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Published plans. Only rows with status='published' feed reconciliation.
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		team_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedule_slots (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES schedules(id),
		team_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		worker_id INTEGER NOT NULL,
		state TEXT NOT NULL,
		planned_start TEXT,
		rotation_order INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_slots_team_date
		ON schedule_slots(team_id, date);
	CREATE INDEX IF NOT EXISTS idx_slots_worker_date
		ON schedule_slots(worker_id, date);

	-- Actual field events.
	CREATE TABLE IF NOT EXISTS shift_records (
		id TEXT PRIMARY KEY,
		team_id INTEGER NOT NULL,
		opened_at TEXT NOT NULL,
		closed_at TEXT,
		vehicle_id INTEGER NOT NULL DEFAULT 0,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_team_date
		ON shift_records(team_id, date);

	CREATE TABLE IF NOT EXISTS shift_roster (
		shift_id TEXT NOT NULL REFERENCES shift_records(id),
		worker_id INTEGER NOT NULL,
		is_driver BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (shift_id, worker_id)
	);

	CREATE INDEX IF NOT EXISTS idx_roster_worker
		ON shift_roster(worker_id);

	CREATE TABLE IF NOT EXISTS lateness_records (
		id TEXT PRIMARY KEY,
		worker_id INTEGER NOT NULL,
		team_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		minutes INTEGER NOT NULL,
		compensated BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_lateness_worker_date
		ON lateness_records(worker_id, date);

	CREATE TABLE IF NOT EXISTS justification_types (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		suppresses_absence BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Outcome records. Natural keys enforced by UNIQUE indexes; never deleted.
	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		worker_id INTEGER NOT NULL,
		team_id INTEGER NOT NULL,
		reference_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		justification_type_id INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_absences_key
		ON absences(worker_id, team_id, reference_date);
	CREATE INDEX IF NOT EXISTS idx_absences_team_date
		ON absences(team_id, reference_date);

	CREATE TABLE IF NOT EXISTS overtimes (
		id TEXT PRIMARY KEY,
		worker_id INTEGER NOT NULL,
		team_id INTEGER NOT NULL,
		reference_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		hours_worked TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT NOT NULL DEFAULT '',
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_overtimes_key
		ON overtimes(worker_id, team_id, reference_date, kind);
	CREATE INDEX IF NOT EXISTS idx_overtimes_status
		ON overtimes(status);

	CREATE TABLE IF NOT EXISTS divergences (
		id TEXT PRIMARY KEY,
		worker_id INTEGER NOT NULL,
		scheduled_team_id INTEGER NOT NULL,
		actual_team_id INTEGER NOT NULL,
		reference_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_divergences_key
		ON divergences(worker_id, reference_date, scheduled_team_id, actual_team_id);

	-- Run history.
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		processed_teams INTEGER NOT NULL,
		successes INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_completed
		ON reconciliation_runs(completed_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEDULE SLOT SOURCE
// =============================================================================

const slotColumns = `sl.team_id, sl.date, sl.worker_id, sl.state, sl.planned_start, sl.rotation_order`

func (s *Store) SlotsForTeam(ctx context.Context, teamID int, date reconcile.RefDate) ([]reconcile.ScheduleSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots sl
		JOIN schedules sc ON sc.id = sl.schedule_id
		WHERE sl.team_id = ? AND sl.date = ? AND sc.status = 'published'
		ORDER BY sl.worker_id`,
		teamID, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (s *Store) SlotForWorker(ctx context.Context, workerID int, date reconcile.RefDate) (*reconcile.ScheduleSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots sl
		JOIN schedules sc ON sc.id = sl.schedule_id
		WHERE sl.worker_id = ? AND sl.date = ? AND sc.status = 'published'
		LIMIT 1`,
		workerID, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots, err := scanSlots(rows)
	if err != nil || len(slots) == 0 {
		return nil, err
	}
	return &slots[0], nil
}

func (s *Store) TeamsWithPublishedSchedule(ctx context.Context, date reconcile.RefDate) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT sl.team_id
		FROM schedule_slots sl
		JOIN schedules sc ON sc.id = sl.schedule_id
		WHERE sl.date = ? AND sc.status = 'published'
		ORDER BY sl.team_id`,
		date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		teams = append(teams, id)
	}
	return teams, rows.Err()
}

func scanSlots(rows *sql.Rows) ([]reconcile.ScheduleSlot, error) {
	var slots []reconcile.ScheduleSlot
	for rows.Next() {
		var (
			slot         reconcile.ScheduleSlot
			dateStr      string
			state        string
			plannedStart sql.NullString
			rotation     sql.NullInt64
		)
		if err := rows.Scan(&slot.TeamID, &dateStr, &slot.WorkerID, &state, &plannedStart, &rotation); err != nil {
			return nil, err
		}
		date, err := reconcile.ParseRefDate(dateStr)
		if err != nil {
			return nil, err
		}
		slot.Date = date
		slot.State = reconcile.SlotState(state)
		if plannedStart.Valid {
			if t, err := time.Parse(time.RFC3339, plannedStart.String); err == nil {
				slot.PlannedStart = &t
			}
		}
		if rotation.Valid {
			order := int(rotation.Int64)
			slot.RotationOrder = &order
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// =============================================================================
// SHIFT RECORD SOURCE
// =============================================================================

func (s *Store) ShiftsForTeam(ctx context.Context, teamID int, date reconcile.RefDate) ([]reconcile.ShiftRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, opened_at, closed_at, vehicle_id
		FROM shift_records
		WHERE team_id = ? AND date = ?
		ORDER BY opened_at`,
		teamID, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []reconcile.ShiftRecord
	for rows.Next() {
		var (
			shift    reconcile.ShiftRecord
			openedAt string
			closedAt sql.NullString
		)
		if err := rows.Scan(&shift.ID, &shift.TeamID, &openedAt, &closedAt, &shift.VehicleID); err != nil {
			return nil, err
		}
		if shift.OpenedAt, err = time.Parse(time.RFC3339, openedAt); err != nil {
			return nil, err
		}
		if closedAt.Valid {
			t, err := time.Parse(time.RFC3339, closedAt.String)
			if err != nil {
				return nil, err
			}
			shift.ClosedAt = &t
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range shifts {
		if shifts[i].Roster, err = s.rosterFor(ctx, shifts[i].ID); err != nil {
			return nil, err
		}
	}
	return shifts, nil
}

func (s *Store) rosterFor(ctx context.Context, shiftID string) ([]reconcile.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT worker_id, is_driver FROM shift_roster
		WHERE shift_id = ? ORDER BY worker_id`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []reconcile.RosterEntry
	for rows.Next() {
		var entry reconcile.RosterEntry
		if err := rows.Scan(&entry.WorkerID, &entry.IsDriver); err != nil {
			return nil, err
		}
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

func (s *Store) TeamOpenedBy(ctx context.Context, workerID int, date reconcile.RefDate) (int, bool, error) {
	var teamID int
	err := s.db.QueryRowContext(ctx, `
		SELECT sr.team_id
		FROM shift_records sr
		JOIN shift_roster r ON r.shift_id = sr.id
		WHERE r.worker_id = ? AND sr.date = ?
		LIMIT 1`,
		workerID, date.String()).Scan(&teamID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return teamID, true, nil
}

func (s *Store) OpenLateness(ctx context.Context, workerID int, from, to reconcile.RefDate) (*reconcile.LatenessRecord, error) {
	var (
		late    reconcile.LatenessRecord
		dateStr string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT worker_id, team_id, date, minutes, compensated
		FROM lateness_records
		WHERE worker_id = ? AND compensated = FALSE AND date >= ? AND date <= ?
		ORDER BY date
		LIMIT 1`,
		workerID, from.String(), to.String()).
		Scan(&late.WorkerID, &late.TeamID, &dateStr, &late.Minutes, &late.Compensated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if late.Date, err = reconcile.ParseRefDate(dateStr); err != nil {
		return nil, err
	}
	return &late, nil
}

// =============================================================================
// JUSTIFICATION CATALOG
// =============================================================================

func (s *Store) SuppressesAbsence(ctx context.Context, justificationTypeID int) (bool, error) {
	var suppresses bool
	err := s.db.QueryRowContext(ctx, `
		SELECT suppresses_absence FROM justification_types WHERE id = ?`,
		justificationTypeID).Scan(&suppresses)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return suppresses, nil
}

// =============================================================================
// OUTCOME STORE
// =============================================================================

func (s *Store) Existing(ctx context.Context, teamID int, date reconcile.RefDate, workerIDs []int) (reconcile.ExistingOutcomes, error) {
	out := reconcile.NewExistingOutcomes()
	if len(workerIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(workerIDs)), ",")
	args := make([]any, 0, len(workerIDs)+2)
	args = append(args, teamID, date.String())
	for _, id := range workerIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT worker_id, status, justification_type_id
		FROM absences
		WHERE team_id = ? AND reference_date = ? AND worker_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var (
			workerID      int
			status        string
			justification sql.NullInt64
		)
		if err := rows.Scan(&workerID, &status, &justification); err != nil {
			rows.Close()
			return out, err
		}
		state := reconcile.AbsenceState{Status: reconcile.OutcomeStatus(status)}
		if justification.Valid {
			id := int(justification.Int64)
			state.JustificationTypeID = &id
		}
		out.Absences[reconcile.AbsenceKey{WorkerID: workerID, TeamID: teamID, Date: date}] = state
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT worker_id, kind, status
		FROM overtimes
		WHERE team_id = ? AND reference_date = ? AND worker_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var (
			workerID     int
			kind, status string
		)
		if err := rows.Scan(&workerID, &kind, &status); err != nil {
			rows.Close()
			return out, err
		}
		key := reconcile.OvertimeKey{
			WorkerID: workerID, TeamID: teamID, Date: date,
			Kind: reconcile.OvertimeKind(kind),
		}
		out.Overtimes[key] = reconcile.OutcomeStatus(status)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	// Divergences are keyed on (worker, date) only; the scheduled team may
	// differ from teamID.
	divArgs := make([]any, 0, len(workerIDs)+1)
	divArgs = append(divArgs, date.String())
	for _, id := range workerIDs {
		divArgs = append(divArgs, id)
	}
	rows, err = s.db.QueryContext(ctx, `
		SELECT worker_id, scheduled_team_id, actual_team_id
		FROM divergences
		WHERE reference_date = ? AND worker_id IN (`+placeholders+`)`, divArgs...)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var workerID, scheduledTeam, actualTeam int
		if err := rows.Scan(&workerID, &scheduledTeam, &actualTeam); err != nil {
			return out, err
		}
		out.Divergences[reconcile.DivergenceKey{
			WorkerID: workerID, Date: date,
			ScheduledTeamID: scheduledTeam, ActualTeamID: actualTeam,
		}] = true
	}
	return out, rows.Err()
}

// Apply executes the idempotent write rule inside one transaction. Each
// intent resolves with insert-or-ignore plus a status-guarded update, so a
// concurrent writer racing on the same natural key is absorbed.
func (s *Store) Apply(ctx context.Context, intents []reconcile.Intent) (reconcile.Applied, error) {
	var applied reconcile.Applied

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return applied, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, intent := range intents {
		if intent.Op == reconcile.OpSkip {
			applied.Skipped++
			continue
		}
		var one reconcile.Applied
		switch intent.Kind {
		case reconcile.IntentAbsence:
			one, err = applyAbsence(ctx, tx, intent.Absence, now)
		case reconcile.IntentOvertime:
			one, err = applyOvertime(ctx, tx, intent.Overtime, now)
		case reconcile.IntentDivergence:
			one, err = applyDivergence(ctx, tx, intent.Divergence, now)
		default:
			err = fmt.Errorf("unknown intent kind %q", intent.Kind)
		}
		if err != nil {
			return reconcile.Applied{}, err
		}
		applied = applied.Add(one)
	}

	if err := tx.Commit(); err != nil {
		return reconcile.Applied{}, err
	}
	return applied, nil
}

func applyAbsence(ctx context.Context, tx *sql.Tx, a *reconcile.Absence, now string) (reconcile.Applied, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO absences (id, worker_id, team_id, reference_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)
		ON CONFLICT(worker_id, team_id, reference_date) DO NOTHING`,
		uuid.NewString(), a.WorkerID, a.TeamID, a.ReferenceDate.String(), now, now)
	if err != nil {
		return reconcile.Applied{}, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return reconcile.Applied{Created: 1}, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE absences SET updated_at = ?
		WHERE worker_id = ? AND team_id = ? AND reference_date = ? AND status = 'pending'`,
		now, a.WorkerID, a.TeamID, a.ReferenceDate.String())
	if err != nil {
		return reconcile.Applied{}, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return reconcile.Applied{Updated: 1}, nil
	}
	return reconcile.Applied{Skipped: 1}, nil
}

func applyOvertime(ctx context.Context, tx *sql.Tx, o *reconcile.Overtime, now string) (reconcile.Applied, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO overtimes (id, worker_id, team_id, reference_date, kind, hours_worked, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?)
		ON CONFLICT(worker_id, team_id, reference_date, kind) DO NOTHING`,
		uuid.NewString(), o.WorkerID, o.TeamID, o.ReferenceDate.String(),
		string(o.Kind), o.HoursWorked.String(), o.Notes, now, now)
	if err != nil {
		return reconcile.Applied{}, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return reconcile.Applied{Created: 1}, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE overtimes SET hours_worked = ?, notes = ?, updated_at = ?
		WHERE worker_id = ? AND team_id = ? AND reference_date = ? AND kind = ? AND status = 'pending'`,
		o.HoursWorked.String(), o.Notes, now,
		o.WorkerID, o.TeamID, o.ReferenceDate.String(), string(o.Kind))
	if err != nil {
		return reconcile.Applied{}, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return reconcile.Applied{Updated: 1}, nil
	}
	return reconcile.Applied{Skipped: 1}, nil
}

func applyDivergence(ctx context.Context, tx *sql.Tx, d *reconcile.ScheduleDivergence, now string) (reconcile.Applied, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO divergences (id, worker_id, scheduled_team_id, actual_team_id, reference_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id, reference_date, scheduled_team_id, actual_team_id) DO NOTHING`,
		uuid.NewString(), d.WorkerID, d.ScheduledTeamID, d.ActualTeamID,
		d.ReferenceDate.String(), now)
	if err != nil {
		return reconcile.Applied{}, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return reconcile.Applied{Created: 1}, nil
	}
	return reconcile.Applied{Skipped: 1}, nil
}

// =============================================================================
// OVERTIME DECISIONS (approval workflow repository)
// =============================================================================

const overtimeColumns = `id, worker_id, team_id, reference_date, kind, hours_worked, status, notes, decided_by, decided_at, created_at, updated_at`

func (s *Store) GetOvertime(ctx context.Context, id string) (*reconcile.Overtime, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+overtimeColumns+` FROM overtimes WHERE id = ?`, id)
	o, err := scanOvertime(row.Scan)
	if err == sql.ErrNoRows {
		return nil, reconcile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DecideOvertime is the compare-and-write behind the approval workflow. The
// status guard makes the transition atomic: zero rows affected means the
// record was no longer pending (or doesn't exist).
func (s *Store) DecideOvertime(ctx context.Context, id string, status reconcile.OutcomeStatus, notes, actor string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE overtimes
		SET status = ?, notes = ?, decided_by = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), notes, actor,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanOvertime(scan func(...any) error) (*reconcile.Overtime, error) {
	var (
		o         reconcile.Overtime
		dateStr   string
		kind      string
		hours     string
		status    string
		decidedAt sql.NullString
		createdAt string
		updatedAt string
	)
	err := scan(&o.ID, &o.WorkerID, &o.TeamID, &dateStr, &kind, &hours,
		&status, &o.Notes, &o.DecidedBy, &decidedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if o.ReferenceDate, err = reconcile.ParseRefDate(dateStr); err != nil {
		return nil, err
	}
	o.Kind = reconcile.OvertimeKind(kind)
	if o.HoursWorked, err = decimal.NewFromString(hours); err != nil {
		return nil, err
	}
	o.Status = reconcile.OutcomeStatus(status)
	if decidedAt.Valid {
		if t, err := time.Parse(time.RFC3339, decidedAt.String); err == nil {
			o.DecidedAt = &t
		}
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &o, nil
}

// =============================================================================
// RUN STORE
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run batch.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs
			(id, mode, period_start, period_end, processed_teams, successes, failures, message, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), run.PeriodStart.String(), run.PeriodEnd.String(),
		run.ProcessedTeams, run.Successes, run.Failures, run.Message,
		run.CompletedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]batch.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, period_start, period_end, processed_teams, successes, failures, message, completed_at
		FROM reconciliation_runs
		ORDER BY completed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []batch.RunRecord
	for rows.Next() {
		var (
			run              batch.RunRecord
			mode             string
			start, end, done string
		)
		if err := rows.Scan(&run.ID, &mode, &start, &end,
			&run.ProcessedTeams, &run.Successes, &run.Failures, &run.Message, &done); err != nil {
			return nil, err
		}
		run.Mode = batch.RunMode(mode)
		if run.PeriodStart, err = reconcile.ParseRefDate(start); err != nil {
			return nil, err
		}
		if run.PeriodEnd, err = reconcile.ParseRefDate(end); err != nil {
			return nil, err
		}
		run.CompletedAt, _ = time.Parse(time.RFC3339, done)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
