package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltgrid/shift-engine/reconcile"
)

// =============================================================================
// LISTING QUERIES - Read-only reporting surface
// =============================================================================

// ListOvertime returns one page of overtime records matching the filter,
// newest date first, plus the total match count.
func (s *Store) ListOvertime(ctx context.Context, f reconcile.OvertimeFilter) ([]reconcile.Overtime, int, error) {
	var (
		where []string
		args  []any
	)
	if f.WorkerID != nil {
		where = append(where, "worker_id = ?")
		args = append(args, *f.WorkerID)
	}
	if f.StartDate != nil {
		where = append(where, "reference_date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		where = append(where, "reference_date <= ?")
		args = append(args, f.EndDate.String())
	}
	if f.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*f.Kind))
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM overtimes"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+overtimeColumns+` FROM overtimes`+clause+`
		ORDER BY reference_date DESC, worker_id
		LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []reconcile.Overtime
	for rows.Next() {
		o, err := scanOvertime(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *o)
	}
	return records, total, rows.Err()
}

// ListAbsences returns one page of absence records matching the filter,
// newest date first, plus the total match count.
func (s *Store) ListAbsences(ctx context.Context, f reconcile.AbsenceFilter) ([]reconcile.Absence, int, error) {
	var (
		where []string
		args  []any
	)
	if f.WorkerID != nil {
		where = append(where, "worker_id = ?")
		args = append(args, *f.WorkerID)
	}
	if f.TeamID != nil {
		where = append(where, "team_id = ?")
		args = append(args, *f.TeamID)
	}
	if f.StartDate != nil {
		where = append(where, "reference_date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		where = append(where, "reference_date <= ?")
		args = append(args, f.EndDate.String())
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM absences"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, team_id, reference_date, status, justification_type_id, created_at, updated_at
		FROM absences`+clause+`
		ORDER BY reference_date DESC, worker_id
		LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []reconcile.Absence
	for rows.Next() {
		var (
			a             reconcile.Absence
			dateStr       string
			status        string
			justification sql.NullInt64
			created       string
			updated       string
		)
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.TeamID, &dateStr, &status,
			&justification, &created, &updated); err != nil {
			return nil, 0, err
		}
		if a.ReferenceDate, err = reconcile.ParseRefDate(dateStr); err != nil {
			return nil, 0, err
		}
		a.Status = reconcile.OutcomeStatus(status)
		if justification.Valid {
			id := int(justification.Int64)
			a.JustificationTypeID = &id
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		records = append(records, a)
	}
	return records, total, rows.Err()
}

// =============================================================================
// SUMMARY - Per-worker aggregates over a period
// =============================================================================

// SummaryRow aggregates one worker's outcomes within a team over a period.
type SummaryRow struct {
	TeamID          int
	WorkerID        int
	Absences        int
	PendingAbsences int
	OvertimeCount   int
	OvertimeHours   decimal.Decimal
}

// Summary aggregates absences and overtime per (team, worker) over a period,
// feeding the consolidated reporting views.
func (s *Store) Summary(ctx context.Context, period reconcile.Period) ([]SummaryRow, error) {
	byKey := make(map[[2]int]*SummaryRow)
	keyOrder := [][2]int{}

	get := func(teamID, workerID int) *SummaryRow {
		k := [2]int{teamID, workerID}
		if row, ok := byKey[k]; ok {
			return row
		}
		row := &SummaryRow{TeamID: teamID, WorkerID: workerID}
		byKey[k] = row
		keyOrder = append(keyOrder, k)
		return row
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, worker_id,
		       COUNT(*),
		       SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END)
		FROM absences
		WHERE reference_date >= ? AND reference_date <= ?
		GROUP BY team_id, worker_id
		ORDER BY team_id, worker_id`,
		period.Start.String(), period.End.String())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var teamID, workerID, total, pending int
		if err := rows.Scan(&teamID, &workerID, &total, &pending); err != nil {
			rows.Close()
			return nil, err
		}
		row := get(teamID, workerID)
		row.Absences = total
		row.PendingAbsences = pending
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT team_id, worker_id, hours_worked
		FROM overtimes
		WHERE reference_date >= ? AND reference_date <= ?
		ORDER BY team_id, worker_id`,
		period.Start.String(), period.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			teamID, workerID int
			hours            string
		)
		if err := rows.Scan(&teamID, &workerID, &hours); err != nil {
			return nil, err
		}
		h, err := decimal.NewFromString(hours)
		if err != nil {
			return nil, err
		}
		row := get(teamID, workerID)
		row.OvertimeCount++
		row.OvertimeHours = row.OvertimeHours.Add(h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]SummaryRow, 0, len(keyOrder))
	for _, k := range keyOrder {
		out = append(out, *byKey[k])
	}
	return out, nil
}
