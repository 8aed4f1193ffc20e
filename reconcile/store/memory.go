// Package store provides in-memory implementations of the reconciliation
// ports, used by tests and for running the server without a database file.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltgrid/shift-engine/reconcile"
)

// =============================================================================
// MEMORY OUTCOME STORE - Idempotent upsert semantics without a database
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	absences    map[reconcile.AbsenceKey]*reconcile.Absence
	overtimes   map[reconcile.OvertimeKey]*reconcile.Overtime
	divergences map[reconcile.DivergenceKey]*reconcile.ScheduleDivergence
	byID        map[string]*reconcile.Overtime
}

func NewMemory() *Memory {
	return &Memory{
		absences:    make(map[reconcile.AbsenceKey]*reconcile.Absence),
		overtimes:   make(map[reconcile.OvertimeKey]*reconcile.Overtime),
		divergences: make(map[reconcile.DivergenceKey]*reconcile.ScheduleDivergence),
		byID:        make(map[string]*reconcile.Overtime),
	}
}

func (m *Memory) Existing(_ context.Context, teamID int, date reconcile.RefDate, workerIDs []int) (reconcile.ExistingOutcomes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	workers := make(map[int]bool, len(workerIDs))
	for _, id := range workerIDs {
		workers[id] = true
	}

	out := reconcile.NewExistingOutcomes()
	for key, a := range m.absences {
		if key.TeamID == teamID && key.Date == date && workers[key.WorkerID] {
			out.Absences[key] = reconcile.AbsenceState{
				Status:              a.Status,
				JustificationTypeID: a.JustificationTypeID,
			}
		}
	}
	for key, o := range m.overtimes {
		if key.TeamID == teamID && key.Date == date && workers[key.WorkerID] {
			out.Overtimes[key] = o.Status
		}
	}
	for key := range m.divergences {
		if key.Date == date && workers[key.WorkerID] {
			out.Divergences[key] = true
		}
	}
	return out, nil
}

// Apply executes the idempotent write rule under a single lock, which gives
// the same atomicity per natural key that the SQLite adapter gets from its
// transaction.
func (m *Memory) Apply(_ context.Context, intents []reconcile.Intent) (reconcile.Applied, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var applied reconcile.Applied
	now := time.Now()

	for _, intent := range intents {
		if intent.Op == reconcile.OpSkip {
			applied.Skipped++
			continue
		}
		switch intent.Kind {
		case reconcile.IntentAbsence:
			applied = applied.Add(m.applyAbsence(intent.Absence, now))
		case reconcile.IntentOvertime:
			applied = applied.Add(m.applyOvertime(intent.Overtime, now))
		case reconcile.IntentDivergence:
			applied = applied.Add(m.applyDivergence(intent.Divergence, now))
		}
	}
	return applied, nil
}

func (m *Memory) applyAbsence(a *reconcile.Absence, now time.Time) reconcile.Applied {
	existing, ok := m.absences[a.Key()]
	if !ok {
		rec := *a
		rec.ID = uuid.NewString()
		rec.Status = reconcile.StatusPending
		rec.CreatedAt = now
		rec.UpdatedAt = now
		m.absences[rec.Key()] = &rec
		return reconcile.Applied{Created: 1}
	}
	if existing.Status.IsTerminal() {
		return reconcile.Applied{Skipped: 1}
	}
	existing.UpdatedAt = now
	return reconcile.Applied{Updated: 1}
}

func (m *Memory) applyOvertime(o *reconcile.Overtime, now time.Time) reconcile.Applied {
	existing, ok := m.overtimes[o.Key()]
	if !ok {
		rec := *o
		rec.ID = uuid.NewString()
		rec.Status = reconcile.StatusPending
		rec.CreatedAt = now
		rec.UpdatedAt = now
		m.overtimes[rec.Key()] = &rec
		m.byID[rec.ID] = &rec
		return reconcile.Applied{Created: 1}
	}
	if existing.Status.IsTerminal() {
		return reconcile.Applied{Skipped: 1}
	}
	existing.HoursWorked = o.HoursWorked
	existing.Notes = o.Notes
	existing.UpdatedAt = now
	return reconcile.Applied{Updated: 1}
}

func (m *Memory) applyDivergence(d *reconcile.ScheduleDivergence, now time.Time) reconcile.Applied {
	if _, ok := m.divergences[d.Key()]; ok {
		return reconcile.Applied{Skipped: 1}
	}
	rec := *d
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	m.divergences[rec.Key()] = &rec
	return reconcile.Applied{Created: 1}
}

// =============================================================================
// OVERTIME DECISIONS - Satisfies the approval workflow's repository port
// =============================================================================

func (m *Memory) GetOvertime(_ context.Context, id string) (*reconcile.Overtime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.byID[id]
	if !ok {
		return nil, reconcile.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// DecideOvertime is the compare-and-write: it only transitions a record that
// is still pending. Returns false when the record exists but is terminal.
func (m *Memory) DecideOvertime(_ context.Context, id string, status reconcile.OutcomeStatus, notes, actor string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byID[id]
	if !ok {
		return false, reconcile.ErrNotFound
	}
	if o.Status != reconcile.StatusPending {
		return false, nil
	}
	o.Status = status
	o.Notes = notes
	o.DecidedBy = actor
	o.DecidedAt = &at
	o.UpdatedAt = at
	return true, nil
}

// SetOvertimeStatus force-sets a status, bypassing the pending check.
// Test seeding only.
func (m *Memory) SetOvertimeStatus(key reconcile.OvertimeKey, status reconcile.OutcomeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.overtimes[key]; ok {
		o.Status = status
	}
}

// SetAbsenceStatus force-sets an absence status with an optional
// justification. Test seeding only.
func (m *Memory) SetAbsenceStatus(key reconcile.AbsenceKey, status reconcile.OutcomeStatus, justificationTypeID *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.absences[key]; ok {
		a.Status = status
		a.JustificationTypeID = justificationTypeID
	}
}

// =============================================================================
// INSPECTION HELPERS
// =============================================================================

// Counts returns total record counts, used by idempotence assertions.
func (m *Memory) Counts() (absences, overtimes, divergences int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.absences), len(m.overtimes), len(m.divergences)
}

func (m *Memory) Absence(key reconcile.AbsenceKey) (reconcile.Absence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.absences[key]; ok {
		return *a, true
	}
	return reconcile.Absence{}, false
}

func (m *Memory) OvertimeByKey(key reconcile.OvertimeKey) (reconcile.Overtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.overtimes[key]; ok {
		return *o, true
	}
	return reconcile.Overtime{}, false
}

func (m *Memory) Divergence(key reconcile.DivergenceKey) (reconcile.ScheduleDivergence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.divergences[key]; ok {
		return *d, true
	}
	return reconcile.ScheduleDivergence{}, false
}

// Overtimes returns every overtime record, unordered.
func (m *Memory) Overtimes() []reconcile.Overtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]reconcile.Overtime, 0, len(m.overtimes))
	for _, o := range m.overtimes {
		out = append(out, *o)
	}
	return out
}
