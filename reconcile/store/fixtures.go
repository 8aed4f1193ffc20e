package store

import (
	"context"
	"sort"
	"sync"

	"github.com/voltgrid/shift-engine/reconcile"
)

// =============================================================================
// MEMORY SOURCES - Schedule, shift and catalog fixtures for tests/dev
// =============================================================================

// MemorySchedule is an in-memory ScheduleSlotSource. Only slots added with
// published=true are visible, mirroring the publication gate real adapters
// enforce in their queries.
type MemorySchedule struct {
	mu    sync.RWMutex
	slots []slotEntry

	// FailFor makes reads for a (team, date) pair fail, for fault isolation
	// tests. Keyed by team ID; zero value never fails.
	FailFor map[int]error
}

type slotEntry struct {
	slot      reconcile.ScheduleSlot
	published bool
}

func NewMemorySchedule() *MemorySchedule {
	return &MemorySchedule{FailFor: make(map[int]error)}
}

// AddSlot registers a slot belonging to a published schedule.
func (s *MemorySchedule) AddSlot(slot reconcile.ScheduleSlot) {
	s.addSlot(slot, true)
}

// AddDraftSlot registers a slot belonging to an unpublished schedule. It is
// never returned by any read.
func (s *MemorySchedule) AddDraftSlot(slot reconcile.ScheduleSlot) {
	s.addSlot(slot, false)
}

func (s *MemorySchedule) addSlot(slot reconcile.ScheduleSlot, published bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append(s.slots, slotEntry{slot: slot, published: published})
}

func (s *MemorySchedule) SlotsForTeam(_ context.Context, teamID int, date reconcile.RefDate) ([]reconcile.ScheduleSlot, error) {
	if err := s.FailFor[teamID]; err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []reconcile.ScheduleSlot
	for _, e := range s.slots {
		if e.published && e.slot.TeamID == teamID && e.slot.Date == date {
			out = append(out, e.slot)
		}
	}
	return out, nil
}

func (s *MemorySchedule) SlotForWorker(_ context.Context, workerID int, date reconcile.RefDate) (*reconcile.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.slots {
		if e.published && e.slot.WorkerID == workerID && e.slot.Date == date {
			slot := e.slot
			return &slot, nil
		}
	}
	return nil, nil
}

func (s *MemorySchedule) TeamsWithPublishedSchedule(_ context.Context, date reconcile.RefDate) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]bool)
	for _, e := range s.slots {
		if e.published && e.slot.Date == date {
			seen[e.slot.TeamID] = true
		}
	}
	teams := make([]int, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Ints(teams)
	return teams, nil
}

// MemoryShifts is an in-memory ShiftRecordSource.
type MemoryShifts struct {
	mu       sync.RWMutex
	shifts   []reconcile.ShiftRecord
	lateness []reconcile.LatenessRecord

	FailFor map[int]error
}

func NewMemoryShifts() *MemoryShifts {
	return &MemoryShifts{FailFor: make(map[int]error)}
}

func (s *MemoryShifts) AddShift(shift reconcile.ShiftRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts = append(s.shifts, shift)
}

func (s *MemoryShifts) AddLateness(late reconcile.LatenessRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lateness = append(s.lateness, late)
}

func (s *MemoryShifts) ShiftsForTeam(_ context.Context, teamID int, date reconcile.RefDate) ([]reconcile.ShiftRecord, error) {
	if err := s.FailFor[teamID]; err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []reconcile.ShiftRecord
	for _, shift := range s.shifts {
		if shift.TeamID == teamID && shift.Date() == date {
			out = append(out, shift)
		}
	}
	return out, nil
}

func (s *MemoryShifts) TeamOpenedBy(_ context.Context, workerID int, date reconcile.RefDate) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shifts {
		if shift.Date() != date {
			continue
		}
		for _, entry := range shift.Roster {
			if entry.WorkerID == workerID {
				return shift.TeamID, true, nil
			}
		}
	}
	return 0, false, nil
}

func (s *MemoryShifts) OpenLateness(_ context.Context, workerID int, from, to reconcile.RefDate) (*reconcile.LatenessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *reconcile.LatenessRecord
	for i := range s.lateness {
		late := s.lateness[i]
		if late.WorkerID != workerID || late.Compensated {
			continue
		}
		if late.Date.Before(from) || late.Date.After(to) {
			continue
		}
		if oldest == nil || late.Date.Before(oldest.Date) {
			oldest = &late
		}
	}
	return oldest, nil
}

// MemoryCatalog is an in-memory JustificationCatalog.
type MemoryCatalog struct {
	mu    sync.RWMutex
	types map[int]reconcile.JustificationType
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{types: make(map[int]reconcile.JustificationType)}
}

func (c *MemoryCatalog) AddType(t reconcile.JustificationType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[t.ID] = t
}

func (c *MemoryCatalog) SuppressesAbsence(_ context.Context, justificationTypeID int) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[justificationTypeID]
	if !ok {
		return false, nil
	}
	return t.SuppressesAbsence, nil
}
