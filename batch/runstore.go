package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltgrid/shift-engine/reconcile"
)

// =============================================================================
// RUN RECORDS - Audit trail of reconciliation runs
// =============================================================================

type RunMode string

const (
	ModeManual RunMode = "manual"
	ModeForced RunMode = "forced"
)

// RunRecord is one completed reconciliation run, kept for audit and for the
// run-history endpoint.
type RunRecord struct {
	ID             string
	Mode           RunMode
	PeriodStart    reconcile.RefDate
	PeriodEnd      reconcile.RefDate
	ProcessedTeams int
	Successes      int
	Failures       int
	Message        string
	CompletedAt    time.Time
}

func NewRunRecord(mode RunMode, period reconcile.Period, report RunReport, at time.Time) RunRecord {
	return RunRecord{
		ID:             uuid.NewString(),
		Mode:           mode,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		ProcessedTeams: report.ProcessedTeams,
		Successes:      report.Successes,
		Failures:       report.Failures,
		Message:        report.Message,
		CompletedAt:    at,
	}
}

// RunStore persists run history.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// MemoryRuns is an in-memory RunStore for tests and database-less runs.
type MemoryRuns struct {
	mu   sync.RWMutex
	runs []RunRecord
}

func NewMemoryRuns() *MemoryRuns { return &MemoryRuns{} }

func (m *MemoryRuns) SaveRun(_ context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *MemoryRuns) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunRecord, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}
