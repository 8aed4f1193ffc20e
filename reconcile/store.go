/*
store.go - Write-side port: intents and the idempotent OutcomeStore

PURPOSE:
  The engine emits Intents; the OutcomeStore applies them under the idempotent
  write rule. Intents carry their natural key so the store can perform the
  existence check and the write as one atomic unit per key.

IDEMPOTENT WRITE RULE (per natural key):
  - no record exists            -> insert with status PENDING (created)
  - record exists, PENDING      -> update mutable fields (updated)
  - record exists, terminal     -> skip silently (skipped/unchanged)

  The store NEVER deletes outcome records and never touches a terminal one.
  A concurrent duplicate create degrades to the update/skip branch on the
  second writer; races are absorbed, not surfaced.
*/
package reconcile

import "context"

// =============================================================================
// INTENTS - Engine output, store input
// =============================================================================

type IntentKind string

const (
	IntentAbsence    IntentKind = "absence"
	IntentOvertime   IntentKind = "overtime"
	IntentDivergence IntentKind = "divergence"
)

type IntentOp string

const (
	OpCreate IntentOp = "create"
	OpUpdate IntentOp = "update"
	// OpSkip is emitted when the engine already knows the record is terminal
	// or must not change. The store counts it as unchanged without touching
	// storage.
	OpSkip IntentOp = "skip"
)

// Intent is one intended outcome write, tagged with its natural key.
// Exactly one of Absence/Overtime/Divergence is set, matching Kind.
type Intent struct {
	Kind IntentKind
	Op   IntentOp

	Absence    *Absence
	Overtime   *Overtime
	Divergence *ScheduleDivergence
}

// =============================================================================
// EXISTING OUTCOMES - Pre-read snapshot handed to the engine
// =============================================================================

// AbsenceState is what the engine needs to know about an existing absence:
// its status and, for a pending one, whether its justification suppresses it.
// JustificationTypeID is filled by the store; Suppressed is resolved against
// the JustificationCatalog by the orchestrator before the engine runs.
type AbsenceState struct {
	Status              OutcomeStatus
	JustificationTypeID *int
	Suppressed          bool
}

// ExistingOutcomes is the status snapshot of outcome records at the candidate
// keys of one (team, date) pair, read before the engine decides.
type ExistingOutcomes struct {
	Absences    map[AbsenceKey]AbsenceState
	Overtimes   map[OvertimeKey]OutcomeStatus
	Divergences map[DivergenceKey]bool
}

func NewExistingOutcomes() ExistingOutcomes {
	return ExistingOutcomes{
		Absences:    make(map[AbsenceKey]AbsenceState),
		Overtimes:   make(map[OvertimeKey]OutcomeStatus),
		Divergences: make(map[DivergenceKey]bool),
	}
}

// =============================================================================
// OUTCOME STORE - Idempotent persistence port
// =============================================================================

// Applied summarizes what one Apply call did.
type Applied struct {
	Created int
	Updated int
	Skipped int
}

func (a Applied) Add(b Applied) Applied {
	return Applied{
		Created: a.Created + b.Created,
		Updated: a.Updated + b.Updated,
		Skipped: a.Skipped + b.Skipped,
	}
}

// OutcomeStore persists outcome records idempotently.
type OutcomeStore interface {
	// Existing returns the status snapshot for every outcome record of the
	// given workers scoped to (team, date). Divergence keys are matched on
	// (worker, date) since the actual team may differ from teamID.
	Existing(ctx context.Context, teamID int, date RefDate, workerIDs []int) (ExistingOutcomes, error)

	// Apply executes the idempotent write rule for each intent. The
	// existence check and write are atomic per natural key; the whole call
	// commits as one unit per (team, date) pair.
	Apply(ctx context.Context, intents []Intent) (Applied, error)
}
