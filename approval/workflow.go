/*
Package approval implements the overtime approval state machine.

PURPOSE:
  Overtime records are born PENDING from the reconciliation engine and leave
  that state exactly once, through this workflow:

      PENDING --approve--> APPROVED (terminal)
      PENDING --reject---> REJECTED (terminal)

  No transition exists out of a terminal state. Once decided, a record is
  immutable to the engine as well: reruns skip it.

CONCURRENCY:
  The transition is delegated to the repository as a conditional write
  ("update ... where status = pending"). Two racing decisions resolve to one
  winner; the loser gets an InvalidStateError carrying the current status.

SEE ALSO:
  - reconcile/errors.go: InvalidStateError
  - store/sqlite:        production repository
  - reconcile/store:     in-memory repository for tests
*/
package approval

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/voltgrid/shift-engine/reconcile"
)

// MaxNotesLength bounds decision notes, counted in characters, not bytes.
const MaxNotesLength = 1000

// Action is what the approver asked for.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Decision carries one approval or rejection. Actor and time come from the
// calling boundary (the audit collaborator), not from this package.
type Decision struct {
	Action  Action
	Notes   string
	ActorID string
	At      time.Time
}

// Validate rejects malformed decisions before any repository call.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionApprove, ActionReject:
	default:
		return &reconcile.ValidationError{Field: "action", Reason: `must be "approve" or "reject"`}
	}
	if utf8.RuneCountInString(d.Notes) > MaxNotesLength {
		return &reconcile.ValidationError{
			Field:  "notes",
			Reason: fmt.Sprintf("exceeds %d characters", MaxNotesLength),
		}
	}
	return nil
}

func (d Decision) status() reconcile.OutcomeStatus {
	if d.Action == ActionApprove {
		return reconcile.StatusApproved
	}
	return reconcile.StatusRejected
}

// OvertimeRepository is the persistence port for decisions.
type OvertimeRepository interface {
	GetOvertime(ctx context.Context, id string) (*reconcile.Overtime, error)

	// DecideOvertime transitions the record only if it is still pending,
	// atomically. Returns false (and no error) when the record exists but
	// is no longer pending.
	DecideOvertime(ctx context.Context, id string, status reconcile.OutcomeStatus, notes, actor string, at time.Time) (bool, error)
}

// Workflow mutates overtime status. It is the only writer of terminal
// overtime states in the system.
type Workflow struct {
	Repo OvertimeRepository
}

func NewWorkflow(repo OvertimeRepository) *Workflow {
	return &Workflow{Repo: repo}
}

// Decide applies the decision to a pending overtime record and returns the
// updated record. A non-pending record yields an InvalidStateError and no
// mutation.
func (w *Workflow) Decide(ctx context.Context, overtimeID string, d Decision) (*reconcile.Overtime, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}

	ok, err := w.Repo.DecideOvertime(ctx, overtimeID, d.status(), d.Notes, d.ActorID, d.At)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := w.Repo.GetOvertime(ctx, overtimeID)
		if err != nil {
			return nil, err
		}
		return nil, &reconcile.InvalidStateError{OvertimeID: overtimeID, Current: current.Status}
	}

	return w.Repo.GetOvertime(ctx, overtimeID)
}
