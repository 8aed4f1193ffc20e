/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"strconv"
	"time"

	"github.com/voltgrid/shift-engine/batch"
	"github.com/voltgrid/shift-engine/reconcile"
	"github.com/voltgrid/shift-engine/store/sqlite"
)

// =============================================================================
// RUN REQUESTS
// =============================================================================

// ManualRunRequest triggers reconciliation for one date.
type ManualRunRequest struct {
	ReferenceDate string `json:"referenceDate"`
	TeamID        *int   `json:"teamId,omitempty"`
	AllTeams      bool   `json:"allTeams,omitempty"`
}

// ForcedRunRequest triggers reconciliation over a date range.
type ForcedRunRequest struct {
	HistoryDays *int   `json:"historyDays,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

// DecisionRequest approves or rejects a pending overtime record.
type DecisionRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

// =============================================================================
// RUN RESPONSES
// =============================================================================

type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type PairResultDTO struct {
	TeamID  int    `json:"teamId"`
	Date    string `json:"date,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
}

type RunReportDTO struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message,omitempty"`
	Period         *PeriodDTO      `json:"period,omitempty"`
	DaysProcessed  int             `json:"daysProcessed,omitempty"`
	ProcessedTeams int             `json:"processedTeams"`
	Successes      int             `json:"successes"`
	Failures       int             `json:"failures"`
	Results        []PairResultDTO `json:"results"`
}

func toRunReportDTO(report batch.RunReport) RunReportDTO {
	dto := RunReportDTO{
		Success:        report.Success,
		Message:        report.Message,
		DaysProcessed:  report.DaysProcessed,
		ProcessedTeams: report.ProcessedTeams,
		Successes:      report.Successes,
		Failures:       report.Failures,
		Results:        make([]PairResultDTO, len(report.Results)),
	}
	if report.Period != nil {
		dto.Period = &PeriodDTO{Start: report.Period.Start.String(), End: report.Period.End.String()}
	}
	for i, res := range report.Results {
		dto.Results[i] = PairResultDTO{
			TeamID:  res.TeamID,
			Date:    res.Date.String(),
			Success: res.Success,
			Message: res.Message,
			Error:   res.Error,
			Created: res.Applied.Created,
			Updated: res.Applied.Updated,
			Skipped: res.Applied.Skipped,
		}
	}
	return dto
}

// IntentDTO is one would-be write in a dry-run preview.
type IntentDTO struct {
	Kind     string `json:"kind"`
	Op       string `json:"op"`
	WorkerID int    `json:"workerId"`
	TeamID   int    `json:"teamId"`
	Date     string `json:"date"`
	Detail   string `json:"detail,omitempty"`
}

type DryRunPairDTO struct {
	TeamID  int         `json:"teamId"`
	Date    string      `json:"date"`
	Error   string      `json:"error,omitempty"`
	Intents []IntentDTO `json:"intents"`
}

type DryRunReportDTO struct {
	Success bool            `json:"success"`
	Results []DryRunPairDTO `json:"results"`
}

func toDryRunDTO(report batch.DryRunReport) DryRunReportDTO {
	dto := DryRunReportDTO{Success: report.Success, Results: make([]DryRunPairDTO, len(report.Results))}
	for i, res := range report.Results {
		pair := DryRunPairDTO{
			TeamID:  res.TeamID,
			Date:    res.Date.String(),
			Error:   res.Error,
			Intents: make([]IntentDTO, 0, len(res.Intents)),
		}
		for _, intent := range res.Intents {
			pair.Intents = append(pair.Intents, toIntentDTO(intent))
		}
		dto.Results[i] = pair
	}
	return dto
}

func toIntentDTO(intent reconcile.Intent) IntentDTO {
	dto := IntentDTO{Kind: string(intent.Kind), Op: string(intent.Op)}
	switch intent.Kind {
	case reconcile.IntentAbsence:
		dto.WorkerID = intent.Absence.WorkerID
		dto.TeamID = intent.Absence.TeamID
		dto.Date = intent.Absence.ReferenceDate.String()
	case reconcile.IntentOvertime:
		dto.WorkerID = intent.Overtime.WorkerID
		dto.TeamID = intent.Overtime.TeamID
		dto.Date = intent.Overtime.ReferenceDate.String()
		dto.Detail = string(intent.Overtime.Kind) + ", " + intent.Overtime.HoursWorked.String() + "h"
	case reconcile.IntentDivergence:
		dto.WorkerID = intent.Divergence.WorkerID
		dto.TeamID = intent.Divergence.ActualTeamID
		dto.Date = intent.Divergence.ReferenceDate.String()
		dto.Detail = "scheduled team " + strconv.Itoa(intent.Divergence.ScheduledTeamID)
	}
	return dto
}

// =============================================================================
// RECORD DTOs
// =============================================================================

type OvertimeDTO struct {
	ID            string `json:"id"`
	WorkerID      int    `json:"workerId"`
	TeamID        int    `json:"teamId"`
	ReferenceDate string `json:"referenceDate"`
	Kind          string `json:"kind"`
	HoursWorked   string `json:"hoursWorked"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	DecidedBy     string `json:"decidedBy,omitempty"`
	DecidedAt     string `json:"decidedAt,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

func toOvertimeDTO(o reconcile.Overtime) OvertimeDTO {
	dto := OvertimeDTO{
		ID:            o.ID,
		WorkerID:      o.WorkerID,
		TeamID:        o.TeamID,
		ReferenceDate: o.ReferenceDate.String(),
		Kind:          string(o.Kind),
		HoursWorked:   o.HoursWorked.String(),
		Status:        string(o.Status),
		Notes:         o.Notes,
		DecidedBy:     o.DecidedBy,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
	if o.DecidedAt != nil {
		dto.DecidedAt = o.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

type AbsenceDTO struct {
	ID                  string `json:"id"`
	WorkerID            int    `json:"workerId"`
	TeamID              int    `json:"teamId"`
	ReferenceDate       string `json:"referenceDate"`
	Status              string `json:"status"`
	JustificationTypeID *int   `json:"justificationTypeId,omitempty"`
	CreatedAt           string `json:"createdAt,omitempty"`
}

func toAbsenceDTO(a reconcile.Absence) AbsenceDTO {
	return AbsenceDTO{
		ID:                  a.ID,
		WorkerID:            a.WorkerID,
		TeamID:              a.TeamID,
		ReferenceDate:       a.ReferenceDate.String(),
		Status:              string(a.Status),
		JustificationTypeID: a.JustificationTypeID,
		CreatedAt:           a.CreatedAt.Format(time.RFC3339),
	}
}

// ListResponse wraps one page of records.
type ListResponse struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type RunRecordDTO struct {
	ID             string `json:"id"`
	Mode           string `json:"mode"`
	PeriodStart    string `json:"periodStart"`
	PeriodEnd      string `json:"periodEnd"`
	ProcessedTeams int    `json:"processedTeams"`
	Successes      int    `json:"successes"`
	Failures       int    `json:"failures"`
	Message        string `json:"message,omitempty"`
	CompletedAt    string `json:"completedAt"`
}

func toRunRecordDTO(run batch.RunRecord) RunRecordDTO {
	return RunRecordDTO{
		ID:             run.ID,
		Mode:           string(run.Mode),
		PeriodStart:    run.PeriodStart.String(),
		PeriodEnd:      run.PeriodEnd.String(),
		ProcessedTeams: run.ProcessedTeams,
		Successes:      run.Successes,
		Failures:       run.Failures,
		Message:        run.Message,
		CompletedAt:    run.CompletedAt.Format(time.RFC3339),
	}
}

type SummaryRowDTO struct {
	TeamID          int    `json:"teamId"`
	WorkerID        int    `json:"workerId"`
	Absences        int    `json:"absences"`
	PendingAbsences int    `json:"pendingAbsences"`
	OvertimeCount   int    `json:"overtimeCount"`
	OvertimeHours   string `json:"overtimeHours"`
}

func toSummaryDTO(rows []sqlite.SummaryRow) []SummaryRowDTO {
	out := make([]SummaryRowDTO, len(rows))
	for i, row := range rows {
		out[i] = SummaryRowDTO{
			TeamID:          row.TeamID,
			WorkerID:        row.WorkerID,
			Absences:        row.Absences,
			PendingAbsences: row.PendingAbsences,
			OvertimeCount:   row.OvertimeCount,
			OvertimeHours:   row.OvertimeHours.String(),
		}
	}
	return out
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
