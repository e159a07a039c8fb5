package workflow

import "time"

// Execution is one run of the flow for one tenant. It is the unit the
// execution store persists between steps.
type Execution struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"accountId"`
	Input      Input      `json:"input"`
	State      State      `json:"state"`
	Status     Status     `json:"status"`
	Record     Record     `json:"record"`
	ResumeAt   time.Time  `json:"resumeAt"`
	Deadline   time.Time  `json:"deadline"`
	LastError  string     `json:"lastError,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// NewExecution returns an execution ready to classify the day immediately.
func NewExecution(id string, in Input, now time.Time, timeout time.Duration) Execution {
	return Execution{
		ID:        id,
		AccountID: in.Tenant.AccountID,
		Input:     in,
		State:     StateClassifyDay,
		Status:    StatusRunning,
		Record:    Record{Tenant: in.Tenant},
		ResumeAt:  now,
		Deadline:  now.Add(timeout),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Due reports whether a running execution may take its next step at now.
func (e Execution) Due(now time.Time) bool {
	return e.Status == StatusRunning && !e.ResumeAt.After(now)
}

func (e Execution) Overdue(now time.Time) bool {
	return e.Status == StatusRunning && now.After(e.Deadline)
}

// OrphanedMeeting returns the id of a room that was created but never
// deleted, if any.
func (e Execution) OrphanedMeeting() (string, bool) {
	if e.Record.Meeting == nil || e.Record.DeleteResult != nil {
		return "", false
	}
	return e.Record.Meeting.ID, true
}

func (e Execution) Redacted() Execution {
	e.Input.Tenant = e.Input.Tenant.Redacted()
	e.Record = e.Record.Redacted()
	return e
}
