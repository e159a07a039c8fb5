package executions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/casualchat/internal/db"
	"github.com/example/casualchat/internal/workflow"
	"github.com/pkg/errors"
)

var ErrNotFound = db.ErrNotFound

const columns = `id,account_id,input,state,status,record,resume_at,deadline,last_error,created_at,updated_at,finished_at`

// Repo persists executions in Postgres. A row is written after every step,
// which is what makes the workflow's waits survive a restart.
type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, e workflow.Execution) error {
	input, err := json.Marshal(e.Input)
	if err != nil {
		return errors.Wrap(err, "marshal input")
	}
	record, err := json.Marshal(e.Record)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	err = r.db.Exec(ctx, `
INSERT INTO executions(id,account_id,input,state,status,record,resume_at,deadline,created_at,updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.AccountID, input, string(e.State), string(e.Status), record, e.ResumeAt, e.Deadline, e.CreatedAt, e.UpdatedAt,
	)
	return errors.Wrapf(err, "create execution %s", e.ID)
}

func (r *Repo) Get(ctx context.Context, id string) (workflow.Execution, error) {
	e, err := scanExecution(r.db.QueryRow(ctx, `SELECT `+columns+` FROM executions WHERE id=$1`, id))
	if err != nil {
		return workflow.Execution{}, db.WrapNotFound(err)
	}
	return e, nil
}

type Filter struct {
	AccountID string
	Status    workflow.Status
	Limit     int
}

func (r *Repo) List(ctx context.Context, f Filter) ([]workflow.Execution, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT `+columns+`
FROM executions
WHERE ($1 = '' OR account_id = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3`, f.AccountID, string(f.Status), f.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "list executions")
	}
	return collect(rows)
}

// ClaimDue leases up to limit running executions whose resume time has
// passed. Rows leased by another runner are skipped.
func (r *Repo) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]workflow.Execution, error) {
	rows, err := r.db.Query(ctx, `
UPDATE executions SET lease_until = $2
WHERE id IN (
	SELECT id FROM executions
	WHERE status = 'running'
	  AND resume_at <= $1
	  AND (lease_until IS NULL OR lease_until < $1)
	ORDER BY resume_at ASC
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
RETURNING `+columns, now, now.Add(lease), limit)
	if err != nil {
		return nil, errors.Wrap(err, "claim due executions")
	}
	return collect(rows)
}

// Save writes the outcome of a step. The lease is kept while the execution
// can continue right away and released once it suspends or finishes.
func (r *Repo) Save(ctx context.Context, e workflow.Execution) error {
	record, err := json.Marshal(e.Record)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	var lastErr *string
	if e.LastError != "" {
		lastErr = &e.LastError
	}
	keepLease := e.Due(e.UpdatedAt)
	err = r.db.Exec(ctx, `
UPDATE executions
SET state=$2, status=$3, record=$4, resume_at=$5, last_error=$6, updated_at=$7, finished_at=$8,
    lease_until = CASE WHEN $9 THEN lease_until ELSE NULL END
WHERE id=$1`,
		e.ID, string(e.State), string(e.Status), record, e.ResumeAt, lastErr, e.UpdatedAt, e.FinishedAt, keepLease,
	)
	return errors.Wrapf(err, "save execution %s", e.ID)
}

// ExpireOverdue fails every unleased running execution past its deadline
// and returns them so the caller can report possibly orphaned rooms.
func (r *Repo) ExpireOverdue(ctx context.Context, now time.Time) ([]workflow.Execution, error) {
	rows, err := r.db.Query(ctx, `
UPDATE executions
SET status='timed_out', last_error='execution exceeded its deadline', finished_at=$1, updated_at=$1, lease_until=NULL
WHERE status='running'
  AND deadline < $1
  AND (lease_until IS NULL OR lease_until < $1)
RETURNING `+columns, now)
	if err != nil {
		return nil, errors.Wrap(err, "expire overdue executions")
	}
	return collect(rows)
}

func collect(rows db.Rows) ([]workflow.Execution, error) {
	defer rows.Close()
	var out []workflow.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExecution(row db.Row) (workflow.Execution, error) {
	var (
		e             workflow.Execution
		input, record []byte
		state, status string
		lastErr       *string
	)
	if err := row.Scan(&e.ID, &e.AccountID, &input, &state, &status, &record, &e.ResumeAt, &e.Deadline,
		&lastErr, &e.CreatedAt, &e.UpdatedAt, &e.FinishedAt); err != nil {
		return workflow.Execution{}, err
	}
	if err := json.Unmarshal(input, &e.Input); err != nil {
		return workflow.Execution{}, errors.Wrapf(err, "execution %s: decode input", e.ID)
	}
	if err := json.Unmarshal(record, &e.Record); err != nil {
		return workflow.Execution{}, errors.Wrapf(err, "execution %s: decode record", e.ID)
	}
	e.State = workflow.State(state)
	e.Status = workflow.Status(status)
	if lastErr != nil {
		e.LastError = *lastErr
	}
	return e, nil
}
