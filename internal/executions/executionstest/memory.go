// Package executionstest provides an in-memory execution store with the same
// claiming and expiry rules as the Postgres repo.
package executionstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/casualchat/internal/executions"
	"github.com/example/casualchat/internal/workflow"
	"github.com/pkg/errors"
)

type Memory struct {
	mu     sync.Mutex
	rows   map[string]workflow.Execution
	leases map[string]time.Time

	// CreateErr, when set for an account id, fails Create for that tenant.
	CreateErr map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		rows:      map[string]workflow.Execution{},
		leases:    map[string]time.Time{},
		CreateErr: map[string]error{},
	}
}

func (m *Memory) Create(_ context.Context, e workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CreateErr[e.AccountID]; err != nil {
		return err
	}
	if _, ok := m.rows[e.ID]; ok {
		return errors.Errorf("execution %s already exists", e.ID)
	}
	m.rows[e.ID] = e
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (workflow.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return workflow.Execution{}, executions.ErrNotFound
	}
	return e, nil
}

func (m *Memory) List(_ context.Context, f executions.Filter) ([]workflow.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []workflow.Execution
	for _, e := range m.rows {
		if f.AccountID != "" && e.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]workflow.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []workflow.Execution
	for id, e := range m.rows {
		if !e.Due(now) {
			continue
		}
		if until, ok := m.leases[id]; ok && !until.Before(now) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ResumeAt.Before(due[j].ResumeAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, e := range due {
		m.leases[e.ID] = now.Add(lease)
	}
	return due, nil
}

func (m *Memory) Save(_ context.Context, e workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; !ok {
		return executions.ErrNotFound
	}
	m.rows[e.ID] = e
	if !e.Due(e.UpdatedAt) {
		delete(m.leases, e.ID)
	}
	return nil
}

func (m *Memory) ExpireOverdue(_ context.Context, now time.Time) ([]workflow.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []workflow.Execution
	for id, e := range m.rows {
		if !e.Overdue(now) {
			continue
		}
		if until, ok := m.leases[id]; ok && !until.Before(now) {
			continue
		}
		finished := now
		e.Status = workflow.StatusTimedOut
		e.LastError = "execution exceeded its deadline"
		e.FinishedAt = &finished
		e.UpdatedAt = now
		m.rows[id] = e
		delete(m.leases, id)
		out = append(out, e)
	}
	return out, nil
}

// Leased reports whether id currently holds a lease.
func (m *Memory) Leased(id string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.leases[id]
	return ok && !until.Before(now)
}

// Len returns the number of stored executions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
