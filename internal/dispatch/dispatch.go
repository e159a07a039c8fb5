// Package dispatch fans one trigger out into one workflow execution per
// tenant listed in the account registry.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/example/casualchat/internal/registry"
	"github.com/example/casualchat/internal/workflow"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrEmptyRegistry = errors.New("no tenants found in the account registry")

type Registry interface {
	GetByPath(ctx context.Context, prefix string) ([]registry.Parameter, error)
}

// Starter persists a new execution so the runner picks it up.
type Starter interface {
	Create(ctx context.Context, e workflow.Execution) error
}

// Handle reports the start of one tenant's execution. Err is set when the
// tenant could not be started; ExecutionID is empty in that case.
type Handle struct {
	AccountID   string `json:"accountId"`
	ExecutionID string `json:"executionId,omitempty"`
	Err         error  `json:"-"`
}

type Dispatcher struct {
	Registry Registry
	Store    Starter
	Prefix   string
	// Timeout returns the execution ceiling for a meeting duration override
	// (0 for the default).
	Timeout func(durationMinutes int) time.Duration
	Now     func() time.Time
	NewID   func() string
	Log     logrus.FieldLogger
}

type tenant struct {
	id     string
	params map[string]registry.Parameter
}

// Dispatch reads the registry once and starts one execution per tenant.
// One tenant failing to start does not affect the others.
func (d *Dispatcher) Dispatch(ctx context.Context) ([]Handle, error) {
	tenants, err := d.tenants(ctx)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrEmptyRegistry
	}

	handles := make([]Handle, 0, len(tenants))
	for _, t := range tenants {
		handles = append(handles, d.start(ctx, t, 0))
	}

	started := 0
	for _, h := range handles {
		if h.Err == nil {
			started++
		}
	}
	d.log().WithFields(logrus.Fields{"tenants": len(handles), "started": started}).Info("dispatch done")
	return handles, nil
}

// StartOne starts a single tenant's execution, optionally overriding the
// meeting duration.
func (d *Dispatcher) StartOne(ctx context.Context, accountID string, durationMinutes int) (Handle, error) {
	tenants, err := d.tenants(ctx)
	if err != nil {
		return Handle{}, err
	}
	for _, t := range tenants {
		if t.id == accountID {
			h := d.start(ctx, t, durationMinutes)
			return h, h.Err
		}
	}
	return Handle{AccountID: accountID}, errors.Errorf("account %q not found under %s", accountID, d.Prefix)
}

// tenants groups the listing by the first path segment after the prefix,
// keeping first-seen order.
func (d *Dispatcher) tenants(ctx context.Context) ([]tenant, error) {
	params, err := d.Registry.GetByPath(ctx, d.Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "list account registry")
	}

	prefix := d.Prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []tenant
	index := map[string]int{}
	for _, p := range params {
		rest := strings.TrimPrefix(p.Name, prefix)
		if rest == p.Name {
			continue
		}
		id, sub, _ := strings.Cut(rest, "/")
		if id == "" {
			continue
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, tenant{id: id, params: map[string]registry.Parameter{}})
		}
		if sub != "" {
			out[i].params[sub] = p
		}
	}
	return out, nil
}

func (d *Dispatcher) start(ctx context.Context, t tenant, durationMinutes int) Handle {
	h := Handle{AccountID: t.id}
	log := d.log().WithField("account_id", t.id)

	tc, err := d.tenantContext(t, log)
	if err != nil {
		log.WithError(err).Error("tenant skipped")
		h.Err = err
		return h
	}

	id := d.newID()
	exec := workflow.NewExecution(id, workflow.Input{Tenant: tc, MeetingDurationMinutes: durationMinutes}, d.now(), d.timeout(durationMinutes))
	if err := d.Store.Create(ctx, exec); err != nil {
		h.Err = errors.Wrapf(err, "start execution for %s", t.id)
		log.WithError(err).Error("start execution failed")
		return h
	}

	h.ExecutionID = id
	log.WithField("execution_id", id).Info("execution started")
	return h
}

// tenantContext resolves the three sub-keys. A missing sub-key becomes "" and is
// logged; a value that cannot be unsealed fails the tenant.
func (d *Dispatcher) tenantContext(t tenant, log logrus.FieldLogger) (workflow.TenantContext, error) {
	tc := workflow.TenantContext{AccountID: t.id}
	for _, f := range []struct {
		sub string
		dst *string
	}{
		{registry.KeySlackChannel, &tc.SlackChannel},
		{registry.KeySlackWebhookURL, &tc.SlackWebhookURL},
		{registry.KeyZoomToken, &tc.ZoomToken},
	} {
		p, ok := t.params[f.sub]
		if !ok {
			log.WithField("key", f.sub).Warn("tenant sub-key missing; using empty value")
			continue
		}
		if p.Err != nil {
			return workflow.TenantContext{}, errors.Wrapf(p.Err, "tenant %s", t.id)
		}
		*f.dst = p.Value
	}
	return tc, nil
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Dispatcher) timeout(durationMinutes int) time.Duration {
	if d.Timeout == nil {
		return 65 * time.Minute
	}
	return d.Timeout(durationMinutes)
}

func (d *Dispatcher) newID() string {
	if d.NewID == nil {
		return uuid.NewString()
	}
	return d.NewID()
}

func (d *Dispatcher) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}
