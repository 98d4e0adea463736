// Package replay drains pending mutations against the remote API in enqueue
// order, with per-record retry/backoff, terminal-failure escalation and
// success/failure events on the bus.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"syncline/internal/apperrors"
	"syncline/internal/model"
)

type Queue interface {
	ListPending(ctx context.Context, tenantID string) ([]model.QueueRecord, error)
	TenantsWithPending(ctx context.Context) ([]string, error)
	MarkSynced(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	Remove(ctx context.Context, id uuid.UUID) error
	RecordAttempt(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
}

type Bus interface {
	Publish(evt model.Event)
}

type Connectivity interface {
	Online() bool
	Notify() <-chan struct{}
	ReportSuccess()
	ReportFailure()
}

type Config struct {
	DrainInterval  time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxTries       uint
	RetryCeiling   int
}

type Engine struct {
	l       *zap.Logger
	cfg     Config
	queue   Queue
	remote  RemoteClient
	monitor Connectivity
	bus     Bus

	locks  sync.Map
	paused atomic.Bool
}

func NewEngine(l *zap.Logger, cfg Config, queue Queue, remote RemoteClient, monitor Connectivity, bus Bus) *Engine {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 30 * time.Second
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}

	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	if cfg.MaxTries == 0 {
		cfg.MaxTries = 4
	}

	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = 20
	}

	return &Engine{
		l:       l,
		cfg:     cfg,
		queue:   queue,
		remote:  remote,
		monitor: monitor,
		bus:     bus,
	}
}

// Run drains on startup to resume after a crash, then on every
// connectivity-restored signal, with a periodic ticker as a fallback for
// missed signals.
func (e *Engine) Run(ctx context.Context) {
	e.DrainAll(ctx)

	ticker := time.NewTicker(e.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.l.Info("Replay engine stopped")

			return
		case <-e.monitor.Notify():
			e.DrainAll(ctx)
		case <-ticker.C:
			e.DrainAll(ctx)
		}
	}
}

// Pause halts all drain activity without losing queued state.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume lifts a pause; the next trigger starts draining again.
func (e *Engine) Resume() { e.paused.Store(false) }

// DrainAll runs one drain pass for every tenant with pending records.
// Independent tenants drain concurrently; the per-tenant lock keeps passes
// for one tenant from overlapping.
func (e *Engine) DrainAll(ctx context.Context) {
	if e.paused.Load() || !e.monitor.Online() {
		return
	}

	tenants, err := e.queue.TenantsWithPending(ctx)
	if err != nil {
		e.l.Error("Failed to list tenants with pending records", zap.Error(err))

		return
	}

	var wg sync.WaitGroup

	for _, tenantID := range tenants {
		wg.Add(1)

		go func(tenantID string) {
			defer wg.Done()

			if err := e.DrainTenant(ctx, tenantID); err != nil &&
				!errors.Is(err, apperrors.ErrDrainInProgress) &&
				!errors.Is(err, context.Canceled) {
				e.l.Warn("Drain pass ended early",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
			}
		}(tenantID)
	}

	wg.Wait()
}

// DrainTenant flushes the tenant's pending records strictly sequentially in
// timestamp order. Cancellation is checked between records, never mid-record.
func (e *Engine) DrainTenant(ctx context.Context, tenantID string) error {
	lock := e.lockFor(tenantID)
	if !lock.TryLock() {
		return apperrors.ErrDrainInProgress
	}

	defer lock.Unlock()

	records, err := e.queue.ListPending(ctx, tenantID)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.paused.Load() {
			return apperrors.ErrReplayPaused
		}

		if !e.monitor.Online() {
			return apperrors.ErrMonitorOffline
		}

		done, err := e.processRecord(ctx, rec)
		if err != nil {
			return err
		}

		if !done {
			// Transient failure below the retry ceiling: the record stays
			// pending and later records must not skip ahead of it.
			return nil
		}
	}

	return nil
}

// processRecord attempts one record. It returns done=true when the drain
// pass may move on to the next record, i.e. the record was synced or went
// terminal.
func (e *Engine) processRecord(ctx context.Context, rec model.QueueRecord) (bool, error) {
	result, err := e.applyWithRetry(ctx, rec)
	if err == nil {
		return true, e.finishRecord(ctx, rec, result)
	}

	var perm *PermanentError
	if errors.As(err, &perm) {
		return true, e.failRecord(ctx, rec, perm.Error())
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, ctx.Err()
	}

	attempts := rec.Attempts + int(e.cfg.MaxTries)

	if updErr := e.queue.RecordAttempt(ctx, rec.ID, attempts, err.Error()); updErr != nil {
		return false, updErr
	}

	if attempts >= e.cfg.RetryCeiling {
		e.l.Warn("Retry ceiling exceeded, escalating to terminal failure",
			zap.String("record_id", rec.ID.String()),
			zap.Int("attempts", attempts),
		)

		return true, e.failRecord(ctx, rec, "retry ceiling exceeded: "+err.Error())
	}

	e.l.Debug("Record deferred for retry",
		zap.String("record_id", rec.ID.String()),
		zap.String("tenant_id", rec.TenantID),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)

	return false, nil
}

func (e *Engine) applyWithRetry(ctx context.Context, rec model.QueueRecord) (*RemoteResult, error) {
	operation := func() (*RemoteResult, error) {
		result, err := e.remote.Apply(ctx, rec)
		if err != nil {
			var perm *PermanentError
			if errors.As(err, &perm) {
				// The request itself is invalid; retrying cannot help.
				e.monitor.ReportSuccess()

				return nil, backoff.Permanent(err)
			}

			e.monitor.ReportFailure()

			return nil, err
		}

		e.monitor.ReportSuccess()

		return result, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.cfg.InitialBackoff
	expo.MaxInterval = e.cfg.MaxBackoff

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(e.cfg.MaxTries),
	)
}

// finishRecord marks the record synced before removing it. A crash between
// the two leaves an idempotently retryable state, never data loss.
func (e *Engine) finishRecord(ctx context.Context, rec model.QueueRecord, result *RemoteResult) error {
	if err := e.queue.MarkSynced(ctx, rec.ID); err != nil {
		return err
	}

	if err := e.queue.Remove(ctx, rec.ID); err != nil {
		return err
	}

	payload, err := json.Marshal(model.MutationSyncedPayload{
		RecordID: rec.ID.String(),
		Endpoint: rec.Endpoint,
		Method:   rec.Method,
		Entity:   result.Entity,
		Replayed: result.AlreadyApplied,
	})
	if err != nil {
		return err
	}

	e.bus.Publish(model.Event{
		Channel:  model.ChannelMutationSynced,
		TenantID: rec.TenantID,
		Payload:  payload,
		At:       time.Now().UTC(),
	})

	e.l.Info("Record synced",
		zap.String("record_id", rec.ID.String()),
		zap.String("tenant_id", rec.TenantID),
		zap.String("endpoint", rec.Endpoint),
	)

	return nil
}

func (e *Engine) failRecord(ctx context.Context, rec model.QueueRecord, reason string) error {
	if err := e.queue.MarkFailed(ctx, rec.ID, reason); err != nil {
		return err
	}

	payload, err := json.Marshal(model.MutationFailedPayload{
		RecordID: rec.ID.String(),
		Endpoint: rec.Endpoint,
		Method:   rec.Method,
		Reason:   reason,
	})
	if err != nil {
		return err
	}

	e.bus.Publish(model.Event{
		Channel:  model.ChannelMutationFailed,
		TenantID: rec.TenantID,
		Payload:  payload,
		At:       time.Now().UTC(),
	})

	e.l.Warn("Record failed terminally",
		zap.String("record_id", rec.ID.String()),
		zap.String("tenant_id", rec.TenantID),
		zap.String("reason", reason),
	)

	return nil
}

func (e *Engine) lockFor(tenantID string) *sync.Mutex {
	lock, _ := e.locks.LoadOrStore(tenantID, &sync.Mutex{})

	return lock.(*sync.Mutex)
}
