package enqueue

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/goliatone/go-enqueue/pkg/activity"
)

// RemovalTarget names one handle to dequeue, deregister or remove. A target
// runs immediately when Immediate is set, or when it has no Hook and Defer is
// unset; otherwise it is scheduled on Hook (the context's enqueue hook when
// empty) at Priority (DefaultPriority when zero).
type RemovalTarget struct {
	Handle   string
	Hook     string
	Priority int
	Defer    bool
	// Immediate runs the operation now even when Hook or Defer is set.
	Immediate bool
}

func (r RemovalTarget) now() bool {
	return r.Immediate || (r.Hook == "" && !r.Defer)
}

// Handles builds immediate removal targets.
func Handles(handles ...string) []RemovalTarget {
	targets := make([]RemovalTarget, 0, len(handles))
	for _, handle := range handles {
		targets = append(targets, RemovalTarget{Handle: handle})
	}
	return targets
}

// RemovalResult reports the outcome for one immediate target. Scheduled
// targets are reported through the logger when their hook fires.
type RemovalResult struct {
	Handle    string
	Scheduled bool
	OK        bool
	// Purged counts queue entries dropped by Remove.
	Purged int
}

type removalOp struct {
	name       string
	dequeue    bool
	deregister bool
	purge      bool
}

var (
	opDequeue    = removalOp{name: "dequeue", dequeue: true}
	opDeregister = removalOp{name: "deregister", deregister: true}
	opRemove     = removalOp{name: "remove", dequeue: true, deregister: true, purge: true}
)

// Dequeue removes handles from the render output only.
func (e *Enqueuer) Dequeue(t AssetType, targets ...RemovalTarget) ([]RemovalResult, error) {
	return e.removeAssets(t, opDequeue, targets)
}

// Deregister removes handles from the host registry only.
func (e *Enqueuer) Deregister(t AssetType, targets ...RemovalTarget) ([]RemovalResult, error) {
	return e.removeAssets(t, opDeregister, targets)
}

// Remove dequeues and deregisters handles and drops them from every
// internal queue.
func (e *Enqueuer) Remove(t AssetType, targets ...RemovalTarget) ([]RemovalResult, error) {
	return e.removeAssets(t, opRemove, targets)
}

func (e *Enqueuer) removeAssets(t AssetType, op removalOp, targets []RemovalTarget) ([]RemovalResult, error) {
	if _, err := e.registry(t); err != nil {
		return nil, err
	}
	targets = append([]RemovalTarget(nil), targets...)
	var errs []error
	for i := range targets {
		targets[i].Handle = strings.TrimSpace(targets[i].Handle)
		if targets[i].Handle == "" {
			errs = append(errs, &ConfigError{Type: t, Index: i, Field: "handle", Reason: "must not be empty"})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	results := make([]RemovalResult, 0, len(targets))
	for _, target := range targets {
		if target.now() {
			if target.Hook != "" {
				e.logger.Debug("removal runs now, hook ignored",
					slog.String("op", op.name),
					slog.String("handle", target.Handle),
					slog.String("hook", target.Hook),
				)
			}
			results = append(results, e.runRemoval(t, op, target.Handle, ""))
			continue
		}
		hook := target.Hook
		if hook == "" {
			hook = e.cfg.context.EnqueueHook()
		}
		priority := target.Priority
		if priority == 0 {
			priority = DefaultPriority
		}
		e.host.AddAction(hook, priority, removalTask{
			enqueuer:  e,
			assetType: t,
			op:        op,
			handle:    target.Handle,
			hook:      hook,
		})
		e.logger.Debug("removal scheduled",
			slog.String("op", op.name),
			slog.String("asset_type", string(t)),
			slog.String("handle", target.Handle),
			slog.String("hook", hook),
			slog.Int("priority", priority),
		)
		results = append(results, RemovalResult{Handle: target.Handle, Scheduled: true})
	}
	return results, nil
}

type removalTask struct {
	enqueuer  *Enqueuer
	assetType AssetType
	op        removalOp
	handle    string
	hook      string
}

func (t removalTask) Run() {
	t.enqueuer.runRemoval(t.assetType, t.op, t.handle, t.hook)
}

// runRemoval applies op and re-checks host state. A handle still present
// afterwards, usually re-added by another component, is a partial failure.
func (e *Enqueuer) runRemoval(t AssetType, op removalOp, handle, hook string) RemovalResult {
	log := e.logger.With(
		slog.String("op", op.name),
		slog.String("asset_type", string(t)),
		slog.String("handle", handle),
		slog.String("hook", hook),
	)
	result := RemovalResult{Handle: handle}
	reg, err := e.registry(t)
	if err != nil {
		log.Error("removal skipped", slog.String("error", err.Error()))
		return result
	}
	if op.purge {
		result.Purged = e.queue(t).purge(handle)
	}
	if op.dequeue && reg.IsEnqueued(handle) {
		reg.Dequeue(handle)
	}
	if op.deregister && reg.IsRegistered(handle) {
		reg.Deregister(handle)
	}

	stillEnqueued := op.dequeue && reg.IsEnqueued(handle)
	stillRegistered := op.deregister && reg.IsRegistered(handle)
	result.OK = !stillEnqueued && !stillRegistered
	if !result.OK {
		log.Warn("asset still present after removal",
			slog.Bool("enqueued", stillEnqueued),
			slog.Bool("registered", stillRegistered),
		)
		return result
	}
	log.Debug("asset removed", slog.Int("purged", result.Purged))
	e.emit(activity.VerbAssetRemoved, t, handle, hook, map[string]any{"op": op.name})
	return result
}
