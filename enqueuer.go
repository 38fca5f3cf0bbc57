package enqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-enqueue/pkg/activity"
	"github.com/goliatone/go-enqueue/pkg/rules"
)

// ExternalInlinePriority is the default priority for attaching inline
// content to handles registered outside this Enqueuer.
const ExternalInlinePriority = 20

// Option configures an Enqueuer.
type Option func(*config)

type config struct {
	logger           *slog.Logger
	context          Context
	development      func() bool
	paths            PathResolver
	evaluator        rules.Evaluator
	ruleVars         func() map[string]any
	emitter          *activity.Emitter
	cache            *RequestCache
	externalPriority int
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithContext selects the lifecycle (public, admin, login) used for default
// hooks.
func WithContext(c Context) Option {
	return func(cfg *config) {
		cfg.context = c
	}
}

// WithEnvironment supplies the "is development" flag used to pick between
// dev and prod sources. It is consulted at most once per request.
func WithEnvironment(development func() bool) Option {
	return func(cfg *config) {
		cfg.development = development
	}
}

// WithPaths configures URL to filesystem mapping for cache busting.
func WithPaths(paths PathResolver) Option {
	return func(cfg *config) {
		cfg.paths = paths
	}
}

// WithEvaluator sets the rule engine used for When expressions. The default
// is the expr engine.
func WithEvaluator(evaluator rules.Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = evaluator
	}
}

// WithRuleVars supplies request variables exposed to When expressions.
func WithRuleVars(vars func() map[string]any) Option {
	return func(cfg *config) {
		cfg.ruleVars = vars
	}
}

// WithActivity emits lifecycle events through emitter.
func WithActivity(emitter *activity.Emitter) Option {
	return func(cfg *config) {
		cfg.emitter = emitter
	}
}

// WithRequestCache shares a request cache between enqueuers.
func WithRequestCache(cache *RequestCache) Option {
	return func(cfg *config) {
		cfg.cache = cache
	}
}

// WithExternalInlinePriority overrides ExternalInlinePriority.
func WithExternalInlinePriority(priority int) Option {
	return func(cfg *config) {
		cfg.externalPriority = priority
	}
}

// Enqueuer owns the queues and hook ledger for one lifecycle context. Each
// context (public, admin) should use its own Enqueuer.
type Enqueuer struct {
	host     Host
	cfg      config
	logger   *slog.Logger
	cache    *RequestCache
	queues   map[AssetType]*queue
	trackers map[AssetType]*hookTracker
}

// New constructs an Enqueuer bound to host and schedules the request cache
// to be cleared on the host shutdown hook.
func New(host Host, opts ...Option) (*Enqueuer, error) {
	if host == nil {
		return nil, fmt.Errorf("%w: host is required", ErrConfig)
	}
	cfg := config{context: ContextPublic, externalPriority: ExternalInlinePriority}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.evaluator == nil {
		cfg.evaluator = rules.Logged(
			rules.NewExprEvaluator(rules.ExprWithProgramCache(rules.NewMemoryCache())),
			rules.SlogLogger(cfg.logger),
		)
	}
	if cfg.cache == nil {
		cfg.cache = NewRequestCache()
	}
	e := &Enqueuer{
		host:     host,
		cfg:      cfg,
		logger:   cfg.logger.With(slog.String("context", string(cfg.context))),
		cache:    cfg.cache,
		queues:   map[AssetType]*queue{},
		trackers: map[AssetType]*hookTracker{},
	}
	host.AddAction(ShutdownHook, 999, TaskFunc(e.cache.Clear))
	return e, nil
}

// Context returns the lifecycle context the Enqueuer serves.
func (e *Enqueuer) Context() Context {
	return e.cfg.context
}

// Cache exposes the request cache.
func (e *Enqueuer) Cache() *RequestCache {
	return e.cache
}

// Reset empties every queue and the request cache. Hook subscriptions already
// handed to the host are left in place; the ledger keeps them from being
// duplicated.
func (e *Enqueuer) Reset() {
	for _, q := range e.queues {
		q.reset()
	}
	e.cache.Clear()
}

// Queued returns a snapshot of what is waiting for type t.
func (e *Enqueuer) Queued(t AssetType) QueueSnapshot {
	q, ok := e.queues[t]
	if !ok {
		return QueueSnapshot{}
	}
	return q.snapshot()
}

func (e *Enqueuer) queue(t AssetType) *queue {
	q, ok := e.queues[t]
	if !ok {
		q = newQueue()
		e.queues[t] = q
	}
	return q
}

func (e *Enqueuer) tracker(t AssetType) *hookTracker {
	tr, ok := e.trackers[t]
	if !ok {
		tr = newHookTracker()
		e.trackers[t] = tr
	}
	return tr
}

func (e *Enqueuer) registry(t AssetType) (Registry, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAssetType, t)
	}
	reg, ok := e.host.Registry(t)
	if !ok || reg == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRegistry, t)
	}
	return reg, nil
}

// Add validates assets and stages them. Nothing is queued when any asset in
// the call is invalid; the returned error joins every *ConfigError.
func (e *Enqueuer) Add(t AssetType, assets ...Asset) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAssetType, t)
	}
	// Validation normalizes handles and inline parents; work on copies so
	// the caller's slice and its Inline backing arrays stay untouched.
	staged := make([]Asset, len(assets))
	var errs []error
	for i := range assets {
		staged[i] = *assets[i].clone()
		errs = append(errs, validateAsset(t, i, &staged[i])...)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	e.Stage(t, staged...)
	return nil
}

// Stage partitions assets into the immediate or deferred queue. The first
// record seen for a (hook, priority) subscribes one host callback for that
// bucket; later records sharing the pair only join the bucket.
func (e *Enqueuer) Stage(t AssetType, assets ...Asset) {
	q := e.queue(t)
	tr := e.tracker(t)
	for _, asset := range assets {
		record := asset.clone()
		if !record.Deferred() {
			q.pushImmediate(record)
			continue
		}
		priority := record.EffectivePriority()
		q.pushDeferred(record.Hook, priority, record)
		if !tr.markDeferred(record.Hook, priority) {
			continue
		}
		e.host.AddAction(record.Hook, priority, deferredTask{
			enqueuer:  e,
			assetType: t,
			hook:      record.Hook,
			priority:  priority,
		})
		e.logger.Debug("deferred bucket wired",
			slog.String("asset_type", string(t)),
			slog.String("hook", record.Hook),
			slog.Int("priority", priority),
		)
	}
}

// DrainImmediate processes every immediate record with register and enqueue
// requested and leaves the immediate queue empty. A record that still carries
// a hook aborts the drain with a *LogicError; records after it are dropped.
func (e *Enqueuer) DrainImmediate(t AssetType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAssetType, t)
	}
	drained := e.queue(t).swapImmediate()
	for _, record := range drained {
		if record.Deferred() {
			return &LogicError{Op: "drain immediate", Type: t, Handle: record.Handle, Hook: record.Hook}
		}
		e.Process(record, t, "", true, true)
	}
	return nil
}

// deferredTask carries only what is needed to find its bucket at fire time.
type deferredTask struct {
	enqueuer  *Enqueuer
	assetType AssetType
	hook      string
	priority  int
}

func (t deferredTask) Run() {
	t.enqueuer.runDeferred(t.assetType, t.hook, t.priority)
}

func (e *Enqueuer) runDeferred(t AssetType, hook string, priority int) {
	q := e.queue(t)
	bucket := q.takeDeferred(hook, priority)
	if len(bucket) == 0 {
		e.logger.Debug("deferred bucket already drained",
			slog.String("asset_type", string(t)),
			slog.String("hook", hook),
			slog.Int("priority", priority),
		)
		return
	}
	// Records staged for this bucket while it runs are picked up in the same
	// firing since the host will not call this task again.
	for len(bucket) > 0 {
		for _, record := range bucket {
			e.Process(record, t, hook, true, true)
		}
		bucket = q.takeDeferred(hook, priority)
	}
}

func (e *Enqueuer) emit(verb string, t AssetType, handle, hook string, metadata map[string]any) {
	if !e.cfg.emitter.Enabled() {
		return
	}
	event := activity.BuildAssetEvent(verb, activity.AssetEventInput{
		AssetType: string(t),
		Handle:    handle,
		Hook:      hook,
		Context:   string(e.cfg.context),
		Metadata:  metadata,
	})
	if err := e.cfg.emitter.Emit(context.Background(), event); err != nil {
		e.logger.Warn("activity emit failed", slog.String("verb", verb), slog.String("error", err.Error()))
	}
}
