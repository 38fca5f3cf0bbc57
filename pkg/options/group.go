package options

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/goliatone/go-enqueue/layering"
	"github.com/goliatone/go-enqueue/pkg/activity"
	"github.com/goliatone/go-enqueue/pkg/rules"
)

type actorKey struct{}

// ContextWithActor attaches the acting user id to ctx. Gates and activity
// events read it from there.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the id set by ContextWithActor.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// Option configures a Group.
type Option func(*config)

type config struct {
	schema    Schema
	strict    bool
	gates     []WriteGate
	logger    *slog.Logger
	emitter   *activity.Emitter
	evaluator rules.Evaluator
}

// WithSchema declares the keys of the group.
func WithSchema(schema Schema) Option {
	return func(cfg *config) {
		cfg.schema = schema
	}
}

// WithStrict rejects keys the schema does not declare.
func WithStrict() Option {
	return func(cfg *config) {
		cfg.strict = true
	}
}

// WithGates appends write gates, consulted in order.
func WithGates(gates ...WriteGate) Option {
	return func(cfg *config) {
		for _, gate := range gates {
			if gate != nil {
				cfg.gates = append(cfg.gates, gate)
			}
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithActivity emits mutation events through emitter.
func WithActivity(emitter *activity.Emitter) Option {
	return func(cfg *config) {
		cfg.emitter = emitter
	}
}

// WithEvaluator sets the engine for Field.Rule. The default is CEL.
func WithEvaluator(evaluator rules.Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = evaluator
	}
}

// Group is one grouped option bound to a storage scope. It is safe for
// concurrent use.
type Group struct {
	name    string
	storage StorageContext
	cfg     config
	logger  *slog.Logger

	mu      sync.Mutex
	values  map[string]any
	pending map[string]any
	meta    Meta
}

// Open loads the group named name from storage.
func Open(ctx context.Context, name string, storage StorageContext, opts ...Option) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("options: group name is required")
	}
	if err := storage.Scope.Validate(); err != nil {
		return nil, err
	}
	if _, err := storage.Store(storage.Scope.Level); err != nil {
		return nil, err
	}
	cfg := config{}
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
			rules.NewCELEvaluator(rules.CELWithProgramCache(rules.NewMemoryCache())),
			rules.SlogLogger(cfg.logger),
		)
	}
	g := &Group{
		name:    name,
		storage: storage,
		cfg:     cfg,
		logger: cfg.logger.With(
			slog.String("option", name),
			slog.String("scope", storage.Scope.Identifier(name)),
		),
	}
	if err := g.Refresh(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// Name returns the stored option name.
func (g *Group) Name() string { return g.name }

// Scope returns the scope the group is bound to.
func (g *Group) Scope() layering.Scope { return g.storage.Scope }

// Meta returns the metadata of the last load or save.
func (g *Group) Meta() Meta {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.meta
}

// Refresh reloads from storage and drops staged changes.
func (g *Group) Refresh(ctx context.Context) error {
	store, err := g.storage.Store(g.storage.Scope.Level)
	if err != nil {
		return err
	}
	values, meta, ok, err := store.Load(ctx, g.storage.Ref(g.name))
	if err != nil {
		return fmt.Errorf("options: load %s: %w", g.name, err)
	}
	if !ok {
		values, meta = map[string]any{}, Meta{}
	}
	g.mu.Lock()
	g.values = values
	g.pending = nil
	g.meta = meta
	g.mu.Unlock()
	return nil
}

// Get returns the staged, stored or default value of key, in that order.
func (g *Group) Get(key string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if value, ok := g.pending[key]; ok {
		return layering.Clone(value), true
	}
	if value, ok := g.values[key]; ok {
		return layering.Clone(value), true
	}
	if field, ok := g.cfg.schema[key]; ok && field.Default != nil {
		return layering.Clone(field.Default), true
	}
	return nil, false
}

// GetAll returns defaults overlaid with stored and staged values.
func (g *Group) GetAll() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return layering.Clone(overlay(overlay(g.cfg.schema.Defaults(), g.values), g.pending)).(map[string]any)
}

// Pending returns the staged keys, sorted.
func (g *Group) Pending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sortedKeys(g.pending)
}

// Set validates value and persists it under key.
func (g *Group) Set(ctx context.Context, key string, value any) error {
	write := g.writeContext(ctx, OpSet, map[string]any{key: value})
	if err := g.gate(ctx, write); err != nil {
		return err
	}
	clean, err := g.cleanAll(write.Values)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	next := overlay(g.values, clean)
	if err := g.persist(ctx, next); err != nil {
		return err
	}
	delete(g.pending, key)
	g.logger.Debug("option key updated", slog.String("key", key))
	g.emit(ctx, activity.VerbOptionsUpdated, write, key, clean[key])
	return nil
}

// Stage validates values and holds them in memory until Commit.
func (g *Group) Stage(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	write := g.writeContext(ctx, OpStage, values)
	if err := g.gate(ctx, write); err != nil {
		return err
	}
	clean, err := g.cleanAll(values)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		g.pending = map[string]any{}
	}
	for key, value := range clean {
		g.pending[key] = value
	}
	g.logger.Debug("option keys staged", slog.Int("keys", len(clean)))
	return nil
}

// Discard drops staged changes.
func (g *Group) Discard() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
}

// Commit persists staged changes. Committing with nothing staged is a no-op.
func (g *Group) Commit(ctx context.Context) error {
	g.mu.Lock()
	pending := layering.Clone(g.pending).(map[string]any)
	g.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}
	write := g.writeContext(ctx, OpCommit, pending)
	if err := g.gate(ctx, write); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	next := overlay(g.values, g.pending)
	if err := g.persist(ctx, next); err != nil {
		return err
	}
	g.pending = nil
	g.logger.Debug("option keys committed", slog.Int("keys", len(pending)))
	g.emit(ctx, activity.VerbOptionsCommitted, write, "", nil)
	return nil
}

// Delete removes keys from storage. Staged values for them are dropped too.
func (g *Group) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	values := make(map[string]any, len(keys))
	for _, key := range keys {
		values[key] = nil
	}
	write := g.writeContext(ctx, OpDelete, values)
	write.Values = nil
	if err := g.gate(ctx, write); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	next := overlay(g.values, nil)
	for _, key := range keys {
		delete(next, key)
	}
	if err := g.persist(ctx, next); err != nil {
		return err
	}
	for _, key := range keys {
		delete(g.pending, key)
	}
	g.emit(ctx, activity.VerbOptionsDeleted, write, singleKey(keys), nil)
	return nil
}

// Clear deletes the stored group entirely.
func (g *Group) Clear(ctx context.Context) error {
	write := g.writeContext(ctx, OpClear, nil)
	if err := g.gate(ctx, write); err != nil {
		return err
	}
	store, err := g.storage.Store(g.storage.Scope.Level)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := store.Delete(ctx, g.storage.Ref(g.name), g.meta); err != nil {
		return fmt.Errorf("options: clear %s: %w", g.name, err)
	}
	g.values = map[string]any{}
	g.pending = nil
	g.meta = Meta{}
	g.emit(ctx, activity.VerbOptionsDeleted, write, "", nil)
	return nil
}

// Resolve merges the group across chain, strongest scope first, over the
// schema defaults. Scopes with nothing stored are skipped.
func (g *Group) Resolve(ctx context.Context, chain layering.Chain) (map[string]any, error) {
	layers, _, err := g.layers(ctx, chain)
	if err != nil {
		return nil, err
	}
	return layering.Merge(layers...), nil
}

// Trace reports, for each top-level key Resolve would return, the storage
// identifier of the scope that supplied it, or "default".
func (g *Group) Trace(ctx context.Context, chain layering.Chain) (map[string]string, error) {
	layers, labels, err := g.layers(ctx, chain)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for key, index := range layering.Origin(layers...) {
		out[key] = labels[index]
	}
	return out, nil
}

func (g *Group) layers(ctx context.Context, chain layering.Chain) ([]map[string]any, []string, error) {
	layers := make([]map[string]any, 0, chain.Len()+1)
	labels := make([]string, 0, chain.Len()+1)
	for _, scope := range chain.Ordered() {
		store, err := g.storage.Store(scope.Level)
		if err != nil {
			return nil, nil, err
		}
		values, _, ok, err := store.Load(ctx, Ref{Option: g.name, Scope: scope})
		if err != nil {
			return nil, nil, fmt.Errorf("options: resolve %s at %s: %w", g.name, scope.Identifier(g.name), err)
		}
		if ok {
			layers = append(layers, values)
			labels = append(labels, scope.Identifier(g.name))
		}
	}
	layers = append(layers, g.cfg.schema.Defaults())
	labels = append(labels, "default")
	return layers, labels, nil
}

func (g *Group) writeContext(ctx context.Context, op WriteOp, values map[string]any) WriteContext {
	return WriteContext{
		Op:     op,
		Option: g.name,
		Keys:   sortedKeys(values),
		Values: values,
		Scope:  g.storage.Scope,
		Actor:  ActorFromContext(ctx),
	}
}

// gate asks every gate in order and stops at the first veto.
func (g *Group) gate(ctx context.Context, write WriteContext) error {
	for _, gate := range g.cfg.gates {
		ok, reason := gate.Allow(ctx, write)
		if ok {
			continue
		}
		g.logger.Warn("option write vetoed",
			slog.String("op", string(write.Op)),
			slog.String("gate", gate.Name()),
			slog.String("reason", reason),
			slog.Any("keys", write.Keys),
		)
		g.emitVeto(ctx, write, gate.Name(), reason)
		return &VetoError{Gate: gate.Name(), Reason: reason, Write: write}
	}
	return nil
}

func (g *Group) cleanAll(values map[string]any) (map[string]any, error) {
	clean := make(map[string]any, len(values))
	var errs []error
	for _, key := range sortedKeys(values) {
		value, err := g.cfg.schema.clean(g.cfg.evaluator, g.cfg.strict, key, values[key])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		clean[key] = value
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return clean, nil
}

// persist saves next and adopts it; callers hold mu.
func (g *Group) persist(ctx context.Context, next map[string]any) error {
	store, err := g.storage.Store(g.storage.Scope.Level)
	if err != nil {
		return err
	}
	meta, err := store.Save(ctx, g.storage.Ref(g.name), next, g.meta)
	if err != nil {
		return fmt.Errorf("options: save %s: %w", g.name, err)
	}
	g.values = next
	g.meta = meta
	return nil
}

func (g *Group) emit(ctx context.Context, verb string, write WriteContext, key string, value any) {
	if !g.cfg.emitter.Enabled() {
		return
	}
	event := activity.BuildOptionsEvent(verb, activity.OptionsEventInput{
		ActorID:  write.Actor,
		Option:   g.name,
		Key:      key,
		Op:       string(write.Op),
		NewValue: value,
		Scope:    g.scopeContext(g.meta.SnapshotID),
		Metadata: map[string]any{"keys": write.Keys},
	})
	if err := g.cfg.emitter.Emit(ctx, event); err != nil {
		g.logger.Warn("activity emit failed", slog.String("verb", verb), slog.String("error", err.Error()))
	}
}

func (g *Group) emitVeto(ctx context.Context, write WriteContext, gate, reason string) {
	if !g.cfg.emitter.Enabled() {
		return
	}
	g.mu.Lock()
	snapshotID := g.meta.SnapshotID
	g.mu.Unlock()
	event := activity.BuildOptionsEvent(activity.VerbOptionsVetoed, activity.OptionsEventInput{
		ActorID:  write.Actor,
		Option:   g.name,
		Key:      singleKey(write.Keys),
		Op:       string(write.Op),
		Gate:     gate,
		Scope:    g.scopeContext(snapshotID),
		Metadata: map[string]any{"keys": write.Keys, "reason": reason},
	})
	if err := g.cfg.emitter.Emit(ctx, event); err != nil {
		g.logger.Warn("activity emit failed", slog.String("verb", activity.VerbOptionsVetoed), slog.String("error", err.Error()))
	}
}

func (g *Group) scopeContext(snapshotID string) activity.ScopeContext {
	scope := g.storage.Scope
	return activity.ScopeContext{
		Level:      scope.Level.String(),
		BlogID:     scope.BlogID,
		UserID:     scope.UserID,
		Identifier: scope.Identifier(g.name),
		SnapshotID: snapshotID,
	}
}

// overlay returns a shallow copy of base with changes applied on top.
func overlay(base, changes map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(changes))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range changes {
		out[key] = value
	}
	return out
}

func singleKey(keys []string) string {
	if len(keys) == 1 {
		return keys[0]
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
