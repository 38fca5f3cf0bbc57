package enqueue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/goliatone/go-enqueue/pkg/activity"
	"github.com/goliatone/go-enqueue/pkg/rules"
)

// Process registers and/or enqueues one record on the host. It returns the
// handle and true on success. A false condition, a missing handle, an
// unresolvable source and host failures all return false; none of them is
// an error to the caller. Process consumes the record's inline attachments
// and data objects once the parent is on the host.
func (e *Enqueuer) Process(a *Asset, t AssetType, hook string, register, enqueue bool) (string, bool) {
	if a == nil {
		return "", false
	}
	log := e.logger.With(
		slog.String("asset_type", string(t)),
		slog.String("handle", a.Handle),
		slog.String("hook", hook),
	)
	reg, err := e.registry(t)
	if err != nil {
		log.Error("asset skipped", slog.String("error", err.Error()))
		return "", false
	}
	if !e.passes(a.Condition, a.When, t, a.Handle, hook, log) {
		log.Debug("asset condition false, skipping")
		e.emit(activity.VerbAssetSkipped, t, a.Handle, hook, map[string]any{"reason": "condition"})
		return "", false
	}
	if strings.TrimSpace(a.Handle) == "" {
		log.Warn("asset without handle, skipping")
		return "", false
	}

	handle := a.Handle
	src := ""
	if !a.Src.IsNone() {
		src = a.Src.Resolve(e.development())
		if src == "" {
			if enqueue {
				log.Error("asset source did not resolve, refusing to enqueue", slog.String("src", a.Src.String()))
				e.emit(activity.VerbAssetFailed, t, handle, hook, map[string]any{"reason": "source"})
				return "", false
			}
			log.Warn("asset source did not resolve, registering without file", slog.String("src", a.Src.String()))
		}
	}

	args := RegisterArgs{
		Handle:   handle,
		Src:      src,
		Deps:     append([]string(nil), a.Deps...),
		Version:  e.version(a, src, log),
		InFooter: a.InFooter,
		Strategy: a.Strategy,
		Media:    a.Media,
	}
	if t == Style && args.Media == "" {
		args.Media = "all"
	}

	if register {
		if a.Replace && reg.IsRegistered(handle) {
			if reg.IsEnqueued(handle) {
				reg.Dequeue(handle)
			}
			reg.Deregister(handle)
			log.Debug("existing registration replaced")
		}
		if reg.IsRegistered(handle) {
			log.Debug("asset already registered, skipping registration")
		} else if !e.register(reg, t, a, args, hook, log) {
			return "", false
		}
	}

	if enqueue {
		switch {
		case reg.IsEnqueued(handle):
			log.Debug("asset already enqueued, skipping")
		default:
			if !reg.IsRegistered(handle) {
				log.Warn("enqueue requested before registration, registering first")
				if !e.register(reg, t, a, args, hook, log) {
					return "", false
				}
			}
			if !reg.Enqueue(handle) {
				log.Warn("host refused to enqueue asset")
				e.emit(activity.VerbAssetFailed, t, handle, hook, map[string]any{"reason": "enqueue"})
				return "", false
			}
			log.Debug("asset enqueued")
			e.emit(activity.VerbAssetEnqueued, t, handle, hook, nil)
		}
	}

	if len(a.Inline) > 0 {
		e.attachInline(reg, t, handle, hook, a.Inline, log)
		a.Inline = nil
	}
	return handle, true
}

func (e *Enqueuer) register(reg Registry, t AssetType, a *Asset, args RegisterArgs, hook string, log *slog.Logger) bool {
	if !reg.Register(args) {
		log.Warn("host refused to register asset")
		e.emit(activity.VerbAssetFailed, t, args.Handle, hook, map[string]any{"reason": "register"})
		return false
	}
	log.Debug("asset registered", slog.String("src", args.Src), slog.String("version", args.Version))
	e.emit(activity.VerbAssetRegistered, t, args.Handle, hook, map[string]any{"src": args.Src, "version": args.Version})
	e.applyAttributes(reg, t, a, log)
	if len(a.Data) > 0 {
		e.attachData(reg, args.Handle, a.Data, log)
		a.Data = nil
	}
	return true
}

// attachData prints each data object as a global before the script.
func (e *Enqueuer) attachData(reg Registry, handle string, data map[string]any, log *slog.Logger) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		payload, err := json.Marshal(data[name])
		if err != nil {
			log.Warn("data object not encodable", slog.String("object", name), slog.String("error", err.Error()))
			continue
		}
		content := fmt.Sprintf("var %s = %s;", name, payload)
		if !reg.AddInline(handle, content, Before) {
			log.Warn("host refused data object", slog.String("object", name))
		}
	}
}

func (e *Enqueuer) development() bool {
	value, _ := e.cache.remember(cacheEnvironment, "", func() (string, bool) {
		if e.cfg.development != nil && e.cfg.development() {
			return "dev", true
		}
		return "prod", true
	})
	return value == "dev"
}

// passes evaluates the callable condition first and the When expression
// second. Expression errors count as false.
func (e *Enqueuer) passes(condition func() bool, when string, t AssetType, handle, hook string, log *slog.Logger) bool {
	if condition != nil && !condition() {
		return false
	}
	if strings.TrimSpace(when) == "" {
		return true
	}
	vars := map[string]any{}
	if e.cfg.ruleVars != nil {
		for key, value := range e.cfg.ruleVars() {
			vars[key] = value
		}
	}
	vars["handle"] = handle
	vars["asset_type"] = string(t)
	vars["hook"] = hook
	vars["context"] = string(e.cfg.context)
	ok, err := rules.Bool(e.cfg.evaluator, rules.Context{Vars: vars, Scope: string(t) + ":" + handle}, when)
	if err != nil {
		log.Warn("condition expression failed, treating as false", slog.String("when", when), slog.String("error", err.Error()))
		return false
	}
	return ok
}
