package enqueue

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/goliatone/go-enqueue/pkg/activity"
)

// AddInline attaches inline snippets to their parents. Each snippet takes
// exactly one path: the parent's record in the immediate queue, its record
// in the deferred queue, or the external queue when the host already knows
// the handle or a ParentHook is given. Snippets whose parent cannot be
// traced are dropped with a warning. Only malformed snippets return errors.
func (e *Enqueuer) AddInline(t AssetType, inlines ...Inline) error {
	reg, err := e.registry(t)
	if err != nil {
		return err
	}
	inlines = append([]Inline(nil), inlines...)
	var errs []error
	for i := range inlines {
		if err := validateInline(i, &inlines[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	q := e.queue(t)
	for _, inline := range inlines {
		log := e.logger.With(
			slog.String("asset_type", string(t)),
			slog.String("handle", inline.Parent),
		)
		if parent := q.findImmediate(inline.Parent); parent != nil {
			if inline.ParentHook != "" {
				log.Warn("parent hook hint ignored, parent is queued for immediate processing",
					slog.String("parent_hook", inline.ParentHook))
			}
			parent.Inline = append(parent.Inline, inline)
			log.Debug("inline attached to immediate record")
			continue
		}
		if parent, hook, priority := q.findDeferred(inline.Parent); parent != nil {
			if inline.ParentHook != "" && inline.ParentHook != hook {
				log.Warn("parent hook hint differs from queued hook, using queued hook",
					slog.String("parent_hook", inline.ParentHook), slog.String("hook", hook))
			}
			parent.Inline = append(parent.Inline, inline)
			log.Debug("inline attached to deferred record", slog.String("hook", hook), slog.Int("priority", priority))
			continue
		}
		if inline.ParentHook == "" && !reg.IsRegistered(inline.Parent) {
			log.Warn("inline parent not found in any queue or on the host, dropping")
			e.emit(activity.VerbInlineDropped, t, inline.Parent, "", nil)
			continue
		}
		hook := inline.ParentHook
		if hook == "" {
			hook = e.cfg.context.LateHook(t)
		}
		q.pushExternal(hook, inline.Parent, inline)
		e.wireExternal(t, hook)
		log.Debug("inline queued for external parent", slog.String("hook", hook))
	}
	return nil
}

func (e *Enqueuer) wireExternal(t AssetType, hook string) {
	if !e.tracker(t).markExternal(hook) {
		return
	}
	e.host.AddAction(hook, e.cfg.externalPriority, externalInlineTask{
		enqueuer:  e,
		assetType: t,
		hook:      hook,
	})
	e.logger.Debug("external inline hook wired",
		slog.String("asset_type", string(t)),
		slog.String("hook", hook),
		slog.Int("priority", e.cfg.externalPriority),
	)
}

type externalInlineTask struct {
	enqueuer  *Enqueuer
	assetType AssetType
	hook      string
}

// Run attaches queued snippets for the hook the host reports as firing,
// falling back to the hook the task was wired for.
func (t externalInlineTask) Run() {
	hook := t.enqueuer.host.CurrentAction()
	if hook == "" {
		hook = t.hook
	}
	t.enqueuer.runExternalInline(t.assetType, hook)
}

func (e *Enqueuer) runExternalInline(t AssetType, hook string) {
	reg, err := e.registry(t)
	if err != nil {
		e.logger.Error("external inline skipped", slog.String("hook", hook), slog.String("error", err.Error()))
		return
	}
	parents := e.queue(t).takeExternal(hook)
	if len(parents) == 0 {
		e.logger.Debug("external inline queue already drained", slog.String("asset_type", string(t)), slog.String("hook", hook))
		return
	}
	for _, parent := range sortedKeys(parents) {
		log := e.logger.With(
			slog.String("asset_type", string(t)),
			slog.String("handle", parent),
			slog.String("hook", hook),
		)
		if !reg.IsRegistered(parent) {
			log.Warn("external inline parent is not registered, attempting anyway")
		}
		e.attachInline(reg, t, parent, hook, parents[parent], log)
	}
}

// attachInline adds each snippet to parent. Skips and failures are logged
// per snippet; nothing is retried.
func (e *Enqueuer) attachInline(reg Registry, t AssetType, parent, hook string, inlines []Inline, log *slog.Logger) {
	for i, inline := range inlines {
		entry := log.With(slog.Int("inline", i))
		if !e.passes(inline.Condition, inline.When, t, parent, hook, entry) {
			entry.Debug("inline condition false, skipping")
			continue
		}
		if strings.TrimSpace(inline.Content) == "" {
			entry.Debug("inline content empty, skipping")
			continue
		}
		if !reg.AddInline(parent, inline.Content, inline.position()) {
			entry.Warn("host refused inline content")
			continue
		}
		entry.Debug("inline content attached", slog.String("position", string(inline.position())))
		e.emit(activity.VerbInlineAdded, t, parent, hook, map[string]any{"position": string(inline.position())})
	}
}
