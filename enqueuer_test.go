package enqueue_test

import (
	"errors"
	"log/slog"
	"testing"

	enqueue "github.com/goliatone/go-enqueue"
	"github.com/goliatone/go-enqueue/pkg/activity"
	"github.com/goliatone/go-enqueue/pkg/hostsim"
)

func TestNewRequiresHost(t *testing.T) {
	if _, err := enqueue.New(nil); !errors.Is(err, enqueue.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestDrainImmediateRegistersAndEnqueues(t *testing.T) {
	f := newFixture(t)
	if err := f.e.Add(enqueue.Script, script("app"), script("vendor")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.e.DrainImmediate(enqueue.Script); err != nil {
		t.Fatalf("drain: %v", err)
	}
	got := f.host.Assets(enqueue.Script).Enqueued()
	if len(got) != 2 || got[0] != "app" || got[1] != "vendor" {
		t.Fatalf("expected app and vendor enqueued in order, got %v", got)
	}
	if !f.e.Queued(enqueue.Script).Empty() {
		t.Fatalf("expected immediate queue to be empty, got %+v", f.e.Queued(enqueue.Script))
	}
}

func TestDeferredBucketsWireOnePerHookPriority(t *testing.T) {
	f := newFixture(t)
	err := f.e.Add(enqueue.Script,
		enqueue.Asset{Handle: "a", Src: enqueue.SourceURL("/a.js"), Hook: "init"},
		enqueue.Asset{Handle: "b", Src: enqueue.SourceURL("/b.js"), Hook: "init", Priority: 10},
		enqueue.Asset{Handle: "c", Src: enqueue.SourceURL("/c.js"), Hook: "init", Priority: 5},
	)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.e.Add(enqueue.Script, enqueue.Asset{Handle: "d", Src: enqueue.SourceURL("/d.js"), Hook: "init"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := f.host.ActionCount("init"); got != 2 {
		t.Fatalf("expected 2 subscriptions on init, got %d", got)
	}
	if f.host.Assets(enqueue.Script).IsRegistered("a") {
		t.Fatalf("deferred asset registered before its hook fired")
	}

	f.host.DoAction("init")
	got := f.host.Assets(enqueue.Script).Enqueued()
	want := []string{"c", "a", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if !f.e.Queued(enqueue.Script).Empty() {
		t.Fatalf("expected deferred queue pruned, got %+v", f.e.Queued(enqueue.Script))
	}
}

func TestDeferredBucketFiredTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	if err := f.e.Add(enqueue.Style, enqueue.Asset{Handle: "theme", Src: enqueue.SourceURL("/t.css"), Hook: "init"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	f.host.DoAction("init")
	f.host.DoAction("init")

	reg := f.host.Assets(enqueue.Style)
	if reg.Count("register", "theme") != 1 || reg.Count("enqueue", "theme") != 1 {
		t.Fatalf("expected single register and enqueue, calls: %v", reg.Calls())
	}
	if _, ok := f.logs.find(slog.LevelDebug, "already drained"); !ok {
		t.Fatalf("expected debug log for drained bucket")
	}
}

func TestStageAfterFiringReusesExistingSubscription(t *testing.T) {
	f := newFixture(t)
	f.e.Stage(enqueue.Script, enqueue.Asset{Handle: "first", Src: enqueue.SourceURL("/1.js"), Hook: "init"})
	f.host.DoAction("init")
	f.e.Stage(enqueue.Script, enqueue.Asset{Handle: "second", Src: enqueue.SourceURL("/2.js"), Hook: "init"})
	if got := f.host.ActionCount("init"); got != 1 {
		t.Fatalf("expected ledger to prevent a second subscription, got %d", got)
	}
	f.host.DoAction("init")
	if !f.host.Assets(enqueue.Script).IsEnqueued("second") {
		t.Fatalf("expected second record processed when the hook fired again")
	}
}

func TestRecordsStagedWhileBucketRunsAreProcessed(t *testing.T) {
	f := newFixture(t)
	late := enqueue.Asset{Handle: "late", Src: enqueue.SourceURL("/late.js"), Hook: "init"}
	f.e.Stage(enqueue.Script, enqueue.Asset{
		Handle: "early",
		Src:    enqueue.SourceURL("/early.js"),
		Hook:   "init",
		Condition: func() bool {
			f.e.Stage(enqueue.Script, late)
			return true
		},
	})
	f.host.DoAction("init")
	if !f.host.Assets(enqueue.Script).IsEnqueued("late") {
		t.Fatalf("expected record staged during firing to be processed")
	}
}

func TestAddRejectsWholeBatchOnInvalidRecord(t *testing.T) {
	f := newFixture(t)
	err := f.e.Add(enqueue.Style,
		style("ok"),
		enqueue.Asset{Handle: " ", Src: enqueue.SourceURL("/x.css")},
		enqueue.Asset{Handle: "nosrc"},
		enqueue.Asset{Handle: "prio", Src: enqueue.SourceURL("/p.css"), Priority: 5},
		enqueue.Asset{Handle: "strategy", Src: enqueue.SourceURL("/s.css"), Strategy: "defer"},
		enqueue.Asset{Handle: "env", Src: enqueue.SourceEnv("/dev.css", "")},
	)
	if !errors.Is(err, enqueue.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	var cfgErr *enqueue.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError in %v", err)
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok || len(joined.Unwrap()) != 5 {
		t.Fatalf("expected 5 joined errors, got %v", err)
	}
	if !f.e.Queued(enqueue.Style).Empty() {
		t.Fatalf("expected nothing queued after rejected batch")
	}
}

func TestAddValidatesScriptOnlyFields(t *testing.T) {
	f := newFixture(t)
	err := f.e.Add(enqueue.Style, enqueue.Asset{
		Handle: "theme",
		Src:    enqueue.SourceURL("/t.css"),
		Data:   map[string]any{"cfg": 1},
	})
	if !errors.Is(err, enqueue.ErrConfig) {
		t.Fatalf("expected data on style to be rejected, got %v", err)
	}
	err = f.e.Add(enqueue.Script, enqueue.Asset{
		Handle: "app",
		Src:    enqueue.SourceURL("/a.js"),
		Data:   map[string]any{"not-valid": 1},
	})
	if !errors.Is(err, enqueue.ErrConfig) {
		t.Fatalf("expected invalid data name to be rejected, got %v", err)
	}
	err = f.e.Add(enqueue.Script, enqueue.Asset{
		Handle: "app",
		Src:    enqueue.SourceURL("/a.js"),
		Inline: []enqueue.Inline{{Parent: "other", Content: "x"}},
	})
	if !errors.Is(err, enqueue.ErrConfig) {
		t.Fatalf("expected mismatched inline parent to be rejected, got %v", err)
	}
}

func TestAddLeavesCallerSliceUntouched(t *testing.T) {
	f := newFixture(t)
	inlines := []enqueue.Inline{{Content: "boot()"}}
	assets := []enqueue.Asset{{Handle: " app ", Src: enqueue.SourceURL("/app.js"), Inline: inlines}}
	if err := f.e.Add(enqueue.Script, assets...); err != nil {
		t.Fatalf("add: %v", err)
	}
	if assets[0].Handle != " app " {
		t.Fatalf("expected caller handle untouched, got %q", assets[0].Handle)
	}
	if inlines[0].Parent != "" {
		t.Fatalf("expected caller inline parent untouched, got %q", inlines[0].Parent)
	}

	snippets := []enqueue.Inline{{Parent: " app ", Content: "later()"}}
	if err := f.e.AddInline(enqueue.Script, snippets...); err != nil {
		t.Fatalf("add inline: %v", err)
	}
	if snippets[0].Parent != " app " {
		t.Fatalf("expected caller inline untouched, got %q", snippets[0].Parent)
	}

	if err := f.e.DrainImmediate(enqueue.Script); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !f.host.Assets(enqueue.Script).IsEnqueued("app") {
		t.Fatalf("expected normalized handle enqueued")
	}
}

func TestDeferredConditionFalseSkipsAndDrainsBucket(t *testing.T) {
	f := newFixture(t)
	err := f.e.Add(enqueue.Script,
		enqueue.Asset{Handle: "gated", Src: enqueue.SourceURL("/g.js"), Hook: "init", Condition: func() bool { return false }},
		enqueue.Asset{Handle: "open", Src: enqueue.SourceURL("/o.js"), Hook: "init"},
	)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	f.host.DoAction("init")

	reg := f.host.Assets(enqueue.Script)
	if reg.Count("register", "gated") != 0 || reg.Count("enqueue", "gated") != 0 {
		t.Fatalf("expected no host calls for condition-false record, calls: %v", reg.Calls())
	}
	if !reg.IsEnqueued("open") {
		t.Fatalf("expected sibling record processed")
	}
	if !f.e.Queued(enqueue.Script).Empty() {
		t.Fatalf("expected bucket emptied after firing, got %+v", f.e.Queued(enqueue.Script))
	}

	f.host.DoAction("init")
	if reg.Count("register", "gated") != 0 {
		t.Fatalf("expected condition-false record not retried, calls: %v", reg.Calls())
	}
}

func TestUnknownTypeAndMissingRegistry(t *testing.T) {
	host := hostsim.New().Without(enqueue.ScriptModule)
	e, err := enqueue.New(host)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Add(enqueue.AssetType("font"), script("x")); !errors.Is(err, enqueue.ErrUnknownAssetType) {
		t.Fatalf("expected ErrUnknownAssetType, got %v", err)
	}
	if err := e.AddInline(enqueue.ScriptModule, enqueue.Inline{Parent: "m", Content: "x"}); !errors.Is(err, enqueue.ErrNoRegistry) {
		t.Fatalf("expected ErrNoRegistry, got %v", err)
	}
	if _, ok := e.Process(&enqueue.Asset{Handle: "m", Src: enqueue.SourceURL("/m.js")}, enqueue.ScriptModule, "", true, true); ok {
		t.Fatalf("expected process to fail without registry")
	}
}

func TestShutdownClearsRequestCache(t *testing.T) {
	calls := 0
	f := newFixture(t, enqueue.WithEnvironment(func() bool {
		calls++
		return true
	}))
	if err := f.e.Add(enqueue.Script,
		enqueue.Asset{Handle: "a", Src: enqueue.SourceEnv("/a.dev.js", "/a.min.js")},
		enqueue.Asset{Handle: "b", Src: enqueue.SourceEnv("/b.dev.js", "/b.min.js")},
	); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.e.DrainImmediate(enqueue.Script); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected environment consulted once, got %d", calls)
	}
	entry, _ := f.host.Assets(enqueue.Script).Entry("a")
	if entry.Args.Src != "/a.dev.js" {
		t.Fatalf("expected dev source, got %q", entry.Args.Src)
	}
	if f.e.Cache().Len() == 0 {
		t.Fatalf("expected cached environment")
	}
	f.host.DoAction(enqueue.ShutdownHook)
	if f.e.Cache().Len() != 0 {
		t.Fatalf("expected cache cleared on shutdown")
	}
}

func TestActivityEventsForLifecycle(t *testing.T) {
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	f := newFixture(t, enqueue.WithActivity(emitter))
	if err := f.e.Add(enqueue.Script, script("app"), enqueue.Asset{
		Handle:    "off",
		Src:       enqueue.SourceURL("/off.js"),
		Condition: func() bool { return false },
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.e.DrainImmediate(enqueue.Script); err != nil {
		t.Fatalf("drain: %v", err)
	}
	verbs := capture.Verbs()
	want := []string{activity.VerbAssetRegistered, activity.VerbAssetEnqueued, activity.VerbAssetSkipped}
	if len(verbs) != len(want) {
		t.Fatalf("expected %v, got %v", want, verbs)
	}
	for i := range want {
		if verbs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, verbs)
		}
	}
	if capture.Events[0].ObjectID != "script:app" || capture.Events[0].Metadata["context"] != "public" {
		t.Fatalf("unexpected event: %+v", capture.Events[0])
	}
}

func TestResetEmptiesQueuesButKeepsLedger(t *testing.T) {
	f := newFixture(t)
	f.e.Stage(enqueue.Script, enqueue.Asset{Handle: "a", Src: enqueue.SourceURL("/a.js"), Hook: "init"}, script("b"))
	f.e.Reset()
	if !f.e.Queued(enqueue.Script).Empty() {
		t.Fatalf("expected empty queues after reset")
	}
	f.e.Stage(enqueue.Script, enqueue.Asset{Handle: "a", Src: enqueue.SourceURL("/a.js"), Hook: "init"})
	if got := f.host.ActionCount("init"); got != 1 {
		t.Fatalf("expected ledger to survive reset, got %d subscriptions", got)
	}
}
