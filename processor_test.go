package enqueue_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	enqueue "github.com/goliatone/go-enqueue"
	"github.com/goliatone/go-enqueue/pkg/rules"
)

func TestProcessHonoursConditionAndWhen(t *testing.T) {
	f := newFixture(t, enqueue.WithRuleVars(func() map[string]any {
		return map[string]any{"is_front_page": true}
	}))
	assets := []enqueue.Asset{
		{Handle: "front", Src: enqueue.SourceURL("/f.js"), When: "is_front_page && context == 'public'"},
		{Handle: "never", Src: enqueue.SourceURL("/n.js"), When: "handle == 'other'"},
		{Handle: "callable", Src: enqueue.SourceURL("/c.js"), Condition: func() bool { return false }, When: "true"},
		{Handle: "broken", Src: enqueue.SourceURL("/b.js"), When: "missing_fn()"},
	}
	for i := range assets {
		_, ok := f.e.Process(&assets[i], enqueue.Script, "", true, true)
		if want := assets[i].Handle == "front"; ok != want {
			t.Fatalf("%s: expected ok=%v, got %v", assets[i].Handle, want, ok)
		}
	}
	if _, ok := f.logs.find(slog.LevelWarn, "treating as false"); !ok {
		t.Fatalf("expected warning for failing expression")
	}
}

func TestProcessWithCELEvaluator(t *testing.T) {
	f := newFixture(t, enqueue.WithEvaluator(rules.NewCELEvaluator()))
	a := enqueue.Asset{Handle: "admin-only", Src: enqueue.SourceURL("/a.js"), When: "context == 'public' && asset_type == 'script'"}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, true); !ok {
		t.Fatalf("expected CEL condition to pass")
	}
}

func TestProcessSourceEnvironments(t *testing.T) {
	f := newFixture(t, enqueue.WithEnvironment(func() bool { return false }))
	prod := enqueue.Asset{Handle: "app", Src: enqueue.SourceEnv("/app.js", "/app.min.js")}
	if _, ok := f.e.Process(&prod, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	entry, _ := f.host.Assets(enqueue.Script).Entry("app")
	if entry.Args.Src != "/app.min.js" {
		t.Fatalf("expected prod source, got %q", entry.Args.Src)
	}

	bundle := enqueue.Asset{Handle: "bundle", Src: enqueue.NoSource(), Deps: []string{"app"}}
	if _, ok := f.e.Process(&bundle, enqueue.Script, "", true, true); !ok {
		t.Fatalf("expected registration-only bundle to be processed")
	}
	entry, _ = f.host.Assets(enqueue.Script).Entry("bundle")
	if entry.Args.Src != "" || len(entry.Args.Deps) != 1 {
		t.Fatalf("unexpected bundle registration: %+v", entry.Args)
	}
}

func TestProcessUnresolvedSourceRefusesEnqueue(t *testing.T) {
	f := newFixture(t, enqueue.WithEnvironment(func() bool { return true }))
	// Staged without Add so validation does not reject the half-empty pair.
	a := enqueue.Asset{Handle: "half", Src: enqueue.SourceEnv("", "/half.min.js")}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, true); ok {
		t.Fatalf("expected enqueue to be refused")
	}
	if f.host.Assets(enqueue.Script).IsRegistered("half") {
		t.Fatalf("expected nothing registered")
	}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, false); !ok {
		t.Fatalf("expected register-only processing to succeed")
	}
	if _, ok := f.logs.find(slog.LevelWarn, "registering without file"); !ok {
		t.Fatalf("expected warning for register-only fallback")
	}
}

func TestProcessCacheBustUsesContentFingerprint(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "js"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "js", "app.js")
	if err := os.WriteFile(path, []byte("console.log('hi')"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, enqueue.WithPaths(enqueue.StaticPaths{URL: "https://example.test/content", Root: root}))

	want, err := enqueue.Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if len(want) != enqueue.CacheBustLength {
		t.Fatalf("expected %d chars, got %q", enqueue.CacheBustLength, want)
	}

	a := enqueue.Asset{Handle: "app", Src: enqueue.SourceURL("https://example.test/content/js/app.js?x=1"), Version: "1.0", CacheBust: true}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	entry, _ := f.host.Assets(enqueue.Script).Entry("app")
	if entry.Args.Version != want {
		t.Fatalf("expected version %q, got %q", want, entry.Args.Version)
	}

	remote := enqueue.Asset{Handle: "cdn", Src: enqueue.SourceURL("https://cdn.test/lib.js"), Version: "2.0", CacheBust: true}
	if _, ok := f.e.Process(&remote, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	entry, _ = f.host.Assets(enqueue.Script).Entry("cdn")
	if entry.Args.Version != "2.0" {
		t.Fatalf("expected declared version for remote asset, got %q", entry.Args.Version)
	}
}

func TestResolvePathRelativeAndAbsolute(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "style.css")
	if err := os.WriteFile(path, []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths := enqueue.StaticPaths{Root: root}
	if got, ok := enqueue.ResolvePath("style.css?ver=1", paths); !ok || got != path {
		t.Fatalf("expected relative path resolved, got %q %v", got, ok)
	}
	if got, ok := enqueue.ResolvePath(path, nil); !ok || got != path {
		t.Fatalf("expected absolute path resolved, got %q %v", got, ok)
	}
	if _, ok := enqueue.ResolvePath("https://elsewhere.test/style.css", paths); ok {
		t.Fatalf("expected foreign URL to be unresolvable")
	}
	if _, ok := enqueue.ResolvePath(root, paths); ok {
		t.Fatalf("expected directory to be rejected")
	}
}

func TestResolvePathRootRelativeURL(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "js"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "js", "app.js")
	if err := os.WriteFile(path, []byte("app()"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths := enqueue.StaticPaths{URL: "https://example.test/", Root: root}
	if got, ok := enqueue.ResolvePath("/js/app.js?ver=2", paths); !ok || got != path {
		t.Fatalf("expected root-relative URL mapped under root, got %q %v", got, ok)
	}
	if got, ok := enqueue.ResolvePath(path, paths); !ok || got != path {
		t.Fatalf("expected filesystem path under root used as is, got %q %v", got, ok)
	}

	sub := enqueue.StaticPaths{URL: "https://example.test/content", Root: root}
	if got, ok := enqueue.ResolvePath("/content/js/app.js", sub); !ok || got != path {
		t.Fatalf("expected base path stripped, got %q %v", got, ok)
	}
	if _, ok := enqueue.ResolvePath("/other/js/app.js", sub); ok {
		t.Fatalf("expected path outside the base URL to be unresolvable")
	}
}

func TestResolvePathRejectsEscapingRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "content")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths := enqueue.StaticPaths{URL: "https://example.test/content", Root: root}

	for _, src := range []string{
		"https://example.test/content/../secret.txt",
		"/content/../secret.txt",
		"../secret.txt",
	} {
		if got, ok := enqueue.ResolvePath(src, paths); ok {
			t.Fatalf("%s: expected escape to be rejected, got %q", src, got)
		}
	}

	f := newFixture(t, enqueue.WithPaths(paths))
	a := enqueue.Asset{Handle: "leak", Src: enqueue.SourceURL("https://example.test/content/../secret.txt"), Version: "1.0", CacheBust: true}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	entry, _ := f.host.Assets(enqueue.Script).Entry("leak")
	if entry.Args.Version != "1.0" {
		t.Fatalf("expected declared version kept, got %q", entry.Args.Version)
	}
}

func TestProcessReplaceAndIdempotentRegistration(t *testing.T) {
	f := newFixture(t)
	reg := f.host.Assets(enqueue.Script)
	reg.Seed("jquery", true)

	keep := enqueue.Asset{Handle: "jquery", Src: enqueue.SourceURL("/mine.js")}
	if _, ok := f.e.Process(&keep, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	if reg.Count("register", "jquery") != 0 || reg.Count("enqueue", "jquery") != 0 {
		t.Fatalf("expected existing registration reused, calls: %v", reg.Calls())
	}

	replace := enqueue.Asset{Handle: "jquery", Src: enqueue.SourceURL("/mine.js"), Replace: true}
	if _, ok := f.e.Process(&replace, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	entry, _ := reg.Entry("jquery")
	if entry.Args.Src != "/mine.js" || !entry.Enqueued {
		t.Fatalf("expected replacement registered and enqueued, got %+v", entry)
	}
	if reg.Count("dequeue", "jquery") != 1 || reg.Count("deregister", "jquery") != 1 {
		t.Fatalf("expected dequeue and deregister before replacing, calls: %v", reg.Calls())
	}
}

func TestProcessEnqueueOnlyAutoRegisters(t *testing.T) {
	f := newFixture(t)
	a := script("late")
	if _, ok := f.e.Process(&a, enqueue.Script, "", false, true); !ok {
		t.Fatalf("process failed")
	}
	if !f.host.Assets(enqueue.Script).IsEnqueued("late") {
		t.Fatalf("expected asset enqueued")
	}
	if _, ok := f.logs.find(slog.LevelWarn, "before registration"); !ok {
		t.Fatalf("expected auto-register warning")
	}
}

func TestProcessHostFailures(t *testing.T) {
	f := newFixture(t)
	reg := f.host.Assets(enqueue.Style)
	reg.FailRegister["broken"] = true
	reg.FailEnqueue["stuck"] = true

	broken := style("broken")
	if _, ok := f.e.Process(&broken, enqueue.Style, "", true, true); ok {
		t.Fatalf("expected register failure")
	}
	if reg.Count("enqueue", "broken") != 0 {
		t.Fatalf("expected no enqueue after failed registration")
	}
	stuck := style("stuck")
	if _, ok := f.e.Process(&stuck, enqueue.Style, "", true, true); ok {
		t.Fatalf("expected enqueue failure")
	}
	if !reg.IsRegistered("stuck") {
		t.Fatalf("expected registration to survive enqueue failure")
	}
	entry, _ := reg.Entry("stuck")
	if entry.Args.Media != "all" {
		t.Fatalf("expected default media, got %q", entry.Args.Media)
	}
}

func TestProcessAttachesDataBeforeScript(t *testing.T) {
	f := newFixture(t)
	a := enqueue.Asset{
		Handle: "app",
		Src:    enqueue.SourceURL("/app.js"),
		Data:   map[string]any{"appConfig": map[string]any{"root": "/wp-json"}},
	}
	if err := f.e.Add(enqueue.Script, a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.e.DrainImmediate(enqueue.Script); err != nil {
		t.Fatalf("drain: %v", err)
	}
	entry, _ := f.host.Assets(enqueue.Script).Entry("app")
	if len(entry.Before) != 1 || entry.Before[0] != `var appConfig = {"root":"/wp-json"};` {
		t.Fatalf("unexpected data output: %v", entry.Before)
	}
}

func TestProcessAppliesCustomAttributes(t *testing.T) {
	f := newFixture(t)
	a := enqueue.Asset{
		Handle:   "app",
		Src:      enqueue.SourceURL("/app.js"),
		Strategy: "defer",
		Attributes: map[string]any{
			"crossorigin": "anonymous",
			"data-id":     7,
			"nomodule":    true,
			"skip":        false,
			"src":         "/evil.js",
			"defer":       true,
			"complex":     []string{"x"},
		},
	}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	entry, _ := f.host.Assets(enqueue.Script).Entry("app")
	want := map[string]string{"crossorigin": "anonymous", "data-id": "7", "nomodule": ""}
	if len(entry.Attributes) != len(want) {
		t.Fatalf("expected %v, got %v", want, entry.Attributes)
	}
	for key, value := range want {
		if entry.Attributes[key] != value {
			t.Fatalf("expected %v, got %v", want, entry.Attributes)
		}
	}
	if _, ok := f.logs.find(slog.LevelWarn, "managed attribute rejected"); !ok {
		t.Fatalf("expected managed attribute warning")
	}
	if entry.Args.Strategy != "defer" {
		t.Fatalf("expected strategy passed through, got %q", entry.Args.Strategy)
	}
}

func TestProcessAcceptsEveryNumericAttributeKind(t *testing.T) {
	type level int16
	f := newFixture(t)
	a := enqueue.Asset{
		Handle: "nums",
		Src:    enqueue.SourceURL("/n.js"),
		Attributes: map[string]any{
			"data-i8":    int8(-3),
			"data-u64":   uint64(18),
			"data-f32":   float32(1.5),
			"data-u8":    uint8(2),
			"data-level": level(4),
		},
	}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, true); !ok {
		t.Fatalf("process failed")
	}
	entry, _ := f.host.Assets(enqueue.Script).Entry("nums")
	want := map[string]string{"data-i8": "-3", "data-u64": "18", "data-f32": "1.5", "data-u8": "2", "data-level": "4"}
	if len(entry.Attributes) != len(want) {
		t.Fatalf("expected %v, got %v", want, entry.Attributes)
	}
	for key, value := range want {
		if entry.Attributes[key] != value {
			t.Fatalf("expected %v, got %v", want, entry.Attributes)
		}
	}
	if _, ok := f.logs.find(slog.LevelWarn, "not scalar"); ok {
		t.Fatalf("expected no scalar warning for numeric kinds")
	}
}

func TestManagedAttributesPerType(t *testing.T) {
	if got := strings.Join(enqueue.ManagedAttributes(enqueue.Style, ""), ","); got != "href,id,media,rel" {
		t.Fatalf("unexpected style attributes: %s", got)
	}
	if got := strings.Join(enqueue.ManagedAttributes(enqueue.Script, ""), ","); got != "id,src" {
		t.Fatalf("unexpected script attributes: %s", got)
	}
	if got := strings.Join(enqueue.ManagedAttributes(enqueue.Script, "async"), ","); got != "id,src,async,defer" {
		t.Fatalf("unexpected strategy attributes: %s", got)
	}
}

func TestProcessReplaceDeregistersBeforeRegistering(t *testing.T) {
	f := newFixture(t)
	reg := f.host.Assets(enqueue.Script)
	reg.Seed("lodash", false)

	a := enqueue.Asset{Handle: "lodash", Src: enqueue.SourceURL("/lodash.js"), Replace: true}
	if _, ok := f.e.Process(&a, enqueue.Script, "", true, false); !ok {
		t.Fatalf("process failed")
	}
	var ops []string
	for _, call := range reg.Calls() {
		ops = append(ops, call.Op)
	}
	if strings.Join(ops, ",") != "deregister,register" {
		t.Fatalf("expected deregister then register, got %v", ops)
	}
}

func TestProcessTwiceEnqueuesOnce(t *testing.T) {
	f := newFixture(t)
	a := script("app")
	first, ok := f.e.Process(&a, enqueue.Script, "", true, true)
	if !ok {
		t.Fatalf("first process failed")
	}
	second, ok := f.e.Process(&a, enqueue.Script, "", true, true)
	if !ok || first != "app" || second != "app" {
		t.Fatalf("expected both calls to return the handle, got %q %q", first, second)
	}
	reg := f.host.Assets(enqueue.Script)
	if reg.Count("enqueue", "app") != 1 || reg.Count("register", "app") != 1 {
		t.Fatalf("expected one register and one enqueue, calls: %v", reg.Calls())
	}
}

func TestDrainRegistersDependencyOnlyBundle(t *testing.T) {
	f := newFixture(t, enqueue.WithPaths(enqueue.StaticPaths{URL: "https://example.test", Root: t.TempDir()}))
	if err := f.e.Add(enqueue.Script, enqueue.Asset{
		Handle:    "c",
		Src:       enqueue.NoSource(),
		Deps:      []string{"a", "b"},
		CacheBust: true,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.e.DrainImmediate(enqueue.Script); err != nil {
		t.Fatalf("drain: %v", err)
	}
	entry, ok := f.host.Assets(enqueue.Script).Entry("c")
	if !ok || !entry.Enqueued || entry.Args.Src != "" || entry.Args.Version != "" {
		t.Fatalf("expected source-less registration enqueued, got %+v", entry)
	}
	if _, ok := f.logs.find(slog.LevelWarn, "cache busting"); ok {
		t.Fatalf("expected no file lookup for a source-less asset")
	}
}
