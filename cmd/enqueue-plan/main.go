// enqueue-plan loads an asset manifest, replays it against a simulated host
// and prints every call the host received, in order.
//
// By default the hooks of a normal request are fired for the manifest's
// context: the enqueue hook, the late print hooks, then shutdown. Use
// --fire to pick the hooks explicitly.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	enqueue "github.com/goliatone/go-enqueue"
	"github.com/goliatone/go-enqueue/pkg/activity"
	"github.com/goliatone/go-enqueue/pkg/hostsim"
	"github.com/goliatone/go-enqueue/pkg/manifest"
	"github.com/goliatone/go-enqueue/pkg/rules"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type planFlags struct {
	manifest    string
	context     string
	dev         bool
	fire        []string
	engine      string
	baseURL     string
	contentRoot string
	verbose     bool
	activity    bool
}

func run(args []string, stdout, stderr io.Writer) error {
	var flags planFlags
	flagSet := pflag.NewFlagSet("enqueue-plan", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&flags.manifest, "manifest", "m", "", "path to a YAML, JSON or JSONC asset manifest")
	flagSet.StringVar(&flags.context, "context", "", "lifecycle context (public, admin, login); overrides the manifest")
	flagSet.BoolVar(&flags.dev, "dev", false, "resolve development sources")
	flagSet.StringSliceVar(&flags.fire, "fire", nil, "hooks to fire, in order (default: the context's request hooks)")
	flagSet.StringVar(&flags.engine, "engine", "expr", "expression engine for when conditions (expr, cel, js)")
	flagSet.StringVar(&flags.baseURL, "base-url", "", "site URL used to map cache-busted sources onto files")
	flagSet.StringVar(&flags.contentRoot, "content-root", "", "directory that base-url maps onto")
	flagSet.BoolVarP(&flags.verbose, "verbose", "v", false, "write debug logs to stderr")
	flagSet.BoolVar(&flags.activity, "activity", false, "print activity events after the journal")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  enqueue-plan --manifest assets.yaml [flags]\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if flags.manifest == "" {
		return fmt.Errorf("--manifest is required")
	}

	m, err := manifest.Load(flags.manifest)
	if err != nil {
		return err
	}
	ctx := m.EnqueueContext()
	if flags.context != "" {
		if ctx, err = enqueue.ParseContext(flags.context); err != nil {
			return err
		}
	}

	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	evaluator, err := rules.New(flags.engine, rules.NewMemoryCache(), rules.NewFunctionRegistry())
	if err != nil {
		return err
	}

	capture := &activity.CaptureHook{}
	host := hostsim.New()
	opts := []enqueue.Option{
		enqueue.WithLogger(logger),
		enqueue.WithContext(ctx),
		enqueue.WithEnvironment(func() bool { return flags.dev }),
		enqueue.WithEvaluator(rules.Logged(evaluator, rules.SlogLogger(logger))),
		enqueue.WithActivity(activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: flags.activity})),
	}
	if flags.contentRoot != "" {
		opts = append(opts, enqueue.WithPaths(enqueue.StaticPaths{URL: flags.baseURL, Root: flags.contentRoot}))
	}
	e, err := enqueue.New(host, opts...)
	if err != nil {
		return err
	}

	applyErr := m.Apply(e)
	if applyErr != nil {
		logger.Warn("manifest applied with errors", slog.String("error", applyErr.Error()))
	}
	if err := manifest.DrainAll(e); err != nil {
		return err
	}

	hooks := flags.fire
	if len(hooks) == 0 {
		hooks = requestHooks(ctx)
	}
	for _, hook := range hooks {
		host.DoAction(strings.TrimSpace(hook))
	}

	for _, call := range host.Journal() {
		fmt.Fprintln(stdout, call.String())
	}
	if flags.activity {
		fmt.Fprintln(stdout)
		for _, event := range capture.Events {
			fmt.Fprintf(stdout, "%s %s\n", event.Verb, event.ObjectID)
		}
	}
	return applyErr
}

// requestHooks lists the hooks a host fires during one request for c.
func requestHooks(c enqueue.Context) []string {
	hooks := []string{c.EnqueueHook()}
	for _, t := range []enqueue.AssetType{enqueue.Style, enqueue.Script} {
		late := c.LateHook(t)
		if late != hooks[len(hooks)-1] {
			hooks = append(hooks, late)
		}
	}
	return append(hooks, enqueue.ShutdownHook)
}
