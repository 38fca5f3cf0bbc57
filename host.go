package enqueue

// Task is a unit of work the host runs when a hook fires.
type Task interface {
	Run()
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func()

// Run calls f.
func (f TaskFunc) Run() {
	if f != nil {
		f()
	}
}

// Scheduler subscribes tasks to host hooks. Tasks on one hook run in
// ascending priority; equal priorities run in subscription order.
type Scheduler interface {
	AddAction(hook string, priority int, task Task)
	// CurrentAction returns the hook being fired, or "" outside a hook.
	CurrentAction() string
}

// Registry is the host's per-type registration surface.
type Registry interface {
	Register(args RegisterArgs) bool
	Enqueue(handle string) bool
	Dequeue(handle string)
	Deregister(handle string)
	IsRegistered(handle string) bool
	IsEnqueued(handle string) bool
	AddInline(handle, content string, position Position) bool
}

// AttributeSetter is implemented by registries that can add custom HTML
// attributes to the rendered tag.
type AttributeSetter interface {
	SetAttributes(handle string, attributes map[string]string) bool
}

// Host bundles the scheduler with the registries it exposes.
type Host interface {
	Scheduler
	Registry(t AssetType) (Registry, bool)
}

// PathResolver maps asset URLs back onto the filesystem for cache busting.
type PathResolver interface {
	BaseURL() string
	ContentRoot() string
}

// StaticPaths is a PathResolver with fixed values.
type StaticPaths struct {
	URL  string
	Root string
}

// BaseURL implements PathResolver.
func (p StaticPaths) BaseURL() string { return p.URL }

// ContentRoot implements PathResolver.
func (p StaticPaths) ContentRoot() string { return p.Root }
