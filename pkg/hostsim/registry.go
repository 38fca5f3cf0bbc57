package hostsim

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	enqueue "github.com/goliatone/go-enqueue"
)

// Call is one journal entry.
type Call struct {
	Type     enqueue.AssetType
	Op       string
	Handle   string
	Hook     string
	Priority int
	Detail   string
}

func (c Call) String() string {
	var b strings.Builder
	if c.Type != "" {
		b.WriteString(string(c.Type))
		b.WriteByte(' ')
	}
	b.WriteString(c.Op)
	b.WriteByte(' ')
	b.WriteString(c.Handle)
	if c.Op == "add_action" {
		fmt.Fprintf(&b, " @%d", c.Priority)
	}
	if c.Detail != "" {
		b.WriteString(" ")
		b.WriteString(c.Detail)
	}
	if c.Hook != "" {
		fmt.Fprintf(&b, " [%s]", c.Hook)
	}
	return b.String()
}

// Entry is one registered handle.
type Entry struct {
	Args       enqueue.RegisterArgs
	Enqueued   bool
	Before     []string
	After      []string
	Attributes map[string]string
}

// Registry implements enqueue.Registry and enqueue.AttributeSetter.
type Registry struct {
	host    *Host
	kind    enqueue.AssetType
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string

	// FailRegister, FailEnqueue and FailInline make the named handles refuse
	// the respective call.
	FailRegister map[string]bool
	FailEnqueue  map[string]bool
	FailInline   map[string]bool
	// Sticky handles ignore Dequeue and Deregister.
	Sticky map[string]bool
	// NoAttributes makes SetAttributes refuse every call.
	NoAttributes bool
}

func newRegistry(host *Host, t enqueue.AssetType) *Registry {
	return &Registry{
		host:         host,
		kind:         t,
		entries:      map[string]*Entry{},
		FailRegister: map[string]bool{},
		FailEnqueue:  map[string]bool{},
		FailInline:   map[string]bool{},
		Sticky:       map[string]bool{},
	}
}

// Seed registers a handle as another component would, bypassing the journal.
func (r *Registry) Seed(handle string, enqueued bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[handle]; !ok {
		r.order = append(r.order, handle)
	}
	r.entries[handle] = &Entry{Args: enqueue.RegisterArgs{Handle: handle}, Enqueued: enqueued}
}

// Register implements enqueue.Registry. Registering a known handle fails.
func (r *Registry) Register(args enqueue.RegisterArgs) bool {
	r.note(Call{Op: "register", Handle: args.Handle, Detail: describe(args)})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailRegister[args.Handle] {
		return false
	}
	if _, ok := r.entries[args.Handle]; ok {
		return false
	}
	args.Deps = append([]string(nil), args.Deps...)
	r.entries[args.Handle] = &Entry{Args: args}
	r.order = append(r.order, args.Handle)
	return true
}

// Enqueue implements enqueue.Registry. Unknown handles fail.
func (r *Registry) Enqueue(handle string) bool {
	r.note(Call{Op: "enqueue", Handle: handle})
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[handle]
	if !ok || r.FailEnqueue[handle] {
		return false
	}
	entry.Enqueued = true
	return true
}

// Dequeue implements enqueue.Registry.
func (r *Registry) Dequeue(handle string) {
	r.note(Call{Op: "dequeue", Handle: handle})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Sticky[handle] {
		return
	}
	if entry, ok := r.entries[handle]; ok {
		entry.Enqueued = false
	}
}

// Deregister implements enqueue.Registry.
func (r *Registry) Deregister(handle string) {
	r.note(Call{Op: "deregister", Handle: handle})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Sticky[handle] {
		return
	}
	if _, ok := r.entries[handle]; !ok {
		return
	}
	delete(r.entries, handle)
	for i, name := range r.order {
		if name == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// IsRegistered implements enqueue.Registry.
func (r *Registry) IsRegistered(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[handle]
	return ok
}

// IsEnqueued implements enqueue.Registry.
func (r *Registry) IsEnqueued(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[handle]
	return ok && entry.Enqueued
}

// AddInline implements enqueue.Registry. Unknown handles fail.
func (r *Registry) AddInline(handle, content string, position enqueue.Position) bool {
	r.note(Call{Op: "inline", Handle: handle, Detail: string(position)})
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[handle]
	if !ok || r.FailInline[handle] {
		return false
	}
	if position == enqueue.Before {
		entry.Before = append(entry.Before, content)
	} else {
		entry.After = append(entry.After, content)
	}
	return true
}

// SetAttributes implements enqueue.AttributeSetter.
func (r *Registry) SetAttributes(handle string, attributes map[string]string) bool {
	r.note(Call{Op: "attributes", Handle: handle, Detail: describeAttributes(attributes)})
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[handle]
	if !ok || r.NoAttributes {
		return false
	}
	if entry.Attributes == nil {
		entry.Attributes = map[string]string{}
	}
	for key, value := range attributes {
		entry.Attributes[key] = value
	}
	return true
}

// Entry returns a copy of the registration for handle.
func (r *Registry) Entry(handle string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[handle]
	if !ok {
		return Entry{}, false
	}
	out := *entry
	out.Before = append([]string(nil), entry.Before...)
	out.After = append([]string(nil), entry.After...)
	return out, true
}

// Enqueued lists enqueued handles in registration order.
func (r *Registry) Enqueued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var handles []string
	for _, handle := range r.order {
		if r.entries[handle].Enqueued {
			handles = append(handles, handle)
		}
	}
	return handles
}

// Calls returns the journal entries for this registry.
func (r *Registry) Calls() []Call {
	var calls []Call
	for _, call := range r.host.Journal() {
		if call.Type == r.kind {
			calls = append(calls, call)
		}
	}
	return calls
}

// Count reports how many times op was called for handle.
func (r *Registry) Count(op, handle string) int {
	n := 0
	for _, call := range r.Calls() {
		if call.Op == op && call.Handle == handle {
			n++
		}
	}
	return n
}

func (r *Registry) note(call Call) {
	call.Type = r.kind
	r.host.log(call)
}

func describe(args enqueue.RegisterArgs) string {
	parts := []string{}
	if args.Src != "" {
		parts = append(parts, "src="+args.Src)
	}
	if args.Version != "" {
		parts = append(parts, "ver="+args.Version)
	}
	if len(args.Deps) > 0 {
		parts = append(parts, "deps="+strings.Join(args.Deps, ","))
	}
	if args.Strategy != "" {
		parts = append(parts, "strategy="+args.Strategy)
	}
	if args.InFooter {
		parts = append(parts, "footer")
	}
	if args.Media != "" {
		parts = append(parts, "media="+args.Media)
	}
	return strings.Join(parts, " ")
}

func describeAttributes(attributes map[string]string) string {
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+attributes[key])
	}
	return strings.Join(parts, ",")
}
