package hostsim

import (
	"math"
	"sort"
	"sync"

	enqueue "github.com/goliatone/go-enqueue"
)

type subscription struct {
	seq      int
	priority int
	task     enqueue.Task
}

// Host implements enqueue.Host.
type Host struct {
	mu         sync.Mutex
	seq        int
	hooks      map[string][]subscription
	fired      map[string]int
	stack      []string
	registries map[enqueue.AssetType]*Registry
	journal    []Call
}

// New returns a host exposing a registry for every asset type.
func New() *Host {
	h := &Host{
		hooks:      map[string][]subscription{},
		fired:      map[string]int{},
		registries: map[enqueue.AssetType]*Registry{},
	}
	for _, t := range []enqueue.AssetType{enqueue.Script, enqueue.Style, enqueue.ScriptModule} {
		h.registries[t] = newRegistry(h, t)
	}
	return h
}

// Without removes the registry for t, as a host lacking module support would.
func (h *Host) Without(t enqueue.AssetType) *Host {
	delete(h.registries, t)
	return h
}

// AddAction subscribes task to hook.
func (h *Host) AddAction(hook string, priority int, task enqueue.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.hooks[hook] = append(h.hooks[hook], subscription{seq: h.seq, priority: priority, task: task})
	h.record(Call{Op: "add_action", Handle: hook, Priority: priority})
}

// CurrentAction returns the innermost hook being fired.
func (h *Host) CurrentAction() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return ""
	}
	return h.stack[len(h.stack)-1]
}

// DoAction fires hook. Tasks run in ascending priority, ties in subscription
// order. Tasks subscribed to the hook while it fires run in the same pass
// when their priority has not been reached yet.
func (h *Host) DoAction(hook string) {
	h.mu.Lock()
	h.fired[hook]++
	h.stack = append(h.stack, hook)
	h.record(Call{Op: "do_action", Handle: hook})
	h.mu.Unlock()

	done := map[int]bool{}
	current := math.MinInt
	for {
		next, ok := h.nextSubscription(hook, current, done)
		if !ok {
			break
		}
		done[next.seq] = true
		current = next.priority
		if next.task != nil {
			next.task.Run()
		}
	}

	h.mu.Lock()
	h.stack = h.stack[:len(h.stack)-1]
	h.mu.Unlock()
}

func (h *Host) nextSubscription(hook string, floor int, done map[int]bool) (subscription, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := make([]subscription, 0, len(h.hooks[hook]))
	for _, sub := range h.hooks[hook] {
		if !done[sub.seq] && sub.priority >= floor {
			pending = append(pending, sub)
		}
	}
	if len(pending) == 0 {
		return subscription{}, false
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].priority != pending[j].priority {
			return pending[i].priority < pending[j].priority
		}
		return pending[i].seq < pending[j].seq
	})
	return pending[0], true
}

// Fired reports how many times hook was fired.
func (h *Host) Fired(hook string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired[hook]
}

// ActionCount reports how many tasks are subscribed to hook.
func (h *Host) ActionCount(hook string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks[hook])
}

// Hooks lists hooks with at least one subscription, sorted.
func (h *Host) Hooks() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	hooks := make([]string, 0, len(h.hooks))
	for hook := range h.hooks {
		hooks = append(hooks, hook)
	}
	sort.Strings(hooks)
	return hooks
}

// Registry implements enqueue.Host.
func (h *Host) Registry(t enqueue.AssetType) (enqueue.Registry, bool) {
	reg, ok := h.registries[t]
	if !ok {
		return nil, false
	}
	return reg, true
}

// Assets returns the concrete registry for t, or nil.
func (h *Host) Assets(t enqueue.AssetType) *Registry {
	return h.registries[t]
}

// Journal returns every host call in order.
func (h *Host) Journal() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.journal...)
}

// record appends to the journal; callers hold mu.
func (h *Host) record(call Call) {
	if len(h.stack) > 0 && call.Hook == "" {
		call.Hook = h.stack[len(h.stack)-1]
	}
	h.journal = append(h.journal, call)
}

func (h *Host) log(call Call) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(call)
}
