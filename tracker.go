package enqueue

type hookKey struct {
	hook     string
	priority int
}

// hookTracker records which hooks already have a host callback. Entries are
// set before the callback can fire and are never cleared.
type hookTracker struct {
	deferred map[hookKey]bool
	external map[string]bool
}

func newHookTracker() *hookTracker {
	return &hookTracker{
		deferred: map[hookKey]bool{},
		external: map[string]bool{},
	}
}

// markDeferred returns true the first time (hook, priority) is seen.
func (t *hookTracker) markDeferred(hook string, priority int) bool {
	key := hookKey{hook: hook, priority: priority}
	if t.deferred[key] {
		return false
	}
	t.deferred[key] = true
	return true
}

// markExternal returns true the first time hook is seen.
func (t *hookTracker) markExternal(hook string) bool {
	if t.external[hook] {
		return false
	}
	t.external[hook] = true
	return true
}

func (t *hookTracker) wiredDeferred(hook string, priority int) bool {
	return t.deferred[hookKey{hook: hook, priority: priority}]
}

func (t *hookTracker) wiredExternal(hook string) bool {
	return t.external[hook]
}
