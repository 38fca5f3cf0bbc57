package enqueue

import "sort"

// queue owns the three partitions for one asset type.
type queue struct {
	immediate []*Asset
	deferred  map[string]map[int][]*Asset
	external  map[string]map[string][]Inline
}

func newQueue() *queue {
	return &queue{
		deferred: map[string]map[int][]*Asset{},
		external: map[string]map[string][]Inline{},
	}
}

func (q *queue) pushImmediate(a *Asset) {
	q.immediate = append(q.immediate, a)
}

// swapImmediate hands back the current immediate queue and leaves an empty one.
func (q *queue) swapImmediate() []*Asset {
	drained := q.immediate
	q.immediate = nil
	return drained
}

func (q *queue) pushDeferred(hook string, priority int, a *Asset) {
	buckets, ok := q.deferred[hook]
	if !ok {
		buckets = map[int][]*Asset{}
		q.deferred[hook] = buckets
	}
	buckets[priority] = append(buckets[priority], a)
}

// takeDeferred removes and returns the (hook, priority) bucket, pruning the
// hook key once no priorities remain.
func (q *queue) takeDeferred(hook string, priority int) []*Asset {
	buckets, ok := q.deferred[hook]
	if !ok {
		return nil
	}
	bucket := buckets[priority]
	delete(buckets, priority)
	if len(buckets) == 0 {
		delete(q.deferred, hook)
	}
	return bucket
}

func (q *queue) findImmediate(handle string) *Asset {
	for _, a := range q.immediate {
		if a.Handle == handle {
			return a
		}
	}
	return nil
}

// findDeferred scans hooks and priorities in sorted order so lookups are
// deterministic when a handle was queued more than once.
func (q *queue) findDeferred(handle string) (*Asset, string, int) {
	for _, hook := range sortedKeys(q.deferred) {
		buckets := q.deferred[hook]
		priorities := make([]int, 0, len(buckets))
		for priority := range buckets {
			priorities = append(priorities, priority)
		}
		sort.Ints(priorities)
		for _, priority := range priorities {
			for _, a := range buckets[priority] {
				if a.Handle == handle {
					return a, hook, priority
				}
			}
		}
	}
	return nil, "", 0
}

func (q *queue) pushExternal(hook, parent string, inline Inline) {
	parents, ok := q.external[hook]
	if !ok {
		parents = map[string][]Inline{}
		q.external[hook] = parents
	}
	parents[parent] = append(parents[parent], inline)
}

// takeExternal removes every parent queued under hook.
func (q *queue) takeExternal(hook string) map[string][]Inline {
	parents := q.external[hook]
	delete(q.external, hook)
	return parents
}

// purge removes handle from every partition and reports how many entries
// were dropped.
func (q *queue) purge(handle string) int {
	removed := 0
	kept := q.immediate[:0]
	for _, a := range q.immediate {
		if a.Handle == handle {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	q.immediate = kept

	for hook, buckets := range q.deferred {
		for priority, bucket := range buckets {
			filtered := bucket[:0]
			for _, a := range bucket {
				if a.Handle == handle {
					removed++
					continue
				}
				filtered = append(filtered, a)
			}
			if len(filtered) == 0 {
				delete(buckets, priority)
				continue
			}
			buckets[priority] = filtered
		}
		if len(buckets) == 0 {
			delete(q.deferred, hook)
		}
	}

	for hook, parents := range q.external {
		if entries, ok := parents[handle]; ok {
			removed += len(entries)
			delete(parents, handle)
		}
		if len(parents) == 0 {
			delete(q.external, hook)
		}
	}
	return removed
}

func (q *queue) reset() {
	q.immediate = nil
	q.deferred = map[string]map[int][]*Asset{}
	q.external = map[string]map[string][]Inline{}
}

// QueueSnapshot is a read-only view of the handles waiting in each partition.
type QueueSnapshot struct {
	Immediate []string
	Deferred  map[string]map[int][]string
	External  map[string]map[string]int
}

// Empty reports whether nothing is queued.
func (s QueueSnapshot) Empty() bool {
	return len(s.Immediate) == 0 && len(s.Deferred) == 0 && len(s.External) == 0
}

func (q *queue) snapshot() QueueSnapshot {
	out := QueueSnapshot{
		Deferred: map[string]map[int][]string{},
		External: map[string]map[string]int{},
	}
	for _, a := range q.immediate {
		out.Immediate = append(out.Immediate, a.Handle)
	}
	for hook, buckets := range q.deferred {
		out.Deferred[hook] = map[int][]string{}
		for priority, bucket := range buckets {
			handles := make([]string, 0, len(bucket))
			for _, a := range bucket {
				handles = append(handles, a.Handle)
			}
			out.Deferred[hook][priority] = handles
		}
	}
	for hook, parents := range q.external {
		out.External[hook] = map[string]int{}
		for parent, entries := range parents {
			out.External[hook][parent] = len(entries)
		}
	}
	if len(out.Deferred) == 0 {
		out.Deferred = nil
	}
	if len(out.External) == 0 {
		out.External = nil
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
