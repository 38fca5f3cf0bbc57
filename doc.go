// Package enqueue stages script, style and script-module definitions against
// a hook-driven host runtime (WordPress style) and registers/enqueues them
// exactly once when the matching hook fires.
//
// Data flow:
//
//	Add -> Stage -> immediate queue --DrainImmediate--> Process
//	             -> deferred[hook][priority] --host fires hook--> Process
//	AddInline -> parent record | external[hook][parent] --host fires hook--> Registry.AddInline
//
// Scheduling:
//
//	Stage registers one host callback per distinct (hook, priority) the first
//	time a record with that pair is seen. There is no look-ahead over future
//	additions; the ledger of wired pairs is never cleared, so repeated Stage
//	calls never duplicate a subscription. A bucket fired twice is a no-op.
//
// Concurrency:
//
//	An Enqueuer is driven by a single host goroutine and is not safe for
//	concurrent use. Idempotency checks (already registered, already enqueued,
//	already wired) take the place of locking.
package enqueue
