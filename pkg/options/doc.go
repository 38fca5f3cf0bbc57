// Package options manages one grouped option: a single stored value that
// holds many keys, validated against a schema and written through a chain
// of write gates.
//
// A Group is bound to a storage scope (site, network, blog or user). Reads
// come from memory; Set and Delete persist immediately while Stage batches
// changes until Commit. Every mutation builds a WriteContext first and asks
// each WriteGate in order; a veto leaves memory and storage untouched.
//
//	store := options.NewMemoryStore()
//	group, _ := options.Open(ctx, "my_plugin",
//		options.NewStorageContext(layering.Blog("3"), store),
//		options.WithSchema(options.Schema{
//			"enabled": {Default: true},
//			"api_key": {Rule: "size(value) == 32"},
//		}),
//		options.WithGates(options.RuleGate("admins-only", "actor != ''")),
//	)
//	err := group.Set(options.ContextWithActor(ctx, "7"), "enabled", false)
package options
