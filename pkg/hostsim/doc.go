// Package hostsim is an in-memory host runtime: prioritized hooks, per-type
// asset registries and a call journal. It backs the enqueue-plan CLI and
// the tests of packages that talk to a host.
package hostsim
