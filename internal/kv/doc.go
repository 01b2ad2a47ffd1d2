// Package kv provides the ordered key-value engines projectd keeps its state in.
//
// Engine Contract:
//
// Every engine offers the same primitive operations:
//   - Get / Set / Delete: point operations, atomic per key
//   - CompareAndSwap: conditional write used for counters and read-modify-write updates
//   - Scan: ordered prefix enumeration over a consistent snapshot
//
// Key Layout:
//
// Keys are namespaced byte strings joined with '/':
//   - projects/{id}
//   - meta/nextProjectId
//   - bannedUsers/{user_id}
//
// Engines:
//   - pebble: persistent engine on github.com/cockroachdb/pebble (default)
//   - memory: map-backed engine for tests and ephemeral runs
package kv
