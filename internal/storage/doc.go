// Package storage provides the durable state layer for the agent.
//
// It currently persists:
//   - Schedule definitions (so cron and one-shot alarms survive restarts)
//   - Staged confirmations, keyed by actor (so a pending confirmation can be
//     resolved after a restart)
//
// Records are stored as opaque JSON blobs; the owning packages define the
// shape and this layer only guarantees ordering and identity.
package storage
