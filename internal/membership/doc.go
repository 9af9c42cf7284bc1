// Package membership implements consumer group sessions on top of NATS KV.
//
// # Design Overview
//
// Every worker thread owns one Session. A session is a member record stored
// under "{group}.{member}" in a KV bucket whose TTL equals the group session
// timeout:
//
//   - Join writes the record (Create for dynamic members, Put for static
//     members so a restarted instance fences its previous incarnation)
//   - The keep-alive loop rewrites the record every heartbeat interval using a
//     revision-checked Update, which resets the entry age
//   - Close stops the keep-alive only; the record expires at the session timeout
//   - RequestDeparture stops the keep-alive and enqueues a delete on the Departer
//
// # Departure Queue
//
// The Departer is the coordination-service side of "leave group". It owns a
// bounded channel consumed by a single goroutine. Submitting never blocks: a
// full queue fails the request immediately. Each member is deleted at most once.
// The consumer waits for the session keep-alive to quiesce before deleting, so
// an in-flight heartbeat cannot resurrect the record.
//
// # Key Format
//
//	{group}.{memberKey}
//
// memberKey is the group instance ID for static members and the member ID
// otherwise. Both tokens are sanitized to the KV key alphabet.
package membership
