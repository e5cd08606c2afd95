// Package store is the agent's local durable buffer. It is the only source
// of truth for what the server has and has not confirmed.
//
// # Guarantees
//
//   - CreateCaptureEvent writes an event, its readings and its images in one
//     transaction; a crash leaves all of them or none.
//   - Status changes are compare-and-set on the current status and follow
//     PENDING -> UPLOADING -> CONFIRMED or UPLOADING -> FAILED -> PENDING.
//   - Images are deleted only when CONFIRMED and captured before the cutoff;
//     the condition is enforced by the DELETE statement itself.
//   - Listings are oldest-first.
//
// The database handle is limited to a single connection, which makes it the
// one serialization point for the capture, sync and cleanup loops. No call
// holds a transaction open beyond its own return.
package store
