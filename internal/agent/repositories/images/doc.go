// Package images persists ImageRecord rows: the file reference, the
// write-time checksum and the per-image sync state.
//
// An image becomes uploadable only after its parent event is CONFIRMED, so
// the server can always resolve the parent by id. Deletion is guarded in SQL
// by status and age, never by the caller's word alone.
package images
