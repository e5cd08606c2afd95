// Package services contains the agent's four periodic workers (capture,
// sync, heartbeat, retention) and the loop that drives them.
//
// Each worker exposes a Tick method that performs one iteration and reports
// an Outcome; Run calls Tick on a fixed interval, isolates panics and never
// lets a failed tick stop the loop. Workers share the store only through its
// transactional operations and never hold a transaction across network I/O.
package services
