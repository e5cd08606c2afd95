// Package client implements the agent's outbound side of the server
// protocol: the HTTP API (heartbeat, idempotent metadata upload, checksummed
// image upload), an S3 image sink and an MQTT heartbeat beacon.
//
// Every error returned wraps one of common.ErrNetwork, common.ErrIntegrity
// or common.ErrStillProcessing, except local file errors which wrap
// common.ErrStorage.
package client
