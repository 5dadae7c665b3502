// Package server is the reference receiver for command frames.
//
// Ownership boundary:
// - accept loop and per-connection frame decode
// - handler dispatch for decoded commands
// - admin http surface (health, metrics, recent commands)
package server
