// Package client owns the command client.
//
// Ownership boundary:
// - connection setup to the command server (tcp, optional tls/mtls)
// - synchronous exclusive sends over the shared stream
// - asynchronous sends through a dispatch queue
//
// Lifecycle order:
// - New -> Connect -> Login? -> Send*/SendUnthreaded* -> Disconnect|Close
package client
