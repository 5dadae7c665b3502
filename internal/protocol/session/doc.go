// Package session owns client<->server connection settings.
//
// Ownership boundary:
// - dial/write timeouts
// - reconnect and resend backoff
// - transport security (tls/mtls) validation and tls.Config construction
package session
