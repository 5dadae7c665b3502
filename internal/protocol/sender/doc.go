// Package sender owns the exclusive send path for command frames.
//
// Ownership boundary:
// - permit acquisition and guaranteed release
// - ordered write+flush of encoded chunks
// - transport error wrapping
//
// The channel is borrowed: this package never dials, closes or retries.
package sender
