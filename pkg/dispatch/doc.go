// Package dispatch defines the batch send wire format shared by the bmctl
// client and the bulkmail backend, and the tolerant interpretation of send
// responses into dispatch outcomes.
package dispatch
