// Package cli defines the flags of the bulkmail backend binary. Every flag
// falls back to a BULKMAIL_* environment variable.
package cli
