// Package cmd implements the cobra command tree for the bmctl CLI, including
// the send pipeline, backend health checks, contact previews, configuration
// management, and shell completion.
package cmd
