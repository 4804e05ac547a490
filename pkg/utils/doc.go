// Package utils provides small shared helpers for the bulkmail backend.
package utils
