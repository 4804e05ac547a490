// Package apiresponses provides the JSON response helpers shared by the
// bulkmail backend handlers and middleware.
package apiresponses
