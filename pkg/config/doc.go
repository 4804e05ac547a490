// Package config loads the bulkmail backend configuration file.
package config
