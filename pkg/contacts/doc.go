// Package contacts turns delimited operator input into contact records whose
// field set is defined once by the header row.
package contacts
