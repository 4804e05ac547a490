package mail

import (
	"strings"

	"github.com/telekom/bulkmail/pkg/contacts"
)

// Placeholder returns the token that Personalize replaces for field.
func Placeholder(field string) string {
	return "{{" + field + "}}"
}

// Personalize replaces every {{field}} in text with the contact's value for
// that field. Fields are applied in header order and unknown placeholders are
// left as they are.
func Personalize(text string, c contacts.Contact) string {
	values := c.Values()
	for i, field := range c.Fields() {
		text = strings.ReplaceAll(text, Placeholder(field), values[i])
	}
	return text
}
