/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package contacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Delimiter separates fields in both header and data rows.
	Delimiter = ","
	// EmailField is the header field holding the recipient address.
	EmailField = "email"
)

const (
	ReasonMissingRows = "missing header or data rows"
	ReasonNoContacts  = "no valid contacts"
)

// ValidationError reports operator input that was rejected before any
// network call was made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Schema is the ordered list of field names captured from the header row.
// It is shared by every Contact parsed in the same run.
type Schema struct {
	fields []string
	index  map[string]int
}

func newSchema(fields []string) *Schema {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		// first occurrence wins for lookups
		if _, ok := idx[f]; !ok {
			idx[f] = i
		}
	}
	return &Schema{fields: fields, index: idx}
}

// Fields returns a copy of the header field names in order.
func (s *Schema) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of header fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Contact is one recipient row. Values are held positionally against the
// run's Schema, so every Contact carries exactly the header's field set.
type Contact struct {
	schema *Schema
	values []string
}

// Get returns the value for field and whether the field exists.
func (c Contact) Get(field string) (string, bool) {
	if c.schema == nil {
		return "", false
	}
	i, ok := c.schema.index[field]
	if !ok {
		return "", false
	}
	return c.values[i], true
}

// Email returns the value of the email field, or "" if the header has none.
func (c Contact) Email() string {
	v, _ := c.Get(EmailField)
	return v
}

// Fields returns the header field names in order.
func (c Contact) Fields() []string {
	if c.schema == nil {
		return nil
	}
	return c.schema.Fields()
}

// Values returns a copy of the values in header order.
func (c Contact) Values() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Map returns the contact as a plain map. Ordering is lost.
func (c Contact) Map() map[string]string {
	out := make(map[string]string, len(c.values))
	if c.schema == nil {
		return out
	}
	for i, f := range c.schema.fields {
		out[f] = c.values[i]
	}
	return out
}

// MarshalJSON encodes the contact as an object whose keys follow header order.
func (c Contact) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if c.schema != nil {
		for i, f := range c.schema.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(c.values[i])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the contact as a mapping whose keys follow header order.
func (c Contact) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if c.schema == nil {
		return node, nil
	}
	for i, f := range c.schema.fields {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.values[i]},
		)
	}
	return node, nil
}

// Parse splits raw into a header and data rows. Rows whose field count
// differs from the header are dropped without being reported; only input
// without data rows, or with no surviving rows, is an error.
func Parse(raw string) ([]Contact, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) < 2 {
		return nil, &ValidationError{Reason: ReasonMissingRows}
	}

	header := strings.Split(lines[0], Delimiter)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	schema := newSchema(header)

	var out []Contact
	for _, line := range lines[1:] {
		row := strings.Split(line, Delimiter)
		if len(row) != schema.Len() {
			continue
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		out = append(out, Contact{schema: schema, values: row})
	}

	if len(out) == 0 {
		return nil, &ValidationError{Reason: ReasonNoContacts}
	}
	return out, nil
}

// UnmarshalJSON decodes a JSON object, keeping key order as the schema.
// Non-string scalars are kept in their literal form; null becomes "".
func (c *Contact) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("contact must be a JSON object")
	}
	var fields, values []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected contact key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("contact field %q: %w", key, err)
		}
		fields = append(fields, key)
		values = append(values, scalarString(raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = Contact{schema: newSchema(fields), values: values}
	return nil
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
