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

package dispatch

import (
	"github.com/telekom/bulkmail/pkg/contacts"
)

const (
	// DefaultSMTPHost and DefaultSMTPPort are used when a request leaves them unset.
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587

	// HealthPath and SendPath are relative to the backend base URL.
	HealthPath = "api/health"
	SendPath   = "api/send"

	// RecipientStatusSent marks a delivered recipient; any other value is a failure.
	RecipientStatusSent   = "sent"
	RecipientStatusFailed = "failed"

	ResponseStatusSuccess = "success"
	ResponseStatusError   = "error"
)

// SMTPConfig carries the sender identity and relay used by the backend.
type SMTPConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// Template is the subject and body every contact's message is derived from.
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// BatchRequest is the full payload of a single send call.
type BatchRequest struct {
	SMTPConfig SMTPConfig         `json:"smtp_config"`
	Template   Template           `json:"template"`
	Contacts   []contacts.Contact `json:"contacts"`
}

// HostOrDefault returns the configured SMTP host or DefaultSMTPHost.
func (c SMTPConfig) HostOrDefault() string {
	if c.Host == "" {
		return DefaultSMTPHost
	}
	return c.Host
}

// PortOrDefault returns the configured SMTP port or DefaultSMTPPort.
func (c SMTPConfig) PortOrDefault() int {
	if c.Port <= 0 {
		return DefaultSMTPPort
	}
	return c.Port
}

// RecipientResult is the per-contact delivery report returned by the backend.
type RecipientResult struct {
	Email  string `json:"email" yaml:"email"`
	Status string `json:"status" yaml:"status"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Delivered reports whether the backend accepted the message for this recipient.
func (r RecipientResult) Delivered() bool {
	return r.Status == RecipientStatusSent
}

// Response is the structured body of a send reply. Results is nil when the
// backend did not report per-recipient details.
type Response struct {
	Status  string            `json:"status,omitempty"`
	Message string            `json:"message"`
	Results []RecipientResult `json:"results,omitempty"`
}

// HealthResponse is the body of a health reply.
type HealthResponse struct {
	Status string `json:"status"`
}
