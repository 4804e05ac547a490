package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies how a dispatch call ended.
type Kind string

const (
	// Succeeded means the backend answered with a 2xx status.
	Succeeded Kind = "succeeded"
	// RemoteFailure means the backend was reached and reported a failure.
	RemoteFailure Kind = "remote-failure"
	// TransportFailure means no response was received at all.
	TransportFailure Kind = "transport-failure"
)

// Outcome is the result of one dispatch call. Results is only populated for
// Succeeded outcomes whose body carried per-recipient details.
type Outcome struct {
	Kind       Kind              `json:"kind" yaml:"kind"`
	Message    string            `json:"message,omitempty" yaml:"message,omitempty"`
	Results    []RecipientResult `json:"results,omitempty" yaml:"results,omitempty"`
	StatusCode int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Cause      error             `json:"-" yaml:"-"`
}

// Err returns nil for Succeeded outcomes and a descriptive error otherwise.
func (o Outcome) Err() error {
	switch o.Kind {
	case Succeeded:
		return nil
	case TransportFailure:
		return &TransportError{Cause: o.Cause}
	default:
		return &RemoteError{StatusCode: o.StatusCode, Message: o.Message}
	}
}

// RemoteError is the error form of a RemoteFailure outcome.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend reported failure (%d): %s", e.StatusCode, e.Message)
}

// TransportError is the error form of a TransportFailure outcome.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportFailure builds the outcome for a call that never got a response.
func NewTransportFailure(cause error) Outcome {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return Outcome{Kind: TransportFailure, Message: msg, Cause: cause}
}

// DecodeResponse attempts a structured decode of body and, when that fails,
// falls back to a message-only Response carrying the raw text. The second
// return value reports whether the structured decode succeeded.
func DecodeResponse(body []byte) (Response, bool) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{Message: strings.TrimSpace(string(body))}, false
	}
	return resp, true
}

// Interpret classifies a received response. It never fails: a body that is
// not JSON becomes the outcome message as is.
func Interpret(statusCode int, statusLine string, body []byte) Outcome {
	resp, _ := DecodeResponse(body)

	msg := resp.Message
	if msg == "" {
		msg = statusText(statusCode, statusLine)
	}

	if statusCode >= 200 && statusCode < 300 {
		return Outcome{
			Kind:       Succeeded,
			Message:    msg,
			Results:    resp.Results,
			StatusCode: statusCode,
		}
	}
	return Outcome{
		Kind:       RemoteFailure,
		Message:    msg,
		StatusCode: statusCode,
	}
}

func statusText(code int, line string) string {
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", code)
}
