// Package webhook implements user-configured actions fired on pipeline
// events: HTTP calls or local commands, with template substitution and
// bounded retry.
package webhook

import (
	"encoding/json"
	"time"
)

// Trigger is the event kind that activates matching definitions.
type Trigger string

const (
	TriggerDownloadComplete Trigger = "download_complete"
	TriggerResolveSuccess   Trigger = "resolve_success"
	TriggerResolveFailed    Trigger = "resolve_failed"
)

// Kind selects how a definition executes.
type Kind string

const (
	KindHTTP    Kind = "http"
	KindCommand Kind = "command"
)

// BodyType selects how an HTTP request body is serialized.
type BodyType string

const (
	BodyMultipart BodyType = "multipart"
	BodyJSON      BodyType = "json"
	BodyForm      BodyType = "form"
	BodyRaw       BodyType = "raw"
)

// FieldKind distinguishes text fields from file uploads in multipart bodies.
type FieldKind string

const (
	FieldText FieldKind = "text"
	FieldFile FieldKind = "file"
)

// Field is one named value in a multipart or form body. Value is a template
// string; for FieldFile the substituted value is a path read at dispatch time.
type Field struct {
	Name  string    `json:"name"`
	Kind  FieldKind `json:"kind,omitempty"`
	Value string    `json:"value"`
}

// Body is the tagged union of HTTP body variants. Exactly the fields for
// Type are meaningful; the rest stay zero.
type Body struct {
	Type   BodyType        `json:"type"`
	Fields []Field         `json:"fields,omitempty"` // multipart, form
	Data   json.RawMessage `json:"data,omitempty"`   // json
	Raw    string          `json:"raw,omitempty"`    // raw
}

// HTTPAction configures an HTTP call. URL and header values are template
// strings.
type HTTPAction struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    *Body             `json:"body,omitempty"`
}

// CommandAction configures a local process run. Command and each argument
// are template strings.
type CommandAction struct {
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	TimeoutMS int      `json:"timeout_ms,omitempty"`
}

// Retry bounds repeated attempts of a failing execution.
type Retry struct {
	Enabled     bool `json:"enabled"`
	MaxAttempts int  `json:"max_attempts"`
	DelayMS     int  `json:"delay_ms"`
}

// Definition is one configured webhook. Kind tags which action is set:
// HTTP for KindHTTP, Command for KindCommand. Enabled is tri-state so a
// definition created or loaded without the field counts as enabled; only
// an explicit false disables it.
type Definition struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Enabled   *bool          `json:"enabled"`
	Kind      Kind           `json:"kind"`
	Trigger   Trigger        `json:"trigger"`
	HTTP      *HTTPAction    `json:"http,omitempty"`
	Command   *CommandAction `json:"command,omitempty"`
	Retry     Retry          `json:"retry"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsEnabled reports whether d may fire. Unset counts as enabled.
func (d *Definition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// attempts returns how many times an execution of d may run.
func (d *Definition) attempts() int {
	if !d.Retry.Enabled {
		return 1
	}
	if d.Retry.MaxAttempts < 1 {
		return 1
	}
	return d.Retry.MaxAttempts
}

// clone returns a deep-enough copy for handing out snapshots.
func (d *Definition) clone() *Definition {
	out := *d
	if d.Enabled != nil {
		enabled := *d.Enabled
		out.Enabled = &enabled
	}
	if d.HTTP != nil {
		h := *d.HTTP
		if d.HTTP.Headers != nil {
			h.Headers = make(map[string]string, len(d.HTTP.Headers))
			for k, v := range d.HTTP.Headers {
				h.Headers[k] = v
			}
		}
		if d.HTTP.Body != nil {
			b := *d.HTTP.Body
			b.Fields = append([]Field(nil), d.HTTP.Body.Fields...)
			h.Body = &b
		}
		out.HTTP = &h
	}
	if d.Command != nil {
		c := *d.Command
		c.Args = append([]string(nil), d.Command.Args...)
		out.Command = &c
	}
	return &out
}
