// Package protocol defines the wire messages spoken between the bridge
// server, the embedded front end, and remote ghostkeys instances. It stands
// alone so both sides of the connection can import it without dragging in
// the rest of the application.
package protocol

import "encoding/json"

// MessageType defines the type of bridge message
type MessageType string

const (
	// TypeAuth is sent by a client immediately after connection to authenticate
	TypeAuth MessageType = "auth"

	// TypeInvoke is sent by a client to run a named command
	TypeInvoke MessageType = "invoke"

	// TypeResult is sent by the server in response to an invoke, correlated by ID
	TypeResult MessageType = "result"

	// TypeEvent is pushed by the server without a preceding invoke
	TypeEvent MessageType = "event"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Command names accepted by the bridge.
const (
	CmdTypeText      = "type_text"
	CmdTypeSnippet   = "type_snippet"
	CmdTypeClipboard = "type_clipboard"
	CmdCancel        = "cancel"
	CmdGetStatus     = "get_status"
	CmdGetConfig     = "get_config"
	CmdSetConfig     = "set_config"
	CmdGetFocus      = "get_focus"
)

// Event names pushed by the bridge.
const (
	// EventState announces an engine state change ("idle", "waiting", "typing")
	EventState = "state"

	// EventProgress reports typing progress through the current job
	EventProgress = "progress"

	// EventJobDone reports a finished, failed or canceled job
	EventJobDone = "job_done"

	// EventConfigChanged announces that configuration was updated or reloaded
	EventConfigChanged = "config_changed"
)

// Message is the generic container for all bridge messages
type Message struct {
	Type MessageType `json:"type"`

	// ID correlates an invoke with its result; client-chosen, opaque
	ID string `json:"id,omitempty"`

	// Command names the operation for TypeInvoke
	Command string `json:"command,omitempty"`

	// Event names the notification for TypeEvent
	Event string `json:"event,omitempty"`

	// OK reports invoke success on TypeResult
	OK bool `json:"ok,omitempty"`

	// Error carries the failure description when OK is false
	Error string `json:"error,omitempty"`

	// Payload holds the command parameters, result value or event data
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload is the payload for TypeAuth
type AuthPayload struct {
	Token         string `json:"token"`
	ClientName    string `json:"client_name,omitempty"`
	ClientVersion string `json:"client_version,omitempty"`
}

// TypeTextParams is the payload for CmdTypeText. DelayMS and IntervalMS
// override the configured defaults when present; an explicit zero is an
// override too, which is why these are pointers.
type TypeTextParams struct {
	Text       string `json:"text"`
	DelayMS    *int   `json:"delay_ms,omitempty"`
	IntervalMS *int   `json:"interval_ms,omitempty"`
}

// TypeSnippetParams is the payload for CmdTypeSnippet
type TypeSnippetParams struct {
	Name string `json:"name"`
}

// CancelParams is the payload for CmdCancel. A zero JobID cancels everything.
type CancelParams struct {
	JobID int64 `json:"job_id,omitempty"`
}

// JobRef is the result payload for commands that queue a job
type JobRef struct {
	JobID int64 `json:"job_id"`
}

// CancelResult is the result payload for CmdCancel
type CancelResult struct {
	Canceled int `json:"canceled"`
}

// StatePayload is the data for EventState
type StatePayload struct {
	State string `json:"state"`
}

// ProgressPayload is the data for EventProgress
type ProgressPayload struct {
	JobID int64 `json:"job_id"`
	Typed int   `json:"typed"`
	Total int   `json:"total"`
}

// JobDonePayload is the data for EventJobDone
type JobDonePayload struct {
	JobID    int64  `json:"job_id"`
	Source   string `json:"source"`
	Canceled bool   `json:"canceled,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FocusPayload is the result payload for CmdGetFocus
type FocusPayload struct {
	App   string `json:"app"`
	Title string `json:"title,omitempty"`
}

// Invoke builds a TypeInvoke message with marshaled parameters.
func Invoke(id, command string, params interface{}) *Message {
	return &Message{Type: TypeInvoke, ID: id, Command: command, Payload: marshal(params)}
}

// ResultOK builds a successful TypeResult message.
func ResultOK(id string, result interface{}) *Message {
	return &Message{Type: TypeResult, ID: id, OK: true, Payload: marshal(result)}
}

// ResultError builds a failed TypeResult message.
func ResultError(id string, err error) *Message {
	msg := &Message{Type: TypeResult, ID: id}
	if err != nil {
		msg.Error = err.Error()
	} else {
		msg.Error = "unknown error"
	}
	return msg
}

// NewEvent builds a TypeEvent message.
func NewEvent(event string, data interface{}) *Message {
	return &Message{Type: TypeEvent, Event: event, Payload: marshal(data)}
}

func marshal(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
