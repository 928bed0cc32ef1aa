package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConfigCommand is the outbound "config" control message; BoardConfig is
// forwarded to the CIB verbatim (decoding its contents is a DAQ-host
// concern, out of scope here).
type ConfigCommand struct {
	Command string          `json:"command"`
	Config  json.RawMessage `json:"config"`
}

// NewConfigCommand builds the {"command":"config","config":<board_config>}
// envelope.
func NewConfigCommand(boardConfig json.RawMessage) ConfigCommand {
	return ConfigCommand{Command: "config", Config: boardConfig}
}

// StartRunCommand is the outbound "start_run" control message.
type StartRunCommand struct {
	Command   string `json:"command"`
	RunNumber uint32 `json:"run_number"`
}

// NewStartRunCommand builds the {"command":"start_run","run_number":N}
// envelope.
func NewStartRunCommand(run uint32) StartRunCommand {
	return StartRunCommand{Command: "start_run", RunNumber: run}
}

// StopRunCommand is the outbound "stop_run" control message.
type StopRunCommand struct {
	Command string `json:"command"`
}

// NewStopRunCommand builds the {"command":"stop_run"} envelope.
func NewStopRunCommand() StopRunCommand {
	return StopRunCommand{Command: "stop_run"}
}

// Encode marshals an outbound command to its single-write JSON form.
func Encode(cmd any) ([]byte, error) {
	return json.Marshal(cmd)
}

// FeedbackEntry is one element of an inbound reply's feedback array.
type FeedbackEntry struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Reply is the inbound control-channel response: a JSON object with a
// feedback array of {type, message} entries.
type Reply struct {
	Feedback []FeedbackEntry `json:"feedback"`
}

// Severity classifies a FeedbackEntry by a case-insensitive substring
// match on its Type field: "error" anywhere in the type fails the
// overall reply, "warning"/"info" are non-fatal, anything else passes
// through raw.
type Severity int

const (
	SeverityOther Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "other"
	}
}

// Classify returns the Severity of one feedback entry's Type field.
func (f FeedbackEntry) Classify() Severity {
	t := strings.ToLower(f.Type)
	switch {
	case strings.Contains(t, "error"):
		return SeverityError
	case strings.Contains(t, "warning"):
		return SeverityWarning
	case strings.Contains(t, "info"):
		return SeverityInfo
	default:
		return SeverityOther
	}
}

// DecodeReply parses a best-effort read of the control socket's reply
// buffer into a Reply. A reply that doesn't fit in a single read, or
// doesn't parse as a JSON object with a feedback array, is a
// transport-level framing error rather than a protocol error.
func DecodeReply(data []byte) (Reply, error) {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, fmt.Errorf("malformed control reply: %w", err)
	}
	if reply.Feedback == nil {
		return Reply{}, fmt.Errorf("malformed control reply: no feedback array")
	}
	return reply, nil
}

// OK reports whether the reply contains no entry classified as an error.
func (r Reply) OK() bool {
	for _, f := range r.Feedback {
		if f.Classify() == SeverityError {
			return false
		}
	}
	return true
}
