// ABOUTME: JSON event types for the chat WebSocket surface
// ABOUTME: One Event struct with omitempty fields covers every message type

package wire

// Event types sent to clients.
const (
	TypeConnected         = "connected"
	TypeTyping            = "typing"
	TypeTextDelta         = "text_delta"
	TypeToolUse           = "tool_use"
	TypeResponse          = "response"
	TypeError             = "error"
	TypePermissionRequest = "permission_request"
	TypePong              = "pong"
)

// Event types received from clients.
const (
	TypeMessage            = "message"
	TypePermissionResponse = "permission_response"
	TypePing               = "ping"
)

// ToolUse summarizes one tool invocation observed during a turn.
type ToolUse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // "running" or "completed"
}

// Event is a single message on the chat surface. Type determines which
// fields are populated; everything else is omitted from the JSON.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	// Connected fields
	SessionID  string `json:"session_id,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`

	// Typing carries a bool, tool_use a "running"/"completed" string.
	// Both use the "status" key, so the field is untyped.
	Status any `json:"status,omitempty"`

	// Tool use fields
	ToolID   string `json:"tool_id,omitempty"`
	ToolName string `json:"tool_name,omitempty"`

	// Response fields
	ToolUses []ToolUse `json:"tool_uses,omitempty"`

	// Mode for inbound "message" events: "normal" or "plan"
	Mode string `json:"mode,omitempty"`

	// Permission request/response fields
	RequestID   string `json:"request_id,omitempty"`
	Tool        string `json:"tool,omitempty"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path,omitempty"`
	Command     string `json:"command,omitempty"`
	Allowed     *bool  `json:"allowed,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// Connected builds the initial event sent when a client attaches to a session.
func Connected(sessionID, workingDir string) *Event {
	return &Event{Type: TypeConnected, SessionID: sessionID, WorkingDir: workingDir}
}

// Typing builds a typing indicator event.
func Typing(on bool) *Event {
	return &Event{Type: TypeTyping, Status: on}
}

// TextDelta builds an incremental text event.
func TextDelta(content string) *Event {
	return &Event{Type: TypeTextDelta, Content: content}
}

// ToolUseEvent builds a tool lifecycle event with status "running" or "completed".
func ToolUseEvent(status, toolID, toolName string) *Event {
	return &Event{Type: TypeToolUse, Status: status, ToolID: toolID, ToolName: toolName}
}

// Response builds the final event of a turn carrying the assembled text
// and the tool invocations observed while producing it.
func Response(content string, toolUses []ToolUse) *Event {
	return &Event{Type: TypeResponse, Content: content, ToolUses: toolUses}
}

// ErrorEvent builds an error event with a human-readable message.
func ErrorEvent(content string) *Event {
	return &Event{Type: TypeError, Content: content}
}

// PermissionRequest builds the event that asks a human to approve tool use.
func PermissionRequest(requestID, tool, description, path, command string) *Event {
	return &Event{
		Type:        TypePermissionRequest,
		RequestID:   requestID,
		Tool:        tool,
		Description: description,
		Path:        path,
		Command:     command,
	}
}

// Pong builds the reply to a client ping.
func Pong() *Event {
	return &Event{Type: TypePong}
}
