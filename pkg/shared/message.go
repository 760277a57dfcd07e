package shared

// MessageType tags a WebSocket frame of the playground terminal.
type MessageType string

// Client to server.
const (
	MessageTypeRun   MessageType = "run"   // Content holds the program source
	MessageTypeInput MessageType = "input" // Content holds one input line
	MessageTypeStop  MessageType = "stop"  // cancel the running program
)

// Server to client.
const (
	MessageTypeSession      MessageType = "session"       // sent once after connecting
	MessageTypeText         MessageType = "text"          // one line of program output
	MessageTypeInputRequest MessageType = "input_request" // a read statement is waiting
	MessageTypeResult       MessageType = "result"        // the program finished
	MessageTypeError        MessageType = "error"         // the program or the request failed
)

// Message is the JSON frame exchanged over the terminal WebSocket.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`

	SessionID string `json:"sessionId,omitempty"`
	RunID     string `json:"runId,omitempty"`

	// Result frames
	Globals map[string]any `json:"globals,omitempty"`

	// Error frames
	Error *ErrorInfo `json:"error,omitempty"`
}
