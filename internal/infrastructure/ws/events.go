package ws

import "encoding/json"

const (
	EntireMsg  = "entireMsg"
	ErrorEvent = "error"
)

const (
	CodeMalformedFrame   = "MALFORMED_FRAME"
	CodeMalformedMessage = "MALFORMED_MESSAGE"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// Frame is one named event on the socket, in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewError(code, message string) *Frame {
	data, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	return &Frame{Event: ErrorEvent, Data: data}
}

// NewSerialized wraps an already-serialized payload as a JSON string, the shape
// clients of entireMsg expect ("data": "{\"msg\":\"hi\"}").
func NewSerialized(event string, payload []byte) *Frame {
	data, _ := json.Marshal(string(payload))
	return &Frame{Event: event, Data: data}
}
