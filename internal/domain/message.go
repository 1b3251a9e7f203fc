package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// InboundMessage is the payload a client sends with an entireMsg event.
type InboundMessage struct {
	Msg string
}

// OutboundMessage is the only shape ever relayed to a room.
type OutboundMessage struct {
	Msg string `json:"msg"`
}

// DecodeInbound parses an entireMsg payload. The payload may be a JSON object or a JSON
// string whose contents are a JSON object.
func DecodeInbound(raw []byte) (InboundMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return InboundMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return InboundMessage{}, fmt.Errorf("%w: payload must be a JSON object", ErrMalformedMessage)
	}

	msgRaw, ok := fields["msg"]
	if !ok {
		return InboundMessage{}, fmt.Errorf("%w: msg is required", ErrEmptyMessage)
	}

	var msg string
	if err := json.Unmarshal(msgRaw, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("%w: msg must be a string", ErrEmptyMessage)
	}
	if msg == "" {
		return InboundMessage{}, fmt.Errorf("%w: msg is required", ErrEmptyMessage)
	}

	return InboundMessage{Msg: msg}, nil
}

// Outbound strips everything but the text.
func (m InboundMessage) Outbound() OutboundMessage {
	return OutboundMessage{Msg: m.Msg}
}

// Encode serializes the envelope the way clients expect to receive it.
func (m OutboundMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}
