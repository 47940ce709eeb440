package domain

import (
	"encoding/json"
	"fmt"
)

// Wire tags for the websocket tagged union.
const (
	frameChatMessage = "CHAT_MESSAGE"
	frameNewUser     = "NEW_USER_REGISTERED"
	frameError       = "ERROR"
)

// Frame is one decoded inbound websocket frame. The set is closed:
// ChatMessageFrame, NewUserFrame, ErrorFrame and UnknownFrame. Frames are
// decoded once at the transport boundary and matched exhaustively by the
// session.
type Frame interface {
	isFrame()
}

// ChatMessageFrame delivers a server-decrypted message.
type ChatMessageFrame struct {
	Message DisplayMessage
}

// NewUserFrame announces a freshly registered user.
type NewUserFrame struct {
	User Identity
}

// ErrorFrame carries a non-fatal server-side error.
type ErrorFrame struct {
	Message string
}

// UnknownFrame preserves frames with an unrecognised tag so callers can log
// them; it is otherwise ignored.
type UnknownFrame struct {
	Type    string
	Payload json.RawMessage
}

func (ChatMessageFrame) isFrame() {}
func (NewUserFrame) isFrame()     {}
func (ErrorFrame) isFrame()       {}
func (UnknownFrame) isFrame()     {}

// DecodeFrame parses a raw text frame into the closed frame set. A frame
// whose tag is recognised but whose payload does not match its schema is an
// error; an unrecognised tag is not.
func DecodeFrame(data []byte) (Frame, error) {
	var raw struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch raw.Type {
	case frameChatMessage:
		var msg DisplayMessage
		if err := json.Unmarshal(raw.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", raw.Type, err)
		}
		return ChatMessageFrame{Message: msg}, nil

	case frameNewUser:
		var payload struct {
			User Identity `json:"user"`
		}
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", raw.Type, err)
		}
		return NewUserFrame{User: payload.User}, nil

	case frameError:
		return ErrorFrame{Message: errorText(raw.Payload)}, nil

	default:
		return UnknownFrame{Type: raw.Type, Payload: raw.Payload}, nil
	}
}

// EncodeChatFrame wraps an outbound envelope in the tagged wire shape.
func EncodeChatFrame(env Envelope) ([]byte, error) {
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Payload Envelope `json:"payload"`
	}{Type: frameChatMessage, Payload: env})
}

// errorText extracts a human-readable message from an ERROR payload, which
// the server sends either as {"error": "..."} or as an arbitrary object.
func errorText(payload json.RawMessage) string {
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Error != "" {
		return obj.Error
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil && s != "" {
		return s
	}
	return string(payload)
}
