// Package wsserver is the loopback WebSocket bridge between vochat and the
// speech-to-text client.
//
// # Protocol
//
// Every frame is a JSON text message with a "type" field.
//
// Server to client:
//
//	{"type":"event","name":"hotkey-pressed","session":"<uuid>"}
//	{"type":"event","name":"hotkey-released","session":"<uuid>"}
//	{"type":"ack","id":"<client id>"}
//	{"type":"error","id":"<client id>","message":"..."}
//
// Client to server:
//
//	{"type":"transcript","id":"<client id>","session":"<uuid>","text":"..."}
//
// The session ties a transcript to the combo activation that produced it.
package wsserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Message types.
const (
	TypeEvent      = "event"
	TypeTranscript = "transcript"
	TypeAck        = "ack"
	TypeError      = "error"
)

// maxTranscriptBytes bounds a single transcript. It stays below the read
// limit so the JSON envelope still fits.
const maxTranscriptBytes = 24 * 1024

// Message is the JSON envelope for every frame.
type Message struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Session string `json:"session,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventMessage builds a server event frame.
func EventMessage(name, session string) Message {
	return Message{Type: TypeEvent, Name: name, Session: session}
}

// DecodeClientMessage parses and validates a frame received from the client.
func DecodeClientMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("invalid JSON: %w", err)
	}
	switch msg.Type {
	case TypeTranscript:
		if strings.TrimSpace(msg.Text) == "" {
			return msg, errors.New("transcript text is empty")
		}
		if len(msg.Text) > maxTranscriptBytes {
			return msg, fmt.Errorf("transcript exceeds %d bytes", maxTranscriptBytes)
		}
		// Unmarshal replaces bad bytes with U+FFFD, so check the frame itself.
		if !utf8.Valid(raw) {
			return msg, errors.New("transcript is not valid UTF-8")
		}
		return msg, nil
	case "":
		return msg, errors.New("message type is required")
	default:
		return msg, fmt.Errorf("unsupported message type %q", msg.Type)
	}
}
