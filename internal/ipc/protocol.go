// Package ipc is the local control channel of a running vochat instance.
// Each connection carries one newline-terminated JSON Request followed by one
// newline-terminated JSON Response.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Control commands.
const (
	CommandShowOverlay   = "show-overlay"
	CommandToggleOverlay = "toggle-overlay"
	CommandHideOverlay   = "hide-overlay"
	CommandSimulatePaste = "simulate-paste"
	CommandPauseMedia    = "pause-media"
	CommandInsertText    = "insert-text"
	CommandStatus        = "status"
)

var knownCommands = []string{
	CommandShowOverlay,
	CommandToggleOverlay,
	CommandHideOverlay,
	CommandSimulatePaste,
	CommandPauseMedia,
	CommandInsertText,
	CommandStatus,
}

// Commands returns the supported command names.
func Commands() []string { return slices.Clone(knownCommands) }

// Request is a single control command.
type Request struct {
	Command string `json:"command"`
	// Text is the payload of insert-text.
	Text string `json:"text,omitempty"`
}

// Status describes the running instance.
type Status struct {
	Combo           string `json:"combo"`
	Source          string `json:"source"`
	ListenerRunning bool   `json:"listener_running"`
	ListenerError   string `json:"listener_error,omitempty"`
	OverlayVisible  bool   `json:"overlay_visible"`
	Recording       bool   `json:"recording"`
	BridgeURL       string `json:"bridge_url,omitempty"`
	BridgeConnected bool   `json:"bridge_connected"`
	HistoryEnabled  bool   `json:"history_enabled"`
}

// Response is the result of a Request.
type Response struct {
	OK     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// ErrorResponse builds a failed Response from err.
func ErrorResponse(err error) Response {
	return Response{Error: err.Error()}
}

// CommandExecutor handles a control request.
type CommandExecutor interface {
	Execute(ctx context.Context, req Request) Response
}

// ExecutorFunc adapts a function to CommandExecutor.
type ExecutorFunc func(ctx context.Context, req Request) Response

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) Response { return f(ctx, req) }

// Validate checks that req names a known command and carries the payload it
// needs.
func (req Request) Validate() error {
	if !slices.Contains(knownCommands, req.Command) {
		return fmt.Errorf("unknown command %q", req.Command)
	}
	if req.Command == CommandInsertText && strings.TrimSpace(req.Text) == "" {
		return errors.New("insert-text requires text")
	}
	return nil
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.TrimSpace(req.Command)
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
