package main

import (
	"context"
	"fmt"
	"log/slog"

	"vochat/internal/ipc"
	"vochat/internal/wsserver"
)

// executeControl serves requests from the control channel: vochatctl and a
// second app launch.
func (a *App) executeControl(ctx context.Context, req ipc.Request) ipc.Response {
	var err error
	switch req.Command {
	case ipc.CommandShowOverlay:
		err = a.showOverlay(ctx)
	case ipc.CommandToggleOverlay:
		err = a.toggleOverlay(ctx)
	case ipc.CommandHideOverlay:
		err = a.hideOverlay(ctx)
	case ipc.CommandSimulatePaste:
		err = a.simulatePaste(ctx)
	case ipc.CommandPauseMedia:
		err = a.pauseMedia(ctx)
	case ipc.CommandInsertText:
		err = a.insertText(ctx, req.Text)
	case ipc.CommandStatus:
		status := a.GetStatus()
		return ipc.Response{OK: true, Status: &status}
	default:
		err = fmt.Errorf("unknown command %q", req.Command)
	}
	if err != nil {
		slog.Debug("[ipc] control command failed", "command", req.Command, "error", err)
		return ipc.ErrorResponse(err)
	}
	return ipc.Response{OK: true}
}

// handleBridgeTranscript receives a finished transcription from the bridge
// client.
func (a *App) handleBridgeTranscript(ctx context.Context, msg wsserver.Message) error {
	if msg.Session != "" && msg.Session != a.currentSession() {
		slog.Debug("[DEBUG-WS] transcript for an older session", "session", msg.Session)
	}
	return a.insertText(ctx, msg.Text)
}

// broadcastBridgeEvent forwards a combo edge to the bridge client.
func (a *App) broadcastBridgeEvent(name, session string) {
	if a.hub == nil {
		return
	}
	a.hub.Broadcast(wsserver.EventMessage(name, session))
}
