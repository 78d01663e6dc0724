// Command vochatctl sends one control command to the running vochat
// instance, so desktop shortcuts and scripts can drive the overlay and paste.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"vochat/internal/ipc"
)

var sendFn = ipc.Send

type invocation struct {
	endpoint string
	jsonOut  bool
	req      ipc.Request
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return 0
	}
	inv, err := parseArgs(args)
	if errors.Is(err, errHelp) {
		printUsage(stdout)
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "vochatctl: %v\n", err)
		printUsage(stderr)
		return 2
	}

	endpoint := inv.endpoint
	if endpoint == "" {
		endpoint = ipc.DefaultEndpoint()
	}
	resp, err := sendFn(endpoint, inv.req)
	if err != nil {
		if ipc.IsConnectionError(err) {
			_, _ = fmt.Fprintf(stderr, "vochatctl: vochat is not running (no server on %s)\n", endpoint)
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "vochatctl: %v\n", err)
		return 1
	}
	if !resp.OK {
		_, _ = fmt.Fprintf(stderr, "vochatctl: %s failed: %s\n", inv.req.Command, resp.Error)
		return 1
	}
	if resp.Status != nil {
		if err := writeStatus(stdout, *resp.Status, inv.jsonOut); err != nil {
			_, _ = fmt.Fprintf(stderr, "vochatctl: %v\n", err)
			return 1
		}
	}
	return 0
}

var errHelp = errors.New("help requested")

func parseArgs(args []string) (invocation, error) {
	var inv invocation
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help" || arg == "help":
			return inv, errHelp
		case arg == "--json":
			inv.jsonOut = true
		case arg == "--endpoint":
			if i+1 >= len(args) {
				return inv, errors.New("--endpoint requires a value")
			}
			i++
			inv.endpoint = args[i]
		case strings.HasPrefix(arg, "--endpoint="):
			inv.endpoint = strings.TrimPrefix(arg, "--endpoint=")
		case strings.HasPrefix(arg, "-") && len(rest) == 0:
			return inv, fmt.Errorf("unknown flag %q", arg)
		default:
			rest = append(rest, arg)
		}
	}
	if len(rest) == 0 {
		return inv, errors.New("missing command")
	}

	inv.req = ipc.Request{Command: rest[0]}
	if inv.req.Command == ipc.CommandInsertText {
		inv.req.Text = strings.Join(rest[1:], " ")
	} else if len(rest) > 1 {
		return inv, fmt.Errorf("%s takes no arguments", inv.req.Command)
	}
	if err := inv.req.Validate(); err != nil {
		return inv, err
	}
	return inv, nil
}

func writeStatus(w io.Writer, status ipc.Status, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	listener := "running"
	if !status.ListenerRunning {
		listener = "stopped"
		if status.ListenerError != "" {
			listener += " (" + status.ListenerError + ")"
		}
	}
	bridge := "disabled"
	if status.BridgeURL != "" {
		bridge = status.BridgeURL
		if status.BridgeConnected {
			bridge += " (client connected)"
		}
	}
	_, err := fmt.Fprintf(w,
		"hotkey:    %s via %s\nlistener:  %s\noverlay:   %s\nrecording: %t\nbridge:    %s\nhistory:   %t\n",
		status.Combo, status.Source, listener, visibility(status.OverlayVisible),
		status.Recording, bridge, status.HistoryEnabled)
	return err
}

func visibility(visible bool) string {
	if visible {
		return "visible"
	}
	return "hidden"
}
