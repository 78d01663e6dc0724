package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"

	"vochat/internal/ipc"
)

// NOTE: tests swap sendFn; do not use t.Parallel().

func stubSend(t *testing.T, fn func(endpoint string, req ipc.Request) (ipc.Response, error)) {
	t.Helper()
	orig := sendFn
	sendFn = fn
	t.Cleanup(func() { sendFn = orig })
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    invocation
		wantErr string
	}{
		{
			name: "plain command",
			args: []string{"toggle-overlay"},
			want: invocation{req: ipc.Request{Command: ipc.CommandToggleOverlay}},
		},
		{
			name: "endpoint and json",
			args: []string{"--endpoint", "/tmp/v.sock", "--json", "status"},
			want: invocation{endpoint: "/tmp/v.sock", jsonOut: true, req: ipc.Request{Command: ipc.CommandStatus}},
		},
		{
			name: "endpoint equals form",
			args: []string{"--endpoint=/tmp/v.sock", "hide-overlay"},
			want: invocation{endpoint: "/tmp/v.sock", req: ipc.Request{Command: ipc.CommandHideOverlay}},
		},
		{
			name: "insert joins text",
			args: []string{"insert-text", "hello", "world"},
			want: invocation{req: ipc.Request{Command: ipc.CommandInsertText, Text: "hello world"}},
		},
		{
			name: "insert keeps dashes in text",
			args: []string{"insert-text", "-", "dash"},
			want: invocation{req: ipc.Request{Command: ipc.CommandInsertText, Text: "- dash"}},
		},
		{name: "missing command", args: []string{"--json"}, wantErr: "missing command"},
		{name: "unknown command", args: []string{"reboot"}, wantErr: "unknown command"},
		{name: "unknown flag", args: []string{"-x", "status"}, wantErr: "unknown flag"},
		{name: "stray argument", args: []string{"status", "now"}, wantErr: "takes no arguments"},
		{name: "endpoint without value", args: []string{"--endpoint"}, wantErr: "requires a value"},
		{name: "insert without text", args: []string{"insert-text"}, wantErr: "requires text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseArgs(%v) error = %v, want substring %q", tt.args, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs(%v) error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Fatalf("parseArgs(%v) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

func TestRunSendsRequest(t *testing.T) {
	var gotEndpoint string
	var gotReq ipc.Request
	stubSend(t, func(endpoint string, req ipc.Request) (ipc.Response, error) {
		gotEndpoint, gotReq = endpoint, req
		return ipc.Response{OK: true}, nil
	})

	var stdout, stderr bytes.Buffer
	code := run([]string{"--endpoint", "/tmp/x.sock", "simulate-paste"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run() = %d, stderr = %q", code, stderr.String())
	}
	if gotEndpoint != "/tmp/x.sock" || gotReq.Command != ipc.CommandSimulatePaste {
		t.Fatalf("sent %q to %q", gotReq.Command, gotEndpoint)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q, want empty", stdout.String())
	}
}

func TestRunReportsFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    ipc.Response
		err     error
		wantSub string
	}{
		{
			name:    "command error",
			resp:    ipc.Response{Error: "input injection is not permitted in this session"},
			wantSub: "simulate-paste failed: input injection is not permitted",
		},
		{
			name:    "not running",
			err:     &net.OpError{Op: "dial", Net: "unix", Err: errors.New("no such file")},
			wantSub: "vochat is not running",
		},
		{
			name:    "transport error",
			err:     errors.New("invalid response: EOF"),
			wantSub: "invalid response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubSend(t, func(string, ipc.Request) (ipc.Response, error) { return tt.resp, tt.err })
			var stdout, stderr bytes.Buffer
			if code := run([]string{"--endpoint", "/tmp/x.sock", "simulate-paste"}, &stdout, &stderr); code != 1 {
				t.Fatalf("run() = %d, want 1", code)
			}
			if !strings.Contains(stderr.String(), tt.wantSub) {
				t.Fatalf("stderr = %q, want substring %q", stderr.String(), tt.wantSub)
			}
		})
	}
}

func TestRunUsageErrors(t *testing.T) {
	stubSend(t, func(string, ipc.Request) (ipc.Response, error) {
		t.Fatal("send must not be called for usage errors")
		return ipc.Response{}, nil
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"bogus"}, &stdout, &stderr); code != 2 {
		t.Fatalf("run() = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Fatalf("stderr = %q, want usage", stderr.String())
	}

	stdout.Reset()
	if code := run(nil, &stdout, &stderr); code != 0 {
		t.Fatalf("run(nil) = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), ipc.CommandToggleOverlay) {
		t.Fatalf("usage = %q, want command list", stdout.String())
	}
}

func TestRunPrintsStatus(t *testing.T) {
	status := ipc.Status{
		Combo:           "Alt+Z",
		Source:          "hook",
		ListenerRunning: true,
		Recording:       true,
		BridgeURL:       "ws://127.0.0.1:4000/ws",
		BridgeConnected: true,
	}
	stubSend(t, func(string, ipc.Request) (ipc.Response, error) {
		return ipc.Response{OK: true, Status: &status}, nil
	})

	var stdout, stderr bytes.Buffer
	if code := run([]string{"--endpoint", "/tmp/x.sock", "status"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run() = %d, stderr = %q", code, stderr.String())
	}
	for _, want := range []string{"Alt+Z via hook", "listener:  running", "overlay:   hidden", "(client connected)"} {
		if !strings.Contains(stdout.String(), want) {
			t.Fatalf("stdout = %q, want substring %q", stdout.String(), want)
		}
	}

	stdout.Reset()
	if code := run([]string{"--endpoint", "/tmp/x.sock", "--json", "status"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run(--json) = %d", code)
	}
	var decoded ipc.Status
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if decoded != status {
		t.Fatalf("decoded = %+v, want %+v", decoded, status)
	}
}
