// Package appstate holds the process-wide flags shared between the input
// listener goroutine and the command handlers.
package appstate

import "sync"

// State is the shared application record. Each field has its own lock and
// no lock is ever held while calling into another component.
type State struct {
	visibleMu      sync.Mutex
	overlayVisible bool

	recordingMu sync.Mutex
	recording   bool
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	OverlayVisible bool `json:"overlay_visible"`
	Recording      bool `json:"is_recording"`
}

// New returns a State with the overlay hidden and no recording in progress.
func New() *State {
	return &State{}
}

// OverlayVisible reports the stored overlay visibility flag.
func (s *State) OverlayVisible() bool {
	s.visibleMu.Lock()
	defer s.visibleMu.Unlock()
	return s.overlayVisible
}

// SetOverlayVisible stores the overlay visibility flag.
func (s *State) SetOverlayVisible(visible bool) {
	s.visibleMu.Lock()
	s.overlayVisible = visible
	s.visibleMu.Unlock()
}

// ToggleOverlayVisible flips the visibility flag and returns the new value.
// The read and the write happen under a single lock hold.
func (s *State) ToggleOverlayVisible() bool {
	s.visibleMu.Lock()
	defer s.visibleMu.Unlock()
	s.overlayVisible = !s.overlayVisible
	return s.overlayVisible
}

// Recording reports whether a dictation is in progress.
// Nothing gates on this flag yet.
func (s *State) Recording() bool {
	s.recordingMu.Lock()
	defer s.recordingMu.Unlock()
	return s.recording
}

// SetRecording stores the recording flag.
func (s *State) SetRecording(recording bool) {
	s.recordingMu.Lock()
	s.recording = recording
	s.recordingMu.Unlock()
}

// Snapshot copies both flags. The two reads are not atomic with respect to
// each other.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		OverlayVisible: s.OverlayVisible(),
		Recording:      s.Recording(),
	}
}
