package core

import (
	"testing"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected string
	}{
		{"Idle", StateIdle, "idle"},
		{"Resolving", StateResolving, "resolving"},
		{"Fetching cover", StateFetchingCover, "fetching_cover"},
		{"Fetching stream", StateFetchingStream, "fetching_stream"},
		{"Assembling", StateAssembling, "assembling"},
		{"Tagging", StateTagging, "tagging"},
		{"Done", StateDone, "done"},
		{"Failed", StateFailed, "failed"},
		{"Out of range", State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.expected)
			}
		})
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = nopRecorder{}

	// Must not panic
	r.RecordDownload(resultSuccess)
	r.RecordError("io")
	r.RecordStage(stageResolve, 0)
	r.AddBytes(stageMedia, 10)
}
