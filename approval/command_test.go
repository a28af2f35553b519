package approval

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxIndex int
		want     Command
	}{
		{"approve ok", "ok", 6, Command{Kind: CommandApprove}},
		{"approve uppercase", "LGTM", 6, Command{Kind: CommandApprove}},
		{"approve with trailing words", "approve the plan", 6, Command{Kind: CommandApprove}},
		{"approve padded", "  yes  ", 6, Command{Kind: CommandApprove}},
		{"cancel", "cancel", 6, Command{Kind: CommandCancel}},
		{"cancel skip today", "skip today", 6, Command{Kind: CommandCancel}},
		{"reject all", "redo all", 6, Command{Kind: CommandRejectAll}},
		{"reject all reshuffle", "reshuffle", 6, Command{Kind: CommandRejectAll}},
		{"bare retry", "retry", 6, Command{Kind: CommandRejectAll}},
		{"indices beat bare word", "redo 2 5", 6, Command{Kind: CommandRejectSome, Indices: []int{2, 5}}},
		{"comma separated", "2,5", 6, Command{Kind: CommandRejectSome, Indices: []int{2, 5}}},
		{"indices deduped and sorted", "5 2 5", 6, Command{Kind: CommandRejectSome, Indices: []int{2, 5}}},
		{"out of range is not a command", "redo 99", 6, Command{Kind: CommandUnknown}},
		{"zero is out of range", "redo 0", 6, Command{Kind: CommandUnknown}},
		{"partially out of range", "redo 2 99", 6, Command{Kind: CommandUnknown}},
		{"done", "done", 6, Command{Kind: CommandDone}},
		{"status", "status", 6, Command{Kind: CommandStatus}},
		{"unknown", "what is this", 6, Command{Kind: CommandUnknown}},
		{"empty", "", 6, Command{Kind: CommandUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommand(tt.text, tt.maxIndex)
			if got.Kind != tt.want.Kind || !reflect.DeepEqual(got.Indices, tt.want.Indices) {
				t.Errorf("ParseCommand(%q, %d) = %+v, want %+v", tt.text, tt.maxIndex, got, tt.want)
			}
		})
	}
}

func TestParseControl(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"pause", ControlPause},
		{"STOP", ControlPause},
		{"hold", ControlPause},
		{"resume", ControlResume},
		{"continue", ControlResume},
		{"start", ControlStart},
		{"select topics", ControlStart},
		{"run", ControlStart},
		{"status", ControlStatus},
		{"state", ControlStatus},
		{"hello", ControlNone},
		{"", ControlNone},
	}

	for _, tt := range tests {
		if got := ParseControl(tt.text); got != tt.want {
			t.Errorf("ParseControl(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
