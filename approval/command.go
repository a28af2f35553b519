// Package approval is the human-in-the-loop gate for each daily cycle:
// structured reports out, free-form operator commands in, over Telegram.
package approval

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Command kinds.
const (
	CommandUnknown    = "unknown"
	CommandApprove    = "approve"
	CommandRejectSome = "reject_some"
	CommandRejectAll  = "reject_all"
	CommandCancel     = "cancel"
	CommandStatus     = "status"
	CommandDone       = "done"
	CommandTimeout    = "timeout"
)

// Control kinds, serviced between cycles.
const (
	ControlNone   = ""
	ControlStart  = "start"
	ControlStatus = "status"
	ControlPause  = "pause"
	ControlResume = "resume"
)

// Command is a parsed operator instruction.
type Command struct {
	Kind    string
	Indices []int
}

var (
	approveWords   = []string{"ok", "okay", "approve", "approved", "lgtm", "yes", "go"}
	cancelWords    = []string{"cancel", "abort", "skip today", "skip"}
	rejectAllWords = []string{"redo all", "retry all", "reshuffle", "redo", "retry", "again"}
	statusWords    = []string{"status", "state"}
	doneWords      = []string{"done", "complete", "finished", "finish"}

	indexListRegex = regexp.MustCompile(`\d+`)
)

// ParseCommand interprets free-form operator text. An explicit index
// list ("redo 2 5", "2,5") is more specific than a bare retry word and
// wins; maxIndex bounds which numbers count as plan indices.
func ParseCommand(text string, maxIndex int) Command {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Command{Kind: CommandUnknown}
	}

	indices, ok := extractIndices(lower, maxIndex)
	if !ok {
		// A number out of range poisons the whole message: acting on
		// the rest could reshuffle slots the operator wanted kept.
		return Command{Kind: CommandUnknown}
	}
	if len(indices) > 0 {
		return Command{Kind: CommandRejectSome, Indices: indices}
	}

	switch {
	case matchesWord(lower, approveWords):
		return Command{Kind: CommandApprove}
	case matchesWord(lower, cancelWords):
		return Command{Kind: CommandCancel}
	case matchesWord(lower, rejectAllWords):
		return Command{Kind: CommandRejectAll}
	case matchesWord(lower, doneWords):
		return Command{Kind: CommandDone}
	case matchesWord(lower, statusWords):
		return Command{Kind: CommandStatus}
	}

	return Command{Kind: CommandUnknown}
}

// ParseControl interprets scheduler control keywords polled between
// cycles.
func ParseControl(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case matchesWord(lower, []string{"pause", "stop", "hold"}):
		return ControlPause
	case matchesWord(lower, []string{"resume", "continue", "unpause"}):
		return ControlResume
	case matchesWord(lower, []string{"start", "run", "topics", "select topics"}):
		return ControlStart
	case matchesWord(lower, statusWords):
		return ControlStatus
	}
	return ControlNone
}

func matchesWord(text string, words []string) bool {
	for _, w := range words {
		if text == w || strings.HasPrefix(text, w+" ") {
			return true
		}
	}
	return false
}

// extractIndices pulls distinct in-range plan numbers out of the text.
// The second return is false when any number is out of range; such a
// message is not a usable index list.
func extractIndices(text string, maxIndex int) ([]int, bool) {
	matches := indexListRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil, true
	}

	seen := make(map[int]bool)
	var indices []int
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > maxIndex {
			return nil, false
		}
		if !seen[n] {
			seen[n] = true
			indices = append(indices, n)
		}
	}

	sort.Ints(indices)
	return indices, true
}
