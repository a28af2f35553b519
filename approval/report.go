package approval

import (
	"fmt"
	"html"
	"strings"

	"blogpilot/schedule"
	"blogpilot/topics"
)

const reportDivider = "━━━━━━━━━━━━━━━━━━"

// FormatPlanReport renders the numbered daily plan grouped by writer.
// changed marks indices replaced by a reselection.
func FormatPlanReport(plan *topics.DailyPlan, dateStr string, changed []int) string {
	changedSet := make(map[int]bool, len(changed))
	for _, n := range changed {
		changedSet[n] = true
	}

	var sb strings.Builder
	if len(changed) > 0 {
		sb.WriteString(fmt.Sprintf("<b>Plan updated (%s)</b>\n", joinInts(changed)))
	} else {
		sb.WriteString("<b>Daily posting plan</b>\n")
	}
	sb.WriteString(reportDivider + "\n")
	sb.WriteString(dateStr + "\n")

	num := 0
	for _, entry := range plan.Entries {
		sb.WriteString(fmt.Sprintf("\n<b>[%s]</b>\n", html.EscapeString(entry.Writer.Name)))
		for _, topic := range entry.Topics {
			num++
			line := fmt.Sprintf("%d. %s", num, html.EscapeString(topic.Keyword))
			if topic.SearchVolumeLabel != "" && topic.SearchVolumeLabel != "-" {
				line += fmt.Sprintf(" (%s)", html.EscapeString(topic.SearchVolumeLabel))
			}
			if changedSet[num] {
				line += " ← changed"
			}
			sb.WriteString(line + "\n")
		}
	}

	sb.WriteString(reportDivider + "\n")
	sb.WriteString("Reply: ok / redo N[,M] / redo all / cancel / status")
	return sb.String()
}

// FormatScheduleReport renders the computed publish schedule.
func FormatScheduleReport(items []schedule.Item) string {
	var sb strings.Builder
	sb.WriteString("📋 <b>Today's publish schedule</b>\n")
	sb.WriteString(reportDivider + "\n")

	for _, it := range items {
		sb.WriteString(fmt.Sprintf("%d. %s - [%s] %s\n",
			it.SequenceIndex, it.TimeString(),
			html.EscapeString(it.Writer.Name), html.EscapeString(it.Topic.Keyword)))
	}

	sb.WriteString(reportDivider + "\n")
	sb.WriteString("Send photos with the post number as caption to attach them.")
	return sb.String()
}

// FormatAssetRequest renders per-topic subheadings so the operator can
// supply matching assets.
func FormatAssetRequest(subheadings map[int][]string, total int) string {
	var sb strings.Builder
	sb.WriteString("🖼 <b>Asset request</b>\n")
	sb.WriteString(reportDivider + "\n")

	for i := 1; i <= total; i++ {
		heads := subheadings[i]
		if len(heads) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i, html.EscapeString(strings.Join(heads, ", "))))
	}

	sb.WriteString(reportDivider + "\n")
	sb.WriteString("Reply \"done\" when finished; publishing starts after that or on timeout.")
	return sb.String()
}

// Result is one publication outcome for reporting.
type Result struct {
	Success bool
	Writer  string
	Keyword string
	Title   string
	URL     string
	Err     string
}

// FormatPostResult renders a single publication outcome.
func FormatPostResult(r Result) string {
	if r.Success {
		url := r.URL
		if url == "" {
			url = "N/A"
		}
		return fmt.Sprintf("✅ <b>Published</b>\nWriter: %s\nTitle: %s\nURL: %s",
			html.EscapeString(r.Writer), html.EscapeString(r.Title), html.EscapeString(url))
	}
	return fmt.Sprintf("❌ <b>Publish failed</b>\nWriter: %s\nKeyword: %s\nError: %s",
		html.EscapeString(r.Writer), html.EscapeString(r.Keyword), html.EscapeString(truncate(r.Err, 200)))
}

// FormatDailySummary renders the end-of-cycle success/failure roll-up.
func FormatDailySummary(results []Result) string {
	success := 0
	for _, r := range results {
		if r.Success {
			success++
		}
	}

	var sb strings.Builder
	sb.WriteString("<b>Daily summary</b>\n")
	sb.WriteString(reportDivider + "\n")
	sb.WriteString(fmt.Sprintf("Published: %d / Failed: %d\n\n", success, len(results)-success))

	for _, r := range results {
		if r.Success {
			sb.WriteString(fmt.Sprintf("✅ %s: %s\n", html.EscapeString(r.Writer), html.EscapeString(r.Title)))
		} else {
			sb.WriteString(fmt.Sprintf("❌ %s: %s - %s\n",
				html.EscapeString(r.Writer), html.EscapeString(r.Keyword), html.EscapeString(truncate(r.Err, 50))))
		}
	}

	return sb.String()
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
