package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"blogpilot/approval"
	"blogpilot/pipeline"
	"blogpilot/schedule"
	"blogpilot/topics"
)

// Execute walks the schedule in ascending order, publishing each item
// at its time. A failing item is recorded and the loop continues; only
// context cancellation stops the batch early. Returns one result per
// processed item, in schedule order.
func (o *Orchestrator) Execute(ctx context.Context, items []schedule.Item, drafts map[string]*pipeline.Draft, assets []approval.Asset) []approval.Result {
	if len(items) == 0 {
		return nil
	}

	var results []approval.Result
	for i, item := range items {
		// Recompute the wait from the current clock: earlier items may
		// have overrun their slot.
		now := o.clock.Now().In(o.params.Location)
		target := time.Date(now.Year(), now.Month(), now.Day(),
			item.TimeOfDayMinutes/60, item.TimeOfDayMinutes%60, 0, 0, o.params.Location)
		wait := target.Sub(now)

		if wait > 0 {
			slog.Info("waiting for publish slot",
				"index", item.SequenceIndex, "keyword", item.Topic.Keyword, "at", item.TimeString())
			o.reporter.SendReport(ctx, fmt.Sprintf("⏳ Post %d %q scheduled for %s.",
				item.SequenceIndex, item.Topic.Keyword, item.TimeString()))
			if err := o.clock.Sleep(ctx, wait); err != nil {
				break
			}
		} else {
			slog.Info("publish slot passed, publishing immediately",
				"index", item.SequenceIndex, "keyword", item.Topic.Keyword)
			o.reporter.SendReport(ctx, fmt.Sprintf("⏩ Post %d %q past its slot, publishing now.",
				item.SequenceIndex, item.Topic.Keyword))
		}
		if ctx.Err() != nil {
			break
		}

		result := o.publishOne(ctx, item, drafts, assets)
		results = append(results, result)
		o.reporter.SendReport(ctx, approval.FormatPostResult(result))

		if i < len(items)-1 {
			if err := o.clock.Sleep(ctx, o.params.PostCooldown); err != nil {
				break
			}
		}
	}

	return results
}

// publishOne invokes the content pipeline for a single item, converting
// any failure into a failed result instead of propagating it.
func (o *Orchestrator) publishOne(ctx context.Context, item schedule.Item, drafts map[string]*pipeline.Draft, assets []approval.Asset) approval.Result {
	fail := func(msg string) approval.Result {
		return approval.Result{
			Success: false,
			Writer:  item.Writer.Name,
			Keyword: item.Topic.Keyword,
			Err:     msg,
		}
	}

	draft := drafts[topics.NormalizeKeyword(item.Topic.Keyword)]
	if draft == nil {
		return fail("no draft for topic")
	}

	res, err := o.pipe.Publish(ctx, item.Topic, item.Writer, draft, takeAssets(assets, item.SequenceIndex))
	if err != nil {
		slog.Warn("publish failed", "index", item.SequenceIndex, "keyword", item.Topic.Keyword, "error", err)
		return fail(err.Error())
	}

	if err := o.dedup.MarkUsed(ctx, item.Topic.Keyword, item.Topic.Source); err != nil {
		slog.Warn("failed to mark keyword used", "keyword", item.Topic.Keyword, "error", err)
	}

	return approval.Result{
		Success: true,
		Writer:  item.Writer.Name,
		Keyword: item.Topic.Keyword,
		Title:   res.Title,
		URL:     res.URL,
	}
}

// takeAssets claims the assets for a schedule line: number matches
// first, then any unassigned asset not yet used.
func takeAssets(assets []approval.Asset, sequenceIndex int) []string {
	var fileIDs []string
	for i := range assets {
		a := &assets[i]
		if a.Used {
			continue
		}
		if a.PostNumber == sequenceIndex || a.PostNumber == 0 {
			a.Used = true
			fileIDs = append(fileIDs, a.FileID)
		}
	}
	return fileIDs
}
