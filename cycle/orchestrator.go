// Package cycle implements the daily publication cycle: topic
// selection, operator approval, asset collection, and the timed
// execution loop, as a single-owner state machine.
package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"blogpilot/approval"
	"blogpilot/config"
	"blogpilot/pipeline"
	"blogpilot/schedule"
	"blogpilot/topics"
)

// State is the cycle's lifecycle position. It always returns to
// StateIdle at the end of a cycle, whatever the outcome.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingApproval State = "awaiting_approval"
	StateCollectingAssets State = "collecting_assets"
	StatePublishing       State = "publishing"
)

const inboxSize = 64

// Selector picks and re-picks daily plans.
type Selector interface {
	SelectDailyPlan(ctx context.Context, writers []config.Writer) (*topics.DailyPlan, error)
	Reselect(ctx context.Context, plan *topics.DailyPlan, indices []int) error
}

// Reporter delivers structured messages to the operator.
type Reporter interface {
	SendReport(ctx context.Context, text string) error
}

// ContentPipeline generates drafts and publishes posts.
type ContentPipeline interface {
	GenerateDraft(ctx context.Context, topic topics.Topic, writer config.Writer) (*pipeline.Draft, error)
	Publish(ctx context.Context, topic topics.Topic, writer config.Writer, draft *pipeline.Draft, assets []string) (*pipeline.PublishResult, error)
}

// DedupMarker records published keywords.
type DedupMarker interface {
	MarkUsed(ctx context.Context, keyword, source string) error
}

// Clock abstracts time for the execution loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Params holds the orchestrator's tunables, derived from configuration.
type Params struct {
	Writers         []config.Writer
	Window          schedule.Params
	ApprovalTimeout time.Duration
	AssetTimeout    time.Duration
	PostCooldown    time.Duration
	Location        *time.Location
}

// Status is a read-only snapshot for concurrent status queries.
type Status struct {
	State    State
	Paused   bool
	Plan     []string
	Schedule []string
}

// Orchestrator owns the cycle state machine. One cycle runs at a time;
// a trigger while a cycle is active is ignored.
type Orchestrator struct {
	params   Params
	selector Selector
	reporter Reporter
	pipe     ContentPipeline
	dedup    DedupMarker
	clock    Clock
	rng      *rand.Rand

	inbox chan approval.Event

	mu     sync.RWMutex
	state  State
	plan   *topics.DailyPlan
	items  []schedule.Item
	paused bool
	active bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the time source (for testing).
func WithClock(clock Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithRand sets the random source (for testing).
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		o.rng = rng
	}
}

// New creates an orchestrator.
func New(params Params, selector Selector, reporter Reporter, pipe ContentPipeline, dedup DedupMarker, opts ...Option) *Orchestrator {
	if params.Location == nil {
		params.Location = time.UTC
	}
	o := &Orchestrator{
		params:   params,
		selector: selector,
		reporter: reporter,
		pipe:     pipe,
		dedup:    dedup,
		clock:    realClock{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		inbox:    make(chan approval.Event, inboxSize),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit hands operator input to the active wait. Input is dropped when
// the inbox is full rather than blocking the transport.
func (o *Orchestrator) Submit(ev approval.Event) {
	select {
	case o.inbox <- ev:
	default:
		slog.Warn("operator inbox full, dropping event")
	}
}

// Snapshot returns the current status without disturbing an active
// cycle.
func (o *Orchestrator) Snapshot() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st := Status{State: o.state, Paused: o.paused}
	if o.plan != nil {
		num := 0
		for _, e := range o.plan.Entries {
			for _, t := range e.Topics {
				num++
				st.Plan = append(st.Plan, fmt.Sprintf("%d. [%s] %s", num, e.Writer.Name, t.Keyword))
			}
		}
	}
	for _, it := range o.items {
		st.Schedule = append(st.Schedule, fmt.Sprintf("%d. %s [%s] %s",
			it.SequenceIndex, it.TimeString(), it.Writer.Name, it.Topic.Keyword))
	}
	return st
}

// StatusText renders the snapshot for the operator.
func (o *Orchestrator) StatusText() string {
	st := o.Snapshot()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("State: %s", st.State))
	if st.Paused {
		sb.WriteString(" (paused)")
	}
	if len(st.Schedule) > 0 {
		sb.WriteString("\nSchedule:\n" + strings.Join(st.Schedule, "\n"))
	} else if len(st.Plan) > 0 {
		sb.WriteString("\nPlan:\n" + strings.Join(st.Plan, "\n"))
	}
	return sb.String()
}

// Pause makes the orchestrator skip alarm-triggered cycles until
// resumed. A cycle already running is unaffected.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	o.paused = true
	o.mu.Unlock()
}

// Resume re-enables alarm-triggered cycles.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
}

// Paused reports whether alarm triggers are being skipped.
func (o *Orchestrator) Paused() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.paused
}

// Active reports whether a cycle is currently running.
func (o *Orchestrator) Active() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// RunScheduled runs a cycle for the daily alarm, honoring pause.
func (o *Orchestrator) RunScheduled(ctx context.Context) {
	if o.Paused() {
		slog.Info("scheduler paused, skipping daily cycle")
		o.reporter.SendReport(ctx, "⏸ Paused: skipping today's cycle.")
		return
	}
	if err := o.Run(ctx); err != nil {
		slog.Error("daily cycle failed", "error", err)
	}
}

// Run executes one full daily cycle. Any error or panic is reported
// once and the state forcibly reset to idle; Run never leaves the
// orchestrator unschedulable.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	if !o.begin() {
		slog.Info("cycle already active, ignoring trigger")
		return nil
	}
	defer o.finish()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
		if err != nil && ctx.Err() == nil {
			o.reporter.SendReport(ctx, "❌ Cycle error: "+err.Error())
		}
	}()

	o.drainInbox()

	dateStr := o.clock.Now().In(o.params.Location).Format("2006-01-02 (Mon)")
	slog.Info("daily cycle started", "date", dateStr)

	plan, err := o.selector.SelectDailyPlan(ctx, o.params.Writers)
	if err != nil {
		return fmt.Errorf("select daily plan: %w", err)
	}
	o.setPlan(plan, StateAwaitingApproval)
	o.reporter.SendReport(ctx, approval.FormatPlanReport(plan, dateStr, nil))

	plan, earlyAssets, approved, err := o.approvalLoop(ctx, plan, dateStr)
	if err != nil {
		return err
	}
	if !approved {
		return nil
	}

	o.setState(StateCollectingAssets)
	drafts, subheads, err := o.generateDrafts(ctx, plan)
	if err != nil {
		// All-or-nothing: scheduling needs every item to have content.
		return fmt.Errorf("draft generation: %w", err)
	}

	o.reporter.SendReport(ctx, approval.FormatAssetRequest(subheads, plan.TotalTopics()))
	completion, err := o.waitForCompletion(ctx, plan.TotalTopics())
	if err != nil {
		return err
	}
	assets := append(earlyAssets, completion.Assets...)
	if !completion.Done {
		slog.Info("asset collection timed out, proceeding with partial assets", "count", len(assets))
	}

	items := schedule.AssignTimes(plan, o.params.Window, o.rng)
	o.setSchedule(items, StatePublishing)
	o.reporter.SendReport(ctx, approval.FormatScheduleReport(items))

	results := o.Execute(ctx, items, drafts, assets)

	o.reporter.SendReport(ctx, approval.FormatDailySummary(results))
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	slog.Info("daily cycle complete", "published", succeeded, "failed", len(results)-succeeded)
	return nil
}

// approvalLoop waits for operator commands until approval, cancel, or
// timeout. reject_some and reject_all re-run selection and re-send the
// report; status answers without leaving the state.
func (o *Orchestrator) approvalLoop(ctx context.Context, plan *topics.DailyPlan, dateStr string) (*topics.DailyPlan, []approval.Asset, bool, error) {
	deadline := time.Now().Add(o.params.ApprovalTimeout)
	var assets []approval.Asset

	for {
		cmd, received, err := o.waitForCommand(ctx, deadline, plan.TotalTopics())
		assets = append(assets, received...)
		if err != nil {
			return nil, nil, false, err
		}

		switch cmd.Kind {
		case approval.CommandApprove:
			o.reporter.SendReport(ctx, "✅ Approved. Generating drafts and today's schedule.")
			return plan, assets, true, nil

		case approval.CommandRejectSome:
			slog.Info("reselecting topics", "indices", cmd.Indices)
			// Reselect into a copy: the published plan is read
			// concurrently by status queries and must never be written
			// in place.
			fresh := plan.Clone()
			if err := o.selector.Reselect(ctx, fresh, cmd.Indices); err != nil {
				return nil, nil, false, fmt.Errorf("reselect topics: %w", err)
			}
			plan = fresh
			o.setPlan(plan, StateAwaitingApproval)
			o.reporter.SendReport(ctx, approval.FormatPlanReport(plan, dateStr, cmd.Indices))

		case approval.CommandRejectAll:
			slog.Info("reselecting full plan")
			fresh, err := o.selector.SelectDailyPlan(ctx, o.params.Writers)
			if err != nil {
				return nil, nil, false, fmt.Errorf("reselect daily plan: %w", err)
			}
			plan = fresh
			o.setPlan(plan, StateAwaitingApproval)
			o.reporter.SendReport(ctx, approval.FormatPlanReport(plan, dateStr, nil))

		case approval.CommandStatus:
			o.reporter.SendReport(ctx, o.StatusText())

		case approval.CommandCancel:
			slog.Info("cycle canceled by operator")
			o.reporter.SendReport(ctx, "🚫 Canceled. No posts today.")
			return nil, nil, false, nil

		case approval.CommandTimeout:
			slog.Info("approval timed out, canceling cycle")
			o.reporter.SendReport(ctx, "⏰ No approval before the deadline; today's cycle is canceled.")
			return nil, nil, false, nil
		}
	}
}

// waitForCommand blocks on the operator inbox until a recognizable
// command, the deadline, or context cancellation. Assets received while
// waiting are collected, acknowledged, and returned alongside.
func (o *Orchestrator) waitForCommand(ctx context.Context, deadline time.Time, maxIndex int) (approval.Command, []approval.Asset, error) {
	var assets []approval.Asset

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return approval.Command{}, assets, ctx.Err()
		case <-timer.C:
			return approval.Command{Kind: approval.CommandTimeout}, assets, nil
		case ev := <-o.inbox:
			if ev.Asset != nil {
				assets = append(assets, *ev.Asset)
				o.ackAsset(ctx, ev.Asset)
				continue
			}
			cmd := approval.ParseCommand(ev.Text, maxIndex)
			if cmd.Kind != approval.CommandUnknown {
				return cmd, assets, nil
			}
		}
	}
}

// waitForCompletion collects assets until the operator says done or the
// asset timeout elapses. Timeout is expected, not an error.
func (o *Orchestrator) waitForCompletion(ctx context.Context, maxIndex int) (approval.Completion, error) {
	var assets []approval.Asset

	timer := time.NewTimer(o.params.AssetTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return approval.Completion{}, ctx.Err()
		case <-timer.C:
			return approval.Completion{Done: false, Assets: assets}, nil
		case ev := <-o.inbox:
			if ev.Asset != nil {
				assets = append(assets, *ev.Asset)
				o.ackAsset(ctx, ev.Asset)
				continue
			}
			switch approval.ParseCommand(ev.Text, maxIndex).Kind {
			case approval.CommandDone:
				return approval.Completion{Done: true, Assets: assets}, nil
			case approval.CommandStatus:
				o.reporter.SendReport(ctx, o.StatusText())
			}
		}
	}
}

// generateDrafts materializes a draft for every topic in the plan.
// Fatal on first failure: partial drafts are useless downstream.
func (o *Orchestrator) generateDrafts(ctx context.Context, plan *topics.DailyPlan) (map[string]*pipeline.Draft, map[int][]string, error) {
	drafts := make(map[string]*pipeline.Draft)
	subheads := make(map[int][]string)

	num := 0
	for _, entry := range plan.Entries {
		for _, topic := range entry.Topics {
			num++
			slog.Info("generating draft", "index", num, "keyword", topic.Keyword, "writer", entry.Writer.ID)

			draft, err := o.pipe.GenerateDraft(ctx, topic, entry.Writer)
			if err != nil {
				return nil, nil, fmt.Errorf("draft %d (%s): %w", num, topic.Keyword, err)
			}
			drafts[topics.NormalizeKeyword(topic.Keyword)] = draft
			subheads[num] = pipeline.Subheadings(draft)
		}
	}

	return drafts, subheads, nil
}

func (o *Orchestrator) ackAsset(ctx context.Context, asset *approval.Asset) {
	ack := "Asset received."
	if asset.PostNumber > 0 {
		ack = fmt.Sprintf("Asset received for post %d.", asset.PostNumber)
	}
	o.reporter.SendReport(ctx, ack)
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return false
	}
	o.active = true
	return true
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.active = false
	o.state = StateIdle
	o.plan = nil
	o.items = nil
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setPlan(plan *topics.DailyPlan, s State) {
	o.mu.Lock()
	o.plan = plan
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setSchedule(items []schedule.Item, s State) {
	o.mu.Lock()
	o.items = items
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) drainInbox() {
	for {
		select {
		case <-o.inbox:
		default:
			return
		}
	}
}
