package topics

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"blogpilot/config"
)

// Source is a pluggable topic candidate provider.
type Source interface {
	Name() string
	FetchCandidates(ctx context.Context, writer config.Writer) ([]Topic, error)
}

// Dedup answers whether a keyword was used recently. Failures are
// treated as "not excluded" so a persistence outage cannot block
// selection.
type Dedup interface {
	IsExcluded(ctx context.Context, keyword, source string) (bool, error)
}

// defaultChain is the fixed last-resort source order.
var defaultChain = []string{SourceSeasonal, SourceNews, SourceTrend, SourceDefault}

// Selector picks one topic per writer slot, enforcing quotas,
// cross-slot uniqueness, and dedup exclusion.
type Selector struct {
	sources map[string]Source
	dedup   Dedup
	rng     *rand.Rand
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithRand sets the random source (for testing).
func WithRand(rng *rand.Rand) SelectorOption {
	return func(s *Selector) {
		s.rng = rng
	}
}

// NewSelector creates a selection engine over the given sources.
func NewSelector(sources []Source, dedup Dedup, opts ...SelectorOption) *Selector {
	s := &Selector{
		sources: make(map[string]Source, len(sources)),
		dedup:   dedup,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, src := range sources {
		s.sources[src.Name()] = src
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectDailyPlan fills every writer's quota with pairwise-distinct,
// non-excluded topics. It always returns a complete plan.
func (s *Selector) SelectDailyPlan(ctx context.Context, writers []config.Writer) (*DailyPlan, error) {
	plan := &DailyPlan{}
	used := make(map[string]bool)

	for _, writer := range writers {
		entry := PlanEntry{Writer: writer}
		for i := 0; i < writer.Quota; i++ {
			topic := s.selectSlot(ctx, writer, used)
			used[NormalizeKeyword(topic.Keyword)] = true
			entry.Topics = append(entry.Topics, topic)
		}
		plan.Entries = append(plan.Entries, entry)
	}

	return plan, nil
}

// Reselect replaces only the topics at the given 1-based flat indices,
// excluding every keyword currently anywhere in the plan (including the
// rejected ones, so they cannot come back). Other slots are untouched.
func (s *Selector) Reselect(ctx context.Context, plan *DailyPlan, indices []int) error {
	used := plan.Keywords()

	for _, idx := range indices {
		slot := plan.TopicAt(idx)
		writer := plan.WriterAt(idx)
		if slot == nil || writer == nil {
			return fmt.Errorf("plan index out of range: %d", idx)
		}

		topic := s.selectSlot(ctx, *writer, used)
		used[NormalizeKeyword(topic.Keyword)] = true
		*slot = topic
		slog.Info("reselected topic", "index", idx, "keyword", topic.Keyword, "source", topic.Source)
	}

	return nil
}

// selectSlot runs the weighted primary chain, then the fixed default
// chain, then synthesizes. It never fails.
func (s *Selector) selectSlot(ctx context.Context, writer config.Writer, used map[string]bool) Topic {
	chain := append(s.primaryChain(), defaultChain...)

	for _, name := range chain {
		src, ok := s.sources[name]
		if !ok {
			continue
		}
		if topic, ok := s.firstEligible(ctx, src, writer, used); ok {
			slog.Info("selected topic", "writer", writer.ID, "keyword", topic.Keyword, "source", topic.Source)
			return topic
		}
	}

	return s.uniqueDefault(writer, used)
}

// primaryChain picks the randomized-but-weighted source order: 40%
// seasonal-first, 30% news-first, 30% trend-first, then the remaining
// sources in sequence.
func (s *Selector) primaryChain() []string {
	roll := s.rng.Float64()
	switch {
	case roll < 0.40:
		return []string{SourceSeasonal, SourceNews, SourceTrend}
	case roll < 0.70:
		return []string{SourceNews, SourceSeasonal, SourceTrend}
	default:
		return []string{SourceTrend, SourceSeasonal, SourceNews}
	}
}

func (s *Selector) firstEligible(ctx context.Context, src Source, writer config.Writer, used map[string]bool) (Topic, bool) {
	candidates, err := src.FetchCandidates(ctx, writer)
	if err != nil {
		// Soft failure: a broken source is an empty source.
		slog.Warn("topic source failed", "source", src.Name(), "error", err)
		return Topic{}, false
	}

	for _, candidate := range candidates {
		norm := NormalizeKeyword(candidate.Keyword)
		if norm == "" || used[norm] {
			continue
		}

		excluded, err := s.dedup.IsExcluded(ctx, candidate.Keyword, candidate.Source)
		if err != nil {
			slog.Warn("dedup check failed, treating as not excluded", "keyword", candidate.Keyword, "error", err)
			excluded = false
		}
		if excluded {
			continue
		}

		return candidate, true
	}

	return Topic{}, false
}

// uniqueDefault synthesizes a config-derived topic, suffixing a counter
// when the base keyword is already in the plan.
func (s *Selector) uniqueDefault(writer config.Writer, used map[string]bool) Topic {
	topic := SynthesizeDefault(writer)
	base := topic.Keyword
	for n := 2; used[NormalizeKeyword(topic.Keyword)]; n++ {
		topic.Keyword = fmt.Sprintf("%s (part %d)", base, n)
	}
	return topic
}
