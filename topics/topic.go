package topics

import (
	"strings"

	"blogpilot/config"
)

// Topic source kinds.
const (
	SourceSeasonal = "seasonal"
	SourceNews     = "news"
	SourceTrend    = "trend"
	SourceDefault  = "default"
)

// Topic is a selected publication subject. Identity is the normalized
// keyword.
type Topic struct {
	Keyword           string
	Category          string
	Source            string
	Rationale         string
	SearchVolumeLabel string
}

// NormalizeKeyword trims, lowercases, and collapses inner whitespace so
// cosmetic variants compare equal.
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}

// PlanEntry pairs a writer with the topics filling that writer's quota.
type PlanEntry struct {
	Writer config.Writer
	Topics []Topic
}

// DailyPlan is one cycle's worth of selected topics, one entry per
// configured writer. Flat indices are 1-based and follow writer order.
type DailyPlan struct {
	Entries []PlanEntry
}

// Clone returns a deep copy of the plan. Mutations on the copy are
// never visible through the original.
func (p *DailyPlan) Clone() *DailyPlan {
	clone := &DailyPlan{Entries: make([]PlanEntry, len(p.Entries))}
	for i, e := range p.Entries {
		clone.Entries[i] = PlanEntry{
			Writer: e.Writer,
			Topics: append([]Topic(nil), e.Topics...),
		}
	}
	return clone
}

// TotalTopics returns the number of topics across all entries.
func (p *DailyPlan) TotalTopics() int {
	n := 0
	for _, e := range p.Entries {
		n += len(e.Topics)
	}
	return n
}

// Keywords returns the set of normalized keywords present in the plan.
func (p *DailyPlan) Keywords() map[string]bool {
	used := make(map[string]bool)
	for _, e := range p.Entries {
		for _, t := range e.Topics {
			used[NormalizeKeyword(t.Keyword)] = true
		}
	}
	return used
}

// TopicAt returns the topic at a 1-based flat index, or nil if out of
// range.
func (p *DailyPlan) TopicAt(index int) *Topic {
	n := 0
	for i := range p.Entries {
		for j := range p.Entries[i].Topics {
			n++
			if n == index {
				return &p.Entries[i].Topics[j]
			}
		}
	}
	return nil
}

// WriterAt returns the writer owning the 1-based flat index.
func (p *DailyPlan) WriterAt(index int) *config.Writer {
	n := 0
	for i := range p.Entries {
		for range p.Entries[i].Topics {
			n++
			if n == index {
				return &p.Entries[i].Writer
			}
		}
	}
	return nil
}
