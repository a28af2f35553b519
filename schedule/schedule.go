// Package schedule computes constraint-respecting publish times for an
// approved daily plan.
package schedule

import (
	"fmt"
	"math/rand"
	"sort"

	"blogpilot/config"
	"blogpilot/topics"
)

const placementAttemptBudget = 1000

// Item is one scheduled publication.
type Item struct {
	TimeOfDayMinutes int
	Writer           config.Writer
	Topic            topics.Topic
	SequenceIndex    int
}

// TimeString formats the item's time of day as HH:MM.
func (it Item) TimeString() string {
	return fmt.Sprintf("%02d:%02d", it.TimeOfDayMinutes/60, it.TimeOfDayMinutes%60)
}

// Params bound the assignment window and spacing constraints. Window
// values are minutes since midnight; the window is half-open.
type Params struct {
	WindowStartMin int
	WindowEndMin   int
	MinGlobalGap   int
	MinWriterGap   int
}

// AssignTimes turns an approved plan into exactly one scheduled item
// per slot. It always succeeds: when the randomized placement cannot
// honor the global gap within the attempt budget it falls back to even
// spacing, and the writer gap degrades to any free time when no
// satisfying time remains.
func AssignTimes(plan *topics.DailyPlan, p Params, rng *rand.Rand) []Item {
	type pair struct {
		writer config.Writer
		topic  topics.Topic
	}

	var pairs []pair
	for _, entry := range plan.Entries {
		for _, topic := range entry.Topics {
			pairs = append(pairs, pair{writer: entry.Writer, topic: topic})
		}
	}
	n := len(pairs)
	if n == 0 {
		return nil
	}

	times, ok := TryRandomPlacement(n, p.WindowStartMin, p.WindowEndMin, p.MinGlobalGap, rng)
	if !ok {
		times = EvenSpacing(n, p.WindowStartMin, p.WindowEndMin)
	}

	// Assign times to pairs, spreading each writer's posts apart.
	// Slots are tracked by index so equal minutes in a degenerate
	// window still count as separate slots.
	used := make([]bool, len(times))
	writerLast := make(map[string]int)

	var items []Item
	for _, pr := range pairs {
		best := -1
		bestGap := -1

		for ti, t := range times {
			if used[ti] {
				continue
			}
			last, seen := writerLast[pr.writer.ID]
			gap := p.MinWriterGap // unseen writer satisfies any gap
			if seen {
				gap = abs(t - last)
			}
			if gap >= p.MinWriterGap && gap > bestGap {
				best = ti
				bestGap = gap
			}
		}

		// No time honors the writer gap: take any free one rather
		// than failing the batch.
		if best < 0 {
			for ti := range times {
				if !used[ti] {
					best = ti
					break
				}
			}
		}

		used[best] = true
		writerLast[pr.writer.ID] = times[best]
		items = append(items, Item{
			TimeOfDayMinutes: times[best],
			Writer:           pr.writer,
			Topic:            pr.topic,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].TimeOfDayMinutes < items[j].TimeOfDayMinutes
	})
	for i := range items {
		items[i].SequenceIndex = i + 1
	}

	return items
}

// TryRandomPlacement draws candidate minutes uniformly from the window,
// rejecting any within minGap of an already-placed time. Returns false
// when the attempt budget runs out before n placements.
func TryRandomPlacement(n, startMin, endMin, minGap int, rng *rand.Rand) ([]int, bool) {
	span := endMin - startMin
	if span <= 0 {
		return nil, false
	}
	if minGap < 1 {
		minGap = 1 // distinct minutes even when no gap is configured
	}

	var times []int
	for attempts := 0; len(times) < n && attempts < placementAttemptBudget; attempts++ {
		candidate := startMin + rng.Intn(span)

		tooClose := false
		for _, t := range times {
			if abs(t-candidate) < minGap {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		times = append(times, candidate)
	}

	if len(times) < n {
		return nil, false
	}
	return times, true
}

// EvenSpacing distributes n times uniformly across the window. Always
// returns exactly n non-decreasing values inside [startMin, endMin); a
// window too small for n distinct minutes collapses the tail onto the
// final minute.
func EvenSpacing(n, startMin, endMin int) []int {
	gap := (endMin - startMin) / (n + 1)
	if gap < 1 {
		gap = 1
	}
	times := make([]int, n)
	for i := 0; i < n; i++ {
		t := startMin + gap*(i+1)
		if t >= endMin {
			t = endMin - 1
		}
		times[i] = t
	}
	return times
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
