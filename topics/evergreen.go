package topics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"blogpilot/config"
)

const evergreenIndexKey = "evergreen_index"

// SettingsStore persists the evergreen rotation index across cycles.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// EvergreenSource rotates through the configured evergreen pool. It is
// the terminal fallback and never fails: with an empty pool it
// synthesizes a topic from the writer's interests.
type EvergreenSource struct {
	pool     []config.EvergreenTopic
	settings SettingsStore
}

// NewEvergreenSource creates the default topic source.
func NewEvergreenSource(pool []config.EvergreenTopic, settings SettingsStore) *EvergreenSource {
	return &EvergreenSource{pool: pool, settings: settings}
}

// Name implements Source.
func (s *EvergreenSource) Name() string { return SourceDefault }

// FetchCandidates implements Source. The whole pool is offered in
// rotation order starting at the stored index, so an entry rejected by
// dedup does not shadow the rest of the pool. The index advance is best
// effort; a settings outage degrades to index 0 rather than failing.
func (s *EvergreenSource) FetchCandidates(ctx context.Context, writer config.Writer) ([]Topic, error) {
	if len(s.pool) == 0 {
		return []Topic{SynthesizeDefault(writer)}, nil
	}

	idx := s.currentIndex(ctx)

	next := strconv.Itoa((idx + 1) % len(s.pool))
	if err := s.settings.SetSetting(ctx, evergreenIndexKey, next); err != nil {
		slog.Warn("failed to advance evergreen index", "error", err)
	}

	candidates := make([]Topic, 0, len(s.pool))
	for i := 0; i < len(s.pool); i++ {
		entry := s.pool[(idx+i)%len(s.pool)]
		candidates = append(candidates, Topic{
			Keyword:  entry.Keyword,
			Category: entry.Category,
			Source:   SourceDefault,
		})
	}
	return candidates, nil
}

func (s *EvergreenSource) currentIndex(ctx context.Context) int {
	value, err := s.settings.GetSetting(ctx, evergreenIndexKey)
	if err != nil {
		return 0
	}
	idx, err := strconv.Atoi(value)
	if err != nil || idx < 0 {
		return 0
	}
	return idx
}

// SynthesizeDefault builds a deterministic config-derived topic for a
// writer. Used when every source, including the evergreen pool, is
// exhausted.
func SynthesizeDefault(writer config.Writer) Topic {
	keyword := fmt.Sprintf("%s weekly notes", writer.Name)
	if len(writer.Interests) > 0 {
		keyword = fmt.Sprintf("%s essentials", writer.Interests[0])
	}
	return Topic{
		Keyword:  keyword,
		Category: "general",
		Source:   SourceDefault,
	}
}
