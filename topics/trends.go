package topics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blogpilot/config"
)

const maxTrendCandidates = 10

// TrendSource yields topic candidates from a Google Trends daily RSS
// feed.
type TrendSource struct {
	feedURL string
	client  *feedClient
}

// NewTrendSource creates a trend-feed topic source.
func NewTrendSource(feedURL string, timeout time.Duration) *TrendSource {
	return &TrendSource{
		feedURL: feedURL,
		client:  newFeedClient(timeout),
	}
}

// Name implements Source.
func (s *TrendSource) Name() string { return SourceTrend }

// FetchCandidates implements Source.
func (s *TrendSource) FetchCandidates(ctx context.Context, writer config.Writer) ([]Topic, error) {
	items, err := s.client.fetch(ctx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("trends feed: %w", err)
	}

	var candidates []Topic
	for _, item := range items {
		keyword := strings.TrimSpace(item.Title)
		if keyword == "" {
			continue
		}
		candidates = append(candidates, Topic{
			Keyword:           keyword,
			Category:          "trending",
			Source:            SourceTrend,
			SearchVolumeLabel: strings.TrimSpace(item.Traffic),
		})
		if len(candidates) >= maxTrendCandidates {
			break
		}
	}

	return candidates, nil
}
