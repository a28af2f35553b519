package topics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"blogpilot/config"
)

const (
	maxNewsCandidates = 10
	maxRationaleLen   = 280
)

// NewsSource yields topic candidates from a Google News RSS feed,
// optionally filtered by the writer's interests.
type NewsSource struct {
	feedURL    string
	client     *feedClient
	httpClient *http.Client
	excerpts   bool
}

// NewsOption configures a NewsSource.
type NewsOption func(*NewsSource)

// WithNewsExcerpts toggles fetching a short article excerpt for each
// candidate's rationale.
func WithNewsExcerpts(enabled bool) NewsOption {
	return func(s *NewsSource) {
		s.excerpts = enabled
	}
}

// NewNewsSource creates a news-feed topic source.
func NewNewsSource(feedURL string, timeout time.Duration, opts ...NewsOption) *NewsSource {
	s := &NewsSource{
		feedURL:    feedURL,
		client:     newFeedClient(timeout),
		httpClient: &http.Client{Timeout: timeout},
		excerpts:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *NewsSource) Name() string { return SourceNews }

// FetchCandidates implements Source. Interest-matched headlines come
// first; transport failures surface as errors for the selector to treat
// as empty.
func (s *NewsSource) FetchCandidates(ctx context.Context, writer config.Writer) ([]Topic, error) {
	feedURL := s.feedURL
	if len(writer.Interests) > 0 {
		feedURL = s.searchURL(writer.Interests[0])
	}

	items, err := s.client.fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("news feed: %w", err)
	}

	var candidates []Topic
	var firstLink string
	for _, item := range items {
		keyword := headlineKeyword(item.Title)
		if keyword == "" {
			continue
		}
		if len(candidates) == 0 {
			firstLink = item.Link
		}
		candidates = append(candidates, Topic{
			Keyword:  keyword,
			Category: "news",
			Source:   SourceNews,
		})
		if len(candidates) >= maxNewsCandidates {
			break
		}
	}

	if s.excerpts && len(candidates) > 0 {
		// Best effort: a missing excerpt never blocks selection.
		if rationale := s.articleExcerpt(ctx, firstLink); rationale != "" {
			candidates[0].Rationale = rationale
		}
	}

	return candidates, nil
}

func (s *NewsSource) searchURL(interest string) string {
	base := strings.TrimSuffix(s.feedURL, "/rss")
	return fmt.Sprintf("%s/rss/search?q=%s", base, url.QueryEscape(interest))
}

func (s *NewsSource) articleExcerpt(ctx context.Context, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; blogpilot/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Debug("excerpt fetch failed", "url", rawURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return ""
	}

	excerpt := strings.TrimSpace(article.TextContent)
	if len(excerpt) > maxRationaleLen {
		excerpt = excerpt[:maxRationaleLen]
	}
	return excerpt
}

// headlineKeyword strips the trailing " - Publisher" suffix Google News
// appends to headlines.
func headlineKeyword(title string) string {
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}
