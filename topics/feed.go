package topics

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"
)

// rssFeed is the subset of the RSS 2.0 document both Google News and
// Google Trends feeds share.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Traffic     string `xml:"approx_traffic"`
}

// feedClient fetches and decodes RSS feeds.
type feedClient struct {
	httpClient *http.Client
}

func newFeedClient(timeout time.Duration) *feedClient {
	return &feedClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *feedClient) fetch(ctx context.Context, url string) ([]rssItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; blogpilot/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	return feed.Channel.Items, nil
}
