package topics

import (
	"context"
	"strconv"
	"strings"
	"time"

	"blogpilot/config"
)

// seasonalLeadDays is how far ahead of its date a calendar event
// becomes a candidate.
const seasonalLeadDays = 21

// SeasonalSource yields topic candidates from the configured seasonal
// calendar. It never performs I/O.
type SeasonalSource struct {
	calendar map[int][]config.SeasonalEvent
	now      func() time.Time
}

// NewSeasonalSource creates a calendar-backed topic source.
func NewSeasonalSource(calendar map[int][]config.SeasonalEvent, now func() time.Time) *SeasonalSource {
	if now == nil {
		now = time.Now
	}
	return &SeasonalSource{calendar: calendar, now: now}
}

// Name implements Source.
func (s *SeasonalSource) Name() string { return SourceSeasonal }

// FetchCandidates implements Source. An event is a candidate when today
// falls within its lead window; year placeholders in the keyword are
// substituted with the current year.
func (s *SeasonalSource) FetchCandidates(ctx context.Context, writer config.Writer) ([]Topic, error) {
	now := s.now()
	month := int(now.Month())
	day := now.Day()
	year := now.Year()

	var candidates []Topic
	for _, event := range s.calendar[month] {
		daysUntil := event.PublishBefore - day
		if daysUntil < 0 || daysUntil > seasonalLeadDays {
			continue
		}
		candidates = append(candidates, Topic{
			Keyword:  substituteYear(event.Keyword, year),
			Category: event.Category,
			Source:   SourceSeasonal,
		})
	}

	return candidates, nil
}

// substituteYear replaces a 4-digit year token in the keyword with the
// current year so calendar entries stay valid across years.
func substituteYear(keyword string, year int) string {
	fields := strings.Fields(keyword)
	for i, f := range fields {
		if len(f) == 4 {
			if _, err := strconv.Atoi(f); err == nil {
				fields[i] = strconv.Itoa(year)
			}
		}
	}
	return strings.Join(fields, " ")
}
