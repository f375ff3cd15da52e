package query

import (
	"regexp"
	"strings"
	"time"

	"github.com/benvon/smart-diary/internal/models"
)

const (
	defaultWindowDays = 7
	weekWindowDays    = 7
	monthWindowDays   = 30
	lastWindowDays    = 1

	isoDateLayout = "2006-01-02"
)

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ParseDateRange resolves the time window a free-text question refers to.
// Relative phrasing ("last week", "last month", "last ...") wins over explicit
// YYYY-MM-DD dates; anything else is the trailing seven days. Day boundaries
// are taken in now's location.
func ParseDateRange(query string, now time.Time) models.DateRange {
	if strings.Contains(query, "last") {
		lower := strings.ToLower(query)
		switch {
		case strings.Contains(lower, "week"):
			return trailingDays(now, weekWindowDays)
		case strings.Contains(lower, "month"):
			return trailingDays(now, monthWindowDays)
		default:
			return trailingDays(now, lastWindowDays)
		}
	}

	if r, ok := explicitRange(query, now); ok {
		return r
	}
	return DefaultRange(now)
}

// DefaultRange is the trailing seven days ending today
func DefaultRange(now time.Time) models.DateRange {
	return trailingDays(now, defaultWindowDays)
}

// explicitRange uses the first two dates in the order written. A single date
// runs until the end of today.
func explicitRange(query string, now time.Time) (models.DateRange, bool) {
	tokens := isoDatePattern.FindAllString(query, -1)
	if len(tokens) == 0 {
		return models.DateRange{}, false
	}

	start, err := time.ParseInLocation(isoDateLayout, tokens[0], now.Location())
	if err != nil {
		return models.DateRange{}, false
	}
	end := now
	if len(tokens) > 1 {
		end, err = time.ParseInLocation(isoDateLayout, tokens[1], now.Location())
		if err != nil {
			return models.DateRange{}, false
		}
	}
	return models.DateRange{Start: startOfDay(start), End: endOfDay(end)}, true
}

func trailingDays(now time.Time, days int) models.DateRange {
	return models.DateRange{
		Start: startOfDay(now.AddDate(0, 0, -(days - 1))),
		End:   endOfDay(now),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
