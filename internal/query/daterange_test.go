package query

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm, ss, ns int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, ns, time.UTC)
}

func TestParseDateRange(t *testing.T) {
	t.Parallel()

	now := date(2024, 3, 15, 10, 30, 0, 0)
	endOfToday := date(2024, 3, 15, 23, 59, 59, 999999999)

	tests := []struct {
		name      string
		query     string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "last month is 30 days ending today",
			query:     "show my activities from last month",
			wantStart: date(2024, 2, 15, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "last week",
			query:     "how far did I run last week",
			wantStart: date(2024, 3, 9, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "week is matched case-insensitively",
			query:     "last WEEK",
			wantStart: date(2024, 3, 9, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "last alone is today",
			query:     "what did I log last",
			wantStart: date(2024, 3, 15, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "last as a substring still counts",
			query:     "blast from the past",
			wantStart: date(2024, 3, 15, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "capitalized Last is not relative",
			query:     "Last month please",
			wantStart: date(2024, 3, 9, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "relative beats explicit dates",
			query:     "last month, not 2023-01-01",
			wantStart: date(2024, 2, 15, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "two explicit dates",
			query:     "entries between 2024-03-01 and 2024-03-10",
			wantStart: date(2024, 3, 1, 0, 0, 0, 0),
			wantEnd:   date(2024, 3, 10, 23, 59, 59, 999999999),
		},
		{
			name:      "one explicit date runs to today",
			query:     "since 2024-03-01",
			wantStart: date(2024, 3, 1, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "reversed dates are kept in order found",
			query:     "from 2024-03-10 to 2024-03-01",
			wantStart: date(2024, 3, 10, 0, 0, 0, 0),
			wantEnd:   date(2024, 3, 1, 23, 59, 59, 999999999),
		},
		{
			name:      "extra dates are ignored",
			query:     "2024-01-01 2024-01-02 2024-01-03",
			wantStart: date(2024, 1, 1, 0, 0, 0, 0),
			wantEnd:   date(2024, 1, 2, 23, 59, 59, 999999999),
		},
		{
			name:      "invalid first date falls back to default",
			query:     "since 2024-02-30",
			wantStart: date(2024, 3, 9, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "invalid second date falls back to default",
			query:     "2024-03-01 to 2024-13-01",
			wantStart: date(2024, 3, 9, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "default is the trailing seven days",
			query:     "how am I doing?",
			wantStart: date(2024, 3, 9, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
		{
			name:      "empty query",
			query:     "",
			wantStart: date(2024, 3, 9, 0, 0, 0, 0),
			wantEnd:   endOfToday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseDateRange(tt.query, now)
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", got.Start, tt.wantStart)
			}
			if !got.End.Equal(tt.wantEnd) {
				t.Errorf("End = %v, want %v", got.End, tt.wantEnd)
			}
		})
	}
}

func TestParseDateRange_UsesNowLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC-5", -5*60*60)
	// 02:00 UTC on the 16th is still the 15th in UTC-5
	now := time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC).In(loc)

	got := ParseDateRange("last", now)
	wantStart := time.Date(2024, 3, 15, 0, 0, 0, 0, loc)
	if !got.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", got.Start, wantStart)
	}
	if got.End.Location() != loc {
		t.Errorf("End location = %v, want %v", got.End.Location(), loc)
	}
}

func TestDefaultRange_ContainsBoundaries(t *testing.T) {
	t.Parallel()

	now := date(2024, 3, 15, 10, 0, 0, 0)
	r := DefaultRange(now)
	if !r.Contains(date(2024, 3, 9, 0, 0, 0, 0)) {
		t.Error("range should contain its first instant")
	}
	if !r.Contains(date(2024, 3, 15, 23, 59, 59, 999999999)) {
		t.Error("range should contain its last instant")
	}
	if r.Contains(date(2024, 3, 8, 23, 59, 59, 999999999)) {
		t.Error("range should not contain the day before")
	}
}
