// Package availability turns user date tokens into target dates and raw
// upstream payloads into normalized per-date statuses.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

// DateLayout is the canonical calendar date format used throughout.
const DateLayout = "2006-01-02"

// Relative date keywords accepted alongside explicit dates.
const (
	KeywordWeekend     = "weekend"      // the upcoming Saturday and Sunday
	KeywordNextWeekend = "next-weekend" // the weekend after that
)

// ErrInvalidDate marks a token that is neither a recognized keyword nor a
// parseable calendar date. This is a terminal configuration error.
var ErrInvalidDate = errors.New("invalid date token")

// ResolveDates expands tokens into a deduplicated sequence of calendar
// dates, preserving first-seen order. Keyword expansions are inserted in
// ascending order at the keyword's position. If today is already Saturday,
// "weekend" starts today rather than skipping a week.
func ResolveDates(tokens []string, now time.Time) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}

	for _, tok := range tokens {
		switch tok {
		case KeywordWeekend:
			sat := nextSaturday(now)
			add(sat.Format(DateLayout))
			add(sat.AddDate(0, 0, 1).Format(DateLayout))
		case KeywordNextWeekend:
			sat := nextSaturday(now).AddDate(0, 0, 7)
			add(sat.Format(DateLayout))
			add(sat.AddDate(0, 0, 1).Format(DateLayout))
		default:
			if _, err := time.Parse(DateLayout, tok); err != nil {
				return nil, fmt.Errorf(
					"%w: %q (want YYYY-MM-DD, %q or %q)",
					ErrInvalidDate, tok, KeywordWeekend, KeywordNextWeekend,
				)
			}
			add(tok)
		}
	}

	return out, nil
}

// nextSaturday returns midnight of the Saturday at or after now.
func nextSaturday(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}

// FetchUnits derives the deduplicated fetch set for a cycle: exactly one
// unit per distinct location and calendar month actually needed. Locations
// keep their input order; months are ascending.
func FetchUnits(locations []domain.Location, dates []string) ([]domain.FetchUnit, error) {
	type yearMonth struct {
		year  int
		month int
	}

	seen := make(map[yearMonth]bool)
	var months []yearMonth
	for _, d := range dates {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
		ym := yearMonth{t.Year(), int(t.Month())}
		if !seen[ym] {
			seen[ym] = true
			months = append(months, ym)
		}
	}

	sort.Slice(months, func(i, j int) bool {
		if months[i].year != months[j].year {
			return months[i].year < months[j].year
		}
		return months[i].month < months[j].month
	})

	units := make([]domain.FetchUnit, 0, len(locations)*len(months))
	for _, loc := range locations {
		for _, ym := range months {
			units = append(units, domain.FetchUnit{
				Location: loc,
				Year:     ym.year,
				Month:    ym.month,
			})
		}
	}

	return units, nil
}
