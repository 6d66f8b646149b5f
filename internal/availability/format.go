package availability

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

// LocationResult pairs a location with the classified statuses of every
// target date for one cycle.
type LocationResult struct {
	Location domain.Location
	Statuses []domain.DateStatus
}

// FormatStatus renders one date's verdict for console display. The SOLD OUT
// line only appears when no offer is available; an available offer beats the
// upstream sold_out flag for the booking decision, but the flag still drives
// rendering when all offers are gone.
func FormatStatus(loc domain.Location, st *domain.DateStatus) string {
	prefix := fmt.Sprintf("  %s | %s", loc.Label, st.Date)

	switch {
	case !st.Found:
		return fmt.Sprintf("%s: %s", prefix, st.Message)
	case st.ReservationNotNeeded:
		return prefix + ": No reservation needed (open parking)"
	case st.Unavailable:
		return prefix + ": UNAVAILABLE"
	case st.SoldOut && !st.Available():
		return prefix + ": SOLD OUT"
	case len(st.Rates) == 0:
		return prefix + ": No rate info available"
	}

	lines := make([]string, 0, len(st.Rates))
	for i := range st.Rates {
		rate := &st.Rates[i]
		tag := "sold out"
		if rate.Available {
			tag = "AVAILABLE"
		}
		lines = append(lines, fmt.Sprintf(
			"%s: [%s] %s (%s)",
			prefix, tag, rate.Description, FormatPrice(rate.Price),
		))
	}
	return strings.Join(lines, "\n")
}

// FormatPrice renders a decimal-as-text price for display. Any decimal zero
// means the rate is free; unparseable text passes through with a dollar sign.
func FormatPrice(price string) string {
	if d, err := decimal.NewFromString(price); err == nil && d.IsZero() {
		return "FREE"
	}
	return "$" + price
}

// BuildAlertMessage enumerates every available offer across all locations
// and dates. Returns "" when nothing is available.
func BuildAlertMessage(results []LocationResult) string {
	var lines []string
	for _, res := range results {
		for i := range res.Statuses {
			st := &res.Statuses[i]
			for j := range st.Rates {
				rate := &st.Rates[j]
				if !rate.Available {
					continue
				}
				lines = append(lines, fmt.Sprintf(
					"%s %s: %s (%s)",
					res.Location.Label, st.Date, rate.Description, FormatPrice(rate.Price),
				))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// BuildStatusSummary produces the compact per-pair verdict list used by
// heartbeat notifications.
func BuildStatusSummary(results []LocationResult) string {
	var lines []string
	for _, res := range results {
		for i := range res.Statuses {
			st := &res.Statuses[i]
			lines = append(lines, summaryLine(res.Location, st))
		}
	}
	if len(lines) == 0 {
		return "No data"
	}
	return strings.Join(lines, "\n")
}

func summaryLine(loc domain.Location, st *domain.DateStatus) string {
	prefix := fmt.Sprintf("%s %s", loc.Label, st.Date)

	switch {
	case !st.Found:
		return prefix + ": not found"
	case st.ReservationNotNeeded:
		return prefix + ": no reservation needed"
	case st.SoldOut && !st.Available():
		return prefix + ": SOLD OUT"
	case st.Unavailable:
		return prefix + ": unavailable"
	}

	var open, sold int
	for i := range st.Rates {
		if st.Rates[i].Available {
			open++
		} else {
			sold++
		}
	}
	return fmt.Sprintf("%s: %d available, %d sold out", prefix, open, sold)
}
