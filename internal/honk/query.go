package honk

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

const (
	operationName = "PublicParkingAvailability"

	// The venue runs on a fixed Pacific offset; the cart clock opens at
	// 06:00 on the 1st of the queried month.
	venueUTCOffset = "-08:00"
)

const availabilityQuery = `query PublicParkingAvailability($id: ID!, $cartStartTime: String, $startDay: Int!, $endDay: Int!, $year: Int!, $cfToken: String) {
  publicParkingAvailability(id: $id, cartStartTime: $cartStartTime, startDay: $startDay, endDay: $endDay, year: $year, cfToken: $cfToken)
}`

type queryVariables struct {
	ID            string  `json:"id"`
	CartStartTime string  `json:"cartStartTime"`
	StartDay      int     `json:"startDay"`
	EndDay        int     `json:"endDay"`
	Year          int     `json:"year"`
	CFToken       *string `json:"cfToken"`
}

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     queryVariables `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		PublicParkingAvailability domain.RawAvailability `json:"publicParkingAvailability"`
	} `json:"data"`
}

// buildQuery parameterizes the availability operation for one fetch unit.
// cfToken stays null; the field exists so a browser-derived token could be
// threaded through.
func buildQuery(unit domain.FetchUnit) graphqlRequest {
	start, end := monthDayRange(unit.Year, unit.Month)
	return graphqlRequest{
		OperationName: operationName,
		Query:         availabilityQuery,
		Variables: queryVariables{
			ID:            unit.Location.InventoryID,
			CartStartTime: cartStartTime(unit.Year, unit.Month),
			StartDay:      start,
			EndDay:        end,
			Year:          unit.Year,
		},
	}
}

// monthDayRange returns the day-of-year span covering a month. Real
// calendar arithmetic, so December ends at Dec 31's day-of-year and leap
// Februaries get their 29th.
func monthDayRange(year, month int) (start, end int) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.YearDay(), last.YearDay()
}

// cartStartTime builds the cart-open timestamp: 1st of the month, 06:00,
// in the venue's fixed offset.
func cartStartTime(year, month int) string {
	return fmt.Sprintf("%04d-%02d-01T06:00:00%s", year, month, venueUTCOffset)
}

// parseAvailability extracts the per-date map from a GraphQL response body.
func parseAvailability(body []byte) (domain.RawAvailability, error) {
	var resp graphqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing availability response: %w", err)
	}
	if resp.Data.PublicParkingAvailability == nil {
		return nil, fmt.Errorf("availability payload missing from response")
	}
	return resp.Data.PublicParkingAvailability, nil
}
