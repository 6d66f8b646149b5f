package honk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

func TestMonthDayRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		year      int
		month     int
		wantStart int
		wantEnd   int
	}{
		{"january", 2026, 1, 1, 31},
		{"february non-leap", 2026, 2, 32, 59},
		{"february leap", 2028, 2, 32, 60},
		{"december", 2026, 12, 335, 365},
		{"december leap year", 2028, 12, 336, 366},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start, end := monthDayRange(tt.year, tt.month)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestCartStartTime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2026-02-01T06:00:00-08:00", cartStartTime(2026, 2))
	assert.Equal(t, "2026-12-01T06:00:00-08:00", cartStartTime(2026, 12))
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	unit := domain.FetchUnit{
		Location: domain.Location{Key: "palisades", Label: "PALISADES", InventoryID: "G6HG"},
		Year:     2026,
		Month:    2,
	}

	req := buildQuery(unit)
	assert.Equal(t, "PublicParkingAvailability", req.OperationName)
	assert.Equal(t, "G6HG", req.Variables.ID)
	assert.Equal(t, "2026-02-01T06:00:00-08:00", req.Variables.CartStartTime)
	assert.Equal(t, 32, req.Variables.StartDay)
	assert.Equal(t, 59, req.Variables.EndDay)
	assert.Equal(t, 2026, req.Variables.Year)
	assert.Nil(t, req.Variables.CFToken)

	// cfToken must serialize as an explicit null.
	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"cfToken":null`)
}

func TestParseAvailability(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"data": {
			"publicParkingAvailability": {
				"2026-02-21T00:00:00-08:00": {"status": {"sold_out": false}}
			}
		}
	}`)

	avail, err := parseAvailability(body)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Contains(t, avail, "2026-02-21T00:00:00-08:00")
}

func TestParseAvailability_Malformed(t *testing.T) {
	t.Parallel()

	_, err := parseAvailability([]byte(`<html>blocked</html>`))
	assert.Error(t, err)
}

func TestParseAvailability_MissingPayload(t *testing.T) {
	t.Parallel()

	_, err := parseAvailability([]byte(`{"data": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
