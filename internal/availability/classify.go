package availability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/parkwatch/parkwatch/pkg/types"
)

const msgOutsideSeason = "date not in availability data (may be outside reservation season)"

// Classify reduces a raw month payload plus a target date into a normalized
// DateStatus. It is a pure function: the same payload and date always yield
// the same result.
//
// The raw map's keys are full timestamps; a key matches the target iff its
// date portion equals the target string. The upstream key format is a stable
// convention, so matching truncates at the first time separator rather than
// parsing dates.
func Classify(avail domain.RawAvailability, targetDate string) domain.DateStatus {
	// Map iteration order is random, so when several timestamp keys share
	// the target date the earliest key wins, keeping the result stable.
	var dayKey string
	for key := range avail {
		if truncateDateKey(key) != targetDate {
			continue
		}
		if dayKey == "" || key < dayKey {
			dayKey = key
		}
	}

	if dayKey == "" {
		return domain.DateStatus{
			Date:    targetDate,
			Message: msgOutsideSeason,
		}
	}

	flags, rates, err := decodeDayRecord(avail[dayKey])
	if err != nil {
		return domain.DateStatus{
			Date:    targetDate,
			Message: fmt.Sprintf("malformed day record: %v", err),
		}
	}

	return domain.DateStatus{
		Date:                 targetDate,
		Found:                true,
		SoldOut:              flags.SoldOut,
		Unavailable:          flags.Unavailable,
		ReservationNotNeeded: flags.ReservationNotNeeded,
		Rates:                rates,
	}
}

// truncateDateKey extracts YYYY-MM-DD from an ISO date-time key.
func truncateDateKey(key string) string {
	if i := strings.IndexByte(key, 'T'); i >= 0 {
		return key[:i]
	}
	return key
}

type statusFlags struct {
	SoldOut              bool `json:"sold_out"`
	Unavailable          bool `json:"unavailable"`
	ReservationNotNeeded bool `json:"reservation_not_needed"`
}

// decodeDayRecord walks the day record's fields in document order, so rate
// offers come out in the upstream's insertion order. A plain map unmarshal
// would lose that ordering.
func decodeDayRecord(raw json.RawMessage) (statusFlags, []domain.RateOffer, error) {
	var flags statusFlags
	var rates []domain.RateOffer

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return flags, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return flags, nil, fmt.Errorf("day record is not an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return flags, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return flags, nil, fmt.Errorf("unexpected token %v in day record", keyTok)
		}

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return flags, nil, fmt.Errorf("field %q: %w", key, err)
		}

		if key == "status" {
			// Absent flags default to false.
			_ = json.Unmarshal(val, &flags) //nolint:errcheck // best-effort, upstream-defined shape
			continue
		}

		if offer, ok := decodeOffer(key, val); ok {
			rates = append(rates, offer)
		}
	}

	return flags, rates, nil
}

// decodeOffer turns a day-record field into a RateOffer. Only object values
// carrying an "available" field count; everything else is upstream noise.
func decodeOffer(key string, val json.RawMessage) (domain.RateOffer, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(val, &fields); err != nil {
		return domain.RateOffer{}, false
	}
	if _, ok := fields["available"]; !ok {
		return domain.RateOffer{}, false
	}

	offer := domain.RateOffer{
		ID:          stringField(fields, "hashid", key),
		Description: stringField(fields, "description", "Unknown"),
		Price:       "?",
		Available:   boolField(fields, "available"),
	}
	if raw, ok := fields["price"]; ok {
		offer.Price = decodePrice(raw)
	}
	offer.Notification = boolField(fields, "notification")

	return offer, true
}

func stringField(fields map[string]json.RawMessage, key, fallback string) string {
	raw, ok := fields[key]
	if !ok {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	return s
}

func boolField(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	var b bool
	_ = json.Unmarshal(raw, &b) //nolint:errcheck // non-bool defaults to false
	return b
}

// decodePrice tolerates the upstream sending prices as either JSON strings
// or bare numbers.
func decodePrice(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return "?"
}
