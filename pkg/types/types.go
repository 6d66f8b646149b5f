// Package domain defines the core business types for the parking watcher.
package domain

import (
	"encoding/json"
	"fmt"
)

// RawAvailability is the upstream per-month payload: a map from full
// date-time keys to opaque per-day records. The record shape is
// upstream-defined and partially unknown, so values stay raw until
// classification.
type RawAvailability map[string]json.RawMessage

// Location identifies one parking venue zone on the upstream platform.
type Location struct {
	Key         string `json:"key"          yaml:"key"`
	Label       string `json:"label"        yaml:"label"`
	InventoryID string `json:"inventory_id" yaml:"inventory_id"`
}

// FetchUnit is the smallest upstream query granule: availability is scoped
// by whole month per location.
type FetchUnit struct {
	Location Location
	Year     int
	Month    int
}

// String renders a unit for log lines, e.g. "palisades/2026-02".
func (u FetchUnit) String() string {
	return fmt.Sprintf("%s/%04d-%02d", u.Location.Key, u.Year, u.Month)
}

// RateOffer is one priced parking product for a date, with its own
// availability flag.
type RateOffer struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Price       string `json:"price"` // decimal as text; zero means free
	Available   bool   `json:"available"`
	// Notification mirrors the upstream "notify me" flag on an offer.
	Notification bool `json:"notification"`
}

// DateStatus is the normalized per-date availability verdict derived from a
// raw upstream payload. It is recomputed fresh each poll cycle and never
// mutated.
type DateStatus struct {
	Date    string `json:"date"`
	Found   bool   `json:"found"`
	Message string `json:"message,omitempty"`

	SoldOut              bool `json:"sold_out"`
	Unavailable          bool `json:"unavailable"`
	ReservationNotNeeded bool `json:"reservation_not_needed"`

	Rates []RateOffer `json:"rates,omitempty"`
}

// Available reports whether the date is actually bookable. Offer-level truth
// wins: the upstream sold_out flag can disagree with per-offer availability,
// and the notification decision deliberately trusts the offers. Rendering
// keeps its own SOLD OUT rule.
func (s *DateStatus) Available() bool {
	if !s.Found || s.Unavailable {
		return false
	}
	for i := range s.Rates {
		if s.Rates[i].Available {
			return true
		}
	}
	return false
}
