package types

import (
	"fmt"
	"strings"
)

// AddressSnapshot is the address captured on a guest booking. Unlike
// registered-user addresses it has no row of its own; the snapshot is embedded
// in the booking so guest bookings stay self-contained.
type AddressSnapshot struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country,omitempty"`
}

// Validate checks the fields a pickup or delivery address cannot do without.
func (a AddressSnapshot) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}
