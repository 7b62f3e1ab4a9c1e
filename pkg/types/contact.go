package types

import (
	"fmt"
	"strings"
)

// GuestContact identifies the owner of a booking created without an account.
type GuestContact struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
}

// Validate checks that the contact is complete enough to reach the customer.
func (c GuestContact) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("guest contact: missing email")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("guest contact: missing phone")
	}
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return fmt.Errorf("guest contact: missing name")
	}
	return nil
}
