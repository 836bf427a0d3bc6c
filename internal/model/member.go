package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Member represents a registered member and their account state.
type Member struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Active           bool            `json:"active"`
	Balance          decimal.Decimal `json:"balance"`
	PreferredTags    []string        `json:"preferences_tags"`
	PreferredAuthors []string        `json:"preferences_authors"`
	CreatedAt        time.Time       `json:"created_at"`

	// Loans maps item ID to the member's latest loan record for that item
	// (not always populated).
	Loans map[string]Loan `json:"loans,omitempty"`
}

// Validate checks a member before registration.
func (m *Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: member id cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: member name cannot be empty", ErrValidation)
	}
	return ValidateEmail(m.Email)
}

// ValidateEmail checks the minimal email shape: an @ with a dot somewhere
// in the domain part.
func ValidateEmail(email string) error {
	e := strings.TrimSpace(email)
	at := strings.LastIndex(e, "@")
	if at <= 0 || !strings.Contains(e[at+1:], ".") {
		return fmt.Errorf("%w: invalid email address %q", ErrValidation, email)
	}
	return nil
}
