package model

import (
	"fmt"
	"strings"
	"time"
)

// Item represents a lendable catalog item. Copies are tracked as counters,
// not as individual physical units.
type Item struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre"`
	MediaType       string    `json:"media_type"`
	Tags            []string  `json:"tags"`
	CopiesTotal     int       `json:"copies_total"`
	CopiesAvailable int       `json:"copies_available"`
	AvgRating       *float64  `json:"avg_rating,omitempty"`
	ImageMime       string    `json:"image_mime,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	// Waitlist holds member IDs in FIFO order (not always populated).
	Waitlist []string `json:"waitlist,omitempty"`
}

// Media types. The item ID prefix is authoritative for the media type.
const (
	MediaTypeBook  = "Book"
	MediaTypeEBook = "E-Book"
	MediaTypeDVD   = "DVD"
)

// DefaultLoanDays is used when an item's media type has no table entry.
const DefaultLoanDays = 14

// loanPeriods maps a media type to its loan period in days.
var loanPeriods = map[string]int{
	MediaTypeBook:  21,
	MediaTypeEBook: 14,
	MediaTypeDVD:   7,
}

// mediaTypeByPrefix maps an item ID prefix to its media type.
var mediaTypeByPrefix = map[string]string{
	"BK": MediaTypeBook,
	"EB": MediaTypeEBook,
	"DV": MediaTypeDVD,
}

// LoanPeriodDays returns the loan period for a media type.
func LoanPeriodDays(mediaType string) int {
	if days, ok := loanPeriods[mediaType]; ok {
		return days
	}
	return DefaultLoanDays
}

// NormalizeItemID uppercases and trims an item ID so lookups are consistent.
func NormalizeItemID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidateItemID checks the canonical item code format: a two-letter media
// prefix (BK, EB or DV) followed by exactly three digits.
func ValidateItemID(id string) error {
	code := NormalizeItemID(id)
	if len(code) != 5 {
		return fmt.Errorf("%w: item id %q must be 5 characters", ErrValidation, id)
	}
	if _, ok := mediaTypeByPrefix[code[:2]]; !ok {
		return fmt.Errorf("%w: item id %q must start with BK, EB or DV", ErrValidation, id)
	}
	for _, c := range code[2:] {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: item id %q must end with 3 digits", ErrValidation, id)
		}
	}
	return nil
}

// MediaTypeForID derives the media type from a valid item ID prefix.
func MediaTypeForID(id string) string {
	code := NormalizeItemID(id)
	if len(code) >= 2 {
		if mt, ok := mediaTypeByPrefix[code[:2]]; ok {
			return mt
		}
	}
	return MediaTypeBook
}

// Validate checks an item before insertion into the catalog.
func (i *Item) Validate() error {
	if err := ValidateItemID(i.ID); err != nil {
		return err
	}
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if i.CopiesTotal < 1 {
		return fmt.Errorf("%w: copies_total must be at least 1", ErrValidation)
	}
	if i.CopiesAvailable < 0 || i.CopiesAvailable > i.CopiesTotal {
		return fmt.Errorf("%w: copies_available must be between 0 and copies_total", ErrValidation)
	}
	if i.MediaType != "" && i.MediaType != MediaTypeForID(i.ID) {
		return fmt.Errorf("%w: media type %q does not match id prefix", ErrValidation, i.MediaType)
	}
	return nil
}

// Available reports whether at least one copy can be checked out.
func (i *Item) Available() bool {
	return i.CopiesAvailable > 0
}
