package bookings

import "fmt"

// FormatNumber renders the human-facing booking number from the insert
// sequence, e.g. NW-000042. Widths beyond six digits simply grow.
func FormatNumber(seq int64) string {
	return fmt.Sprintf("NW-%06d", seq)
}
