package scheduling

import (
	"time"

	"github.com/beateur/ninowash-backend/pkg/db/models"
	"github.com/beateur/ninowash-backend/pkg/enums"
)

const (
	// Lead times are measured from the pickup slot's end time, not its start:
	// the truck leaves when the window closes.
	standardLeadTime = 72 * time.Hour
	expressLeadTime  = 24 * time.Hour

	slotTimeLayout = "15:04"
)

// DeliveryEarliestDate computes the earliest moment a delivery slot may start
// for the given pickup slot and service class. Pure, no I/O.
//
// When the slot's end time cannot be parsed the function falls back to the
// start of today and returns false so callers can log the degradation.
func DeliveryEarliestDate(pickup models.LogisticSlot, class enums.ServiceClass, now time.Time) (time.Time, bool) {
	end, err := time.Parse(slotTimeLayout, pickup.EndTime)
	if err != nil {
		return startOfDay(now), false
	}

	pickupEnd := time.Date(
		pickup.Date.Year(), pickup.Date.Month(), pickup.Date.Day(),
		end.Hour(), end.Minute(), 0, 0,
		pickup.Date.Location(),
	)

	lead := standardLeadTime
	if class == enums.ServiceClassExpress {
		lead = expressLeadTime
	}
	return pickupEnd.Add(lead), true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
