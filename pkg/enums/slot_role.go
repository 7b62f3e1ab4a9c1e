package enums

// SlotRole distinguishes pickup windows from delivery windows.
type SlotRole string

const (
	SlotRolePickup   SlotRole = "pickup"
	SlotRoleDelivery SlotRole = "delivery"
)

// String implements fmt.Stringer.
func (r SlotRole) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r SlotRole) IsValid() bool {
	return r == SlotRolePickup || r == SlotRoleDelivery
}
