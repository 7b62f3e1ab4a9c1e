package enums

// ServiceClass selects the turnaround commitment for a laundry service.
type ServiceClass string

const (
	ServiceClassStandard ServiceClass = "standard"
	ServiceClassExpress  ServiceClass = "express"
)

// String implements fmt.Stringer.
func (c ServiceClass) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ServiceClass) IsValid() bool {
	return c == ServiceClassStandard || c == ServiceClassExpress
}
