package enums

// PaymentRecordStatus is the outcome recorded for a provider invoice event.
type PaymentRecordStatus string

const (
	PaymentRecordStatusSucceeded PaymentRecordStatus = "succeeded"
	PaymentRecordStatusFailed    PaymentRecordStatus = "failed"
)

// String implements fmt.Stringer.
func (s PaymentRecordStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PaymentRecordStatus) IsValid() bool {
	return s == PaymentRecordStatusSucceeded || s == PaymentRecordStatusFailed
}
