package enums

import "fmt"

// EventStatus is the normalized status carried by a canonical payment
// event after adapter translation.
type EventStatus string

const (
	EventStatusApproved  EventStatus = "approved"
	EventStatusPending   EventStatus = "pending"
	EventStatusRejected  EventStatus = "rejected"
	EventStatusCancelled EventStatus = "cancelled"
)

var validEventStatuses = []EventStatus{
	EventStatusApproved,
	EventStatusPending,
	EventStatusRejected,
	EventStatusCancelled,
}

// String implements fmt.Stringer.
func (s EventStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known EventStatus.
func (s EventStatus) IsValid() bool {
	for _, candidate := range validEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEventStatus converts raw input into an EventStatus.
func ParseEventStatus(value string) (EventStatus, error) {
	for _, candidate := range validEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event status %q", value)
}
