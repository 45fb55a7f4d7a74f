package domain

// EventKind identifies an inbound domain event. The values double as topic names.
type EventKind string

const (
	EventBookingCreated   EventKind = "booking.created"
	EventBookingCanceled  EventKind = "booking.canceled"
	EventBookingCheckedIn EventKind = "booking.checked_in"
	EventBookingNoShow    EventKind = "booking.no_show"
	EventResourceCreated  EventKind = "resource.created"
	EventResourceDeleted  EventKind = "resource.deleted"
	EventPolicyCreated    EventKind = "policy.created"
	EventPolicyUpdated    EventKind = "policy.updated"
	EventPolicyDeleted    EventKind = "policy.deleted"
)

// EventKinds lists every event the service subscribes to.
var EventKinds = []EventKind{
	EventBookingCreated,
	EventBookingCanceled,
	EventBookingCheckedIn,
	EventBookingNoShow,
	EventResourceCreated,
	EventResourceDeleted,
	EventPolicyCreated,
	EventPolicyUpdated,
	EventPolicyDeleted,
}

// Broadcast reports whether events of this kind target the whole user population
// rather than a single recipient carried in the payload.
func (k EventKind) Broadcast() bool {
	switch k {
	case EventResourceCreated, EventResourceDeleted, EventPolicyCreated, EventPolicyUpdated, EventPolicyDeleted:
		return true
	}
	return false
}
