package domain

import "time"

// Kind is the closed set of notification categories.
type Kind string

const (
	KindBookingConfirmed Kind = "BOOKING_CONFIRMED"
	KindBookingReminder  Kind = "BOOKING_REMINDER"
	KindBookingCanceled  Kind = "BOOKING_CANCELED"
	KindCheckInReminder  Kind = "CHECK_IN_REMINDER"
	KindNoShowAlert      Kind = "NO_SHOW_ALERT"
	KindResourceCreated  Kind = "RESOURCE_CREATED"
	KindResourceDeleted  Kind = "RESOURCE_DELETED"
	KindPolicyCreated    Kind = "POLICY_CREATED"
	KindPolicyUpdated    Kind = "POLICY_UPDATED"
	KindPolicyDeleted    Kind = "POLICY_DELETED"
)

var kinds = map[Kind]bool{
	KindBookingConfirmed: true,
	KindBookingReminder:  true,
	KindBookingCanceled:  true,
	KindCheckInReminder:  true,
	KindNoShowAlert:      true,
	KindResourceCreated:  true,
	KindResourceDeleted:  true,
	KindPolicyCreated:    true,
	KindPolicyUpdated:    true,
	KindPolicyDeleted:    true,
}

// Valid reports whether k belongs to the enumeration.
func (k Kind) Valid() bool { return kinds[k] }

// SystemConfiguration reports whether k announces a resource or policy change.
// Administrators are not notified of these since they make the changes themselves.
func (k Kind) SystemConfiguration() bool {
	switch k {
	case KindResourceCreated, KindResourceDeleted, KindPolicyCreated, KindPolicyUpdated, KindPolicyDeleted:
		return true
	}
	return false
}

// Notification is a message delivered (or attempted) to one user.
// IsRead and EmailSent only ever move from false to true.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id" db:"id"`
	UserID         string    `json:"userId" dynamodbav:"user_id" db:"user_id"`
	Kind           Kind      `json:"type" dynamodbav:"kind" db:"kind"`
	Title          string    `json:"title" dynamodbav:"title" db:"title"`
	Message        string    `json:"message" dynamodbav:"message" db:"message"`
	IsRead         bool      `json:"isRead" dynamodbav:"is_read" db:"is_read"`
	EmailSent      bool      `json:"emailSent" dynamodbav:"email_sent" db:"email_sent"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"created_at" db:"created_at"`
}

// BroadcastResult summarises one fan-out to the user population.
type BroadcastResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// BroadcastRequest is the body of an administrator announcement.
type BroadcastRequest struct {
	Kind  Kind   `json:"kind" validate:"required,notification_kind"`
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required"`
}
