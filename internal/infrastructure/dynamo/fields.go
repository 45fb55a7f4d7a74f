package dynamo

// Attribute and index names of the notifications table.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldNotificationID = "notification_id"
	fieldUserID         = "user_id"
	fieldCreatedAt      = "created_at"
	fieldIsRead         = "is_read"
	fieldEmailSent      = "email_sent"

	indexUserCreatedAt = "user_id-created_at-index"
)
