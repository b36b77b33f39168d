package ports

import "context"

// EmailPublisher hands a committed mail event to the delivery pipeline.
// Delivery mechanics (templating, SMTP) are owned by the notification
// platform; this service only decides what should be sent.
type EmailPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}
