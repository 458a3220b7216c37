// Package notify renders and delivers email notifications, and runs the
// password-expiry warning sweep.
package notify

import "context"

// Message is a fully rendered email ready for delivery.
type Message struct {
	From     string
	To       string
	Subject  string
	BodyText string
	BodyHTML string
}

// Backend delivers a rendered message. Implementations exist for SMTP and
// Amazon SES.
type Backend interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}
