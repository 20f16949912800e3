// Package mail renders transactional emails and delivers them over SMTP.
package mail

import (
	"context"
	"fmt"
)

// Address is a mailbox with an optional display name.
type Address struct {
	Name  string
	Email string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Message is a rendered email with plain text and HTML bodies.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message to one recipient.
type Sender interface {
	Send(ctx context.Context, to Address, msg Message) error
}
