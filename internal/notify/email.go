package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Email sends event summaries over SMTP.
type Email struct {
	host string
	port int
	user string
	pass string
	from string
	to   string

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail creates an SMTP notifier. user and pass may be empty for
// unauthenticated relays.
func NewEmail(host string, port int, user, pass, to string) *Email {
	from := user
	if from == "" {
		from = "icabatch@localhost"
	}
	return &Email{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: from,
		to:   to,
		send: smtp.SendMail,
	}
}

// Notify sends the event as a plain-text email.
func (e *Email) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.from)
	fmt.Fprintf(&msg, "To: %s\r\n", e.to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", event.Subject())
	msg.WriteString("\r\n")
	msg.WriteString(event.Body())
	msg.WriteString("\r\n")

	var auth smtp.Auth
	if e.user != "" && e.pass != "" {
		auth = smtp.PlainAuth("", e.user, e.pass, e.host)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	return e.send(addr, auth, e.from, []string{e.to}, []byte(msg.String()))
}
