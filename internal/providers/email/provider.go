// Package email sends transactional mail. Delivery is best-effort: callers
// log failures and continue, since every mailed token is also retrievable
// through the API response.
package email

import "context"

type Message struct {
	To      string
	Subject string
	Body    string
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}
