package email

import (
	"context"
	"fmt"
	"regexp"
)

// EmailSender represents an interface for sending transactional emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) (*SendReceipt, error)
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string            `json:"send_to"`           // Email address of the recipient
	ToName   string            `json:"to_name,omitempty"` // Optional display name of the recipient
	Subject  string            `json:"subject"`           // Subject of the email
	BodyHTML string            `json:"body_html"`         // HTML body of the email
	BodyText string            `json:"body_text"`         // Plain-text fallback body
	ReplyTo  string            `json:"reply_to,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Tag      string            `json:"tag,omitempty"` // Optional, for provider-side analytics
}

// SendReceipt is returned on successful delivery to the provider.
type SendReceipt struct {
	MessageID string  `json:"message_id"` // Provider-assigned message identifier
	Cost      float64 `json:"cost"`       // Approximate cost of the send, for budget accounting
}

// emailRegex is a pragmatic address check; full RFC 5322 validation is the
// provider's job.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the minimum set of fields every provider needs.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if !emailRegex.MatchString(p.SendTo) {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" && p.BodyText == "" {
		return fmt.Errorf("%w: either BodyHTML or BodyText is required", ErrInvalidParams)
	}
	return nil
}
