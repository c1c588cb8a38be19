package email_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gymstack/gymkit/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "member@example.com",
		Subject:  "Payment failed",
		BodyHTML: "<p>We could not charge your card.</p>",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	t.Run("valid params", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validParams().Validate())
	})

	t.Run("text-only body is enough", func(t *testing.T) {
		t.Parallel()

		p := validParams()
		p.BodyHTML = ""
		p.BodyText = "plain text"
		assert.NoError(t, p.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*email.SendEmailParams)
	}{
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = "" }},
		{"malformed address", func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }},
		{"missing domain", func(p *email.SendEmailParams) { p.SendTo = "user@" }},
		{"missing subject", func(p *email.SendEmailParams) { p.Subject = "" }},
		{"missing body", func(p *email.SendEmailParams) { p.BodyHTML = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
		})
	}
}
