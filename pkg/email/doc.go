// Package email provides a provider-agnostic interface for sending
// transactional emails with built-in support for Postmark.
//
// The package is built around the EmailSender interface, allowing different
// email providers to be swapped without changing application code. Currently
// supported:
//   - PostmarkClient for production email delivery with tracking
//   - DevSender for local development (saves emails to disk)
//
// All implementations validate email parameters before sending and return a
// SendReceipt carrying the provider message id and an approximate cost, which
// downstream delivery bookkeeping records for budget accounting.
//
// # Usage
//
//	cfg := email.Config{
//	    PostmarkServerToken:  "your-server-token",
//	    PostmarkAccountToken: "your-account-token",
//	    SenderEmail:          "noreply@example.com",
//	    SupportEmail:         "support@example.com",
//	}
//
//	client, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//	    // Handle configuration error
//	}
//
//	receipt, err := client.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "member@example.com",
//	    Subject:  "Your membership renews tomorrow",
//	    BodyHTML: htmlContent,
//	    BodyText: textContent,
//	    Tag:      "billing", // optional, for analytics
//	})
//
// Development mode saves emails locally instead:
//
//	devSender := email.NewDevSender("./email-output")
//	receipt, err := devSender.SendEmail(ctx, params)
//
// # Error Handling
//
// The package provides sentinel errors for common failure scenarios:
//   - ErrInvalidConfig: Configuration validation failed
//   - ErrInvalidParams: Email parameters validation failed
//   - ErrFailedToSendEmail: Email delivery failed
//
// All errors can be checked using errors.Is() for programmatic handling.
package email
