package notify

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/gymstack/gymkit/pkg/email"
)

// Receipt is what a channel sender returns on a successful send.
type Receipt struct {
	ExternalID string  // Provider-assigned identifier, if any
	Cost       float64 // Approximate cost of the send
}

// ChannelSender performs the actual delivery for one channel. Send is invoked
// with the full notification so senders can render channel-appropriate
// content. A returned error marks the attempt failed and eligible for retry.
type ChannelSender interface {
	Channel() Channel
	Send(ctx context.Context, n *Notification, d *Delivery) (*Receipt, error)
}

// AddressResolver maps a recipient to a channel address at creation time.
// Returning an empty string skips the channel for that recipient.
type AddressResolver interface {
	Resolve(ctx context.Context, tenantID, recipientID string, channel Channel) (string, error)
}

// AddressResolverFunc adapts a function to the AddressResolver interface.
type AddressResolverFunc func(ctx context.Context, tenantID, recipientID string, channel Channel) (string, error)

func (f AddressResolverFunc) Resolve(ctx context.Context, tenantID, recipientID string, channel Channel) (string, error) {
	return f(ctx, tenantID, recipientID, channel)
}

var templateVarRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// renderTemplate substitutes {{name}} placeholders from vars. Unknown
// placeholders are left intact so a missing variable is visible rather than
// silently blank.
func renderTemplate(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	return templateVarRegex.ReplaceAllStringFunc(s, func(m string) string {
		name := templateVarRegex.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

var tagRegex = regexp.MustCompile(`<[^>]*>`)

// stripMarkup produces a plain-text fallback from HTML message bodies.
func stripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRegex.ReplaceAllString(s, "")))
}

// EmailChannelSender delivers notifications over email using the configured
// transactional provider.
type EmailChannelSender struct {
	sender email.EmailSender
}

// NewEmailChannelSender wraps an email provider as a notification channel.
func NewEmailChannelSender(sender email.EmailSender) *EmailChannelSender {
	return &EmailChannelSender{sender: sender}
}

func (s *EmailChannelSender) Channel() Channel { return ChannelEmail }

func (s *EmailChannelSender) Send(ctx context.Context, n *Notification, d *Delivery) (*Receipt, error) {
	title := renderTemplate(n.Title, n.TemplateVars)
	message := renderTemplate(n.Message, n.TemplateVars)

	body := message
	if n.ActionURL != "" {
		label := n.ActionLabel
		if label == "" {
			label = n.ActionURL
		}
		body = fmt.Sprintf("%s<p><a href=%q>%s</a></p>", message, n.ActionURL, html.EscapeString(label))
	}

	receipt, err := s.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   d.Address,
		Subject:  title,
		BodyHTML: body,
		BodyText: stripMarkup(body),
		Tag:      string(n.Category),
	})
	if err != nil {
		return nil, fmt.Errorf("email send failed: %w", err)
	}
	return &Receipt{ExternalID: receipt.MessageID, Cost: receipt.Cost}, nil
}

// InAppMessage is a rendered notification as it appears in a recipient's
// in-app inbox.
type InAppMessage struct {
	NotificationID string         `json:"notification_id"`
	TenantID       string         `json:"tenant_id"`
	RecipientID    string         `json:"recipient_id"`
	Category       Category       `json:"category"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	ActionURL      string         `json:"action_url,omitempty"`
	ActionLabel    string         `json:"action_label,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Read           bool           `json:"read"`
}

// InAppStore is the inbox an in-app delivery writes into.
type InAppStore interface {
	Put(ctx context.Context, msg *InAppMessage) error
}

// InAppChannelSender delivers notifications into the recipient's in-app
// inbox. Writes are local, so this channel has no external failure modes
// beyond the store itself.
type InAppChannelSender struct {
	store InAppStore
}

// NewInAppChannelSender wraps an inbox store as a notification channel.
func NewInAppChannelSender(store InAppStore) *InAppChannelSender {
	return &InAppChannelSender{store: store}
}

func (s *InAppChannelSender) Channel() Channel { return ChannelInApp }

func (s *InAppChannelSender) Send(ctx context.Context, n *Notification, d *Delivery) (*Receipt, error) {
	msg := &InAppMessage{
		NotificationID: n.ID.String(),
		TenantID:       n.TenantID,
		RecipientID:    n.RecipientID,
		Category:       n.Category,
		Title:          renderTemplate(n.Title, n.TemplateVars),
		Message:        renderTemplate(n.Message, n.TemplateVars),
		ActionURL:      n.ActionURL,
		ActionLabel:    n.ActionLabel,
		Data:           n.Data,
	}
	if err := s.store.Put(ctx, msg); err != nil {
		return nil, fmt.Errorf("in-app store write failed: %w", err)
	}
	return &Receipt{}, nil
}

// MemoryInAppStore is an in-memory inbox for development and testing.
type MemoryInAppStore struct {
	mu       sync.Mutex
	messages map[string][]*InAppMessage
}

// NewMemoryInAppStore creates an empty in-memory inbox store.
func NewMemoryInAppStore() *MemoryInAppStore {
	return &MemoryInAppStore{messages: make(map[string][]*InAppMessage)}
}

func (s *MemoryInAppStore) Put(ctx context.Context, msg *InAppMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := msg.TenantID + "/" + msg.RecipientID
	s.messages[key] = append(s.messages[key], msg)
	return nil
}

// Inbox returns the messages delivered to a recipient, oldest first.
func (s *MemoryInAppStore) Inbox(tenantID, recipientID string) []*InAppMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[tenantID+"/"+recipientID]
	out := make([]*InAppMessage, len(msgs))
	copy(out, msgs)
	return out
}
