package notify

import (
	"context"
	"time"
)

// Preferences holds per (tenant, recipient) delivery settings. Absence of a
// record means "allow everything" (default-open policy); the zero value of
// this struct is NOT default-open, use DefaultPreferences.
//
// Category toggles are explicit booleans rather than a dynamic field-name map
// so a typo in a category is a compile error, not a silently-open gate.
type Preferences struct {
	TenantID    string `json:"tenant_id"`
	RecipientID string `json:"recipient_id"`

	// Channel toggles
	EmailEnabled bool `json:"email_enabled"`
	InAppEnabled bool `json:"in_app_enabled"`

	// Category toggles
	Billing    bool `json:"billing"`
	Retention  bool `json:"retention"`
	Engagement bool `json:"engagement"`
	Workflow   bool `json:"workflow"`
	System     bool `json:"system"`
	Social     bool `json:"social"`

	// Quiet hours, local to the recipient's tenant. Hours are 0-23 and the
	// window may wrap past midnight (start > end). Nil means no quiet hours.
	QuietHoursStart *int `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   *int `json:"quiet_hours_end,omitempty"`

	// Daily send caps per channel; 0 means unlimited.
	MaxDailyEmail int `json:"max_daily_email"`
	MaxDailyInApp int `json:"max_daily_in_app"`

	// EmailOverride, when set, takes precedence over the recipient's account
	// email for this tenant.
	EmailOverride string `json:"email_override,omitempty"`
}

// DefaultPreferences returns the default-open settings applied when a
// recipient has no stored record.
func DefaultPreferences(tenantID, recipientID string) *Preferences {
	return &Preferences{
		TenantID:     tenantID,
		RecipientID:  recipientID,
		EmailEnabled: true,
		InAppEnabled: true,
		Billing:      true,
		Retention:    true,
		Engagement:   true,
		Workflow:     true,
		System:       true,
		Social:       true,
	}
}

// ChannelEnabled reports whether the channel is opted in.
func (p *Preferences) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelInApp:
		return p.InAppEnabled
	}
	return false
}

// CategoryEnabled reports whether the category is opted in.
func (p *Preferences) CategoryEnabled(c Category) bool {
	switch c {
	case CategoryBilling:
		return p.Billing
	case CategoryRetention:
		return p.Retention
	case CategoryEngagement:
		return p.Engagement
	case CategoryWorkflow:
		return p.Workflow
	case CategorySystem:
		return p.System
	case CategorySocial:
		return p.Social
	}
	return false
}

// DailyLimit returns the daily send cap for the channel; 0 means unlimited.
func (p *Preferences) DailyLimit(c Channel) int {
	switch c {
	case ChannelEmail:
		return p.MaxDailyEmail
	case ChannelInApp:
		return p.MaxDailyInApp
	}
	return 0
}

// InQuietHours reports whether t falls inside the recipient's quiet-hours
// window. Both boundary hours are inclusive. A window with start > end wraps
// past midnight: start=22, end=6 covers 22,23,0,...,6.
func (p *Preferences) InQuietHours(t time.Time) bool {
	if p.QuietHoursStart == nil || p.QuietHoursEnd == nil {
		return false
	}

	hour := t.Hour()
	start, end := *p.QuietHoursStart, *p.QuietHoursEnd

	if start <= end {
		return hour >= start && hour <= end
	}
	// Wraparound: the window is [start,24) ∪ [0,end]
	return hour >= start || hour <= end
}

// PreferenceStore is the read-only view of recipient delivery settings the
// engine consumes. Get returns (nil, nil) when no record exists, which the
// engine treats as default-open.
type PreferenceStore interface {
	Get(ctx context.Context, tenantID, recipientID string) (*Preferences, error)
}

// nopPreferenceStore allows everything; used when no store is configured.
type nopPreferenceStore struct{}

func (nopPreferenceStore) Get(ctx context.Context, tenantID, recipientID string) (*Preferences, error) {
	return nil, nil
}

// MemoryPreferenceStore is an in-memory PreferenceStore for development and
// testing.
type MemoryPreferenceStore struct {
	prefs map[string]*Preferences
}

// NewMemoryPreferenceStore creates an empty in-memory preference store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]*Preferences)}
}

// Set stores the preferences record for its (tenant, recipient) pair.
func (s *MemoryPreferenceStore) Set(p *Preferences) {
	s.prefs[p.TenantID+"/"+p.RecipientID] = p
}

func (s *MemoryPreferenceStore) Get(ctx context.Context, tenantID, recipientID string) (*Preferences, error) {
	p, ok := s.prefs[tenantID+"/"+recipientID]
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent external mutation of stored data
	cp := *p
	return &cp, nil
}
