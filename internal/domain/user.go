package domain

import (
	"strings"
	"time"

	apperrors "github.com/adworks/leadbot/internal/errors"
)

// DefaultLeadScore is the score assigned on first registration.
const DefaultLeadScore = 1

// RegisteredUser is a chat-platform identity that has interacted with the
// bot at least once. The Telegram user ID is the primary key.
type RegisteredUser struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Handle     *string   `json:"handle,omitempty"`
	ReferrerID *int64    `json:"referrer_id,omitempty"`
	Campaign   *string   `json:"campaign,omitempty"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRegisteredUser creates a RegisteredUser with default values.
func NewRegisteredUser(id int64, name, handle string) (*RegisteredUser, error) {
	if id == 0 {
		return nil, apperrors.MissingField("id")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unknown"
	}

	u := &RegisteredUser{
		ID:        id,
		Name:      name,
		Score:     DefaultLeadScore,
		CreatedAt: time.Now().UTC(),
	}
	if handle = strings.TrimSpace(handle); handle != "" {
		u.Handle = &handle
	}
	return u, nil
}

// WithReferrer links the user to the referrer that brought them in.
// Self-reference is dropped; a user cannot refer themselves.
func (u *RegisteredUser) WithReferrer(referrerID int64) *RegisteredUser {
	if referrerID != 0 && referrerID != u.ID {
		u.ReferrerID = &referrerID
	}
	return u
}

// WithCampaign tags the user with the campaign that brought them in.
func (u *RegisteredUser) WithCampaign(campaign string) *RegisteredUser {
	if campaign = strings.TrimSpace(campaign); campaign != "" {
		u.Campaign = &campaign
	}
	return u
}

// Interaction logs one free-text AI exchange: the message, when it arrived,
// and a best-effort intent label.
type Interaction struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
}

// IntentGeneral is the fallback intent label used when classification is
// disabled, fails, or returns anything outside the known label set.
const IntentGeneral = "general"

// KnownIntents is the closed label set the classifier may produce.
var KnownIntents = []string{"pricing", "support", "complaint", IntentGeneral}

// NormalizeIntent maps raw classifier output onto the known label set,
// defaulting to IntentGeneral on any anomaly.
func NormalizeIntent(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	for _, known := range KnownIntents {
		if label == known {
			return known
		}
	}
	return IntentGeneral
}
