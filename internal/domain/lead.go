// Package domain contains the core business entities and interfaces.
package domain

import (
	"strings"
	"time"

	apperrors "github.com/adworks/leadbot/internal/errors"
)

// LeadStatus represents the contact status of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// ValidLeadStatus reports whether s is one of the enumerated statuses.
func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}

// DefaultLeadSource is used when a submission does not name its origin.
const DefaultLeadSource = "website"

// SourceTelegram marks leads captured through the chat wizard.
const SourceTelegram = "telegram_bot"

// Lead represents a prospective customer's contact record captured via chat
// or web form.
type Lead struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Email     *string    `json:"email,omitempty"`
	Source    string     `json:"source"`
	Notes     *string    `json:"notes,omitempty"`
	Status    LeadStatus `json:"status"`
	AddedBy   *int64     `json:"added_by,omitempty"` // telegram user id for wizard-captured leads
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewLead creates a Lead with default values, validating the required
// fields. Name and phone must be non-blank.
func NewLead(name, phone, email, source, notes string) (*Lead, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	if name == "" {
		return nil, apperrors.MissingField("name")
	}
	if phone == "" {
		return nil, apperrors.MissingField("phone")
	}
	if source == "" {
		source = DefaultLeadSource
	}

	now := time.Now().UTC()
	lead := &Lead{
		Name:      name,
		Phone:     phone,
		Source:    source,
		Status:    LeadStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email = strings.TrimSpace(email); email != "" {
		lead.Email = &email
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		lead.Notes = &notes
	}
	return lead, nil
}

// LeadStats holds aggregate lead counts.
type LeadStats struct {
	Total    int                `json:"total"`
	Today    int                `json:"today"`
	ByStatus map[LeadStatus]int `json:"by_status"`
}

// ExportHeader is the fixed header row for CSV export, matching the column
// order of ExportRows.
var ExportHeader = []string{
	"id", "name", "phone", "email", "source", "notes", "status", "created_at", "updated_at",
}
