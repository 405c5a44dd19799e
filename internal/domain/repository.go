package domain

import (
	"context"
)

// LeadRepository defines the interface for lead persistence.
type LeadRepository interface {
	// Create inserts a new lead and fills in its generated ID.
	Create(ctx context.Context, lead *Lead) error

	// Recent retrieves up to limit leads, newest first.
	Recent(ctx context.Context, limit int) ([]*Lead, error)

	// UpdateStatus sets the status of a lead. Returns false (and no error)
	// when the lead does not exist.
	UpdateStatus(ctx context.Context, id int64, status LeadStatus) (bool, error)

	// Stats returns aggregate lead counts. All zeros on an empty table.
	Stats(ctx context.Context) (*LeadStats, error)

	// ExportRows returns every lead as a flat row in ExportHeader order.
	ExportRows(ctx context.Context) ([][]string, error)
}

// UserRepository defines the interface for registered-user persistence.
type UserRepository interface {
	// Register inserts the user if the ID is unseen and returns the stored
	// record plus whether a new row was created. Idempotent: an existing
	// row is returned unchanged with created == false.
	Register(ctx context.Context, user *RegisteredUser) (*RegisteredUser, bool, error)

	// GetByID retrieves a user by Telegram ID.
	GetByID(ctx context.Context, id int64) (*RegisteredUser, error)

	// BumpScore increments the user's score by delta, clamped to the
	// configured cap. Unknown IDs are a no-op.
	BumpScore(ctx context.Context, id int64, delta int) error

	// ReferralCount returns the number of users directly referred by id.
	ReferralCount(ctx context.Context, id int64) (int, error)

	// DownlineCount returns the number of users transitively referred by
	// id, any depth. Must terminate even if the referral data contains an
	// accidental cycle.
	DownlineCount(ctx context.Context, id int64) (int, error)

	// All returns every registered user.
	All(ctx context.Context) ([]*RegisteredUser, error)

	// Count returns the total number of registered users.
	Count(ctx context.Context) (int, error)
}

// InteractionRepository defines the interface for interaction logging.
type InteractionRepository interface {
	// Create inserts a new interaction record.
	Create(ctx context.Context, interaction *Interaction) error

	// CountSince returns the number of interactions recorded since the
	// given number of hours ago.
	CountSince(ctx context.Context, hours int) (int, error)
}
