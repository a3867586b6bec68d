package domain

import (
	"context"
	"time"
)

// InvitationExpiryDays is how long an issued invitation stays redeemable.
const InvitationExpiryDays = 7

// Invitation is a single-use, emailed onboarding token. Once Used is set the
// token is permanently invalid; expired tokens are garbage-collected by the
// sweep that runs ahead of verification and registration.
type Invitation struct {
	Token     string // unique, crypto-random
	Email     string
	Name      string
	Role      Role
	UserID    string // account-root anchor copied onto the new employee
	ManagerID string // supervising manager for employee invitations
	Expiry    time.Time
	Used      bool
	CreatedAt time.Time
}

// Expired reports whether the invitation is past its expiry at the given
// instant. The boundary is exclusive: at exactly Expiry the token is still
// live.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.Expiry)
}

// InvitationRepository defines data access for invitation tokens.
type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	// DeleteExpired removes every token whose expiry is before now and
	// returns how many rows went away.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	// ConsumeTx atomically creates the employee and marks the token used.
	// The token update is conditional on used=false; if another registration
	// won the race, ConsumeTx returns ErrAlreadyUsed and the employee insert
	// is rolled back. A duplicate employee email surfaces as ErrConflict.
	ConsumeTx(ctx context.Context, token string, employee *Employee) error
}

// Notifier delivers invitation emails. Delivery failure never invalidates a
// stored invitation.
type Notifier interface {
	SendInvitation(ctx context.Context, email, token string, role Role) error
}
