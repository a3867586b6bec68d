package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/observability/metrics"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches what the accounts were originally hashed with.
const bcryptCost = 10

// InvitationService manages the invitation token lifecycle: issue, verify,
// consume, and the expired-token sweep that runs ahead of verification and
// registration.
type InvitationService struct {
	invitations domain.InvitationRepository
	employees   domain.EmployeeRepository
	notifier    domain.Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	invitations domain.InvitationRepository,
	employees domain.EmployeeRepository,
	notifier domain.Notifier,
	logger *slog.Logger,
) *InvitationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvitationService{
		invitations: invitations,
		employees:   employees,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// IssueInput captures an invitation request resolved against the issuing
// principal: UserID is the account-root anchor, ManagerID the supervising
// manager for employee invitations.
type IssueInput struct {
	Email     string
	Name      string
	Role      domain.Role
	UserID    string
	ManagerID string
}

// IssueResult carries the token plus a non-fatal delivery warning when the
// email could not be sent synchronously.
type IssueResult struct {
	Token   string
	Expiry  time.Time
	Warning string
}

// Issue creates and stores an invitation, then emails the registration link.
// Delivery is fire-and-forget: a failed send is reported as a warning, never
// rolled back.
func (s *InvitationService) Issue(ctx context.Context, input IssueInput) (*IssueResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, domain.EFields(domain.ErrValidation, "missing required fields", []string{"email"})
	}

	if _, err := s.employees.GetByEmail(ctx, email); err == nil {
		return nil, domain.E(domain.ErrConflict, "an employee with this email already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.internal(err, "check existing employee")
	}

	token, err := generateToken()
	if err != nil {
		return nil, s.internal(err, "generate token")
	}

	inv := &domain.Invitation{
		Token:     token,
		Email:     email,
		Name:      input.Name,
		Role:      input.Role,
		UserID:    input.UserID,
		ManagerID: input.ManagerID,
		Expiry:    s.now().AddDate(0, 0, domain.InvitationExpiryDays),
	}

	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, s.internal(err, "store invitation")
	}

	metrics.ObserveInvitationIssued(string(input.Role))
	s.logger.Info("invitation issued",
		slog.String("email", email),
		slog.String("role", string(input.Role)),
		slog.Time("expiry", inv.Expiry),
	)

	result := &IssueResult{Token: token, Expiry: inv.Expiry}
	if err := s.notifier.SendInvitation(ctx, email, token, input.Role); err != nil {
		s.logger.Warn("invitation email delivery failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		result.Warning = "invitation stored but the email could not be delivered"
	}
	return result, nil
}

// VerifiedInvitation is what verification exposes. The token itself and the
// used flag never round-trip.
type VerifiedInvitation struct {
	Email  string
	Name   string
	Role   domain.Role
	UserID string
	Expiry time.Time
}

// Verify sweeps expired tokens, then checks the given token in order:
// already used, unknown, expired. On success it returns the sanitized
// invitation details for the registration form.
func (s *InvitationService) Verify(ctx context.Context, token string) (*VerifiedInvitation, error) {
	if token == "" {
		return nil, domain.EFields(domain.ErrValidation, "missing required fields", []string{"token"})
	}

	s.sweepExpired(ctx)

	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.ErrNotFound, "invalid invitation token, please request a new invitation")
		}
		return nil, s.internal(err, "get invitation")
	}

	if inv.Used {
		return nil, domain.E(domain.ErrAlreadyUsed, "this invitation has already been used")
	}
	if inv.Expired(s.now()) {
		return nil, domain.E(domain.ErrExpired, "this invitation has expired, please request a new one")
	}

	return &VerifiedInvitation{
		Email:  inv.Email,
		Name:   inv.Name,
		Role:   inv.Role,
		UserID: inv.UserID,
		Expiry: inv.Expiry,
	}, nil
}

// RegistrationData is submitted alongside a token to consume an invitation.
type RegistrationData struct {
	Name     string
	Email    string
	Password string
}

// Consume redeems a token into a new employee. It re-runs every verification
// check, matches the submitted email against the invitation, hashes the
// password, and relies on the repository's conditional update to mark the
// token used atomically with the employee insert, so a token can never mint
// two accounts.
func (s *InvitationService) Consume(ctx context.Context, token string, data RegistrationData) (*domain.Employee, error) {
	var missing []string
	if token == "" {
		missing = append(missing, "token")
	}
	if data.Name == "" {
		missing = append(missing, "name")
	}
	if data.Email == "" {
		missing = append(missing, "email")
	}
	if data.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, domain.EFields(domain.ErrValidation, "missing required fields", missing)
	}

	s.sweepExpired(ctx)

	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ObserveInvitationConsumed("not_found")
			return nil, domain.E(domain.ErrNotFound, "invalid invitation token, please request a new invitation")
		}
		return nil, s.internal(err, "get invitation")
	}

	if inv.Used {
		metrics.ObserveInvitationConsumed("already_used")
		return nil, domain.E(domain.ErrAlreadyUsed, "this invitation has already been used")
	}
	if inv.Expired(s.now()) {
		metrics.ObserveInvitationConsumed("expired")
		return nil, domain.E(domain.ErrExpired, "this invitation has expired, please request a new one")
	}

	email := strings.ToLower(strings.TrimSpace(data.Email))
	if email != strings.ToLower(inv.Email) {
		metrics.ObserveInvitationConsumed("mismatch")
		return nil, domain.E(domain.ErrValidation, "email does not match the invitation")
	}

	if _, err := s.employees.GetByEmail(ctx, email); err == nil {
		metrics.ObserveInvitationConsumed("conflict")
		return nil, domain.E(domain.ErrConflict, "an employee with this email already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.internal(err, "check existing employee")
	}

	managerID, err := deriveManagerID(inv)
	if err != nil {
		s.logger.Error("invitation carries no usable manager assignment",
			slog.String("email", inv.Email),
			slog.String("role", string(inv.Role)),
		)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), bcryptCost)
	if err != nil {
		return nil, s.internal(err, "hash password")
	}

	employee := &domain.Employee{
		ID:           uuid.NewString(),
		Name:         data.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         inv.Role,
		UserID:       inv.UserID,
		ManagerID:    managerID,
	}

	if err := s.invitations.ConsumeTx(ctx, token, employee); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyUsed):
			metrics.ObserveInvitationConsumed("already_used")
			return nil, err
		case errors.Is(err, domain.ErrConflict):
			metrics.ObserveInvitationConsumed("conflict")
			return nil, err
		}
		metrics.ObserveInvitationConsumed("error")
		return nil, s.internal(err, "consume invitation")
	}

	metrics.ObserveInvitationConsumed("success")
	s.logger.Info("invitation consumed",
		slog.String("email", email),
		slog.String("employee_id", employee.ID),
		slog.String("manager_id", managerID),
	)

	employee.PasswordHash = ""
	return employee, nil
}

// deriveManagerID picks the supervising manager for the new employee: the
// invitation's manager for employee invitations, else the account root. An
// invitation with neither indicates an issuance bug.
func deriveManagerID(inv *domain.Invitation) (string, error) {
	if inv.Role == domain.RoleEmployee && inv.ManagerID != "" {
		return inv.ManagerID, nil
	}
	if inv.UserID != "" {
		return inv.UserID, nil
	}
	return "", domain.E(domain.ErrInternal, "invalid invitation data for manager assignment")
}

// sweepExpired garbage-collects expired tokens. Best effort: a failed sweep
// never blocks verification or registration.
func (s *InvitationService) sweepExpired(ctx context.Context) {
	removed, err := s.invitations.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Warn("expired invitation sweep failed", slog.String("error", err.Error()))
		return
	}
	metrics.ObserveSweep(removed)
	if removed > 0 {
		s.logger.Info("expired invitations swept", slog.Int("removed", removed))
	}
}

// generateToken returns a 256-bit crypto-random hex token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *InvitationService) internal(err error, op string) error {
	s.logger.Error("invitation service failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return domain.E(domain.ErrInternal, fmt.Sprintf("internal error during %s", op))
}
