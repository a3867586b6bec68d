package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/security/auth"
	"golang.org/x/crypto/bcrypt"
)

// tokenLifetime is how long an issued principal token stays valid.
const tokenLifetime = 24 * time.Hour

// AuthService authenticates employees and issues principal tokens.
type AuthService struct {
	employees    domain.EmployeeRepository
	tokenManager *auth.TokenManager
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	employees domain.EmployeeRepository,
	tokenManager *auth.TokenManager,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		employees:    employees,
		tokenManager: tokenManager,
		logger:       logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	TokenType string    `json:"tokenType"`
}

// Login authenticates an employee and returns a JWT carrying the principal.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, domain.E(domain.ErrValidation, "email and password are required")
	}

	employee, err := s.employees.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("login attempt with unknown email", slog.String("email", email))
			// Generic failure to prevent account enumeration.
			return nil, domain.E(domain.ErrUnauthenticated, "invalid credentials")
		}
		s.logger.Error("failed to load employee for login", slog.String("error", err.Error()))
		return nil, domain.E(domain.ErrInternal, "internal error during login")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("email", email))
		return nil, domain.E(domain.ErrUnauthenticated, "invalid credentials")
	}

	principal := domain.Principal{
		ID:    employee.ID,
		Role:  employee.Role,
		Email: employee.Email,
		Name:  employee.Name,
	}

	token, err := s.tokenManager.GenerateToken(principal, tokenLifetime)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, domain.E(domain.ErrInternal, "failed to generate token")
	}

	s.logger.Info("employee logged in",
		slog.String("employee_id", employee.ID),
		slog.String("role", string(employee.Role)),
	)

	return &LoginResult{
		UserID:    employee.ID,
		Email:     employee.Email,
		Name:      employee.Name,
		Role:      string(employee.Role),
		Token:     token,
		ExpiresAt: time.Now().Add(tokenLifetime),
		TokenType: "Bearer",
	}, nil
}

// ChangePassword changes an employee's password
func (s *AuthService) ChangePassword(ctx context.Context, employeeID, oldPassword, newPassword string) error {
	if newPassword == "" || len(newPassword) < 8 {
		return domain.E(domain.ErrValidation, "new password must be at least 8 characters")
	}

	employee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.E(domain.ErrInternal, "internal error during password change")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.E(domain.ErrForbidden, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return domain.E(domain.ErrInternal, "failed to change password")
	}

	employee.PasswordHash = string(hash)
	if err := s.employees.Update(ctx, employee); err != nil {
		s.logger.Error("failed to update password", slog.String("error", err.Error()))
		return domain.E(domain.ErrInternal, "failed to change password")
	}

	s.logger.Info("employee changed password", slog.String("employee_id", employeeID))
	return nil
}
