package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
)

// PostgresInvitationRepository implements domain.InvitationRepository using
// PostgreSQL. The token column carries a unique constraint; consumption runs
// in a transaction so an invitation can never mint two employees.
type PostgresInvitationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresInvitationRepository creates a new invitation repository
func NewPostgresInvitationRepository(db *sql.DB, logger *slog.Logger) *PostgresInvitationRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresInvitationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a freshly issued invitation
func (r *PostgresInvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitation_tokens (token, email, name, role, user_id, manager_id, expiry, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx,
		query,
		inv.Token,
		inv.Email,
		inv.Name,
		string(inv.Role),
		inv.UserID,
		inv.ManagerID,
		inv.Expiry,
	).Scan(&inv.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.E(domain.ErrConflict, "invitation token collision")
		}
		r.logger.Error("failed to store invitation",
			slog.String("email", inv.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to store invitation: %w", err)
	}

	return nil
}

// GetByToken retrieves an invitation by its token
func (r *PostgresInvitationRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	var role string

	query := `
		SELECT token, email, name, role, user_id, manager_id, expiry, used, created_at
		FROM invitation_tokens
		WHERE token = $1
	`

	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&inv.Token,
		&inv.Email,
		&inv.Name,
		&role,
		&inv.UserID,
		&inv.ManagerID,
		&inv.Expiry,
		&inv.Used,
		&inv.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.E(domain.ErrNotFound, "invitation not found")
		}
		r.logger.Error("failed to get invitation", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	inv.Role, _ = domain.ParseRole(role)
	return inv, nil
}

// DeleteExpired sweeps tokens past their expiry
func (r *PostgresInvitationRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invitation_tokens WHERE expiry < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired invitations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return int(rows), nil
}

// ConsumeTx creates the employee and marks the token used in one
// transaction. The conditional update on used=false is the compare-and-set
// that closes the double-registration window: whichever transaction flips
// the flag first wins, the loser rolls back its employee insert.
func (r *PostgresInvitationRepository) ConsumeTx(ctx context.Context, token string, employee *domain.Employee) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE invitation_tokens SET used = true WHERE token = $1 AND used = false`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to mark invitation used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.ErrAlreadyUsed, "this invitation has already been used")
	}

	insert := `
		INSERT INTO employees (id, name, email, password_hash, role, user_id, manager_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(ctx,
		insert,
		employee.ID,
		employee.Name,
		employee.Email,
		employee.PasswordHash,
		string(employee.Role),
		employee.UserID,
		employee.ManagerID,
	).Scan(&employee.CreatedAt, &employee.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.E(domain.ErrConflict, "an employee with this email already exists")
		}
		r.logger.Error("failed to create employee from invitation",
			slog.String("email", employee.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create employee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}

	return nil
}
