package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/yourorg/teamtask/internal/domain"
)

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// PostgresEmployeeRepository implements domain.EmployeeRepository using PostgreSQL
type PostgresEmployeeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresEmployeeRepository creates a new employee repository
func NewPostgresEmployeeRepository(db *sql.DB, logger *slog.Logger) *PostgresEmployeeRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEmployeeRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new employee. A duplicate email surfaces as ErrConflict.
func (r *PostgresEmployeeRepository) Create(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, password_hash, role, user_id, manager_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx,
		query,
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
		r.logger.Error("failed to create employee",
			slog.String("email", employee.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create employee: %w", err)
	}

	return nil
}

// GetByID retrieves an employee by ID
func (r *PostgresEmployeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves an employee by email (stored lowercase)
func (r *PostgresEmployeeRepository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return r.getOne(ctx, "email", email)
}

func (r *PostgresEmployeeRepository) getOne(ctx context.Context, column, value string) (*domain.Employee, error) {
	employee := &domain.Employee{}
	var role string

	query := fmt.Sprintf(`
		SELECT id, name, email, password_hash, role, user_id, manager_id, created_at, updated_at
		FROM employees
		WHERE %s = $1
	`, column)

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&employee.ID,
		&employee.Name,
		&employee.Email,
		&employee.PasswordHash,
		&role,
		&employee.UserID,
		&employee.ManagerID,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.E(domain.ErrNotFound, "employee not found")
		}
		r.logger.Error("failed to get employee",
			slog.String(column, value),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	employee.Role, _ = domain.ParseRole(role)
	return employee, nil
}

// Update updates an existing employee
func (r *PostgresEmployeeRepository) Update(ctx context.Context, employee *domain.Employee) error {
	query := `
		UPDATE employees
		SET name = $1, email = $2, password_hash = $3, role = $4, manager_id = $5, updated_at = now()
		WHERE id = $6
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx,
		query,
		employee.Name,
		employee.Email,
		employee.PasswordHash,
		string(employee.Role),
		employee.ManagerID,
		employee.ID,
	).Scan(&employee.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.E(domain.ErrNotFound, "employee not found")
		}
		if isUniqueViolation(err) {
			return domain.E(domain.ErrConflict, "an employee with this email already exists")
		}
		return fmt.Errorf("failed to update employee: %w", err)
	}

	return nil
}

// ListByManager lists employees directly supervised by a manager
func (r *PostgresEmployeeRepository) ListByManager(ctx context.Context, managerID string) ([]*domain.Employee, error) {
	query := `
		SELECT id, name, email, password_hash, role, user_id, manager_id, created_at, updated_at
		FROM employees
		WHERE manager_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, managerID)
	if err != nil {
		r.logger.Error("failed to list employees by manager",
			slog.String("manager_id", managerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*domain.Employee
	for rows.Next() {
		employee := &domain.Employee{}
		var role string
		err := rows.Scan(
			&employee.ID,
			&employee.Name,
			&employee.Email,
			&employee.PasswordHash,
			&role,
			&employee.UserID,
			&employee.ManagerID,
			&employee.CreatedAt,
			&employee.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan employee row",
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employee.Role, _ = domain.ParseRole(role)
		employees = append(employees, employee)
	}

	return employees, rows.Err()
}

// CountSupervised counts how many of the given ids belong to the manager's team
func (r *PostgresEmployeeRepository) CountSupervised(ctx context.Context, managerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		SELECT count(*)
		FROM employees
		WHERE manager_id = $1 AND id = ANY($2)
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, managerID, pq.Array(ids)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count supervised employees: %w", err)
	}

	return count, nil
}

// CountExisting returns the subset of ids that resolve to existing employees
func (r *PostgresEmployeeRepository) CountExisting(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id FROM employees WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employee ids: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		found = append(found, id)
	}

	return found, rows.Err()
}
