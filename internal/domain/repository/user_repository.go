package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bank_ledger/internal/common"
	"bank_ledger/internal/domain/model"
	"bank_ledger/internal/platform/database"
)

// UserRepository is the identity store.
type UserRepository interface {
	// Create inserts user and sets its ID. A taken username yields common.ErrConflict.
	Create(ctx context.Context, q Querier, user *model.User) error
	FindByUsername(ctx context.Context, q Querier, username string) (*model.User, error)
	FindByID(ctx context.Context, q Querier, id int64) (*model.User, error)
	GetRole(ctx context.Context, q Querier, id int64) (model.Role, error)
	Delete(ctx context.Context, q Querier, id int64) error
	// EnsureAdmin creates an admin named username unless that username exists.
	// It reports whether a row was inserted.
	EnsureAdmin(ctx context.Context, q Querier, username, hashedPassword string) (bool, error)
}

type sqlUserRepository struct {
	dialect database.Dialect
}

func NewUserRepository(dialect database.Dialect) UserRepository {
	return &sqlUserRepository{dialect: dialect}
}

func (r *sqlUserRepository) Create(ctx context.Context, q Querier, user *model.User) error {
	if !user.Role.Valid() {
		return fmt.Errorf("unknown role %q: %w", user.Role, common.ErrBadRequest)
	}
	query := r.dialect.Rebind(`INSERT INTO users (username, hashed_password, role)
	          VALUES (?, ?, ?) RETURNING id`)
	err := q.QueryRowContext(ctx, query, user.Username, user.HashedPassword, string(user.Role)).Scan(&user.ID)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("username %q already exists: %w", user.Username, common.ErrConflict)
		}
		return fmt.Errorf("sqlUserRepository.Create: %w", err)
	}
	return nil
}

func (r *sqlUserRepository) FindByUsername(ctx context.Context, q Querier, username string) (*model.User, error) {
	query := r.dialect.Rebind(`SELECT id, username, hashed_password, role
	          FROM users WHERE username = ?`)
	user, err := scanUser(q.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("sqlUserRepository.FindByUsername: %w", err)
	}
	return user, nil
}

func (r *sqlUserRepository) FindByID(ctx context.Context, q Querier, id int64) (*model.User, error) {
	query := r.dialect.Rebind(`SELECT id, username, hashed_password, role
	          FROM users WHERE id = ?`)
	user, err := scanUser(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("sqlUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *sqlUserRepository) GetRole(ctx context.Context, q Querier, id int64) (model.Role, error) {
	var role string
	err := q.QueryRowContext(ctx, r.dialect.Rebind(`SELECT role FROM users WHERE id = ?`), id).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("sqlUserRepository.GetRole: %w", err)
	}
	return model.Role(role), nil
}

func (r *sqlUserRepository) Delete(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqlUserRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlUserRepository.Delete: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *sqlUserRepository) EnsureAdmin(ctx context.Context, q Querier, username, hashedPassword string) (bool, error) {
	query := r.dialect.Rebind(`INSERT INTO users (username, hashed_password, role)
	          VALUES (?, ?, ?) ON CONFLICT (username) DO NOTHING`)
	res, err := q.ExecContext(ctx, query, username, hashedPassword, string(model.RoleAdmin))
	if err != nil {
		return false, fmt.Errorf("sqlUserRepository.EnsureAdmin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlUserRepository.EnsureAdmin: %w", err)
	}
	return n > 0, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var role string
	if err := row.Scan(&user.ID, &user.Username, &user.HashedPassword, &role); err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	return user, nil
}
