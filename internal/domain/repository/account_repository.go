package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"bank_ledger/internal/common"
	"bank_ledger/internal/domain/model"
	"bank_ledger/internal/platform/database"
)

// AccountRepository is the ledger store. Balances are int64 minor units.
type AccountRepository interface {
	// Create opens a zero-balance account for userID. A second account for the
	// same user yields common.ErrConflict.
	Create(ctx context.Context, q Querier, userID int64) (*model.Account, error)
	GetBalance(ctx context.Context, q Querier, userID int64) (int64, error)
	// AdjustBalance applies delta in a single conditional UPDATE and returns the
	// new balance. A debit larger than the balance fails with
	// common.ErrInsufficientFunds and changes nothing.
	AdjustBalance(ctx context.Context, q Querier, userID, delta int64) (int64, error)
	Delete(ctx context.Context, q Querier, userID int64) error
	ListAll(ctx context.Context, q Querier) ([]model.AccountSummary, error)
}

type sqlAccountRepository struct {
	dialect database.Dialect
}

func NewAccountRepository(dialect database.Dialect) AccountRepository {
	return &sqlAccountRepository{dialect: dialect}
}

func (r *sqlAccountRepository) Create(ctx context.Context, q Querier, userID int64) (*model.Account, error) {
	account := &model.Account{UserID: userID}
	query := r.dialect.Rebind(`INSERT INTO accounts (user_id, balance) VALUES (?, 0) RETURNING id`)
	if err := q.QueryRowContext(ctx, query, userID).Scan(&account.ID); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("user %d already has an account: %w", userID, common.ErrConflict)
		}
		if r.dialect.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("user %d: %w", userID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlAccountRepository.Create: %w", err)
	}
	return account, nil
}

func (r *sqlAccountRepository) GetBalance(ctx context.Context, q Querier, userID int64) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx, r.dialect.Rebind(`SELECT balance FROM accounts WHERE user_id = ?`), userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("sqlAccountRepository.GetBalance: %w", err)
	}
	return balance, nil
}

func (r *sqlAccountRepository) AdjustBalance(ctx context.Context, q Querier, userID, delta int64) (int64, error) {
	if delta == 0 || delta == math.MinInt64 {
		return 0, common.ErrInvalidAmount
	}

	// The guard sits in the WHERE clause so the check and the write are one
	// statement; concurrent adjustments of the same row serialize on its lock.
	var query string
	var bound int64
	if delta > 0 {
		query = `UPDATE accounts SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		          WHERE user_id = ? AND balance <= ? RETURNING balance`
		bound = math.MaxInt64 - delta
	} else {
		query = `UPDATE accounts SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		          WHERE user_id = ? AND balance >= ? RETURNING balance`
		bound = -delta
	}

	var balance int64
	err := q.QueryRowContext(ctx, r.dialect.Rebind(query), delta, userID, bound).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlAccountRepository.AdjustBalance: %w", err)
	}

	// Nothing matched: either there is no account or the guard rejected it.
	current, err := r.GetBalance(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	if delta < 0 {
		return current, fmt.Errorf("balance %d is less than %d: %w", current, -delta, common.ErrInsufficientFunds)
	}
	return current, fmt.Errorf("deposit of %d would overflow the balance: %w", delta, common.ErrInvalidAmount)
}

func (r *sqlAccountRepository) Delete(ctx context.Context, q Querier, userID int64) error {
	res, err := q.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM accounts WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("sqlAccountRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlAccountRepository.Delete: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *sqlAccountRepository) ListAll(ctx context.Context, q Querier) ([]model.AccountSummary, error) {
	rows, err := q.QueryContext(ctx, `SELECT u.id, u.username, u.role, COALESCE(a.balance, 0)
		FROM users u
		LEFT JOIN accounts a ON a.user_id = u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("sqlAccountRepository.ListAll: %w", err)
	}
	defer rows.Close()

	summaries := []model.AccountSummary{}
	for rows.Next() {
		var s model.AccountSummary
		var role string
		if err := rows.Scan(&s.UserID, &s.Username, &role, &s.Balance); err != nil {
			return nil, fmt.Errorf("sqlAccountRepository.ListAll: %w", err)
		}
		s.Role = model.Role(role)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlAccountRepository.ListAll: %w", err)
	}
	return summaries, nil
}
