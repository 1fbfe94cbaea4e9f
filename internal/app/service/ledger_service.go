package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank_ledger/internal/common"
	"bank_ledger/internal/common/security"
	"bank_ledger/internal/domain/model"
	"bank_ledger/internal/domain/repository"
	"bank_ledger/internal/platform/database"

	"github.com/charmbracelet/log"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are refused
// instead of silently truncated.
const maxPasswordBytes = 72

type LedgerOptions struct {
	// TxTimeout bounds each operation. Zero means no extra deadline.
	TxTimeout time.Duration
	// EnforceOwnership makes AuthorizeAccountAccess require the account owner
	// or an admin.
	EnforceOwnership bool
}

type LedgerService struct {
	users    repository.UserRepository
	accounts repository.AccountRepository
	gate     *Gate
	db       *database.DB // For transactions
	opts     LedgerOptions
}

func NewLedgerService(
	db *database.DB,
	users repository.UserRepository,
	accounts repository.AccountRepository,
	gate *Gate,
	opts LedgerOptions,
) *LedgerService {
	return &LedgerService{
		users:    users,
		accounts: accounts,
		gate:     gate,
		db:       db,
		opts:     opts,
	}
}

type CreateCustomerResult struct {
	UserID    int64 `json:"user_id"`
	AccountID int64 `json:"account_id"`
}

func (s *LedgerService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.TxTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.TxTimeout)
}

// Bootstrap creates the administrator unless a user with that username already
// exists. It reports whether a new admin was created.
func (s *LedgerService) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	if err := validateCredentials(username, password); err != nil {
		return false, err
	}
	hashed, err := security.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.users.EnsureAdmin(ctx, s.db, username, hashed)
	if err != nil {
		return false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	if created {
		log.Info("Bootstrap admin created", "username", username)
		return true, nil
	}

	existing, err := s.users.FindByUsername(ctx, s.db, username)
	if err != nil {
		return false, fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}
	if existing.Role != model.RoleAdmin {
		log.Warn("Bootstrap username belongs to a non-admin user", "username", username, "role", existing.Role)
	} else {
		log.Debug("Bootstrap admin already present", "username", username, "user_id", existing.ID)
	}
	return false, nil
}

// AdminCreateCustomer creates a customer and their zero-balance account in one
// transaction.
func (s *LedgerService) AdminCreateCustomer(ctx context.Context, callerID int64, username, password string) (*CreateCustomerResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.gate.RequireRole(ctx, s.db, callerID, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hashed, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck

	user := &model.User{Username: username, HashedPassword: hashed, Role: model.RoleCustomer}
	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, err
	}
	account, err := s.accounts.Create(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	log.Info("Customer created", "admin_id", callerID, "user_id", user.ID, "username", username, "account_id", account.ID)
	return &CreateCustomerResult{UserID: user.ID, AccountID: account.ID}, nil
}

func (s *LedgerService) Deposit(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	balance, err := s.adjust(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	log.Info("Deposit applied", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

func (s *LedgerService) Withdraw(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	balance, err := s.adjust(ctx, userID, -amount)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientFunds) {
			log.Warn("Withdrawal rejected", "user_id", userID, "amount", amount, "balance", balance)
		}
		return 0, err
	}
	log.Info("Withdrawal applied", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

// adjust returns the balance observed by the store even when it fails, for logging.
func (s *LedgerService) adjust(ctx context.Context, userID, delta int64) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck

	balance, err := s.accounts.AdjustBalance(ctx, tx, userID, delta)
	if err != nil {
		return balance, err
	}
	if err := tx.Commit(); err != nil {
		return 0, common.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.accounts.GetBalance(ctx, s.db, userID)
}

func (s *LedgerService) AdminListAccounts(ctx context.Context, callerID int64) ([]model.AccountSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.gate.RequireRole(ctx, s.db, callerID, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.accounts.ListAll(ctx, s.db)
}

// AdminDeleteUser removes the target's account and then the target in one
// transaction. Users without an account (other admins) are deleted as well.
func (s *LedgerService) AdminDeleteUser(ctx context.Context, callerID, targetID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.gate.RequireRole(ctx, s.db, callerID, model.RoleAdmin); err != nil {
		return err
	}
	if err := s.gate.GuardSelfDelete(callerID, targetID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck

	if _, err := s.users.FindByID(ctx, tx, targetID); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, tx, targetID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err := s.users.Delete(ctx, tx, targetID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.Errorf("failed to commit transaction: %w", err)
	}

	log.Info("User deleted", "admin_id", callerID, "user_id", targetID)
	return nil
}

// AuthorizeAccountAccess checks that callerID may operate on ownerID's account.
// It always passes unless ownership enforcement is on; then a nil caller is
// ErrUnauthorized.
func (s *LedgerService) AuthorizeAccountAccess(ctx context.Context, callerID *int64, ownerID int64) error {
	if !s.opts.EnforceOwnership {
		return nil
	}
	if callerID == nil {
		return fmt.Errorf("caller identity required: %w", common.ErrUnauthorized)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.gate.RequireOwnerOrAdmin(ctx, s.db, *callerID, ownerID)
}

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("username and password are required: %w", common.ErrBadRequest)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes: %w", maxPasswordBytes, common.ErrBadRequest)
	}
	return nil
}
