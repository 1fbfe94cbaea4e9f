package repository

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"bank_ledger/internal/common"
	"bank_ledger/internal/domain/model"
	"bank_ledger/internal/platform/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func createCustomer(t *testing.T, db *database.DB, users UserRepository, accounts AccountRepository, username string) int64 {
	t.Helper()
	ctx := context.Background()
	user := &model.User{Username: username, HashedPassword: "hash", Role: model.RoleCustomer}
	require.NoError(t, users.Create(ctx, db, user))
	_, err := accounts.Create(ctx, db, user.ID)
	require.NoError(t, err)
	return user.ID
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	ctx := context.Background()

	alice := &model.User{Username: "alice", HashedPassword: "hash-a", Role: model.RoleCustomer}
	require.NoError(t, users.Create(ctx, db, alice))
	assert.NotZero(t, alice.ID)

	byName, err := users.FindByUsername(ctx, db, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)
	assert.Equal(t, "hash-a", byName.HashedPassword)
	assert.Equal(t, model.RoleCustomer, byName.Role)

	byID, err := users.FindByID(ctx, db, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	role, err := users.GetRole(ctx, db, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, role)

	_, err = users.FindByUsername(ctx, db, "Alice")
	assert.ErrorIs(t, err, common.ErrNotFound, "usernames are case sensitive")

	_, err = users.GetRole(ctx, db, alice.ID+100)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, db, &model.User{Username: "bob", HashedPassword: "x", Role: model.RoleCustomer}))
	err := users.Create(ctx, db, &model.User{Username: "bob", HashedPassword: "y", Role: model.RoleAdmin})
	assert.ErrorIs(t, err, common.ErrConflict)

	err = users.Create(ctx, db, &model.User{Username: "carol", HashedPassword: "x", Role: "teller"})
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestUserRepository_EnsureAdminIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	ctx := context.Background()

	created, err := users.EnsureAdmin(ctx, db, "admin", "first")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = users.EnsureAdmin(ctx, db, "admin", "second")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := users.FindByUsername(ctx, db, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Equal(t, "first", admin.HashedPassword, "existing admin must not be overwritten")
}

func TestUserRepository_Delete(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	ctx := context.Background()

	u := &model.User{Username: "dave", HashedPassword: "x", Role: model.RoleCustomer}
	require.NoError(t, users.Create(ctx, db, u))
	require.NoError(t, users.Delete(ctx, db, u.ID))
	assert.ErrorIs(t, users.Delete(ctx, db, u.ID), common.ErrNotFound)

	// Ids are never reused.
	next := &model.User{Username: "erin", HashedPassword: "x", Role: model.RoleCustomer}
	require.NoError(t, users.Create(ctx, db, next))
	assert.Greater(t, next.ID, u.ID)
}

func TestAccountRepository_CreateOnePerUser(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	accounts := NewAccountRepository(db.Dialect)
	ctx := context.Background()

	id := createCustomer(t, db, users, accounts, "alice")

	balance, err := accounts.GetBalance(ctx, db, id)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = accounts.Create(ctx, db, id)
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = accounts.Create(ctx, db, id+100)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAccountRepository_AdjustBalance(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	accounts := NewAccountRepository(db.Dialect)
	ctx := context.Background()

	id := createCustomer(t, db, users, accounts, "alice")

	balance, err := accounts.AdjustBalance(ctx, db, id, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	balance, err = accounts.AdjustBalance(ctx, db, id, -30)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)

	balance, err = accounts.AdjustBalance(ctx, db, id, -70)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = accounts.AdjustBalance(ctx, db, id, -1)
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	balance, err = accounts.GetBalance(ctx, db, id)
	require.NoError(t, err)
	assert.Zero(t, balance, "rejected debit must not change the balance")
}

func TestAccountRepository_AdjustBalanceEdgeCases(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	accounts := NewAccountRepository(db.Dialect)
	ctx := context.Background()

	id := createCustomer(t, db, users, accounts, "alice")

	_, err := accounts.AdjustBalance(ctx, db, id, 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = accounts.AdjustBalance(ctx, db, id, math.MinInt64)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = accounts.AdjustBalance(ctx, db, id+100, 10)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = accounts.AdjustBalance(ctx, db, id, math.MaxInt64)
	require.NoError(t, err)
	_, err = accounts.AdjustBalance(ctx, db, id, 1)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	balance, err := accounts.GetBalance(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), balance)
}

func TestAccountRepository_ListAll(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	accounts := NewAccountRepository(db.Dialect)
	ctx := context.Background()

	_, err := users.EnsureAdmin(ctx, db, "admin", "x")
	require.NoError(t, err)
	alice := createCustomer(t, db, users, accounts, "alice")
	bob := createCustomer(t, db, users, accounts, "bob")
	_, err = accounts.AdjustBalance(ctx, db, bob, 250)
	require.NoError(t, err)

	list, err := accounts.ListAll(ctx, db)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "admin", list[0].Username)
	assert.Equal(t, model.RoleAdmin, list[0].Role)
	assert.Zero(t, list[0].Balance, "users without an account report zero")

	assert.Equal(t, alice, list[1].UserID)
	assert.Zero(t, list[1].Balance)
	assert.Equal(t, bob, list[2].UserID)
	assert.Equal(t, int64(250), list[2].Balance)
}

func TestAccountRepository_DeleteInTransaction(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db.Dialect)
	accounts := NewAccountRepository(db.Dialect)
	ctx := context.Background()

	id := createCustomer(t, db, users, accounts, "alice")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, accounts.Delete(ctx, tx, id))
	require.NoError(t, users.Delete(ctx, tx, id))
	require.NoError(t, tx.Rollback())

	balance, err := accounts.GetBalance(ctx, db, id)
	require.NoError(t, err, "rolled back delete must leave the account in place")
	assert.Zero(t, balance)

	require.NoError(t, accounts.Delete(ctx, db, id))
	assert.ErrorIs(t, accounts.Delete(ctx, db, id), common.ErrNotFound)
	_, err = accounts.GetBalance(ctx, db, id)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
