package service

import (
	"context"
	"errors"
	"fmt"

	"bank_ledger/internal/common"
	"bank_ledger/internal/domain/model"
	"bank_ledger/internal/domain/repository"
)

// Gate answers authorization questions about a caller id. It never mutates
// state.
type Gate struct {
	users repository.UserRepository
}

func NewGate(users repository.UserRepository) *Gate {
	return &Gate{users: users}
}

// RequireRole fails with common.ErrUnauthorized when callerID names no user and
// with common.ErrForbidden when the user holds a different role.
func (g *Gate) RequireRole(ctx context.Context, q repository.Querier, callerID int64, role model.Role) error {
	actual, err := g.users.GetRole(ctx, q, callerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("caller %d does not exist: %w", callerID, common.ErrUnauthorized)
		}
		return err
	}
	if actual != role {
		return fmt.Errorf("%s access required: %w", role, common.ErrForbidden)
	}
	return nil
}

// GuardSelfDelete rejects an admin deleting their own user.
func (g *Gate) GuardSelfDelete(callerID, targetID int64) error {
	if callerID == targetID {
		return fmt.Errorf("admins cannot delete themselves: %w", common.ErrInvalidOperation)
	}
	return nil
}

// RequireOwnerOrAdmin passes when the caller owns the account or is an admin.
func (g *Gate) RequireOwnerOrAdmin(ctx context.Context, q repository.Querier, callerID, ownerID int64) error {
	if callerID == ownerID {
		if _, err := g.users.GetRole(ctx, q, callerID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("caller %d does not exist: %w", callerID, common.ErrUnauthorized)
			}
			return err
		}
		return nil
	}
	if err := g.RequireRole(ctx, q, callerID, model.RoleAdmin); err != nil {
		if errors.Is(err, common.ErrForbidden) {
			return fmt.Errorf("account %d belongs to another user: %w", ownerID, common.ErrForbidden)
		}
		return err
	}
	return nil
}
