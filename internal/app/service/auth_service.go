package service

import (
	"context"
	"errors"
	"fmt"

	"bank_ledger/internal/common"
	"bank_ledger/internal/common/security"
	"bank_ledger/internal/domain/model"
	"bank_ledger/internal/domain/repository"

	"github.com/charmbracelet/log"
)

type AuthService struct {
	users  repository.UserRepository
	db     repository.Querier
	tokens *security.TokenIssuer
}

func NewAuthService(db repository.Querier, users repository.UserRepository, tokens *security.TokenIssuer) *AuthService {
	return &AuthService{users: users, db: db, tokens: tokens}
}

type LoginResponse struct {
	UserID int64      `json:"user_id"`
	Role   model.Role `json:"role"`
	Token  string     `json:"token"`
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", common.ErrBadRequest)
	}

	user, err := s.users.FindByUsername(ctx, s.db, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			security.BurnPasswordCheck(password)
			log.Warn("Login failed", "username", username)
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(password, user.HashedPassword) {
		log.Warn("Login failed", "username", username)
		return nil, common.ErrUnauthorized
	}

	token, err := s.tokens.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	log.Info("Login succeeded", "user_id", user.ID, "role", user.Role)
	return &LoginResponse{UserID: user.ID, Role: user.Role, Token: token}, nil
}
