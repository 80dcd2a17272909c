package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/repository"
)

// Authenticate проверяет логин и пароль сотрудника.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, ErrAuthFailed
	}

	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return nil, ErrAuthFailed
	}

	return &u, nil
}
