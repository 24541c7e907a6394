package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sorcerer785/ThoughtSphere/internal/models"
	"github.com/Sorcerer785/ThoughtSphere/internal/storage"
	"github.com/google/uuid"
)

// UserByID возвращает пользователя по ID из валидного access-токена.
// Пользователь, исчезнувший между выпуском токена и запросом, снаружи
// неотличим от невалидного токена.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.user.UserByID"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
