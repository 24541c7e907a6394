package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Sorcerer785/ThoughtSphere/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/username/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByEmailOrUsername находит пользователя, у которого занят email
	// или username — одна проверка занятости вместо двух раундтрипов.
	UserByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
//
// Все методы безопасны при конкурентных вызовах из разных запросов.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-токен в БД.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	// Логически просроченные записи не возвращаются (ErrNotFound).
	RefreshTokenByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error)
	// ConsumeRefreshToken атомарно удаляет действующий (не просроченный
	// относительно now) токен и возвращает его владельца. При двух
	// конкурентных вызовах с одним хэшем ровно один получает userID,
	// второй — ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, hash string, now time.Time) (uuid.UUID, error)
	// DeleteRefreshToken удаляет токен; отсутствие записи не ошибка.
	DeleteRefreshToken(ctx context.Context, hash string) error
	// DeleteAllRefreshTokensForUser удаляет все токены пользователя
	// (logout со всех устройств). Идемпотентна.
	DeleteAllRefreshTokensForUser(ctx context.Context, userID uuid.UUID) error
	// DeleteExpiredTokens удаляет все просроченные токены.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
