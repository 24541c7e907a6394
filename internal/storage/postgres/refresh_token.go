package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sorcerer785/ThoughtSphere/internal/models"
	"github.com/Sorcerer785/ThoughtSphere/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
        INSERT INTO refresh_tokens(token_hash, user_id, created_at, expires_at)
        VALUES ($1, $2, $3, $4)
    `

	_, err := s.db.Exec(ctx, query,
		token.RefreshTokenHash,
		token.UserID,
		token.CreatedAt,
		token.ExpiresAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByHash находит refresh-токен по его хэшу.
// Запись с expires_at <= now считается отсутствующей, даже если фоновая
// очистка ещё не удалила её физически.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
        SELECT token_hash, user_id, created_at, expires_at
        FROM refresh_tokens
        WHERE token_hash = $1 AND expires_at > $2
    `

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, hash, now).Scan(
		&token.RefreshTokenHash,
		&token.UserID,
		&token.CreatedAt,
		&token.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// ConsumeRefreshToken атомарно изымает действующий токен и возвращает
// владельца. DELETE ... RETURNING гарантирует единственного победителя:
// при двух конкурентных ротациях одного секрета вторая увидит ноль строк
// и получит ErrNotFound.
func (s *Storage) ConsumeRefreshToken(ctx context.Context, hash string, now time.Time) (uuid.UUID, error) {
	const op = "storage.postgres.ConsumeRefreshToken"

	query := `
        DELETE FROM refresh_tokens
        WHERE token_hash = $1 AND expires_at > $2
        RETURNING user_id
    `

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, query, hash, now).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return userID, nil
}

// DeleteRefreshToken удаляет токен по хэшу. Идемпотентна: отсутствие
// записи не считается ошибкой.
func (s *Storage) DeleteRefreshToken(ctx context.Context, hash string) error {
	const op = "storage.postgres.DeleteRefreshToken"

	query := `
        DELETE FROM refresh_tokens
        WHERE token_hash = $1
    `

	if _, err := s.db.Exec(ctx, query, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteAllRefreshTokensForUser удаляет все refresh-токены пользователя.
func (s *Storage) DeleteAllRefreshTokensForUser(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.postgres.DeleteAllRefreshTokensForUser"

	query := `
        DELETE FROM refresh_tokens
        WHERE user_id = $1
    `

	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
        DELETE FROM refresh_tokens
        WHERE expires_at <= $1
    `

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
