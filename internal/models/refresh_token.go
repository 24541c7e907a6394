package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — серверная запись о выданном refresh-токене.
//
// В БД хранится только SHA-256 хэш секрета (RefreshTokenHash); сам секрет
// существует лишь в cookie клиента. Запись одноразовая: при ротации она
// атомарно удаляется и вместо неё создаётся новая. Токен, у которого
// ExpiresAt в прошлом, считается отсутствующим независимо от того,
// успела ли фоновая очистка удалить строку физически.
type RefreshToken struct {
	RefreshTokenHash string
	UserID           uuid.UUID
	CreatedAt        time.Time
	ExpiresAt        time.Time
}
