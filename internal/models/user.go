package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя платформы.
//
// Сессионный слой обращается с пользователем как с read-mostly сущностью:
// он ищет запись по email/ID при выпуске токенов и никогда не изменяет
// её поля. PasswordHash — bcrypt-хэш, открытый пароль нигде не хранится.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
