package models

import "time"

// TokenPair — пара токенов, выдаваемая при регистрации/входе/обновлении.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API; возвращается
//     в теле ответа;
//   - RefreshToken — случайный секрет для обновления пары; уходит клиенту
//     только в HttpOnly-cookie, на сервере хранится его хэш;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
