// service содержит бизнес-логику сессионного менеджера:
// регистрацию/аутентификацию пользователей, выпуск/проверку access-токенов,
// ротацию refresh-токенов и завершение сессий через интерфейсы
// из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Единственная операция, требующая строгой атомарности, — ротация
//     refresh-токена; она опирается на storage.ConsumeRefreshToken
//     (ровно один победитель при гонке на одном секрете).
//   - Ошибки возвращаются наружу и далее маппятся транспортом на HTTP-статусы
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"github.com/Sorcerer785/ThoughtSphere/internal/cache"
	"github.com/Sorcerer785/ThoughtSphere/internal/config"
	"github.com/Sorcerer785/ThoughtSphere/internal/storage"
)

var (
	// ErrInvalidCredentials — пара email/пароль неверна или пользователь
	// не найден. Причины намеренно не различаются (анти-перечисление).
	// Транспорт: HTTP 400.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи,
	// отсутствует в хранилище, уже изъят ротацией или отозван. Для refresh
	// все подварианты неразличимы снаружи. Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия access-токена истёк.
	// Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrUserExists — email или username уже заняты.
	// Транспорт: HTTP 400.
	ErrUserExists = errors.New("user with this email or username already exists")

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный
	// refresh-токен (редкий случай коллизий хэша в БД после нескольких
	// ретраев). Транспорт: HTTP 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrInvalidEmail — e-mail имеет некорректный формат.
	// Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyPassword — пароль пустой. Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrInvalidUsername — username пуст или длиннее допустимого.
	// Транспорт: HTTP 400.
	ErrInvalidUsername = errors.New("invalid username")
)

// Service описывает бизнес-логику сессионного менеджера.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RevocationCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetRevocationCache устанавливает кэш изъятых refresh-токенов (опционально).
func (s *Service) SetRevocationCache(c cache.RevocationCache) {
	s.rcache = c
}
