package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/Sorcerer785/ThoughtSphere/internal/models"
	"github.com/Sorcerer785/ThoughtSphere/internal/pkg/log"
	"github.com/Sorcerer785/ThoughtSphere/internal/pkg/redact"
	"github.com/Sorcerer785/ThoughtSphere/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxUsernameLen = 32

// RegisterParams — входные данные регистрации.
type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult — результат операции, порождающей новую сессию:
// пара токенов и публичные данные пользователя для тела ответа.
type AuthResult struct {
	Tokens *models.TokenPair
	User   *models.User
}

// RegisterUser регистрирует нового пользователя и открывает первую сессию.
//
// Занятость email и username проверяется одним запросом; оставшееся окно
// гонки между проверкой и вставкой закрывают уникальные индексы БД
// (SaveUser вернёт ErrAlreadyExists).
func (s *Service) RegisterUser(ctx context.Context, p RegisterParams) (*AuthResult, error) {
	const op = "service.auth.RegisterUser"

	username, err := validateUsername(p.Username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	normEmail, err := validateEmail(p.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if len(p.Password) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	_, err = s.storage.UserByEmailOrUsername(ctx, normEmail, username)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        normEmail,
		PasswordHash: hashedPassword,
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return s.issueTokenPair(ctx, user)
}

// LoginUser выполняет вход по email+пароль.
//
// Неизвестный email и неверный пароль дают одинаковый ErrInvalidCredentials:
// ответ не должен позволять перечислять зарегистрированные адреса.
// Другие активные сессии пользователя не затрагиваются — параллельные
// устройства допустимы.
func (s *Service) LoginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "service.auth.LoginUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.issueTokenPair(ctx, user)
}

// RefreshSession ротирует refresh-токен и выпускает новую пару.
//
// Порядок закрывает окно повтора: секрет сначала атомарно изымается из
// хранилища (ровно один победитель при гонке), и лишь затем создаётся
// новая запись. Проигравший конкурент, просроченный, отозванный и никогда
// не выдававшийся секрет снаружи неразличимы — все дают ErrInvalidToken.
func (s *Service) RefreshSession(ctx context.Context, refreshSecret string) (*AuthResult, error) {
	const op = "service.auth.RefreshSession"

	lg := log.From(ctx)

	if refreshSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	hash := hashRefreshSecret(refreshSecret)
	now := time.Now().UTC()

	// Быстрый отказ по кэшу надгробий; ошибки кэша не фатальны.
	if s.rcache != nil {
		consumed, err := s.rcache.IsConsumed(ctx, hash)
		if err != nil {
			lg.Warn("revocation_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if consumed {
			lg.Warn("refresh_replay_denied",
				slog.String("op", op),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
	}

	userID, err := s.storage.ConsumeRefreshToken(ctx, hash, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_denied",
				slog.String("op", op),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		lg.Error("refresh_consume_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.markConsumed(ctx, hash)

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Пользователь исчез между выдачей токена и ротацией.
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.issueTokenPair(ctx, user)
}

// Logout изымает один refresh-токен. Всегда успешен: повторный логаут
// и логаут с уже изъятым секретом — no-op.
func (s *Service) Logout(ctx context.Context, refreshSecret string) error {
	const op = "service.auth.Logout"

	if refreshSecret == "" {
		return nil
	}

	hash := hashRefreshSecret(refreshSecret)
	if err := s.storage.DeleteRefreshToken(ctx, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.markConsumed(ctx, hash)

	return nil
}

// LogoutAll изымает все refresh-токены пользователя, которому принадлежит
// предъявленный секрет, включая сам предъявленный. Идемпотентна: если
// секрет не резолвится (изъят/просрочен/не выдавался), операция — no-op.
func (s *Service) LogoutAll(ctx context.Context, refreshSecret string) error {
	const op = "service.auth.LogoutAll"

	if refreshSecret == "" {
		return nil
	}

	hash := hashRefreshSecret(refreshSecret)
	now := time.Now().UTC()

	token, err := s.storage.RefreshTokenByHash(ctx, hash, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteAllRefreshTokensForUser(ctx, token.UserID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.markConsumed(ctx, hash)

	log.From(ctx).Info("logout_all",
		slog.String("op", op),
		slog.String("user_id", token.UserID.String()),
	)

	return nil
}

// ValidateToken проверяет access-токен и возвращает ID пользователя.
// Чистая проверка подписи и срока — без обращений к хранилищу, чтобы
// латентность защищённых маршрутов не зависела от пути refresh.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (uuid.UUID, error) {
	const op = "service.auth.ValidateToken"

	uid, err := s.validateAccessToken(accessToken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return uid, nil
}

// issueTokenPair выпускает новую пару access+refresh токенов.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User) (*AuthResult, error) {
	const op = "service.auth.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(ctx, user.ID, user.Username, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plain, err := s.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &AuthResult{
		Tokens: &models.TokenPair{
			AccessToken:     accessToken,
			RefreshToken:    plain,
			AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
		},
		User: user,
	}, nil
}

// markConsumed — best-effort запись надгробия в кэш; недоступность кэша
// не влияет на корректность (БД уже изменена).
func (s *Service) markConsumed(ctx context.Context, hash string) {
	if s.rcache == nil {
		return
	}

	if err := s.rcache.MarkConsumed(ctx, hash, s.cfg.RefreshTokenTTL); err != nil {
		log.From(ctx).Warn("revocation_cache_set_failed",
			slog.String("err", err.Error()),
		)
	}
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validateUsername проверяет минимальные требования к username.
func validateUsername(raw string) (string, error) {
	const op = "service.auth.validateUsername"

	username := strings.TrimSpace(raw)
	if username == "" || len([]rune(username)) > maxUsernameLen {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	return username, nil
}
