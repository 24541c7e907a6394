// transport/http содержит REST-эндпоинты аутентификации.
// Здесь выполняется только маппинг данных/ошибок доменного слоя (service)
// в HTTP и работа с refresh-cookie. Вся валидация и бизнес-логика — в service.
//
// Контракт транспорта refresh-токена:
//   - access-токен возвращается в теле ответа (поле accessToken);
//   - refresh-секрет уходит клиенту только в HttpOnly-cookie и читается
//     сервером только из cookie на refresh/logout/logout-all;
//   - любой невалидный refresh даёт единый 401 и сброс cookie.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sorcerer785/ThoughtSphere/internal/config"
	apierrors "github.com/Sorcerer785/ThoughtSphere/internal/errors"
	"github.com/Sorcerer785/ThoughtSphere/internal/models"
	"github.com/Sorcerer785/ThoughtSphere/internal/service"
	"github.com/Sorcerer785/ThoughtSphere/internal/transport/http/middleware"
)

// Handlers агрегирует зависимости эндпоинтов аутентификации.
type Handlers struct {
	service *service.Service
	cookie  config.CookieConfig
}

func NewHandlers(svc *service.Service, cookie config.CookieConfig) *Handlers {
	return &Handlers{service: svc, cookie: cookie}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView — публичное представление пользователя в теле ответа.
type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type authResponse struct {
	AccessToken string   `json:"accessToken"`
	User        userView `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func viewOf(u *models.User) userView {
	return userView{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Register — POST /auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, service.ErrInvalidUsername)
		return
	}

	res, err := h.service.RegisterUser(r.Context(), service.RegisterParams{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken)
	writeJSON(w, http.StatusCreated, authResponse{
		AccessToken: res.Tokens.AccessToken,
		User:        viewOf(res.User),
	})
}

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, service.ErrInvalidCredentials)
		return
	}

	res, err := h.service.LoginUser(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken)
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: res.Tokens.AccessToken,
		User:        viewOf(res.User),
	})
}

// Refresh — POST /auth/refresh. Секрет берётся только из cookie;
// успешная ротация заменяет cookie новым секретом, неуспешная — сбрасывает.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	secret, ok := h.refreshSecret(r)
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	res, err := h.service.RefreshSession(r.Context(), secret)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			h.clearRefreshCookie(w)
		}
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken)
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: res.Tokens.AccessToken,
		User:        viewOf(res.User),
	})
}

// Logout — POST /auth/logout. Всегда 200: повторный логаут — no-op.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if secret, ok := h.refreshSecret(r); ok {
		if err := h.service.Logout(r.Context(), secret); err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// LogoutAll — POST /auth/logout-all. Завершает сессии на всех устройствах.
func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if secret, ok := h.refreshSecret(r); ok {
		if err := h.service.LogoutAll(r.Context(), secret); err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out everywhere"})
}

// Me — GET /auth/me (защищённый маршрут). Возвращает публичные данные
// владельца access-токена; заодно образец использования guard'а
// middleware.Authenticate остальными сервисами платформы.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	user, err := h.service.UserByID(r.Context(), uid)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(user))
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
