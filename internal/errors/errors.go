// errors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход он принимает доменную ошибку пакета service, на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Все подварианты невалидного refresh-токена (не выдавался, уже ротирован,
// отозван, просрочен) намеренно неразличимы в ответе — единый 401.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sorcerer785/ThoughtSphere/internal/service"
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
//
// Маппинг:
//   - ErrInvalidEmail/ErrEmptyPassword/ErrInvalidUsername -> 400 invalid_argument;
//   - ErrUserExists -> 400 conflict (поведение исходного API: конфликт
//     регистрации отдаётся как 400, а не 409);
//   - ErrInvalidCredentials -> 400 invalid_credentials;
//   - ErrInvalidToken/ErrTokenExpired -> 401 unauthenticated;
//   - err == nil или прочее -> 500 internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		// Программная ошибка вызова: не маскируем баг "успешным" ответом.
		return internalError()
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest, response("invalid_argument", "invalid argument")
	case errors.Is(err, service.ErrUserExists):
		return http.StatusBadRequest, response("conflict", service.ErrUserExists.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusBadRequest, response("invalid_credentials", "invalid credentials")
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, response("unauthenticated", "unauthenticated")
	default:
		return internalError()
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func response(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

func internalError() (int, ErrorResponse) {
	return http.StatusInternalServerError, response("internal", "internal error")
}
