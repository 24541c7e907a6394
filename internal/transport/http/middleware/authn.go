package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/Sorcerer785/ThoughtSphere/internal/errors"
	"github.com/Sorcerer785/ThoughtSphere/internal/service"
	"github.com/google/uuid"
)

type subjectKey struct{}

// TokenValidator — контракт проверки access-токена; его реализует
// service.Service. Проверка чисто вычислительная (подпись+срок),
// без обращений к хранилищу.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (uuid.UUID, error)
}

// Authenticate — общий guard защищённых маршрутов платформы: извлекает
// Bearer-токен из Authorization, проверяет его и кладёт ID пользователя
// в контекст. Отсутствующий, битый и просроченный токен одинаково
// дают 401.
func Authenticate(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			uid, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext возвращает ID аутентифицированного пользователя,
// положенный в контекст мидлваром Authenticate.
func SubjectFromContext(ctx context.Context) (uuid.UUID, bool) {
	uid, ok := ctx.Value(subjectKey{}).(uuid.UUID)
	return uid, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}
