package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sorcerer785/ThoughtSphere/internal/config"
	"github.com/Sorcerer785/ThoughtSphere/internal/models"
	"github.com/Sorcerer785/ThoughtSphere/internal/service"
	"github.com/Sorcerer785/ThoughtSphere/internal/storage"
	"github.com/Sorcerer785/ThoughtSphere/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Тесты HTTP-слоя гоняют запросы через полный роутер (chi + middleware)
// с реальным service поверх gomock-хранилища: проверяется контракт
// эндпоинтов целиком — статусы, тела, работа с refresh-cookie.

func testCookieCfg() config.CookieConfig {
	return config.CookieConfig{
		Name:   "refreshToken",
		Path:   "/auth",
		Secure: true,
	}
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)

	svc := service.New(st, config.AuthConfig{
		JWTSecret:       "http-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "thoughtsphere-auth",
		Audience:        []string{"thoughtsphere-api"},
	})

	router := NewRouter(svc, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cookie: testCookieCfg(),
	})

	return router, st, ctrl
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// refreshCookieOf — достаёт refresh-cookie из ответа.
func refreshCookieOf(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	return nil
}

func decodeAuthResponse(t *testing.T, rr *httptest.ResponseRecorder) authResponse {
	t.Helper()
	var resp authResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

func mustBcrypt(t *testing.T, pw string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func TestRegister_Created_SetsCookie(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmailOrUsername(gomock.Any(), "ann@example.com", "ann").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)

	var savedPlainHash string
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rt *models.RefreshToken) error {
			savedPlainHash = rt.RefreshTokenHash
			return nil
		})

	rr := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username":  "ann",
		"email":     "Ann@Example.com",
		"password":  "pw123",
		"firstName": "Ann",
		"lastName":  "Lee",
	}, nil)

	require.Equal(t, http.StatusCreated, rr.Code)

	resp := decodeAuthResponse(t, rr)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "ann", resp.User.Username)
	require.Equal(t, "ann@example.com", resp.User.Email)

	// Refresh-секрет уходит только в HttpOnly-cookie, в теле его нет.
	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, "/auth", c.Path)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	require.Positive(t, c.MaxAge)
	require.NotContains(t, rr.Body.String(), c.Value)
	require.NotEmpty(t, savedPlainHash)
	require.NotEqual(t, c.Value, savedPlainHash)
}

func TestRegister_Conflict_400(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmailOrUsername(gomock.Any(), "ann@example.com", "ann").
		Return(&models.User{ID: uuid.New()}, nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "ann",
		"email":    "ann@example.com",
		"password": "pw123",
	}, nil)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "conflict", decodeErrorCode(t, rr))
	require.Nil(t, refreshCookieOf(t, rr))
}

func TestRegister_MalformedBody_400(t *testing.T) {
	t.Parallel()

	router, _, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_argument", decodeErrorCode(t, rr))
}

func TestLogin_OK_SetsCookie(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	user := &models.User{
		ID:           uuid.New(),
		Username:     "ann",
		Email:        "ann@example.com",
		PasswordHash: mustBcrypt(t, "pw123"),
	}

	st.EXPECT().UserByEmail(gomock.Any(), "ann@example.com").Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ann@example.com",
		"password": "pw123",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeAuthResponse(t, rr)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, user.ID.String(), resp.User.ID)

	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
}

func TestLogin_BadCredentials_Uniform400(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	// Неизвестный email.
	st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").
		Return(nil, storage.ErrNotFound)
	rr := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "pw123",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_credentials", decodeErrorCode(t, rr))

	// Неверный пароль — ответ неотличим.
	user := &models.User{ID: uuid.New(), Email: "ann@example.com", PasswordHash: mustBcrypt(t, "pw123")}
	st.EXPECT().UserByEmail(gomock.Any(), "ann@example.com").Return(user, nil)
	rr2 := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ann@example.com",
		"password": "WRONG",
	}, nil)
	require.Equal(t, rr.Code, rr2.Code)
	require.Equal(t, decodeErrorCode(t, rr), decodeErrorCode(t, rr2))
}

func TestRefresh_RotatesCookie(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	userID := uuid.New()
	user := &models.User{ID: userID, Username: "ann", Email: "ann@example.com"}

	st.EXPECT().ConsumeRefreshToken(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(userID, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	old := "old-refresh-secret"
	rr := doJSON(t, router, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: old})
	})

	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeAuthResponse(t, rr)
	require.NotEmpty(t, resp.AccessToken)

	// Cookie заменена новым секретом.
	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
	require.NotEqual(t, old, c.Value)
	require.Positive(t, c.MaxAge)
}

func TestRefresh_NoCookie_401(t *testing.T) {
	t.Parallel()

	router, _, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	rr := doJSON(t, router, http.MethodPost, "/auth/refresh", nil, nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", decodeErrorCode(t, rr))
}

func TestRefresh_InvalidSecret_401_ClearsCookie(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	st.EXPECT().ConsumeRefreshToken(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(uuid.Nil, storage.ErrNotFound)

	rr := doJSON(t, router, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: "already-rotated"})
	})

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", decodeErrorCode(t, rr))

	// Невалидный refresh сбрасывает cookie (Max-Age<0).
	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.Empty(t, c.Value)
	require.Negative(t, c.MaxAge)
}

func TestLogout_Always200(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	// С cookie: секрет изымается, cookie сбрасывается.
	st.EXPECT().DeleteRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	rr := doJSON(t, router, http.MethodPost, "/auth/logout", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: "secret"})
	})
	require.Equal(t, http.StatusOK, rr.Code)
	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.Negative(t, c.MaxAge)

	// Без cookie: тоже 200 — логаут идемпотентен.
	rr = doJSON(t, router, http.MethodPost, "/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLogoutAll_Always200(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	userID := uuid.New()

	// Секрет резолвится — все сессии пользователя завершаются.
	st.EXPECT().RefreshTokenByHash(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.RefreshToken{UserID: userID}, nil)
	st.EXPECT().DeleteAllRefreshTokensForUser(gomock.Any(), userID).Return(nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/logout-all", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: "secret"})
	})
	require.Equal(t, http.StatusOK, rr.Code)

	// Секрет не резолвится (уже изъят) — всё равно 200.
	st.EXPECT().RefreshTokenByHash(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, storage.ErrNotFound)
	rr = doJSON(t, router, http.MethodPost, "/auth/logout-all", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: "gone"})
	})
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMe_Protected(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	// Без токена — 401 от guard'а, хендлер не вызывается.
	rr := doJSON(t, router, http.MethodGet, "/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Кривой токен — 401.
	rr = doJSON(t, router, http.MethodGet, "/auth/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-jwt")
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Валидный токен: логинимся, затем идём на защищённый маршрут.
	user := &models.User{
		ID:           uuid.New(),
		Username:     "ann",
		Email:        "ann@example.com",
		PasswordHash: mustBcrypt(t, "pw123"),
	}
	st.EXPECT().UserByEmail(gomock.Any(), "ann@example.com").Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	login := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ann@example.com",
		"password": "pw123",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)
	access := decodeAuthResponse(t, login).AccessToken

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	rr = doJSON(t, router, http.MethodGet, "/auth/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var me userView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	require.Equal(t, user.ID.String(), me.ID)
	require.Equal(t, "ann", me.Username)
}

// TestScenario_FullSessionLifecycle — сквозной сценарий: регистрация,
// refresh по cookie, logout, после которого секрет уже не работает.
func TestScenario_FullSessionLifecycle(t *testing.T) {
	t.Parallel()

	router, st, ctrl := newTestRouter(t)
	defer ctrl.Finish()

	userID := uuid.New()

	// Хранилище refresh-токенов моделируем мапой: живёт ровно то,
	// что сохранено и ещё не изъято.
	live := map[string]bool{}
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rt *models.RefreshToken) error {
			live[rt.RefreshTokenHash] = true
			return nil
		}).AnyTimes()
	st.EXPECT().ConsumeRefreshToken(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, hash string, _ time.Time) (uuid.UUID, error) {
			if !live[hash] {
				return uuid.Nil, storage.ErrNotFound
			}
			delete(live, hash)
			return userID, nil
		}).AnyTimes()
	st.EXPECT().DeleteRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, hash string) error {
			delete(live, hash)
			return nil
		}).AnyTimes()

	st.EXPECT().UserByEmailOrUsername(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			userID = u.ID
			return nil
		})
	st.EXPECT().UserByID(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID) (*models.User, error) {
			return &models.User{ID: id, Username: "ann", Email: "ann@example.com"}, nil
		}).AnyTimes()

	// Регистрация.
	reg := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "ann",
		"email":    "ann@example.com",
		"password": "pw123",
	}, nil)
	require.Equal(t, http.StatusCreated, reg.Code)
	first := refreshCookieOf(t, reg)
	require.NotNil(t, first)

	// Refresh: старый секрет изымается, выдаётся новый.
	ref := doJSON(t, router, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: first.Value})
	})
	require.Equal(t, http.StatusOK, ref.Code)
	second := refreshCookieOf(t, ref)
	require.NotNil(t, second)
	require.NotEqual(t, first.Value, second.Value)

	// Повтор со старым секретом — 401 (ротация single-use).
	replay := doJSON(t, router, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: first.Value})
	})
	require.Equal(t, http.StatusUnauthorized, replay.Code)

	// Logout: всегда 200, секрет изымается.
	out := doJSON(t, router, http.MethodPost, "/auth/logout", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: second.Value})
	})
	require.Equal(t, http.StatusOK, out.Code)

	// После логаута refresh этим секретом невозможен.
	after := doJSON(t, router, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: second.Value})
	})
	require.Equal(t, http.StatusUnauthorized, after.Code)
}
