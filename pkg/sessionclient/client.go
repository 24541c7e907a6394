// sessionclient — клиентский агент сессии для вызовов API платформы.
//
// Агент держит текущий access-токен в памяти процесса, подставляет его
// bearer-креденталом в каждый исходящий запрос, а refresh-cookie живёт
// в cookie jar и в прикладной код никогда не попадает.
//
// Контракт прозрачного обновления:
//   - на первый 401 логического вызова агент выполняет ровно один refresh
//     и ровно один повтор запроса; флаг одного повтора исключает циклы;
//   - конкурентные вызовы, получившие 401 одновременно, не запускают
//     независимые ротации: все ждут один in-flight refresh (mutex-слот
//     вместо неявного состояния в перехватчике HTTP-библиотеки) и
//     повторяются после его завершения; параллельные ротации одного
//     секрета арбитрарно разлогинивали бы проигравших;
//   - неуспешный refresh стирает access-токен и отдаёт вызывающему
//     исходный отказ — сессия завершена, приложение ведёт пользователя
//     на повторную аутентификацию.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
)

var (
	// ErrSessionExpired — refresh отклонён сервером: сессии больше нет.
	ErrSessionExpired = errors.New("sessionclient: session expired")
	// ErrInvalidCredentials — отказ на login/register.
	ErrInvalidCredentials = errors.New("sessionclient: invalid credentials")
	// ErrConflict — email/username уже заняты.
	ErrConflict = errors.New("sessionclient: user already exists")
)

// User — публичное представление пользователя из ответов auth-API.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// RegisterParams — входные данные регистрации.
type RegisterParams struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type authResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

// refreshCall — один in-flight refresh; ожидающие читают результат
// после закрытия done.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// Client — агент сессии. Безопасен для конкурентного использования.
type Client struct {
	baseURL *url.URL
	httpc   *http.Client

	mu          sync.Mutex
	accessToken string
	inflight    *refreshCall
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт базовый *http.Client (таймауты, транспорт).
// Jar клиента будет заменён собственным: cookie обязаны сохраняться
// между запросами, иначе refresh-cookie потеряется.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpc = hc }
}

// New создаёт агент для API по базовому URL (например, "https://api.host").
func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "sessionclient.New"

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c := &Client{
		baseURL: u,
		httpc:   &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.httpc.Jar = jar

	return c, nil
}

// AccessToken возвращает текущий access-токен ("" — сессии нет).
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// Register регистрирует пользователя и открывает сессию.
func (c *Client) Register(ctx context.Context, p RegisterParams) (*User, error) {
	const op = "sessionclient.Register"

	var out authResponse
	if err := c.postJSON(ctx, "/auth/register", p, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.setAccessToken(out.AccessToken)
	return &out.User, nil
}

// Login открывает сессию по email+паролю.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	const op = "sessionclient.Login"

	in := map[string]string{"email": email, "password": password}

	var out authResponse
	if err := c.postJSON(ctx, "/auth/login", in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.setAccessToken(out.AccessToken)
	return &out.User, nil
}

// Logout завершает текущую сессию (одно устройство) и стирает токен.
func (c *Client) Logout(ctx context.Context) error {
	const op = "sessionclient.Logout"

	defer c.setAccessToken("")

	if err := c.postJSON(ctx, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LogoutAll завершает сессии на всех устройствах и стирает токен.
func (c *Client) LogoutAll(ctx context.Context) error {
	const op = "sessionclient.LogoutAll"

	defer c.setAccessToken("")

	if err := c.postJSON(ctx, "/auth/logout-all", nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Do выполняет запрос к API от имени текущей сессии.
//
// Путь запроса резолвится относительно базового URL. На первый 401
// выполняется один коалесцированный refresh и один повтор; повторный 401
// отдаётся вызывающему как есть (retry-флаг исчерпан). Тело запроса
// должно быть повторяемым (GetBody != nil) — иначе повтора не будет
// и вернётся исходный ответ.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	token := c.AccessToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	retry, rerr := c.rewind(req)
	if rerr != nil {
		// Повторить нечем — отдаём исходный 401.
		return resp, nil
	}

	newToken, rerr := c.refreshAccessToken(req.Context())
	if rerr != nil {
		// Сессия завершена: токен уже стёрт, отдаём исходный отказ.
		return resp, nil
	}

	_ = resp.Body.Close()

	retry.Header.Set("Authorization", "Bearer "+newToken)
	return c.httpc.Do(retry)
}

// Get — удобная обёртка над Do для GET-запросов.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return nil, err
	}

	return c.Do(req)
}

// rewind готовит копию запроса для повтора: тело восстанавливается
// через GetBody.
func (c *Client) rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())

	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}

	if req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body

	return retry, nil
}

// refreshAccessToken выполняет один коалесцированный refresh.
// Первый пришедший занимает слот и делает сетевой вызов; остальные ждут
// его результата. Ошибка refresh стирает access-токен у всех.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()

		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	token, err := c.doRefresh(ctx)

	c.mu.Lock()
	if err != nil {
		c.accessToken = ""
	} else {
		c.accessToken = token
	}
	c.inflight = nil
	c.mu.Unlock()

	call.token, call.err = token, err
	close(call.done)

	return token, err
}

// doRefresh — сетевой вызов POST /auth/refresh (cookie уходит из jar).
func (c *Client) doRefresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("/auth/refresh"), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", ErrSessionExpired
	}

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	return out.AccessToken, nil
}

// postJSON — вспомогательный вызов auth-эндпоинтов (без retry-логики:
// отказ login/register/logout не лечится обновлением токена).
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}

	return nil
}

// apiError транслирует тело ошибки auth-API в сентинел-ошибки пакета.
func apiError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch body.Error.Code {
	case "conflict":
		return ErrConflict
	case "invalid_credentials", "invalid_argument":
		return ErrInvalidCredentials
	case "unauthenticated":
		return ErrSessionExpired
	}

	return fmt.Errorf("sessionclient: server returned %d %s", resp.StatusCode, body.Error.Code)
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}
