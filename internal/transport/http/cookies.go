package http

import (
	"net/http"
	"time"
)

// refreshCookieTTL — срок жизни cookie совпадает со сроком жизни
// refresh-токена в хранилище.
const refreshCookieTTL = 7 * 24 * time.Hour

// setRefreshCookie выставляет HttpOnly-cookie с refresh-секретом.
// SameSite=Strict не даёт cookie уехать в кросс-сайтовых запросах.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, secret string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    secret,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   int(refreshCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie сбрасывает refresh-cookie (Max-Age<0).
func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshSecret достаёт refresh-секрет из cookie запроса.
func (h *Handlers) refreshSecret(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil || c.Value == "" {
		return "", false
	}

	return c.Value, true
}
