// Package middleware содержит HTTP middleware для сервиса кофейни.
package middleware

import (
	"context"
	"net/http"

	"github.com/mmeshcher/coffeeshop/internal/model"
)

type contextKey string

const profileKey contextKey = "profile"

// CurrentUser даёт доступ к пользователю текущей сессии.
type CurrentUser interface {
	Current() *model.Profile
}

// RequireUser пропускает запрос, только если в сессии есть пользователь,
// и добавляет его профиль в контекст запроса.
func RequireUser(session CurrentUser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := session.Current()
			if p == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), p)))
		})
	}
}

// RequireRole пропускает запрос, только если роль пользователя из контекста входит в roles.
// Должен стоять после RequireUser.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := ProfileFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !allowed[p.Role] {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithProfile сохраняет профиль пользователя в контексте.
func WithProfile(ctx context.Context, p *model.Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

// ProfileFromContext извлекает профиль пользователя из контекста запроса.
func ProfileFromContext(ctx context.Context) (*model.Profile, bool) {
	p, ok := ctx.Value(profileKey).(*model.Profile)
	return p, ok && p != nil
}
