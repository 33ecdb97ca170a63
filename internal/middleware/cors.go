package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS выставляет разрешающие заголовки для браузерных клиентов. Любой запрос
// OPTIONS, в том числе preflight, завершается ответом 204 без тела и не доходит
// до аутентификации.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	withHeaders := cors.Handler(cors.Options{
		AllowedOrigins:     []string{allowedOrigin},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"authorization", "x-client-info", "apikey", "content-type"},
		OptionsPassthrough: true,
	})
	return func(next http.Handler) http.Handler {
		return withHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
