package api

import (
	"context"
	"net/http"
)

type ctxKey string

const ServiceCtxKey ctxKey = "service"

func ServiceMiddleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ServiceCtxKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
