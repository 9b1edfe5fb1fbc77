package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kidstore/internal/model"
)

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAdminMiddleware は管理者ロールを要求するミドルウェアを返す。
// セッションミドルウェアの後に配置すること。
// 管理者以外には403 Forbiddenを返す。
func NewAdminMiddleware(userFinder UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := userFinder.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to find user for admin check",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if !user.IsAdmin() {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
