package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-booking/internal/domain/user"
)

// HeaderUserID は認証済みユーザー名を渡すヘッダー
// 認証そのものは前段（ゲートウェイなど）で行う
const HeaderUserID = "X-User-ID"

// Identity は X-User-ID ヘッダーのユーザー名をリクエストのコンテキストに設定する
// ヘッダーがなければ匿名のまま処理を続ける
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if name := strings.TrimSpace(c.Request().Header.Get(HeaderUserID)); name != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(user.WithUsername(req.Context(), name)))
			}
			return next(c)
		}
	}
}
