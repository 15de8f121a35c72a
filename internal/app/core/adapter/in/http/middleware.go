package http

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// localsPrincipalKey fiber locals 中存放操作者名稱的 key
const localsPrincipalKey = "principal"

// BasicAuthPrincipal 從 Authorization: Basic 標頭取出操作者名稱放進 locals
// 憑證驗證在外部閘道完成，這一層只負責取出 principal 交給授權政策
func BasicAuthPrincipal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization") // "Basic dXNlcjpwYXNz"
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing credentials"})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Basic" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization header"})
		}

		decoded, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization header"})
		}

		username, _, ok := strings.Cut(string(decoded), ":")
		if !ok || username == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}

		c.Locals(localsPrincipalKey, username)
		return c.Next()
	}
}

// principalFrom 取出 middleware 放入的操作者名稱
func principalFrom(c *fiber.Ctx) string {
	if v, ok := c.Locals(localsPrincipalKey).(string); ok {
		return v
	}
	return ""
}
