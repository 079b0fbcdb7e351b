package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// SecretHeader carries the shared secret for internal endpoints.
const SecretHeader = "X-Cron-Secret"

// secretLookup lists where a caller may put the secret: the X-Cron-Secret
// header, an "Authorization: Bearer" header (what hosted cron runners send)
// or the token query parameter.
const secretLookup = "header:" + SecretHeader + ",header:" + echo.HeaderAuthorization + ":Bearer ,query:token"

// SharedSecret guards internal endpoints with a shared secret. An empty
// configured secret rejects every request.
func SharedSecret(secret string, logger *zap.Logger) echo.MiddlewareFunc {
	return echomw.KeyAuthWithConfig(echomw.KeyAuthConfig{
		KeyLookup: secretLookup,
		Validator: func(key string, c echo.Context) (bool, error) {
			if secret == "" {
				return false, nil
			}
			return subtle.ConstantTimeCompare([]byte(key), []byte(secret)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			logger.Warn("rejected request with invalid secret",
				zap.String("path", c.Path()),
				zap.String("remote_ip", c.RealIP()),
				zap.Error(err))
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		},
	})
}
