package middleware

import (
	"fmt"
	"net/http"
	"production-service/internal/model"
	"production-service/pkg/jwtutil"
	"production-service/pkg/logger"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token and places the acting user in the
// request context. Every mutation requires an explicit actor; there is no
// fallback identity.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		if claims.UserID == 0 {
			log.Warn("JWT token does not carry a user id")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token does not identify a user"})
		}

		actor := model.Actor{
			ID:         claims.UserID,
			Name:       claims.UserName,
			Role:       claims.Role,
			ClientInfo: fmt.Sprintf("%s %s", c.RealIP(), c.Request().UserAgent()),
		}
		c.Set("actor", actor)

		log.Info("Request authenticated",
			zap.Uint("user_id", actor.ID),
			zap.String("role", actor.Role))

		return next(c)
	}
}
