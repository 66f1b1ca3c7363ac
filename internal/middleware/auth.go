package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/servimatch/servimatch/internal/domain"
)

// Auth validates the bearer token and stores the authenticated actor in the
// echo context. The token is trusted as-is; issuing and refreshing it is
// another service's job.
func Auth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := actorFromToken(c, key)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set("user_id", actor.UserID.String())
			c.Set("role", actor.Role)
			return next(c)
		}
	}
}

func actorFromToken(c echo.Context, key []byte) (domain.Actor, error) {
	header := c.Request().Header.Get("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" || tokenStr == header {
		// Browsers cannot set headers on websocket upgrades.
		tokenStr = c.QueryParam("token")
	}
	if tokenStr == "" {
		return domain.Actor{}, errors.New("missing token")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, errors.New("invalid token claims")
	}
	rawID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil || role == "" {
		return domain.Actor{}, errors.New("invalid token claims")
	}
	return domain.Actor{UserID: userID, Role: role}, nil
}

// ActorFrom rebuilds the authenticated actor stored by Auth.
func ActorFrom(c echo.Context) (domain.Actor, bool) {
	rawID, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	userID, err := uuid.Parse(rawID)
	if err != nil || role == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: userID, Role: role}, true
}

// RequireRoles ensures the requester's role is one of the allowed roles.
// Usage: route(..., RequireRoles("admin"))
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "role missing"})
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}
	}
}
