package mw

import (
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Context keys set by JWTAuth.
const (
	UserIDKey = "userID"
	RolesKey  = "roles"
)

// RoleAdmin grants access to the WhatsApp console.
const RoleAdmin = "admin"

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTAuth validates the HS256 Bearer token issued by the marketplace auth service.
// The subject becomes the user id; roles are stored for RequireRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			var cl claims
			if _, err := parser.ParseWithClaims(tokenStr, &cl, func(*jwt.Token) (any, error) {
				return key, nil
			}); err != nil {
				log.Warn().Err(err).Msg("JWT verification failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if cl.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}

			c.Set(UserIDKey, cl.Subject)
			c.Set(RolesKey, cl.Roles)
			return next(c)
		}
	}
}

// RequireRole rejects authenticated users lacking role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles, _ := c.Get(RolesKey).([]string)
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}
