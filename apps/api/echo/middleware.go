package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core/user"
)

// roleGate lets the request through when the role of the token is one of roles.
// The superadmin is always let through.
func roleGate(roles ...user.Role) echo.MiddlewareFunc {
	allowed := user.NewRoleSet(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed.Allows(claims.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
