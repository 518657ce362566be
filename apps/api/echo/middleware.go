package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core/user"
)

// roleMiddleware lets through the active users holding one of the given roles (by prefix).
func roleMiddleware(auth *authenticator, prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := auth.contextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			for _, prefix := range prefixes {
				if usr.RoleStartsWith(prefix) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(auth *authenticator) echo.MiddlewareFunc {
	return roleMiddleware(auth, user.RoleAdmin)
}

// staffMiddleware lets teachers and admins through.
func staffMiddleware(auth *authenticator) echo.MiddlewareFunc {
	return roleMiddleware(auth, user.RoleTeacher, user.RoleAdmin)
}
