package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/attendance"
	"github.com/trezcool/homeroom/core/school"
	"github.com/trezcool/homeroom/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainHTTPError maps the errors of the core packages to their http status.
func domainHTTPError(err error) (*echo.HTTPError, bool) {
	switch cause := errors.Cause(err); cause {
	case user.ErrNotFound, school.ErrStudentNotFound, school.ErrSectionNotFound, school.ErrSubjectNotFound,
		attendance.ErrSessionNotFound, attendance.ErrSnapshotNotFound:
		return echo.NewHTTPError(http.StatusNotFound, cause.Error()), true
	case attendance.ErrUnknownStudent, attendance.ErrUnknownSubject, attendance.ErrUnknownSection:
		return echo.NewHTTPError(http.StatusNotFound, cause.Error()), true
	case attendance.ErrSessionNotEditable:
		return echo.NewHTTPError(http.StatusConflict, cause.Error()), true
	}
	if attendance.IsPersistenceError(err) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error()), true
	}
	return nil, false
}

// errorResponse resolves the status code and the body of err.
// Unknown errors are server errors; their details are only kept in the logs.
func errorResponse(err error, translator ut.Translator) (int, interface{}) {
	if herr, ok := domainHTTPError(err); ok {
		return herr.Code, herr.Message
	}

	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, cause.Message
		}
		if inner, ok := cause.Internal.(*echo.HTTPError); ok {
			cause = inner
		}
		return cause.Code, cause.Message
	case validator.ValidationErrors:
		fields := make(map[string]string, len(cause))
		for _, fe := range cause {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields
	case *core.ValidationError:
		if cause.Fields == nil {
			return http.StatusBadRequest, cause.Error()
		}
		fields := make(map[string]string, len(cause.Fields))
		for _, fe := range cause.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// claimsUser rebuilds the authenticated user from the token claims, for error reports.
func claimsUser(ctx echo.Context) user.User {
	var usr user.User
	if claims, ok := contextTokenClaims(ctx); ok {
		usr.ID = claims.Subject
		usr.Username = claims.Username
		usr.Email = claims.Email
	}
	return usr
}

// newAppHTTPErrorHandler returns the echo.HTTPErrorHandler of the API.
// signalShutdown is called whenever a core shutdown error reaches it.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := errorResponse(err, translator)

		if code == http.StatusInternalServerError {
			msg := http.StatusText(code)
			logger.Error(msg, errors.Wrap(err, msg), claimsUser(ctx))
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}
		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
