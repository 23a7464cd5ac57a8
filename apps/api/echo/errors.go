package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/classroom"
	"github.com/trezcool/schoolhub/core/course"
	"github.com/trezcool/schoolhub/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errNotApproved          = echo.NewHTTPError(http.StatusForbidden, "your account is waiting for admin approval")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	// domain errors that are not server errors
	errStatuses = map[error]int{
		core.ErrForbidden: http.StatusForbidden,

		user.ErrNotFound:      http.StatusNotFound,
		billing.ErrNotFound:   http.StatusNotFound,
		classroom.ErrNotFound: http.StatusNotFound,
		course.ErrNotFound:    http.StatusNotFound,

		user.ErrAlreadyApproved:         http.StatusBadRequest,
		user.ErrNotApprovable:           http.StatusBadRequest,
		user.ErrRoleMismatch:            http.StatusBadRequest,
		billing.ErrAlreadyPaid:          http.StatusBadRequest,
		billing.ErrInvalidKind:          http.StatusBadRequest,
		billing.ErrTitleRequired:        http.StatusBadRequest,
		classroom.ErrAttendanceLocked:   http.StatusBadRequest,
		classroom.ErrNoLeaveForAdmins:   http.StatusBadRequest,
		classroom.ErrNotTeachingClass:   http.StatusForbidden,
		classroom.ErrNotTeachingSubject: http.StatusForbidden,
		course.ErrIncomplete:            http.StatusBadRequest,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := errStatus(cause); ok {
				code = status
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Name = claims.Name
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// errStatus looks err up in errStatuses. Keys are compared one by one since err may not be hashable.
func errStatus(err error) (int, bool) {
	for e, status := range errStatuses {
		if e == err {
			return status, true
		}
	}
	return 0, false
}
