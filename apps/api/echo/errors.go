package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	errUserGone         = echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, user not found")
	errRefreshExpired   = echo.NewHTTPError(http.StatusUnauthorized, "Refresh has expired")
	errHttpForbidden    = echo.NewHTTPError(http.StatusForbidden, "Not authorized as an admin")
	errTooManyRequests  = echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
	errValidationFailed = "Validation failed"
	errServer           = "Server error"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		res := response{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				res.Message = errUnauthorized.Message.(string)
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				res.Message = msg
			} else {
				res.Message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			res.Message = errValidationFailed
			res.Errors = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				res.Message = errValidationFailed
				res.Errors = fldErrs
			} else {
				res.Message = origErr.Error()
			}
		default:
			switch {
			case core.IsNotFound(err):
				code = http.StatusNotFound
				res.Message = origErr.Error()
			case core.IsForbidden(err):
				code = http.StatusForbidden
				res.Message = origErr.Error()
			case core.IsUnauthorized(err):
				code = http.StatusUnauthorized
				res.Message = origErr.Error()
			default: // any other error is a server error
				res.Message = errServer
				res.Error = "Internal server error"
				if ctx.Echo().Debug {
					res.Error = err.Error()
				}

				args := []interface{}{errors.Wrap(err, errServer)}
				if usr, uErr := getContextUser(ctx); uErr == nil {
					args = append(args, usr)
				}
				logger.Error(ctx.Request().Method+" "+ctx.Path()+": "+err.Error(), args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
