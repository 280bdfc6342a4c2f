package echoapi

import (
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

const msgPasswordResetSent = "If the email address supplied is associated with an account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

type userApi struct {
	conf     *core.Config
	logger   core.Logger
	svc      user.Service
	google   user.IdentityProvider
	authn    *authenticator
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, authn *authenticator, rateLimit echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		svc:      deps.UserSvc,
		google:   deps.Google,
		authn:    authn,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register, rateLimit)
	ag.POST("/login", api.login, rateLimit)
	ag.GET("/google", api.googleLogin)
	ag.GET("/google/callback", api.googleCallback)
	ag.POST("/forgot-password", api.forgotPassword, rateLimit)
	ag.POST("/reset-password/:token", api.resetPassword, rateLimit)

	// authed endpoints
	pg := ag.Group("", authn.required())
	pg.GET("/profile", api.profile)
	pg.PATCH("/profile", api.updateProfile)
	pg.POST("/change-password", api.changePassword)
	pg.POST("/token-refresh", api.refreshToken)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := bindAndValidate(ctx, api.validate, &data, "NewUser"); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := userToken(api.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return respondToken(ctx, http.StatusCreated, token, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindAndValidate(ctx, api.validate, &data, "LoginRequest"); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := userToken(api.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return respondToken(ctx, http.StatusOK, token, usr)
}

func (api *userApi) googleLogin(ctx echo.Context) error {
	authURL, err := api.google.AuthCodeURL()
	if err != nil {
		return errors.Wrap(err, "building google consent URL")
	}
	return ctx.Redirect(http.StatusFound, authURL)
}

// googleCallback signs the user in and hands the token over to the frontend.
func (api *userApi) googleCallback(ctx echo.Context) error {
	if reason := ctx.QueryParam("error"); reason != "" {
		return core.NewUnauthorizedError("Google authentication failed: " + reason)
	}

	reqCtx := ctx.Request().Context()
	profile, err := api.google.Exchange(reqCtx, ctx.QueryParam("state"), ctx.QueryParam("code"))
	if err != nil {
		return errors.Wrap(err, "exchanging google code")
	}
	usr, err := api.svc.ResolveFederated(reqCtx, profile)
	if err != nil {
		return errors.Wrap(err, "resolving federated user")
	}
	token, err := userToken(api.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.Redirect(http.StatusFound, api.conf.FrontendBaseURL+"/auth/callback?token="+url.QueryEscape(token))
}

func (api *userApi) forgotPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bindAndValidate(ctx, api.validate, &data, "PasswordResetRequest"); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset: "+err.Error(), err)
	}
	return respondMessage(ctx, http.StatusOK, msgPasswordResetSent)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data user.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	data.Token = ctx.Param("token")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return respondMessage(ctx, http.StatusOK, "Password has been reset with the new password.")
}

func (api *userApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateProfile
	if err = bindAndValidate(ctx, api.validate, &data, "UpdateProfile"); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return respond(ctx, http.StatusOK, usr)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.ChangePassword
	if err = bindAndValidate(ctx, api.validate, &data, "ChangePassword"); err != nil {
		return err
	}

	if err = api.svc.ChangePassword(ctx.Request().Context(), usr.ID, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return respondMessage(ctx, http.StatusOK, "Password updated successfully")
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.authn.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return respondToken(ctx, http.StatusOK, token, nil)
}
