package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/user"
)

type authApi struct {
	conf     *core.Config
	logger   core.Logger
	svc      *user.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, logger core.Logger, svc *user.Service, validate *validator.Validate) {
	api := &authApi{conf: conf, logger: logger, svc: svc, validate: validate}

	auth := g.Group("/auth")
	auth.POST("/login", api.login)
	auth.POST("/password-reset", api.requestPasswordReset)
	auth.POST("/password-reset/confirm", api.confirmPasswordReset)
	auth.POST("/token-refresh", api.refreshToken, jwt)
	auth.POST("/logout", api.logout, jwt)
	auth.GET("/session", api.session, jwt)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	data.Device.IP = ctx.RealIP()
	data.Device.UserAgent = ctx.Request().UserAgent()

	usr, dev, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password, data.Device)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials:
			return errAuthenticationFailed
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating user")
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr, dev.ID))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr, SessionID: dev.ID})
}

func (api *authApi) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// the answer never tells whether the account exists
		if cause := errors.Cause(err); cause != user.ErrNotFound && cause != user.ErrAccountDeactivated {
			msg := "requesting password reset"
			api.logger.Error(msg, errors.Wrap(err, msg), ctx.Request())
		}
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetRequested})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetDone})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *authApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.svc.Logout(ctx.Request().Context(), claims.UserID, claims.SessionID); err != nil {
		return errors.Wrap(err, "closing session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// session answers 401 once the device session of the token was closed or removed,
// so the client can drop its credentials.
func (api *authApi) session(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	dev, err := api.svc.CheckSession(ctx.Request().Context(), claims.UserID, claims.SessionID)
	if err != nil {
		if errors.Cause(err) == user.ErrSessionClosed {
			return errSessionClosed
		}
		return errors.Wrap(err, "checking session")
	}
	return ctx.JSON(http.StatusOK, dev)
}

type (
	LoginRequest struct {
		Email    string          `json:"email" validate:"required,email"`
		Password string          `json:"password" validate:"required"`
		Device   user.DeviceInfo `json:"device"`
	}

	LoginResponse struct {
		Token     string    `json:"token"`
		User      user.User `json:"user"`
		SessionID string    `json:"sessionId"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

const (
	passwordResetRequested = "Si el correo pertenece a una cuenta activa, recibirás en breve un enlace para restablecer tu contraseña."
	passwordResetDone      = "Tu contraseña ha sido restablecida."
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
