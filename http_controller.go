package identity

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the JSON auth endpoints on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login.post")

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register.post")

	app.Post(controller.Routes.VerifyEmail, controller.VerifyEmail).
		SetName("auth.verify-email.post")

	app.Post(controller.Routes.ResendVerification, controller.ResendVerification).
		SetName("auth.resend-verification.post")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).
		SetName("auth.forgot-password.post")

	app.Post(controller.Routes.ResetPassword, controller.ResetPassword).
		SetName("auth.reset-password.post")
}

type AuthControllerRoutes struct {
	Login              string
	Register           string
	VerifyEmail        string
	ResendVerification string
	ForgotPassword     string
	ResetPassword      string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Auther       Authenticator
	Mailer       Mailer
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:              "/auth/login",
			Register:           "/auth/register",
			VerifyEmail:        "/auth/verify-email",
			ResendVerification: "/auth/resend-verification",
			ForgotPassword:     "/auth/forgot-password",
			ResetPassword:      "/auth/reset-password",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

// LoginRequest is the credential payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	token, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login error", "error", err)
		// one response for bad password, unknown user, and disabled account
		return ctx.JSON(fiber.StatusUnauthorized, map[string]any{
			"error": "authentication failed",
		})
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token": token,
	})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := RegisterUserMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"message": "registration complete, check your email to activate the account",
	})
}

// VerifyEmailPayload carries the single use verification token
type VerifyEmailPayload struct {
	Token string `form:"token" json:"token"`
}

// Validate will validate the payload
func (r VerifyEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, is.UUIDv4),
	)
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	payload := new(VerifyEmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	verify := NewVerifyEmailHandler(a.Repo).WithLogger(a.Logger)
	if err := verify.Execute(ctx.Context(), VerifyEmailMessage{Token: payload.Token}); err != nil {
		a.Logger.Error("verify email error", "error", err)
		if isConsumeFailure(err) {
			return a.tokenFailureResponse(ctx)
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "account verified",
	})
}

// EmailPayload is shared by the endpoints keyed on a bare email
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendVerification(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	resend := NewResendVerificationHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := resend.Execute(ctx.Context(), ResendVerificationMessage{Email: payload.Email}); err != nil {
		if goerrors.IsNotFound(err) {
			// do not leak which emails have accounts
			return a.genericEmailResponse(ctx)
		}
		a.Logger.Error("resend verification error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return a.genericEmailResponse(ctx)
}

func (a *AuthController) ForgotPassword(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	initReset := NewInitializePasswordResetHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := initReset.Execute(ctx.Context(), InitializePasswordResetMessage{Email: payload.Email}); err != nil {
		if goerrors.IsNotFound(err) {
			return a.genericEmailResponse(ctx)
		}
		a.Logger.Error("forgot password error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return a.genericEmailResponse(ctx)
}

// ResetPasswordPayload carries the reset token and the replacement password
type ResetPasswordPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, is.UUIDv4),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	finalize := NewFinalizePasswordResetHandler(a.Repo).WithLogger(a.Logger)
	msg := FinalizePasswordResetMessage{Token: payload.Token, Password: payload.Password}
	if err := finalize.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("reset password error", "error", err)
		if isConsumeFailure(err) {
			return a.tokenFailureResponse(ctx)
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "password updated",
	})
}

// genericEmailResponse is the shared answer for account-probing endpoints.
func (a *AuthController) genericEmailResponse(ctx router.Context) error {
	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "if the account exists an email is on its way",
	})
}

// tokenFailureResponse is the shared answer when a single-use token does not
// consume. Expired, spent, and never issued tokens all read the same so the
// endpoint cannot be used to probe token state.
func (a *AuthController) tokenFailureResponse(ctx router.Context) error {
	return ctx.JSON(fiber.StatusBadRequest, map[string]any{
		"error": "invalid or expired token",
	})
}

// isConsumeFailure matches the ways a single-use token fails to consume.
func isConsumeFailure(err error) bool {
	return IsTokenExpiredError(err) || goerrors.IsNotFound(err)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a field map
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verr validation.Errors
	if errors.As(err, &verr) {
		for field, ferr := range verr {
			out[field] = ferr.Error()
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	return c.JSON(status, map[string]any{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}
