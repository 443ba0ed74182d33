package account

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterAccountRoutes mounts the JSON account API on the given router.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {
	controller := NewAccountController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("account.register.post")

	app.Get(fmt.Sprintf("%s/:code", controller.Routes.Activate), controller.ActivateGet).
		SetName("account.activate.get")

	app.Post(controller.Routes.Auth, controller.AuthPost).
		SetName("account.auth.post")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("account.forgot-password.post")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("account.password-reset.post")

	app.Get(controller.Routes.Account, controller.AccountGet).
		SetName("account.profile.get")
	app.Post(controller.Routes.Account, controller.AccountPost).
		SetName("account.profile.post")
	app.Delete(fmt.Sprintf("%s/avatar", controller.Routes.Account), controller.AvatarDelete).
		SetName("account.avatar.delete")

	app.Get(controller.Routes.SignOut, controller.SignOutGet).
		SetName("account.sign-out.get")

	app.Get(fmt.Sprintf("%s/:id", controller.Routes.Impersonate), controller.ImpersonateGet).
		SetName("account.impersonate.get")

	app.Get(controller.Routes.StopImpersonation, controller.StopImpersonationGet).
		SetName("account.stop-impersonation.get")
}

type AccountControllerRoutes struct {
	Register          string
	Activate          string
	Auth              string
	ForgotPassword    string
	PasswordReset     string
	Account           string
	SignOut           string
	Impersonate       string
	StopImpersonation string
}

type AccountController struct {
	Debug   bool
	Logger  Logger
	Manager *AccountManager
	Cookies *CookieAuth
	Routes  *AccountControllerRoutes
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: &AccountControllerRoutes{
			Register:          "/register",
			Activate:          "/activate",
			Auth:              "/auth",
			ForgotPassword:    "/forgot-password",
			PasswordReset:     "/password-reset",
			Account:           "/account",
			SignOut:           "/signout",
			Impersonate:       "/impersonate",
			StopImpersonation: "/stop-impersonation",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Manager == nil {
		panic("Missing AccountManager in account controller...")
	}

	if c.Cookies == nil {
		panic("Missing CookieAuth in account controller...")
	}

	return c
}

func WithControllerManager(m *AccountManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Manager = m
		return c
	}
}

func WithControllerCookies(cookies *CookieAuth) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Cookies = cookies
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = logger
		return c
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func (a *AccountController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload: %s", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	payload.IPAddress = clientIP(ctx)

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	sess := a.Cookies.SessionFromRequest(ctx)

	user, err := a.Manager.Register(ctx.Context(), sess, *payload)
	if err != nil {
		return a.respondError(ctx, err)
	}

	if err := a.Cookies.Issue(ctx, sess); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
		"user":   user,
	})
}

func (a *AccountController) ActivateGet(ctx router.Context) error {
	code := ctx.Param("code", "")

	sess := a.Cookies.SessionFromRequest(ctx)

	if _, err := a.Manager.Activate(ctx.Context(), sess, code); err != nil {
		return a.respondError(ctx, err)
	}

	if err := a.Cookies.Issue(ctx, sess); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.Redirect(a.Manager.ActivateRedirect(), fiber.StatusSeeOther)
}

func (a *AccountController) AuthPost(ctx router.Context) error {
	payload := new(AuthenticateInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("auth parse payload: %s", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	payload.IPAddress = clientIP(ctx)

	sess := a.Cookies.SessionFromRequest(ctx)

	user, err := a.Manager.Authenticate(ctx.Context(), sess, *payload)
	if err != nil {
		// A banned login must not keep its cookie either.
		if issueErr := a.Cookies.Issue(ctx, sess); issueErr != nil {
			a.Logger.Error("auth cookie update: %s", issueErr)
		}
		return a.respondError(ctx, err)
	}

	if err := a.Cookies.Issue(ctx, sess); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
		"user":   user,
	})
}

// ForgotPasswordPayload starts the password reset flow.
type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
}

func (a *AccountController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("forgot password parse payload: %s", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := a.Manager.SendResetEmail(ctx.Context(), payload.Email); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (a *AccountController) PasswordResetPost(ctx router.Context) error {
	payload := new(ResetPasswordInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %s", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := a.Manager.ResetPassword(ctx.Context(), *payload); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (a *AccountController) AccountGet(ctx router.Context) error {
	sess := a.Cookies.SessionFromRequest(ctx)

	user, err := a.Manager.AuthenticatedUser(ctx.Context(), sess)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
		"user":   user,
	})
}

func (a *AccountController) AccountPost(ctx router.Context) error {
	payload := new(UpdateProfileInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("account update parse payload: %s", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT UPDATE ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=============================")
	}

	sess := a.Cookies.SessionFromRequest(ctx)

	user, err := a.Manager.UpdateProfile(ctx.Context(), sess, *payload)
	if err != nil {
		return a.respondError(ctx, err)
	}

	// A password change rotates the session credential.
	if err := a.Cookies.Issue(ctx, sess); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
		"user":   user,
	})
}

func (a *AccountController) AvatarDelete(ctx router.Context) error {
	sess := a.Cookies.SessionFromRequest(ctx)

	user, err := a.Manager.DeleteAvatar(ctx.Context(), sess)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
		"user":   user,
	})
}

func (a *AccountController) SignOutGet(ctx router.Context) error {
	sess := a.Cookies.SessionFromRequest(ctx)

	a.Manager.SignOut(ctx.Context(), sess)
	a.Cookies.Clear(ctx)

	return ctx.Redirect("/", fiber.StatusSeeOther)
}

func (a *AccountController) ImpersonateGet(ctx router.Context) error {
	targetID := uuidParam(ctx, "id")
	if targetID == uuid.Nil {
		return a.respondError(ctx, goerrors.New("invalid impersonation target", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	sess := a.Cookies.SessionFromRequest(ctx)

	user, err := a.Manager.Impersonate(ctx.Context(), sess, targetID)
	if err != nil {
		return a.respondError(ctx, err)
	}

	if err := a.Cookies.Issue(ctx, sess); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status": "ok",
		"user":   user,
	})
}

func (a *AccountController) StopImpersonationGet(ctx router.Context) error {
	sess := a.Cookies.SessionFromRequest(ctx)

	if err := a.Manager.StopImpersonating(ctx.Context(), sess); err != nil {
		a.Cookies.Clear(ctx)
		return a.respondError(ctx, err)
	}

	if err := a.Cookies.Issue(ctx, sess); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.Redirect("/", fiber.StatusSeeOther)
}

func (a *AccountController) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := statusForError(richErr)

	if status >= fiber.StatusInternalServerError {
		a.Logger.Error("account handler error: %s", richErr)
		// Internal detail stays out of the response.
		return ctx.JSON(status, map[string]any{
			"status":  "error",
			"message": "An unexpected server error occurred",
		})
	}

	body := map[string]any{
		"status":  errorStatus(richErr),
		"message": richErr.Message,
	}

	if fields := richErr.ValidationMap(); len(fields) > 0 {
		body["errors"] = fields
	}

	if field, ok := richErr.Metadata["field"].(string); ok {
		body["field"] = field
	}

	return ctx.JSON(status, body)
}

// statusForError maps error categories onto HTTP statuses. Auth errors honor
// an explicit code so invalid activation and reset tokens stay 400s.
func statusForError(err *goerrors.Error) int {
	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryConflict:
		return fiber.StatusUnprocessableEntity
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryAuth:
		if err.Code != 0 {
			return err.Code
		}
		return fiber.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// errorStatus derives the machine-readable status string, e.g. EMAIL_TAKEN
// becomes "email_taken".
func errorStatus(err *goerrors.Error) string {
	if err.TextCode == "" {
		return "error"
	}
	return strings.ToLower(err.TextCode)
}

// clientIP resolves the calling address from proxy headers.
func clientIP(ctx router.Context) string {
	if fwd := ctx.Header("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	return ctx.Header("X-Real-IP")
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

// uuidParam reads a UUID path parameter, uuid.Nil when absent or invalid.
func uuidParam(ctx router.Context, key string) uuid.UUID {
	id, err := uuid.Parse(ctx.Param(key, ""))
	if err != nil {
		return uuid.Nil
	}
	return id
}
