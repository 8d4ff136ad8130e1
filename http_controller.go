package prolink

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterAuthRoutes mounts the login, registration, logout and profile
// routes on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			controller.LoginPost,
		).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.Profile, controller.ProfileShow).
		SetName("profile.get")
	app.Post(controller.Routes.Profile, controller.ProfileUpdate).
		SetName("profile.post")
}

type AuthControllerRoutes struct {
	Login    string
	Logout   string
	Register string
	Profile  string
}

type AuthControllerViews struct {
	Login    string
	Logout   string
	Register string
	Profile  string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Auth         *AuthContext
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerAuth wires the auth context the controller drives.
func WithControllerAuth(auth *AuthContext) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auth = auth
		return c
	}
}

// WithControllerLogger overrides the controller's logger.
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithControllerDebug toggles payload dumps on auth posts.
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:    PathLogin,
			Logout:   "/logout",
			Register: "/register",
			Profile:  "/profile",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			Logout:   "logout",
			Register: "register",
			Profile:  "profile",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing AuthContext in auth controller...")
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors":   nil,
		"record":   nil,
		"redirect": ctx.Query("redirect", ""),
	})
}

// LoginRequest payload
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
		a.Logger.Error("login parse payload: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	returnTo := ctx.Query("redirect", "")

	dest, err := a.Auth.SignIn(ctx.Context(), payload.Email, payload.Password, returnTo)
	if err != nil {
		errs := map[string]string{"authentication": userMessage(err)}
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	return ctx.Redirect(dest, router.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	dest, err := a.Auth.SignOut(ctx.Context())
	if err != nil {
		a.Logger.Error("logout: %v", err)
		dest = PathHome
	}
	return ctx.Redirect(dest, router.StatusTemporaryRedirect)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegistrationCreatePayload{},
		"roles":  AllRoles(),
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Role            string `form:"role" json:"role"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(
			&r.Role,
			validation.Required,
			validation.In(string(RoleClient), string(RoleProfessional)),
		),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		errs := map[string]string{}
		errs["form"] = "Failed to parse form"
		a.Logger.Error("register parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		errs := FormatValidationErrorToMap(err)
		a.Logger.Error("register validate payload: %v", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": errs,
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	role, _ := ParseRole(payload.Role)

	dest, err := a.Auth.SignUp(ctx.Context(), payload.Email, payload.Password, SignUpMetadata{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Role:      role,
	})
	if err != nil {
		a.Logger.Error("register create: %v", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  userMessage(err),
			"system_message": "Error creating account",
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{userMessage(err)},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account created! Welcome to ProLink.",
	}).Redirect(dest, fiber.StatusSeeOther)
}

func (a *AuthController) ProfileShow(ctx router.Context) error {
	state := a.Auth.State()
	if state.User == nil {
		return ctx.Redirect(LoginRedirect(a.Routes.Profile), router.StatusSeeOther)
	}

	return ctx.Render(a.Views.Profile, router.ViewContext{
		"errors":  nil,
		"profile": state.Profile,
		"user":    state.User,
	})
}

// ProfileUpdatePayload is the profile edit form payload
type ProfileUpdatePayload struct {
	FirstName  string  `form:"first_name" json:"first_name"`
	LastName   string  `form:"last_name" json:"last_name"`
	Bio        string  `form:"bio" json:"bio"`
	Phone      string  `form:"phone_number" json:"phone_number"`
	HourlyRate float64 `form:"hourly_rate" json:"hourly_rate"`
}

// Validate will validate the payload
func (r ProfileUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.Bio, validation.Length(0, 2000)),
		validation.Field(&r.Phone, validation.Length(0, 20)),
		validation.Field(&r.HourlyRate, validation.Min(0.0)),
	)
}

func (a *AuthController) ProfileUpdate(ctx router.Context) error {
	payload := new(ProfileUpdatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile parse payload: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Profile, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	fields := map[string]any{
		"first_name":   payload.FirstName,
		"last_name":    payload.LastName,
		"bio":          payload.Bio,
		"phone_number": payload.Phone,
		"hourly_rate":  payload.HourlyRate,
	}

	if err := a.Auth.UpdateProfile(ctx.Context(), fields); err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return ctx.Redirect(LoginRedirect(a.Routes.Profile), router.StatusSeeOther)
		}
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  userMessage(err),
			"system_message": "Error updating profile",
		}).Render(a.Views.Profile, router.ViewContext{
			"record": payload,
			"errors": []string{userMessage(err)},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Profile updated",
	}).Redirect(a.Routes.Profile, fiber.StatusSeeOther)
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

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map for templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
