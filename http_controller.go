package upkeep

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

// RefreshCookieName is the HttpOnly cookie carrying the refresh token. The
// token value never appears in a JSON response body.
const RefreshCookieName = "refreshToken"

// SessionLocalsKey is where the bearer middleware stores validated claims
const SessionLocalsKey = "session"

type AuthControllerRoutes struct {
	Register string
	Login    string
	Refresh  string
	Revoke   string
	Logout   string
}

func defaultAuthRoutes() *AuthControllerRoutes {
	return &AuthControllerRoutes{
		Register: "/v1/auth/register",
		Login:    "/v1/auth/login",
		Refresh:  "/v1/auth/refresh",
		Revoke:   "/v1/auth/revoke",
		Logout:   "/v1/auth/logout",
	}
}

// AuthController exposes the session lifecycle over HTTP. Refresh tokens ride
// in the cookie, access tokens in the Authorization header.
type AuthController struct {
	Auther Authenticator
	Tokens TokenService
	Logger Logger
	Routes *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewAuthController(auther Authenticator, tokens TokenService, opts ...AuthControllerOption) *AuthController {
	controller := &AuthController{
		Auther: auther,
		Tokens: tokens,
		Logger: defLogger{},
		Routes: defaultAuthRoutes(),
	}

	for _, opt := range opts {
		if opt != nil {
			controller = opt(controller)
		}
	}

	return controller
}

// RegisterAuthRoutes mounts the lifecycle endpoints. Revoke and logout
// require a valid bearer token; the rest are anonymous.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) {
	app.Post(controller.Routes.Register, controller.Register)
	app.Post(controller.Routes.Login, controller.Login)
	app.Post(controller.Routes.Refresh, controller.Refresh)
	app.Post(controller.Routes.Revoke, controller.RequireBearer, controller.Revoke)
	app.Post(controller.Routes.Logout, controller.RequireBearer, controller.Logout)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// Register handles POST /v1/auth/register
func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := RegisterRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := payload.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := a.Auther.Register(a.requestContext(c), RegisterInput{
		Email:    payload.Email,
		Password: payload.Password,
		Name:     payload.Name,
		IP:       c.IP(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return badRequest(c, ErrDuplicateEmail.Message)
		}
		a.Logger.Error("registration failed", "error", err)
		return internalError(c)
	}

	a.setRefreshCookie(c, result.RefreshToken)
	return c.JSON(result)
}

// Login handles POST /v1/auth/login
func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := payload.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := a.Auther.Login(a.requestContext(c), LoginInput{
		Email:    payload.Email,
		Password: payload.Password,
		IP:       c.IP(),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return unauthorized(c, ErrInvalidCredentials.Message)
		}
		a.Logger.Error("login failed", "error", err)
		return internalError(c)
	}

	a.setRefreshCookie(c, result.RefreshToken)
	return c.JSON(result)
}

// Refresh handles POST /v1/auth/refresh, rotating the cookie-carried token
func (a *AuthController) Refresh(c *fiber.Ctx) error {
	presented := c.Cookies(RefreshCookieName)
	if presented == "" {
		return unauthorized(c, "refresh token not found")
	}

	result, err := a.Auther.RefreshSession(a.requestContext(c), presented, c.IP())
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return unauthorized(c, ErrInvalidToken.Message)
		}
		a.Logger.Error("session refresh failed", "error", err)
		return internalError(c)
	}

	a.setRefreshCookie(c, result.RefreshToken)
	return c.JSON(result)
}

// Revoke handles POST /v1/auth/revoke
func (a *AuthController) Revoke(c *fiber.Ctx) error {
	presented := c.Cookies(RefreshCookieName)
	if presented == "" {
		return badRequest(c, "refresh token not found")
	}

	if err := a.Auther.RevokeSession(a.requestContext(c), presented, c.IP()); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return badRequest(c, ErrInvalidToken.Message)
		}
		a.Logger.Error("token revocation failed", "error", err)
		return internalError(c)
	}

	a.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"message": "Token revoked successfully"})
}

// Logout handles POST /v1/auth/logout. The cookie is always cleared and the
// response is always 200: a client-visible logout never appears to fail.
func (a *AuthController) Logout(c *fiber.Ctx) error {
	if presented := c.Cookies(RefreshCookieName); presented != "" {
		if err := a.Auther.RevokeSession(a.requestContext(c), presented, c.IP()); err != nil {
			a.Logger.Warn("logout revocation failed", "error", err)
		}
	}

	a.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// RequireBearer validates the Authorization header and stores the session
// claims in locals for downstream handlers.
func (a *AuthController) RequireBearer(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return unauthorized(c, "missing or malformed JWT")
	}

	claims, err := a.Tokens.Validate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return unauthorized(c, "invalid or expired token")
	}

	c.Locals(SessionLocalsKey, claims)
	return c.Next()
}

// SessionFromLocals retrieves the claims stored by RequireBearer
func SessionFromLocals(c *fiber.Ctx) (*SessionClaims, bool) {
	claims, ok := c.Locals(SessionLocalsKey).(*SessionClaims)
	return claims, ok
}

// requestContext builds the operation context carrying the request's audit
// identity so the persistence layer can attribute every mutation.
func (a *AuthController) requestContext(c *fiber.Ctx) context.Context {
	ac := NewAuditContext(c.IP(), c.Get(fiber.HeaderUserAgent))
	if claims, ok := SessionFromLocals(c); ok {
		if uid, err := claims.UserUUID(); err == nil {
			ac.SetActor(&uid, claims.Email)
		}
	}
	return WithAuditContext(c.UserContext(), ac)
}

func (a *AuthController) setRefreshCookie(c *fiber.Ctx, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(RefreshTokenTTL),
		HTTPOnly: true,
		Secure:   c.Secure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *AuthController) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   c.Secure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
