package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-auth/internal/middleware"
    "github.com/iliyamo/storefront-auth/internal/model"
    "github.com/iliyamo/storefront-auth/internal/service"
    "github.com/iliyamo/storefront-auth/internal/validation"
)

const (
    storeTimeout = 5 * time.Second
    // registration hashes a password and talks to SMTP
    registerTimeout = 20 * time.Second
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
    Auth          *service.AuthService
    PublicBaseURL string // origin for activation links; empty = request origin
}

func NewAuthHandler(auth *service.AuthService, publicBaseURL string) *AuthHandler {
    return &AuthHandler{Auth: auth, PublicBaseURL: publicBaseURL}
}

func (h *AuthHandler) origin(c echo.Context) string {
    if h.PublicBaseURL != "" {
        return h.PublicBaseURL
    }
    return c.Scheme() + "://" + c.Request().Host
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

// Register: validate, apply the role policy and mail the activation link.
func (h *AuthHandler) Register(c echo.Context) error {
    var req validation.RegisterRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Normalize()
    if err := req.Validate(); err != nil {
        return respondError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), registerTimeout)
    defer cancel()

    res, err := h.Auth.Register(ctx, service.RegisterInput{
        Username:  req.Username,
        FirstName: req.FirstName,
        LastName:  req.LastName,
        Email:     req.Email,
        Address:   req.Address,
        Phone:     req.Phone,
        Password:  req.Password,
        Role:      req.Role,
        Bearer:    middleware.BearerToken(c),
        Origin:    h.origin(c),
    })
    if err != nil {
        return respondError(c, err)
    }

    msg := "user registered, check your email to activate the account"
    if !res.VerificationSent {
        msg = "user registered, but the activation email could not be sent"
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message":                 msg,
        "user":                    res.User,
        "verification_email_sent": res.VerificationSent,
    })
}

// Login: exchange credentials for a session token.
func (h *AuthHandler) Login(c echo.Context) error {
    var req validation.LoginRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := req.Validate(); err != nil {
        return respondError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    username, email := req.Credentials()
    out, err := h.Auth.Login(ctx, username, email, req.Password)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "user":  out.User,
        "token": tokenPart{Token: out.Token.Token, Expires: out.Token.Exp},
    })
}

// Verify: redeem the emailed activation link.
func (h *AuthHandler) Verify(c echo.Context) error {
    token := strings.TrimSpace(c.QueryParam("token"))
    if token == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    u, err := h.Auth.Verify(ctx, token)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "email verified", "user": u})
}

// UpdateUser: self or admin may change profile fields.
func (h *AuthHandler) UpdateUser(c echo.Context) error {
    actor, _ := middleware.IdentityFrom(c)
    var req validation.UpdateUserRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := req.Validate(); err != nil {
        return respondError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    u, err := h.Auth.UpdateUser(ctx, actor, c.Param("id"), req.Patch())
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "user updated", "user": u})
}

// DeleteUser: self or admin may delete an account.
func (h *AuthHandler) DeleteUser(c echo.Context) error {
    actor, _ := middleware.IdentityFrom(c)

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    if _, err := h.Auth.DeleteUser(ctx, actor, c.Param("id")); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

// ChangeRole: admins assign any known role.
func (h *AuthHandler) ChangeRole(c echo.Context) error {
    actor, _ := middleware.IdentityFrom(c)
    var req validation.RoleRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := req.Validate(); err != nil {
        return respondError(c, err)
    }
    role, _ := model.ParseRole(req.Role)

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    u, err := h.Auth.ChangeRole(ctx, actor, c.Param("id"), role)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "role updated", "user": u})
}

// Me: the caller's identity plus their stored profile.
func (h *AuthHandler) Me(c echo.Context) error {
    actor, _ := middleware.IdentityFrom(c)

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    u, err := h.Auth.Profile(ctx, actor)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "user_id": actor.ID,
        "role":    actor.Role,
        "user":    u,
    })
}
