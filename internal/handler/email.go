package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-auth/internal/mailer"
    "github.com/iliyamo/storefront-auth/internal/validation"
)

// EmailHandler sends one-off emails on behalf of admins.
type EmailHandler struct {
    Mail mailer.Mailer
}

func NewEmailHandler(m mailer.Mailer) *EmailHandler { return &EmailHandler{Mail: m} }

type welcomeReq struct {
    To string `json:"to"`
}

const welcomeHTML = `<h1>Thanks for signing up</h1><p>We hope you enjoy the store.</p>`

// Welcome mails the welcome message to the given address.
func (h *EmailHandler) Welcome(c echo.Context) error {
    var req welcomeReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := validation.ValidateRecipient(req.To); err != nil {
        return respondError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), registerTimeout)
    defer cancel()

    if !h.Mail.Send(ctx, mailer.Message{To: req.To, Subject: "Welcome to the store", HTML: welcomeHTML}) {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "email could not be sent"})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "email sent"})
}
