package handler

import (
    "context"
    "encoding/json"
    "io"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-auth/internal/service"
    "github.com/iliyamo/storefront-auth/internal/validation"
)

const catalogTimeout = 10 * time.Second

// ProductHandler proxies /products to the catalog service.
type ProductHandler struct {
    Products *service.ProductService
}

func NewProductHandler(p *service.ProductService) *ProductHandler {
    return &ProductHandler{Products: p}
}

func readJSON(c echo.Context) (json.RawMessage, bool) {
    body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
    if err != nil || !json.Valid(body) {
        return nil, false
    }
    return body, true
}

func (h *ProductHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), catalogTimeout)
    defer cancel()

    out, err := h.Products.List(ctx)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSONBlob(http.StatusOK, out)
}

func (h *ProductHandler) Create(c echo.Context) error {
    body, ok := readJSON(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := validation.ValidateProduct(body); err != nil {
        return respondError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), catalogTimeout)
    defer cancel()

    out, err := h.Products.Create(ctx, body)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSONBlob(http.StatusCreated, out)
}

func (h *ProductHandler) Update(c echo.Context) error {
    body, ok := readJSON(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), catalogTimeout)
    defer cancel()

    out, err := h.Products.Update(ctx, c.Param("id"), body)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSONBlob(http.StatusOK, out)
}

func (h *ProductHandler) Delete(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), catalogTimeout)
    defer cancel()

    if _, err := h.Products.Delete(ctx, c.Param("id")); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}

type purchaseReq struct {
    Quantity int `json:"quantity"`
}

func (h *ProductHandler) Purchase(c echo.Context) error {
    var req purchaseReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), catalogTimeout)
    defer cancel()

    out, err := h.Products.Purchase(ctx, c.Param("id"), req.Quantity)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSONBlob(http.StatusOK, out)
}
