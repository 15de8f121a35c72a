package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/service"
)

// Handler 匯率服務的 HTTP 介面
type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 掛上路由
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/ping", h.Ping)

	api := app.Group("/api")
	api.Post("/convert", h.Convert)
	api.Get("/currencies", h.SupportedCurrencies)
}

// Ping GET /ping 健康檢查
func (h *Handler) Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// convertRequest /api/convert 的請求內容
type convertRequest struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Amount       decimal.Decimal `json:"amount"`
}

// Convert POST /api/convert
func (h *Handler) Convert(c *fiber.Ctx) error {
	var req convertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.FromCurrency == "" || req.ToCurrency == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "fromCurrency and toCurrency are required"})
	}

	converted, err := h.svc.Convert(req.FromCurrency, req.ToCurrency, req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrRateNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		slog.Error("conversion failed", "err", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{
		"toCurrency":      req.ToCurrency,
		"convertedAmount": converted,
	})
}

// SupportedCurrencies GET /api/currencies
func (h *Handler) SupportedCurrencies(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"currencies": h.svc.SupportedCurrencies(),
	})
}
