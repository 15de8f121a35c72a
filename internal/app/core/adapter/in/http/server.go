package http

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
)

// currencyPattern 幣別代碼格式 (ISO 4217 三碼大寫)
// 格式驗證在 boundary 層完成，引擎信任收到的幣別代碼
var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Handler 帳務服務的 HTTP 介面 (Driving Adapter)
type Handler struct {
	core *usecase.AccountUseCase
}

func NewHandler(core *usecase.AccountUseCase) *Handler {
	return &Handler{core: core}
}

// RegisterRoutes 掛上路由，異動操作都要求有 principal
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/ping", h.Ping)

	accounts := app.Group("/accounts")
	accounts.Get("/:id/balances", h.GetBalances)

	authed := accounts.Use(BasicAuthPrincipal())
	authed.Post("/:id/deposit", h.Deposit)
	authed.Post("/:id/withdraw", h.Withdraw)
	authed.Post("/:id/exchange", h.Exchange)
}

// amountRequest 存款/提款的請求內容
type amountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// exchangeRequest 換匯的請求內容
type exchangeRequest struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Amount       decimal.Decimal `json:"amount"`
}

// Deposit POST /accounts/:id/deposit
func (h *Handler) Deposit(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}

	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !currencyPattern.MatchString(req.Currency) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid currency code"})
	}

	tran, err := h.core.Deposit(c.Context(), accountID, req.Amount, req.Currency, principalFrom(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":      "success",
		"message":     "Deposit successful",
		"transaction": transactionJSON(tran),
	})
}

// Withdraw POST /accounts/:id/withdraw
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}

	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !currencyPattern.MatchString(req.Currency) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid currency code"})
	}

	tran, err := h.core.Withdraw(c.Context(), accountID, req.Amount, req.Currency, principalFrom(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":      "success",
		"message":     "Withdrawal successful",
		"transaction": transactionJSON(tran),
	})
}

// Exchange POST /accounts/:id/exchange
func (h *Handler) Exchange(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}

	var req exchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !currencyPattern.MatchString(req.FromCurrency) || !currencyPattern.MatchString(req.ToCurrency) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid currency code"})
	}

	trans, err := h.core.Exchange(c.Context(), accountID, req.FromCurrency, req.ToCurrency, req.Amount, principalFrom(c))
	if err != nil {
		return writeError(c, err)
	}

	result := make([]fiber.Map, 0, len(trans))
	for _, t := range trans {
		result = append(result, transactionJSON(t))
	}
	return c.JSON(fiber.Map{
		"status":       "success",
		"message":      "Exchange successful",
		"transactions": result,
	})
}

// Ping GET /ping 健康檢查 (公開端點，監控系統用)
func (h *Handler) Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// GetBalances GET /accounts/:id/balances
func (h *Handler) GetBalances(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}

	balances, err := h.core.GetBalances(c.Context(), accountID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"accountId": accountID,
		"balances":  balances,
	})
}

func parseAccountID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func transactionJSON(t *domain.Transaction) fiber.Map {
	return fiber.Map{
		"transactionId":   t.ID,
		"refId":           t.RefID.String(),
		"accountId":       t.AccountID,
		"amount":          t.Amount,
		"currency":        t.Currency,
		"timestamp":       t.CreatedAt,
		"transactionType": t.Type.String(),
	}
}

// writeError 把引擎錯誤對應到 HTTP 狀態碼
// 業務錯誤帶完整訊息；其餘錯誤記 log 後只回傳 internal error
func writeError(c *fiber.Ctx, err error) error {
	var insufficient *domain.InsufficientFundsError

	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrAccountNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrNotAuthorized):
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &insufficient):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":     insufficient.Error(),
			"currency":  insufficient.Currency,
			"attempted": insufficient.Attempted,
			"available": insufficient.Available,
		})
	case errors.Is(err, domain.ErrInsufficientBalance):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrExchangeRateUnavailable):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrExchangeServiceUnavailable):
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		slog.Error("unexpected error", "err", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
