package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrRateNotFound 找不到可用匯率 (不支援的幣別、同幣別換匯、或沒有該組合的報價)
var ErrRateNotFound = errors.New("exchange rate not found")

// ExchangeRate 一組幣別的固定匯率報價
// 買賣價分開列，換匯一律用 SellRate 計算
type ExchangeRate struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	BuyRate      decimal.Decimal `json:"buyRate"`  // 用 fromCurrency 買入 toCurrency 的匯率
	SellRate     decimal.Decimal `json:"sellRate"` // 將 toCurrency 賣回 fromCurrency 的匯率
}
