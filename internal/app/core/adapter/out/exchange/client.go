package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
)

const defaultTimeout = 5 * time.Second

// Client 匯率服務 (currency-exchange-service) 的 HTTP 客戶端
// 引擎透過 usecase.RateOracle 介面使用，不關心底層是行程內查表還是網路呼叫
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient 建立匯率服務客戶端
// timeout <= 0 時使用預設 5 秒；逾時由這裡負責，引擎不重試
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// convertRequest 對應匯率服務 POST /api/convert 的請求
type convertRequest struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Amount       decimal.Decimal `json:"amount"`
}

// convertResponse 對應匯率服務的成功回應
type convertResponse struct {
	ToCurrency      string          `json:"toCurrency"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
}

// Convert 呼叫匯率服務換算金額
//
// 錯誤對應:
//   - 連線失敗 / 逾時 / 5xx -> domain.ErrExchangeServiceUnavailable
//   - 4xx (幣別組合不支援、同幣別) -> domain.ErrExchangeRateUnavailable
func (c *Client) Convert(ctx context.Context, fromCurrency, toCurrency string, amount decimal.Decimal) (decimal.Decimal, error) {
	body, err := json.Marshal(convertRequest{
		FromCurrency: fromCurrency,
		ToCurrency:   toCurrency,
		Amount:       amount,
	})
	if err != nil {
		return decimal.Zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/convert", bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrExchangeServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var result convertResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return decimal.Zero, fmt.Errorf("%w: bad response body: %v", domain.ErrExchangeServiceUnavailable, err)
		}
		return result.ConvertedAmount, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// 匯率服務明確拒絕這個幣別組合
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrExchangeRateUnavailable, readError(resp.Body))
	default:
		return decimal.Zero, fmt.Errorf("%w: status %d", domain.ErrExchangeServiceUnavailable, resp.StatusCode)
	}
}

// readError 嘗試取出回應中的 error 欄位，取不到就回傳原文
func readError(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unknown error"
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return string(raw)
}

var _ usecase.RateOracle = (*Client)(nil)
