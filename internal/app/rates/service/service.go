package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/repository"
)

// Service 匯率換算服務
// 報價固定 (啟動時載入)，同一請求內不會變動
type Service struct {
	repo repository.Repository
}

func NewService(repo repository.Repository) *Service {
	return &Service{repo: repo}
}

// SupportedCurrencies 回傳所有支援的幣別 (報價表中出現過的 fromCurrency，去重排序)
func (s *Service) SupportedCurrencies() []string {
	seen := make(map[string]bool)
	for _, rate := range s.repo.AllRates() {
		seen[rate.FromCurrency] = true
	}
	currencies := make([]string, 0, len(seen))
	for c := range seen {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	return currencies
}

// Convert 將 amount 由 fromCurrency 換算為 toCurrency (使用 SellRate)
//
// 以下情況回傳 domain.ErrRateNotFound，一律不靜默放行:
//   - 同幣別換匯 (呼叫端錯誤，不可當作 no-op)
//   - 不支援的幣別
//   - 報價表沒有該幣別組合
func (s *Service) Convert(fromCurrency, toCurrency string, amount decimal.Decimal) (decimal.Decimal, error) {
	from := strings.ToUpper(fromCurrency)
	to := strings.ToUpper(toCurrency)

	if from == to {
		return decimal.Zero, fmt.Errorf("exchange rate not required for the same currency %s: %w",
			from, domain.ErrRateNotFound)
	}

	supported := make(map[string]bool)
	for _, c := range s.SupportedCurrencies() {
		supported[c] = true
	}
	if !supported[from] || !supported[to] {
		return decimal.Zero, fmt.Errorf("unsupported currency, supported currencies are %v: %w",
			s.SupportedCurrencies(), domain.ErrRateNotFound)
	}

	rate, ok := s.repo.FindRate(from, to)
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate from %s to %s: %w", from, to, domain.ErrRateNotFound)
	}

	converted := amount.Mul(rate.SellRate)
	slog.Info("conversion completed", "from", from, "to", to, "amount", amount, "converted", converted)
	return converted, nil
}
