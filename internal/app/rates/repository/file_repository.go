package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/domain"
)

// Repository 匯率表的讀取介面
type Repository interface {
	// AllRates 回傳所有報價
	AllRates() []domain.ExchangeRate
	// FindRate 查詢指定幣別組合的報價
	FindRate(fromCurrency, toCurrency string) (*domain.ExchangeRate, bool)
}

// FileRepository 由 JSON 檔載入的固定匯率表
// 啟動時載入一次，之後唯讀，天然執行緒安全
type FileRepository struct {
	rates []domain.ExchangeRate
}

// NewFileRepository 讀取 rates JSON 檔並建立匯率表
//
// 檔案格式 (陣列):
//
//	[{"fromCurrency":"USD","toCurrency":"EUR","buyRate":1.1,"sellRate":0.9}, ...]
func NewFileRepository(path string) (*FileRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file %s: %w", path, err)
	}

	var rates []domain.ExchangeRate
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("failed to parse rates file %s: %w", path, err)
	}

	// 幣別代碼一律轉大寫，查詢時不分大小寫
	for i := range rates {
		rates[i].FromCurrency = strings.ToUpper(rates[i].FromCurrency)
		rates[i].ToCurrency = strings.ToUpper(rates[i].ToCurrency)
	}

	return &FileRepository{rates: rates}, nil
}

// AllRates 回傳所有報價的副本
func (r *FileRepository) AllRates() []domain.ExchangeRate {
	result := make([]domain.ExchangeRate, len(r.rates))
	copy(result, r.rates)
	return result
}

// FindRate 查詢指定幣別組合的報價
func (r *FileRepository) FindRate(fromCurrency, toCurrency string) (*domain.ExchangeRate, bool) {
	from := strings.ToUpper(fromCurrency)
	to := strings.ToUpper(toCurrency)
	for i := range r.rates {
		if r.rates[i].FromCurrency == from && r.rates[i].ToCurrency == to {
			rate := r.rates[i]
			return &rate, true
		}
	}
	return nil, false
}

var _ Repository = (*FileRepository)(nil)
