package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 帳戶
// 帳戶由外部系統開立 (Onboarding)，引擎只讀不寫
// Owner 是授權主體 (username)，建立後不可變更
type Account struct {
	ID        int64
	Number    string
	Owner     string
	CreatedAt time.Time
}

// Balance 某帳戶在單一幣別下的餘額
// 以 (AccountID, Currency) 為唯一鍵，金額不可為負
// 金額使用 decimal 避免浮點誤差 (同原系統 BigDecimal)
type Balance struct {
	ID        int64
	AccountID int64
	Currency  string
	Amount    decimal.Decimal
}

// NewBalance 建立一筆零餘額 (幣別首次入金時由 Store 延遲建立)
func NewBalance(accountID int64, currency string) *Balance {
	return &Balance{
		AccountID: accountID,
		Currency:  currency,
		Amount:    decimal.Zero,
	}
}

// Add 加上金額
func (b *Balance) Add(amount decimal.Decimal) {
	b.Amount = b.Amount.Add(amount)
}

// Sub 扣除金額，餘額不足時回傳 InsufficientFundsError
func (b *Balance) Sub(amount decimal.Decimal) error {
	if b.Amount.LessThan(amount) {
		return &InsufficientFundsError{
			Currency:  b.Currency,
			Attempted: amount,
			Available: b.Amount,
		}
	}
	b.Amount = b.Amount.Sub(amount)
	return nil
}

// Covers 餘額是否足以支付 amount
func (b *Balance) Covers(amount decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(amount)
}
