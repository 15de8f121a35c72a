package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount 金額必須為正數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotAuthorized 操作者不是帳戶擁有者
	ErrNotAuthorized = errors.New("not authorized for this account")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrExchangeRateUnavailable 匯率服務不支援該幣別組合 (含同幣別換匯)
	ErrExchangeRateUnavailable = errors.New("exchange rate unavailable")

	// ErrExchangeServiceUnavailable 匯率服務連線失敗或回傳 5xx
	ErrExchangeServiceUnavailable = errors.New("exchange service unavailable")

	// ErrWALWriteFailed WAL 寫入失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)

// InsufficientFundsError 餘額不足的詳細資訊
// 帶出嘗試金額與可用餘額，boundary 層可以直接組出使用者訊息
// 沒有餘額紀錄時 Available 為 0
type InsufficientFundsError struct {
	Currency  string
	Attempted decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: attempted %s %s, available %s %s",
		e.Attempted, e.Currency, e.Available, e.Currency)
}

// Is 讓 errors.Is(err, ErrInsufficientBalance) 成立
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
