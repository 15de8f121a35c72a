package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
)

// LedgerStore 是帳務儲存層的介面
// 所有異動都要透過 Within 取得單一帳戶範圍的原子性
type LedgerStore interface {
	// GetAccount 取得帳戶，不存在時回傳 domain.ErrAccountNotFound
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	// ListBalances 取得帳戶所有幣別餘額 (唯讀)
	ListBalances(ctx context.Context, accountID int64) ([]*domain.Balance, error)
	// Within 在單一帳戶的原子範圍內執行 fn
	// fn 回傳錯誤時所有異動都不落地；成功時全部一起落地
	Within(ctx context.Context, accountID int64, fn func(tx LedgerTx) error) error
}

// LedgerTx 是 Within 範圍內可用的讀寫操作
type LedgerTx interface {
	// GetBalance 取得某幣別餘額，不存在時回傳 (nil, nil)
	GetBalance(accountID int64, currency string) (*domain.Balance, error)
	// GetOrCreateBalance 取得或建立零餘額 (延遲建立為單一原子操作，避免並發重複建立)
	GetOrCreateBalance(accountID int64, currency string) (*domain.Balance, error)
	// UpsertBalance 寫入餘額
	UpsertBalance(balance *domain.Balance) error
	// AppendTransaction 追加一筆交易紀錄 (不可更新、不可刪除)
	AppendTransaction(tran *domain.Transaction) error
}

// RateOracle 匯率服務的消費端介面
// 同幣別換匯與不支援的幣別組合回傳 domain.ErrExchangeRateUnavailable
// 服務不可達或回傳錯誤時回傳 domain.ErrExchangeServiceUnavailable
type RateOracle interface {
	Convert(ctx context.Context, fromCurrency, toCurrency string, amount decimal.Decimal) (decimal.Decimal, error)
}
