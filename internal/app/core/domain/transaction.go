package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
// 為了極致節省記憶體，使用 uint8
// 換匯不另設類型，一律拆成一筆 WITHDRAW 加一筆 DEPOSIT
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
)

// String 回傳 API 與資料庫使用的類型名稱
func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "DEPOSIT"
	case TransactionTypeWithdraw:
		return "WITHDRAW"
	default:
		return "UNKNOWN"
	}
}

// ParseTransactionType 由名稱還原類型 (資料庫讀回時使用)
func ParseTransactionType(s string) TransactionType {
	switch s {
	case "DEPOSIT":
		return TransactionTypeDeposit
	case "WITHDRAW":
		return TransactionTypeWithdraw
	default:
		return 0
	}
}

// Transaction 交易紀錄，建立後不可修改 (Append-only)
// 金額一律為正數，方向由 Type 決定，不使用帶號數
type Transaction struct {
	// ID: 由 Store 在寫入時分配 (自增)
	ID int64
	// RefID: 外部追蹤號 (UUID)，由引擎在建立時產生
	RefID uuid.UUID
	// AccountID: 所屬帳戶
	AccountID int64
	// Currency: 幣別代碼
	Currency string
	// Amount: 金額 (恆為正)
	Amount decimal.Decimal
	// CreatedAt: 引擎落帳當下的時間
	CreatedAt time.Time
	// Type: 放到最後面，利用 Padding 空間
	Type TransactionType
}

// NewTransaction 建立一筆交易紀錄並配發 RefID 與落帳時間
func NewTransaction(accountID int64, currency string, amount decimal.Decimal, txType TransactionType) *Transaction {
	return &Transaction{
		RefID:     uuid.New(),
		AccountID: accountID,
		Currency:  currency,
		Amount:    amount,
		CreatedAt: time.Now(),
		Type:      txType,
	}
}
