package usecase

import "github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"

// Operation 引擎的異動操作種類，授權政策依此判斷
type Operation uint8

const (
	OpDeposit Operation = iota + 1
	OpWithdraw
	OpExchange
)

// AuthPolicy 授權政策
// 授權是一個注入引擎的能力，三個異動操作都會統一詢問
// 實際要檢查哪些操作由各政策自行決定
type AuthPolicy interface {
	// Authorize 不通過時回傳 domain.ErrNotAuthorized
	Authorize(op Operation, account *domain.Account, principal string) error
}

// DepositOwnerPolicy 只在存款時檢查擁有者，提款與換匯放行
// 這是原系統觀察到的行為，提款授權交給 boundary 層
type DepositOwnerPolicy struct{}

func (DepositOwnerPolicy) Authorize(op Operation, account *domain.Account, principal string) error {
	if op != OpDeposit {
		return nil
	}
	if account.Owner != principal {
		return domain.ErrNotAuthorized
	}
	return nil
}

// OwnerOnlyPolicy 所有異動操作都檢查擁有者
type OwnerOnlyPolicy struct{}

func (OwnerOnlyPolicy) Authorize(op Operation, account *domain.Account, principal string) error {
	if account.Owner != principal {
		return domain.ErrNotAuthorized
	}
	return nil
}
