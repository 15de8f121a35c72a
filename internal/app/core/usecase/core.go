package usecase

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
)

// AccountUseCase 是帳務引擎 (核心業務邏輯層)
// 負責存款、提款、換匯與餘額查詢，並保證：
//   - 餘額異動與交易紀錄同進同退 (同一原子範圍)
//   - 餘額永不為負
//   - 換匯先取匯率再進入原子範圍，等待外部服務時不持有帳戶鎖
type AccountUseCase struct {
	store  LedgerStore
	oracle RateOracle
	policy AuthPolicy
}

// NewAccountUseCase 建立帳務引擎
// policy 傳 nil 時使用 DepositOwnerPolicy (原系統行為)
func NewAccountUseCase(store LedgerStore, oracle RateOracle, policy AuthPolicy) *AccountUseCase {
	if policy == nil {
		policy = DepositOwnerPolicy{}
	}
	return &AccountUseCase{
		store:  store,
		oracle: oracle,
		policy: policy,
	}
}

// Deposit 存款
// 金額必須為正；帳戶必須存在；principal 須通過授權政策
// 幣別首次入金時延遲建立零餘額再加值
func (u *AccountUseCase) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency, principal string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := u.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := u.policy.Authorize(OpDeposit, account, principal); err != nil {
		slog.Warn("deposit rejected by policy", "accountID", accountID, "principal", principal)
		return nil, err
	}

	var tran *domain.Transaction
	err = u.store.Within(ctx, accountID, func(tx LedgerTx) error {
		balance, err := tx.GetOrCreateBalance(accountID, currency)
		if err != nil {
			return err
		}
		balance.Add(amount)
		if err := tx.UpsertBalance(balance); err != nil {
			return err
		}
		tran = domain.NewTransaction(accountID, currency, amount, domain.TransactionTypeDeposit)
		return tx.AppendTransaction(tran)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("deposit completed",
		"accountID", accountID, "amount", amount, "currency", currency, "refID", tran.RefID)
	return tran, nil
}

// Withdraw 提款
// 餘額紀錄不存在或不足時回傳 InsufficientFundsError (餘額維持不變)
func (u *AccountUseCase) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, currency, principal string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := u.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := u.policy.Authorize(OpWithdraw, account, principal); err != nil {
		return nil, err
	}

	var tran *domain.Transaction
	err = u.store.Within(ctx, accountID, func(tx LedgerTx) error {
		balance, err := tx.GetBalance(accountID, currency)
		if err != nil {
			return err
		}
		if balance == nil {
			return &domain.InsufficientFundsError{
				Currency:  currency,
				Attempted: amount,
				Available: decimal.Zero,
			}
		}
		if err := balance.Sub(amount); err != nil {
			return err
		}
		if err := tx.UpsertBalance(balance); err != nil {
			return err
		}
		tran = domain.NewTransaction(accountID, currency, amount, domain.TransactionTypeWithdraw)
		return tx.AppendTransaction(tran)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("withdrawal completed",
		"accountID", accountID, "amount", amount, "currency", currency, "refID", tran.RefID)
	return tran, nil
}

// Exchange 換匯
// 流程: 檢查來源餘額 -> 向 RateOracle 取得換算金額 -> 原子範圍內扣舊幣、加新幣、落兩筆交易
// 回傳順序固定為 [WITHDRAW, DEPOSIT]
// RateOracle 呼叫在原子範圍外，失敗時不會留下任何異動
func (u *AccountUseCase) Exchange(ctx context.Context, accountID int64, fromCurrency, toCurrency string, amount decimal.Decimal, principal string) ([]*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := u.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := u.policy.Authorize(OpExchange, account, principal); err != nil {
		return nil, err
	}

	// 先檢查來源餘額，不足就不用浪費一次匯率查詢
	if err := u.checkSourceBalance(ctx, accountID, fromCurrency, amount); err != nil {
		return nil, err
	}

	converted, err := u.oracle.Convert(ctx, fromCurrency, toCurrency, amount)
	if err != nil {
		slog.Warn("exchange rate lookup failed",
			"accountID", accountID, "from", fromCurrency, "to", toCurrency, "err", err)
		return nil, err
	}

	var withdrawTran, depositTran *domain.Transaction
	err = u.store.Within(ctx, accountID, func(tx LedgerTx) error {
		// 取得匯率期間餘額可能已被並發提款，進原子範圍後重新驗證
		fromBalance, err := tx.GetBalance(accountID, fromCurrency)
		if err != nil {
			return err
		}
		if fromBalance == nil {
			return &domain.InsufficientFundsError{
				Currency:  fromCurrency,
				Attempted: amount,
				Available: decimal.Zero,
			}
		}
		if err := fromBalance.Sub(amount); err != nil {
			return err
		}
		if err := tx.UpsertBalance(fromBalance); err != nil {
			return err
		}

		toBalance, err := tx.GetOrCreateBalance(accountID, toCurrency)
		if err != nil {
			return err
		}
		toBalance.Add(converted)
		if err := tx.UpsertBalance(toBalance); err != nil {
			return err
		}

		withdrawTran = domain.NewTransaction(accountID, fromCurrency, amount, domain.TransactionTypeWithdraw)
		if err := tx.AppendTransaction(withdrawTran); err != nil {
			return err
		}
		depositTran = domain.NewTransaction(accountID, toCurrency, converted, domain.TransactionTypeDeposit)
		return tx.AppendTransaction(depositTran)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("exchange completed",
		"accountID", accountID, "from", fromCurrency, "to", toCurrency,
		"amount", amount, "converted", converted)
	return []*domain.Transaction{withdrawTran, depositTran}, nil
}

// GetBalances 查詢帳戶所有幣別餘額 (唯讀)
// 從未持有過的幣別不會出現在結果中
func (u *AccountUseCase) GetBalances(ctx context.Context, accountID int64) (map[string]decimal.Decimal, error) {
	if _, err := u.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	balances, err := u.store.ListBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		result[b.Currency] = b.Amount
	}
	return result, nil
}

// checkSourceBalance 換匯前的來源餘額預檢
func (u *AccountUseCase) checkSourceBalance(ctx context.Context, accountID int64, currency string, amount decimal.Decimal) error {
	balances, err := u.store.ListBalances(ctx, accountID)
	if err != nil {
		return err
	}
	for _, b := range balances {
		if b.Currency == currency {
			if b.Covers(amount) {
				return nil
			}
			return &domain.InsufficientFundsError{
				Currency:  currency,
				Attempted: amount,
				Available: b.Amount,
			}
		}
	}
	return &domain.InsufficientFundsError{
		Currency:  currency,
		Attempted: amount,
		Available: decimal.Zero,
	}
}
