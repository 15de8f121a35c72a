package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-fx-ledger/pkg/wal"
)

func testAccounts() map[int64]*domain.Account {
	return map[int64]*domain.Account{
		1: {ID: 1, Number: "ACC-0001", Owner: "alice", CreatedAt: time.Now()},
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("NewFromString(%s): %v", s, err)
	}
	return d
}

func deposit(t *testing.T, ledger *MutexLedger, accountID int64, currency, amount string) {
	t.Helper()
	err := ledger.Within(context.Background(), accountID, func(tx usecase.LedgerTx) error {
		balance, err := tx.GetOrCreateBalance(accountID, currency)
		if err != nil {
			return err
		}
		balance.Add(mustDecimal(t, amount))
		if err := tx.UpsertBalance(balance); err != nil {
			return err
		}
		return tx.AppendTransaction(
			domain.NewTransaction(accountID, currency, mustDecimal(t, amount), domain.TransactionTypeDeposit))
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func TestWithin_CommitAssignsIDs(t *testing.T) {
	ledger, err := NewMutexLedger(testAccounts(), nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}

	deposit(t, ledger, 1, "USD", "100")
	deposit(t, ledger, 1, "USD", "50")

	trans, err := ledger.ListTransactions(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(trans) != 2 {
		t.Fatalf("transactions = %d, want 2", len(trans))
	}
	if trans[0].ID != 1 || trans[1].ID != 2 {
		t.Errorf("transaction IDs = %d, %d, want 1, 2", trans[0].ID, trans[1].ID)
	}

	balances, _ := ledger.ListBalances(context.Background(), 1)
	if len(balances) != 1 || !balances[0].Amount.Equal(mustDecimal(t, "150")) {
		t.Errorf("balances = %v, want one USD balance of 150", balances)
	}
	if balances[0].ID == 0 {
		t.Error("balance ID not assigned")
	}
}

func TestWithin_RollbackOnError(t *testing.T) {
	ledger, err := NewMutexLedger(testAccounts(), nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	deposit(t, ledger, 1, "USD", "100")

	boom := errors.New("boom")
	err = ledger.Within(context.Background(), 1, func(tx usecase.LedgerTx) error {
		balance, _ := tx.GetBalance(1, "USD")
		balance.Add(mustDecimal(t, "999"))
		if err := tx.UpsertBalance(balance); err != nil {
			return err
		}
		if err := tx.AppendTransaction(
			domain.NewTransaction(1, "USD", mustDecimal(t, "999"), domain.TransactionTypeDeposit)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	balances, _ := ledger.ListBalances(context.Background(), 1)
	if !balances[0].Amount.Equal(mustDecimal(t, "100")) {
		t.Errorf("balance = %s, want 100 (staged writes must be discarded)", balances[0].Amount)
	}
	trans, _ := ledger.ListTransactions(context.Background(), 1)
	if len(trans) != 1 {
		t.Errorf("transactions = %d, want 1", len(trans))
	}
}

func TestWithin_AccountNotFound(t *testing.T) {
	ledger, err := NewMutexLedger(testAccounts(), nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}

	err = ledger.Within(context.Background(), 99, func(tx usecase.LedgerTx) error {
		t.Error("fn must not run for a missing account")
		return nil
	})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

// GetOrCreateBalance 建立的零餘額在同一範圍內的後續讀取必須看得到
func TestMemTx_StagedVisibility(t *testing.T) {
	ledger, err := NewMutexLedger(testAccounts(), nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}

	err = ledger.Within(context.Background(), 1, func(tx usecase.LedgerTx) error {
		created, err := tx.GetOrCreateBalance(1, "EUR")
		if err != nil {
			return err
		}
		if !created.Amount.IsZero() {
			t.Errorf("created balance = %s, want 0", created.Amount)
		}

		again, err := tx.GetBalance(1, "EUR")
		if err != nil {
			return err
		}
		if again == nil {
			t.Fatal("staged balance not visible inside same scope")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Within: %v", err)
	}
}

func TestGetBalance_MissingReturnsNilNil(t *testing.T) {
	ledger, err := NewMutexLedger(testAccounts(), nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}

	err = ledger.Within(context.Background(), 1, func(tx usecase.LedgerTx) error {
		b, err := tx.GetBalance(1, "JPY")
		if err != nil {
			t.Errorf("GetBalance err = %v, want nil", err)
		}
		if b != nil {
			t.Errorf("balance = %v, want nil", b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Within: %v", err)
	}
}

// 讀取回傳副本，呼叫端修改不得汙染帳本
func TestReadsReturnCopies(t *testing.T) {
	ledger, err := NewMutexLedger(testAccounts(), nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	deposit(t, ledger, 1, "USD", "100")

	balances, _ := ledger.ListBalances(context.Background(), 1)
	balances[0].Amount = mustDecimal(t, "999999")

	fresh, _ := ledger.ListBalances(context.Background(), 1)
	if !fresh[0].Amount.Equal(mustDecimal(t, "100")) {
		t.Errorf("ledger state mutated through returned copy: %s", fresh[0].Amount)
	}
}

// WAL 重放: 重開後餘額、交易與 ID 序列都要接得上
func TestWALRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")

	walLog, err := wal.NewWAL(path)
	if err != nil {
		t.Fatalf("NewWAL: %v", err)
	}
	ledger, err := NewMutexLedger(testAccounts(), walLog)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	deposit(t, ledger, 1, "USD", "100")
	deposit(t, ledger, 1, "EUR", "45")
	if err := walLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := wal.NewWAL(path)
	if err != nil {
		t.Fatalf("NewWAL (reopen): %v", err)
	}
	defer reopened.Close()
	recovered, err := NewMutexLedger(testAccounts(), reopened)
	if err != nil {
		t.Fatalf("NewMutexLedger (recover): %v", err)
	}

	balances, err := recovered.ListBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListBalances: %v", err)
	}
	byCurrency := make(map[string]decimal.Decimal)
	for _, b := range balances {
		byCurrency[b.Currency] = b.Amount
	}
	if !byCurrency["USD"].Equal(mustDecimal(t, "100")) || !byCurrency["EUR"].Equal(mustDecimal(t, "45")) {
		t.Errorf("recovered balances = %v, want USD 100 / EUR 45", byCurrency)
	}

	trans, _ := recovered.ListTransactions(context.Background(), 1)
	if len(trans) != 2 {
		t.Fatalf("recovered transactions = %d, want 2", len(trans))
	}

	// ID 序列接續: 下一筆交易 ID 必須是 3
	deposit(t, recovered, 1, "USD", "1")
	trans, _ = recovered.ListTransactions(context.Background(), 1)
	if trans[2].ID != 3 {
		t.Errorf("next transaction ID = %d, want 3", trans[2].ID)
	}
}
