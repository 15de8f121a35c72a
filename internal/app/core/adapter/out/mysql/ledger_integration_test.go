//go:build integration

// 需要一個真實的 MySQL:
//
//	MYSQL_TEST_HOST=127.0.0.1 MYSQL_TEST_DB=fx_ledger_test \
//	go test -tags integration ./internal/app/core/adapter/out/mysql/
package mysql

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-fx-ledger/pkg/mysql"
)

func newTestLedger(t *testing.T) *MySQLLedger {
	t.Helper()
	host := os.Getenv("MYSQL_TEST_HOST")
	if host == "" {
		t.Skip("MYSQL_TEST_HOST not set")
	}
	port := 3306
	if p := os.Getenv("MYSQL_TEST_PORT"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("MYSQL_TEST_PORT: %v", err)
		}
		port = parsed
	}

	client, err := mysql.NewClient(mysql.Config{
		Host:            host,
		Port:            port,
		User:            envOr("MYSQL_TEST_USER", "root"),
		Password:        os.Getenv("MYSQL_TEST_PASSWORD"),
		DBName:          envOr("MYSQL_TEST_DB", "fx_ledger_test"),
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		LogLevel:        "silent",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ledger := NewMySQLLedger(client)
	if err := ledger.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// 清掉上一輪的資料
	db := client.DB()
	for _, table := range []string{"transactions", "balances", "accounts"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("cleanup %s: %v", table, err)
		}
	}
	return ledger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMySQLLedger(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	account := &domain.Account{ID: 1, Number: "ACC-0001", Owner: "alice", CreatedAt: time.Now()}
	if err := ledger.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	// 重複開戶是 no-op
	if err := ledger.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount (again): %v", err)
	}

	loaded, err := ledger.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if loaded.Owner != "alice" {
		t.Errorf("owner = %s, want alice", loaded.Owner)
	}
	if _, err := ledger.GetAccount(ctx, 99); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}

	// LoadAllAccounts 餵記憶體帳本的啟動路徑
	accounts, err := ledger.LoadAllAccounts(ctx)
	if err != nil {
		t.Fatalf("LoadAllAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[1].Number != "ACC-0001" {
		t.Errorf("accounts = %v, want one ACC-0001", accounts)
	}

	// 存款: 延遲建立餘額 + 落一筆交易
	err = ledger.Within(ctx, 1, func(tx usecase.LedgerTx) error {
		balance, err := tx.GetOrCreateBalance(1, "USD")
		if err != nil {
			return err
		}
		balance.Add(decimal.RequireFromString("100"))
		if err := tx.UpsertBalance(balance); err != nil {
			return err
		}
		return tx.AppendTransaction(
			domain.NewTransaction(1, "USD", decimal.RequireFromString("100"), domain.TransactionTypeDeposit))
	})
	if err != nil {
		t.Fatalf("Within (deposit): %v", err)
	}

	balances, err := ledger.ListBalances(ctx, 1)
	if err != nil {
		t.Fatalf("ListBalances: %v", err)
	}
	if len(balances) != 1 || !balances[0].Amount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("balances = %v, want one USD balance of 100", balances)
	}

	// 失敗的範圍整批回滾
	boom := errors.New("boom")
	err = ledger.Within(ctx, 1, func(tx usecase.LedgerTx) error {
		balance, err := tx.GetBalance(1, "USD")
		if err != nil {
			return err
		}
		balance.Add(decimal.RequireFromString("999"))
		if err := tx.UpsertBalance(balance); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	balances, _ = ledger.ListBalances(ctx, 1)
	if !balances[0].Amount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("balance = %s, want 100 after rollback", balances[0].Amount)
	}

	// 交易紀錄: RefID 與類型經 binary(16)/字串來回後不變
	trans, err := ledger.ListTransactions(ctx, 1)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(trans) != 1 {
		t.Fatalf("transactions = %d, want 1", len(trans))
	}
	if trans[0].Type != domain.TransactionTypeDeposit || trans[0].Currency != "USD" {
		t.Errorf("transaction = %+v, want DEPOSIT USD", trans[0])
	}
	if trans[0].RefID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("RefID lost through binary(16) round trip")
	}

	if err := ledger.Within(ctx, 99, func(tx usecase.LedgerTx) error { return nil }); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Within err = %v, want ErrAccountNotFound", err)
	}
}
