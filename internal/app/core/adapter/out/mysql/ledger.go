package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-fx-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        int64  `gorm:"primaryKey"`
	Number    string `gorm:"size:32;uniqueIndex"`
	Owner     string `gorm:"size:64;index"`
	CreatedAt time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlBalance 對應資料庫的 balances 表
// (account_id, currency) 複合唯一索引，保證每幣別至多一列
type sqlBalance struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	AccountID int64           `gorm:"uniqueIndex:idx_account_currency"`
	Currency  string          `gorm:"size:3;uniqueIndex:idx_account_currency"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	UpdatedAt int64           `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlBalance) TableName() string {
	return "balances"
}

// sqlTransaction 對應資料庫的 transactions 表 (Append-only)
type sqlTransaction struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	RefID     []byte          `gorm:"column:ref_id;type:binary(16);uniqueIndex"` // 對應 domain.Transaction.RefID
	AccountID int64           `gorm:"index"`
	Currency  string          `gorm:"size:3"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Type      string          `gorm:"size:8"`
	CreatedAt time.Time       // 引擎落帳時間，不用 autoCreateTime
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// MySQLLedger 以 MySQL 為後端的帳本儲存 (Level 0)
// 單帳戶原子性靠資料庫交易 + 帳戶列悲觀鎖
type MySQLLedger struct {
	client *mysql.Client
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
	}
}

// Migrate 建立資料表 (本地開發用，正式環境由 DBA 管理 Schema)
func (ledger *MySQLLedger) Migrate() error {
	return ledger.client.DB().AutoMigrate(&sqlAccount{}, &sqlBalance{}, &sqlTransaction{})
}

// GetAccount 取得帳戶
func (ledger *MySQLLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var account sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(&account), nil
}

// ListBalances 取得帳戶所有幣別餘額
func (ledger *MySQLLedger) ListBalances(ctx context.Context, accountID int64) ([]*domain.Balance, error) {
	var rows []sqlBalance
	err := ledger.client.DB().WithContext(ctx).
		Where("account_id = ?", accountID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]*domain.Balance, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainBalance(&rows[i]))
	}
	return result, nil
}

// Within 在單一帳戶的原子範圍內執行 fn
// 先以 SELECT ... FOR UPDATE 鎖定帳戶列，同帳戶的並發異動在此序列化，
// fn 成功才 Commit，否則整批 Rollback
func (ledger *MySQLLedger) Within(ctx context.Context, accountID int64, fn func(tx usecase.LedgerTx) error) error {
	return ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", accountID).
			First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return err
		}
		return fn(&mysqlTx{tx: tx})
	})
}

// LoadAllAccounts 載入所有帳戶 (Level 1 記憶體帳本啟動時使用)
func (ledger *MySQLLedger) LoadAllAccounts(ctx context.Context) (map[int64]*domain.Account, error) {
	var rows []sqlAccount
	if err := ledger.client.DB().WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make(map[int64]*domain.Account, len(rows))
	for i := range rows {
		accounts[rows[i].ID] = toDomainAccount(&rows[i])
	}
	return accounts, nil
}

// CreateAccount 開戶 (本地 seed 用，線上開戶走外部系統)
func (ledger *MySQLLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	row := sqlAccount{
		ID:        account.ID,
		Number:    account.Number,
		Owner:     account.Owner,
		CreatedAt: account.CreatedAt,
	}
	err := ledger.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return err
	}
	account.ID = row.ID
	return nil
}

// mysqlTx 是 Within 範圍內的讀寫操作，持有進行中的 gorm 交易
// 帳戶列已被鎖定，餘額讀取不需再加列鎖
type mysqlTx struct {
	tx *gorm.DB
}

func (t *mysqlTx) GetBalance(accountID int64, currency string) (*domain.Balance, error) {
	var row sqlBalance
	err := t.tx.Where("account_id = ? AND currency = ?", accountID, currency).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainBalance(&row), nil
}

func (t *mysqlTx) GetOrCreateBalance(accountID int64, currency string) (*domain.Balance, error) {
	var row sqlBalance
	err := t.tx.Where(sqlBalance{AccountID: accountID, Currency: currency}).
		Attrs(sqlBalance{Amount: decimal.Zero}).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, err
	}
	return toDomainBalance(&row), nil
}

func (t *mysqlTx) UpsertBalance(balance *domain.Balance) error {
	row := sqlBalance{
		ID:        balance.ID,
		AccountID: balance.AccountID,
		Currency:  balance.Currency,
		Amount:    balance.Amount,
	}
	if err := t.tx.Save(&row).Error; err != nil {
		return err
	}
	balance.ID = row.ID
	return nil
}

func (t *mysqlTx) AppendTransaction(tran *domain.Transaction) error {
	row := sqlTransaction{
		RefID:     tran.RefID[:],
		AccountID: tran.AccountID,
		Currency:  tran.Currency,
		Amount:    tran.Amount,
		Type:      tran.Type.String(),
		CreatedAt: tran.CreatedAt,
	}
	if err := t.tx.Create(&row).Error; err != nil {
		return err
	}
	tran.ID = row.ID
	return nil
}

func toDomainAccount(row *sqlAccount) *domain.Account {
	return &domain.Account{
		ID:        row.ID,
		Number:    row.Number,
		Owner:     row.Owner,
		CreatedAt: row.CreatedAt,
	}
}

func toDomainBalance(row *sqlBalance) *domain.Balance {
	return &domain.Balance{
		ID:        row.ID,
		AccountID: row.AccountID,
		Currency:  row.Currency,
		Amount:    row.Amount,
	}
}

// toDomainTransaction 資料庫列轉回 domain (查詢歷史時使用)
func toDomainTransaction(row *sqlTransaction) *domain.Transaction {
	tran := &domain.Transaction{
		ID:        row.ID,
		AccountID: row.AccountID,
		Currency:  row.Currency,
		Amount:    row.Amount,
		CreatedAt: row.CreatedAt,
		Type:      domain.ParseTransactionType(row.Type),
	}
	copy(tran.RefID[:], row.RefID)
	return tran
}

// ListTransactions 取得帳戶交易紀錄 (依落帳順序)
func (ledger *MySQLLedger) ListTransactions(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	var rows []sqlTransaction
	err := ledger.client.DB().WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainTransaction(&rows[i]))
	}
	return result, nil
}

var _ usecase.LedgerStore = (*MySQLLedger)(nil)
