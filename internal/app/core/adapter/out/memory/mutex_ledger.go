package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-fx-ledger/pkg/wal"
)

// walRecord 一次原子異動的批次紀錄
// 餘額寫快照 (異動後狀態)，交易寫全文；重放時兩者一起套用
type walRecord struct {
	AccountID    int64                 `json:"accountId"`
	Balances     []*domain.Balance     `json:"balances"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// MutexLedger 是一個使用 Mutex 實現的帳本儲存 (Level 1)
//
// 結構:
//
//	accounts: 帳戶資料 Map (開戶由外部系統負責，這裡只讀)
//	balances: 帳戶 ID -> 幣別 -> 餘額
//	transactions: 帳戶 ID -> 交易紀錄 (Append-only)
//	mu: RWMutex 用於保護以上資料
//	wal: Write-Ahead Log 實例
//
// 單一全域鎖讓每次異動天然序列化，滿足單帳戶原子性
type MutexLedger struct {
	accounts     map[int64]*domain.Account
	balances     map[int64]map[string]*domain.Balance
	transactions map[int64][]*domain.Transaction
	mu           sync.RWMutex

	nextBalanceID int64
	nextTranID    int64

	// Write-Ahead Logging
	wal *wal.WAL
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	accounts: 初始帳戶資料 Map
//	walLog: Write-Ahead Log 實例 (傳 nil 表示不落地)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(accounts map[int64]*domain.Account, walLog *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts:     accounts,
		balances:     make(map[int64]map[string]*domain.Balance),
		transactions: make(map[int64][]*domain.Transaction),
		wal:          walLog,
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
//
// 回傳:
//
//	error: 恢復過程錯誤
func (m *MutexLedger) recoverFromWAL() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		m.applyRecord(&rec)
		return nil
	})
}

// applyRecord 套用單筆批次紀錄至記憶體 (不寫入 WAL)
// 只有 NewMutexLedger 與 commit 呼叫，呼叫端已持鎖或單執行緒
func (m *MutexLedger) applyRecord(rec *walRecord) {
	byCurrency, ok := m.balances[rec.AccountID]
	if !ok {
		byCurrency = make(map[string]*domain.Balance)
		m.balances[rec.AccountID] = byCurrency
	}
	for _, b := range rec.Balances {
		byCurrency[b.Currency] = b
		if b.ID > m.nextBalanceID {
			m.nextBalanceID = b.ID
		}
	}
	for _, t := range rec.Transactions {
		m.transactions[rec.AccountID] = append(m.transactions[rec.AccountID], t)
		if t.ID > m.nextTranID {
			m.nextTranID = t.ID
		}
	}
}

// GetAccount 取得指定帳戶
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//
// 回傳:
//
//	*domain.Account: 帳戶副本
//	error: 查詢錯誤 (如帳戶不存在)
func (m *MutexLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// ListBalances 取得帳戶所有幣別的餘額副本
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//
// 回傳:
//
//	[]*domain.Balance: 餘額副本，從未持有過的幣別不會出現
//	error: 查詢錯誤
func (m *MutexLedger) ListBalances(ctx context.Context, accountID int64) ([]*domain.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.accounts[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}
	byCurrency := m.balances[accountID]
	result := make([]*domain.Balance, 0, len(byCurrency))
	for _, b := range byCurrency {
		copied := *b
		result = append(result, &copied)
	}
	return result, nil
}

// ListTransactions 取得帳戶交易紀錄副本 (依寫入順序)
func (m *MutexLedger) ListTransactions(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.accounts[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}
	trans := m.transactions[accountID]
	result := make([]*domain.Transaction, 0, len(trans))
	for _, t := range trans {
		copied := *t
		result = append(result, &copied)
	}
	return result, nil
}

// Within 在單一帳戶的原子範圍內執行 fn (Level 1: Mutex Lock)
//
// fn 內的所有異動先暫存 (staging)，fn 回傳錯誤時整批丟棄；
// 成功時先寫入 WAL 並刷入硬碟，再套用到記憶體，
// 確保餘額異動與交易紀錄同進同退
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	fn: 異動邏輯
//
// 回傳:
//
//	error: 處理錯誤
func (m *MutexLedger) Within(ctx context.Context, accountID int64, fn func(tx usecase.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[accountID]; !ok {
		return domain.ErrAccountNotFound
	}

	tx := &memTx{base: m.balances, accountID: accountID, staged: make(map[string]*domain.Balance)}
	if err := fn(tx); err != nil {
		return err
	}
	return m.commit(tx)
}

// commit 將暫存異動批次落地
// 1. 分配 ID 2. 寫 WAL (Critical Path) 3. 套用至記憶體
func (m *MutexLedger) commit(tx *memTx) error {
	if len(tx.staged) == 0 && len(tx.trans) == 0 {
		return nil
	}

	rec := &walRecord{AccountID: tx.accountID}
	for _, b := range tx.staged {
		if b.ID == 0 {
			m.nextBalanceID++
			b.ID = m.nextBalanceID
		}
		rec.Balances = append(rec.Balances, b)
	}
	for _, t := range tx.trans {
		m.nextTranID++
		t.ID = m.nextTranID
		rec.Transactions = append(rec.Transactions, t)
	}

	if m.wal != nil {
		// 寫入並刷入硬碟，成功後才允許更新記憶體
		if err := m.wal.Write(rec); err != nil {
			return domain.ErrWALWriteFailed
		}
	}

	m.applyRecord(rec)
	return nil
}

// memTx 是 Within 範圍內的暫存異動集
// 讀取一律回傳副本；寫入先進 staged，commit 時才落地
// base 指向所屬儲存的餘額 Map，MutexLedger 與 LMAXLedger 共用
type memTx struct {
	base      map[int64]map[string]*domain.Balance
	accountID int64
	staged    map[string]*domain.Balance
	trans     []*domain.Transaction
}

// GetBalance 取得某幣別餘額，不存在時回傳 (nil, nil)
func (tx *memTx) GetBalance(accountID int64, currency string) (*domain.Balance, error) {
	if b, ok := tx.staged[currency]; ok && accountID == tx.accountID {
		return b, nil
	}
	if b, ok := tx.base[accountID][currency]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

// GetOrCreateBalance 取得或建立零餘額
// 建立的零餘額立即進 staged，同一範圍內的後續讀取看得到
func (tx *memTx) GetOrCreateBalance(accountID int64, currency string) (*domain.Balance, error) {
	b, err := tx.GetBalance(accountID, currency)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	created := domain.NewBalance(accountID, currency)
	tx.staged[currency] = created
	return created, nil
}

// UpsertBalance 寫入餘額 (進 staged)
func (tx *memTx) UpsertBalance(balance *domain.Balance) error {
	tx.staged[balance.Currency] = balance
	return nil
}

// AppendTransaction 追加一筆交易紀錄 (進 staged，ID 在 commit 時分配)
func (tx *memTx) AppendTransaction(tran *domain.Transaction) error {
	tx.trans = append(tx.trans, tran)
	return nil
}

var _ usecase.LedgerStore = (*MutexLedger)(nil)
