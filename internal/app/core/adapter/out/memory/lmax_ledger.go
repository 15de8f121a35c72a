package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-fx-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-fx-ledger/pkg/wal"
)

// lmaxCmd 指令包裝 channel，讓呼叫端可以等待結果
type lmaxCmd struct {
	run    func() error
	result chan error // 讓呼叫端等這個 channel
}

// LMAXLedger 是單一寫入者模型的帳本儲存 (Level 2)
//
// 所有異動與讀取都包成指令送進輸送帶，由唯一的核心迴圈依序執行，
// 狀態完全由迴圈持有，不需要任何鎖；
// 每筆指令依序落地，天然滿足單帳戶原子性
//
// 使用前必須先呼叫 Start 啟動核心迴圈
type LMAXLedger struct {
	// 帳戶資料啟動後唯讀，可以不經迴圈直接查
	accounts     map[int64]*domain.Account
	balances     map[int64]map[string]*domain.Balance
	transactions map[int64][]*domain.Transaction
	// 已落地交易的 RefID，WAL 重複重放時跳過
	processedRefs map[uuid.UUID]bool

	nextBalanceID int64
	nextTranID    int64

	// Write-Ahead Logging
	wal *wal.WAL

	// 輸送帶 負責接收指令
	commands chan *lmaxCmd
	// Pool 減少 GC 壓力
	cmdPool sync.Pool
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例
//
// 參數:
//
//	accounts: 初始帳戶資料 Map
//	walLog: Write-Ahead Log 實例 (傳 nil 表示不落地)
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewLMAXLedger(accounts map[int64]*domain.Account, walLog *wal.WAL) (*LMAXLedger, error) {
	ledger := &LMAXLedger{
		accounts:      accounts,
		balances:      make(map[int64]map[string]*domain.Balance),
		transactions:  make(map[int64][]*domain.Transaction),
		processedRefs: make(map[uuid.UUID]bool),
		wal:           walLog,
		commands:      make(chan *lmaxCmd, 1000), // Buffer 1000
		cmdPool: sync.Pool{
			New: func() interface{} {
				return &lmaxCmd{
					result: make(chan error, 1),
				}
			},
		},
	}

	// 在啟動前先恢復資料
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 在 NewLMAXLedger 裡跑，單執行緒，不經過 Channel
func (l *LMAXLedger) recoverFromWAL() error {
	if l.wal == nil {
		return nil
	}
	return l.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		l.applyRecord(&rec)
		return nil
	})
}

// applyRecord 套用單筆批次紀錄至記憶體 (不寫入 WAL)
// 只在核心迴圈或啟動恢復時呼叫；重複出現的 RefID 跳過不重算
func (l *LMAXLedger) applyRecord(rec *walRecord) {
	byCurrency, ok := l.balances[rec.AccountID]
	if !ok {
		byCurrency = make(map[string]*domain.Balance)
		l.balances[rec.AccountID] = byCurrency
	}
	for _, b := range rec.Balances {
		byCurrency[b.Currency] = b
		if b.ID > l.nextBalanceID {
			l.nextBalanceID = b.ID
		}
	}
	for _, t := range rec.Transactions {
		if l.processedRefs[t.RefID] {
			continue
		}
		l.processedRefs[t.RefID] = true
		l.transactions[rec.AccountID] = append(l.transactions[rec.AccountID], t)
		if t.ID > l.nextTranID {
			l.nextTranID = t.ID
		}
	}
}

// Start 啟動核心迴圈 (非同步)
// ctx 取消時把輸送帶上剩下的指令處理完再退出
func (l *LMAXLedger) Start(ctx context.Context) {
	go l.run(ctx)
}

func (l *LMAXLedger) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的指令處理完
			l.drain()
			return
		case cmd := <-l.commands:
			cmd.result <- cmd.run()
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case cmd := <-l.commands:
			cmd.result <- cmd.run()
		default:
			return
		}
	}
}

// do 把 fn 送進輸送帶並等待核心迴圈執行完畢
//
// fn(送出並等待) -> Channel -> Run Loop (核心) -> Result Channel -> do(收到結果)
func (l *LMAXLedger) do(ctx context.Context, fn func() error) error {
	cmd := l.cmdPool.Get().(*lmaxCmd)
	cmd.run = fn

	select {
	case l.commands <- cmd:
	case <-ctx.Done():
		cmd.run = nil
		l.cmdPool.Put(cmd)
		return ctx.Err()
	}

	err := <-cmd.result
	cmd.run = nil
	l.cmdPool.Put(cmd)
	return err
}

// GetAccount 取得指定帳戶
// accounts 啟動後唯讀，直接查不需經過核心迴圈
func (l *LMAXLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, ok := l.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// ListBalances 取得帳戶所有幣別的餘額副本
// 餘額由核心迴圈持有，讀取也走指令避免資料競爭
func (l *LMAXLedger) ListBalances(ctx context.Context, accountID int64) ([]*domain.Balance, error) {
	var result []*domain.Balance
	err := l.do(ctx, func() error {
		if _, ok := l.accounts[accountID]; !ok {
			return domain.ErrAccountNotFound
		}
		byCurrency := l.balances[accountID]
		result = make([]*domain.Balance, 0, len(byCurrency))
		for _, b := range byCurrency {
			copied := *b
			result = append(result, &copied)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListTransactions 取得帳戶交易紀錄副本 (依寫入順序)
func (l *LMAXLedger) ListTransactions(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	var result []*domain.Transaction
	err := l.do(ctx, func() error {
		if _, ok := l.accounts[accountID]; !ok {
			return domain.ErrAccountNotFound
		}
		trans := l.transactions[accountID]
		result = make([]*domain.Transaction, 0, len(trans))
		for _, t := range trans {
			copied := *t
			result = append(result, &copied)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Within 在單一帳戶的原子範圍內執行 fn (Level 2: 單一寫入者)
//
// 整個 fn 連同 commit 在核心迴圈內執行，
// 異動先暫存，fn 回傳錯誤時整批丟棄；成功時先寫 WAL 再套用
func (l *LMAXLedger) Within(ctx context.Context, accountID int64, fn func(tx usecase.LedgerTx) error) error {
	return l.do(ctx, func() error {
		if _, ok := l.accounts[accountID]; !ok {
			return domain.ErrAccountNotFound
		}
		tx := &memTx{base: l.balances, accountID: accountID, staged: make(map[string]*domain.Balance)}
		if err := fn(tx); err != nil {
			return err
		}
		return l.commit(tx)
	})
}

// commit 將暫存異動批次落地 (只在核心迴圈內呼叫)
// 1. 分配 ID 2. 寫 WAL (Critical Path) 3. 套用至記憶體
func (l *LMAXLedger) commit(tx *memTx) error {
	if len(tx.staged) == 0 && len(tx.trans) == 0 {
		return nil
	}

	rec := &walRecord{AccountID: tx.accountID}
	for _, b := range tx.staged {
		if b.ID == 0 {
			l.nextBalanceID++
			b.ID = l.nextBalanceID
		}
		rec.Balances = append(rec.Balances, b)
	}
	for _, t := range tx.trans {
		l.nextTranID++
		t.ID = l.nextTranID
		rec.Transactions = append(rec.Transactions, t)
	}

	if l.wal != nil {
		// 寫入並刷入硬碟，成功後才允許更新記憶體
		if err := l.wal.Write(rec); err != nil {
			return domain.ErrWALWriteFailed
		}
	}

	l.applyRecord(rec)
	return nil
}

var _ usecase.LedgerStore = (*LMAXLedger)(nil)
