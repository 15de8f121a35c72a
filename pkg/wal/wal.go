package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const fileModeReadOnly fs.FileMode = 0644

// WAL 是一個以 JSON 行為單位的 Write-Ahead Log
// 每筆紀錄代表一次原子異動批次，寫入即刷入硬碟
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, fileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆資料並立即刷入硬碟 (關鍵！)
// 回傳成功即代表資料已持久化，呼叫端才可以更新記憶體狀態
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 依寫入順序讀取所有資料
// callback 接收一筆 JSON 原文，逐筆處理避免一次載入全部
//
// 最後一筆若不完整 (fsync 完成前斷電會留下撕裂的尾巴)，
// 視為未落地：截掉壞尾巴後正常回傳，已完整的紀錄不受影響
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var validTo int64
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var syntaxErr *json.SyntaxError
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &syntaxErr) {
				return w.truncateTail(validTo)
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
		validTo = decoder.InputOffset()
	}
	return nil
}

// truncateTail 丟棄最後一筆完整紀錄之後的所有內容
func (w *WAL) truncateTail(size int64) error {
	if err := w.file.Truncate(size); err != nil {
		return err
	}
	_, err := w.file.Seek(size, io.SeekStart)
	return err
}
