package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀)
	FileModeReadOnly fs.FileMode = 0644

	// rwxr-xr-x 目錄用
	FileModeDir fs.FileMode = 0755
)

// WAL 以 JSON Lines 格式 append 的 Write-Ahead Log
type WAL struct {
	file    *os.File
	mu      sync.Mutex
	entries int
}

// NewWAL 開啟或建立一個 WAL 檔案，必要時建立上層目錄
// O_APPEND 每次寫入時自動跳到文件末尾
func NewWAL(path string) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, FileModeDir); err != nil {
			return nil, fmt.Errorf("create wal dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆資料並刷入硬碟，回傳時資料已落地
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.entries++
	return nil
}

// Entries 本次開啟後寫入 + 讀取的筆數
func (w *WAL) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 依序讀取所有資料
// callback 接收一筆 JSON，避免一次將所有資料載入記憶體。
// 最後一筆若寫到一半 (程式在寫入中途中止) 會被截掉，之後的寫入接在最後一筆完整資料後面。
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return w.file.Truncate(good)
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
		good = decoder.InputOffset()
		w.entries++
	}
}
