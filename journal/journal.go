// Package journal はセッション中に送受信した生メッセージを
// zstd圧縮のJSONLファイルへ記録します。障害解析とリプレイ用です。
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Direction はメッセージの向きです。
type Direction string

const (
	DirSent     Direction = "sent"
	DirReceived Direction = "received"
)

// Entry は記録される1メッセージ分のエントリです。
// DataはワイヤバイトのままBase64で保存されます。
type Entry struct {
	Tick      uint64    `json:"tick"`
	Direction Direction `json:"dir"`
	Source    string    `json:"source,omitempty"`
	Data      []byte    `json:"data"`
}

// Writer はセッションジャーナルの書き込み側です。
// netphys.Recorderを実装します。並行呼び出しに安全です。
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewWriter はpathにジャーナルファイルを作成します。
// 親ディレクトリがなければ作ります。
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

func (w *Writer) RecordSent(tick uint64, data []byte) {
	_ = w.write(Entry{Tick: tick, Direction: DirSent, Data: data})
}

func (w *Writer) RecordReceived(tick uint64, source string, data []byte) {
	_ = w.write(Entry{Tick: tick, Direction: DirReceived, Source: source, Data: data})
}

func (w *Writer) write(e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return errors.New("journal already closed")
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close はバッファとエンコーダを順に閉じます。
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	return err1
}

// ReadAll はジャーナルファイルの全エントリを読み出します。
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var entries []Entry
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return entries, nil
}
