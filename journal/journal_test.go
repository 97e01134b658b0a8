package journal

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "journal.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	w.RecordSent(1, []byte{0x01, 0x02})
	w.RecordReceived(2, "peer-a", []byte{0x03})
	w.RecordSent(3, nil)
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}

	if entries[0].Tick != 1 || entries[0].Direction != DirSent {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if !bytes.Equal(entries[0].Data, []byte{0x01, 0x02}) {
		t.Errorf("entry 0 data = %v", entries[0].Data)
	}
	if entries[1].Direction != DirReceived || entries[1].Source != "peer-a" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].Tick != 3 || len(entries[2].Data) != 0 {
		t.Errorf("entry 2 = %+v", entries[2])
	}
}

func TestWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// 閉じた後の記録は黙って捨てられる
	w.RecordSent(9, []byte{1})

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}
