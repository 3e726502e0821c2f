package activitylog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "activity")

	entries := []map[string]any{
		{"event": "craft_started", "entity_id": float64(101)},
		{"event": "craft_collected", "entity_id": float64(101)},
	}
	for _, e := range entries {
		if err := w.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %d, want one hourly file", len(files))
	}
	name := files[0].Name()
	if !strings.HasPrefix(name, "activity-") || !strings.HasSuffix(name, ".jsonl.zst") {
		t.Fatalf("file name = %q", name)
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var got []map[string]any
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var e map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("entries = %d, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i]["event"] != entries[i]["event"] || got[i]["entity_id"] != entries[i]["entity_id"] {
			t.Fatalf("entry %d = %v, want %v", i, got[i], entries[i])
		}
	}
}

func TestCloseWithoutWrites(t *testing.T) {
	w := NewWriter(t.TempDir(), "activity")
	if err := w.Close(); err != nil {
		t.Fatalf("Close on empty writer: %v", err)
	}
}

func TestWriteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	w := NewWriter(dir, "activity")
	if err := w.Write(map[string]any{"event": "craft_ready"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}
