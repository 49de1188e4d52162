package log

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sugawarayuuta/sonnet"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	var out []string
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "searches")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	first := readLines(t, filepath.Join(dir, "searches-2026-03-01-10.jsonl.zst"))
	second := readLines(t, filepath.Join(dir, "searches-2026-03-01-11.jsonl.zst"))
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("line counts: got %d/%d want 2/1", len(first), len(second))
	}
	var v map[string]int
	if err := sonnet.Unmarshal([]byte(second[0]), &v); err != nil || v["n"] != 3 {
		t.Fatalf("line mismatch: %q err=%v", second[0], err)
	}
}

func TestSearchLogger_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewSearchLogger(dir)
	e := SearchEntry{At: time.Now().UTC(), Player: "p", Kind: "type", Query: "DIAMOND", Direction: "TO_BUY", Results: 2}
	if err := l.WriteSearch(e); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "searches", "searches-*.jsonl.zst"))
	if len(matches) != 1 {
		t.Fatalf("files: got %v", matches)
	}
	lines := readLines(t, matches[0])
	var got SearchEntry
	if err := sonnet.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Query != "DIAMOND" || got.Results != 2 {
		t.Fatalf("entry mismatch: %+v", got)
	}
}

func TestReadAll_HourOrder(t *testing.T) {
	dir := t.TempDir()
	l := NewTeleportLogger(dir)
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	l.w.now = func() time.Time { return now }
	for i, via := range []string{"safe", "warp", "shop"} {
		if i == 2 {
			now = now.Add(time.Hour)
		}
		if err := l.WriteTeleport(TeleportEntry{At: now, ShopID: int64(i + 1), Via: via}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []string
	err := ReadAll(TeleportDir(dir), "teleports", func(e TeleportEntry) error {
		got = append(got, e.Via)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 || got[0] != "safe" || got[2] != "shop" {
		t.Fatalf("order: got %v", got)
	}
	if err := ReadAll(SearchDir(dir), "searches", func(SearchEntry) error { return nil }); !os.IsNotExist(err) {
		t.Fatalf("missing dir: got %v want not-exist", err)
	}
}
