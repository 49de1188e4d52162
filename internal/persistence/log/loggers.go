// Package log writes hourly-rotated, zstd-compressed JSONL audit files.
package log

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sugawarayuuta/sonnet"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v as one line. The line is flushed into the encoder but the
// zstd frame is only completed on rotation or Close.
func (w *JSONLZstdWriter) Write(v any) error {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

type SearchEntry struct {
	At        time.Time `json:"at"`
	Player    string    `json:"player"`
	Kind      string    `json:"kind"`
	Query     string    `json:"query"`
	Direction string    `json:"direction"`
	Results   int       `json:"results"`
	Scans     int64     `json:"scans"`
	TookMS    float64   `json:"took_ms"`
}

type TeleportEntry struct {
	At     time.Time `json:"at"`
	Player string    `json:"player"`
	ShopID int64     `json:"shop_id"`
	Via    string    `json:"via"`
	World  string    `json:"world"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Z      float64   `json:"z"`
	Warp   string    `json:"warp,omitempty"`
	Cost   float64   `json:"cost"`
}

// SearchLogger writes one entry per served search.
type SearchLogger struct{ w *JSONLZstdWriter }

func NewSearchLogger(dataDir string) *SearchLogger {
	return &SearchLogger{w: NewJSONLZstdWriter(SearchDir(dataDir), "searches")}
}

func (l *SearchLogger) WriteSearch(e SearchEntry) error { return l.w.Write(e) }
func (l *SearchLogger) Close() error                    { return l.w.Close() }

// TeleportLogger writes one entry per completed teleport.
type TeleportLogger struct{ w *JSONLZstdWriter }

func NewTeleportLogger(dataDir string) *TeleportLogger {
	return &TeleportLogger{w: NewJSONLZstdWriter(TeleportDir(dataDir), "teleports")}
}

func (l *TeleportLogger) WriteTeleport(e TeleportEntry) error { return l.w.Write(e) }
func (l *TeleportLogger) Close() error                        { return l.w.Close() }
