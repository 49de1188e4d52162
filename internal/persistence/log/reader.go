package log

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sugawarayuuta/sonnet"
)

// ReadAll decodes every <prefix>-*.jsonl.zst file under dir in hour order and
// hands each line to fn. fn returning an error stops the read.
func ReadAll[T any](dir, prefix string, fn func(T) error) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := readFile(filepath.Join(dir, name), fn); err != nil {
			return err
		}
	}
	return nil
}

func readFile[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var v T
		if err := sonnet.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}

// SearchDir and TeleportDir are where the loggers write under dataDir.
func SearchDir(dataDir string) string   { return filepath.Join(dataDir, "searches") }
func TeleportDir(dataDir string) string { return filepath.Join(dataDir, "teleports") }
