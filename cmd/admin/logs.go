package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "shopscout.ai/internal/persistence/log"
)

var errStop = errors.New("stop")

// logsCmd prints entries from the rotated jsonl.zst audit logs.
func logsCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	since := fs.Duration("since", 0, "only entries newer than this (0: all)")
	limit := fs.Int("limit", 0, "stop after this many entries (0: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kind := "searches"
	if fs.NArg() > 0 {
		kind = fs.Arg(0)
	}
	var cutoff time.Time
	if *since > 0 {
		cutoff = time.Now().Add(-*since)
	}
	n := 0
	take := func() error {
		n++
		if *limit > 0 && n >= *limit {
			return errStop
		}
		return nil
	}

	var err error
	switch kind {
	case "searches":
		err = persistlog.ReadAll(persistlog.SearchDir(*dataDir), "searches", func(e persistlog.SearchEntry) error {
			if e.At.Before(cutoff) {
				return nil
			}
			fmt.Fprintf(out, "%s %s %s %q %s results=%d took=%.2fms\n",
				humanize.Time(e.At), e.Player, e.Kind, e.Query, e.Direction, e.Results, e.TookMS)
			return take()
		})
	case "teleports":
		err = persistlog.ReadAll(persistlog.TeleportDir(*dataDir), "teleports", func(e persistlog.TeleportEntry) error {
			if e.At.Before(cutoff) {
				return nil
			}
			fmt.Fprintf(out, "%s %s shop=%d via=%s %s %.1f,%.1f,%.1f cost=%s\n",
				humanize.Time(e.At), e.Player, e.ShopID, e.Via, e.World, e.X, e.Y, e.Z, humanize.CommafWithDigits(e.Cost, 2))
			return take()
		})
	default:
		return fmt.Errorf("unknown log %q (searches, teleports)", kind)
	}
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}
