package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/persistence/shopdb"
)

type command func(ctx context.Context, out io.Writer, args []string) error

var commands = map[string]command{
	"world":   worldCmd,
	"blocks":  blocksCmd,
	"shop":    shopCmd,
	"shops":   shopsCmd,
	"balance": balanceCmd,
	"player":  playerCmd,
	"warp":    warpCmd,
	"ban":     banCmd,
	"db":      dbCmd,
	"logs":    logsCmd,
	"state":   stateCmd,
	"reload":  reloadCmd,
	"chunk":   chunkCmd,
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}
	if err := cmd(context.Background(), os.Stdout, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, os.Args[1]+":", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <world|blocks|shop|shops|player|balance|warp|ban|db|logs|state|reload|chunk> [flags]")
}

// storeFlags registers -db and returns a func opening the store it names.
func storeFlags(fs *flag.FlagSet) func() (*shopdb.Store, error) {
	path := fs.String("db", "./data/shops.sqlite", "sqlite store path")
	return func() (*shopdb.Store, error) {
		return shopdb.Open(strings.TrimSpace(*path))
	}
}

// parsePos parses "x,y,z".
func parsePos(s string) (geom.Vec3i, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return geom.Vec3i{}, fmt.Errorf("expected x,y,z")
	}
	var v [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return geom.Vec3i{}, err
		}
		v[i] = n
	}
	return geom.Vec3i{X: v[0], Y: v[1], Z: v[2]}, nil
}

// parseLocation parses "x,y,z" with fractional coordinates allowed.
func parseLocation(world, s string) (geom.Location, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return geom.Location{}, fmt.Errorf("expected x,y,z")
	}
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return geom.Location{}, err
		}
		v[i] = f
	}
	return geom.Location{World: world, X: v[0], Y: v[1], Z: v[2]}, nil
}

func required(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("missing -%s", name)
	}
	return nil
}
