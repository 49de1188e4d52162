package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sugawarayuuta/sonnet"
	_ "modernc.org/sqlite"
)

// dbCmd prints recent audit rows straight from the sqlite store. It opens the
// file read-only so it can run next to a live server.
func dbCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("db", flag.ContinueOnError)
	path := fs.String("db", "./data/shops.sqlite", "sqlite store path")
	limit := fs.Int("limit", 20, "result limit")
	player := fs.String("player", "", "player uuid filter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := "searches"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	db, err := sql.Open("sqlite", "file:"+*path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	where, qargs := "", []any{}
	if p := strings.TrimSpace(*player); p != "" {
		where = "WHERE player=?"
		qargs = append(qargs, p)
	}
	qargs = append(qargs, *limit)

	switch q {
	case "searches":
		rows, err := db.QueryContext(ctx, `SELECT at,player,kind,query,direction,results,took_us FROM searches `+where+` ORDER BY id DESC LIMIT ?`, qargs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				At        string `json:"at"`
				Player    string `json:"player"`
				Kind      string `json:"kind"`
				Query     string `json:"query"`
				Direction string `json:"direction"`
				Results   int    `json:"results"`
				TookUS    int64  `json:"took_us"`
			}
			if err := rows.Scan(&r.At, &r.Player, &r.Kind, &r.Query, &r.Direction, &r.Results, &r.TookUS); err != nil {
				return err
			}
			if err := printJSON(out, r); err != nil {
				return err
			}
		}
		return rows.Err()

	case "teleports":
		rows, err := db.QueryContext(ctx, `SELECT at,player,shop_id,via,world,x,y,z,COALESCE(warp,''),cost FROM teleports `+where+` ORDER BY id DESC LIMIT ?`, qargs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				At     string  `json:"at"`
				Player string  `json:"player"`
				ShopID int64   `json:"shop_id"`
				Via    string  `json:"via"`
				World  string  `json:"world"`
				X      float64 `json:"x"`
				Y      float64 `json:"y"`
				Z      float64 `json:"z"`
				Warp   string  `json:"warp,omitempty"`
				Cost   float64 `json:"cost"`
			}
			if err := rows.Scan(&r.At, &r.Player, &r.ShopID, &r.Via, &r.World, &r.X, &r.Y, &r.Z, &r.Warp, &r.Cost); err != nil {
				return err
			}
			if err := printJSON(out, r); err != nil {
				return err
			}
		}
		return rows.Err()

	case "top":
		// Most searched keys.
		rows, err := db.QueryContext(ctx, `SELECT query,direction,COUNT(*) AS n FROM searches GROUP BY query,direction ORDER BY n DESC LIMIT ?`, *limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Query     string `json:"query"`
				Direction string `json:"direction"`
				Count     int    `json:"count"`
			}
			if err := rows.Scan(&r.Query, &r.Direction, &r.Count); err != nil {
				return err
			}
			if err := printJSON(out, r); err != nil {
				return err
			}
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query %q (searches, teleports, top)", q)
}

func printJSON(out io.Writer, v any) error {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
