package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shopscout.ai/internal/protocol"
)

// bot is a scripted player: it searches for each query in turn, optionally
// teleports to the best result, and repeats every -every.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		player   = flag.String("player", "", "player uuid (default: random)")
		name     = flag.String("name", "bot", "player name sent in HELLO")
		queries  = flag.String("queries", "diamond,emerald", "comma separated search queries")
		dir      = flag.String("direction", "TO_BUY", "TO_BUY or TO_SELL")
		teleport = flag.Bool("teleport", false, "teleport to the first result of each search")
		every    = flag.Duration("every", 0, "repeat interval (0: run once)")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stdout, log.Options{Prefix: "bot", ReportTimestamp: true})
	id := strings.TrimSpace(*player)
	if id == "" {
		id = uuid.NewString()
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", "err", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Player:          id,
		Name:            *name,
		MaxQueue:        8,
	}
	if err := send(conn, hello); err != nil {
		logger.Fatal("send HELLO", "err", err)
	}
	var w protocol.WelcomeMsg
	if _, err := read(conn, &w); err != nil {
		logger.Fatal("read WELCOME", "err", err)
	}
	logger.Info("WELCOME", "session", w.SessionID, "min_query", w.Params.MinQueryLength, "cost", w.Params.CostToSearch)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	seq := 0
	for {
		for _, q := range strings.Split(*queries, ",") {
			seq++
			if err := round(conn, logger, seq, strings.TrimSpace(q), *dir, *teleport); err != nil {
				logger.Error("round failed", "err", err)
				return
			}
		}
		if *every <= 0 {
			return
		}
		select {
		case <-stop:
			return
		case <-time.After(*every):
		}
	}
}

func round(conn *websocket.Conn, logger *log.Logger, seq int, query, dir string, teleport bool) error {
	reqID := fmt.Sprintf("s%d", seq)
	err := send(conn, protocol.SearchMsg{
		Type: protocol.TypeSearch, ProtocolVersion: protocol.Version,
		ID: reqID, Query: query, Direction: dir,
	})
	if err != nil {
		return err
	}
	var res protocol.ResultsMsg
	var em protocol.ErrorMsg
	typ, err := read(conn, &res, &em)
	if err != nil {
		return err
	}
	if typ == protocol.TypeError {
		logger.Warn("search refused", "query", query, "code", em.Code, "msg", em.Message)
		return nil
	}
	logger.Info("RESULTS", "query", query, "count", len(res.Entries))
	for i, e := range res.Entries {
		if i == 5 {
			break
		}
		logger.Info(" ", "name", e.Name, "price", e.Price, "remaining", e.Remaining, "world", e.World, "pos", e.Pos, "warp", e.Warp)
	}
	if !teleport || len(res.Entries) == 0 {
		return nil
	}

	first := res.Entries[0]
	err = send(conn, protocol.ShopRefMsg{
		Type: protocol.TypeTeleport, ProtocolVersion: protocol.Version,
		ID: fmt.Sprintf("t%d", seq), World: first.World, Pos: first.Pos,
	})
	if err != nil {
		return err
	}
	var tp protocol.TeleportedMsg
	em = protocol.ErrorMsg{}
	if typ, err = read(conn, &tp, &em); err != nil {
		return err
	}
	if typ == protocol.TypeError {
		logger.Warn("teleport refused", "code", em.Code, "msg", em.Message)
		return nil
	}
	d := tp.Destination
	logger.Info("TELEPORTED", "via", tp.Via, "warp", tp.Warp, "cost", tp.Cost, "to", fmt.Sprintf("%s %.1f,%.1f,%.1f", d.World, d.X, d.Y, d.Z))
	return nil
}

func send(conn *websocket.Conn, v any) error {
	b, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// read decodes the next frame into ok, or into errMsg when it is an ERROR.
func read(conn *websocket.Conn, ok any, errMsg ...*protocol.ErrorMsg) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		return "", err
	}
	if base.Type == protocol.TypeError {
		if len(errMsg) > 0 {
			return base.Type, protocol.Decode(b, errMsg[0])
		}
		var em protocol.ErrorMsg
		_ = protocol.Decode(b, &em)
		return base.Type, fmt.Errorf("%s: %s", em.Code, em.Message)
	}
	return base.Type, protocol.Decode(b, ok)
}
