package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
	"shopscout.ai/internal/finder"
	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/protocol"
	"shopscout.ai/internal/search"
)

// Finder is the part of finder.Service the endpoint drives.
type Finder interface {
	Settings() config.Settings
	Search(ctx context.Context, player uuid.UUID, text string, dir search.Direction) ([]search.Result, error)
	Listing(results []search.Result) []finder.Entry
	ViewAll(ctx context.Context, player uuid.UUID, dir search.Direction) ([]finder.Entry, error)
	Teleport(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) (finder.Teleport, error)
	Hide(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) error
	Unhide(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) error
	HideAll(ctx context.Context, player uuid.UUID) (int, error)
	UnhideAll(player uuid.UUID) int
	PlayerSeen(ctx context.Context, player uuid.UUID, name string) error
}

type Server struct {
	finder    Finder
	validator *protocol.Validator
	digests   protocol.CatalogDigests
	log       *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	conns    map[uuid.UUID]int // open connections per player
}

func NewServer(f Finder, v *protocol.Validator, cats *catalogs.Catalogs, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		finder:    f,
		validator: v,
		log:       logger.WithPrefix("ws"),
		limiters:  map[uuid.UUID]*rate.Limiter{},
		conns:     map[uuid.UUID]int{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	if cats != nil {
		s.digests = protocol.CatalogDigests{
			Blocks: protocol.DigestRef{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
			Items:  protocol.DigestRef{Digest: cats.Items.PaletteDigest, Count: len(cats.Items.Palette)},
		}
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		player, out := s.handshake(r.Context(), conn)
		if player == uuid.Nil {
			return
		}
		s.join(player)
		defer s.leave(player)
		s.log.Info("player connected", "player", player, "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handle(ctx, player, msg)
			b, err := protocol.Encode(resp)
			if err != nil {
				s.log.Error("encode response", "err", err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		s.log.Info("player disconnected", "player", player)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (uuid.UUID, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return uuid.Nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return uuid.Nil, nil
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return uuid.Nil, nil
	}
	if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
		closeWith(conn, "bad HELLO")
		return uuid.Nil, nil
	}
	var hello protocol.HelloMsg
	if err := protocol.Decode(msg, &hello); err != nil {
		return uuid.Nil, nil
	}
	player, err := uuid.Parse(hello.Player)
	if err != nil || player == uuid.Nil {
		closeWith(conn, "bad player")
		return uuid.Nil, nil
	}
	if name := strings.TrimSpace(hello.Name); name != "" {
		if err := s.finder.PlayerSeen(ctx, player, name); err != nil {
			s.log.Warn("recording player name failed", "player", player, "err", err)
		}
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}

	st := s.finder.Settings()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Player:          player.String(),
		Params: protocol.FinderParams{
			MinQueryLength:   st.Search.MinQueryLength,
			CostToSearch:     st.Teleport.CostToSearch,
			SortingMethod:    st.Search.SortingMethod,
			SafeLocationMode: st.Teleport.SafeLocationMode,
			WarpsEnabled:     st.Warps.Enabled,
		},
		Catalogs: s.digests,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return uuid.Nil, nil
	}
	return player, make(chan []byte, maxQ)
}

func (s *Server) join(player uuid.UUID) {
	s.mu.Lock()
	s.conns[player]++
	s.mu.Unlock()
}

// leave drops player's limiter once their last connection closes.
func (s *Server) leave(player uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[player]--; s.conns[player] > 0 {
		return
	}
	delete(s.conns, player)
	delete(s.limiters, player)
}

// limiter returns the search limiter shared by all of player's connections.
func (s *Server) limiter(player uuid.UUID, st config.ServerSettings) *rate.Limiter {
	limit := rate.Inf
	if st.SearchRatePerSec > 0 {
		limit = rate.Limit(st.SearchRatePerSec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[player]
	if !ok {
		l = rate.NewLimiter(limit, st.SearchBurst)
		s.limiters[player] = l
		return l
	}
	if l.Limit() != limit {
		l.SetLimit(limit)
	}
	if l.Burst() != st.SearchBurst {
		l.SetBurst(st.SearchBurst)
	}
	return l
}

func (s *Server) handle(ctx context.Context, player uuid.UUID, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError(base.ID, protocol.ErrProtoVersion, "unsupported protocol_version")
	}
	if err := s.validator.Validate(base.Type, msg); err != nil {
		return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, err.Error())
	}

	switch base.Type {
	case protocol.TypeSearch:
		var m protocol.SearchMsg
		if err := protocol.Decode(msg, &m); err != nil {
			return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, err.Error())
		}
		dir, _ := search.ParseDirection(m.Direction)
		if !s.limiter(player, s.finder.Settings().Server).Allow() {
			return protocol.NewError(m.ID, protocol.ErrRateLimit, "searching too fast")
		}
		res, err := s.finder.Search(ctx, player, m.Query, dir)
		if err != nil {
			return s.errorFor(m.ID, err)
		}
		return resultsMsg(m.ID, m.Query, dir, s.finder.Listing(res))

	case protocol.TypeViewAll:
		var m protocol.ViewAllMsg
		if err := protocol.Decode(msg, &m); err != nil {
			return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, err.Error())
		}
		dir, _ := search.ParseDirection(m.Direction)
		if !s.limiter(player, s.finder.Settings().Server).Allow() {
			return protocol.NewError(m.ID, protocol.ErrRateLimit, "searching too fast")
		}
		entries, err := s.finder.ViewAll(ctx, player, dir)
		if err != nil {
			return s.errorFor(m.ID, err)
		}
		return resultsMsg(m.ID, "", dir, entries)

	case protocol.TypeTeleport, protocol.TypeHide, protocol.TypeUnhide:
		var m protocol.ShopRefMsg
		if err := protocol.Decode(msg, &m); err != nil {
			return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, err.Error())
		}
		pos := geom.Vec3i{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}
		switch m.Type {
		case protocol.TypeTeleport:
			tp, err := s.finder.Teleport(ctx, player, m.World, pos)
			if err != nil {
				return s.errorFor(m.ID, err)
			}
			return teleportedMsg(m.ID, tp)
		case protocol.TypeHide:
			err = s.finder.Hide(ctx, player, m.World, pos)
		default:
			err = s.finder.Unhide(ctx, player, m.World, pos)
		}
		if err != nil {
			return s.errorFor(m.ID, err)
		}
		return ack(m.ID, 1)

	case protocol.TypeHideAll:
		n, err := s.finder.HideAll(ctx, player)
		if err != nil {
			return s.errorFor(base.ID, err)
		}
		return ack(base.ID, n)

	case protocol.TypeUnhideAll:
		return ack(base.ID, s.finder.UnhideAll(player))
	}
	return protocol.NewError(base.ID, protocol.ErrProtoBadRequest, "unexpected message type")
}

func (s *Server) errorFor(id string, err error) protocol.ErrorMsg {
	switch {
	case errors.Is(err, finder.ErrQueryTooShort):
		return protocol.NewError(id, protocol.ErrQueryTooShort, err.Error())
	case errors.Is(err, finder.ErrNotAShop):
		return protocol.NewError(id, protocol.ErrNotAShop, err.Error())
	case errors.Is(err, finder.ErrNotOwner):
		return protocol.NewError(id, protocol.ErrNoPermission, err.Error())
	case errors.Is(err, finder.ErrInsufficientFunds):
		return protocol.NewError(id, protocol.ErrNoFunds, err.Error())
	case errors.Is(err, finder.ErrWarpBanned):
		return protocol.NewError(id, protocol.ErrWarpBanned, err.Error())
	case errors.Is(err, finder.ErrResultNotFound):
		return protocol.NewError(id, protocol.ErrNotFound, err.Error())
	case errors.Is(err, search.ErrInvalidQuery):
		return protocol.NewError(id, protocol.ErrBadRequest, err.Error())
	}
	s.log.Error("request failed", "id", id, "err", err)
	return protocol.NewError(id, protocol.ErrInternal, "internal error")
}

func resultsMsg(id, query string, dir search.Direction, entries []finder.Entry) protocol.ResultsMsg {
	out := protocol.ResultsMsg{
		Type:            protocol.TypeResults,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Query:           query,
		Direction:       dir.String(),
		Entries:         make([]protocol.ResultEntry, 0, len(entries)),
	}
	for _, e := range entries {
		b := e.Location.Block()
		out.Entries = append(out.Entries, protocol.ResultEntry{
			ShopID:    e.ShopID,
			Item:      e.Item.Type,
			Name:      e.Name,
			Price:     e.Price,
			Remaining: e.Remaining,
			Unlimited: e.Unlimited(),
			Owner:     e.Owner.String(),
			OwnerName: e.OwnerName,
			World:     e.Location.World,
			Pos:       [3]int{b.X, b.Y, b.Z},
			Warp:      e.Warp,
			Lore:      e.Lore,
		})
	}
	return out
}

func teleportedMsg(id string, tp finder.Teleport) protocol.TeleportedMsg {
	d := tp.Destination
	return protocol.TeleportedMsg{
		Type:            protocol.TypeTeleported,
		ProtocolVersion: protocol.Version,
		ID:              id,
		ShopID:          tp.ShopID,
		Via:             tp.Via,
		Warp:            tp.Warp,
		Cost:            tp.Cost,
		Destination:     protocol.Destination{World: d.World, X: d.X, Y: d.Y, Z: d.Z, Yaw: d.Yaw, Pitch: d.Pitch},
	}
}

func ack(id string, n int) protocol.AckMsg {
	return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: id, Accepted: true, Count: n}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
