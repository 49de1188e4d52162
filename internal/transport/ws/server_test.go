package ws

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
	"shopscout.ai/internal/finder"
	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/market"
	"shopscout.ai/internal/protocol"
	"shopscout.ai/internal/search"
)

type fakeFinder struct {
	settings config.Settings
	hidden   map[geom.Vec3i]bool

	mu    sync.Mutex
	names map[uuid.UUID]string
}

func (f *fakeFinder) PlayerSeen(ctx context.Context, player uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.names == nil {
		f.names = map[uuid.UUID]string{}
	}
	f.names[player] = name
	return nil
}

func (f *fakeFinder) nameOf(player uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names[player]
}

func (f *fakeFinder) Settings() config.Settings { return f.settings }

func (f *fakeFinder) Search(ctx context.Context, player uuid.UUID, text string, dir search.Direction) ([]search.Result, error) {
	if len(text) < f.settings.Search.MinQueryLength {
		return nil, finder.ErrQueryTooShort
	}
	return []search.Result{{
		ShopID:    7,
		Price:     3,
		Remaining: search.Unlimited,
		Location:  geom.Location{World: "world", X: 10, Y: 64, Z: -3},
		Item:      market.Item{Type: strings.ToUpper(text)},
		Direction: dir,
	}}, nil
}

func (f *fakeFinder) Listing(results []search.Result) []finder.Entry {
	out := make([]finder.Entry, 0, len(results))
	for _, r := range results {
		out = append(out, finder.Entry{Result: r, Name: r.Item.PlainName(), Lore: []string{"Stock: ∞"}})
	}
	return out
}

func (f *fakeFinder) ViewAll(ctx context.Context, player uuid.UUID, dir search.Direction) ([]finder.Entry, error) {
	return nil, nil
}

func (f *fakeFinder) Teleport(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) (finder.Teleport, error) {
	if pos != (geom.Vec3i{X: 10, Y: 64, Z: -3}) {
		return finder.Teleport{}, finder.ErrResultNotFound
	}
	return finder.Teleport{ShopID: 7, Via: finder.ViaSafe, Destination: geom.Location{World: world, X: 11.5, Y: 64, Z: -2.5, Yaw: 90}}, nil
}

func (f *fakeFinder) Hide(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) error {
	f.hidden[pos] = true
	return nil
}

func (f *fakeFinder) Unhide(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) error {
	return finder.ErrNotOwner
}

func (f *fakeFinder) HideAll(ctx context.Context, player uuid.UUID) (int, error) { return 3, nil }
func (f *fakeFinder) UnhideAll(player uuid.UUID) int                             { return 0 }

func startServer(t *testing.T, mut func(*config.Settings)) (*Server, *fakeFinder, string) {
	t.Helper()
	st := config.Defaults()
	if mut != nil {
		mut(&st)
	}
	st.Normalize()
	f := &fakeFinder{settings: st, hidden: map[geom.Vec3i]bool{}}
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	srv := NewServer(f, v, catalogs.Defaults(), log.New(io.Discard))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, f, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func connect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dial(t *testing.T, mut func(*config.Settings)) (*websocket.Conn, *fakeFinder) {
	t.Helper()
	_, f, url := startServer(t, mut)
	return connect(t, url), f
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn, v any) protocol.BaseMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v != nil {
		if err := protocol.Decode(b, v); err != nil {
			t.Fatalf("decode %s: %v", base.Type, err)
		}
	}
	return base
}

const hello = `{"type":"HELLO","protocol_version":"1.0","player":"0f8fad5b-d9cb-469f-a165-70867728950e"}`

func TestServer_HandshakeAndSearch(t *testing.T) {
	conn, _ := dial(t, nil)
	send(t, conn, hello)
	var w protocol.WelcomeMsg
	if b := recv(t, conn, &w); b.Type != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %s", b.Type)
	}
	if w.Player != "0f8fad5b-d9cb-469f-a165-70867728950e" || w.Params.MinQueryLength != 4 || w.Catalogs.Items.Count == 0 {
		t.Fatalf("welcome mismatch: %+v", w)
	}

	send(t, conn, `{"type":"SEARCH","protocol_version":"1.0","id":"q1","query":"diamond","direction":"TO_BUY"}`)
	var res protocol.ResultsMsg
	if b := recv(t, conn, &res); b.Type != protocol.TypeResults {
		t.Fatalf("expected RESULTS, got %s", b.Type)
	}
	if res.ID != "q1" || res.Direction != "TO_BUY" || len(res.Entries) != 1 {
		t.Fatalf("results mismatch: %+v", res)
	}
	e := res.Entries[0]
	if e.Item != "DIAMOND" || !e.Unlimited || e.Pos != [3]int{10, 64, -3} {
		t.Fatalf("entry mismatch: %+v", e)
	}

	send(t, conn, `{"type":"SEARCH","protocol_version":"1.0","id":"q2","query":"dia","direction":"buy"}`)
	var em protocol.ErrorMsg
	if b := recv(t, conn, &em); b.Type != protocol.TypeError || em.Code != protocol.ErrQueryTooShort || em.ID != "q2" {
		t.Fatalf("expected E_QUERY_TOO_SHORT, got %+v", em)
	}
}

func TestServer_RejectsNonHello(t *testing.T) {
	conn, _ := dial(t, nil)
	send(t, conn, `{"type":"SEARCH","protocol_version":"1.0","id":"q1","query":"diamond","direction":"TO_BUY"}`)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestServer_TeleportHideAndErrors(t *testing.T) {
	conn, f := dial(t, nil)
	send(t, conn, hello)
	recv(t, conn, nil)

	send(t, conn, `{"type":"TELEPORT","protocol_version":"1.0","id":"t1","world":"world","pos":[10,64,-3]}`)
	var tp protocol.TeleportedMsg
	if b := recv(t, conn, &tp); b.Type != protocol.TypeTeleported {
		t.Fatalf("expected TELEPORTED, got %s", b.Type)
	}
	if tp.Via != finder.ViaSafe || tp.Destination.X != 11.5 || tp.Destination.Yaw != 90 {
		t.Fatalf("teleported mismatch: %+v", tp)
	}

	var em protocol.ErrorMsg
	send(t, conn, `{"type":"TELEPORT","protocol_version":"1.0","id":"t2","world":"world","pos":[0,0,0]}`)
	if recv(t, conn, &em); em.Code != protocol.ErrNotFound {
		t.Fatalf("expected E_NOT_FOUND, got %+v", em)
	}

	send(t, conn, `{"type":"HIDE","protocol_version":"1.0","id":"h1","world":"world","pos":[1,2,3]}`)
	var a protocol.AckMsg
	if b := recv(t, conn, &a); b.Type != protocol.TypeAck || a.AckFor != "h1" || !f.hidden[geom.Vec3i{X: 1, Y: 2, Z: 3}] {
		t.Fatalf("hide ack mismatch: %+v", a)
	}
	send(t, conn, `{"type":"UNHIDE","protocol_version":"1.0","id":"h2","world":"world","pos":[1,2,3]}`)
	if recv(t, conn, &em); em.Code != protocol.ErrNoPermission {
		t.Fatalf("expected E_NO_PERMISSION, got %+v", em)
	}
	send(t, conn, `{"type":"HIDE_ALL","protocol_version":"1.0","id":"h3"}`)
	a = protocol.AckMsg{}
	if recv(t, conn, &a); a.Count != 3 {
		t.Fatalf("hide all count: got %d want 3", a.Count)
	}

	send(t, conn, `{"type":"TELEPORT","protocol_version":"1.0","id":"t3","world":"world"}`)
	em = protocol.ErrorMsg{}
	if recv(t, conn, &em); em.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("expected E_PROTO_BAD_REQUEST, got %+v", em)
	}
	send(t, conn, `{"type":"SEARCH","protocol_version":"0.1","id":"q"}`)
	em = protocol.ErrorMsg{}
	if recv(t, conn, &em); em.Code != protocol.ErrProtoVersion {
		t.Fatalf("expected E_PROTO_VERSION, got %+v", em)
	}
}

func TestServer_SearchRateLimit(t *testing.T) {
	conn, _ := dial(t, func(s *config.Settings) {
		s.Server.SearchRatePerSec = 0.001
		s.Server.SearchBurst = 1
	})
	send(t, conn, hello)
	recv(t, conn, nil)

	q := `{"type":"SEARCH","protocol_version":"1.0","id":"q","query":"diamond","direction":"TO_BUY"}`
	send(t, conn, q)
	if b := recv(t, conn, nil); b.Type != protocol.TypeResults {
		t.Fatalf("first search should pass, got %s", b.Type)
	}
	send(t, conn, q)
	var em protocol.ErrorMsg
	if recv(t, conn, &em); em.Code != protocol.ErrRateLimit {
		t.Fatalf("expected E_RATE_LIMIT, got %+v", em)
	}
}

func TestServer_HelloRecordsPlayerName(t *testing.T) {
	conn, f := dial(t, nil)
	send(t, conn, `{"type":"HELLO","protocol_version":"1.0","player":"0f8fad5b-d9cb-469f-a165-70867728950e","name":" Steve "}`)
	recv(t, conn, nil)
	if got := f.nameOf(uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")); got != "Steve" {
		t.Fatalf("recorded name: got %q want Steve", got)
	}
}

func TestServer_LimiterDroppedWithLastConnection(t *testing.T) {
	srv, _, url := startServer(t, nil)
	player := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	limiters := func() int {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.limiters)
	}
	q := `{"type":"SEARCH","protocol_version":"1.0","id":"q","query":"diamond","direction":"TO_BUY"}`

	a, b := connect(t, url), connect(t, url)
	for _, c := range []*websocket.Conn{a, b} {
		send(t, c, hello)
		recv(t, c, nil)
		send(t, c, q)
		recv(t, c, nil)
	}
	if n := limiters(); n != 1 {
		t.Fatalf("limiters with two connections: got %d want 1", n)
	}

	_ = a.Close()
	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.conns[player] == 1
	})
	if n := limiters(); n != 1 {
		t.Fatalf("limiter dropped while a connection remains")
	}
	_ = b.Close()
	waitFor(t, func() bool { return limiters() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
