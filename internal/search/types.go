package search

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/market"
)

// Direction is named after what the searching player wants to do.
type Direction int

const (
	ToBuy  Direction = iota + 1 // player buys from a selling shop
	ToSell                      // player sells to a buying shop
)

func (d Direction) String() string {
	switch d {
	case ToBuy:
		return "TO_BUY"
	case ToSell:
		return "TO_SELL"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) valid() bool { return d == ToBuy || d == ToSell }

// ParseDirection accepts the spellings players type: to-buy, tobuy, buy, TO_BUY...
func ParseDirection(s string) (Direction, bool) {
	switch strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", ""), "_", "") {
	case "tobuy", "buy":
		return ToBuy, true
	case "tosell", "sell":
		return ToSell, true
	}
	return 0, false
}

type Kind int

const (
	ByType Kind = iota + 1
	ByName
)

func (k Kind) valid() bool { return k == ByType || k == ByName }

// Query is a single search request. Player is used for permission checks only
// and is not part of the cache key.
type Query struct {
	Kind      Kind
	Text      string
	Direction Direction
	Player    uuid.UUID
}

func TypeQuery(itemType string, dir Direction, player uuid.UUID) Query {
	return Query{Kind: ByType, Text: itemType, Direction: dir, Player: player}
}

func NameQuery(text string, dir Direction, player uuid.UUID) Query {
	return Query{Kind: ByName, Text: text, Direction: dir, Player: player}
}

// Key is the normalized query text: the upper-cased type id, or the
// lower-cased name with underscores as spaces.
func (q Query) Key() string {
	if q.Kind == ByType {
		return normalizeType(q.Text)
	}
	return normalizeName(q.Text)
}

func normalizeType(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", " ")
}

// Unlimited is the capacity reported for shops without a stock or space limit.
const Unlimited = math.MaxInt32

// MapCapacity maps the registry's "no limit" sentinel to Unlimited.
func MapCapacity(v int) int {
	if v == market.NoLimit {
		return Unlimited
	}
	return v
}

// Result is one admitted shop. Values are never modified after a search
// returns them; slices handed out by the engine are shared with the cache.
type Result struct {
	ShopID    int64         `json:"shop_id"`
	Price     float64       `json:"price"`
	Remaining int           `json:"remaining"`
	Owner     uuid.UUID     `json:"owner"`
	OwnerName string        `json:"owner_name,omitempty"`
	Location  geom.Location `json:"location"`
	Item      market.Item   `json:"item"`
	Direction Direction     `json:"direction"`
}

func (r Result) Unlimited() bool { return r.Remaining == Unlimited }

// OwnerLabel is the owner's name, or the uuid when no name is known.
func (r Result) OwnerLabel() string {
	if r.OwnerName != "" {
		return r.OwnerName
	}
	return r.Owner.String()
}

func newResult(s market.Shop, remaining int, dir Direction) Result {
	return Result{
		ShopID:    s.ID,
		Price:     s.Price,
		Remaining: remaining,
		Owner:     s.Owner,
		OwnerName: s.OwnerName,
		Location:  s.Location,
		Item:      s.Item,
		Direction: dir,
	}
}
