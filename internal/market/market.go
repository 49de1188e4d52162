// Package market describes the shop registry and economy the finder queries.
// Neither is owned here: implementations live behind these interfaces.
package market

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"shopscout.ai/internal/geom"
)

// Action is a permission checked against a shop.
type Action string

const (
	ActionSearch   Action = "SEARCH"
	ActionPurchase Action = "PURCHASE"
)

// NoLimit is what a shop reports for unbounded stock or space.
const NoLimit = -1

type Item struct {
	Type        string            `json:"type"`
	DisplayName string            `json:"display_name"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// PlainName is the display name with legacy colour/format codes removed.
func (it Item) PlainName() string {
	name := it.DisplayName
	if name == "" {
		name = prettyType(it.Type)
	}
	return StripFormatting(name)
}

type Shop struct {
	ID       int64         `json:"id"`
	Location geom.Location `json:"location"`
	Item     Item          `json:"item"`
	Price    float64       `json:"price"`
	Owner    uuid.UUID     `json:"owner"`
	Selling  bool          `json:"selling"`
	Buying   bool          `json:"buying"`
	Loaded   bool          `json:"loaded"`

	// OwnerName is the owner's last known player name; empty when unknown.
	OwnerName string `json:"owner_name,omitempty"`
}

// Registry is the shop system of record.
//
// RemainingStock and RemainingSpace read live inventory and must be called on
// the primary context.
type Registry interface {
	ListShops(ctx context.Context, loadedOnly bool) ([]Shop, error)
	IsAuthorized(ctx context.Context, shopID int64, player uuid.UUID, action Action) (bool, error)
	RemainingStock(ctx context.Context, shopID int64) (int, error)
	RemainingSpace(ctx context.Context, shopID int64) (int, error)
	FindShopAt(ctx context.Context, world string, pos geom.Vec3i) (Shop, bool, error)
	ShopsOwnedBy(ctx context.Context, owner uuid.UUID) ([]Shop, error)
}

type Economy interface {
	HasBalance(ctx context.Context, player uuid.UUID, amount float64) (bool, error)
	Withdraw(ctx context.Context, player uuid.UUID, amount float64) (bool, error)
}

// StripFormatting drops "§x" and "&x" style format codes.
func StripFormatting(s string) string {
	if !strings.ContainsAny(s, "§&") {
		return s
	}
	var b strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if (rs[i] == '§' || rs[i] == '&') && i+1 < len(rs) && isFormatCode(rs[i+1]) {
			i++
			continue
		}
		b.WriteRune(rs[i])
	}
	return b.String()
}

func isFormatCode(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return true
	}
	switch r {
	case 'k', 'l', 'm', 'n', 'o', 'r', 'K', 'L', 'M', 'N', 'O', 'R':
		return true
	}
	return false
}

// prettyType turns DIAMOND_SWORD into "Diamond Sword".
func prettyType(t string) string {
	parts := strings.Split(strings.ToLower(t), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
