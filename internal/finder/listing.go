package finder

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"shopscout.ai/internal/hidden"
	"shopscout.ai/internal/search"
)

// Entry is one rendered row of a listing.
type Entry struct {
	search.Result
	Name string   `json:"name"`
	Lore []string `json:"lore"`
	Warp string   `json:"warp,omitempty"`
}

const noWarp = "No warp found"

// Listing drops shops their owners hid and renders the rest.
func (s *Service) Listing(results []search.Result) []Entry {
	st := s.d.Settings.Load()
	out := make([]Entry, 0, len(results))
	for _, r := range results {
		if s.d.Hidden.IsHidden(r.Owner, hidden.PositionOf(r.Location)) {
			continue
		}
		warp := ""
		if w, ok := s.FindNearestWarp(r.Location, r.Owner); ok {
			warp = w.Name
		}
		out = append(out, Entry{
			Result: r,
			Name:   r.Item.PlainName(),
			Lore:   renderLore(st.Listing.Lore, r, warp, st.Teleport.CostToSearch),
			Warp:   warp,
		})
	}
	return out
}

func renderLore(lines []string, r search.Result, warp string, cost float64) []string {
	if warp == "" {
		warp = noWarp
	}
	b := r.Location.Block()
	rep := strings.NewReplacer(
		"<price>", formatMoney(r.Price),
		"<stock>", formatCapacity(r.Remaining),
		"<owner>", r.OwnerLabel(),
		"<cost>", formatMoney(cost),
		"<location>", fmt.Sprintf("X: %d, Y: %d, Z: %d", b.X, b.Y, b.Z),
		"<world>", r.Location.World,
		"<warp>", warp,
	)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = rep.Replace(l)
	}
	return out
}

func formatMoney(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func formatCapacity(n int) string {
	if n == search.Unlimited {
		return "∞"
	}
	return humanize.Comma(int64(n))
}
