package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	Search   SearchSettings   `yaml:"search"`
	Teleport TeleportSettings `yaml:"teleport"`
	Warps    WarpSettings     `yaml:"warps"`
	Server   ServerSettings   `yaml:"server"`
	Listing  ListingSettings  `yaml:"listing"`
}

type SearchSettings struct {
	LoadedShopsOnly   bool          `yaml:"loaded_shops_only"`
	BlacklistedWorlds []string      `yaml:"blacklisted_worlds"`
	SortingMethod     string        `yaml:"sorting_method"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	MinQueryLength    int           `yaml:"min_query_length"`
}

type TeleportSettings struct {
	SafeLocationMode  string  `yaml:"safe_location_mode"`
	MaxDownwardSearch int     `yaml:"max_downward_search"`
	MaxUpwardSearch   int     `yaml:"max_upward_search"`
	CostToSearch      float64 `yaml:"cost_to_search"`
	ShopSignMaterial  string  `yaml:"shop_sign_material"`
}

type WarpSettings struct {
	Enabled     bool    `yaml:"enabled"`
	MaxDistance float64 `yaml:"max_distance"`
	OwnerFilter string  `yaml:"owner_filter"`
}

type ServerSettings struct {
	Listen           string  `yaml:"listen"`
	SearchRatePerSec float64 `yaml:"search_rate_per_sec"`
	SearchBurst      int     `yaml:"search_burst"`
}

type ListingSettings struct {
	Lore []string `yaml:"lore"`
}

const (
	SafeLocationRadius   = "radius"
	SafeLocationAdjacent = "adjacent"

	OwnerPreferred = "preferred"
	OwnerRequired  = "required"
)

func Load(path string) (Settings, error) {
	s := Defaults()
	if strings.TrimSpace(path) == "" {
		s.Normalize()
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("settings.yaml: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("settings.yaml: %w", err)
	}
	return s, nil
}

func Defaults() Settings {
	return Settings{
		Search: SearchSettings{
			SortingMethod:  "2",
			CacheTTL:       time.Hour,
			MinQueryLength: 4,
		},
		Teleport: TeleportSettings{
			SafeLocationMode:  SafeLocationRadius,
			MaxDownwardSearch: 20,
			MaxUpwardSearch:   32,
			ShopSignMaterial:  "OAK_WALL_SIGN",
		},
		Warps: WarpSettings{
			Enabled:     true,
			MaxDistance: 200,
			OwnerFilter: OwnerPreferred,
		},
		Server: ServerSettings{
			Listen:           ":8080",
			SearchRatePerSec: 2,
			SearchBurst:      4,
		},
		Listing: ListingSettings{
			Lore: []string{
				"Price: <price>",
				"Stock: <stock>",
				"Owner: <owner>",
				"Location: <location> (<world>)",
				"Nearest warp: <warp>",
				"Teleport cost: <cost>",
			},
		},
	}
}

func (s *Settings) Normalize() {
	if s == nil {
		return
	}
	if s.Search.CacheTTL <= 0 {
		s.Search.CacheTTL = time.Hour
	}
	if s.Search.MinQueryLength < 0 {
		s.Search.MinQueryLength = 0
	}
	s.Teleport.SafeLocationMode = strings.ToLower(strings.TrimSpace(s.Teleport.SafeLocationMode))
	if s.Teleport.SafeLocationMode == "" {
		s.Teleport.SafeLocationMode = SafeLocationRadius
	}
	if s.Teleport.MaxDownwardSearch <= 0 {
		s.Teleport.MaxDownwardSearch = 20
	}
	if s.Teleport.MaxUpwardSearch <= 0 {
		s.Teleport.MaxUpwardSearch = 32
	}
	s.Teleport.ShopSignMaterial = strings.ToUpper(strings.TrimSpace(s.Teleport.ShopSignMaterial))
	s.Warps.OwnerFilter = strings.ToLower(strings.TrimSpace(s.Warps.OwnerFilter))
	if s.Warps.OwnerFilter == "" {
		s.Warps.OwnerFilter = OwnerPreferred
	}
	if s.Warps.MaxDistance <= 0 {
		s.Warps.MaxDistance = 200
	}
	if s.Server.SearchBurst <= 0 {
		s.Server.SearchBurst = 1
	}
}

func (s Settings) Validate() error {
	switch s.Teleport.SafeLocationMode {
	case SafeLocationRadius, SafeLocationAdjacent:
	default:
		return fmt.Errorf("teleport.safe_location_mode %q must be %s or %s", s.Teleport.SafeLocationMode, SafeLocationRadius, SafeLocationAdjacent)
	}
	switch s.Warps.OwnerFilter {
	case OwnerPreferred, OwnerRequired:
	default:
		return fmt.Errorf("warps.owner_filter %q must be %s or %s", s.Warps.OwnerFilter, OwnerPreferred, OwnerRequired)
	}
	if s.Teleport.CostToSearch < 0 {
		return fmt.Errorf("teleport.cost_to_search must be >= 0")
	}
	if s.Server.SearchRatePerSec < 0 {
		return fmt.Errorf("server.search_rate_per_sec must be >= 0")
	}
	return nil
}

// SortingMode parses search.sorting_method. Callers fall back to price
// ascending when it fails.
func (s Settings) SortingMode() (int, error) {
	v := strings.TrimSpace(s.Search.SortingMethod)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("search.sorting_method %q: %w", v, err)
	}
	return n, nil
}

func (s Settings) IsBlacklisted(world string) bool {
	for _, w := range s.Search.BlacklistedWorlds {
		if w == world {
			return true
		}
	}
	return false
}
