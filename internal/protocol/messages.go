package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Player          string `json:"player"`
	Name            string `json:"name,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Player          string         `json:"player"`
	Params          FinderParams   `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type FinderParams struct {
	MinQueryLength   int     `json:"min_query_length"`
	CostToSearch     float64 `json:"cost_to_search"`
	SortingMethod    string  `json:"sorting_method"`
	SafeLocationMode string  `json:"safe_location_mode"`
	WarpsEnabled     bool    `json:"warps_enabled"`
}

type CatalogDigests struct {
	Blocks DigestRef `json:"blocks"`
	Items  DigestRef `json:"items"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// SEARCH (client -> server)
type SearchMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Query           string `json:"query"`
	Direction       string `json:"direction"`
}

// VIEW_ALL (client -> server)
type ViewAllMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Direction       string `json:"direction"`
}

// TELEPORT, HIDE and UNHIDE (client -> server) address a shop by its block.
type ShopRefMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	World           string `json:"world"`
	Pos             [3]int `json:"pos"`
}

// HIDE_ALL and UNHIDE_ALL (client -> server)
type OwnerMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
}

// RESULTS (server -> client)
type ResultsMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ID              string        `json:"id"`
	Query           string        `json:"query,omitempty"`
	Direction       string        `json:"direction"`
	Entries         []ResultEntry `json:"entries"`
}

type ResultEntry struct {
	ShopID    int64    `json:"shop_id"`
	Item      string   `json:"item"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Remaining int      `json:"remaining"`
	Unlimited bool     `json:"unlimited,omitempty"`
	Owner     string   `json:"owner"`
	OwnerName string   `json:"owner_name,omitempty"`
	World     string   `json:"world"`
	Pos       [3]int   `json:"pos"`
	Warp      string   `json:"warp,omitempty"`
	Lore      []string `json:"lore"`
}

// TELEPORTED (server -> client)
type TeleportedMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ID              string      `json:"id"`
	ShopID          int64       `json:"shop_id"`
	Via             string      `json:"via"`
	Warp            string      `json:"warp,omitempty"`
	Cost            float64     `json:"cost"`
	Destination     Destination `json:"destination"`
}

type Destination struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Count           int    `json:"count,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(id, code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ID: id, Code: code, Message: msg}
}
