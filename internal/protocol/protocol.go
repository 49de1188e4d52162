package protocol

import (
	"github.com/sugawarayuuta/sonnet"
)

const Version = "1.0"

// Message types.
const (
	TypeHello      = "HELLO"
	TypeWelcome    = "WELCOME"
	TypeSearch     = "SEARCH"
	TypeViewAll    = "VIEW_ALL"
	TypeResults    = "RESULTS"
	TypeTeleport   = "TELEPORT"
	TypeTeleported = "TELEPORTED"
	TypeHide       = "HIDE"
	TypeUnhide     = "UNHIDE"
	TypeHideAll    = "HIDE_ALL"
	TypeUnhideAll  = "UNHIDE_ALL"
	TypeAck        = "ACK"
	TypeError      = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := sonnet.Unmarshal(b, &m)
	return m, err
}

func Decode(b []byte, v any) error { return sonnet.Unmarshal(b, v) }

func Encode(v any) ([]byte, error) { return sonnet.Marshal(v) }
