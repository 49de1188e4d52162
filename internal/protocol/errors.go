package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Finder layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrQueryTooShort = "E_QUERY_TOO_SHORT"
	ErrNotAShop      = "E_NOT_A_SHOP"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNoFunds       = "E_NO_FUNDS"
	ErrWarpBanned    = "E_WARP_BANNED"
	ErrNotFound      = "E_NOT_FOUND"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrQueryTooShort:   {},
	ErrNotAShop:        {},
	ErrNoPermission:    {},
	ErrNoFunds:         {},
	ErrWarpBanned:      {},
	ErrNotFound:        {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
