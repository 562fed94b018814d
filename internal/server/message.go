package server

import (
	"encoding/json"

	"github.com/cardroom/cardroom/internal/game"
)

// Envelope is the message frame used in both directions.
type Envelope struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Client → server paths.
const (
	PathInit  = "init"
	PathJoin  = "join-game"
	PathStart = "start-game"
	PathReset = "reset-game"
	PathCheck = "check"
	PathFold  = "fold"
	PathBet   = "bet"
)

// Server → client paths.
const (
	PathSync  = "sync-game"
	PathError = "error"
	PathSound = "play-sound"
)

// keepAliveFrame is the literal non-JSON frame clients may send to hold the
// connection open. It is accepted and ignored.
const keepAliveFrame = "keepalive"

// NewEnvelope wraps data under the given path.
func NewEnvelope(path string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{Path: path, Data: raw}, nil
}

// InitData is the payload of an init frame: which instance the socket wants
// and who is on the other end.
type InitData struct {
	Instance string        `json:"instance"`
	User     game.Identity `json:"user"`
}
