package ws

import "encoding/json"

// MessageType constants for the room WebSocket protocol.
const (
	// Client -> Server
	TypePing = "ping"

	// Server -> Client
	TypePong              = "pong"
	TypeRoomUpdate        = "room_update"
	TypeMatchStarted      = "match_started"
	TypeOpponentFinalized = "opponent_finalized"
	TypeMatchComplete     = "match_complete"
	TypeMatchTimeout      = "match_timeout"
	TypeError             = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

type Player struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Grade    string `json:"grade,omitempty"`
}

type RoomUpdatePayload struct {
	RoomID  string   `json:"roomId"`
	Status  string   `json:"status"`
	Players []Player `json:"players"`
}

type MatchStartedPayload struct {
	RoomID          string   `json:"roomId"`
	Mode            string   `json:"mode"`
	StartedAt       string   `json:"startedAt"`
	Deadline        string   `json:"deadline"`
	DurationSeconds int      `json:"durationSeconds"`
	Players         []Player `json:"players"`
}

type OpponentFinalizedPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Trigger  string `json:"trigger"`
}

type MatchResult struct {
	UserID               string `json:"userId"`
	Outcome              string `json:"outcome"`
	AccuracyPercent      int    `json:"accuracyPercent"`
	RemainingTimePercent int    `json:"remainingTimePercent"`
	TotalScore           int    `json:"totalScore"`
}

type MatchCompletePayload struct {
	RoomID     string        `json:"roomId"`
	Resolution string        `json:"resolution"`
	Results    []MatchResult `json:"results"`
}

type MatchTimeoutPayload struct {
	RoomID string   `json:"roomId"`
	Forced []string `json:"forced"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
