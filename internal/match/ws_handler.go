package match

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/loop-dev/loop-battle/internal/auth"
	"github.com/loop-dev/loop-battle/internal/auth/jwt"
	httperrors "github.com/loop-dev/loop-battle/pkg/http/errors"
	"github.com/loop-dev/loop-battle/pkg/http/ws"
)

// WSHandler upgrades room participants to a push channel for room and match events.
type WSHandler struct {
	service  *Service
	hub      *ws.Hub
	tokens   auth.TokenValidator
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

func NewWSHandler(service *Service, hub *ws.Hub, tokens auth.TokenValidator, upgrader *websocket.Upgrader, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		hub:      hub,
		tokens:   tokens,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "match_ws").Logger(),
	}
}

// ServeHTTP handles GET /ws/rooms/{roomID}?token=...
// Browsers cannot set headers on the upgrade request, so the token rides in the query.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}
	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket token validation failed")
		code := httperrors.ErrCodeInvalidToken
		if errors.Is(err, jwt.ErrExpiredToken) {
			code = httperrors.ErrCodeTokenExpired
		}
		httperrors.RespondUnauthorized(w, code, "Invalid token")
		return
	}
	player := auth.PlayerFromClaims(claims)

	roomID, err := uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "room id must be a UUID", "roomId")
		return
	}
	rm, err := h.service.rooms.Get(roomID)
	if err != nil {
		httperrors.RespondDomainError(w, err)
		return
	}
	if !rm.IsParticipant(player.ID) {
		httperrors.RespondError(w, http.StatusForbidden, httperrors.ErrCodeNotParticipant, "not a participant of this room")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	logger := h.logger.With().Str("room_id", roomID.String()).Str("player_id", player.ID.String()).Logger()
	c := ws.NewConnection(conn, logger)
	h.hub.Register(player.ID, c)
	h.hub.Watch(roomID, player.ID)
	logger.Info().Msg("websocket connected")

	if payload, err := json.Marshal(ws.RoomUpdatePayload{
		RoomID:  rm.ID.String(),
		Status:  string(rm.Status),
		Players: wsPlayers(rm),
	}); err == nil {
		_ = c.Send(ws.Message{Type: ws.TypeRoomUpdate, Payload: payload})
	}

	go c.WritePump()
	c.ReadPump(func(msg ws.Message) error {
		switch msg.Type {
		case ws.TypePing:
			return c.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
		default:
			payload, _ := json.Marshal(ws.ErrorPayload{
				Code:    httperrors.ErrCodeUnknownMessageType,
				Message: "unknown message type " + msg.Type,
			})
			return c.Send(ws.Message{Type: ws.TypeError, Payload: payload, RequestID: msg.RequestID})
		}
	})

	h.hub.Unregister(player.ID, c)
	logger.Info().Msg("websocket disconnected")
}
