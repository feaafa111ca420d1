// Package protocol defines the typed messages exchanged between clients and
// the session server, independent of the transport that carries them.
package protocol

import (
	"encoding/json"
	"time"
)

// ============================================================================
// CLIENT -> SERVER MESSAGES
// ============================================================================

type ClientMessageType string

const (
	ClientAuthenticate    ClientMessageType = "authenticate"
	ClientCreateRoom      ClientMessageType = "createRoom"
	ClientJoinRoom        ClientMessageType = "joinRoom"
	ClientLeaveRoom       ClientMessageType = "leaveRoom"
	ClientSetReady        ClientMessageType = "setReady"
	ClientAddAI           ClientMessageType = "addAI"
	ClientRemovePlayer    ClientMessageType = "removePlayer"
	ClientUpdateConfig    ClientMessageType = "updateRoomConfig"
	ClientStartGame       ClientMessageType = "startGame"
	ClientSubmitStatement ClientMessageType = "submitStatement"
	ClientReadyToVote     ClientMessageType = "readyToVote"
	ClientActionResponse  ClientMessageType = "actionResponse"
	ClientPing            ClientMessageType = "ping"
)

// ClientMessage is the envelope for every inbound message. The payload is
// decoded per type; unknown types are rejected at the gateway.
type ClientMessage struct {
	Type      ClientMessageType `json:"type"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
}

// DecodePayload parses the raw payload into the given payload struct.
func (m *ClientMessage) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

type AuthenticatePayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Token      string `json:"token,omitempty"`
}

// RoomConfig is the wire form of a room's game configuration.
type RoomConfig struct {
	MinPlayers      int      `json:"minPlayers"`
	MaxPlayers      int      `json:"maxPlayers"`
	Roles           []string `json:"roles"`
	TimeoutProfile  string   `json:"timeoutProfile,omitempty"`
	IsPrivate       bool     `json:"isPrivate,omitempty"`
	AllowSpectators bool     `json:"allowSpectators,omitempty"`
}

// RoomConfigPatch carries a partial config update; nil fields are untouched.
type RoomConfigPatch struct {
	MinPlayers      *int      `json:"minPlayers,omitempty"`
	MaxPlayers      *int      `json:"maxPlayers,omitempty"`
	Roles           *[]string `json:"roles,omitempty"`
	TimeoutProfile  *string   `json:"timeoutProfile,omitempty"`
	IsPrivate       *bool     `json:"isPrivate,omitempty"`
	AllowSpectators *bool     `json:"allowSpectators,omitempty"`
}

// DebugOptions force the deal for test games. Seats are applied in seat
// order, center left to right.
type DebugOptions struct {
	Seats  []string `json:"seats,omitempty"`
	Center []string `json:"center,omitempty"`
}

type CreateRoomPayload struct {
	Config   RoomConfig    `json:"config"`
	Password string        `json:"password,omitempty"`
	Debug    *DebugOptions `json:"debug,omitempty"`
}

type JoinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password,omitempty"`
}

type SetReadyPayload struct {
	Ready bool `json:"ready"`
}

type RemovePlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type SubmitStatementPayload struct {
	Statement string    `json:"statement"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ActionAnswer is the strict answer shape for a pending prompt. Which fields
// are meaningful depends on the prompt kind.
type ActionAnswer struct {
	Players []string `json:"players,omitempty"`
	Centers []int    `json:"centers,omitempty"`
	Choice  string   `json:"choice,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type ActionResponsePayload struct {
	RequestID string       `json:"requestId"`
	Response  ActionAnswer `json:"response"`
}

// ============================================================================
// SERVER -> CLIENT MESSAGES
// ============================================================================

type ServerMessageType string

const (
	ServerAuthenticated      ServerMessageType = "authenticated"
	ServerRoomCreated        ServerMessageType = "roomCreated"
	ServerRoomJoined         ServerMessageType = "roomJoined"
	ServerRoomUpdate         ServerMessageType = "roomUpdate"
	ServerRoomClosed         ServerMessageType = "roomClosed"
	ServerGameStarted        ServerMessageType = "gameStarted"
	ServerPhaseChange        ServerMessageType = "phaseChange"
	ServerGameState          ServerMessageType = "gameState"
	ServerActionRequired     ServerMessageType = "actionRequired"
	ServerActionAcknowledged ServerMessageType = "actionAcknowledged"
	ServerActionTimeout      ServerMessageType = "actionTimeout"
	ServerNightResult        ServerMessageType = "nightResult"
	ServerStatementMade      ServerMessageType = "statementMade"
	ServerVotesRevealed      ServerMessageType = "votesRevealed"
	ServerElimination        ServerMessageType = "elimination"
	ServerGameEnd            ServerMessageType = "gameEnd"
	ServerPlayerDisconnected ServerMessageType = "playerDisconnected"
	ServerPlayerReconnected  ServerMessageType = "playerReconnected"
	ServerPing               ServerMessageType = "ping"
	ServerPong               ServerMessageType = "pong"
	ServerError              ServerMessageType = "error"
)

type ServerMessage struct {
	Type      ServerMessageType `json:"type"`
	Payload   any               `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewServerMessage stamps the message with the current time.
func NewServerMessage(t ServerMessageType, payload any) ServerMessage {
	return ServerMessage{Type: t, Payload: payload, Timestamp: time.Now()}
}

type AuthenticatedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// MemberInfo is the public lobby view of one room member.
type MemberInfo struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	IsAI      bool   `json:"isAi"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// RoomStatePayload is carried by roomCreated, roomJoined and roomUpdate.
type RoomStatePayload struct {
	Code      string       `json:"code"`
	HostID    string       `json:"hostId"`
	Status    string       `json:"status"`
	Config    RoomConfig   `json:"config"`
	Members   []MemberInfo `json:"members"`
	IsPrivate bool         `json:"isPrivate"`
}

// GameStartedPayload is sent once per human player at game launch.
type GameStartedPayload struct {
	View  any               `json:"view"`
	IDMap map[string]string `json:"idMap"`
}

type PhaseChangePayload struct {
	Phase           string `json:"phase"`
	TimeRemainingMs int64  `json:"timeRemainingMs,omitempty"`
}

type ActionRequiredPayload struct {
	RequestID   string   `json:"requestId"`
	ActionType  string   `json:"actionType"`
	Options     []string `json:"options,omitempty"`
	CenterCount int      `json:"centerCount,omitempty"`
	Declinable  bool     `json:"declinable,omitempty"`
	TimeoutMs   int64    `json:"timeoutMs"`
}

type ActionAcknowledgedPayload struct {
	RequestID string `json:"requestId"`
}

// ActionTimeoutPayload reports the default the server applied when a prompt
// expired unanswered.
type ActionTimeoutPayload struct {
	RequestID string       `json:"requestId"`
	Applied   ActionAnswer `json:"applied"`
}

type StatementMadePayload struct {
	PlayerID  string    `json:"playerId"`
	Statement string    `json:"statement"`
	Timestamp time.Time `json:"timestamp"`
}

type VotesRevealedPayload struct {
	Votes map[string]string `json:"votes"`
}

type EliminationPayload struct {
	PlayerIDs []string `json:"playerIds"`
}

type PlayerConnectionPayload struct {
	PlayerID   string `json:"playerId"`
	AITakeover bool   `json:"aiTakeover,omitempty"`
}

type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason,omitempty"`
}

// ============================================================================
// ERRORS
// ============================================================================

type ErrorCode string

const (
	CodeAuthRequired    ErrorCode = "AUTH_REQUIRED"
	CodeNotInRoom       ErrorCode = "NOT_IN_ROOM"
	CodeNotHost         ErrorCode = "NOT_HOST"
	CodeRoomNotFound    ErrorCode = "ROOM_NOT_FOUND"
	CodeRoomFull        ErrorCode = "ROOM_FULL"
	CodeInvalidPhase    ErrorCode = "INVALID_PHASE"
	CodeInvalidTarget   ErrorCode = "INVALID_TARGET"
	CodeInvalidPassword ErrorCode = "INVALID_PASSWORD"
	CodeActionTimeout   ErrorCode = "ACTION_TIMEOUT"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// NewError builds an error message for a single channel.
func NewError(code ErrorCode, message string) ServerMessage {
	return NewServerMessage(ServerError, ErrorPayload{Code: code, Message: message})
}
