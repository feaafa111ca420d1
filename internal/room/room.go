// Package room owns game sessions: the lobby lifecycle, the engine binding,
// broadcast fan-out and the reconnection/AI-takeover machinery.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/game"
	"github.com/duskveil/onenight/backend/internal/protocol"
)

type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusStarting Status = "STARTING"
	StatusPlaying  Status = "PLAYING"
	StatusEnded    Status = "ENDED"
	StatusClosed   Status = "CLOSED"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrNotHost          = errors.New("only the host may do that")
	ErrWrongStatus      = errors.New("room is not in the right status")
	ErrNotMember        = errors.New("player is not in this room")
	ErrWrongPassword    = errors.New("wrong room password")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrPlayersNotReady  = errors.New("not every player is ready")
)

// Channel is one member's outbound message stream. Send must not block; a
// full queue returns an error and the room treats the member as gone.
type Channel interface {
	Send(msg protocol.ServerMessage) error
	Close()
}

// Member is one seat in the lobby. AI members have a nil channel.
type Member struct {
	ID        string
	Name      string
	IsAI      bool
	Ready     bool
	Connected bool
	JoinedAt  time.Time
	channel   Channel
}

// GameSummary is handed to the recorder when a game resolves.
type GameSummary struct {
	RoomCode     string
	EndedAt      time.Time
	DurationMs   int64
	WinningTeams []game.Team
	Players      []PlayerSummary
}

type PlayerSummary struct {
	PlayerID  string
	Name      string
	IsAI      bool
	FinalRole game.Role
	Winner    bool
}

// GameRecorder archives finished games. Implementations must not block.
type GameRecorder interface {
	RecordGame(summary GameSummary)
}

// Deps are the collaborators a room borrows from the manager.
type Deps struct {
	Logger   *zap.Logger
	Recon    *ReconnectionManager
	Recorder GameRecorder
	Seed     int64
}

// Room owns one lobby and at most one game. All state is serialized behind
// one mutex; engine calls are made outside it so engine emissions can
// re-enter the broadcast path.
type Room struct {
	Code      string
	CreatedAt time.Time

	logger   *zap.Logger
	recon    *ReconnectionManager
	recorder GameRecorder
	ai       *game.AIProvider
	seed     int64

	mu           sync.Mutex
	status       Status
	hostID       string
	config       protocol.RoomConfig
	passwordHash []byte
	debug        *protocol.DebugOptions
	members      []*Member
	lastActive   time.Time

	game       *game.Game
	gameCancel context.CancelFunc
	engineOf   map[string]string // member id -> engine id
	memberOf   map[string]string // engine id -> member id
	cells      map[string]*ProviderCell
	humans     map[string]*HumanProvider
	seenStmts  map[string]struct{}
}

// ValidateConfig checks a lobby configuration against the game's limits.
func ValidateConfig(cfg protocol.RoomConfig) error {
	if cfg.MinPlayers < 3 || cfg.MaxPlayers > 10 || cfg.MinPlayers > cfg.MaxPlayers {
		return fmt.Errorf("player bounds [%d,%d] outside [3,10]", cfg.MinPlayers, cfg.MaxPlayers)
	}
	if len(cfg.Roles) != cfg.MaxPlayers+game.CenterSlots {
		return fmt.Errorf("role list must hold %d roles for %d players, got %d",
			cfg.MaxPlayers+game.CenterSlots, cfg.MaxPlayers, len(cfg.Roles))
	}
	roles, err := parseRoles(cfg.Roles)
	if err != nil {
		return err
	}
	return game.ValidateRoleList(roles)
}

func parseRoles(names []string) ([]game.Role, error) {
	roles := make([]game.Role, 0, len(names))
	for _, n := range names {
		r := game.Role(n)
		if !game.ValidRole(r) {
			return nil, fmt.Errorf("unknown role %q", n)
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// NewRoom builds a WAITING room with the host as its first member.
func NewRoom(code string, hostID, hostName string, ch Channel, cfg protocol.RoomConfig, passwordHash []byte, debug *protocol.DebugOptions, deps Deps) (*Room, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid room config: %w", err)
	}
	seed := deps.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &Room{
		Code:         code,
		CreatedAt:    time.Now(),
		logger:       deps.Logger.With(zap.String("room", code)),
		recon:        deps.Recon,
		recorder:     deps.Recorder,
		ai:           game.NewAIProvider(seed),
		seed:         seed,
		status:       StatusWaiting,
		hostID:       hostID,
		config:       cfg,
		passwordHash: passwordHash,
		debug:        debug,
		lastActive:   time.Now(),
	}
	r.members = append(r.members, &Member{
		ID: hostID, Name: hostName, Connected: true, JoinedAt: time.Now(), channel: ch,
	})
	return r, nil
}

// Status returns the current lifecycle status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// IsPrivate reports whether joining requires the room password.
func (r *Room) IsPrivate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config.IsPrivate
}

// PasswordHash returns the bcrypt hash guarding a private room, nil for
// public rooms.
func (r *Room) PasswordHash() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passwordHash
}

// HasMember reports whether the player currently occupies a seat.
func (r *Room) HasMember(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberLocked(playerID) != nil
}

func (r *Room) memberLocked(id string) *Member {
	for _, m := range r.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// ConnectedHumans counts members with a live channel, for the reaper.
func (r *Room) ConnectedHumans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedHumansLocked()
}

func (r *Room) connectedHumansLocked() int {
	n := 0
	for _, m := range r.members {
		if !m.IsAI && m.Connected {
			n++
		}
	}
	return n
}

// Snapshot renders the lobby state for roomUpdate broadcasts.
func (r *Room) Snapshot() protocol.RoomStatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() protocol.RoomStatePayload {
	members := make([]protocol.MemberInfo, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, protocol.MemberInfo{
			PlayerID:  m.ID,
			Name:      m.Name,
			IsAI:      m.IsAI,
			Ready:     m.Ready || m.IsAI,
			Connected: m.Connected,
		})
	}
	return protocol.RoomStatePayload{
		Code:      r.Code,
		HostID:    r.hostID,
		Status:    string(r.status),
		Config:    r.config,
		Members:   members,
		IsPrivate: r.config.IsPrivate,
	}
}

// AddPlayer seats a player in the lobby. Reconnection during PLAYING goes
// through HandleReconnect instead.
func (r *Room) AddPlayer(id, name string, ch Channel, isAI bool) error {
	r.mu.Lock()
	if r.status != StatusWaiting {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	if m := r.memberLocked(id); m != nil {
		// Same identity rejoining the lobby: rebind the channel.
		m.channel = ch
		m.Connected = ch != nil
		r.touchLocked()
		r.mu.Unlock()
		r.broadcastUpdate()
		return nil
	}
	if len(r.members) >= r.config.MaxPlayers {
		r.mu.Unlock()
		return ErrRoomFull
	}
	r.members = append(r.members, &Member{
		ID:        id,
		Name:      name,
		IsAI:      isAI,
		Ready:     isAI,
		Connected: !isAI && ch != nil,
		JoinedAt:  time.Now(),
		channel:   ch,
	})
	r.touchLocked()
	r.mu.Unlock()
	r.broadcastUpdate()
	return nil
}

// AddAI seats a bot. Host only, lobby only.
func (r *Room) AddAI(requesterID string) error {
	r.mu.Lock()
	if r.status != StatusWaiting {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	if r.hostID != requesterID {
		r.mu.Unlock()
		return ErrNotHost
	}
	n := 0
	for _, m := range r.members {
		if m.IsAI {
			n++
		}
	}
	r.mu.Unlock()
	return r.AddPlayer(uuid.NewString(), fmt.Sprintf("Bot %d", n+1), nil, true)
}

// RemovePlayer removes a seat. Players may remove themselves; removing
// anyone else is a host privilege. During PLAYING a removed human follows
// the disconnect path so the seat keeps playing.
func (r *Room) RemovePlayer(requesterID, targetID string) error {
	r.mu.Lock()
	if requesterID != targetID && r.hostID != requesterID {
		r.mu.Unlock()
		return ErrNotHost
	}
	m := r.memberLocked(targetID)
	if m == nil {
		r.mu.Unlock()
		return ErrNotMember
	}
	if r.status == StatusPlaying || r.status == StatusStarting {
		r.mu.Unlock()
		r.HandleDisconnect(targetID)
		return nil
	}

	kept := r.members[:0]
	for _, mm := range r.members {
		if mm.ID != targetID {
			kept = append(kept, mm)
		}
	}
	r.members = kept
	if m.channel != nil {
		m.channel.Close()
	}
	if r.hostID == targetID {
		r.promoteHostLocked()
	}
	r.touchLocked()
	empty := r.connectedHumansLocked() == 0
	r.mu.Unlock()

	if empty {
		r.Close("room abandoned")
		return nil
	}
	r.broadcastUpdate()
	return nil
}

// promoteHostLocked hands the room to the oldest remaining human.
func (r *Room) promoteHostLocked() {
	r.hostID = ""
	var oldest *Member
	for _, m := range r.members {
		if m.IsAI {
			continue
		}
		if oldest == nil || m.JoinedAt.Before(oldest.JoinedAt) {
			oldest = m
		}
	}
	if oldest != nil {
		r.hostID = oldest.ID
	}
}

// SetReady toggles a lobby ready flag.
func (r *Room) SetReady(playerID string, ready bool) error {
	r.mu.Lock()
	if r.status != StatusWaiting {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	m := r.memberLocked(playerID)
	if m == nil {
		r.mu.Unlock()
		return ErrNotMember
	}
	m.Ready = ready
	r.touchLocked()
	r.mu.Unlock()
	r.broadcastUpdate()
	return nil
}

// UpdateConfig applies a partial config change. Host only, lobby only.
func (r *Room) UpdateConfig(requesterID string, patch protocol.RoomConfigPatch) error {
	r.mu.Lock()
	if r.status != StatusWaiting {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	if r.hostID != requesterID {
		r.mu.Unlock()
		return ErrNotHost
	}
	next := r.config
	if patch.MinPlayers != nil {
		next.MinPlayers = *patch.MinPlayers
	}
	if patch.MaxPlayers != nil {
		next.MaxPlayers = *patch.MaxPlayers
	}
	if patch.Roles != nil {
		next.Roles = *patch.Roles
	}
	if patch.TimeoutProfile != nil {
		next.TimeoutProfile = *patch.TimeoutProfile
	}
	if patch.IsPrivate != nil {
		next.IsPrivate = *patch.IsPrivate
	}
	if patch.AllowSpectators != nil {
		next.AllowSpectators = *patch.AllowSpectators
	}
	if err := ValidateConfig(next); err != nil {
		r.mu.Unlock()
		return err
	}
	if len(r.members) > next.MaxPlayers {
		r.mu.Unlock()
		return fmt.Errorf("room already has %d members", len(r.members))
	}
	r.config = next
	r.touchLocked()
	r.mu.Unlock()
	r.broadcastUpdate()
	return nil
}

// Start launches the game. Host only; every non-host human must be ready
// and the member count must reach minPlayers. Open seats up to maxPlayers
// are silently filled with bots so the deal matches the role list.
func (r *Room) Start(requesterID string) error {
	r.mu.Lock()
	if r.status != StatusWaiting {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	if r.hostID != requesterID {
		r.mu.Unlock()
		return ErrNotHost
	}
	if len(r.members) < r.config.MinPlayers {
		r.mu.Unlock()
		return ErrNotEnoughPlayers
	}
	for _, m := range r.members {
		if !m.IsAI && m.ID != r.hostID && !m.Ready {
			r.mu.Unlock()
			return ErrPlayersNotReady
		}
	}
	for i := len(r.members); i < r.config.MaxPlayers; i++ {
		r.members = append(r.members, &Member{
			ID:       uuid.NewString(),
			Name:     fmt.Sprintf("Bot %d", i+1),
			IsAI:     true,
			Ready:    true,
			JoinedAt: time.Now(),
		})
	}
	r.status = StatusStarting
	roles, err := parseRoles(r.config.Roles)
	if err != nil {
		r.status = StatusWaiting
		r.mu.Unlock()
		return err
	}

	seats := make([]game.SeatAssignment, len(r.members))
	for i, m := range r.members {
		seats[i] = game.SeatAssignment{Name: m.Name, Human: !m.IsAI}
	}
	cfg := game.Config{
		Roles:   roles,
		Seats:   seats,
		Profile: game.ProfileByName(r.config.TimeoutProfile),
		Seed:    r.seed,
	}
	if r.debug != nil {
		if cfg.ForcedSeats, err = parseRoles(r.debug.Seats); err != nil {
			r.status = StatusWaiting
			r.mu.Unlock()
			return err
		}
		if cfg.ForcedCenter, err = parseRoles(r.debug.Center); err != nil {
			r.status = StatusWaiting
			r.mu.Unlock()
			return err
		}
	}

	g, err := game.NewGame(cfg, r, r, r.logger)
	if err != nil {
		r.status = StatusWaiting
		r.mu.Unlock()
		return fmt.Errorf("failed to start game: %w", err)
	}

	r.game = g
	r.engineOf = make(map[string]string, len(r.members))
	r.memberOf = make(map[string]string, len(r.members))
	r.cells = make(map[string]*ProviderCell, len(r.members))
	r.humans = make(map[string]*HumanProvider)
	r.seenStmts = make(map[string]struct{})
	for i, p := range g.Players() {
		m := r.members[i]
		r.engineOf[m.ID] = p.ID
		r.memberOf[p.ID] = m.ID
		if m.IsAI {
			r.cells[p.ID] = NewProviderCell(r.ai)
			continue
		}
		hp := NewHumanProvider(r, r.seed+int64(i))
		r.humans[p.ID] = hp
		r.cells[p.ID] = NewProviderCell(hp)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.gameCancel = cancel
	r.status = StatusPlaying
	r.touchLocked()
	targets := r.humanChannelsLocked()
	r.mu.Unlock()

	// Each human gets their own initial view plus the id map.
	for memberID, ch := range targets {
		view, verr := r.ViewFor(memberID)
		if verr != nil {
			continue
		}
		idMap := make(map[string]string, len(r.memberOf))
		for eid, mid := range r.memberOf {
			idMap[mid] = eid
		}
		_ = ch.Send(protocol.NewServerMessage(protocol.ServerGameStarted, protocol.GameStartedPayload{
			View:  view,
			IDMap: idMap,
		}))
	}

	go r.runGame(ctx, g)
	r.logger.Info("game started", zap.Int("players", len(seats)))
	return nil
}

func (r *Room) humanChannelsLocked() map[string]Channel {
	out := make(map[string]Channel)
	for _, m := range r.members {
		if !m.IsAI && m.Connected && m.channel != nil {
			out[m.ID] = m.channel
		}
	}
	return out
}

func (r *Room) runGame(ctx context.Context, g *game.Game) {
	err := g.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, game.ErrDecisionCancelled) {
		return
	}
	// Unrecoverable engine failure: end the game with no winners rather
	// than leaving the room stuck in PLAYING.
	r.logger.Error("game aborted", zap.Error(err))
	r.mu.Lock()
	if r.status != StatusPlaying {
		r.mu.Unlock()
		return
	}
	r.status = StatusEnded
	r.mu.Unlock()
	r.broadcast(protocol.NewServerMessage(protocol.ServerGameEnd, game.GameResult{
		WinningTeams: []game.Team{},
		Eliminated:   []string{},
		Winners:      []string{},
	}))
}

// SubmitStatement routes a day statement to the engine, dropping exact
// re-deliveries of the same (player, text, timestamp).
func (r *Room) SubmitStatement(memberID, text string, ts time.Time) error {
	r.mu.Lock()
	if r.status != StatusPlaying {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	eid, ok := r.engineOf[memberID]
	if !ok {
		r.mu.Unlock()
		return ErrNotMember
	}
	// Without a client timestamp two distinct statements with the same text
	// would collapse to one key; stamp server-side instead.
	if ts.IsZero() {
		ts = time.Now()
	}
	key := fmt.Sprintf("%s/%d/%s", memberID, ts.UnixNano(), text)
	if _, dup := r.seenStmts[key]; dup {
		r.mu.Unlock()
		return nil
	}
	r.seenStmts[key] = struct{}{}
	g := r.game
	r.touchLocked()
	r.mu.Unlock()
	return g.SubmitStatement(eid, text, ts)
}

// ReadyToVote routes a day-phase ready signal to the engine.
func (r *Room) ReadyToVote(memberID string) error {
	r.mu.Lock()
	if r.status != StatusPlaying {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	eid, ok := r.engineOf[memberID]
	if !ok {
		r.mu.Unlock()
		return ErrNotMember
	}
	g := r.game
	r.touchLocked()
	r.mu.Unlock()
	return g.ReadyToVote(eid)
}

// HandleActionResponse answers the pending prompt with the given id.
func (r *Room) HandleActionResponse(memberID, requestID string, answer protocol.ActionAnswer) error {
	r.mu.Lock()
	if r.status != StatusPlaying {
		r.mu.Unlock()
		return ErrWrongStatus
	}
	eid, ok := r.engineOf[memberID]
	if !ok {
		r.mu.Unlock()
		return ErrNotMember
	}
	hp := r.humans[eid]
	resp := game.DecisionResponse{
		Centers: answer.Centers,
		Choice:  answer.Choice,
		Text:    answer.Text,
	}
	for _, pid := range answer.Players {
		target, ok := r.engineOf[pid]
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: unknown player %s", ErrInvalidAnswer, pid)
		}
		resp.Players = append(resp.Players, target)
	}
	ch := r.channelOfLocked(memberID)
	r.touchLocked()
	r.mu.Unlock()

	if hp == nil {
		return ErrUnknownRequest
	}
	if err := hp.Resolve(requestID, resp); err != nil {
		return err
	}
	if ch != nil {
		_ = ch.Send(protocol.NewServerMessage(protocol.ServerActionAcknowledged,
			protocol.ActionAcknowledgedPayload{RequestID: requestID}))
	}
	return nil
}

func (r *Room) channelOfLocked(memberID string) Channel {
	if m := r.memberLocked(memberID); m != nil && m.Connected {
		return m.channel
	}
	return nil
}

// ViewFor projects and translates the game state for one member.
func (r *Room) ViewFor(memberID string) (game.PlayerView, error) {
	r.mu.Lock()
	g := r.game
	eid, ok := r.engineOf[memberID]
	r.mu.Unlock()
	if g == nil || !ok {
		return game.PlayerView{}, ErrNotMember
	}
	view, err := g.ViewFor(eid, r.engineConnected)
	if err != nil {
		return game.PlayerView{}, err
	}
	return r.translateView(view), nil
}

func (r *Room) engineConnected(engineID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	mid, ok := r.memberOf[engineID]
	if !ok {
		return false
	}
	m := r.memberLocked(mid)
	return m != nil && (m.IsAI || m.Connected)
}

// HandleDisconnect is the single entry point for channel loss, queue
// overflow and mid-game leaves.
func (r *Room) HandleDisconnect(memberID string) {
	r.mu.Lock()
	m := r.memberLocked(memberID)
	if m == nil {
		r.mu.Unlock()
		return
	}
	switch r.status {
	case StatusWaiting:
		r.mu.Unlock()
		_ = r.RemovePlayer(memberID, memberID)
		return
	case StatusPlaying, StatusStarting:
		if !m.Connected {
			r.mu.Unlock()
			return
		}
		m.Connected = false
		m.channel = nil
		name := m.Name
		r.touchLocked()
		r.mu.Unlock()

		r.broadcast(protocol.NewServerMessage(protocol.ServerPlayerDisconnected,
			protocol.PlayerConnectionPayload{PlayerID: memberID}))
		if r.recon != nil {
			r.recon.HandleDisconnect(r.Code, memberID, name, func() {
				r.TakeOverSeat(memberID)
			})
		}
		return
	default:
		m.Connected = false
		m.channel = nil
		r.mu.Unlock()
	}
}

// TakeOverSeat swaps a seat's provider to AI. Any prompt the human left
// pending is re-issued to the AI immediately.
func (r *Room) TakeOverSeat(memberID string) {
	r.mu.Lock()
	eid, ok := r.engineOf[memberID]
	if !ok || r.status != StatusPlaying {
		r.mu.Unlock()
		return
	}
	cell := r.cells[eid]
	delete(r.humans, eid)
	r.mu.Unlock()

	if cell != nil {
		cell.Swap(r.ai)
	}
	r.logger.Info("seat handed to AI", zap.String("player", memberID))
	r.broadcast(protocol.NewServerMessage(protocol.ServerPlayerDisconnected,
		protocol.PlayerConnectionPayload{PlayerID: memberID, AITakeover: true}))
}

// HandleReconnect rebinds a returning player's channel and replays their
// private state. Returns ErrNotMember when the identity never sat here.
func (r *Room) HandleReconnect(memberID string, ch Channel) error {
	r.mu.Lock()
	m := r.memberLocked(memberID)
	if m == nil || m.IsAI {
		r.mu.Unlock()
		return ErrNotMember
	}
	if r.status != StatusPlaying {
		// Lobby or finished game: just rebind.
		m.channel = ch
		m.Connected = true
		r.mu.Unlock()
		r.broadcastUpdate()
		return nil
	}
	m.channel = ch
	m.Connected = true
	eid := r.engineOf[memberID]
	hp := r.humans[eid]
	cell := r.cells[eid]
	g := r.game
	r.touchLocked()
	r.mu.Unlock()

	if r.recon != nil {
		r.recon.HandleReconnect(r.Code, memberID)
	}

	// A seat taken over by AI gets a fresh provider for future prompts.
	if hp == nil && cell != nil {
		hp = NewHumanProvider(r, r.seed+time.Now().UnixNano())
		r.mu.Lock()
		r.humans[eid] = hp
		r.mu.Unlock()
		cell.Swap(hp)
	}

	r.broadcast(protocol.NewServerMessage(protocol.ServerPlayerReconnected,
		protocol.PlayerConnectionPayload{PlayerID: memberID}))

	if view, err := r.ViewFor(memberID); err == nil {
		_ = ch.Send(protocol.NewServerMessage(protocol.ServerGameState, view))
	}
	if g != nil {
		for _, res := range g.NightResultsFor(eid) {
			_ = ch.Send(protocol.NewServerMessage(protocol.ServerNightResult, r.translateNightResult(res)))
		}
	}
	if hp != nil {
		for _, req := range hp.PendingRequests() {
			r.ActionRequired(eid, req)
		}
	}
	return nil
}

// Close tears the room down: pending prompts cancel, channels close, the
// manager reaps the carcass.
func (r *Room) Close(reason string) {
	r.mu.Lock()
	if r.status == StatusClosed {
		r.mu.Unlock()
		return
	}
	r.status = StatusClosed
	cancel := r.gameCancel
	humans := make([]*HumanProvider, 0, len(r.humans))
	for _, hp := range r.humans {
		humans = append(humans, hp)
	}
	channels := make([]Channel, 0, len(r.members))
	for _, m := range r.members {
		if m.channel != nil && m.Connected {
			channels = append(channels, m.channel)
		}
		m.Connected = false
	}
	r.mu.Unlock()

	for _, hp := range humans {
		hp.Close()
	}
	if cancel != nil {
		cancel()
	}
	if r.recon != nil {
		r.recon.CancelRoom(r.Code)
	}
	msg := protocol.NewServerMessage(protocol.ServerRoomClosed,
		protocol.RoomClosedPayload{RoomCode: r.Code, Reason: reason})
	for _, ch := range channels {
		_ = ch.Send(msg)
	}
	r.logger.Info("room closed", zap.String("reason", reason))
}

// LastActive reports the last member interaction, for the reaper.
func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

func (r *Room) touchLocked() {
	r.lastActive = time.Now()
}

// broadcast fans a message out to every connected human channel. A failed
// send means the outbound queue overflowed; the member is treated as
// disconnected.
func (r *Room) broadcast(msg protocol.ServerMessage) {
	r.mu.Lock()
	var failed []string
	for _, m := range r.members {
		if m.IsAI || !m.Connected || m.channel == nil {
			continue
		}
		if err := m.channel.Send(msg); err != nil {
			failed = append(failed, m.ID)
		}
	}
	r.mu.Unlock()
	for _, id := range failed {
		r.logger.Warn("member queue overflow, dropping", zap.String("player", id))
		r.HandleDisconnect(id)
	}
}

func (r *Room) broadcastUpdate() {
	r.broadcast(protocol.NewServerMessage(protocol.ServerRoomUpdate, r.Snapshot()))
}

func (r *Room) unicast(memberID string, msg protocol.ServerMessage) {
	r.mu.Lock()
	ch := r.channelOfLocked(memberID)
	r.mu.Unlock()
	if ch == nil {
		return
	}
	if err := ch.Send(msg); err != nil {
		r.HandleDisconnect(memberID)
	}
}
