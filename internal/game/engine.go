package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase of the state machine. Transitions only ever move forward:
// SETUP -> NIGHT -> DAY -> VOTING -> RESOLUTION.
type Phase string

const (
	PhaseSetup      Phase = "SETUP"
	PhaseNight      Phase = "NIGHT"
	PhaseDay        Phase = "DAY"
	PhaseVoting     Phase = "VOTING"
	PhaseResolution Phase = "RESOLUTION"
)

// TimeoutProfile holds the per-phase deadlines.
type TimeoutProfile struct {
	Name        string
	NightAction time.Duration
	Day         time.Duration
	Vote        time.Duration
}

var profiles = map[string]TimeoutProfile{
	"casual":      {Name: "casual", NightAction: 30 * time.Second, Day: 5 * time.Minute, Vote: 45 * time.Second},
	"competitive": {Name: "competitive", NightAction: 20 * time.Second, Day: 3 * time.Minute, Vote: 30 * time.Second},
	"tournament":  {Name: "tournament", NightAction: 15 * time.Second, Day: 2 * time.Minute, Vote: 20 * time.Second},
}

// ProfileByName resolves a timeout profile, defaulting to casual.
func ProfileByName(name string) TimeoutProfile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["casual"]
}

// Statement is one public day-phase statement.
type Statement struct {
	PlayerID  string    `json:"playerId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Player is one seat in the engine.
type Player struct {
	ID           string `json:"id"`
	Seat         int    `json:"seat"`
	Name         string `json:"name"`
	Human        bool   `json:"human"`
	Alive        bool   `json:"alive"`
	StartingRole Role   `json:"-"`
}

// SeatAssignment describes one seat at game construction, in seat order.
type SeatAssignment struct {
	Name  string
	Human bool
}

// Config is everything a game needs at construction.
type Config struct {
	Roles   []Role
	Seats   []SeatAssignment
	Profile TimeoutProfile
	Seed    int64

	// ForcedSeats/ForcedCenter fix the deal for test games. When set they
	// must together be a permutation of Roles.
	ForcedSeats  []Role
	ForcedCenter []Role
}

// Emitter receives every externally visible game event. The room implements
// it and is the single serialization point for broadcast ordering.
type Emitter interface {
	PhaseChanged(phase Phase, deadline time.Time)
	NightResult(playerID string, result NightResult)
	StatementMade(st Statement)
	VotesRevealed(votes map[string]string)
	Eliminated(playerIDs []string)
	GameEnded(result GameResult)
}

var (
	ErrUnknownPlayer = errors.New("unknown player")
	ErrWrongPhase    = errors.New("action not valid in current phase")
	ErrEliminated    = errors.New("player is eliminated")
)

// Game is one authoritative session from deal to resolution. Run drives the
// phases on its own goroutine; SubmitStatement, ReadyToVote and ViewFor are
// safe to call concurrently from the room.
type Game struct {
	logger    *zap.Logger
	cfg       Config
	providers ProviderSource
	emitter   Emitter
	rng       *rand.Rand
	startedAt time.Time

	deck     *Deck
	players  []*Player
	byID     map[string]*Player
	shadow   map[string]Role
	nightLog map[string][]NightResult

	mu            sync.Mutex
	phase         Phase
	phaseDeadline time.Time
	statements    []Statement
	readyVoters   map[string]bool
	dayDone       chan struct{}
	votes         map[string]string
	votesRevealed bool
	result        *GameResult
}

// NewGame validates the config, deals the deck and leaves the game in SETUP.
// The caller sends each player their initial view, then calls Run.
func NewGame(cfg Config, providers ProviderSource, emitter Emitter, logger *zap.Logger) (*Game, error) {
	n := len(cfg.Seats)
	if n < 3 || n > 10 {
		return nil, fmt.Errorf("player count %d out of range [3,10]", n)
	}
	if len(cfg.Roles) != n+CenterSlots {
		return nil, fmt.Errorf("role list must hold %d roles for %d players, got %d",
			n+CenterSlots, n, len(cfg.Roles))
	}
	if err := ValidateRoleList(cfg.Roles); err != nil {
		return nil, fmt.Errorf("invalid role list: %w", err)
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = ProfileByName("casual")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	g := &Game{
		logger:      logger,
		cfg:         cfg,
		providers:   providers,
		emitter:     emitter,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		byID:        make(map[string]*Player, n),
		shadow:      make(map[string]Role),
		nightLog:    make(map[string][]NightResult),
		phase:       PhaseSetup,
		readyVoters: make(map[string]bool),
		dayDone:     make(chan struct{}),
		votes:       make(map[string]string),
	}
	if err := g.deal(); err != nil {
		return nil, err
	}
	for i, seat := range cfg.Seats {
		role, _ := g.deck.StartingRoleAt(i)
		p := &Player{
			ID:           engineID(i),
			Seat:         i,
			Name:         seat.Name,
			Human:        seat.Human,
			Alive:        true,
			StartingRole: role,
		}
		g.players = append(g.players, p)
		g.byID[p.ID] = p
	}
	return g, nil
}

func (g *Game) deal() error {
	n := len(g.cfg.Seats)
	var seats []Role
	var center [CenterSlots]Role
	if len(g.cfg.ForcedSeats) > 0 || len(g.cfg.ForcedCenter) > 0 {
		if len(g.cfg.ForcedSeats) != n || len(g.cfg.ForcedCenter) != CenterSlots {
			return fmt.Errorf("forced deal must cover %d seats and %d center cards", n, CenterSlots)
		}
		forced := append(append([]Role(nil), g.cfg.ForcedSeats...), g.cfg.ForcedCenter...)
		if !sameMultiset(forced, g.cfg.Roles) {
			return fmt.Errorf("forced deal is not a permutation of the configured roles")
		}
		seats = append([]Role(nil), g.cfg.ForcedSeats...)
		copy(center[:], g.cfg.ForcedCenter)
	} else {
		shuffled := append([]Role(nil), g.cfg.Roles...)
		g.rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		seats = shuffled[:n]
		copy(center[:], shuffled[n:])
	}
	deck, err := NewDeck(seats, center)
	if err != nil {
		return err
	}
	g.deck = deck
	return nil
}

func sameMultiset(a, b []Role) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[Role]int, len(a))
	for _, r := range a {
		counts[r]++
	}
	for _, r := range b {
		counts[r]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// Run drives NIGHT through RESOLUTION. It returns when the game resolves,
// the context is cancelled, or the room shuts the game down.
func (g *Game) Run(ctx context.Context) error {
	g.startedAt = time.Now()
	g.setPhase(PhaseNight, time.Time{})
	if err := g.runNight(ctx); err != nil {
		return fmt.Errorf("night phase aborted: %w", err)
	}
	if err := g.runDay(ctx); err != nil {
		return fmt.Errorf("day phase aborted: %w", err)
	}
	if err := g.runVoting(ctx); err != nil {
		return fmt.Errorf("voting phase aborted: %w", err)
	}
	g.resolve()
	return nil
}

func (g *Game) setPhase(p Phase, deadline time.Time) {
	g.mu.Lock()
	g.phase = p
	g.phaseDeadline = deadline
	g.mu.Unlock()
	g.emitter.PhaseChanged(p, deadline)
}

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Players returns the seats in order.
func (g *Game) Players() []*Player {
	return g.players
}

// decide issues one prompt and blocks for the answer. The provider is looked
// up per attempt so an AI takeover mid-prompt re-issues against the new
// provider. Invalid answers fall back to the documented default.
func (g *Game) decide(ctx context.Context, actor string, kind PromptKind, options []string, centerCount int) (DecisionResponse, error) {
	return g.issuePrompt(ctx, actor, kind, options, centerCount, false)
}

func (g *Game) issuePrompt(ctx context.Context, actor string, kind PromptKind, options []string, centerCount int, declinable bool) (DecisionResponse, error) {
	deadline := g.cfg.Profile.NightAction
	switch kind {
	case PromptVote:
		deadline = g.cfg.Profile.Vote
	case PromptMakeStatement:
		deadline = g.cfg.Profile.Day
	}
	req := DecisionRequest{
		RequestID:   uuid.NewString(),
		Recipient:   actor,
		Kind:        kind,
		Options:     options,
		CenterCount: centerCount,
		Declinable:  declinable,
		Deadline:    time.Now().Add(deadline),
	}
	for {
		provider := g.providers.ProviderFor(actor)
		resp, err := provider.Decide(ctx, req)
		if errors.Is(err, ErrProviderSwapped) {
			continue
		}
		if err != nil {
			return DecisionResponse{}, err
		}
		if verr := ValidateResponse(req, resp); verr != nil {
			g.logger.Warn("invalid decision, applying default",
				zap.String("player", actor),
				zap.String("kind", string(kind)),
				zap.Error(verr))
			g.mu.Lock()
			resp = DefaultResponse(req, g.rng)
			g.mu.Unlock()
		}
		return resp, nil
	}
}

func (g *Game) deliverNightResult(res NightResult) {
	g.mu.Lock()
	g.nightLog[res.PlayerID] = append(g.nightLog[res.PlayerID], res)
	g.mu.Unlock()
	g.emitter.NightResult(res.PlayerID, res)
}

// NightResultsFor returns a player's private observations so far. Used for
// reconnection catch-up.
func (g *Game) NightResultsFor(playerID string) []NightResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]NightResult(nil), g.nightLog[playerID]...)
}

// runDay opens the discussion window. AI seats contribute one statement
// each; the phase ends at the deadline or once every alive human is ready.
func (g *Game) runDay(ctx context.Context) error {
	deadline := time.Now().Add(g.cfg.Profile.Day)
	g.setPhase(PhaseDay, deadline)

	for _, p := range g.players {
		if p.Human || !p.Alive {
			continue
		}
		// Other players' names, so a bot statement can point at someone.
		var names []string
		for _, other := range g.players {
			if other.ID != p.ID && other.Alive {
				names = append(names, other.Name)
			}
		}
		resp, err := g.decide(ctx, p.ID, PromptMakeStatement, names, 0)
		if err != nil {
			return err
		}
		if resp.Text != "" {
			g.recordStatement(p.ID, resp.Text, time.Now())
		}
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case <-g.dayDone:
	}
	return nil
}

// SubmitStatement publishes a day-phase statement. Duplicates are filtered
// at the room boundary, not here.
func (g *Game) SubmitStatement(playerID, text string, ts time.Time) error {
	g.mu.Lock()
	p, ok := g.byID[playerID]
	phase := g.phase
	g.mu.Unlock()
	if !ok {
		return ErrUnknownPlayer
	}
	if phase != PhaseDay {
		return ErrWrongPhase
	}
	if !p.Alive {
		return ErrEliminated
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	g.recordStatement(playerID, text, ts)
	return nil
}

func (g *Game) recordStatement(playerID, text string, ts time.Time) {
	st := Statement{PlayerID: playerID, Text: text, Timestamp: ts}
	g.mu.Lock()
	g.statements = append(g.statements, st)
	g.mu.Unlock()
	g.emitter.StatementMade(st)
}

// ReadyToVote marks a player ready. The day ends early once every alive
// human is ready; AI seats count as always ready.
func (g *Game) ReadyToVote(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byID[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if g.phase != PhaseDay {
		return ErrWrongPhase
	}
	if !p.Alive {
		return ErrEliminated
	}
	g.readyVoters[playerID] = true
	for _, pl := range g.players {
		if pl.Alive && pl.Human && !g.readyVoters[pl.ID] {
			return nil
		}
	}
	select {
	case <-g.dayDone:
	default:
		close(g.dayDone)
	}
	return nil
}

// runVoting prompts every alive player in parallel and reveals the full
// vote map exactly once.
func (g *Game) runVoting(ctx context.Context) error {
	deadline := time.Now().Add(g.cfg.Profile.Vote)
	g.setPhase(PhaseVoting, deadline)

	alive := g.alivePlayers()
	var wg sync.WaitGroup
	for _, p := range alive {
		wg.Add(1)
		go func(voter *Player) {
			defer wg.Done()
			resp, err := g.decide(ctx, voter.ID, PromptVote, g.aliveOthers(voter.ID), 0)
			if err != nil {
				if !errors.Is(err, ErrDecisionCancelled) && ctx.Err() == nil {
					g.logger.Warn("vote collection failed", zap.String("player", voter.ID), zap.Error(err))
				}
				return
			}
			g.mu.Lock()
			g.votes[voter.ID] = resp.Players[0]
			g.mu.Unlock()
		}(p)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	g.votesRevealed = true
	votes := copyVotes(g.votes)
	g.mu.Unlock()
	g.emitter.VotesRevealed(votes)
	return nil
}

func (g *Game) alivePlayers() []*Player {
	var alive []*Player
	for _, p := range g.players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

func (g *Game) aliveOthers(exclude string) []string {
	var ids []string
	for _, p := range g.players {
		if p.Alive && p.ID != exclude {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func copyVotes(v map[string]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, t := range v {
		out[k] = t
	}
	return out
}

// resolve tallies the votes, applies eliminations and the hunter chain,
// and emits the final result.
func (g *Game) resolve() {
	g.setPhase(PhaseResolution, time.Time{})

	g.mu.Lock()
	votes := copyVotes(g.votes)
	g.mu.Unlock()

	result := g.computeResult(votes)

	g.mu.Lock()
	for _, id := range result.Eliminated {
		if p, ok := g.byID[id]; ok {
			p.Alive = false
		}
	}
	g.result = &result
	g.mu.Unlock()

	if len(result.Eliminated) > 0 {
		g.emitter.Eliminated(result.Eliminated)
	}
	g.emitter.GameEnded(result)
	g.logger.Info("game resolved",
		zap.Strings("eliminated", result.Eliminated),
		zap.Any("winningTeams", result.WinningTeams))
}

func (g *Game) sinceStartMs() int64 {
	if g.startedAt.IsZero() {
		return 0
	}
	return time.Since(g.startedAt).Milliseconds()
}

// Result returns the final result once the game has resolved.
func (g *Game) Result() *GameResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

// Shutdown is called by the room when it closes mid-game; pending decisions
// are resolved through the providers, the run loop exits via its context.
func (g *Game) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.dayDone:
	default:
		close(g.dayDone)
	}
}
