package game

import "time"

// PublicPlayer is what everyone may know about a seat at any time.
type PublicPlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	IsAI      bool   `json:"isAi"`
	Alive     bool   `json:"alive"`
	HasSpoken bool   `json:"hasSpoken"`
	HasVoted  bool   `json:"hasVoted"`
}

// PlayerView is the sanitized projection of the game for one player. Every
// gameState sent to a client is produced here; nothing else may read roles
// out of the engine on a client's behalf.
type PlayerView struct {
	PlayerID        string            `json:"playerId"`
	Phase           Phase             `json:"phase"`
	TimeRemainingMs int64             `json:"timeRemainingMs,omitempty"`
	MyStartingRole  Role              `json:"myStartingRole"`
	NightResults    []NightResult     `json:"nightResults"`
	Players         []PublicPlayer    `json:"players"`
	Statements      []Statement       `json:"statements"`
	Votes           map[string]string `json:"votes,omitempty"`
	Eliminated      []string          `json:"eliminated,omitempty"`
	FinalRoles      map[string]Role   `json:"finalRoles,omitempty"`
	CenterCards     []Role            `json:"centerCards,omitempty"`
	WinningTeams    []Team            `json:"winningTeams,omitempty"`
	Winners         []string          `json:"winners,omitempty"`
}

// ViewFor projects the current state for one player. connected reports seat
// connectivity and is supplied by the room, which owns the channels. The
// projection is pure: calling it twice in the same state yields equal views.
func (g *Game) ViewFor(playerID string, connected func(engineID string) bool) (PlayerView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	target, ok := g.byID[playerID]
	if !ok {
		return PlayerView{}, ErrUnknownPlayer
	}

	view := PlayerView{
		PlayerID:       playerID,
		Phase:          g.phase,
		MyStartingRole: target.StartingRole,
		NightResults:   append([]NightResult(nil), g.nightLog[playerID]...),
		Statements:     append([]Statement(nil), g.statements...),
	}
	if !g.phaseDeadline.IsZero() {
		if remaining := time.Until(g.phaseDeadline); remaining > 0 {
			view.TimeRemainingMs = remaining.Milliseconds()
		}
	}

	spoken := make(map[string]bool, len(g.statements))
	for _, st := range g.statements {
		spoken[st.PlayerID] = true
	}
	for _, p := range g.players {
		view.Players = append(view.Players, PublicPlayer{
			ID:        p.ID,
			Name:      p.Name,
			Connected: connected != nil && connected(p.ID),
			IsAI:      !p.Human,
			Alive:     p.Alive,
			HasSpoken: spoken[p.ID],
			HasVoted:  g.votes[p.ID] != "",
		})
	}

	// Votes stay hidden until the voting phase closes; the outcome stays
	// hidden until resolution.
	if g.votesRevealed {
		view.Votes = copyVotes(g.votes)
	}
	if g.result != nil {
		view.Eliminated = append([]string(nil), g.result.Eliminated...)
		view.FinalRoles = make(map[string]Role, len(g.result.FinalRoles))
		for id, r := range g.result.FinalRoles {
			view.FinalRoles[id] = r
		}
		view.CenterCards = append([]Role(nil), g.result.CenterCards...)
		view.WinningTeams = append([]Team(nil), g.result.WinningTeams...)
		view.Winners = append([]string(nil), g.result.Winners...)
	}
	return view, nil
}
