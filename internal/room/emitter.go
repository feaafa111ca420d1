package room

import (
	"time"

	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/game"
	"github.com/duskveil/onenight/backend/internal/protocol"
)

// The room implements game.ProviderSource, game.Emitter and PromptNotifier.
// Every engine emission passes through here, where engine seat ids are
// translated into the room's stable member ids before anything reaches a
// channel.

// ProviderFor implements game.ProviderSource.
func (r *Room) ProviderFor(engineID string) game.DecisionProvider {
	r.mu.Lock()
	cell := r.cells[engineID]
	r.mu.Unlock()
	if cell == nil {
		return r.ai
	}
	return cell.Get()
}

func (r *Room) memberIDOf(engineID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mid, ok := r.memberOf[engineID]; ok {
		return mid
	}
	return engineID
}

func (r *Room) translateIDs(engineIDs []string) []string {
	if engineIDs == nil {
		return nil
	}
	out := make([]string, len(engineIDs))
	for i, id := range engineIDs {
		out[i] = r.memberIDOf(id)
	}
	return out
}

func (r *Room) translateNightResult(res game.NightResult) game.NightResult {
	res.PlayerID = r.memberIDOf(res.PlayerID)
	res.Werewolves = r.translateIDs(res.Werewolves)
	res.Masons = r.translateIDs(res.Masons)
	if res.Copied != nil {
		copied := *res.Copied
		copied.Target = r.memberIDOf(copied.Target)
		res.Copied = &copied
	}
	return res
}

func (r *Room) translateVotes(votes map[string]string) map[string]string {
	if votes == nil {
		return nil
	}
	out := make(map[string]string, len(votes))
	for voter, target := range votes {
		out[r.memberIDOf(voter)] = r.memberIDOf(target)
	}
	return out
}

func (r *Room) translateResult(result game.GameResult) game.GameResult {
	result.Votes = r.translateVotes(result.Votes)
	result.Eliminated = r.translateIDs(result.Eliminated)
	result.Winners = r.translateIDs(result.Winners)
	if result.FinalRoles != nil {
		roles := make(map[string]game.Role, len(result.FinalRoles))
		for eid, role := range result.FinalRoles {
			roles[r.memberIDOf(eid)] = role
		}
		result.FinalRoles = roles
	}
	return result
}

func (r *Room) translateView(view game.PlayerView) game.PlayerView {
	view.PlayerID = r.memberIDOf(view.PlayerID)
	results := make([]game.NightResult, len(view.NightResults))
	for i, res := range view.NightResults {
		results[i] = r.translateNightResult(res)
	}
	view.NightResults = results
	players := make([]game.PublicPlayer, len(view.Players))
	for i, p := range view.Players {
		p.ID = r.memberIDOf(p.ID)
		players[i] = p
	}
	view.Players = players
	statements := make([]game.Statement, len(view.Statements))
	for i, st := range view.Statements {
		st.PlayerID = r.memberIDOf(st.PlayerID)
		statements[i] = st
	}
	view.Statements = statements
	view.Votes = r.translateVotes(view.Votes)
	view.Eliminated = r.translateIDs(view.Eliminated)
	view.Winners = r.translateIDs(view.Winners)
	if view.FinalRoles != nil {
		roles := make(map[string]game.Role, len(view.FinalRoles))
		for eid, role := range view.FinalRoles {
			roles[r.memberIDOf(eid)] = role
		}
		view.FinalRoles = roles
	}
	return view
}

// PhaseChanged implements game.Emitter.
func (r *Room) PhaseChanged(phase game.Phase, deadline time.Time) {
	payload := protocol.PhaseChangePayload{Phase: string(phase)}
	if !deadline.IsZero() {
		if remaining := time.Until(deadline); remaining > 0 {
			payload.TimeRemainingMs = remaining.Milliseconds()
		}
	}
	r.broadcast(protocol.NewServerMessage(protocol.ServerPhaseChange, payload))
}

// NightResult implements game.Emitter; the observation goes to its owner
// only.
func (r *Room) NightResult(engineID string, res game.NightResult) {
	r.unicast(r.memberIDOf(engineID), protocol.NewServerMessage(
		protocol.ServerNightResult, r.translateNightResult(res)))
}

// StatementMade implements game.Emitter.
func (r *Room) StatementMade(st game.Statement) {
	r.broadcast(protocol.NewServerMessage(protocol.ServerStatementMade, protocol.StatementMadePayload{
		PlayerID:  r.memberIDOf(st.PlayerID),
		Statement: st.Text,
		Timestamp: st.Timestamp,
	}))
}

// VotesRevealed implements game.Emitter; the full map goes out exactly once.
func (r *Room) VotesRevealed(votes map[string]string) {
	r.broadcast(protocol.NewServerMessage(protocol.ServerVotesRevealed,
		protocol.VotesRevealedPayload{Votes: r.translateVotes(votes)}))
}

// Eliminated implements game.Emitter.
func (r *Room) Eliminated(engineIDs []string) {
	r.broadcast(protocol.NewServerMessage(protocol.ServerElimination,
		protocol.EliminationPayload{PlayerIDs: r.translateIDs(engineIDs)}))
}

// GameEnded implements game.Emitter: the room moves to ENDED, the result is
// broadcast and the summary handed to the recorder.
func (r *Room) GameEnded(result game.GameResult) {
	translated := r.translateResult(result)

	r.mu.Lock()
	if r.status == StatusPlaying {
		r.status = StatusEnded
	}
	r.touchLocked()
	summary := r.summaryLocked(translated)
	r.mu.Unlock()

	r.broadcast(protocol.NewServerMessage(protocol.ServerGameEnd, translated))
	if r.recon != nil {
		r.recon.CancelRoom(r.Code)
	}
	if r.recorder != nil {
		r.recorder.RecordGame(summary)
	}
	r.logger.Info("game ended", zap.Any("winningTeams", result.WinningTeams))
}

func (r *Room) summaryLocked(result game.GameResult) GameSummary {
	winners := make(map[string]bool, len(result.Winners))
	for _, id := range result.Winners {
		winners[id] = true
	}
	players := make([]PlayerSummary, 0, len(r.members))
	for _, m := range r.members {
		players = append(players, PlayerSummary{
			PlayerID:  m.ID,
			Name:      m.Name,
			IsAI:      m.IsAI,
			FinalRole: result.FinalRoles[m.ID],
			Winner:    winners[m.ID],
		})
	}
	return GameSummary{
		RoomCode:     r.Code,
		EndedAt:      time.Now(),
		DurationMs:   result.DurationMs,
		WinningTeams: result.WinningTeams,
		Players:      players,
	}
}

// ActionRequired implements PromptNotifier.
func (r *Room) ActionRequired(engineID string, req game.DecisionRequest) {
	timeout := time.Until(req.Deadline)
	if timeout < 0 {
		timeout = 0
	}
	r.unicast(r.memberIDOf(engineID), protocol.NewServerMessage(
		protocol.ServerActionRequired, protocol.ActionRequiredPayload{
			RequestID:   req.RequestID,
			ActionType:  string(req.Kind),
			Options:     r.translateIDs(req.Options),
			CenterCount: req.CenterCount,
			Declinable:  req.Declinable,
			TimeoutMs:   timeout.Milliseconds(),
		}))
}

// ActionTimedOut implements PromptNotifier.
func (r *Room) ActionTimedOut(engineID, requestID string, applied game.DecisionResponse) {
	r.unicast(r.memberIDOf(engineID), protocol.NewServerMessage(
		protocol.ServerActionTimeout, protocol.ActionTimeoutPayload{
			RequestID: requestID,
			Applied: protocol.ActionAnswer{
				Players: r.translateIDs(applied.Players),
				Centers: applied.Centers,
				Choice:  applied.Choice,
				Text:    applied.Text,
			},
		}))
}
