package game

// GameResult is the final outcome broadcast at resolution.
type GameResult struct {
	Votes        map[string]string `json:"votes"`
	Eliminated   []string          `json:"eliminated"`
	WinningTeams []Team            `json:"winningTeams"`
	Winners      []string          `json:"winners"`
	FinalRoles   map[string]Role   `json:"finalRoles"`
	CenterCards  []Role            `json:"centerCards"`
	Scatter      bool              `json:"scatter"`
	DurationMs   int64             `json:"durationMs"`
}

// effectiveTeam is the team used for win computation: a Doppelganger plays
// for the team of the role it copied, everyone else for their current role.
func (g *Game) effectiveTeam(id string) Team {
	if copied, ok := g.shadow[id]; ok {
		return TeamOf(copied)
	}
	role, _ := g.deck.RoleAt(PlayerSlot(g.seatOf(id)))
	return TeamOf(role)
}

// isWerewolf reports whether a player counts as a werewolf for the win
// rules: current card is Werewolf, or a Doppelganger copy of it.
func (g *Game) isWerewolf(id string) bool {
	if g.shadow[id] == RoleWerewolf {
		return true
	}
	role, _ := g.deck.RoleAt(PlayerSlot(g.seatOf(id)))
	return role == RoleWerewolf
}

func (g *Game) computeResult(votes map[string]string) GameResult {
	alive := g.alivePlayers()

	received := make(map[string]int)
	for _, target := range votes {
		received[target]++
	}

	// A full scatter, every alive player voting and every alive player
	// receiving exactly one vote, eliminates no one.
	scatter := len(votes) == len(alive)
	if scatter {
		for _, p := range alive {
			if received[p.ID] != 1 {
				scatter = false
				break
			}
		}
	}

	eliminated := make([]string, 0)
	eliminatedSet := make(map[string]bool)
	if !scatter {
		max := 0
		for _, n := range received {
			if n > max {
				max = n
			}
		}
		if max > 0 {
			for _, p := range g.players {
				if received[p.ID] == max {
					eliminated = append(eliminated, p.ID)
					eliminatedSet[p.ID] = true
				}
			}
		}

		// Hunter chain, applied once: each eliminated Hunter drags their
		// vote target along; a Hunter killed this way does not re-fire.
		var dragged []string
		for _, id := range eliminated {
			role, _ := g.deck.RoleAt(PlayerSlot(g.seatOf(id)))
			if role != RoleHunter {
				continue
			}
			target, ok := votes[id]
			if !ok || eliminatedSet[target] {
				continue
			}
			eliminatedSet[target] = true
			dragged = append(dragged, target)
		}
		eliminated = append(eliminated, dragged...)
	}

	werewolfExists := false
	werewolfEliminated := false
	tannerEliminated := false
	for _, p := range g.players {
		if g.isWerewolf(p.ID) {
			werewolfExists = true
			if eliminatedSet[p.ID] {
				werewolfEliminated = true
			}
		}
	}
	for id := range eliminatedSet {
		role, _ := g.deck.RoleAt(PlayerSlot(g.seatOf(id)))
		if role == RoleTanner {
			tannerEliminated = true
		}
	}

	winningTeams := make([]Team, 0, 2)
	if (werewolfExists && werewolfEliminated) || (!werewolfExists && len(eliminated) == 0) {
		winningTeams = append(winningTeams, TeamVillage)
	}
	if werewolfExists && !werewolfEliminated {
		winningTeams = append(winningTeams, TeamWerewolf)
	}
	if tannerEliminated {
		winningTeams = append(winningTeams, TeamTanner)
	}

	won := make(map[Team]bool, len(winningTeams))
	for _, t := range winningTeams {
		won[t] = true
	}
	winners := make([]string, 0)
	finalRoles := make(map[string]Role, len(g.players))
	for _, p := range g.players {
		role, _ := g.deck.RoleAt(PlayerSlot(p.Seat))
		finalRoles[p.ID] = role
		if won[g.effectiveTeam(p.ID)] {
			winners = append(winners, p.ID)
		}
	}

	center := g.deck.CenterRoles()
	return GameResult{
		Votes:        votes,
		Eliminated:   eliminated,
		WinningTeams: winningTeams,
		Winners:      winners,
		FinalRoles:   finalRoles,
		CenterCards:  center[:],
		Scatter:      scatter,
		DurationMs:   g.sinceStartMs(),
	}
}
