package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewGame_RejectsBadConfigs(t *testing.T) {
	base := Config{
		Roles:   []Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleRobber, RoleTanner},
		Seats:   aiSeats("a", "b", "c"),
		Profile: testProfile,
	}
	provider := newScriptedProvider()
	emitter := newRecordingEmitter()

	cfg := base
	cfg.Seats = aiSeats("a", "b")
	_, err := NewGame(cfg, provider, emitter, zap.NewNop())
	assert.Error(t, err, "too few players")

	cfg = base
	cfg.Roles = cfg.Roles[:5]
	_, err = NewGame(cfg, provider, emitter, zap.NewNop())
	assert.Error(t, err, "role count must be players+3")

	cfg = base
	cfg.Roles = []Role{RoleWerewolf, RoleSeer, RoleMason, RoleVillager, RoleRobber, RoleTanner}
	_, err = NewGame(cfg, provider, emitter, zap.NewNop())
	assert.Error(t, err, "single mason is illegal")

	cfg = base
	cfg.ForcedSeats = []Role{RoleSeer, RoleSeer, RoleSeer}
	cfg.ForcedCenter = []Role{RoleVillager, RoleRobber, RoleTanner}
	_, err = NewGame(cfg, provider, emitter, zap.NewNop())
	assert.Error(t, err, "forced deal must permute the configured roles")
}

func TestGame_DeckConservation(t *testing.T) {
	roles := []Role{RoleWerewolf, RoleRobber, RoleTroublemaker, RoleDrunk, RoleSeer, RoleTanner}
	g, err := mustGame(
		roles,
		nil, nil,
		[]string{"Alice", "Bob", "Carol"},
		newScriptedProvider(), newRecordingEmitter(),
	)
	require.NoError(t, err)

	want := make(map[Role]int)
	for _, r := range roles {
		want[r]++
	}
	assert.Equal(t, want, g.deck.Multiset())

	require.NoError(t, g.runNight(context.Background()))
	assert.Equal(t, want, g.deck.Multiset(), "swaps must conserve the role multiset")
}

func TestGame_FullRunReachesResolution(t *testing.T) {
	emitter := newRecordingEmitter()
	g, err := mustGame(
		[]Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleRobber, RoleTanner},
		nil, nil,
		[]string{"Alice", "Bob", "Carol"},
		newScriptedProvider(), emitter,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, g.Run(ctx))

	assert.Equal(t, []Phase{PhaseNight, PhaseDay, PhaseVoting, PhaseResolution}, emitter.phases)
	result := emitter.finalResult()
	require.NotNil(t, result)
	assert.Len(t, result.Votes, 3, "every player voted")
	assert.Len(t, result.FinalRoles, 3)
	assert.Len(t, result.CenterCards, 3)
	assert.Equal(t, result, g.Result())
}

func TestGame_StatementsOnlyDuringDay(t *testing.T) {
	g, err := mustGame(
		[]Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleRobber, RoleTanner},
		nil, nil,
		[]string{"Alice", "Bob", "Carol"},
		newScriptedProvider(), newRecordingEmitter(),
	)
	require.NoError(t, err)

	err = g.SubmitStatement("player-1", "too early", time.Now())
	assert.ErrorIs(t, err, ErrWrongPhase)

	err = g.SubmitStatement("player-99", "who", time.Now())
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	g.mu.Lock()
	g.phase = PhaseDay
	g.mu.Unlock()
	require.NoError(t, g.SubmitStatement("player-1", "hello", time.Now()))
	assert.Len(t, g.statements, 1)
}

func TestGame_DayEndsWhenAllAliveHumansReady(t *testing.T) {
	emitter := newRecordingEmitter()
	g, err := NewGame(Config{
		Roles: []Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleRobber, RoleTanner},
		Seats: []SeatAssignment{
			{Name: "Alice", Human: true},
			{Name: "Bob", Human: true},
			{Name: "Carol", Human: false},
		},
		Profile: TimeoutProfile{Name: "test", NightAction: time.Second, Day: time.Hour, Vote: time.Second},
		Seed:    7,
	}, newScriptedProvider(), emitter, zap.NewNop())
	require.NoError(t, err)

	g.mu.Lock()
	g.phase = PhaseDay
	g.mu.Unlock()

	require.NoError(t, g.ReadyToVote("player-1"))
	select {
	case <-g.dayDone:
		t.Fatal("day ended before all humans were ready")
	default:
	}

	require.NoError(t, g.ReadyToVote("player-2"))
	select {
	case <-g.dayDone:
	default:
		t.Fatal("day should end once every alive human is ready")
	}
}
