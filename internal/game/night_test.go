package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNight_SeerViewsCenter(t *testing.T) {
	script := newScriptedProvider()
	// Alice is a lone wolf and declines the center peek.
	script.on("player-1", PromptSelectCenter, DecisionResponse{})
	script.on("player-2", PromptSeerChoice, DecisionResponse{Choice: SeerChoiceCenter})
	script.on("player-2", PromptSelectCenter, DecisionResponse{Centers: []int{0, 2}})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleRobber, RoleTanner},
		[]Role{RoleWerewolf, RoleSeer, RoleVillager},
		[]Role{RoleVillager, RoleRobber, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	bob := g.nightLog["player-2"]
	require.Len(t, bob, 1)
	require.Len(t, bob[0].Viewings, 2)
	assert.Equal(t, Viewing{Position: CenterSlot(0), Role: RoleVillager}, bob[0].Viewings[0])
	assert.Equal(t, Viewing{Position: CenterSlot(2), Role: RoleTanner}, bob[0].Viewings[1])

	assert.Empty(t, g.deck.AuditLog(), "seer must not mutate the deck")
	assert.Empty(t, g.nightLog["player-3"], "carol learns nothing")

	alice := g.nightLog["player-1"]
	require.Len(t, alice, 1)
	assert.Empty(t, alice[0].Werewolves, "lone wolf sees no teammates")
}

func TestNight_RobberSteals(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-1", PromptSelectCenter, DecisionResponse{})
	script.on("player-2", PromptSelectPlayer, DecisionResponse{Players: []string{"player-1"}})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleRobber, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleRobber, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	r0, _ := g.deck.RoleAt(PlayerSlot(0))
	r1, _ := g.deck.RoleAt(PlayerSlot(1))
	assert.Equal(t, RoleRobber, r0)
	assert.Equal(t, RoleWerewolf, r1)

	bob := g.nightLog["player-2"]
	require.Len(t, bob, 1)
	require.NotNil(t, bob[0].Swap)
	require.Len(t, bob[0].Viewings, 1)
	assert.Equal(t, Viewing{Position: PlayerSlot(1), Role: RoleWerewolf}, bob[0].Viewings[0])

	// Alice acted at order 2, before the swap; she still saw no teammates.
	alice := g.nightLog["player-1"]
	require.Len(t, alice, 1)
	assert.Empty(t, alice[0].Werewolves)
}

func TestNight_TroublemakerSwapsStrangers(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-1", PromptSelectCenter, DecisionResponse{})
	script.on("player-2", PromptSelectTwoPlayers, DecisionResponse{Players: []string{"player-1", "player-3"}})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleTroublemaker, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleTroublemaker, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	r0, _ := g.deck.RoleAt(PlayerSlot(0))
	r2, _ := g.deck.RoleAt(PlayerSlot(2))
	assert.Equal(t, RoleVillager, r0)
	assert.Equal(t, RoleWerewolf, r2)

	bob := g.nightLog["player-2"]
	require.Len(t, bob, 1)
	require.NotNil(t, bob[0].Swap)
	assert.Empty(t, bob[0].Viewings, "troublemaker never sees the swapped cards")
	assert.Empty(t, g.nightLog["player-3"], "swapped players are not informed")
}

func TestNight_DrunkNeverSeesNewCard(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-1", PromptSelectCenter, DecisionResponse{})
	script.on("player-2", PromptSelectCenter, DecisionResponse{Centers: []int{1}})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleDrunk, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleDrunk, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	r1, _ := g.deck.RoleAt(PlayerSlot(1))
	c1, _ := g.deck.RoleAt(CenterSlot(1))
	assert.Equal(t, RoleSeer, r1)
	assert.Equal(t, RoleDrunk, c1)

	bob := g.nightLog["player-2"]
	require.Len(t, bob, 1)
	require.NotNil(t, bob[0].Swap)
	assert.Empty(t, bob[0].Viewings)
}

// The drunk's exchange is mandatory. An empty answer is not a decline; the
// default kicks in and swaps with the first center card.
func TestNight_DrunkEmptyAnswerSwapsWithFirstCenter(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-1", PromptSelectCenter, DecisionResponse{})
	script.on("player-2", PromptSelectCenter, DecisionResponse{})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleDrunk, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleDrunk, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	r1, _ := g.deck.RoleAt(PlayerSlot(1))
	c0, _ := g.deck.RoleAt(CenterSlot(0))
	assert.Equal(t, RoleVillager, r1)
	assert.Equal(t, RoleDrunk, c0)

	bob := g.nightLog["player-2"]
	require.Len(t, bob, 1)
	require.NotNil(t, bob[0].Swap)
	assert.Equal(t, CenterSlot(0), bob[0].Swap.B)
}

func TestNight_LoneWolfPeeksCenter(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-1", PromptSelectCenter, DecisionResponse{Centers: []int{2}})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleVillager, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleVillager, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	alice := g.nightLog["player-1"]
	require.Len(t, alice, 1)
	assert.Empty(t, alice[0].Werewolves)
	require.Len(t, alice[0].Viewings, 1)
	assert.Equal(t, Viewing{Position: CenterSlot(2), Role: RoleTanner}, alice[0].Viewings[0])
}

func TestNight_LoneWolfMayDeclinePeek(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-1", PromptSelectCenter, DecisionResponse{})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleVillager, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleVillager, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	alice := g.nightLog["player-1"]
	require.Len(t, alice, 1)
	assert.Empty(t, alice[0].Werewolves)
	assert.Empty(t, alice[0].Viewings, "a declined peek reveals nothing")
	assert.Empty(t, g.deck.AuditLog())
}

func TestNight_WerewolvesAndMinionSeeEachOther(t *testing.T) {
	g, err := mustGame(
		[]Role{RoleWerewolf, RoleWerewolf, RoleMinion, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleWerewolf, RoleMinion, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol", "Dave"},
		newScriptedProvider(), newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	assert.Equal(t, []string{"player-2"}, g.nightLog["player-1"][0].Werewolves)
	assert.Equal(t, []string{"player-1"}, g.nightLog["player-2"][0].Werewolves)
	assert.Equal(t, []string{"player-1", "player-2"}, g.nightLog["player-3"][0].Werewolves)

	// The minion is invisible to the werewolves.
	assert.NotContains(t, g.nightLog["player-1"][0].Werewolves, "player-3")
	assert.NotContains(t, g.nightLog["player-2"][0].Werewolves, "player-3")
}

func TestNight_MasonsSeeEachOther(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-1", PromptSelectCenter, DecisionResponse{})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleMason, RoleMason, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleMason, RoleMason, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol", "Dave"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	assert.Equal(t, []string{"player-3"}, g.nightLog["player-2"][0].Masons)
	assert.Equal(t, []string{"player-2"}, g.nightLog["player-3"][0].Masons)
}

func TestNight_DoppelgangerCopiesWerewolf(t *testing.T) {
	script := newScriptedProvider()
	script.on("player-2", PromptSelectPlayer, DecisionResponse{Players: []string{"player-1"}})

	g, err := mustGame(
		[]Role{RoleWerewolf, RoleDoppelganger, RoleVillager, RoleVillager, RoleSeer, RoleTanner},
		[]Role{RoleWerewolf, RoleDoppelganger, RoleVillager},
		[]Role{RoleVillager, RoleSeer, RoleTanner},
		[]string{"Alice", "Bob", "Carol"},
		script, newRecordingEmitter(),
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	assert.Equal(t, RoleWerewolf, g.shadow["player-2"])

	// Bob acted twice at order 1: the copy, then the in-line werewolf turn.
	bob := g.nightLog["player-2"]
	require.Len(t, bob, 2)
	assert.Equal(t, &CopyRecord{Target: "player-1", Role: RoleWerewolf}, bob[0].Copied)
	assert.Equal(t, []string{"player-1"}, bob[1].Werewolves)

	// Alice's order-2 wake-up reports the doppelganger as a teammate, so
	// she gets no lone-wolf peek.
	alice := g.nightLog["player-1"]
	require.Len(t, alice, 1)
	assert.Equal(t, []string{"player-2"}, alice[0].Werewolves)

	assert.Equal(t, TeamWerewolf, g.effectiveTeam("player-2"))
	r1, _ := g.deck.RoleAt(PlayerSlot(1))
	assert.Equal(t, RoleDoppelganger, r1, "the card itself never changes on copy")
}

func TestNight_DoppelInsomniacWakesLastAfterAllSwaps(t *testing.T) {
	script := newScriptedProvider()
	// Seat 1 copies the Insomniac at seat 2, deferring its check to the end
	// of the night. The robber then steals seat 1's card.
	script.on("player-1", PromptSelectPlayer, DecisionResponse{Players: []string{"player-2"}})
	script.on("player-8", PromptSeerChoice, DecisionResponse{Choice: SeerChoiceCenter})
	script.on("player-8", PromptSelectCenter, DecisionResponse{Centers: []int{0, 1}})
	script.on("player-9", PromptSelectPlayer, DecisionResponse{Players: []string{"player-1"}})
	script.on("player-10", PromptSelectTwoPlayers, DecisionResponse{Players: []string{"player-3", "player-4"}})

	emitter := newRecordingEmitter()
	g, err := mustGame(
		[]Role{
			RoleDoppelganger, RoleInsomniac, RoleWerewolf, RoleWerewolf, RoleMinion,
			RoleMason, RoleMason, RoleSeer, RoleRobber, RoleTroublemaker,
			RoleDrunk, RoleVillager, RoleHunter,
		},
		[]Role{
			RoleDoppelganger, RoleInsomniac, RoleWerewolf, RoleWerewolf, RoleMinion,
			RoleMason, RoleMason, RoleSeer, RoleRobber, RoleTroublemaker,
		},
		[]Role{RoleDrunk, RoleVillager, RoleHunter},
		[]string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"},
		script, emitter,
	)
	require.NoError(t, err)
	require.NoError(t, g.runNight(context.Background()))

	log := g.nightLog["player-1"]
	require.Len(t, log, 2)
	assert.Equal(t, &CopyRecord{Target: "player-2", Role: RoleInsomniac}, log[0].Copied)

	last := log[1]
	assert.Equal(t, OrderDoppelInsomniac, last.WakeOrder)
	require.Len(t, last.Viewings, 1)
	assert.Equal(t, RoleRobber, last.Viewings[0].Role, "the late wake sees the post-swap card")

	// Results were delivered in strict wake order.
	prev := 0
	for _, res := range emitter.nightOrder {
		assert.GreaterOrEqual(t, res.WakeOrder, prev)
		prev = res.WakeOrder
	}
	assert.Equal(t, OrderDoppelInsomniac, emitter.nightOrder[len(emitter.nightOrder)-1].WakeOrder)
}
